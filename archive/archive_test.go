package archive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iwanowww/supers"
	"github.com/iwanowww/supers/blobstore"
	"github.com/iwanowww/supers/codec"
	"github.com/iwanowww/supers/resource"
)

func buildSample(t *testing.T) *supers.Hierarchy {
	t.Helper()
	h, err := supers.New(supers.WithSeed(42))
	require.NoError(t, err)

	obj, err := h.Define("Object", nil)
	require.NoError(t, err)
	ser, err := h.DefineInterface("Serializable")
	require.NoError(t, err)
	cmp, err := h.DefineInterface("Comparable")
	require.NoError(t, err)
	cs, err := h.DefineInterface("CharSequence", ser)
	require.NoError(t, err)
	_, err = h.Define("String", obj, ser, cmp, cs)
	require.NoError(t, err)

	prev := obj
	for i := 0; i < 12; i++ {
		prev, err = h.Define(fmt.Sprintf("C%d", i), prev)
		require.NoError(t, err)
	}
	return h
}

func requireSameAnswers(t *testing.T, a, b *supers.Hierarchy) {
	t.Helper()
	types := a.Types()
	require.Equal(t, len(types), b.Len())

	for _, x := range types {
		bx, ok := b.Lookup(x.Name())
		require.True(t, ok)
		for _, y := range types {
			by, _ := b.Lookup(y.Name())
			require.Equal(t, x.IsSubtypeOf(y), bx.IsSubtypeOf(by),
				"%s <: %s", x.Name(), y.Name())
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	codecs := []codec.Codec{codec.JSON{}, codec.GoJSON{}, codec.Sonnet{}}
	compressions := []Compression{CompressionNone, CompressionZstd, CompressionLZ4}

	h := buildSample(t)
	ctx := context.Background()

	for _, c := range codecs {
		for _, comp := range compressions {
			t.Run(c.Name()+"/"+string(comp), func(t *testing.T) {
				store := blobstore.NewMemoryStore()
				err := Save(ctx, store, "gen-1.sstb", h, func(o *Options) {
					o.Codec = c
					o.Compression = comp
				})
				require.NoError(t, err)

				loaded, err := Load(ctx, store, "gen-1.sstb")
				require.NoError(t, err)
				requireSameAnswers(t, h, loaded)
			})
		}
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(context.Background(), blobstore.NewMemoryStore(), "nope")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestLoadRejectsCorruptBody(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, Save(ctx, store, "gen", buildSample(t)))

	blob, err := store.Open(ctx, "gen")
	require.NoError(t, err)
	raw, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, store.Put(ctx, "gen", raw))

	_, err = Load(ctx, store, "gen")
	require.ErrorIs(t, err, ErrChecksum)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "gen", []byte("not an archive")))

	_, err := Load(ctx, store, "gen")
	require.ErrorIs(t, err, ErrBadArchive)
}

func TestSaveRejectsUnknownCompression(t *testing.T) {
	err := Save(context.Background(), blobstore.NewMemoryStore(), "gen", buildSample(t), func(o *Options) {
		o.Compression = "brotli"
	})
	require.ErrorIs(t, err, ErrUnknownCompression)
}

func TestCommitAndLoadCurrent(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	h := buildSample(t)

	require.NoError(t, Save(ctx, store, "gen-000001.sstb", h))
	require.NoError(t, Commit(ctx, store, "gen-000001.sstb"))

	loaded, err := LoadCurrent(ctx, store)
	require.NoError(t, err)
	requireSameAnswers(t, h, loaded)
}

func TestSaveRateLimited(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	// Generous limit: the archive is small, the limiter must not stall.
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 10 << 20})
	err := Save(ctx, store, "gen", buildSample(t), func(o *Options) {
		o.Controller = rc
	})
	require.NoError(t, err)

	_, err = Load(ctx, store, "gen", func(o *Options) {
		o.Controller = rc
	})
	require.NoError(t, err)
}

func TestSaveOnLocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	h := buildSample(t)

	require.NoError(t, Save(ctx, store, "hier/gen-1.sstb", h))

	loaded, err := Load(ctx, store, "hier/gen-1.sstb")
	require.NoError(t, err)
	requireSameAnswers(t, h, loaded)
}
