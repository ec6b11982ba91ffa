// Package archive persists built hierarchies.
//
// An archive is a single self-describing blob: a fixed header naming the
// manifest codec and body compression plus a CRC32C of the body, followed
// by the encoded snapshot. Loading an archive reassembles every table from
// its seed and regions — no placement search runs at load time, which is
// the point: link once, export, and every later process start skips the
// build cost.
package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/iwanowww/supers"
	"github.com/iwanowww/supers/blobstore"
	"github.com/iwanowww/supers/codec"
	"github.com/iwanowww/supers/internal/hash"
	"github.com/iwanowww/supers/resource"
)

// Magic identifies archive blobs.
const Magic = "SSTB"

// Version is the current header version.
const Version uint16 = 1

// CurrentName is the blob conventionally holding the name of the live
// archive generation.
const CurrentName = "CURRENT"

// writeChunk is the unit of rate-limited archive writes.
const writeChunk = 256 * 1024

var (
	// ErrBadArchive is returned when a blob is not a parseable archive.
	ErrBadArchive = errors.New("malformed archive")

	// ErrChecksum is returned when the body fails CRC validation.
	ErrChecksum = errors.New("archive checksum mismatch")

	// ErrUnknownCodec is returned when the header names a codec this
	// build does not know.
	ErrUnknownCodec = errors.New("unknown archive codec")

	// ErrUnknownCompression is returned when the header names a
	// compression scheme this build does not know.
	ErrUnknownCompression = errors.New("unknown archive compression")
)

// Options configure Save and Load.
type Options struct {
	// Codec encodes the manifest. Defaults to codec.Default. Load
	// ignores it: archives name their codec in the header.
	Codec codec.Codec

	// Compression selects the body compression for Save. Defaults to
	// zstd. Load ignores it for the same reason.
	Compression Compression

	// Controller rate-limits archive IO when it has an IO limit
	// configured. Nil means unlimited.
	Controller *resource.Controller

	// Logger reports save/load outcomes. Defaults to no-op.
	Logger *supers.Logger

	// Hierarchy options are passed through to supers.Restore on Load.
	Hierarchy []supers.Option
}

func defaultOptions() Options {
	return Options{
		Codec:       codec.Default,
		Compression: CompressionZstd,
		Logger:      supers.NoopLogger(),
	}
}

func applyOptions(optFns []func(*Options)) (Options, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.Logger == nil {
		o.Logger = supers.NoopLogger()
	}
	if !o.Compression.valid() {
		return o, fmt.Errorf("%w: %q", ErrUnknownCompression, o.Compression)
	}
	return o, nil
}

// Save exports the hierarchy to a blob. The write goes through the
// store's writable blob in rate-limited chunks and becomes visible
// atomically on close.
func Save(ctx context.Context, store blobstore.BlobStore, name string, h *supers.Hierarchy, optFns ...func(*Options)) (err error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return err
	}

	snap := h.Snapshot()
	var written int64
	defer func() { o.Logger.LogArchiveSave(name, len(snap.Records), written, err) }()

	manifest, err := o.Codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("archive: encode manifest: %w", err)
	}
	body, err := compress(o.Compression, manifest)
	if err != nil {
		return fmt.Errorf("archive: compress: %w", err)
	}

	blob := encodeHeader(o.Codec.Name(), o.Compression, body)
	blob = append(blob, body...)

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("archive: create blob: %w", err)
	}

	for off := 0; off < len(blob); off += writeChunk {
		end := min(off+writeChunk, len(blob))
		if err := o.Controller.WaitIO(ctx, end-off); err != nil {
			_ = w.Close()
			return err
		}
		if _, err := w.Write(blob[off:end]); err != nil {
			_ = w.Close()
			return fmt.Errorf("archive: write: %w", err)
		}
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: sync: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	written = int64(len(blob))
	return nil
}

// Load reads an archive and reconstructs its hierarchy. The manifest
// codec and compression come from the header; verify-mode checks run
// when the archived configuration has Verify set.
func Load(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*Options)) (h *supers.Hierarchy, err error) {
	o, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	defer func() {
		types := 0
		if h != nil {
			types = h.Len()
		}
		o.Logger.LogArchiveLoad(name, types, err)
	}()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	if err := o.Controller.WaitIO(ctx, int(blob.Size())); err != nil {
		return nil, err
	}
	raw, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("archive: read: %w", err)
	}

	codecName, compression, body, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}
	manifest, err := decompress(compression, body)
	if err != nil {
		return nil, fmt.Errorf("archive: decompress: %w", err)
	}

	var snap supers.Snapshot
	if err := c.Unmarshal(manifest, &snap); err != nil {
		return nil, fmt.Errorf("archive: decode manifest: %w", err)
	}
	return supers.Restore(snap, o.Hierarchy...)
}

// Commit points CURRENT at the named archive. On a plain store this is
// an atomic blob write; on the s3 commit store it is a DynamoDB
// conditional put.
func Commit(ctx context.Context, store blobstore.BlobStore, name string) error {
	return store.Put(ctx, CurrentName, []byte(name))
}

// LoadCurrent resolves CURRENT and loads the archive it names.
func LoadCurrent(ctx context.Context, store blobstore.BlobStore, optFns ...func(*Options)) (*supers.Hierarchy, error) {
	blob, err := store.Open(ctx, CurrentName)
	if err != nil {
		return nil, err
	}
	name, err := blobstore.ReadAll(ctx, blob)
	_ = blob.Close()
	if err != nil {
		return nil, fmt.Errorf("archive: read CURRENT: %w", err)
	}
	return Load(ctx, store, string(name), optFns...)
}

// Header layout, little-endian:
//
//	magic[4] version:u16 codecLen:u8 codec... compLen:u8 comp... crc32c:u32 bodyLen:u64
func encodeHeader(codecName string, compression Compression, body []byte) []byte {
	buf := make([]byte, 0, 4+2+1+len(codecName)+1+len(compression)+4+8)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, Version)
	buf = append(buf, byte(len(codecName)))
	buf = append(buf, codecName...)
	buf = append(buf, byte(len(compression)))
	buf = append(buf, compression...)
	buf = binary.LittleEndian.AppendUint32(buf, hash.CRC32C(body))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(body)))
	return buf
}

func decodeHeader(raw []byte) (codecName string, compression Compression, body []byte, err error) {
	r := raw
	take := func(n int) []byte {
		if len(r) < n {
			return nil
		}
		out := r[:n]
		r = r[n:]
		return out
	}

	magic := take(4)
	if magic == nil || string(magic) != Magic {
		return "", "", nil, fmt.Errorf("%w: bad magic", ErrBadArchive)
	}
	ver := take(2)
	if ver == nil {
		return "", "", nil, fmt.Errorf("%w: truncated header", ErrBadArchive)
	}
	if v := binary.LittleEndian.Uint16(ver); v != Version {
		return "", "", nil, fmt.Errorf("%w: unsupported version %d", ErrBadArchive, v)
	}

	for _, dst := range []*string{&codecName, (*string)(&compression)} {
		n := take(1)
		if n == nil {
			return "", "", nil, fmt.Errorf("%w: truncated header", ErrBadArchive)
		}
		s := take(int(n[0]))
		if s == nil {
			return "", "", nil, fmt.Errorf("%w: truncated header", ErrBadArchive)
		}
		*dst = string(s)
	}

	crcBytes := take(4)
	lenBytes := take(8)
	if crcBytes == nil || lenBytes == nil {
		return "", "", nil, fmt.Errorf("%w: truncated header", ErrBadArchive)
	}
	bodyLen := binary.LittleEndian.Uint64(lenBytes)
	if uint64(len(r)) != bodyLen {
		return "", "", nil, fmt.Errorf("%w: body length %d, want %d", ErrBadArchive, len(r), bodyLen)
	}
	if hash.CRC32C(r) != binary.LittleEndian.Uint32(crcBytes) {
		return "", "", nil, ErrChecksum
	}
	return codecName, compression, r, nil
}
