package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/iwanowww/supers"
	"github.com/iwanowww/supers/archive"
	"github.com/iwanowww/supers/blobstore"
)

func main() {
	dir := "./data-archive"
	_ = os.RemoveAll(dir)
	defer func() { _ = os.RemoveAll(dir) }()

	ctx := context.Background()

	// Link a hierarchy once.
	h, err := supers.New(supers.WithSeed(1))
	if err != nil {
		log.Fatal(err)
	}
	object, _ := h.Define("Object", nil)
	closer, _ := h.DefineInterface("Closer")
	reader, _ := h.DefineInterface("Reader", closer)
	if _, err := h.Define("File", object, reader); err != nil {
		log.Fatal(err)
	}

	// Export it, mark the generation current.
	store := blobstore.NewLocalStore(dir)
	if err := archive.Save(ctx, store, "gen-000001.sstb", h, func(o *archive.Options) {
		o.Compression = archive.CompressionZstd
	}); err != nil {
		log.Fatal(err)
	}
	if err := archive.Commit(ctx, store, "gen-000001.sstb"); err != nil {
		log.Fatal(err)
	}

	// A later process start skips the build entirely.
	loaded, err := archive.LoadCurrent(ctx, store)
	if err != nil {
		log.Fatal(err)
	}

	file, _ := loaded.Lookup("File")
	c, _ := loaded.Lookup("Closer")
	fmt.Println("File <: Closer", file.IsSubtypeOf(c))
	fmt.Println("types loaded  ", loaded.Len())
}
