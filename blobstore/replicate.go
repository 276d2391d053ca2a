package blobstore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Replicate copies the named blob from src to every dst concurrently.
// Each destination gets its own section reader over the source blob, so
// destinations do not contend on a shared stream. The first failure
// cancels the remaining copies.
func Replicate(ctx context.Context, name string, src BlobStore, dsts ...BlobStore) error {
	blob, err := src.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("blobstore: open %q: %w", name, err)
	}
	defer blob.Close()

	g, ctx := errgroup.WithContext(ctx)
	for _, dst := range dsts {
		g.Go(func() error {
			if err := dst.Put(ctx, name, Reader(blob), blob.Size()); err != nil {
				return fmt.Errorf("blobstore: replicate %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
