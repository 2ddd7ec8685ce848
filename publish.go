package vecforest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/vecforest/blobstore"
	"github.com/hupe1980/vecforest/internal/archive"
	"github.com/hupe1980/vecforest/internal/fs"
	"github.com/hupe1980/vecforest/resource"
)

// Compression selects how Publish encodes an index file.
type Compression = archive.Codec

// Compression codecs.
const (
	CompressionNone = archive.None
	CompressionLZ4  = archive.LZ4
	CompressionZstd = archive.Zstd
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	return archive.ParseCodec(s)
}

// Publish uploads the built index to store under name. The uploaded blob
// holds the same bytes Save would write, framed by the chosen compression.
// A failed upload is aborted and leaves nothing behind.
func (idx *Index) Publish(ctx context.Context, store blobstore.BlobStore, name string, c Compression) (err error) {
	var written int64

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return ErrClosed
	}
	defer func() {
		idx.opts.logger.LogPublish(ctx, "publish", name, written, err)
	}()

	if !idx.forest.Built() {
		return ErrNotBuilt
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h, err := idx.headerLocked(0)
	if err != nil {
		return err
	}

	bw, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}

	written, err = writeArchive(bw, c, &snapshot{
		ctx:    ctx,
		header: h,
		nodes:  idx.forest.Store().Bytes(),
		rc:     idx.opts.resource,
	})
	if err == nil {
		err = bw.Close()
	}
	if err != nil {
		if derr := blobstore.Discard(ctx, store, name, bw); derr != nil {
			err = errors.Join(err, derr)
		}
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// writeArchive compresses src into w and returns the compressed size.
func writeArchive(w io.Writer, c Compression, src io.WriterTo) (int64, error) {
	aw, err := archive.NewWriter(w, c, 0)
	if err != nil {
		return 0, err
	}
	if _, err := src.WriteTo(aw); err != nil {
		return aw.Written(), err
	}
	if err := aw.Close(); err != nil {
		return aw.Written(), err
	}
	return aw.Written(), nil
}

// Fetch downloads name from store to localPath and loads it as Load would.
// The file is written atomically; if it cannot be loaded it is removed and
// the index keeps its previous state.
func (idx *Index) Fetch(ctx context.Context, store blobstore.BlobStore, name, localPath string, prefault bool) (err error) {
	var size int64

	idx.mu.RLock()
	closed := idx.closed
	idx.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	defer func() {
		idx.opts.logger.LogPublish(ctx, "fetch", name, size, err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	ar, err := archive.NewReader(resource.NewRateLimitedReader(ctx, rc, idx.opts.resource))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, translateError(err))
	}

	size, err = fs.WriteFileAtomic(idx.opts.fs, localPath, readerSource{ar})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, translateError(err))
	}

	if err := idx.Load(ctx, localPath, prefault); err != nil {
		_ = idx.opts.fs.Remove(localPath)
		return err
	}
	return nil
}

type readerSource struct {
	r io.Reader
}

func (s readerSource) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, s.r)
}
