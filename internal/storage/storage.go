package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

type Storage struct {
	driver StorageDriver
}

func NewWithDriver(d StorageDriver) *Storage {
	return &Storage{driver: d}
}

func (s *Storage) Driver() StorageDriver {
	return s.driver
}

// PutResult describes a committed blob.
type PutResult struct {
	Size   int64
	SHA256 string // hex
}

// Put streams r into a new blob. When size >= 0 exactly size bytes must
// arrive or the blob is discarded.
func (s *Storage) Put(ctx context.Context, id string, r io.Reader, size int64) (PutResult, error) {
	ws, err := s.driver.BeginWrite(ctx, BlobID(id), PutOpts{Size: size})
	if err != nil {
		return PutResult{}, err
	}
	hasher := sha256.New()
	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	written, err := io.Copy(ws.Writer(), io.TeeReader(r, hasher))
	if err != nil {
		_ = ws.Abort(ctx)
		return PutResult{}, err
	}
	if size >= 0 && written != size {
		_ = ws.Abort(ctx)
		return PutResult{}, fmt.Errorf("%w: got %d want %d", ErrSizeMismatch, written, size)
	}
	if err := ws.Commit(ctx); err != nil {
		return PutResult{}, err
	}
	return PutResult{Size: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// Compose writes the concatenation of srcs into a new blob id.
func (s *Storage) Compose(ctx context.Context, id string, srcs []string) (PutResult, error) {
	readers := make([]io.Reader, 0, len(srcs))
	closers := make([]io.Closer, 0, len(srcs))
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	for _, src := range srcs {
		rc, err := s.driver.ReadAt(ctx, BlobID(src), 0, -1)
		if err != nil {
			return PutResult{}, fmt.Errorf("open part blob %s: %w", src, err)
		}
		readers = append(readers, rc)
		closers = append(closers, rc)
	}
	return s.Put(ctx, id, io.MultiReader(readers...), -1)
}

func (s *Storage) ReadAt(ctx context.Context, id string, off int64, n int64) (io.ReadCloser, error) {
	return s.driver.ReadAt(ctx, BlobID(id), off, n)
}

func (s *Storage) Stat(ctx context.Context, id string) (int64, bool, error) {
	return s.driver.Stat(ctx, BlobID(id))
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.driver.Delete(ctx, BlobID(id))
}
