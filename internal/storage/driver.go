package storage

import (
	"context"
	"errors"
	"io"
)

// BlobID names a run of bytes held by a driver. Blobs are written once.
type BlobID string

type PutOpts struct {
	Size     int64 // -1 when unknown
	Checksum []byte
}

var (
	ErrSizeMismatch     = errors.New("blob size mismatch")
	ErrChecksumMismatch = errors.New("blob checksum mismatch")
	ErrBlobNotFound     = errors.New("blob not found")
)

type StorageDriver interface {
	BeginWrite(ctx context.Context, id BlobID, opts PutOpts) (WriteSession, error)
	// ReadAt returns n bytes from off, or everything after off when n < 0.
	ReadAt(ctx context.Context, id BlobID, off int64, n int64) (io.ReadCloser, error)
	Stat(ctx context.Context, id BlobID) (size int64, exists bool, err error)
	Delete(ctx context.Context, id BlobID) error
}

type WriteSession interface {
	Writer() io.Writer
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}
