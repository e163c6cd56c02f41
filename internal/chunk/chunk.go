// Package chunk defines the contract a segment store uses to keep chunks:
// immutable named byte sequences that can only be created whole, read,
// concatenated and deleted.
package chunk

import (
	"context"
	"io"
)

// Handle identifies an open chunk. It is a plain value and needs no closing.
type Handle struct {
	Name     string
	ReadOnly bool
}

func ReadHandle(name string) Handle  { return Handle{Name: name, ReadOnly: true} }
func WriteHandle(name string) Handle { return Handle{Name: name, ReadOnly: false} }

// Info is a point-in-time snapshot of a chunk's metadata.
type Info struct {
	Name   string
	Length int64
}

// ConcatArgument names a chunk and the number of its leading bytes to
// concatenate. In a concat call element 0 is the target.
type ConcatArgument struct {
	Name   string
	Length int64
}

// Capabilities describes which optional operations a backend supports.
type Capabilities struct {
	Concat   bool
	Append   bool
	Truncate bool
}

type Storage interface {
	Capabilities() Capabilities

	OpenRead(ctx context.Context, name string) (Handle, error)
	OpenWrite(ctx context.Context, name string) (Handle, error)
	Read(ctx context.Context, h Handle, fromOffset int64, length int, buf []byte, bufOffset int) (int, error)
	Write(ctx context.Context, h Handle, offset int64, length int, data io.Reader) (int, error)
	Create(ctx context.Context, name string) (Handle, error)
	CreateWithContent(ctx context.Context, name string, length int64, data io.Reader) (Handle, error)
	Delete(ctx context.Context, h Handle) error
	Info(ctx context.Context, name string) (Info, error)
	Exists(ctx context.Context, name string) (bool, error)
	SetReadOnly(ctx context.Context, h Handle, readOnly bool) error
	Concat(ctx context.Context, args []ConcatArgument) (int64, error)

	io.Closer
}
