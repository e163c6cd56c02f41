// Package fsdriver stores blobs as plain files.
package fsdriver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/DanikLP1/s3-chunk-storage/internal/storage"
)

const (
	blobDir = "blobs"
	blobExt = ".blob"
)

// FS keeps each blob in Root/blobs/<xx>/<yy>/<id>.blob where xx and yy are
// the last four characters of the id. Writes land in a temp file beside the
// blob and are renamed into place on commit.
type FS struct {
	Root string
}

func New(root string) *FS { return &FS{Root: root} }

func (d *FS) blobPath(id storage.BlobID) (dir, file string) {
	s := string(id)
	if len(s) < 4 {
		s = strings.Repeat("_", 4-len(s)) + s
	}
	tail := s[len(s)-4:]
	dir = filepath.Join(d.Root, blobDir, tail[:2], tail[2:])
	return dir, filepath.Join(dir, string(id)+blobExt)
}

// pendingBlob is an uncommitted write.
type pendingBlob struct {
	id      storage.BlobID
	dir     string
	file    string
	tmp     *os.File
	sum     hash.Hash
	want    storage.PutOpts
	written int64
	done    bool
}

func (d *FS) BeginWrite(ctx context.Context, id storage.BlobID, opts storage.PutOpts) (storage.WriteSession, error) {
	dir, file := d.blobPath(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob dir: %w", err)
	}
	tmp, err := os.OpenFile(file+".tmp-"+ulid.Make().String(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blob temp file: %w", err)
	}
	pb := &pendingBlob{id: id, dir: dir, file: file, tmp: tmp, want: opts}
	if len(opts.Checksum) > 0 {
		pb.sum = sha256.New()
	}
	return pb, nil
}

func (pb *pendingBlob) Writer() io.Writer { return pb }

func (pb *pendingBlob) Write(p []byte) (int, error) {
	n, err := pb.tmp.Write(p)
	pb.written += int64(n)
	if pb.sum != nil {
		pb.sum.Write(p[:n])
	}
	return n, err
}

func (pb *pendingBlob) verify() error {
	if pb.want.Size >= 0 && pb.written != pb.want.Size {
		return fmt.Errorf("%w: blob %s has %d bytes, want %d", storage.ErrSizeMismatch, pb.id, pb.written, pb.want.Size)
	}
	if pb.sum != nil && !bytes.Equal(pb.sum.Sum(nil), pb.want.Checksum) {
		return fmt.Errorf("%w: blob %s", storage.ErrChecksumMismatch, pb.id)
	}
	return nil
}

func (pb *pendingBlob) Commit(ctx context.Context) error {
	if pb.done {
		return errors.New("blob write already finished")
	}
	pb.done = true
	tmpName := pb.tmp.Name()

	err := pb.verify()
	if err == nil {
		err = pb.tmp.Sync()
	}
	if cerr := pb.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpName, pb.file)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// fsync the directory so the rename survives a crash
	if dir, err := os.Open(pb.dir); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

func (pb *pendingBlob) Abort(ctx context.Context) error {
	if pb.done {
		return nil
	}
	pb.done = true
	_ = pb.tmp.Close()
	return os.Remove(pb.tmp.Name())
}

type sectionFile struct {
	*io.SectionReader
	f *os.File
}

func (s sectionFile) Close() error { return s.f.Close() }

func (d *FS) ReadAt(ctx context.Context, id storage.BlobID, off int64, n int64) (io.ReadCloser, error) {
	_, file := d.blobPath(id)
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrBlobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if n < 0 {
		fi, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		n = max(fi.Size()-off, 0)
	}
	return sectionFile{SectionReader: io.NewSectionReader(f, off, n), f: f}, nil
}

func (d *FS) Stat(ctx context.Context, id storage.BlobID) (int64, bool, error) {
	_, file := d.blobPath(id)
	fi, err := os.Stat(file)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return fi.Size(), true, nil
}

func (d *FS) Delete(ctx context.Context, id storage.BlobID) error {
	_, file := d.blobPath(id)
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
