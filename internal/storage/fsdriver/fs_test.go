package fsdriver

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/storage"
)

func TestWriteReadDelete(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	fs := New(t.TempDir())

	sum := sha256.Sum256([]byte("hello world"))
	ws, err := fs.BeginWrite(ctx, "blob-0001", storage.PutOpts{Size: 11, Checksum: sum[:]})
	require.NoError(t, err)
	_, err = io.Copy(ws.Writer(), strings.NewReader("hello world"))
	require.NoError(t, err)
	require.NoError(t, ws.Commit(ctx))

	size, ok, err := fs.Stat(ctx, "blob-0001")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(11), size)

	rc, err := fs.ReadAt(ctx, "blob-0001", 6, 3)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "wor", string(got))

	require.NoError(t, fs.Delete(ctx, "blob-0001"))
	require.NoError(t, fs.Delete(ctx, "blob-0001"))
	_, ok, err = fs.Stat(ctx, "blob-0001")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.ReadAt(ctx, "blob-0001", 0, -1)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestCommitRejectsShortWrite(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	root := t.TempDir()
	fs := New(root)

	ws, err := fs.BeginWrite(ctx, "short", storage.PutOpts{Size: 10})
	require.NoError(t, err)
	_, err = ws.Writer().Write([]byte("abc"))
	require.NoError(t, err)
	assert.ErrorIs(t, ws.Commit(ctx), storage.ErrSizeMismatch)

	_, ok, err := fs.Stat(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	dir, _ := fs.blobPath("short")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file left behind in %s", filepath.Base(dir))
}

func TestCommitRejectsBadChecksum(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	fs := New(t.TempDir())

	sum := sha256.Sum256([]byte("expected"))
	ws, err := fs.BeginWrite(ctx, "sum-check", storage.PutOpts{Size: -1, Checksum: sum[:]})
	require.NoError(t, err)
	_, err = ws.Writer().Write([]byte("actual"))
	require.NoError(t, err)
	assert.ErrorIs(t, ws.Commit(ctx), storage.ErrChecksumMismatch)
	assert.Error(t, ws.Commit(ctx), "second commit")
	assert.NoError(t, ws.Abort(ctx))
}

func TestReadAtPastEnd(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	fs := New(t.TempDir())

	ws, err := fs.BeginWrite(ctx, "x", storage.PutOpts{Size: 3})
	require.NoError(t, err)
	_, err = ws.Writer().Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, ws.Commit(ctx))

	dir, file := fs.blobPath("x")
	assert.Equal(t, filepath.Join(dir, "x.blob"), file)

	rc, err := fs.ReadAt(ctx, "x", 1, -1)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "bc", string(got))

	rc, err = fs.ReadAt(ctx, "x", 10, -1)
	require.NoError(t, err)
	got, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Empty(t, got)
}
