package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chunkctl.yaml")
	cfg := `backend: local
log:
  level: error
storage:
  bucket: chunks
  prefix: segments
local:
  data_dir: ` + filepath.Join(dir, "data") + `
  gc_interval: 0s
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPutGetInfo(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, cfg, "hello world", "put", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "greeting\t11\n", out)

	out, err = run(t, cfg, "", "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	out, err = run(t, cfg, "", "get", "greeting", "--offset", "6", "--length", "3")
	require.NoError(t, err)
	assert.Equal(t, "wor", out)

	out, err = run(t, cfg, "", "info", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "greeting\t11\n", out)

	file := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(file, []byte("from a file"), 0o600))
	_, err = run(t, cfg, "", "put", "f", file)
	require.NoError(t, err)
	out, err = run(t, cfg, "", "get", "f")
	require.NoError(t, err)
	assert.Equal(t, "from a file", out)
}

func TestExistsAndRm(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "x", "put", "c")
	require.NoError(t, err)

	out, err := run(t, cfg, "", "exists", "c")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = run(t, cfg, "", "rm", "c")
	require.NoError(t, err)

	out, err = run(t, cfg, "", "exists", "c")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	_, err = run(t, cfg, "", "get", "c")
	assert.ErrorIs(t, err, chunk.ErrNotFound)
}

func TestConcat(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "0123456789", "put", "target")
	require.NoError(t, err)
	_, err = run(t, cfg, "abc", "put", "a")
	require.NoError(t, err)
	_, err = run(t, cfg, "def", "put", "b")
	require.NoError(t, err)

	out, err := run(t, cfg, "", "concat", "target", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "target\t16\n", out)

	out, err = run(t, cfg, "", "get", "target")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", out)
}

func TestSealAndGC(t *testing.T) {
	cfg := writeConfig(t)
	_, err := run(t, cfg, "x", "put", "c")
	require.NoError(t, err)

	_, err = run(t, cfg, "", "seal", "c")
	require.NoError(t, err)
	_, err = run(t, cfg, "", "unseal", "c")
	require.NoError(t, err)
	_, err = run(t, cfg, "", "seal", "missing")
	assert.ErrorIs(t, err, chunk.ErrNotFound)

	out, err := run(t, cfg, "", "gc", "--min-age", "0s")
	require.NoError(t, err)
	assert.Equal(t, "deleted\t0\nfreed_bytes\t0\n", out)
}

func TestBadConfig(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "info", "x")
	assert.Error(t, err)
}
