package factory

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/logging"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore/local"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore/miniostore"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Backend: config.BackendLocal,
		Storage: config.Storage{Bucket: "chunks", Prefix: "seg/", ACLScope: config.ACLScopeBucket},
		Local:   config.Local{DataDir: t.TempDir(), DBPath: "meta.db", GCBatch: 10},
		Metrics: config.Metrics{Namespace: "fx"},
	}
}

func TestNewLocal(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	reg := prometheus.NewRegistry()

	s, err := New(ctx, localConfig(t), Options{Registerer: reg})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateWithContent(ctx, "a", 3, strings.NewReader("abc"))
	require.NoError(t, err)
	info, err := s.Info(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, chunk.Info{Name: "a", Length: 3}, info)

	n, err := testutil.GatherAndCount(reg, "fx_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewLocalReopensData(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	cfg := localConfig(t)

	s, err := New(ctx, cfg, Options{})
	require.NoError(t, err)
	_, err = s.CreateWithContent(ctx, "a", 3, strings.NewReader("abc"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = New(ctx, cfg, Options{})
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	cfg := localConfig(t)
	c, err := NewClient(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &local.Store{}, c)
	require.NoError(t, c.Close())

	cfg.Backend = config.BackendMinIO
	cfg.Storage.Endpoint = "http://localhost:9000"
	c, err = NewClient(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &miniostore.Store{}, c)
	require.NoError(t, c.Close())

	cfg.Backend = config.BackendS3
	cfg.Storage.AccessKey, cfg.Storage.SecretKey = "a", "b"
	c, err = NewClient(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &objstore.S3{}, c)
	require.NoError(t, c.Close())

	cfg.Backend = "ftp"
	_, err = NewClient(ctx, cfg, nil)
	assert.ErrorIs(t, err, config.ErrUnknownBackend)
}

func TestCloseStopsLocalGC(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	cfg := localConfig(t)
	cfg.Local.GCInterval = 5 * time.Millisecond

	s, err := New(context.Background(), cfg, Options{
		Logger: logging.New(logging.Config{Level: "debug", Output: &logs}),
	})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())

	time.Sleep(30 * time.Millisecond)
	out := logs.String()
	assert.Contains(t, out, "gc.stopped")
	assert.NotContains(t, out, "gc.query_fail")
}
