// Package factory turns a config.Config into a ready chunk storage.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/logging"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore/local"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore/miniostore"
	"github.com/DanikLP1/s3-chunk-storage/internal/s3chunk"
)

type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer // nil disables metric registration
}

// New builds the client for cfg.Backend and a Storage that owns it. For the
// local backend a GC loop runs, when local.gc_interval > 0, until ctx is done
// or the Storage is closed.
func New(ctx context.Context, cfg config.Config, opts Options) (*s3chunk.Storage, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	client, err := NewClient(ctx, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	if ls, ok := client.(*local.Store); ok && cfg.Local.GCInterval > 0 {
		ls.StartGC(ctx, cfg.Local.GCInterval, cfg.Local.GCBatch)
	}

	opts.Logger.Info("chunk storage ready",
		"backend", cfg.Backend,
		"bucket", cfg.Storage.Bucket,
		"prefix", cfg.Storage.Prefix,
	)
	return s3chunk.New(client, cfg.Storage, true,
		s3chunk.WithLogger(opts.Logger),
		s3chunk.WithMetrics(opts.Registerer, cfg.Metrics.Namespace),
	), nil
}

// NewClient opens the object store client for cfg.Backend.
func NewClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (objstore.Client, error) {
	var (
		client objstore.Client
		err    error
	)
	switch cfg.Backend {
	case config.BackendS3:
		client, err = objstore.NewS3(ctx, cfg.Storage)
	case config.BackendMinIO:
		client, err = miniostore.New(cfg.Storage)
	case config.BackendLocal:
		client, err = OpenLocal(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return client, nil
}

// OpenLocal opens the local object store and makes sure the configured
// bucket exists in it.
func OpenLocal(ctx context.Context, cfg config.Config, logger *slog.Logger) (*local.Store, error) {
	store, err := local.Open(local.Options{
		DataDir: cfg.Local.DataDir,
		DBPath:  cfg.Local.DBPath,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	if err := store.CreateBucket(ctx, cfg.Storage.Bucket); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create bucket %s: %w", cfg.Storage.Bucket, err)
	}
	return store, nil
}
