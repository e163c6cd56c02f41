// Package s3chunk keeps chunks as objects in an S3-compatible bucket.
//
// Chunks are written whole by CreateWithContent and never modified in place;
// Concat grows a chunk by assembling a new object from copied parts through
// a multipart upload. Every error leaving the package is a *chunk.Error.
package s3chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/logging"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

const contentType = "application/octet-stream"

const maxPrealloc = 1 << 20

type Storage struct {
	client       objstore.Client
	owned        bool
	closed       atomic.Bool
	bucket       string
	prefix       string
	useNoneMatch bool
	aclScope     string

	log     *slog.Logger
	metrics *metrics
}

var _ chunk.Storage = (*Storage)(nil)

type Option func(*options)

type options struct {
	logger    *slog.Logger
	reg       prometheus.Registerer
	namespace string
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics registers the adapter's collectors on reg under namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.reg = reg
		o.namespace = namespace
	}
}

// New returns a Storage keeping chunks in cfg.Bucket under cfg.Prefix.
// When owned is set, Close also closes client.
func New(client objstore.Client, cfg config.Storage, owned bool, opts ...Option) *Storage {
	o := options{namespace: "chunkstore"}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	scope := cfg.ACLScope
	if scope == "" {
		scope = config.ACLScopeBucket
	}
	return &Storage{
		client:       client,
		owned:        owned,
		bucket:       cfg.Bucket,
		prefix:       config.NormalizePrefix(cfg.Prefix),
		useNoneMatch: cfg.UseNoneMatch,
		aclScope:     scope,
		log:          o.logger.With(slog.String("comp", "s3chunk"), slog.String("bucket", cfg.Bucket)),
		metrics:      newMetrics(o.reg, o.namespace),
	}
}

func (s *Storage) Capabilities() chunk.Capabilities {
	return chunk.Capabilities{Concat: true, Append: false, Truncate: false}
}

func (s *Storage) OpenRead(ctx context.Context, name string) (h chunk.Handle, err error) {
	const op = "open_read"
	defer s.track(op, time.Now(), &err)

	if err := s.mustExist(ctx, name, op); err != nil {
		return chunk.Handle{}, err
	}
	return chunk.ReadHandle(name), nil
}

// OpenWrite only succeeds for existing chunks; new chunks are made with
// CreateWithContent.
func (s *Storage) OpenWrite(ctx context.Context, name string) (h chunk.Handle, err error) {
	const op = "open_write"
	defer s.track(op, time.Now(), &err)

	if err := s.mustExist(ctx, name, op); err != nil {
		return chunk.Handle{}, err
	}
	return chunk.WriteHandle(name), nil
}

// Read fills buf[bufOffset:bufOffset+length] from the chunk starting at
// fromOffset. A chunk ending early yields a short count and no error.
func (s *Storage) Read(ctx context.Context, h chunk.Handle, fromOffset int64, length int, buf []byte, bufOffset int) (n int, err error) {
	const op = "read"
	defer s.track(op, time.Now(), &err)

	switch {
	case fromOffset < 0 || length < 0 || bufOffset < 0:
		return 0, chunk.InvalidArgument(h.Name, op, fmt.Sprintf("negative offset or length (from=%d length=%d buf_offset=%d)", fromOffset, length, bufOffset), nil)
	case bufOffset+length > len(buf):
		return 0, chunk.InvalidArgument(h.Name, op, fmt.Sprintf("buffer of %d bytes cannot hold %d bytes at %d", len(buf), length, bufOffset), nil)
	case length == 0:
		return 0, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectPath(h.Name)),
		Range:  aws.String(objstore.ByteRange(fromOffset, fromOffset+int64(length)-1)),
	})
	if err != nil {
		return 0, translate(h.Name, op, err)
	}
	defer out.Body.Close()

	n, err = io.ReadFull(out.Body, buf[bufOffset:bufOffset+length])
	s.metrics.bytes.WithLabelValues("read").Add(float64(n))
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		s.log.Debug("read.short", "chunk", h.Name, "want", length, "got", n)
		return n, nil
	}
	if err != nil {
		return n, translate(h.Name, op, err)
	}
	return n, nil
}

func (s *Storage) Write(ctx context.Context, h chunk.Handle, offset int64, length int, data io.Reader) (n int, err error) {
	const op = "write"
	defer s.track(op, time.Now(), &err)
	return 0, chunk.Unsupported(h.Name, op, "objects cannot be written after creation")
}

func (s *Storage) Create(ctx context.Context, name string) (h chunk.Handle, err error) {
	const op = "create"
	defer s.track(op, time.Now(), &err)
	return chunk.Handle{}, chunk.Unsupported(name, op, "chunks must be created with content")
}

// CreateWithContent uploads exactly length bytes from data as a new chunk.
// With use_none_match set an existing chunk is reported as AlreadyExists
// instead of being replaced.
func (s *Storage) CreateWithContent(ctx context.Context, name string, length int64, data io.Reader) (h chunk.Handle, err error) {
	const op = "create_with_content"
	defer s.track(op, time.Now(), &err)

	if length < 0 {
		return chunk.Handle{}, chunk.InvalidArgument(name, op, fmt.Sprintf("negative length %d", length), nil)
	}
	// The SDK signs request bodies, so it needs a seekable one.
	// length is caller-declared; the buffer only grows as data arrives
	var body bytes.Buffer
	body.Grow(int(min(length, maxPrealloc)))
	if _, err := io.CopyN(&body, data, length); err != nil {
		if errors.Is(err, io.EOF) {
			return chunk.Handle{}, chunk.InvalidArgument(name, op, fmt.Sprintf("data ended after %d of %d bytes", body.Len(), length), err)
		}
		return chunk.Handle{}, chunk.Generic(name, op, err)
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectPath(name)),
		Body:          bytes.NewReader(body.Bytes()),
		ContentLength: aws.Int64(length),
		ContentType:   aws.String(contentType),
	}
	if s.useNoneMatch {
		in.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		s.log.Warn("create.put_fail", "chunk", name, "length", length, "err", err)
		return chunk.Handle{}, translate(name, op, err)
	}
	s.metrics.bytes.WithLabelValues("write").Add(float64(length))
	s.log.Debug("create.ok", "chunk", name, "length", length)
	return chunk.WriteHandle(name), nil
}

// Delete removes the chunk. Deleting a missing chunk is not an error.
func (s *Storage) Delete(ctx context.Context, h chunk.Handle) (err error) {
	const op = "delete"
	defer s.track(op, time.Now(), &err)

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectPath(h.Name)),
	})
	if err != nil {
		return translate(h.Name, op, err)
	}
	s.log.Debug("delete.ok", "chunk", h.Name)
	return nil
}

func (s *Storage) Info(ctx context.Context, name string) (info chunk.Info, err error) {
	const op = "info"
	defer s.track(op, time.Now(), &err)

	size, err := s.objectSize(ctx, s.objectPath(name))
	if err != nil {
		return chunk.Info{}, translate(name, op, err)
	}
	return chunk.Info{Name: name, Length: size}, nil
}

// Exists reports whether the chunk is present. Only transport and provider
// failures are errors.
func (s *Storage) Exists(ctx context.Context, name string) (ok bool, err error) {
	const op = "exists"
	defer s.track(op, time.Now(), &err)
	return s.exists(ctx, name, op)
}

func (s *Storage) exists(ctx context.Context, name, op string) (bool, error) {
	_, err := s.objectSize(ctx, s.objectPath(name))
	if err == nil {
		return true, nil
	}
	err = translate(name, op, err)
	if errors.Is(err, chunk.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (s *Storage) mustExist(ctx context.Context, name, op string) error {
	ok, err := s.exists(ctx, name, op)
	if err != nil {
		return err
	}
	if !ok {
		return chunk.NotFound(name, op, nil)
	}
	return nil
}

// objectSize returns the stored length of the object at key, untranslated.
func (s *Storage) objectSize(ctx context.Context, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Close releases the client if this Storage owns it. Only the first call
// has any effect.
func (s *Storage) Close() error {
	if !s.owned || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.log.Debug("close.client")
	return s.client.Close()
}
