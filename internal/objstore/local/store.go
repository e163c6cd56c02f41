// Package local is an in-process S3 emulator: object bytes live in blob
// files managed by fsdriver, and buckets, objects and multipart sessions are
// tracked in sqlite through gorm. It speaks the same error codes as S3 so
// chunk storage behaves identically against it.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"

	"github.com/DanikLP1/s3-chunk-storage/internal/db"
	"github.com/DanikLP1/s3-chunk-storage/internal/logging"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
	"github.com/DanikLP1/s3-chunk-storage/internal/storage"
	"github.com/DanikLP1/s3-chunk-storage/internal/storage/fsdriver"
)

const defaultContentType = "application/octet-stream"

type Options struct {
	DataDir string
	DBPath  string // relative paths are resolved against DataDir
	Logger  *slog.Logger
}

type Store struct {
	db     *db.DB
	blobs  *storage.Storage
	Logger *slog.Logger

	gcMu   sync.Mutex
	gcStop context.CancelFunc
	gcDone chan struct{}
}

var _ objstore.Client = (*Store)(nil)

// Open creates DataDir if needed and opens (or initialises) the metadata db.
func Open(opts Options) (*Store, error) {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, err
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = "meta.db"
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(opts.DataDir, dbPath)
	}
	database, err := db.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	return New(database, fsdriver.New(opts.DataDir), opts.Logger), nil
}

func New(database *db.DB, d storage.StorageDriver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		db:     database,
		blobs:  storage.NewWithDriver(d),
		Logger: logger.With(slog.String("comp", "objstore.local")),
	}
}

// Close stops the GC loop, if any, and closes the metadata db.
func (s *Store) Close() error {
	s.stopGC()
	return s.db.Close()
}

// CreateBucket makes sure bucket exists.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	_, err := s.db.EnsureBucket(bucket)
	return err
}

func (s *Store) bucket(tx *gorm.DB, name string) (*db.Bucket, error) {
	b, err := s.db.BucketByName(tx, name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrNoSuchBucket(name)
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	return b, nil
}

func etagFor(sum string) string { return `"sha256:` + sum + `"` }

func (s *Store) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	bucket, key := aws.ToString(in.Bucket), aws.ToString(in.Key)
	log := s.Logger.With(slog.String("bucket", bucket), slog.String("key", key))

	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return nil, err
	}
	obj, err := s.db.FindObject(b.ID, key)
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrNoSuchKey(key)
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}

	out := &s3.GetObjectOutput{
		ETag:        aws.String(obj.ETag),
		ContentType: aws.String(obj.ContentType),
	}
	first, last := int64(0), obj.Size-1
	if rng := aws.ToString(in.Range); rng != "" {
		first, last, err = objstore.ParseByteRange(rng)
		if err != nil {
			return nil, objstore.ErrInvalidArgument(err.Error())
		}
		if first >= obj.Size {
			log.Debug("get_object.bad_range", "range", rng, "size", obj.Size)
			return nil, objstore.ErrInvalidRange(rng, obj.Size)
		}
		last = min(last, obj.Size-1)
		out.ContentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", first, last, obj.Size))
	}

	length := last - first + 1
	rc, err := s.blobs.ReadAt(ctx, obj.BlobID, first, length)
	if err != nil {
		log.Error("get_object.read_fail", "blob_id", obj.BlobID, "err", err)
		return nil, objstore.ErrInternal(err)
	}
	out.Body = rc
	out.ContentLength = aws.Int64(length)
	log.Debug("get_object.ok", "blob_id", obj.BlobID, "first", first, "length", length)
	return out, nil
}

func (s *Store) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	bucket, key := aws.ToString(in.Bucket), aws.ToString(in.Key)
	log := s.Logger.With(slog.String("bucket", bucket), slog.String("key", key))

	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return nil, err
	}
	onlyIfAbsent := aws.ToString(in.IfNoneMatch) == "*"
	if onlyIfAbsent {
		if _, err := s.db.FindObject(b.ID, key); err == nil {
			return nil, objstore.ErrPreconditionFailed()
		}
	}

	body := in.Body
	if body == nil {
		body = bytes.NewReader(nil)
	}
	size := int64(-1)
	if in.ContentLength != nil {
		size = *in.ContentLength
	}
	ctype := aws.ToString(in.ContentType)
	if ctype == "" {
		ctype = defaultContentType
	}

	// ---- bytes first, outside the transaction ----
	blobID := s.db.GenBlobID()
	res, err := s.blobs.Put(ctx, blobID, body, size)
	if errors.Is(err, storage.ErrSizeMismatch) {
		log.Warn("put_object.bad_length", "want", size, "err", err)
		return nil, &objstore.APIError{Code: objstore.CodeIncompleteBody, Message: err.Error(), StatusCode: 400}
	}
	if err != nil {
		log.Error("put_object.write_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	etag := etagFor(res.SHA256)

	var replaced string
	err = s.db.WithTx(func(tx *gorm.DB) error {
		if onlyIfAbsent {
			if _, err := s.db.FindObjectTx(tx, b.ID, key); err == nil {
				return objstore.ErrPreconditionFailed()
			}
		}
		if err := s.db.CreateBlobTx(tx, blobID, res.Size, "sha256:"+res.SHA256); err != nil {
			return err
		}
		replaced, err = s.db.UpsertObjectTx(tx, b.ID, key, blobID, res.Size, etag, ctype)
		return err
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, blobID)
		var apiErr *objstore.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		log.Error("put_object.tx_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	if replaced != "" {
		s.dropBlobs(ctx, replaced)
	}

	log.Debug("put_object.ok", "blob_id", blobID, "size", res.Size)
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (s *Store) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	b, err := s.db.BucketByName(s.db.DB, aws.ToString(in.Bucket))
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrHeadNotFound()
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	obj, err := s.db.FindObject(b.ID, aws.ToString(in.Key))
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrHeadNotFound()
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(obj.ETag),
	}, nil
}

// DeleteObject succeeds for missing keys, as S3 does.
func (s *Store) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	bucket, key := aws.ToString(in.Bucket), aws.ToString(in.Key)
	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return nil, err
	}
	var blobID string
	err = s.db.WithTx(func(tx *gorm.DB) error {
		blobID, err = s.db.DeleteObjectTx(tx, b.ID, key)
		return err
	})
	if errors.Is(err, db.ErrNotFound) {
		return &s3.DeleteObjectOutput{}, nil
	}
	if err != nil {
		s.Logger.Error("delete_object.tx_fail", "bucket", bucket, "key", key, "err", err)
		return nil, objstore.ErrInternal(err)
	}
	s.dropBlobs(ctx, blobID)
	s.Logger.Debug("delete_object.ok", "bucket", bucket, "key", key, "blob_id", blobID)
	return &s3.DeleteObjectOutput{}, nil
}

// dropBlobs removes blob bytes and records. Failures are left for GC.
func (s *Store) dropBlobs(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if err := s.blobs.Delete(ctx, id); err != nil {
			s.Logger.Warn("blob.delete_fail", "blob_id", id, "err", err)
			continue
		}
		if err := s.db.DeleteBlobRecordTx(s.db.DB, id); err != nil {
			s.Logger.Warn("blob.record_delete_fail", "blob_id", id, "err", err)
		}
	}
}

func normalizeETag(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
