// Package miniostore implements objstore.Client on top of minio-go's Core
// API, for MinIO deployments and other stores the AWS SDK handles poorly.
package miniostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

type Store struct {
	core      *minio.Core
	transport *http.Transport
}

var _ objstore.Client = (*Store)(nil)

// New connects to cfg.Endpoint, which may be host:port or a full URL; an
// https scheme enables TLS.
func New(cfg config.Storage) (*Store, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	transport, err := minio.DefaultTransport(secure)
	if err != nil {
		return nil, fmt.Errorf("minio transport: %w", err)
	}
	lookup := minio.BucketLookupAuto
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}
	core, err := minio.NewCore(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		Transport:    transport,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{core: core, transport: transport}, nil
}

func splitEndpoint(endpoint string) (host string, secure bool, err error) {
	if endpoint == "" {
		return "", false, errors.New("minio backend needs storage.endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	}
	return "", false, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
}

func (s *Store) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}

// EnsureBucket creates bucket unless it already exists.
func (s *Store) EnsureBucket(ctx context.Context, bucket, region string) error {
	ok, err := s.core.BucketExists(ctx, bucket)
	if err != nil {
		return convertError(err)
	}
	if ok {
		return nil
	}
	return convertError(s.core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}))
}

// convertError re-expresses a minio error as an objstore.APIError so callers
// see the same shape as from the AWS SDK.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" && resp.StatusCode == 0 {
		return err
	}
	code := resp.Code
	if code == "" {
		code = http.StatusText(resp.StatusCode)
	}
	return &objstore.APIError{Code: code, Message: resp.Message, StatusCode: resp.StatusCode, Err: err}
}

func (s *Store) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	var opts minio.GetObjectOptions
	if rng := aws.ToString(in.Range); rng != "" {
		first, last, err := objstore.ParseByteRange(rng)
		if err != nil {
			return nil, objstore.ErrInvalidArgument(err.Error())
		}
		if err := opts.SetRange(first, last); err != nil {
			return nil, objstore.ErrInvalidArgument(err.Error())
		}
	}
	body, info, _, err := s.core.GetObject(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), opts)
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.GetObjectOutput{
		Body:          body,
		ContentLength: aws.Int64(info.Size),
		ContentType:   aws.String(info.ContentType),
		ETag:          aws.String(info.ETag),
	}, nil
}

func (s *Store) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	opts := minio.PutObjectOptions{ContentType: aws.ToString(in.ContentType)}
	if aws.ToString(in.IfNoneMatch) == "*" {
		opts.SetMatchETagExcept("*")
	}
	size := int64(-1)
	if in.ContentLength != nil {
		size = *in.ContentLength
	}
	body := in.Body
	if body == nil {
		body = bytes.NewReader(nil)
	}
	info, err := s.core.PutObject(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), body, size, "", "", opts)
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.PutObjectOutput{ETag: aws.String(info.ETag)}, nil
}

func (s *Store) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	info, err := s.core.StatObject(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), minio.StatObjectOptions{})
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(info.Size),
		ContentType:   aws.String(info.ContentType),
		ETag:          aws.String(info.ETag),
	}, nil
}

func (s *Store) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	err := s.core.RemoveObject(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), minio.RemoveObjectOptions{})
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (s *Store) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	id, err := s.core.NewMultipartUpload(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), minio.PutObjectOptions{
		ContentType: aws.ToString(in.ContentType),
	})
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: aws.String(id)}, nil
}

func (s *Store) UploadPartCopy(ctx context.Context, in *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
	srcBucket, srcKey, err := objstore.ParseCopySource(aws.ToString(in.CopySource))
	if err != nil {
		return nil, objstore.ErrInvalidArgument(err.Error())
	}
	// minio copies the whole source for a negative length
	start, length := int64(0), int64(-1)
	if rng := aws.ToString(in.CopySourceRange); rng != "" {
		first, last, err := objstore.ParseByteRange(rng)
		if err != nil {
			return nil, objstore.ErrInvalidArgument(err.Error())
		}
		start, length = first, last-first+1
	}
	part, err := s.core.CopyObjectPart(ctx, srcBucket, srcKey,
		aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId),
		int(aws.ToInt32(in.PartNumber)), start, length, nil)
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.UploadPartCopyOutput{
		CopyPartResult: &types.CopyPartResult{ETag: aws.String(part.ETag)},
	}, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	var parts []minio.CompletePart
	if in.MultipartUpload != nil {
		parts = make([]minio.CompletePart, 0, len(in.MultipartUpload.Parts))
		for _, p := range in.MultipartUpload.Parts {
			parts = append(parts, minio.CompletePart{PartNumber: int(aws.ToInt32(p.PartNumber)), ETag: aws.ToString(p.ETag)})
		}
	}
	info, err := s.core.CompleteMultipartUpload(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId), parts, minio.PutObjectOptions{})
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.CompleteMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, ETag: aws.String(info.ETag)}, nil
}

func (s *Store) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	err := s.core.AbortMultipartUpload(ctx, aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId))
	if err != nil {
		return nil, convertError(err)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}
