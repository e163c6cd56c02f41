package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/DanikLP1/s3-chunk-storage/internal/db"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

const maxPartNumber = 10000

func (s *Store) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	bucket, key := aws.ToString(in.Bucket), aws.ToString(in.Key)
	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return nil, err
	}
	ctype := aws.ToString(in.ContentType)
	if ctype == "" {
		ctype = defaultContentType
	}
	uploadID := ulid.Make().String()
	if err := s.db.CreateUpload(uploadID, b.ID, key, ctype); err != nil {
		s.Logger.Error("mpu.create_fail", "bucket", bucket, "key", key, "err", err)
		return nil, objstore.ErrInternal(err)
	}
	s.Logger.Debug("mpu.created", "bucket", bucket, "key", key, "upload_id", uploadID)
	return &s3.CreateMultipartUploadOutput{
		Bucket:   in.Bucket,
		Key:      in.Key,
		UploadId: aws.String(uploadID),
	}, nil
}

// upload loads uploadID and checks it belongs to bucket/key.
func (s *Store) upload(tx *gorm.DB, bucket, key, uploadID string) (*db.Bucket, *db.MultipartUpload, error) {
	b, err := s.bucket(tx, bucket)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.db.FindUploadTx(tx, uploadID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && (u.BucketID != b.ID || u.Key != key)) {
		return nil, nil, objstore.ErrNoSuchUpload(uploadID)
	}
	if err != nil {
		return nil, nil, objstore.ErrInternal(err)
	}
	return b, u, nil
}

func (s *Store) UploadPartCopy(ctx context.Context, in *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
	bucket, key, uploadID := aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId)
	partNumber := aws.ToInt32(in.PartNumber)
	log := s.Logger.With(slog.String("upload_id", uploadID), slog.Int("part", int(partNumber)))

	if partNumber < 1 || partNumber > maxPartNumber {
		return nil, objstore.ErrInvalidArgument(fmt.Sprintf("part number must be between 1 and %d", maxPartNumber))
	}
	if _, _, err := s.upload(s.db.DB, bucket, key, uploadID); err != nil {
		return nil, err
	}

	srcBucket, srcKey, err := objstore.ParseCopySource(aws.ToString(in.CopySource))
	if err != nil {
		return nil, objstore.ErrInvalidArgument(err.Error())
	}
	sb, err := s.bucket(s.db.DB, srcBucket)
	if err != nil {
		return nil, err
	}
	src, err := s.db.FindObject(sb.ID, srcKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrNoSuchKey(srcKey)
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}

	first, last := int64(0), src.Size-1
	if rng := aws.ToString(in.CopySourceRange); rng != "" {
		if first, last, err = objstore.ParseByteRange(rng); err != nil {
			return nil, objstore.ErrInvalidArgument(err.Error())
		}
		if last >= src.Size {
			log.Debug("mpu.copy_bad_range", "range", rng, "size", src.Size)
			return nil, objstore.ErrInvalidRange(rng, src.Size)
		}
	}

	rc, err := s.blobs.ReadAt(ctx, src.BlobID, first, last-first+1)
	if err != nil {
		log.Error("mpu.copy_read_fail", "blob_id", src.BlobID, "err", err)
		return nil, objstore.ErrInternal(err)
	}
	blobID := s.db.GenBlobID()
	res, err := s.blobs.Put(ctx, blobID, rc, last-first+1)
	_ = rc.Close()
	if err != nil {
		log.Error("mpu.copy_write_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	etag := etagFor(res.SHA256)

	var replaced string
	err = s.db.WithTx(func(tx *gorm.DB) error {
		if _, _, err := s.upload(tx, bucket, key, uploadID); err != nil {
			return err
		}
		if err := s.db.CreateBlobTx(tx, blobID, res.Size, "sha256:"+res.SHA256); err != nil {
			return err
		}
		replaced, err = s.db.PutPartTx(tx, db.MultipartPart{
			UploadID: uploadID, PartNumber: partNumber, BlobID: blobID, Size: res.Size, ETag: etag,
		})
		return err
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, blobID)
		var apiErr *objstore.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		log.Error("mpu.copy_tx_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	if replaced != "" {
		s.dropBlobs(ctx, replaced)
	}

	log.Debug("mpu.part_copied", "src", srcKey, "size", res.Size)
	return &s3.UploadPartCopyOutput{
		CopyPartResult: &types.CopyPartResult{ETag: aws.String(etag)},
	}, nil
}

func (s *Store) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	bucket, key, uploadID := aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId)
	log := s.Logger.With(slog.String("upload_id", uploadID), slog.String("key", key))

	b, u, err := s.upload(s.db.DB, bucket, key, uploadID)
	if err != nil {
		return nil, err
	}
	if in.MultipartUpload == nil || len(in.MultipartUpload.Parts) == 0 {
		return nil, &objstore.APIError{Code: objstore.CodeMalformedXML, Message: "no parts given", StatusCode: 400}
	}

	stored, err := s.db.ListPartsTx(s.db.DB, uploadID)
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	byNumber := make(map[int32]db.MultipartPart, len(stored))
	for _, p := range stored {
		byNumber[p.PartNumber] = p
	}

	blobIDs := make([]string, 0, len(in.MultipartUpload.Parts))
	prev := int32(0)
	for _, cp := range in.MultipartUpload.Parts {
		n := aws.ToInt32(cp.PartNumber)
		if n <= prev {
			return nil, &objstore.APIError{Code: objstore.CodeInvalidPartOrder, Message: "parts must be listed in ascending order", StatusCode: 400}
		}
		prev = n
		p, ok := byNumber[n]
		if !ok || normalizeETag(aws.ToString(cp.ETag)) != normalizeETag(p.ETag) {
			return nil, &objstore.APIError{Code: objstore.CodeInvalidPart, Message: fmt.Sprintf("part %d was not uploaded or its etag does not match", n), StatusCode: 400}
		}
		blobIDs = append(blobIDs, p.BlobID)
	}

	blobID := s.db.GenBlobID()
	res, err := s.blobs.Compose(ctx, blobID, blobIDs)
	if err != nil {
		log.Error("mpu.compose_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	etag := fmt.Sprintf(`"sha256:%s-%d"`, res.SHA256, len(blobIDs))

	var replaced string
	var partBlobs []string
	err = s.db.WithTx(func(tx *gorm.DB) error {
		if _, _, err := s.upload(tx, bucket, key, uploadID); err != nil {
			return err
		}
		if err := s.db.CreateBlobTx(tx, blobID, res.Size, "sha256:"+res.SHA256); err != nil {
			return err
		}
		if replaced, err = s.db.UpsertObjectTx(tx, b.ID, key, blobID, res.Size, etag, u.ContentType); err != nil {
			return err
		}
		partBlobs, err = s.db.DeleteUploadTx(tx, uploadID)
		return err
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, blobID)
		var apiErr *objstore.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		log.Error("mpu.complete_tx_fail", "err", err)
		return nil, objstore.ErrInternal(err)
	}
	if replaced != "" {
		partBlobs = append(partBlobs, replaced)
	}
	s.dropBlobs(ctx, partBlobs...)

	log.Debug("mpu.completed", "parts", len(blobIDs), "size", res.Size)
	return &s3.CompleteMultipartUploadOutput{
		Bucket: in.Bucket,
		Key:    in.Key,
		ETag:   aws.String(etag),
	}, nil
}

func (s *Store) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	bucket, key, uploadID := aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.UploadId)

	var partBlobs []string
	err := s.db.WithTx(func(tx *gorm.DB) error {
		if _, _, err := s.upload(tx, bucket, key, uploadID); err != nil {
			return err
		}
		var err error
		partBlobs, err = s.db.DeleteUploadTx(tx, uploadID)
		return err
	})
	if err != nil {
		var apiErr *objstore.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		s.Logger.Error("mpu.abort_tx_fail", "upload_id", uploadID, "err", err)
		return nil, objstore.ErrInternal(err)
	}
	s.dropBlobs(ctx, partBlobs...)
	s.Logger.Debug("mpu.aborted", "upload_id", uploadID, "parts", len(partBlobs))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// OpenUploads lists upload IDs still in progress for bucket/key.
func (s *Store) OpenUploads(bucket, key string) ([]string, error) {
	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return nil, err
	}
	return s.db.ListUploadIDs(b.ID, key)
}
