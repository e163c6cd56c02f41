package s3chunk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

const opConcat = "concat"

// Concat appends the leading bytes of each argument to args[0], the target,
// and returns the number of bytes concatenated. The target is rebuilt from
// copied parts (itself first), so either all parts land or none do.
func (s *Storage) Concat(ctx context.Context, args []chunk.ConcatArgument) (total int64, err error) {
	defer s.track(opConcat, time.Now(), &err)

	if len(args) == 0 {
		return 0, chunk.InvalidArgument("", opConcat, "no chunks to concatenate", nil)
	}
	target := args[0].Name
	for _, a := range args {
		if a.Length < 0 {
			return 0, chunk.InvalidArgument(target, opConcat, fmt.Sprintf("negative length %d for %s", a.Length, a.Name), nil)
		}
	}

	m := &multipartSession{
		s:          s,
		target:     target,
		targetPath: s.objectPath(target),
		log:        s.log.With(slog.String("chunk", target)),
	}
	return m.run(ctx, args)
}

// multipartSession drives one concat call. It is never reused.
type multipartSession struct {
	s          *Storage
	target     string
	targetPath string
	uploadID   string
	parts      []types.CompletedPart
	completed  bool
	log        *slog.Logger
}

func (m *multipartSession) run(ctx context.Context, args []chunk.ConcatArgument) (total int64, err error) {
	defer func() {
		if m.completed || m.uploadID == "" {
			return
		}
		if abortErr := m.abort(ctx); abortErr != nil {
			m.log.Error("concat.abort_fail", "upload_id", m.uploadID, "err", abortErr, "cause", err)
			total, err = 0, translate(m.target, opConcat, abortErr)
			return
		}
		m.log.Info("concat.aborted", "upload_id", m.uploadID, "cause", err)
	}()

	if err := m.initiate(ctx); err != nil {
		return 0, translate(m.target, opConcat, err)
	}
	m.log.Debug("concat.start", "upload_id", m.uploadID, "args", len(args))

	if err := m.s.mustExist(ctx, m.target, opConcat); err != nil {
		return 0, err
	}

	for _, a := range args {
		if a.Length == 0 {
			continue
		}
		size, err := m.s.objectSize(ctx, m.targetPath)
		if err != nil {
			return 0, translate(m.target, opConcat, err)
		}
		if size < a.Length {
			return 0, chunk.InvalidArgument(m.target, opConcat,
				fmt.Sprintf("target holds %d bytes but %d were declared for %s", size, a.Length, a.Name), nil)
		}
		if err := m.copyPart(ctx, a); err != nil {
			return 0, translate(m.target, opConcat, err)
		}
		total += a.Length
	}

	if len(m.parts) == 0 {
		m.log.Debug("concat.nothing_to_copy", "upload_id", m.uploadID)
		return 0, nil
	}
	if err := m.complete(ctx); err != nil {
		return 0, translate(m.target, opConcat, err)
	}
	m.log.Debug("concat.completed", "upload_id", m.uploadID, "parts", len(m.parts), "bytes", total)
	return total, nil
}

func (m *multipartSession) initiate(ctx context.Context) error {
	out, err := m.s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(m.s.bucket),
		Key:         aws.String(m.targetPath),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}
	m.uploadID = aws.ToString(out.UploadId)
	return nil
}

// copyPart copies bytes [0, a.Length) of a into the next part number.
func (m *multipartSession) copyPart(ctx context.Context, a chunk.ConcatArgument) error {
	partNumber := int32(len(m.parts) + 1)
	out, err := m.s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(m.s.bucket),
		Key:             aws.String(m.targetPath),
		UploadId:        aws.String(m.uploadID),
		PartNumber:      aws.Int32(partNumber),
		CopySource:      aws.String(objstore.CopySource(m.s.bucket, m.s.objectPath(a.Name))),
		CopySourceRange: aws.String(objstore.ByteRange(0, a.Length-1)),
	})
	if err != nil {
		m.log.Warn("concat.copy_fail", "upload_id", m.uploadID, "part", partNumber, "src", a.Name, "err", err)
		return err
	}
	var etag *string
	if out.CopyPartResult != nil {
		etag = out.CopyPartResult.ETag
	}
	m.parts = append(m.parts, types.CompletedPart{ETag: etag, PartNumber: aws.Int32(partNumber)})
	m.s.metrics.concatParts.Inc()
	m.log.Debug("concat.part_copied", "part", partNumber, "src", a.Name, "length", a.Length)
	return nil
}

// complete commits the parts in the order they were copied, which is
// ascending part number order.
func (m *multipartSession) complete(ctx context.Context) error {
	_, err := m.s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(m.s.bucket),
		Key:             aws.String(m.targetPath),
		UploadId:        aws.String(m.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: m.parts},
	})
	if err != nil {
		return err
	}
	m.completed = true
	return nil
}

// abort runs even when ctx is already cancelled so no upload is left behind.
func (m *multipartSession) abort(ctx context.Context) error {
	_, err := m.s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(m.s.bucket),
		Key:      aws.String(m.targetPath),
		UploadId: aws.String(m.uploadID),
	})
	return err
}
