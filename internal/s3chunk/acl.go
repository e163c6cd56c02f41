package s3chunk

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

// SetReadOnly grants anonymous users READ (readOnly) or FULL_CONTROL.
// With the default bucket scope the grant applies to the whole bucket, not
// just h; acl_scope "object" narrows it to the chunk's object.
func (s *Storage) SetReadOnly(ctx context.Context, h chunk.Handle, readOnly bool) (err error) {
	const op = "set_read_only"
	defer s.track(op, time.Now(), &err)

	var grantRead, grantFull *string
	if readOnly {
		grantRead = aws.String(objstore.AllUsersGrantee)
	} else {
		grantFull = aws.String(objstore.AllUsersGrantee)
	}

	if s.aclScope == config.ACLScopeObject {
		_, err = s.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
			Bucket:           aws.String(s.bucket),
			Key:              aws.String(s.objectPath(h.Name)),
			GrantRead:        grantRead,
			GrantFullControl: grantFull,
		})
	} else {
		_, err = s.client.PutBucketAcl(ctx, &s3.PutBucketAclInput{
			Bucket:           aws.String(s.bucket),
			GrantRead:        grantRead,
			GrantFullControl: grantFull,
		})
	}
	if err != nil {
		return translate(h.Name, op, err)
	}
	s.log.Debug("acl.set", "chunk", h.Name, "read_only", readOnly, "scope", s.aclScope)
	return nil
}
