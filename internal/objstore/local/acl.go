package local

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/DanikLP1/s3-chunk-storage/internal/db"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

const aclPrivate = "private"

type aclRequest struct {
	canned    string
	policy    *types.AccessControlPolicy
	grantRead string
	grantFull string
}

// allUsersGrant reduces an ACL request to what the AllUsers group may do.
// The request replaces the previous ACL; canned ACLs are stored verbatim.
func allUsersGrant(req aclRequest) (string, error) {
	given := 0
	for _, set := range []bool{req.canned != "", req.policy != nil, req.grantRead != "" || req.grantFull != ""} {
		if set {
			given++
		}
	}
	if given > 1 {
		return "", objstore.ErrInvalidArgument("specify only one of a canned ACL, grant headers or an access control policy")
	}

	switch {
	case req.canned != "":
		return req.canned, nil
	case req.policy != nil:
		grant := aclPrivate
		for _, g := range req.policy.Grants {
			if g.Grantee == nil || g.Grantee.Type != types.TypeGroup || aws.ToString(g.Grantee.URI) != objstore.AllUsersURI {
				continue
			}
			if g.Permission == "" {
				return "", objstore.ErrInvalidArgument("grant without permission")
			}
			grant = string(g.Permission)
		}
		return grant, nil
	case strings.Contains(req.grantFull, objstore.AllUsersURI):
		return string(types.PermissionFullControl), nil
	case strings.Contains(req.grantRead, objstore.AllUsersURI):
		return string(types.PermissionRead), nil
	}
	return aclPrivate, nil
}

func (s *Store) PutBucketAcl(ctx context.Context, in *s3.PutBucketAclInput, _ ...func(*s3.Options)) (*s3.PutBucketAclOutput, error) {
	b, err := s.bucket(s.db.DB, aws.ToString(in.Bucket))
	if err != nil {
		return nil, err
	}
	grant, err := allUsersGrant(aclRequest{
		canned:    string(in.ACL),
		policy:    in.AccessControlPolicy,
		grantRead: aws.ToString(in.GrantRead),
		grantFull: aws.ToString(in.GrantFullControl),
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.SetBucketACL(b.ID, grant); err != nil {
		return nil, objstore.ErrInternal(err)
	}
	s.Logger.Debug("bucket_acl.set", "bucket", b.Name, "all_users", grant)
	return &s3.PutBucketAclOutput{}, nil
}

func (s *Store) PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	key := aws.ToString(in.Key)
	b, err := s.bucket(s.db.DB, aws.ToString(in.Bucket))
	if err != nil {
		return nil, err
	}
	grant, err := allUsersGrant(aclRequest{
		canned:    string(in.ACL),
		policy:    in.AccessControlPolicy,
		grantRead: aws.ToString(in.GrantRead),
		grantFull: aws.ToString(in.GrantFullControl),
	})
	if err != nil {
		return nil, err
	}
	err = s.db.SetObjectACL(b.ID, key, grant)
	if errors.Is(err, db.ErrNotFound) {
		return nil, objstore.ErrNoSuchKey(key)
	}
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	s.Logger.Debug("object_acl.set", "bucket", b.Name, "key", key, "all_users", grant)
	return &s3.PutObjectAclOutput{}, nil
}

// BucketACL reports the AllUsers grant stored for bucket.
func (s *Store) BucketACL(bucket string) (string, error) {
	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return "", err
	}
	return b.ACL, nil
}

// ObjectACL reports the AllUsers grant stored for bucket/key; empty when
// the object never had one set.
func (s *Store) ObjectACL(bucket, key string) (string, error) {
	b, err := s.bucket(s.db.DB, bucket)
	if err != nil {
		return "", err
	}
	obj, err := s.db.FindObject(b.ID, key)
	if errors.Is(err, db.ErrNotFound) {
		return "", objstore.ErrNoSuchKey(key)
	}
	if err != nil {
		return "", objstore.ErrInternal(err)
	}
	return obj.ACL, nil
}
