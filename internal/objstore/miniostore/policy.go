package miniostore

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

// MinIO has no ACLs. Grants to AllUsers become an anonymous bucket policy.

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

var (
	readActions  = []string{"s3:GetObject"}
	writeActions = []string{"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:AbortMultipartUpload", "s3:ListMultipartUploadParts"}
)

// anonymousPolicy returns the policy document for grant, or "" for private.
func anonymousPolicy(bucket string, grant types.Permission) (string, error) {
	var actions []string
	switch grant {
	case types.PermissionRead:
		actions = readActions
	case types.PermissionFullControl, types.PermissionWrite:
		actions = writeActions
	default:
		return "", nil
	}
	doc, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    actions,
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	})
	return string(doc), err
}

// grantFromHeaders picks the strongest AllUsers grant from x-amz-grant-*
// style values or a canned ACL.
func grantFromHeaders(canned string, grantRead, grantFull *string) types.Permission {
	switch {
	case strings.Contains(aws.ToString(grantFull), objstore.AllUsersURI), canned == string(types.BucketCannedACLPublicReadWrite):
		return types.PermissionFullControl
	case strings.Contains(aws.ToString(grantRead), objstore.AllUsersURI), canned == string(types.BucketCannedACLPublicRead):
		return types.PermissionRead
	}
	return ""
}

func (s *Store) PutBucketAcl(ctx context.Context, in *s3.PutBucketAclInput, _ ...func(*s3.Options)) (*s3.PutBucketAclOutput, error) {
	bucket := aws.ToString(in.Bucket)
	doc, err := anonymousPolicy(bucket, grantFromHeaders(string(in.ACL), in.GrantRead, in.GrantFullControl))
	if err != nil {
		return nil, objstore.ErrInternal(err)
	}
	if err := s.core.SetBucketPolicy(ctx, bucket, doc); err != nil {
		return nil, convertError(err)
	}
	return &s3.PutBucketAclOutput{}, nil
}

// PutObjectAcl is not available: a bucket policy cannot be scoped to one
// object without clobbering the others.
func (s *Store) PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, _ ...func(*s3.Options)) (*s3.PutObjectAclOutput, error) {
	return nil, &objstore.APIError{
		Code:       "NotImplemented",
		Message:    "object ACLs are not supported by MinIO; use acl_scope bucket",
		StatusCode: http.StatusNotImplemented,
	}
}
