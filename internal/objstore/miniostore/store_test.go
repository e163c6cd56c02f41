package miniostore

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/config"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

func TestSplitEndpoint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		host   string
		secure bool
		err    bool
	}{
		{in: "localhost:9000", host: "localhost:9000"},
		{in: "http://minio:9000", host: "minio:9000"},
		{in: "https://s3.example.com", host: "s3.example.com", secure: true},
		{in: "ftp://x", err: true},
		{in: "", err: true},
	}
	for _, tc := range tests {
		host, secure, err := splitEndpoint(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.host, host)
		assert.Equal(t, tc.secure, secure)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	s, err := New(config.Storage{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "b", Region: "us-east-1"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = New(config.Storage{})
	assert.Error(t, err)
}

func TestConvertError(t *testing.T) {
	t.Parallel()
	raw := minio.ErrorResponse{Code: "NoSuchKey", Message: "gone", StatusCode: http.StatusNotFound}
	err := convertError(raw)

	var apiErr *objstore.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, objstore.CodeNoSuchKey, apiErr.ErrorCode())
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatusCode())

	err = convertError(minio.ErrorResponse{StatusCode: http.StatusRequestedRangeNotSatisfiable})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, apiErr.HTTPStatusCode())

	plain := errors.New("dial tcp: refused")
	assert.Same(t, plain, convertError(plain))
	assert.NoError(t, convertError(nil))
}

func TestAnonymousPolicy(t *testing.T) {
	t.Parallel()

	doc, err := anonymousPolicy("chunks", "")
	require.NoError(t, err)
	assert.Empty(t, doc)

	doc, err = anonymousPolicy("chunks", types.PermissionRead)
	require.NoError(t, err)
	var p bucketPolicy
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	require.Len(t, p.Statement, 1)
	assert.Equal(t, []string{"s3:GetObject"}, p.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::chunks/*"}, p.Statement[0].Resource)

	doc, err = anonymousPolicy("chunks", types.PermissionFullControl)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(doc), &p))
	assert.Contains(t, p.Statement[0].Action, "s3:PutObject")
}

func TestGrantFromHeaders(t *testing.T) {
	t.Parallel()
	all := aws.String(objstore.AllUsersGrantee)
	assert.Equal(t, types.PermissionRead, grantFromHeaders("", all, nil))
	assert.Equal(t, types.PermissionFullControl, grantFromHeaders("", nil, all))
	assert.Equal(t, types.PermissionRead, grantFromHeaders("public-read", nil, nil))
	assert.Equal(t, types.Permission(""), grantFromHeaders("private", nil, nil))
	assert.Equal(t, types.Permission(""), grantFromHeaders("", aws.String(`id="someone"`), nil))
}
