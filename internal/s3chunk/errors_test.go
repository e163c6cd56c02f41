package s3chunk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

type statusOnly int

func (s statusOnly) Error() string       { return fmt.Sprintf("http %d", int(s)) }
func (s statusOnly) HTTPStatusCode() int { return int(s) }

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind chunk.Kind
	}{
		{"no such key", objstore.ErrNoSuchKey("k"), chunk.KindNotFound},
		{"head not found", objstore.ErrHeadNotFound(), chunk.KindNotFound},
		{"sdk no such key", &types.NoSuchKey{}, chunk.KindNotFound},
		{"sdk not found", &types.NotFound{}, chunk.KindNotFound},
		{"precondition failed", objstore.ErrPreconditionFailed(), chunk.KindAlreadyExists},
		{"invalid range", objstore.ErrInvalidRange("bytes=9-9", 3), chunk.KindInvalidArgument},
		{"invalid argument", objstore.ErrInvalidArgument("bad"), chunk.KindInvalidArgument},
		{"method not allowed", &smithy.GenericAPIError{Code: objstore.CodeMethodNotAllowed}, chunk.KindInvalidArgument},
		{"bare 416", statusOnly(http.StatusRequestedRangeNotSatisfiable), chunk.KindInvalidArgument},
		{"access denied", &smithy.GenericAPIError{Code: objstore.CodeAccessDenied}, chunk.KindAccessDenied},
		{"no such bucket", objstore.ErrNoSuchBucket("b"), chunk.KindGeneric},
		{"internal", objstore.ErrInternal(errors.New("disk")), chunk.KindGeneric},
		{"bare 404", statusOnly(http.StatusNotFound), chunk.KindGeneric},
		{"context", context.Canceled, chunk.KindGeneric},
		{"wrapped", fmt.Errorf("send: %w", objstore.ErrNoSuchKey("k")), chunk.KindNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := translate("c", "read", tc.err)

			var ce *chunk.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.kind, ce.Kind)
			assert.Equal(t, "c", ce.Chunk)
			assert.Equal(t, "read", ce.Op)
			assert.ErrorIs(t, err, tc.err, "cause is kept")
		})
	}
}

func TestTranslateAccessDeniedMessage(t *testing.T) {
	t.Parallel()
	err := translate("seg-1", "delete", &smithy.GenericAPIError{Code: objstore.CodeAccessDenied})
	assert.ErrorIs(t, err, chunk.ErrAccessDenied)
	assert.Contains(t, err.Error(), "access denied for chunk seg-1 - delete")
}

func TestTranslatePassesChunkErrorsThrough(t *testing.T) {
	t.Parallel()
	orig := chunk.NotFound("other", "open_read", nil)
	assert.Same(t, orig, translate("c", "concat", orig))

	wrapped := fmt.Errorf("ctx: %w", orig)
	assert.Equal(t, wrapped, translate("c", "concat", wrapped))

	assert.NoError(t, translate("c", "read", nil))
}
