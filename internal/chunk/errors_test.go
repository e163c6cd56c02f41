package chunk

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		err    *Error
		target error
	}{
		{NotFound("a", "read", cause), ErrNotFound},
		{AlreadyExists("a", "create", cause), ErrAlreadyExists},
		{InvalidArgument("a", "read", "bad range", cause), ErrInvalidArgument},
		{AccessDenied("a", "delete", cause), ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.ErrorIs(t, tt.err, cause)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.target)
			assert.Equal(t, tt.err.Kind, KindOf(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}

	g := Generic("a", "concat", cause)
	for _, target := range []error{ErrNotFound, ErrAlreadyExists, ErrInvalidArgument, ErrAccessDenied} {
		assert.NotErrorIs(t, g, target)
	}
	assert.ErrorIs(t, g, cause)
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := AccessDenied("seg-1", "delete", errors.New("403"))
	assert.Equal(t, `chunk "seg-1": delete: access denied for chunk seg-1 - delete: 403`, err.Error())

	err = NotFound("seg-2", "openRead", nil)
	assert.Equal(t, `chunk "seg-2": openRead: not found`, err.Error())
}

func TestUnsupported(t *testing.T) {
	t.Parallel()

	err := Unsupported("seg", "write", "objects are immutable")
	assert.ErrorIs(t, err, errors.ErrUnsupported)
	assert.Equal(t, KindGeneric, KindOf(err))
	assert.Equal(t, KindGeneric, KindOf(errors.New("plain")))
}
