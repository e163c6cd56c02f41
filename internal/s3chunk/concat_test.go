package s3chunk

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

func TestConcatSingleArgument(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 6}})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, []int32{1}, f.client.copies)
	assert.Equal(t, 1, f.client.completes)
	assert.Zero(t, f.client.aborts)
	assert.Equal(t, "012345", f.content(t, "target"))
}

func TestConcatAppendsSources(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abcdef")
	f.create(t, "b", "XYZ")

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{
		{Name: "target", Length: 10},
		{Name: "a", Length: 4},
		{Name: "b", Length: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
	assert.Equal(t, []int32{1, 2, 3}, f.client.copies)
	assert.Equal(t, "0123456789abcdXYZ", f.content(t, "target"))
	assert.Empty(t, f.openUploads(t, "target"))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.s.metrics.concatParts))
}

func TestConcatSkipsZeroLengthArguments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abc")

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{
		{Name: "target", Length: 10},
		{Name: "empty", Length: 0},
		{Name: "a", Length: 3},
		{Name: "also-empty", Length: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, []int32{1, 2}, f.client.copies, "part numbers stay dense")
	assert.Equal(t, "0123456789abc", f.content(t, "target"))
}

func TestConcatNothingToCopy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123")

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 0}, {Name: "x", Length: 0}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.client.copies)
	assert.Zero(t, f.client.completes)
	assert.Equal(t, 1, f.client.aborts)
	assert.Equal(t, "0123", f.content(t, "target"))
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatDeclaredLengthExceedsTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "abc")
	f.create(t, "big", "0123456789")

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{
		{Name: "target", Length: 3},
		{Name: "big", Length: 5},
	})
	assert.ErrorIs(t, err, chunk.ErrInvalidArgument)
	assert.Zero(t, n)
	assert.Equal(t, []int32{1}, f.client.copies, "no copy for the oversized source")
	assert.Zero(t, f.client.completes)
	assert.Equal(t, 1, f.client.aborts)
	assert.Equal(t, "abc", f.content(t, "target"))
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatMissingTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "a", "abc")

	_, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 3}, {Name: "a", Length: 3}})
	assert.ErrorIs(t, err, chunk.ErrNotFound)
	assert.Empty(t, f.client.copies)
	assert.Equal(t, 1, f.client.aborts)
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatPartCopyFailureAborts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abc")
	f.create(t, "b", "def")
	f.client.failCopyAt = 2

	n, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{
		{Name: "target", Length: 10},
		{Name: "a", Length: 3},
		{Name: "b", Length: 3},
	})
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, chunk.KindGeneric, chunk.KindOf(err))
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, []int32{1, 2}, f.client.copies, "stops at the first failure")
	assert.Zero(t, f.client.completes)
	assert.Equal(t, 1, f.client.aborts)
	assert.Equal(t, "0123456789", f.content(t, "target"))
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatCompleteFailureAborts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abc")
	f.client.failCommit = &objstore.APIError{Code: objstore.CodeAccessDenied, StatusCode: 403}

	_, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 10}, {Name: "a", Length: 3}})
	assert.ErrorIs(t, err, chunk.ErrAccessDenied)
	assert.Contains(t, err.Error(), "access denied for chunk target - concat")
	assert.Equal(t, 1, f.client.completes)
	assert.Equal(t, 1, f.client.aborts)
	assert.Equal(t, "0123456789", f.content(t, "target"))
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatAbortFailureIsReported(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abc")
	f.client.failCopyAt = 1
	f.client.failAbort = &objstore.APIError{Code: objstore.CodeAccessDenied, StatusCode: 403}

	_, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 10}, {Name: "a", Length: 3}})
	assert.ErrorIs(t, err, chunk.ErrAccessDenied, "abort failure replaces the copy failure")
	assert.ErrorIs(t, err, f.client.failAbort)
	assert.Equal(t, 1, f.client.aborts)
	assert.Equal(t, "0123456789", f.content(t, "target"))
}

func TestConcatInitiateFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.client.failInitiate = errInjected

	_, err := f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 10}})
	assert.ErrorIs(t, err, errInjected)
	assert.Zero(t, f.client.aborts, "no upload id, nothing to abort")
}

func TestConcatAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.create(t, "target", "0123456789")
	f.create(t, "a", "abc")
	f.client.failCopyAt = 2

	ctx, cancel := context.WithCancel(t.Context())
	f.client.onCopy = cancel

	_, err := f.s.Concat(ctx, []chunk.ConcatArgument{{Name: "target", Length: 10}, {Name: "a", Length: 3}})
	require.Error(t, err)
	assert.Equal(t, 1, f.client.aborts)
	assert.Empty(t, f.openUploads(t, "target"))
}

func TestConcatRejectsBadArguments(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.s.Concat(t.Context(), nil)
	assert.ErrorIs(t, err, chunk.ErrInvalidArgument)

	_, err = f.s.Concat(t.Context(), []chunk.ConcatArgument{{Name: "target", Length: 1}, {Name: "a", Length: -1}})
	assert.ErrorIs(t, err, chunk.ErrInvalidArgument)
	assert.Empty(t, f.client.copies)
	assert.Zero(t, f.client.aborts)
}
