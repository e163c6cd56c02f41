package s3chunk

import (
	"errors"
	"net/http"

	"github.com/aws/smithy-go"

	"github.com/DanikLP1/s3-chunk-storage/internal/chunk"
	"github.com/DanikLP1/s3-chunk-storage/internal/objstore"
)

type httpStatusError interface {
	HTTPStatusCode() int
}

// providerSignal extracts the S3 error code and HTTP status from err, if any.
func providerSignal(err error) (code string, status int) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	var se httpStatusError
	if errors.As(err, &se) {
		status = se.HTTPStatusCode()
	}
	return code, status
}

// translate converts an object store failure into a *chunk.Error. Errors
// that already carry a *chunk.Error are returned unchanged.
func translate(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *chunk.Error
	if errors.As(err, &ce) {
		return err
	}

	code, status := providerSignal(err)
	switch {
	case code == objstore.CodeNoSuchKey || code == objstore.CodeNotFound:
		return chunk.NotFound(name, op, err)
	case code == objstore.CodePreconditionFailed:
		return chunk.AlreadyExists(name, op, err)
	case code == objstore.CodeInvalidRange,
		code == objstore.CodeInvalidArgument,
		code == objstore.CodeMethodNotAllowed,
		status == http.StatusRequestedRangeNotSatisfiable:
		return chunk.InvalidArgument(name, op, "", err)
	case code == objstore.CodeAccessDenied:
		return chunk.AccessDenied(name, op, err)
	}
	return chunk.Generic(name, op, err)
}
