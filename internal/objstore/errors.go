package objstore

import (
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

// APIError is a provider error produced by backends that do not go through
// the AWS SDK. It looks to callers exactly like an SDK error: a
// smithy.APIError carrying an S3 error code plus an HTTP status.
type APIError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error        { return e.Err }
func (e *APIError) ErrorCode() string    { return e.Code }
func (e *APIError) ErrorMessage() string { return e.Message }
func (e *APIError) HTTPStatusCode() int  { return e.StatusCode }
func (e *APIError) ErrorFault() smithy.ErrorFault {
	if e.StatusCode >= http.StatusInternalServerError {
		return smithy.FaultServer
	}
	return smithy.FaultClient
}

var _ smithy.APIError = (*APIError)(nil)

// S3 error codes used across backends.
const (
	CodeNoSuchKey          = "NoSuchKey"
	CodeNotFound           = "NotFound"
	CodeNoSuchBucket       = "NoSuchBucket"
	CodeNoSuchUpload       = "NoSuchUpload"
	CodePreconditionFailed = "PreconditionFailed"
	CodeInvalidRange       = "InvalidRange"
	CodeInvalidArgument    = "InvalidArgument"
	CodeMethodNotAllowed   = "MethodNotAllowed"
	CodeAccessDenied       = "AccessDenied"
	CodeInvalidPart        = "InvalidPart"
	CodeInvalidPartOrder   = "InvalidPartOrder"
	CodeMalformedXML       = "MalformedXML"
	CodeIncompleteBody     = "IncompleteBody"
	CodeInternalError      = "InternalError"
)

func ErrNoSuchKey(key string) *APIError {
	return &APIError{Code: CodeNoSuchKey, Message: "The specified key does not exist: " + key, StatusCode: http.StatusNotFound}
}

// ErrHeadNotFound mirrors the body-less 404 S3 returns for HEAD requests.
func ErrHeadNotFound() *APIError {
	return &APIError{Code: CodeNotFound, Message: "Not Found", StatusCode: http.StatusNotFound}
}

func ErrNoSuchBucket(bucket string) *APIError {
	return &APIError{Code: CodeNoSuchBucket, Message: "The specified bucket does not exist: " + bucket, StatusCode: http.StatusNotFound}
}

func ErrNoSuchUpload(uploadID string) *APIError {
	return &APIError{Code: CodeNoSuchUpload, Message: "The specified multipart upload does not exist: " + uploadID, StatusCode: http.StatusNotFound}
}

func ErrPreconditionFailed() *APIError {
	return &APIError{Code: CodePreconditionFailed, Message: "At least one of the pre-conditions you specified did not hold", StatusCode: http.StatusPreconditionFailed}
}

func ErrInvalidRange(rng string, size int64) *APIError {
	return &APIError{
		Code:       CodeInvalidRange,
		Message:    fmt.Sprintf("The requested range %s is not satisfiable for size %d", rng, size),
		StatusCode: http.StatusRequestedRangeNotSatisfiable,
	}
}

func ErrInvalidArgument(msg string) *APIError {
	return &APIError{Code: CodeInvalidArgument, Message: msg, StatusCode: http.StatusBadRequest}
}

func ErrInternal(err error) *APIError {
	return &APIError{Code: CodeInternalError, Message: "We encountered an internal error. Please try again.", StatusCode: http.StatusInternalServerError, Err: err}
}

// AllUsersURI is the grantee URI of the anonymous-access group.
const AllUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// AllUsersGrantee is AllUsersURI in x-amz-grant-* header form.
const AllUsersGrantee = `uri="` + AllUsersURI + `"`
