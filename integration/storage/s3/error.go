package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Error is an S3 failure with the HTTP status a handler should answer with.
type Error struct {
	msg    string
	status int
}

func (e *Error) Error() string   { return e.msg }
func (e *Error) StatusCode() int { return e.status }

var (
	ErrInvalidConfig      = &Error{"s3: bucket and region are required", http.StatusInternalServerError}
	ErrObjectNotFound     = &Error{"s3: object not found", http.StatusNotFound}
	ErrBucketNotFound     = &Error{"s3: bucket not found", http.StatusNotFound}
	ErrAccessDenied       = &Error{"s3: access denied", http.StatusForbidden}
	ErrOperationTimeout   = &Error{"s3: operation timed out", http.StatusGatewayTimeout}
	ErrOperationCanceled  = &Error{"s3: operation canceled", http.StatusServiceUnavailable}
	ErrRequestTimeout     = &Error{"s3: request timeout", http.StatusGatewayTimeout}
	ErrServiceUnavailable = &Error{"s3: service unavailable", http.StatusServiceUnavailable}
	ErrInvalidObjectState = &Error{"s3: object is archived", http.StatusConflict}
)

// classifyS3Error maps SDK errors onto the sentinels above, keeping the
// original error in the chain.
func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s operation", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s operation", ErrOperationCanceled, operation)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); code {
		case "AccessDenied":
			return fmt.Errorf("%w: %s operation", ErrAccessDenied, operation)
		case "RequestTimeout":
			return fmt.Errorf("%w: %s operation", ErrRequestTimeout, operation)
		case "SlowDown", "ServiceUnavailable":
			return fmt.Errorf("%w: %s operation", ErrServiceUnavailable, operation)
		case "InvalidObjectState":
			return fmt.Errorf("%w: %s operation", ErrInvalidObjectState, operation)
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
		default:
			return fmt.Errorf("%s operation failed (code: %s): %w", operation, code, err)
		}
	}

	return fmt.Errorf("%s operation failed: %w", operation, err)
}
