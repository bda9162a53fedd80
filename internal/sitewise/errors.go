package sitewise

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/iotsitewise/types"
	"github.com/aws/smithy-go"
)

var (
	// ErrUnavailable means no usable connection to the telemetry service
	// exists: configuration or credentials are missing or were rejected.
	ErrUnavailable = errors.New("telemetry service unavailable")

	// ErrNotFound means the requested asset, property or value does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidRef means a property reference names neither an alias nor
	// an asset/property id pair.
	ErrInvalidRef = errors.New("provide property_alias or both asset_id and property_id")
)

// Error kinds reported to tool callers.
const (
	KindUnavailable     = "service_unavailable"
	KindNotFound        = "not_found"
	KindUpstream        = "upstream_error"
	KindInvalidArgument = "invalid_argument"
)

// UpstreamError is any failure reported by the remote service that is not
// a missing resource.
type UpstreamError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// InvalidArgumentError marks caller mistakes detected before any remote call.
type InvalidArgumentError struct {
	Err error
}

func (e *InvalidArgumentError) Error() string { return e.Err.Error() }
func (e *InvalidArgumentError) Unwrap() error { return e.Err }

// InvalidArgument wraps err so that Kind reports it as invalid_argument.
func InvalidArgument(err error) error {
	return &InvalidArgumentError{Err: err}
}

// Kind maps an error returned by this package to the tag reported to callers.
func Kind(err error) string {
	var inv *InvalidArgumentError
	switch {
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidRef), errors.As(err, &inv):
		return KindInvalidArgument
	default:
		return KindUpstream
	}
}

// fatal reports whether err makes every further call pointless: the
// credentials were rejected or the caller may not read the fleet.
func fatal(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Code == "AccessDeniedException"
}

// classify converts an SDK error into this package's taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Op: op, Message: err.Error(), Err: err}
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, rnf.ErrorMessage())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidClientTokenId", "ExpiredTokenException",
			"MissingAuthenticationToken":
			return fmt.Errorf("%s: %w: %s", op, ErrUnavailable, apiErr.ErrorMessage())
		}
		return &UpstreamError{Op: op, Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage(), Err: err}
	}

	return &UpstreamError{Op: op, Message: err.Error(), Err: err}
}
