package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. Typed errors below report which one they belong to.
var (
	// ErrInvalidRequest is returned when a request is not fully populated.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedKind is returned when the host does not advertise the request's kind.
	ErrUnsupportedKind = errors.New("operation kind not supported by host")

	// ErrExecutorRejected is returned when the host refuses a request synchronously.
	ErrExecutorRejected = errors.New("executor rejected request")

	// ErrInvalidURL matches NetworkError with code NetworkErrInvalidURL.
	ErrInvalidURL = errors.New("invalid url")

	// ErrTransport matches NetworkError with code NetworkErrTransport.
	ErrTransport = errors.New("transport failure")

	// ErrHTTPStatus matches NetworkError with code NetworkErrStatus.
	ErrHTTPStatus = errors.New("http status failure")

	// ErrFileRead matches FileReadError.
	ErrFileRead = errors.New("file read failure")

	// ErrFileCreate matches FileWriteError with code FileWriteErrCreate.
	ErrFileCreate = errors.New("failed to create new file")

	// ErrFileWrite matches FileWriteError with code FileWriteErrHandle.
	ErrFileWrite = errors.New("failed to write to file handle")

	// ErrStreamFinished is returned by a subscription once the producer finished and
	// every queued value was consumed.
	ErrStreamFinished = errors.New("stream finished")

	// ErrSubscriptionCancelled is returned by a subscription cancelled from either side.
	ErrSubscriptionCancelled = errors.New("subscription cancelled")
)

// NetworkErrorCode classifies a NetworkError.
type NetworkErrorCode string

const (
	// NetworkErrInvalidURL: the url string could not be turned into a request.
	NetworkErrInvalidURL NetworkErrorCode = "invalid_url"
	// NetworkErrTransport: no HTTP response was obtained.
	NetworkErrTransport NetworkErrorCode = "transport"
	// NetworkErrStatus: a response was obtained with a non-2xx status.
	NetworkErrStatus NetworkErrorCode = "status"
)

// NetworkError is the failure payload of a network operation.
type NetworkError struct {
	Code           NetworkErrorCode `json:"code"`
	URL            string           `json:"url,omitempty"`
	StatusCode     uint16           `json:"status_code,omitempty"`
	Underlying     string           `json:"underlying,omitempty"`
	GatewayMessage string           `json:"gateway_message,omitempty"`
}

func (e *NetworkError) Error() string {
	switch e.Code {
	case NetworkErrInvalidURL:
		return fmt.Sprintf("failed to create url from %q: %s", e.URL, e.Underlying)
	case NetworkErrStatus:
		if e.GatewayMessage != "" {
			return fmt.Sprintf("request failed with status %d: %s (gateway: %s)", e.StatusCode, e.Underlying, e.GatewayMessage)
		}
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Underlying)
	default:
		return fmt.Sprintf("request transport failed: %s", e.Underlying)
	}
}

func (e *NetworkError) Is(target error) bool {
	switch target {
	case ErrInvalidURL:
		return e.Code == NetworkErrInvalidURL
	case ErrInvalidRequest:
		return e.Code == NetworkErrInvalidURL
	case ErrTransport:
		return e.Code == NetworkErrTransport
	case ErrHTTPStatus:
		return e.Code == NetworkErrStatus
	}
	return false
}

// FileReadError is the failure payload of a file read.
type FileReadError struct {
	Path       string `json:"path"`
	Underlying string `json:"underlying"`
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %s", e.Path, e.Underlying)
}

func (e *FileReadError) Is(target error) bool { return target == ErrFileRead }

// FileWriteErrorCode classifies a FileWriteError.
type FileWriteErrorCode string

const (
	FileWriteErrCreate FileWriteErrorCode = "create_file"
	FileWriteErrHandle FileWriteErrorCode = "write_handle"
)

// FileWriteError is the failure payload of a file write.
type FileWriteError struct {
	Code       FileWriteErrorCode `json:"code"`
	Path       string             `json:"path"`
	Underlying string             `json:"underlying"`
}

func (e *FileWriteError) Error() string {
	if e.Code == FileWriteErrCreate {
		return fmt.Sprintf("failed to create new file %s: %s", e.Path, e.Underlying)
	}
	return fmt.Sprintf("failed to write to file handle %s: %s", e.Path, e.Underlying)
}

func (e *FileWriteError) Is(target error) bool {
	switch target {
	case ErrFileCreate:
		return e.Code == FileWriteErrCreate
	case ErrFileWrite:
		return e.Code == FileWriteErrHandle
	}
	return false
}

// RequestError reports a request that failed validation before dispatch.
type RequestError struct {
	Kind   OperationKind `json:"kind"`
	Field  string        `json:"field"`
	Reason string        `json:"reason"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid %s request: %s %s", e.Kind, e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// DispatchError is returned synchronously when a request never reaches the host.
// The listener for such a request is never invoked.
type DispatchError struct {
	Kind OperationKind
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ContractViolation is the panic value raised when either side breaks the wiring contract
// (listener notified twice, outcome of the wrong kind, ...). It signals a bug, not a
// runtime condition, and is never returned as an error.
type ContractViolation struct {
	Rule   string
	Detail string
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation: %s: %s", c.Rule, c.Detail)
}

// Violate panics with a ContractViolation.
func Violate(rule, format string, args ...any) {
	panic(&ContractViolation{Rule: rule, Detail: fmt.Sprintf(format, args...)})
}
