package proxy

import "errors"

// ProxyError represents a domain error from the virtual filesystem proxy.
//
// These are business errors (malformed path, cross-fileset rename) as
// opposed to I/O errors from the physical drivers, which propagate
// unchanged.
type ProxyError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the logical or physical path related to the error
	Path string

	// cause is the wrapped underlying error, if any
	cause error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any.
func (e *ProxyError) Unwrap() error {
	return e.cause
}

// ErrorCode represents the category of a proxy error.
type ErrorCode int

const (
	// ErrFormat indicates a malformed logical path. Raised before any
	// network call.
	ErrFormat ErrorCode = iota

	// ErrConfiguration indicates a missing or invalid setting. Raised at
	// initialization, fatal.
	ErrConfiguration

	// ErrNotFound indicates the catalog or fileset is absent. Surfaced to
	// the caller, not retried.
	ErrNotFound

	// ErrValidation indicates a rejected operation (cross-fileset rename,
	// caller context refused by the metadata service). Never retried.
	ErrValidation

	// ErrDriverConstruction wraps a physical driver construction failure
	// with scheme and URI context. Not cached, so a later call retries.
	ErrDriverConstruction

	// ErrClosed indicates the proxy has been shut down
	ErrClosed
)

// IsCode reports whether err is a ProxyError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *ProxyError
	return errors.As(err, &pe) && pe.Code == code
}

func formatError(message, path string) *ProxyError {
	return &ProxyError{Code: ErrFormat, Message: message, Path: path}
}

func validationError(message, path string) *ProxyError {
	return &ProxyError{Code: ErrValidation, Message: message, Path: path}
}

func driverError(message, path string, cause error) *ProxyError {
	return &ProxyError{Code: ErrDriverConstruction, Message: message, Path: path, cause: cause}
}
