package catalog

import "errors"

// ClientError represents a domain error from metadata service operations.
//
// These are business errors (catalog not found, request rejected) as
// opposed to transport failures. Callers translate ClientError codes to
// their own error surface; the proxy propagates them verbatim.
type ClientError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Resource names the catalog or fileset related to the error
	Resource string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Resource != "" {
		return e.Message + ": " + e.Resource
	}
	return e.Message
}

// ErrorCode represents the category of a metadata client error.
type ErrorCode int

const (
	// ErrConfiguration indicates a missing or invalid client setting.
	// Raised at Connect time, never at first use.
	ErrConfiguration ErrorCode = iota

	// ErrNotFound indicates the catalog or fileset does not exist
	ErrNotFound

	// ErrValidation indicates the service rejected the request
	// (bad caller context, unauthorized operation). Never retried.
	ErrValidation

	// ErrUnavailable indicates the service could not be reached or
	// returned an unexpected response
	ErrUnavailable
)

// IsNotFound reports whether err is a ClientError with ErrNotFound.
func IsNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Code == ErrNotFound
}

// IsValidation reports whether err is a ClientError with ErrValidation.
func IsValidation(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Code == ErrValidation
}
