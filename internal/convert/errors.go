package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ironsheep/vectorize-mcp/internal/imaging"
)

// ErrNoFile is reported when a request carries no image bytes.
var ErrNoFile = &ValidationError{Status: http.StatusBadRequest, Message: "No file uploaded."}

// ValidationError is a rejected request. The caller can fix it by sending
// different input. Status is the HTTP status class to report.
type ValidationError struct {
	Status  int
	Message string

	// Reason is set when the rejection came from the limit guard.
	Reason imaging.LimitReason
}

func (e *ValidationError) Error() string {
	return e.Message
}

// invalid returns a 400 ValidationError.
func invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// fromLimit maps a guard rejection to its status class: type and
// unreadable-dimension problems are 415, size problems 413.
func fromLimit(err error) error {
	var le *imaging.LimitError
	if !errors.As(err, &le) {
		return err
	}
	status := http.StatusBadRequest
	switch le.Reason {
	case imaging.ReasonUnsupportedType, imaging.ReasonUnreadableDimensions:
		status = http.StatusUnsupportedMediaType
	case imaging.ReasonUploadTooLarge, imaging.ReasonDimensionsTooLarge:
		status = http.StatusRequestEntityTooLarge
	}
	return &ValidationError{Status: status, Message: le.Message, Reason: le.Reason}
}

// ConversionError is a server-side failure while decoding or tracing.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for err: the ValidationError status, 504 for
// an expired deadline, 499 for a canceled request and 500 otherwise.
func Status(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return ve.Status
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// StatusClientClosedRequest is the non-standard status logged for requests
// the client abandoned.
const StatusClientClosedRequest = 499
