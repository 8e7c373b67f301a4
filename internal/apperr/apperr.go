// Package apperr defines the error taxonomy shared by capture, analysis and session code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an Error.
type Code string

const (
	CodeCaptureUnavailable    Code = "CAPTURE_UNAVAILABLE"
	CodeCaptureStop           Code = "CAPTURE_STOP_ERROR"
	CodeEmptyAudio            Code = "EMPTY_AUDIO"
	CodeAudioTooLarge         Code = "AUDIO_TOO_LARGE"
	CodeBackendUnavailable    Code = "BACKEND_UNAVAILABLE"
	CodeAnalysisTimeout       Code = "ANALYSIS_TIMEOUT"
	CodeAnalysisRequestFailed Code = "ANALYSIS_REQUEST_FAILED"
	CodeMalformedResponse     Code = "MALFORMED_RESPONSE"

	CodeSessionActive Code = "SESSION_ACTIVE"
	CodeNoSession     Code = "NO_SESSION"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"
	CodeInternal      Code = "INTERNAL"
)

// Error is the unified error contract across layers.
type Error struct {
	Code    Code
	Op      string // operation name, ex: "analysis.Submit"
	Message string // human-readable message, safe to surface
	Err     error  // wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(code Code, op, msg string, err error) error {
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of the first *Error in the chain,
// falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status used by the control API.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeSessionActive, CodeInvalidState:
		return http.StatusConflict
	case CodeNoSession, CodeNotFound:
		return http.StatusNotFound
	case CodeEmptyAudio, CodeAudioTooLarge:
		return http.StatusUnprocessableEntity
	case CodeBackendUnavailable, CodeCaptureUnavailable:
		return http.StatusServiceUnavailable
	case CodeAnalysisTimeout:
		return http.StatusGatewayTimeout
	case CodeAnalysisRequestFailed, CodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
