// Package errors provides the service error taxonomy.
// Every error that reaches a transport boundary is an *AppError carrying a Kind
// (client input, collaborator failure, internal) and a machine-readable Code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies who is responsible for an error.
type Kind int

const (
	// KindInternal is a fault inside this service.
	KindInternal Kind = iota
	// KindClientInput is a request the caller must fix. Never retried.
	KindClientInput
	// KindCollaborator is a failure reported by a model backend.
	KindCollaborator
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindCollaborator:
		return "collaborator"
	default:
		return "internal"
	}
}

// Code is a machine-readable error code.
type Code string

// Client input codes.
const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInvalidUserType   Code = "INVALID_USER_TYPE"
	CodeInvalidNoteType   Code = "INVALID_NOTE_TYPE"
	CodeEmptyBrief        Code = "EMPTY_BRIEF"
	CodeEmptyPrompt       Code = "EMPTY_PROMPT"
	CodeEmptyAudio        Code = "EMPTY_AUDIO"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeCorruptInput      Code = "CORRUPT_INPUT"
)

// Collaborator codes.
const (
	CodeModelUnavailable    Code = "MODEL_UNAVAILABLE"
	CodeTranscriptionFailed Code = "TRANSCRIPTION_FAILED"
	CodeBackendError        Code = "BACKEND_ERROR"
	CodeRateLimited         Code = "RATE_LIMITED"
)

// Internal codes.
const (
	CodeInternal  Code = "INTERNAL_ERROR"
	CodeCancelled Code = "CANCELLED"
)

// Collaborator sentinels. Backends wrap one of these so the orchestrators can
// classify failures with errors.Is without knowing the backend.
var (
	ErrUnsupportedFormat   = stderrors.New("unsupported audio format")
	ErrCorruptInput        = stderrors.New("corrupt audio input")
	ErrModelUnavailable    = stderrors.New("model unavailable")
	ErrTranscriptionFailed = stderrors.New("transcription failed")
	ErrBackend             = stderrors.New("backend error")
	ErrRateLimited         = stderrors.New("rate limited")
)

// AppError is the unified application error type.
type AppError struct {
	Kind      Kind           `json:"-"`
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"-"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the recommended HTTP status for this error.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindCollaborator:
		switch e.Code {
		case CodeRateLimited:
			return http.StatusTooManyRequests
		case CodeModelUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	}
	if e.Code == CodeCancelled {
		return 499
	}
	return http.StatusInternalServerError
}

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	switch e.Code {
	case CodeRateLimited:
		return codes.ResourceExhausted
	case CodeModelUnavailable:
		return codes.Unavailable
	case CodeCancelled:
		return codes.Canceled
	}
	switch e.Kind {
	case KindClientInput:
		return codes.InvalidArgument
	case KindCollaborator:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// ClientInput creates a non-retryable client input error.
func ClientInput(code Code, msg string) *AppError {
	return &AppError{Kind: KindClientInput, Code: code, Message: msg}
}

// Internal wraps err as an internal error.
func Internal(err error, msg string) *AppError {
	return &AppError{Kind: KindInternal, Code: CodeInternal, Message: msg, Cause: err}
}

// Collaborator classifies a backend error. The code is derived from the
// sentinel the backend wrapped; unknown errors become BACKEND_ERROR.
func Collaborator(err error, backend string) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	e := &AppError{Kind: KindCollaborator, Cause: err}
	switch {
	case stderrors.Is(err, ErrRateLimited):
		e.Code, e.Message, e.Retryable = CodeRateLimited, "The model backend is rate limiting requests.", true
	case stderrors.Is(err, ErrModelUnavailable):
		e.Code, e.Message, e.Retryable = CodeModelUnavailable, "The model backend is temporarily unavailable.", true
	case stderrors.Is(err, ErrTranscriptionFailed):
		e.Code, e.Message = CodeTranscriptionFailed, "The audio could not be transcribed."
	case stderrors.Is(err, ErrUnsupportedFormat):
		e.Kind, e.Code, e.Message = KindClientInput, CodeUnsupportedFormat, "The uploaded audio format is not supported."
	case stderrors.Is(err, ErrCorruptInput):
		e.Kind, e.Code, e.Message = KindClientInput, CodeCorruptInput, "The uploaded audio could not be decoded."
	default:
		e.Code, e.Message = CodeBackendError, "The model backend returned an error."
		e.Retryable = IsTransient(err)
	}
	return e.WithDetail("backend", backend)
}

// Cancelled reports a request abandoned by its caller.
func Cancelled(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: CodeCancelled, Message: "The request was cancelled.", Cause: err}
}

// transient marks a backend error as worth retrying (5xx, connection reset).
type transient struct{ err error }

func (t transient) Error() string { return t.err.Error() }
func (t transient) Unwrap() error { return t.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transient{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t transient
	return stderrors.As(err, &t)
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return stderrors.Is(err, ErrRateLimited) || stderrors.Is(err, ErrModelUnavailable) || IsTransient(err)
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
