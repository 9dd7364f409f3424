// Package errors defines the error taxonomy shared by the indexing and search
// paths, plus the mapping from those errors to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrIndexingFailed   = errors.New("indexing failed")
	ErrParse            = errors.New("query parse error")
	ErrUnknownField     = errors.New("unknown field")
	ErrEmptyQuery       = errors.New("empty query")
	ErrInvalidLimit     = errors.New("limit must be a positive integer")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAnalyzerMismatch = errors.New("analyzer mismatch")
	ErrReadOnly         = errors.New("index is read-only")
	ErrClosed           = errors.New("index is closed")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// IndexingError reports a write-path failure for one document. The index is
// left at its last good commit.
type IndexingError struct {
	DocID string
	Err   error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing document %q: %v", e.DocID, e.Err)
}

func (e *IndexingError) Unwrap() []error {
	return []error{ErrIndexingFailed, e.Err}
}

// ParseError reports a malformed query.
type ParseError struct {
	Query  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing query %q: %s", e.Query, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// UnknownFieldError reports a field:term restriction naming a field outside
// the schema.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IndexingFailed wraps cause into an *IndexingError for docID unless it
// already is one.
func IndexingFailed(docID string, cause error) error {
	var ie *IndexingError
	if errors.As(cause, &ie) {
		return cause
	}
	return &IndexingError{DocID: docID, Err: cause}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrParse),
		errors.Is(err, ErrUnknownField), errors.Is(err, ErrInvalidLimit),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrReadOnly):
		return http.StatusMethodNotAllowed
	case errors.Is(err, ErrClosed), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
