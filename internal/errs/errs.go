// Package errs defines the error taxonomy shared by the embedding, search and HTTP layers.
package errs

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors. Callers wrap them with fmt.Errorf("...: %w", err) and classify with errors.Is.
var (
	// ErrConfiguration means a required setting (service URL, credential, ...) is missing or invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnauthorized means the bearer credential was missing or did not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrModelUnavailable means the inference runtime could not be reached or initialized. Retryable.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInference means the model failed while computing an embedding. Not retryable.
	ErrInference = errors.New("inference error")
	// ErrNoRoomsIndexed means a semantic search ran against an empty corpus.
	ErrNoRoomsIndexed = errors.New("no rooms indexed")
	// ErrInvalidInput means the request was malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means the requested room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch means two vectors produced by different models were compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Wire codes returned in error bodies.
const (
	CodeConfiguration     = "configuration_error"
	CodeUnauthorized      = "unauthorized"
	CodeModelUnavailable  = "model_unavailable"
	CodeInference         = "inference_error"
	CodeNoRoomsIndexed    = "no_rooms_indexed"
	CodeInvalidInput      = "invalid_input"
	CodeNotFound          = "not_found"
	CodeDimensionMismatch = "dimension_mismatch"
	CodeCanceled          = "canceled"
	CodeInternal          = "internal_error"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrConfiguration, CodeConfiguration},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrModelUnavailable, CodeModelUnavailable},
	{ErrInference, CodeInference},
	{ErrNoRoomsIndexed, CodeNoRoomsIndexed},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNotFound, CodeNotFound},
	{ErrDimensionMismatch, CodeDimensionMismatch},
}

// Code returns the wire code for err, or CodeInternal when err is not part of the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}

// FromCode maps a wire code back to its sentinel. Unknown codes return nil.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// HTTPStatus returns the HTTP status used to report err.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoRoomsIndexed):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the failed operation with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrModelUnavailable)
}
