// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrMalformed    = errors.New("malformed request body")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusFor maps a domain error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the failure envelope for err with the mapped status.
func RespondError(w http.ResponseWriter, err error) {
	Fail(w, StatusFor(err), err.Error())
}
