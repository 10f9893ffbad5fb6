package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when the requested entity genuinely does not
	// exist. This is the only per-entity failure surfaced to callers;
	// degraded entities are returned as best-effort objects instead.
	ErrNotFound = errors.New("entity not found")
	// ErrBadRequest is returned when the provided request parameters are
	// malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrStorageError is returned when the upstream table service call
	// itself failed.
	ErrStorageError = errors.New("upstream storage error")
)

// ErrorResponse is a JSON error.
type ErrorResponse struct {
	Msg string `json:"msg"`
}

// ReplyWithError replies to an HTTP request with an error as JSON.
func ReplyWithError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Msg: err.Error()})
}
