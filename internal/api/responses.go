package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Machine-readable error codes carried in ErrorResponse.Code.
const (
	ErrBadRequest   = "bad_request"
	ErrInvalidBody  = "invalid_body"
	ErrInvalidMode  = "invalid_mode"
	ErrTooLarge     = "too_large"
	ErrUnsupported  = "unsupported_format"
	ErrUpstream     = "transcription_failed"
	ErrNotFound     = "not_found"
	ErrUnauthorized = "unauthorized"
	ErrUnavailable  = "unavailable"
	ErrInternal     = "internal"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// WriteErrorDetail writes a JSON error response with code and detail.
func WriteErrorDetail(w http.ResponseWriter, status int, code, msg, detail string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code, Detail: detail})
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// maxLimit caps list page sizes.
const maxLimit = 500

// ParsePagination extracts limit and offset from query params with defaults.
// Returns an error if values are present but invalid.
func ParsePagination(r *http.Request) (Pagination, error) {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid limit %q: must be an integer", v)
		}
		if n < 1 {
			return p, fmt.Errorf("invalid limit %d: must be >= 1", n)
		}
		if n > maxLimit {
			n = maxLimit
		}
		p.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid offset %q: must be an integer", v)
		}
		if n < 0 {
			return p, fmt.Errorf("invalid offset %d: must be >= 0", n)
		}
		p.Offset = n
	}
	return p, nil
}
