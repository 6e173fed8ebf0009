package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// statusFor maps an error kind onto an HTTP status. A storage failure stays
// a 500 even when it wraps a lower-level not-found.
func statusFor(err error) int {
	switch {
	case core.IsUpstream(err):
		return http.StatusInternalServerError
	case core.IsValidation(err):
		return http.StatusBadRequest
	case core.IsUnauthorized(err):
		return http.StatusForbidden
	case core.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's status. Server errors are logged and
// prefixed with the failed action.
func writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeMessage(w, status, err.Error())
		return
	}
	logger := log.FromContext(r.Context())
	log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err,
		log.ComponentHTTP, action, log.NewFields())
	writeMessage(w, status, fmt.Sprintf("Error %s: %v", action, err))
}

// decodeJSON reads a bounded JSON body into v. Decoding problems are
// validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", errEmptyBody)
		}
		return core.NewValidationError("body", err)
	}
	return nil
}

// owner returns the authenticated owner. The auth middleware guarantees
// one on every API route.
func owner(r *http.Request) string {
	id, _ := auth.OwnerFrom(r.Context())
	return id
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. Empty
// input yields nil.
func parseDate(field string, s *string, loc *time.Location) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return nil, core.NewValidationError(field, fmt.Errorf("unrecognised date %q", v))
	}
	return &t, nil
}
