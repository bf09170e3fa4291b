package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"chapel/internal/adapters/http/middleware"
	"chapel/internal/application/orchestrators"
	"chapel/internal/domain/account"
	"chapel/internal/domain/attendance"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// validationErrors map to 400 and are safe to echo to the caller.
var validationErrors = []error{
	errBadRequest,
	attendance.ErrInvalidDate,
	attendance.ErrInvalidType,
	attendance.ErrInvalidStatus,
	attendance.ErrInvalidMember,
	attendance.ErrNotesTooLong,
	attendance.ErrUnknownMember,
	attendance.ErrInvalidRange,
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	middleware.WriteJSONError(w, status, msg)
}

// writeError classifies err into a status code. Unknown errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	switch {
	case errors.Is(err, attendance.ErrVersionConflict):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrators.ErrInvalidCredentials),
		errors.Is(err, orchestrators.ErrAccountLocked):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	default:
		internalError(w, r, err)
	}
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal_error",
		"error", err.Error(),
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.RequestIDFromContext(r.Context()),
	)
	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}

// strictDecode decodes JSON from the request body, rejecting unknown fields
// and trailing data.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// identity returns the authenticated viewer. Routes behind RequireAuth
// always have one.
func identity(r *http.Request) account.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ping != nil {
		if err := s.opts.Ping(r.Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
