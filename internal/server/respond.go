package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/storage"
)

// maxBody caps request bodies; backups of a 5 MiB store fit comfortably.
const maxBody = 16 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDirectory):
		return http.StatusConflict
	case errors.Is(err, models.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, models.ErrBackendUnavailable), errors.Is(err, service.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrMigration):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Errors
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// backend returns the active backend or writes 503.
func (s *Server) backend(w http.ResponseWriter, r *http.Request) (storage.Backend, bool) {
	b, err := s.factory.Backend()
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return b, true
}
