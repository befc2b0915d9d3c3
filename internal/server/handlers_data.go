package server

import (
	"fmt"
	"net/http"

	"github.com/claude/liftlog/internal/backup"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.factory.Status()
	b, err := s.factory.Backend()
	if err == nil {
		err = b.HealthCheck(r.Context())
	}
	body := map[string]any{"status": "ok", "storage": status}
	if err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	p, err := b.GetPreferences(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	var p models.Preferences
	if err := decode(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := b.SavePreferences(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	settings, err := b.GetSettings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	var settings models.AppSettings
	if err := decode(w, r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := b.SaveSettings(r.Context(), settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	bundle, err := b.ExportData(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("liftlog-backup-%s.json", bundle.ExportDate.Format(models.DateLayout))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", "application/json")
	if err := backup.WriteBundle(w, bundle); err != nil {
		s.log.Error("writing export", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	bundle, err := backup.ParseBundle(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := b.ImportData(r.Context(), bundle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.syncWorkoutCount(r.Context(), b)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	res, err := s.alpha.Ingest(r.Context(), http.MaxBytesReader(w, r.Body, maxBody), b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.syncWorkoutCount(r.Context(), b)
	writeJSON(w, http.StatusOK, res)
}

type backendRequest struct {
	Backend string `json:"backend"`
}

func (s *Server) handleSwitchBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := storage.ParseKind(req.Backend)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.factory.MigrateToBackend(r.Context(), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		service.BackendMigration
		Storage service.Status `json:"storage"`
	}{res, s.factory.Status()})
}
