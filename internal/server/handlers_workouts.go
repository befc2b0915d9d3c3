package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plates"
	"github.com/claude/liftlog/internal/storage"
)

func (s *Server) handlePlates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := strconv.ParseFloat(q.Get("target"), 64)
	if err != nil {
		s.writeError(w, r, models.NewValidationError("target", "must be a number"))
		return
	}
	unit := models.UnitLbs
	if u := q.Get("unit"); u != "" {
		unit = models.Unit(u)
	}
	var barbell float64
	if v := q.Get("barbell"); v != "" {
		if barbell, err = strconv.ParseFloat(v, 64); err != nil {
			s.writeError(w, r, models.NewValidationError("barbell", "must be a number"))
			return
		}
	}
	mode, err := plates.ParseMode(q.Get("mode"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := plates.SolveFor(target, unit, barbell, mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	recs, err := b.GetWorkoutHistory(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n >= 0 && n < len(recs) {
			recs = recs[:n]
		}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSaveWorkout(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	var rec models.WorkoutRecord
	if err := decode(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := b.SaveWorkout(r.Context(), rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.syncWorkoutCount(r.Context(), b)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	var patch models.WorkoutPatch
	if err := decode(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := b.UpdateWorkout(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	if err := b.DeleteWorkout(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.syncWorkoutCount(r.Context(), b)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearWorkouts(w http.ResponseWriter, r *http.Request) {
	b, ok := s.backend(w, r)
	if !ok {
		return
	}
	if err := b.ClearWorkoutHistory(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.syncWorkoutCount(r.Context(), b)
	w.WriteHeader(http.StatusNoContent)
}

// syncWorkoutCount copies the scope's workout total into the user's profile.
func (s *Server) syncWorkoutCount(ctx context.Context, b storage.Backend) {
	uid := b.UserID()
	if uid == "" {
		return
	}
	settings, err := b.GetSettings(ctx)
	if err == nil {
		err = s.users.SetWorkoutCount(ctx, uid, settings.TotalWorkouts)
	}
	if err != nil {
		s.log.Warn("syncing workout count", "user_id", uid, "error", err)
	}
}
