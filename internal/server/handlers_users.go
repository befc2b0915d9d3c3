package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/users"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	list, err := s.users.List(r.Context(), all)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type createUserRequest struct {
	Name        string              `json:"name"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Create(r.Context(), req.Name, req.Preferences)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd users.Update
	if err := decode(w, r, &upd); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.factory.Status().UserID == id {
		if _, err := s.factory.SwitchUser(r.Context(), ""); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.users.Activity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type sessionResponse struct {
	User      *models.UserProfile       `json:"user"`
	Storage   service.Status            `json:"storage"`
	Legacy    *service.LegacyResult     `json:"legacy,omitempty"`
	Migration *service.MigrationOutcome `json:"migration,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	resp := sessionResponse{Storage: s.factory.Status()}
	u, ok, err := s.users.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ok {
		resp.User = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectUserRequest struct {
	UserID string `json:"userId"`
}

// handleSelectUser makes a user current. Unscoped data from before user
// profiles is moved into that user's scope first.
func (s *Server) handleSelectUser(w http.ResponseWriter, r *http.Request) {
	var req selectUserRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, models.NewValidationError("userId", "is required"))
		return
	}
	ctx := r.Context()

	u, err := s.users.SetCurrentUser(ctx, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := sessionResponse{User: &u}

	has, err := s.factory.HasLegacyData(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if has {
		res, err := s.factory.MigrateLegacyData(ctx, u.ID)
		if err != nil {
			s.log.Warn("legacy migration failed", "user_id", u.ID, "error", err)
		} else {
			resp.Legacy = &res
		}
	}

	out, err := s.factory.SwitchUser(ctx, u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.Migration = &out
	resp.Storage = s.factory.Status()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.factory.SwitchUser(r.Context(), ""); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
