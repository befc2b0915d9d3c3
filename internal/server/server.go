package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/users"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	factory *service.Factory
	users   *users.Directory
	alpha   *alpha.Provider
	log     *slog.Logger
	apiKey  string
	whois   WhoIser
	mcp     http.Handler
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires X-API-Key on mutating routes.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithTailscale resolves request identities through the tailnet.
func WithTailscale(w WhoIser) Option {
	return func(s *Server) { s.whois = w }
}

// WithMCP mounts an MCP handler at /mcp.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New creates a new Server with all routes configured.
func New(factory *service.Factory, dir *users.Directory, alphaProvider *alpha.Provider, log *slog.Logger, opts ...Option) *Server {
	s := &Server{
		factory: factory,
		users:   dir,
		alpha:   alphaProvider,
		log:     log,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Handle("/metrics", promhttp.Handler())
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(Identity(s.whois, s.log))

		r.Get("/health", s.handleHealth)
		r.Get("/me", s.handleMe)
		r.Get("/plates", s.handlePlates)

		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/preferences", s.handleGetPreferences)
		r.Get("/settings", s.handleGetSettings)
		r.Get("/export", s.handleExport)
		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}/activity", s.handleUserActivity)
		r.Get("/session", s.handleGetSession)

		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))

			r.Post("/workouts", s.handleSaveWorkout)
			r.Delete("/workouts", s.handleClearWorkouts)
			r.Patch("/workouts/{id}", s.handleUpdateWorkout)
			r.Delete("/workouts/{id}", s.handleDeleteWorkout)

			r.Put("/preferences", s.handleSavePreferences)
			r.Put("/settings", s.handleSaveSettings)

			r.Post("/import", s.handleImport)
			r.Post("/import/alpha", s.handleAlphaImport)

			r.Post("/users", s.handleCreateUser)
			r.Patch("/users/{id}", s.handleUpdateUser)
			r.Delete("/users/{id}", s.handleDeleteUser)

			r.Put("/session", s.handleSelectUser)
			r.Delete("/session", s.handleLogout)

			r.Post("/backend", s.handleSwitchBackend)
		})
	})
}
