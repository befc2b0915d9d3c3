package mcp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/claude/liftlog/internal/storage"
)

// Backends hands out the active storage backend. *service.Factory satisfies it.
type Backends interface {
	Backend() (storage.Backend, error)
}

// New creates an MCP server with all tools and resources registered.
func New(backends Backends, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog workout log. Calculate barbell plate loading, read and log lifts, and read preferences. All data belongs to the currently selected user."),
	)

	h := &handlers{backends: backends, log: log, now: time.Now}

	s.AddTools(
		server.ServerTool{Tool: toolCalculatePlates, Handler: h.calculatePlates},
		server.ServerTool{Tool: toolGetWorkouts, Handler: h.getWorkouts},
		server.ServerTool{Tool: toolLogWorkout, Handler: h.logWorkout},
		server.ServerTool{Tool: toolGetPreferences, Handler: h.getPreferences},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
	)

	return s
}

// Handler serves s over streamable HTTP for mounting at /mcp.
func Handler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithStateLess(true))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	backends Backends
	log      *slog.Logger
	now      func() time.Time
}

var resRecentWorkouts = mcp.NewResource(
	"liftlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts from the last 14 days, newest first"),
	mcp.WithMIMEType("application/json"),
)
