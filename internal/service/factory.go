// Package service owns the active storage backend and the transitions
// between backends and user scopes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/liftlog/internal/backup"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/observability"
	"github.com/claude/liftlog/internal/storage"
)

// ErrNotInitialized is returned by operations that need a ready backend.
var ErrNotInitialized = errors.New("service not initialized")

// State is the factory's lifecycle state.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateInitializing     State = "initializing"
	StateReady            State = "ready"
	StateSwitchingUser    State = "switchingUser"
	StateSwitchingBackend State = "switchingBackend"
)

// Opener constructs a backend of the given kind.
type Opener func(kind storage.Kind) (storage.Backend, error)

// LegacyResult reports what a legacy migration moved.
type LegacyResult = storage.LegacyResult

// MigrationOutcome is the result of a schema version check. A failed
// migration leaves the data on From and sets Err.
type MigrationOutcome struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Migrated bool   `json:"migrated"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Failed reports whether a migration was attempted and did not complete.
func (o MigrationOutcome) Failed() bool { return o.Err != nil }

// InitResult describes the backend chosen by Initialize.
type InitResult struct {
	Requested      storage.Kind     `json:"requested"`
	Backend        storage.Kind     `json:"backend"`
	UserID         string           `json:"userId,omitempty"`
	Fallback       bool             `json:"fallback"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
	Migration      MigrationOutcome `json:"migration"`
}

// BackendMigration reports a completed MigrateToBackend.
type BackendMigration struct {
	From     storage.Kind        `json:"from"`
	To       storage.Kind        `json:"to"`
	Workouts int                 `json:"workouts"`
	Import   models.ImportResult `json:"import"`
}

// Status is a point-in-time view of the factory.
type Status struct {
	State    State        `json:"state"`
	Backend  storage.Kind `json:"backend,omitempty"`
	UserID   string       `json:"userId,omitempty"`
	Fallback bool         `json:"fallback"`
}

// Factory holds the active backend. Transitions are serialised by mu; the
// local backend is always available as the fallback target.
type Factory struct {
	mu       sync.Mutex
	local    *storage.LocalBackend
	open     Opener
	log      *slog.Logger
	state    State
	backend  storage.Backend
	fallback bool
}

// Option configures a Factory.
type Option func(*Factory)

// WithOpener replaces the backend constructor.
func WithOpener(open Opener) Option {
	return func(f *Factory) { f.open = open }
}

// New creates an uninitialized Factory around the local backend.
func New(local *storage.LocalBackend, log *slog.Logger, opts ...Option) *Factory {
	f := &Factory{local: local, log: log, state: StateUninitialized}
	f.open = f.defaultOpener
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) defaultOpener(kind storage.Kind) (storage.Backend, error) {
	switch kind {
	case storage.KindLocalStorage:
		return f.local, nil
	case storage.KindIndexedDB, storage.KindCloudSync:
		return storage.NewUnavailable(kind), nil
	}
	return nil, models.NewValidationError("backend", fmt.Sprintf("unknown backend %q", kind))
}

// Initialize selects and health-checks a backend, falling back to the local
// backend without a user scope when the preferred one is unhealthy, then
// brings the data up to the current schema version. An empty preferred kind
// selects the local backend.
func (f *Factory) Initialize(ctx context.Context, preferred storage.Kind, userID string) (InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if preferred == "" {
		preferred = storage.KindLocalStorage
	}
	prev := f.state
	f.state = StateInitializing
	res := InitResult{Requested: preferred, UserID: userID}

	b, err := f.open(preferred)
	if err == nil {
		b.SetUserScope(userID)
		err = b.HealthCheck(ctx)
	}
	if err != nil {
		if preferred == storage.KindLocalStorage {
			f.state = prev
			return res, fmt.Errorf("initializing %s backend: %w", preferred, err)
		}
		f.log.Warn("backend unhealthy, falling back", "backend", preferred, "error", err)
		res.FallbackReason = err.Error()
		b, err = f.fallbackBackend(ctx)
		if err != nil {
			f.state = prev
			return res, err
		}
		res.Fallback = true
		res.UserID = ""
	}

	f.backend = b
	f.fallback = res.Fallback
	res.Backend = b.Kind()
	res.Migration = f.checkVersion(ctx, b)
	f.state = StateReady

	f.log.Info("storage initialized", "backend", res.Backend, "user_id", res.UserID, "fallback", res.Fallback)
	return res, nil
}

// fallbackBackend returns the local backend with no user scope, or an error
// when even that fails its health check.
func (f *Factory) fallbackBackend(ctx context.Context) (storage.Backend, error) {
	observability.RecordFallback()
	f.local.SetUserScope("")
	if err := f.local.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("fallback to %s: %w", storage.KindLocalStorage, err)
	}
	return f.local, nil
}

// checkVersion migrates b's current scope when its data version differs from
// the app's. Failures are logged and reported in the outcome; the backend
// stays usable on the old version.
func (f *Factory) checkVersion(ctx context.Context, b storage.Backend) MigrationOutcome {
	out := MigrationOutcome{To: models.SchemaVersion}
	v, err := b.GetDataVersion(ctx)
	if err != nil {
		out.Err = &models.MigrationError{To: models.SchemaVersion, Err: err}
		out.Error = out.Err.Error()
		f.log.Warn("reading data version", "error", err)
		return out
	}
	out.From = v
	if v == models.SchemaVersion {
		return out
	}
	if err := b.MigrateData(ctx, v, models.SchemaVersion); err != nil {
		out.Err = err
		out.Error = err.Error()
		f.log.Warn("data migration failed, continuing on stored version", "from", v, "to", models.SchemaVersion, "error", err)
		return out
	}
	out.Migrated = true
	return out
}

// SwitchUser re-points the active backend at userID's scope. Switching to
// the current user does nothing.
func (f *Factory) SwitchUser(ctx context.Context, userID string) (MigrationOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateReady {
		return MigrationOutcome{}, ErrNotInitialized
	}
	if f.backend.UserID() == userID {
		return MigrationOutcome{From: models.SchemaVersion, To: models.SchemaVersion}, nil
	}

	f.state = StateSwitchingUser
	defer func() { f.state = StateReady }()

	f.backend.SetUserScope(userID)
	out := f.checkVersion(ctx, f.backend)
	f.log.Info("switched user", "user_id", userID)
	return out, nil
}

// MigrateToBackend copies the current scope's data into a new backend and
// makes it active. The new backend must report the same number of records
// as were exported; otherwise the active backend is left unchanged.
func (f *Factory) MigrateToBackend(ctx context.Context, kind storage.Kind) (BackendMigration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateReady {
		return BackendMigration{}, ErrNotInitialized
	}
	cur := f.backend
	res := BackendMigration{From: cur.Kind(), To: kind}
	if kind == cur.Kind() {
		return res, models.NewValidationError("backend", fmt.Sprintf("already using %s", kind))
	}

	f.state = StateSwitchingBackend
	defer func() { f.state = StateReady }()

	err := f.migrateTo(ctx, cur, kind, &res)
	observability.RecordMigration("backend", err)
	if err != nil {
		f.log.Warn("backend migration aborted", "from", res.From, "to", kind, "error", err)
		return res, err
	}
	f.log.Info("backend migrated", "from", res.From, "to", kind, "workouts", res.Workouts)
	return res, nil
}

func (f *Factory) migrateTo(ctx context.Context, cur storage.Backend, kind storage.Kind, res *BackendMigration) error {
	fail := func(err error) error {
		return &models.MigrationError{From: string(cur.Kind()), To: string(kind), Err: err}
	}

	exported, err := cur.ExportData(ctx)
	if err != nil {
		return fail(fmt.Errorf("exporting: %w", err))
	}
	bundle, err := backup.FromExport(exported)
	if err != nil {
		return fail(err)
	}

	next, err := f.open(kind)
	if err != nil {
		return fail(err)
	}
	next.SetUserScope(cur.UserID())
	if err := next.HealthCheck(ctx); err != nil {
		return fail(err)
	}

	imported, err := next.ImportData(ctx, bundle)
	if err != nil {
		return fail(fmt.Errorf("importing: %w", err))
	}
	res.Import = imported

	after, err := next.GetWorkoutHistory(ctx)
	if err != nil {
		return fail(fmt.Errorf("verifying: %w", err))
	}
	if len(after) != len(exported.Workouts) {
		return fail(fmt.Errorf("record count mismatch: exported %d, target has %d", len(exported.Workouts), len(after)))
	}

	res.Workouts = len(after)
	f.backend = next
	f.fallback = false
	return nil
}

// HasLegacyData reports whether unscoped data from before user profiles
// exists in the local store.
func (f *Factory) HasLegacyData(ctx context.Context) (bool, error) {
	return f.local.HasLegacyData(ctx)
}

// MigrateLegacyData moves unscoped local data into userID's scope.
func (f *Factory) MigrateLegacyData(ctx context.Context, userID string) (LegacyResult, error) {
	return f.local.MigrateLegacyData(ctx, userID)
}

// Backend returns the active backend.
func (f *Factory) Backend() (storage.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backend == nil || f.state == StateUninitialized {
		return nil, ErrNotInitialized
	}
	return f.backend, nil
}

// Status returns the current state.
func (f *Factory) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Status{State: f.state, Fallback: f.fallback}
	if f.backend != nil {
		s.Backend = f.backend.Kind()
		s.UserID = f.backend.UserID()
	}
	return s
}

// Close releases the active backend. The factory must be initialized again
// before use.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backend = nil
	f.fallback = false
	f.state = StateUninitialized
}
