// Package storage implements workout persistence on top of a kv.Store.
//
// Every backend kind satisfies Backend. Only the local backend is
// implemented; the reserved kinds fail every call with a
// *models.BackendUnavailableError.
package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// Kind names a backend implementation.
type Kind string

const (
	KindLocalStorage Kind = "localStorage"
	KindIndexedDB    Kind = "indexedDB"
	KindCloudSync    Kind = "cloudSync"
)

// IsValid reports whether k is a known backend kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindLocalStorage, KindIndexedDB, KindCloudSync:
		return true
	}
	return false
}

// ParseKind validates a backend selection value.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", models.NewValidationError("backend", fmt.Sprintf("unknown backend %q", s))
	}
	return k, nil
}

// Backend is the storage capability used by the rest of the app. All
// collection writes replace the whole stored value.
type Backend interface {
	Kind() Kind
	// SetUserScope points subsequent calls at userID's keys. An empty id
	// selects the unscoped keys.
	SetUserScope(userID string)
	UserID() string

	GetWorkoutHistory(ctx context.Context) ([]models.WorkoutRecord, error)
	SaveWorkout(ctx context.Context, rec models.WorkoutRecord) (models.WorkoutRecord, error)
	UpdateWorkout(ctx context.Context, id string, patch models.WorkoutPatch) (models.WorkoutRecord, error)
	DeleteWorkout(ctx context.Context, id string) error
	ClearWorkoutHistory(ctx context.Context) error

	GetPreferences(ctx context.Context) (models.Preferences, error)
	SavePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error)
	GetSettings(ctx context.Context) (models.AppSettings, error)
	SaveSettings(ctx context.Context, settings models.AppSettings) (models.AppSettings, error)

	ExportData(ctx context.Context) (models.ExportBundle, error)
	ImportData(ctx context.Context, bundle models.ImportBundle) (models.ImportResult, error)
	ClearAllData(ctx context.Context) error

	GetDataVersion(ctx context.Context) (string, error)
	MigrateData(ctx context.Context, from, to string) error

	// HealthCheck performs a write/read/delete round trip. A non-nil error
	// means the backend should not be used.
	HealthCheck(ctx context.Context) error
}
