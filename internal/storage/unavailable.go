package storage

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// Unavailable is a reserved backend kind that is not implemented yet.
type Unavailable struct {
	kind   Kind
	userID string
}

// NewUnavailable creates a placeholder for kind.
func NewUnavailable(kind Kind) *Unavailable {
	return &Unavailable{kind: kind}
}

func (u *Unavailable) err() error {
	return &models.BackendUnavailableError{Backend: string(u.kind), Reason: "not yet available"}
}

func (u *Unavailable) Kind() Kind                 { return u.kind }
func (u *Unavailable) SetUserScope(userID string) { u.userID = userID }
func (u *Unavailable) UserID() string             { return u.userID }

func (u *Unavailable) GetWorkoutHistory(context.Context) ([]models.WorkoutRecord, error) {
	return nil, u.err()
}

func (u *Unavailable) SaveWorkout(context.Context, models.WorkoutRecord) (models.WorkoutRecord, error) {
	return models.WorkoutRecord{}, u.err()
}

func (u *Unavailable) UpdateWorkout(context.Context, string, models.WorkoutPatch) (models.WorkoutRecord, error) {
	return models.WorkoutRecord{}, u.err()
}

func (u *Unavailable) DeleteWorkout(context.Context, string) error { return u.err() }
func (u *Unavailable) ClearWorkoutHistory(context.Context) error   { return u.err() }

func (u *Unavailable) GetPreferences(context.Context) (models.Preferences, error) {
	return models.Preferences{}, u.err()
}

func (u *Unavailable) SavePreferences(context.Context, models.Preferences) (models.Preferences, error) {
	return models.Preferences{}, u.err()
}

func (u *Unavailable) GetSettings(context.Context) (models.AppSettings, error) {
	return models.AppSettings{}, u.err()
}

func (u *Unavailable) SaveSettings(context.Context, models.AppSettings) (models.AppSettings, error) {
	return models.AppSettings{}, u.err()
}

func (u *Unavailable) ExportData(context.Context) (models.ExportBundle, error) {
	return models.ExportBundle{}, u.err()
}

func (u *Unavailable) ImportData(context.Context, models.ImportBundle) (models.ImportResult, error) {
	return models.ImportResult{}, u.err()
}

func (u *Unavailable) ClearAllData(context.Context) error { return u.err() }

func (u *Unavailable) GetDataVersion(context.Context) (string, error) { return "", u.err() }

func (u *Unavailable) MigrateData(context.Context, string, string) error { return u.err() }

func (u *Unavailable) HealthCheck(context.Context) error { return u.err() }
