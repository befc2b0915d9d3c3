// Package backup builds export bundles and merges imported bundles into an
// existing workout history.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// BuildBundle snapshots the given data into an export bundle tagged with the
// current schema version.
func BuildBundle(workouts []models.WorkoutRecord, prefs models.Preferences, settings models.AppSettings, now time.Time) models.ExportBundle {
	if workouts == nil {
		workouts = []models.WorkoutRecord{}
	}
	return models.ExportBundle{
		Version:     models.SchemaVersion,
		ExportDate:  now.UTC(),
		Workouts:    workouts,
		Preferences: prefs,
		Settings:    settings,
		Metadata: models.BundleMetadata{
			TotalWorkouts: len(workouts),
			DateRange:     dateRange(workouts),
		},
	}
}

// dateRange returns the span of workout dates, or nil when no record has a
// parseable date.
func dateRange(workouts []models.WorkoutRecord) *models.DateRange {
	var r *models.DateRange
	for _, w := range workouts {
		day, err := w.Day()
		if err != nil {
			continue
		}
		ms := day.UnixMilli()
		if r == nil {
			r = &models.DateRange{Earliest: ms, Latest: ms}
			continue
		}
		r.Earliest = min(r.Earliest, ms)
		r.Latest = max(r.Latest, ms)
	}
	return r
}

// WriteBundle encodes b as indented JSON.
func WriteBundle(w io.Writer, b models.ExportBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	return nil
}

// ParseBundle decodes a backup file. The workouts array is required; every
// other section is optional.
func ParseBundle(r io.Reader) (models.ImportBundle, error) {
	var b models.ImportBundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return models.ImportBundle{}, &models.ValidationError{Errors: []models.FieldError{
			{Field: "bundle", Message: fmt.Sprintf("is not a valid backup file: %v", err)},
		}}
	}
	if b.Workouts == nil {
		return models.ImportBundle{}, models.NewValidationError("workouts", "is required")
	}
	return b, nil
}

// FromExport converts a typed bundle into its loosely-typed import form.
func FromExport(b models.ExportBundle) (models.ImportBundle, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return models.ImportBundle{}, fmt.Errorf("encoding bundle: %w", err)
	}
	var out models.ImportBundle
	if err := json.Unmarshal(data, &out); err != nil {
		return models.ImportBundle{}, fmt.Errorf("decoding bundle: %w", err)
	}
	return out, nil
}

// RecordsBundle wraps records in an import bundle that carries no
// preferences or settings, so merging it only adds workouts.
func RecordsBundle(recs []models.WorkoutRecord) (models.ImportBundle, error) {
	data, err := json.Marshal(recs)
	if err != nil {
		return models.ImportBundle{}, fmt.Errorf("encoding workouts: %w", err)
	}
	out := models.ImportBundle{Version: models.SchemaVersion}
	if err := json.Unmarshal(data, &out.Workouts); err != nil {
		return models.ImportBundle{}, fmt.Errorf("decoding workouts: %w", err)
	}
	return out, nil
}
