package backup

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/records"
)

// Snapshot is the current state an import is merged into.
type Snapshot struct {
	Workouts    []models.WorkoutRecord
	Preferences models.Preferences
	Settings    models.AppSettings
}

// Merged is the state after an import, ready to be written back.
type Merged struct {
	Workouts    []models.WorkoutRecord
	Preferences models.Preferences
	Settings    models.AppSettings
	Result      models.ImportResult
}

// Merge folds bundle into current.
//
// Each incoming record is normalized against the ids already present; a
// record whose id collides is skipped as a duplicate and one that fails
// validation is skipped as invalid. The union is sorted newest date first.
// Preferences and settings from the bundle win over current values except
// firstUse, which keeps its earliest recorded value. totalWorkouts always
// reflects the merged record count.
func Merge(n *records.Normalizer, current Snapshot, bundle models.ImportBundle) Merged {
	res := models.ImportResult{Received: len(bundle.Workouts)}

	known := records.IDSet(current.Workouts)
	union := slices.Clone(current.Workouts)
	for i, raw := range bundle.Workouts {
		rec := records.KeepUpdatedAt(n.Normalize(raw, known), raw)
		if _, dup := known[rec.ID]; dup {
			res.Duplicates++
			continue
		}
		if err := records.Validate(rec); err != nil {
			res.Invalid++
			res.Warnings = append(res.Warnings, fmt.Sprintf("workout %d skipped: %v", i, err))
			continue
		}
		known[rec.ID] = struct{}{}
		union = append(union, rec)
		res.Imported++
	}
	SortByDateDesc(union)

	prefs := current.Preferences
	if bundle.Preferences != nil {
		merged := records.MergePreferences(current.Preferences, bundle.Preferences)
		if err := records.ValidatePreferences(merged); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("preferences ignored: %v", err))
		} else {
			prefs = merged
		}
	}

	settings := records.MergeSettings(current.Settings, bundle.Settings)
	settings.DataVersion = models.SchemaVersion
	settings.TotalWorkouts = len(union)
	res.TotalWorkouts = len(union)

	if bundle.Version != models.SchemaVersion {
		res.VersionMismatch = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("bundle version %q differs from %q", bundle.Version, models.SchemaVersion))
	}

	return Merged{Workouts: union, Preferences: prefs, Settings: settings, Result: res}
}

// SortByDateDesc orders records newest date first. Records on the same day
// keep their relative order.
func SortByDateDesc(recs []models.WorkoutRecord) {
	slices.SortStableFunc(recs, func(a, b models.WorkoutRecord) int {
		return cmp.Compare(b.Date, a.Date)
	})
}
