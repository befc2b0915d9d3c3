package backup

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/records"
)

type seqIDs struct{ n int }

func (s *seqIDs) Generate(existing map[string]struct{}) string {
	for {
		s.n++
		id := fmt.Sprintf("1772366400123_%06x", s.n)
		if _, taken := existing[id]; !taken {
			return id
		}
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func normalizer() *records.Normalizer {
	return records.NewNormalizer(&seqIDs{n: 1000}, records.WithClock(func() time.Time { return now }))
}

func workout(id, date string) models.WorkoutRecord {
	return models.WorkoutRecord{
		ID: id, Date: date, Exercise: "Squat", TargetWeight: 225, ActualWeight: 225,
		Unit: models.UnitLbs, Barbell: "Olympic Barbell (45 lbs)", Sets: 5, Reps: 5,
		CreatedAt: now, UpdatedAt: now,
	}
}

func snapshot() Snapshot {
	first := now.Add(-30 * 24 * time.Hour)
	return Snapshot{
		Workouts: []models.WorkoutRecord{
			workout("1772366400123_aaaaaa", "2026-02-20"),
			workout("1772366400123_bbbbbb", "2026-02-10"),
		},
		Preferences: models.DefaultPreferences(),
		Settings:    models.AppSettings{DataVersion: models.SchemaVersion, TotalWorkouts: 2, FirstUse: &first},
	}
}

func TestBuildBundleMetadata(t *testing.T) {
	s := snapshot()
	b := BuildBundle(s.Workouts, s.Preferences, s.Settings, now)

	assert.Equal(t, models.SchemaVersion, b.Version)
	assert.Equal(t, 2, b.Metadata.TotalWorkouts)
	require.NotNil(t, b.Metadata.DateRange)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC).UnixMilli(), b.Metadata.DateRange.Earliest)
	assert.Equal(t, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC).UnixMilli(), b.Metadata.DateRange.Latest)

	empty := BuildBundle(nil, s.Preferences, s.Settings, now)
	assert.Nil(t, empty.Metadata.DateRange)
	assert.NotNil(t, empty.Workouts)
}

func TestRoundTripIsNoOp(t *testing.T) {
	s := snapshot()
	var buf bytes.Buffer
	require.NoError(t, WriteBundle(&buf, BuildBundle(s.Workouts, s.Preferences, s.Settings, now)))

	bundle, err := ParseBundle(&buf)
	require.NoError(t, err)

	m := Merge(normalizer(), s, bundle)

	assert.Equal(t, 0, m.Result.Imported)
	assert.Equal(t, 2, m.Result.Duplicates)
	assert.False(t, m.Result.VersionMismatch)
	assert.Equal(t, s.Workouts, m.Workouts)
	assert.Equal(t, s.Preferences, m.Preferences)
	assert.Equal(t, s.Settings.TotalWorkouts, m.Settings.TotalWorkouts)
	assert.True(t, m.Settings.FirstUse.Equal(*s.Settings.FirstUse))
}

func TestMergeCountsDuplicates(t *testing.T) {
	s := snapshot()
	bundle := models.ImportBundle{
		Version: models.SchemaVersion,
		Workouts: []map[string]any{
			{"id": "1772366400123_aaaaaa", "exercise": "Squat", "date": "2026-02-20"},
			{"id": "1772366400123_cccccc", "exercise": "Bench", "date": "2026-02-25", "targetWeight": 135},
			{"exercise": "Row", "date": "2026-01-15", "targetWeight": 95},
		},
	}

	m := Merge(normalizer(), s, bundle)

	assert.Equal(t, 3, m.Result.Received)
	assert.Equal(t, 1, m.Result.Duplicates)
	assert.Equal(t, 2, m.Result.Imported)
	assert.Len(t, m.Workouts, len(s.Workouts)+2)
	assert.Equal(t, 4, m.Settings.TotalWorkouts)

	dates := make([]string, 0, len(m.Workouts))
	for _, w := range m.Workouts {
		dates = append(dates, w.Date)
	}
	assert.Equal(t, []string{"2026-02-25", "2026-02-20", "2026-02-10", "2026-01-15"}, dates)
}

func TestMergeSkipsInvalidRecords(t *testing.T) {
	bundle := models.ImportBundle{
		Version:  models.SchemaVersion,
		Workouts: []map[string]any{{"exercise": "Curl", "targetWeight": -5}},
	}

	m := Merge(normalizer(), snapshot(), bundle)

	assert.Equal(t, 1, m.Result.Invalid)
	assert.Equal(t, 0, m.Result.Imported)
	assert.NotEmpty(t, m.Result.Warnings)
}

func TestMergeLegacyIDsAreReplaced(t *testing.T) {
	bundle := models.ImportBundle{
		Version:  models.LegacySchemaVersion,
		Workouts: []map[string]any{{"id": float64(1699999999999), "exercise": "Press", "targetWeight": 95}},
	}

	m := Merge(normalizer(), snapshot(), bundle)

	assert.Equal(t, 1, m.Result.Imported)
	assert.True(t, m.Result.VersionMismatch)
	assert.Equal(t, models.SchemaVersion, m.Settings.DataVersion)
}

func TestMergePreferencesAndSettings(t *testing.T) {
	s := snapshot()
	bundle := models.ImportBundle{
		Version:     models.SchemaVersion,
		Workouts:    []map[string]any{},
		Preferences: map[string]any{"theme": "dark", "unit": "kg"},
		Settings:    map[string]any{"firstUse": "2019-01-01T00:00:00Z", "totalWorkouts": 99},
	}

	m := Merge(normalizer(), s, bundle)

	assert.Equal(t, models.ThemeDark, m.Preferences.Theme)
	assert.Equal(t, models.UnitKg, m.Preferences.Unit)
	assert.True(t, m.Settings.FirstUse.Equal(*s.Settings.FirstUse), "firstUse must stay sticky")
	assert.Equal(t, 2, m.Settings.TotalWorkouts, "totalWorkouts is recomputed")
}

func TestMergeIgnoresInvalidPreferences(t *testing.T) {
	s := snapshot()
	bundle := models.ImportBundle{
		Workouts:    []map[string]any{},
		Preferences: map[string]any{"theme": "neon"},
	}

	m := Merge(normalizer(), s, bundle)

	assert.Equal(t, s.Preferences, m.Preferences)
	assert.NotEmpty(t, m.Result.Warnings)
}

func TestParseBundleErrors(t *testing.T) {
	_, err := ParseBundle(strings.NewReader("not json"))
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = ParseBundle(strings.NewReader(`{"version":"2.0.0"}`))
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasField("workouts"))

	b, err := ParseBundle(strings.NewReader(`{"workouts":[]}`))
	require.NoError(t, err)
	assert.Empty(t, b.Workouts)
}

func TestFromExport(t *testing.T) {
	s := snapshot()
	b, err := FromExport(BuildBundle(s.Workouts, s.Preferences, s.Settings, now))
	require.NoError(t, err)
	assert.Len(t, b.Workouts, 2)
	assert.Equal(t, "1772366400123_aaaaaa", b.Workouts[0]["id"])
}

func TestRecordsBundleOnlyAddsWorkouts(t *testing.T) {
	s := snapshot()
	b, err := RecordsBundle([]models.WorkoutRecord{workout("1772366400123_cccccc", "2026-02-25")})
	require.NoError(t, err)
	assert.Nil(t, b.Preferences)
	assert.Nil(t, b.Settings)

	m := Merge(normalizer(), s, b)
	assert.Equal(t, 1, m.Result.Imported)
	assert.False(t, m.Result.VersionMismatch)
	assert.Equal(t, s.Preferences, m.Preferences)
	assert.Equal(t, "1772366400123_cccccc", m.Workouts[0].ID)
}
