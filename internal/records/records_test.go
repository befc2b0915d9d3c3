package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/models"
)

// seqIDs hands out predictable current-format ids.
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

func newTestNormalizer() *Normalizer {
	return NewNormalizer(&seqIDs{}, WithClock(func() time.Time { return now }))
}

func TestNormalizeEmptyShapeIsValid(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(map[string]any{}, nil)

	require.NoError(t, Validate(rec))
	assert.Equal(t, "2026-03-01", rec.Date)
	assert.Equal(t, models.UnitLbs, rec.Unit)
	assert.Equal(t, DefaultExercise, rec.Exercise)
	assert.Equal(t, 45.0, rec.TargetWeight)
	assert.Equal(t, 45.0, rec.ActualWeight)
	assert.Equal(t, 1, rec.Sets)
	assert.Equal(t, 1, rec.Reps)
	assert.Equal(t, "", rec.Notes)
	assert.True(t, ids.IsCurrent(rec.ID))
	assert.True(t, rec.CreatedAt.Equal(now))
	assert.True(t, rec.UpdatedAt.Equal(now))
}

func TestNormalizeCoercesStrings(t *testing.T) {
	n := newTestNormalizer()

	rec := n.Normalize(map[string]any{
		"exercise":     "  Squat ",
		"targetWeight": "225",
		"actualWeight": "220.5",
		"unit":         "LB",
		"sets":         "5",
		"reps":         4.6,
		"completed":    "true",
		"date":         "2026-02-14T18:30:00Z",
	}, nil)

	require.NoError(t, Validate(rec))
	assert.Equal(t, "Squat", rec.Exercise)
	assert.Equal(t, 225.0, rec.TargetWeight)
	assert.Equal(t, 220.5, rec.ActualWeight)
	assert.Equal(t, models.UnitLbs, rec.Unit)
	assert.Equal(t, 5, rec.Sets)
	assert.Equal(t, 5, rec.Reps)
	assert.True(t, rec.Completed)
	assert.Equal(t, "2026-02-14", rec.Date)
}

func TestNormalizeKgDefaults(t *testing.T) {
	rec := newTestNormalizer().Normalize(map[string]any{"unit": "kg"}, nil)

	assert.Equal(t, 20.0, rec.TargetWeight)
	assert.Equal(t, "Olympic Barbell (20 kg)", rec.Barbell)
}

func TestNormalizeReplacesLegacyIDs(t *testing.T) {
	tests := []struct {
		name string
		id   any
	}{
		{"json number", float64(1699999999999)},
		{"json.Number", json.Number("42")},
		{"digit string", "1699999999999"},
		{"garbage", "not-an-id"},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestNormalizer().Normalize(map[string]any{"id": tt.id}, nil)
			assert.True(t, ids.IsCurrent(rec.ID), "id %q", rec.ID)
		})
	}
}

func TestNormalizeKeepsCurrentID(t *testing.T) {
	id := "1772366400123_abcdef"
	existing := map[string]struct{}{id: {}}

	rec := newTestNormalizer().Normalize(map[string]any{"id": id}, existing)

	assert.Equal(t, id, rec.ID)
}

func TestNormalizeFreshIDAvoidsExisting(t *testing.T) {
	existing := map[string]struct{}{"1772366400123_000001": {}}

	rec := newTestNormalizer().Normalize(map[string]any{"id": 7}, existing)

	assert.Equal(t, "1772366400123_000002", rec.ID)
}

func TestNormalizeIdempotent(t *testing.T) {
	n := newTestNormalizer()
	first := n.Normalize(map[string]any{
		"id": 17, "exercise": "Bench", "targetWeight": 135, "unit": "lbs",
		"sets": 3, "reps": 5, "notes": "paused", "date": "2026-02-20",
	}, nil)

	data, err := json.Marshal(first)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	later := NewNormalizer(&seqIDs{n: 100}, WithClock(func() time.Time { return now.Add(time.Hour) }))
	second := later.Normalize(raw, IDSet([]models.WorkoutRecord{first}))

	assert.True(t, second.UpdatedAt.Equal(now.Add(time.Hour)))
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	second.UpdatedAt, second.CreatedAt = first.UpdatedAt, first.CreatedAt
	assert.Equal(t, first, second)
}

func TestNormalizeKeepsInvalidValuesForValidate(t *testing.T) {
	rec := newTestNormalizer().Normalize(map[string]any{
		"targetWeight": -10,
		"actualWeight": "heavy",
		"unit":         "stone",
		"sets":         0,
		"reps":         "many",
		"date":         "yesterday",
	}, nil)

	err := Validate(rec)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, models.ErrValidation)
	for _, field := range []string{"targetWeight", "actualWeight", "unit", "sets", "reps", "date"} {
		assert.True(t, verr.HasField(field), "missing error for %s", field)
	}
	assert.False(t, verr.HasField("exercise"))
	assert.False(t, verr.HasField("id"))
}

func TestFillTypedRecord(t *testing.T) {
	rec := newTestNormalizer().Fill(models.WorkoutRecord{Exercise: "Deadlift", TargetWeight: 315, Unit: "Lbs"}, nil)

	require.NoError(t, Validate(rec))
	assert.Equal(t, 315.0, rec.ActualWeight)
	assert.Equal(t, models.UnitLbs, rec.Unit)
	assert.Equal(t, "Olympic Barbell (45 lbs)", rec.Barbell)
}

func TestValidateFields(t *testing.T) {
	valid := models.WorkoutRecord{
		ID: "1772366400123_abcdef", Date: "2026-03-01", Exercise: "Squat",
		TargetWeight: 225, ActualWeight: 225, Unit: models.UnitLbs, Sets: 5, Reps: 5,
	}
	require.NoError(t, Validate(valid))

	legacy := valid
	legacy.ID = "12345"
	assert.NoError(t, Validate(legacy), "legacy ids stay readable")

	tests := []struct {
		field  string
		mutate func(*models.WorkoutRecord)
	}{
		{"id", func(r *models.WorkoutRecord) { r.ID = "" }},
		{"id", func(r *models.WorkoutRecord) { r.ID = "x_y" }},
		{"date", func(r *models.WorkoutRecord) { r.Date = "" }},
		{"exercise", func(r *models.WorkoutRecord) { r.Exercise = "   " }},
		{"targetWeight", func(r *models.WorkoutRecord) { r.TargetWeight = 0 }},
		{"actualWeight", func(r *models.WorkoutRecord) { r.ActualWeight = -1 }},
		{"unit", func(r *models.WorkoutRecord) { r.Unit = "stone" }},
		{"sets", func(r *models.WorkoutRecord) { r.Sets = -2 }},
		{"reps", func(r *models.WorkoutRecord) { r.Reps = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			rec := valid
			tt.mutate(&rec)
			var verr *models.ValidationError
			require.True(t, errors.As(Validate(rec), &verr))
			assert.True(t, verr.HasField(tt.field))
			assert.Len(t, verr.Errors, 1)
		})
	}
}

func TestPreferencesMergeWithDefaults(t *testing.T) {
	p := NormalizePreferences(map[string]any{"theme": "Dark", "autoSave": false})

	require.NoError(t, ValidatePreferences(p))
	assert.Equal(t, models.ThemeDark, p.Theme)
	assert.False(t, p.AutoSave)
	assert.Equal(t, models.UnitLbs, p.Unit)
	assert.True(t, p.ShowNotifications)
	assert.Equal(t, 45.0, p.DefaultBarbell.Weight)
}

func TestPreferencesRejectUnknownValues(t *testing.T) {
	p := NormalizePreferences(map[string]any{"unit": "stone", "theme": "blue"})

	var verr *models.ValidationError
	require.True(t, errors.As(ValidatePreferences(p), &verr))
	assert.True(t, verr.HasField("unit"))
	assert.True(t, verr.HasField("theme"))
}

func TestMergeSettingsKeepsFirstUse(t *testing.T) {
	first := now.Add(-48 * time.Hour)
	base := models.AppSettings{DataVersion: models.SchemaVersion, TotalWorkouts: 3, FirstUse: &first}

	merged := MergeSettings(base, map[string]any{
		"firstUse":      "2020-01-01T00:00:00Z",
		"lastBackup":    "2026-02-28T10:00:00Z",
		"totalWorkouts": 9,
	})

	require.NotNil(t, merged.FirstUse)
	assert.True(t, merged.FirstUse.Equal(first))
	require.NotNil(t, merged.LastBackup)
	assert.Equal(t, 9, merged.TotalWorkouts)
}

func TestNormalizeSettings(t *testing.T) {
	s := NormalizeSettings(map[string]any{"firstUse": "2025-06-01T00:00:00Z"}, now)
	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, models.SchemaVersion, s.DataVersion)
	assert.Equal(t, 2025, s.FirstUse.Year())

	fresh := NormalizeSettings(nil, now)
	require.NotNil(t, fresh.FirstUse)
	assert.True(t, fresh.FirstUse.Equal(now))
}

func TestKeepUpdatedAt(t *testing.T) {
	raw := map[string]any{"updatedAt": "2026-01-05T08:00:00Z"}
	rec := KeepUpdatedAt(newTestNormalizer().Normalize(raw, nil), raw)
	assert.Equal(t, time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), rec.UpdatedAt)

	rec = KeepUpdatedAt(newTestNormalizer().Normalize(map[string]any{}, nil), map[string]any{})
	assert.True(t, rec.UpdatedAt.Equal(now))
}

func TestRepairPreferences(t *testing.T) {
	p := RepairPreferences(models.Preferences{Unit: "kg", Theme: "neon", AutoSave: true})

	require.NoError(t, ValidatePreferences(p))
	assert.Equal(t, models.UnitKg, p.Unit)
	assert.Equal(t, models.ThemeLight, p.Theme)
	assert.Equal(t, models.DefaultPreferences().DefaultBarbell, p.DefaultBarbell)
	assert.True(t, p.AutoSave)
}
