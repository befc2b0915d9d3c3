// Package records repairs and validates workout, preference and settings
// data read from storage or supplied by callers.
//
// Normalize never fails: absent fields get defaults and numeric-looking
// strings are coerced. Values that are present but unusable are carried
// through so that Validate can reject them with a field-named error.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/models"
)

// DefaultExercise is used when a record names no exercise.
const DefaultExercise = "Workout"

// IDGenerator allocates ids unique against a set of existing ids.
type IDGenerator interface {
	Generate(existing map[string]struct{}) string
}

// Normalizer fills defaults and repairs ids on workout records.
type Normalizer struct {
	ids IDGenerator
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for defaults and timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// NewNormalizer creates a Normalizer that allocates ids with gen.
func NewNormalizer(gen IDGenerator, opts ...Option) *Normalizer {
	n := &Normalizer{ids: gen, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewID allocates an id not present in existing.
func (n *Normalizer) NewID(existing map[string]struct{}) string {
	return n.ids.Generate(existing)
}

// Now returns the normalizer's current time in UTC.
func (n *Normalizer) Now() time.Time {
	return n.now().UTC()
}

// Normalize builds a WorkoutRecord from a decoded JSON object.
//
// A current-format id is kept even if it appears in existing; existing is
// only consulted when a fresh id has to be allocated. Missing, malformed and
// legacy numeric ids are replaced. UpdatedAt is always re-stamped.
func (n *Normalizer) Normalize(raw map[string]any, existing map[string]struct{}) models.WorkoutRecord {
	now := n.Now()
	var rec models.WorkoutRecord

	rec.ID = n.normalizeID(raw["id"], existing)

	switch {
	case !present(raw, "date"):
		rec.Date = now.Format(models.DateLayout)
	default:
		rec.Date = normalizeDate(raw["date"], now)
	}

	rec.Unit = models.UnitLbs
	if present(raw, "unit") {
		rec.Unit = toUnit(raw["unit"])
	}

	rec.Exercise = DefaultExercise
	if present(raw, "exercise") {
		if s := strings.TrimSpace(toString(raw["exercise"])); s != "" {
			rec.Exercise = s
		}
	}

	rec.TargetWeight = defaultBarWeight(rec.Unit)
	if present(raw, "targetWeight") {
		rec.TargetWeight, _ = toFloat(raw["targetWeight"])
	}
	rec.ActualWeight = rec.TargetWeight
	if present(raw, "actualWeight") {
		rec.ActualWeight, _ = toFloat(raw["actualWeight"])
	}

	rec.Barbell = DefaultBarbellLabel(rec.Unit)
	if present(raw, "barbell") {
		if s := strings.TrimSpace(toString(raw["barbell"])); s != "" {
			rec.Barbell = s
		}
	}

	rec.Sets, rec.Reps = 1, 1
	if present(raw, "sets") {
		rec.Sets, _ = toInt(raw["sets"])
	}
	if present(raw, "reps") {
		rec.Reps, _ = toInt(raw["reps"])
	}

	if present(raw, "completed") {
		rec.Completed, _ = toBool(raw["completed"])
	}
	if present(raw, "notes") {
		rec.Notes = strings.TrimSpace(toString(raw["notes"]))
	}

	rec.CreatedAt = now
	if t, ok := toTime(raw["createdAt"]); ok {
		rec.CreatedAt = t
	}
	rec.UpdatedAt = now
	return rec
}

// Fill applies the same defaults as Normalize to a typed record, treating
// zero values as missing. Negative numbers and unknown units are kept.
func (n *Normalizer) Fill(rec models.WorkoutRecord, existing map[string]struct{}) models.WorkoutRecord {
	now := n.Now()
	if !ids.IsCurrent(rec.ID) {
		rec.ID = n.ids.Generate(existing)
	}
	if strings.TrimSpace(rec.Date) == "" {
		rec.Date = now.Format(models.DateLayout)
	} else {
		rec.Date = normalizeDate(rec.Date, now)
	}
	if rec.Unit == "" {
		rec.Unit = models.UnitLbs
	} else {
		rec.Unit = toUnit(string(rec.Unit))
	}
	rec.Exercise = strings.TrimSpace(rec.Exercise)
	if rec.Exercise == "" {
		rec.Exercise = DefaultExercise
	}
	if rec.TargetWeight == 0 {
		rec.TargetWeight = defaultBarWeight(rec.Unit)
	}
	if rec.ActualWeight == 0 {
		rec.ActualWeight = rec.TargetWeight
	}
	rec.Barbell = strings.TrimSpace(rec.Barbell)
	if rec.Barbell == "" {
		rec.Barbell = DefaultBarbellLabel(rec.Unit)
	}
	if rec.Sets == 0 {
		rec.Sets = 1
	}
	if rec.Reps == 0 {
		rec.Reps = 1
	}
	rec.Notes = strings.TrimSpace(rec.Notes)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec
}

func (n *Normalizer) normalizeID(v any, existing map[string]struct{}) string {
	if s, ok := v.(string); ok && ids.IsCurrent(s) {
		return s
	}
	// Legacy integers, numeric strings and anything unrecognised get a new id.
	return n.ids.Generate(existing)
}

// normalizeDate reduces timestamps to a calendar date. Unparseable strings
// are returned unchanged for Validate to reject.
func normalizeDate(v any, now time.Time) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return now.Format(models.DateLayout)
		}
		if _, err := time.Parse(models.DateLayout, s); err == nil {
			return s
		}
	}
	if t, ok := toTime(v); ok {
		return t.Format(models.DateLayout)
	}
	return fmt.Sprint(v)
}

func defaultBarWeight(u models.Unit) float64 {
	if u == models.UnitKg {
		return 20
	}
	return 45
}

// DefaultBarbellLabel returns the label for the standard bar of a unit.
func DefaultBarbellLabel(u models.Unit) string {
	if u == models.UnitKg {
		return "Olympic Barbell (20 kg)"
	}
	return "Olympic Barbell (45 lbs)"
}

// IDSet collects the ids of recs.
func IDSet(recs []models.WorkoutRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		set[r.ID] = struct{}{}
	}
	return set
}

// KeepUpdatedAt restores the updatedAt stored in raw, if any. Reads and
// imports use it so that loading a record does not count as an update.
func KeepUpdatedAt(rec models.WorkoutRecord, raw map[string]any) models.WorkoutRecord {
	if t, ok := toTime(raw["updatedAt"]); ok {
		rec.UpdatedAt = t
	}
	return rec
}
