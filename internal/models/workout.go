package models

import "time"

// SchemaVersion is the data version written by this build. Stored data tagged
// with any other version is eligible for migration.
const SchemaVersion = "2.0.0"

// LegacySchemaVersion is assumed for stores that hold records but no version tag.
const LegacySchemaVersion = "1.0.0"

// DateLayout is the calendar-date format used for WorkoutRecord.Date.
const DateLayout = "2006-01-02"

// Unit is a weight unit.
type Unit string

const (
	UnitLbs Unit = "lbs"
	UnitKg  Unit = "kg"
)

// IsValid reports whether u is one of the supported units.
func (u Unit) IsValid() bool {
	return u == UnitLbs || u == UnitKg
}

// WorkoutRecord is one logged lift.
type WorkoutRecord struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Exercise     string    `json:"exercise"`
	TargetWeight float64   `json:"targetWeight"`
	ActualWeight float64   `json:"actualWeight"`
	Unit         Unit      `json:"unit"`
	Barbell      string    `json:"barbell"`
	Sets         int       `json:"sets"`
	Reps         int       `json:"reps"`
	Completed    bool      `json:"completed"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Day parses Date as a calendar day in UTC.
func (w WorkoutRecord) Day() (time.Time, error) {
	return time.Parse(DateLayout, w.Date)
}

// WorkoutPatch holds a partial update. Nil fields are left unchanged.
type WorkoutPatch struct {
	Date         *string  `json:"date,omitempty"`
	Exercise     *string  `json:"exercise,omitempty"`
	TargetWeight *float64 `json:"targetWeight,omitempty"`
	ActualWeight *float64 `json:"actualWeight,omitempty"`
	Unit         *Unit    `json:"unit,omitempty"`
	Barbell      *string  `json:"barbell,omitempty"`
	Sets         *int     `json:"sets,omitempty"`
	Reps         *int     `json:"reps,omitempty"`
	Completed    *bool    `json:"completed,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

// Apply returns a copy of w with the patch applied.
func (p WorkoutPatch) Apply(w WorkoutRecord) WorkoutRecord {
	if p.Date != nil {
		w.Date = *p.Date
	}
	if p.Exercise != nil {
		w.Exercise = *p.Exercise
	}
	if p.TargetWeight != nil {
		w.TargetWeight = *p.TargetWeight
	}
	if p.ActualWeight != nil {
		w.ActualWeight = *p.ActualWeight
	}
	if p.Unit != nil {
		w.Unit = *p.Unit
	}
	if p.Barbell != nil {
		w.Barbell = *p.Barbell
	}
	if p.Sets != nil {
		w.Sets = *p.Sets
	}
	if p.Reps != nil {
		w.Reps = *p.Reps
	}
	if p.Completed != nil {
		w.Completed = *p.Completed
	}
	if p.Notes != nil {
		w.Notes = *p.Notes
	}
	return w
}
