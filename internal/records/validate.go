package records

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/models"
)

const (
	maxExerciseLen = 100
	maxBarbellLen  = 100
	maxNotesLen    = 1000
)

// Validate checks a workout record. Every failing field is reported in the
// returned *models.ValidationError.
func Validate(rec models.WorkoutRecord) error {
	var errs []models.FieldError
	add := func(field, msg string) {
		errs = append(errs, models.FieldError{Field: field, Message: msg})
	}

	switch {
	case rec.ID == "":
		add("id", "is required")
	case !ids.IsValid(rec.ID):
		add("id", "has an unrecognised format")
	}

	if rec.Date == "" {
		add("date", "is required")
	} else if _, err := time.Parse(models.DateLayout, rec.Date); err != nil {
		add("date", "must be a calendar date (YYYY-MM-DD)")
	}

	exercise := strings.TrimSpace(rec.Exercise)
	switch {
	case exercise == "":
		add("exercise", "is required")
	case utf8.RuneCountInString(exercise) > maxExerciseLen:
		add("exercise", "must be at most 100 characters")
	}

	if !positive(rec.TargetWeight) {
		add("targetWeight", "must be a positive number")
	}
	if !positive(rec.ActualWeight) {
		add("actualWeight", "must be a positive number")
	}
	if !rec.Unit.IsValid() {
		add("unit", "must be lbs or kg")
	}
	if utf8.RuneCountInString(rec.Barbell) > maxBarbellLen {
		add("barbell", "must be at most 100 characters")
	}
	if rec.Sets <= 0 {
		add("sets", "must be a positive integer")
	}
	if rec.Reps <= 0 {
		add("reps", "must be a positive integer")
	}
	if utf8.RuneCountInString(rec.Notes) > maxNotesLen {
		add("notes", "must be at most 1000 characters")
	}

	if len(errs) > 0 {
		return &models.ValidationError{Errors: errs}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
