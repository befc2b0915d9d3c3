package records

import (
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// NormalizePreferences merges raw over the default preferences.
func NormalizePreferences(raw map[string]any) models.Preferences {
	return MergePreferences(models.DefaultPreferences(), raw)
}

// MergePreferences overlays the fields present in raw onto base.
func MergePreferences(base models.Preferences, raw map[string]any) models.Preferences {
	p := base
	if present(raw, "unit") {
		p.Unit = toUnit(raw["unit"])
	}
	if present(raw, "theme") {
		p.Theme = models.Theme(strings.ToLower(strings.TrimSpace(toString(raw["theme"]))))
	}
	if bar, ok := raw["defaultBarbell"].(map[string]any); ok {
		if present(bar, "weight") {
			p.DefaultBarbell.Weight, _ = toFloat(bar["weight"])
		}
		if present(bar, "label") {
			p.DefaultBarbell.Label = strings.TrimSpace(toString(bar["label"]))
		}
	}
	if present(raw, "autoSave") {
		if b, ok := toBool(raw["autoSave"]); ok {
			p.AutoSave = b
		}
	}
	if present(raw, "showNotifications") {
		if b, ok := toBool(raw["showNotifications"]); ok {
			p.ShowNotifications = b
		}
	}
	return p
}

// ValidatePreferences checks enumerated fields and the default barbell.
func ValidatePreferences(p models.Preferences) error {
	var errs []models.FieldError
	if !p.Unit.IsValid() {
		errs = append(errs, models.FieldError{Field: "unit", Message: "must be lbs or kg"})
	}
	if !p.Theme.IsValid() {
		errs = append(errs, models.FieldError{Field: "theme", Message: "must be light or dark"})
	}
	if !positive(p.DefaultBarbell.Weight) {
		errs = append(errs, models.FieldError{Field: "defaultBarbell.weight", Message: "must be a positive number"})
	}
	if strings.TrimSpace(p.DefaultBarbell.Label) == "" {
		errs = append(errs, models.FieldError{Field: "defaultBarbell.label", Message: "is required"})
	}
	if len(errs) > 0 {
		return &models.ValidationError{Errors: errs}
	}
	return nil
}

// MergeSettings overlays the fields present in raw onto base. FirstUse is
// only taken from raw when base has none.
func MergeSettings(base models.AppSettings, raw map[string]any) models.AppSettings {
	s := base
	if present(raw, "dataVersion") {
		s.DataVersion = strings.TrimSpace(toString(raw["dataVersion"]))
	}
	if present(raw, "lastBackup") {
		if t, ok := toTime(raw["lastBackup"]); ok {
			s.LastBackup = &t
		}
	}
	if present(raw, "totalWorkouts") {
		if n, ok := toInt(raw["totalWorkouts"]); ok {
			s.TotalWorkouts = n
		}
	}
	if s.FirstUse == nil && present(raw, "firstUse") {
		if t, ok := toTime(raw["firstUse"]); ok {
			s.FirstUse = &t
		}
	}
	return s
}

// NormalizeSettings merges raw over fresh settings. A stored firstUse wins
// over the fresh value.
func NormalizeSettings(raw map[string]any, now time.Time) models.AppSettings {
	s := models.DefaultSettings(now)
	if present(raw, "firstUse") {
		s.FirstUse = nil
	}
	s = MergeSettings(s, raw)
	if s.FirstUse == nil {
		first := now.UTC()
		s.FirstUse = &first
	}
	return s
}

// ValidateSettings checks the bookkeeping fields.
func ValidateSettings(s models.AppSettings) error {
	var errs []models.FieldError
	if strings.TrimSpace(s.DataVersion) == "" {
		errs = append(errs, models.FieldError{Field: "dataVersion", Message: "is required"})
	}
	if s.TotalWorkouts < 0 {
		errs = append(errs, models.FieldError{Field: "totalWorkouts", Message: "must not be negative"})
	}
	if len(errs) > 0 {
		return &models.ValidationError{Errors: errs}
	}
	return nil
}

// RepairPreferences replaces each invalid field of p with its default.
func RepairPreferences(p models.Preferences) models.Preferences {
	def := models.DefaultPreferences()
	if !p.Unit.IsValid() {
		p.Unit = def.Unit
	}
	if !p.Theme.IsValid() {
		p.Theme = def.Theme
	}
	if !positive(p.DefaultBarbell.Weight) || strings.TrimSpace(p.DefaultBarbell.Label) == "" {
		p.DefaultBarbell = def.DefaultBarbell
	}
	return p
}
