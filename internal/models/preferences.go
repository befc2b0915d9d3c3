package models

import "time"

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// IsValid reports whether t is one of the supported themes.
func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Barbell is a named bar with its empty weight.
type Barbell struct {
	Weight float64 `json:"weight"`
	Label  string  `json:"label"`
}

// Preferences are per-user display and logging preferences.
type Preferences struct {
	Unit              Unit    `json:"unit"`
	Theme             Theme   `json:"theme"`
	DefaultBarbell    Barbell `json:"defaultBarbell"`
	AutoSave          bool    `json:"autoSave"`
	ShowNotifications bool    `json:"showNotifications"`
}

// DefaultPreferences returns the preferences used on first access.
func DefaultPreferences() Preferences {
	return Preferences{
		Unit:              UnitLbs,
		Theme:             ThemeLight,
		DefaultBarbell:    Barbell{Weight: 45, Label: "Olympic Barbell (45 lbs)"},
		AutoSave:          true,
		ShowNotifications: true,
	}
}

// AppSettings is bookkeeping kept next to the workout history.
type AppSettings struct {
	DataVersion   string     `json:"dataVersion"`
	LastBackup    *time.Time `json:"lastBackup"`
	TotalWorkouts int        `json:"totalWorkouts"`
	FirstUse      *time.Time `json:"firstUse"`
}

// DefaultSettings returns settings for a fresh store.
func DefaultSettings(now time.Time) AppSettings {
	first := now.UTC()
	return AppSettings{
		DataVersion: SchemaVersion,
		FirstUse:    &first,
	}
}
