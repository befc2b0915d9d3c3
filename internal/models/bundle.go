package models

import "time"

// ExportBundle is the backup file format.
type ExportBundle struct {
	Version     string          `json:"version"`
	ExportDate  time.Time       `json:"exportDate"`
	Workouts    []WorkoutRecord `json:"workouts"`
	Preferences Preferences     `json:"preferences"`
	Settings    AppSettings     `json:"settings"`
	Metadata    BundleMetadata  `json:"metadata"`
}

// BundleMetadata summarises the bundle contents.
type BundleMetadata struct {
	TotalWorkouts int        `json:"totalWorkouts"`
	DateRange     *DateRange `json:"dateRange"`
}

// DateRange bounds the workout dates in epoch milliseconds.
type DateRange struct {
	Earliest int64 `json:"earliest"`
	Latest   int64 `json:"latest"`
}

// ImportBundle is a loosely-typed bundle as read from a backup file. Records,
// preferences and settings stay as raw maps until they are normalized, so
// partial or legacy-shaped files can still be merged.
type ImportBundle struct {
	Version     string           `json:"version"`
	ExportDate  any              `json:"exportDate"`
	Workouts    []map[string]any `json:"workouts"`
	Preferences map[string]any   `json:"preferences"`
	Settings    map[string]any   `json:"settings"`
	Metadata    map[string]any   `json:"metadata"`
}

// ImportResult reports the outcome of merging an ImportBundle.
type ImportResult struct {
	Received        int      `json:"received"`
	Imported        int      `json:"imported"`
	Duplicates      int      `json:"duplicates"`
	Invalid         int      `json:"invalid"`
	TotalWorkouts   int      `json:"totalWorkouts"`
	VersionMismatch bool     `json:"versionMismatch"`
	Warnings        []string `json:"warnings,omitempty"`
}
