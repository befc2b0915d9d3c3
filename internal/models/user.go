package models

import "time"

// UserProfile is a local user. Profiles are never hard-deleted; deletion
// clears IsActive.
type UserProfile struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CreatedAt   time.Time    `json:"createdAt"`
	LastActive  time.Time    `json:"lastActive"`
	Preferences Preferences  `json:"preferences"`
	IsActive    bool         `json:"isActive"`
	Metadata    UserMetadata `json:"metadata"`
}

// UserMetadata holds derived per-user counters.
type UserMetadata struct {
	TotalWorkouts int `json:"totalWorkouts"`
}

// ActivityEntry is one entry of a user's activity log.
type ActivityEntry struct {
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Activity types recorded by the user directory.
const (
	ActivityCreated  = "created"
	ActivityUpdated  = "updated"
	ActivityDeleted  = "deleted"
	ActivitySelected = "selected"
	ActivityLogout   = "logout"
)
