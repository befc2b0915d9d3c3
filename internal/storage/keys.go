package storage

import "strings"

// Logical storage keys.
const (
	KeyWorkoutHistory = "workout_history"
	KeyPreferences    = "user_preferences"
	KeySettings       = "app_settings"
	KeyDataVersion    = "data_version"

	// Directory keys are never user-scoped.
	KeyUsers       = "users"
	KeyCurrentUser = "current_user"
	KeySessions    = "user_sessions"
)

const scopeInfix = "_user_"

// healthKey is written and removed by health checks.
const healthKey = "liftlog_health_check"

// ScopedBases are the keys that are namespaced per user.
var ScopedBases = []string{KeyWorkoutHistory, KeyPreferences, KeySettings, KeyDataVersion}

// ScopedKey returns base namespaced to userID, or base itself when userID is
// empty.
func ScopedKey(base, userID string) string {
	if userID == "" {
		return base
	}
	return base + scopeInfix + userID
}

// SplitScopedKey reverses ScopedKey. ok is false for unscoped keys.
func SplitScopedKey(key string) (base, userID string, ok bool) {
	for _, b := range ScopedBases {
		if rest, found := strings.CutPrefix(key, b+scopeInfix); found && rest != "" {
			return b, rest, true
		}
	}
	return key, "", false
}
