package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/observability"
)

// LegacyResult reports what MigrateLegacyData moved.
type LegacyResult struct {
	UserID       string   `json:"userId"`
	MigratedKeys []string `json:"migratedKeys"`
	// Workouts is the number of legacy records added to the user's history.
	Workouts int `json:"workouts"`
}

// HasLegacyData reports whether any unscoped data keys exist.
func (b *LocalBackend) HasLegacyData(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, base := range ScopedBases {
		_, ok, err := b.store.Get(ctx, base)
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", base, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// MigrateLegacyData moves unscoped data into userID's keys and deletes the
// unscoped originals. Legacy workouts are appended to any history the user
// already has, skipping ids already present; other keys are copied only when
// the user has no value of their own. A second call finds nothing to move.
func (b *LocalBackend) MigrateLegacyData(ctx context.Context, userID string) (LegacyResult, error) {
	if userID == "" {
		return LegacyResult{}, models.NewValidationError("userId", "is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	res := LegacyResult{UserID: userID, MigratedKeys: []string{}}
	err := b.migrateLegacy(ctx, userID, &res)
	if len(res.MigratedKeys) > 0 || err != nil {
		observability.RecordMigration("legacy", err)
	}
	if err != nil {
		return res, err
	}
	if len(res.MigratedKeys) > 0 {
		b.log.Info("legacy data migrated", "user_id", userID, "keys", res.MigratedKeys, "workouts", res.Workouts)
	}
	return res, nil
}

func (b *LocalBackend) migrateLegacy(ctx context.Context, userID string, res *LegacyResult) error {
	for _, base := range ScopedBases {
		legacy, ok, err := b.store.Get(ctx, base)
		if err != nil {
			return fmt.Errorf("reading %s: %w", base, err)
		}
		if !ok {
			continue
		}
		target := ScopedKey(base, userID)

		if base == KeyWorkoutHistory {
			added, err := b.mergeLegacyHistory(ctx, legacy, target)
			if err != nil {
				return &models.MigrationError{From: base, To: target, Err: err}
			}
			res.Workouts = added
		} else {
			if base != KeyDataVersion && !json.Valid([]byte(legacy)) {
				return &models.MigrationError{From: base, To: target, Err: errors.New("legacy value is not valid JSON")}
			}
			_, exists, err := b.store.Get(ctx, target)
			if err != nil {
				return fmt.Errorf("reading %s: %w", target, err)
			}
			if !exists {
				if err := b.set(ctx, target, legacy); err != nil {
					return &models.MigrationError{From: base, To: target, Err: err}
				}
			}
		}

		if err := b.store.Remove(ctx, base); err != nil {
			return fmt.Errorf("removing %s: %w", base, err)
		}
		res.MigratedKeys = append(res.MigratedKeys, base)
	}
	return nil
}

// mergeLegacyHistory appends legacy entries to target, skipping entries
// whose id already appears there. Entries are copied verbatim; the next read
// of the scope normalizes them.
func (b *LocalBackend) mergeLegacyHistory(ctx context.Context, legacy, target string) (int, error) {
	var incoming []json.RawMessage
	if err := json.Unmarshal([]byte(legacy), &incoming); err != nil {
		return 0, fmt.Errorf("decoding legacy history: %w", err)
	}
	current, err := b.readEntries(ctx, target)
	if err != nil {
		return 0, err
	}

	have := make(map[string]struct{}, len(current))
	for _, e := range current {
		if id, ok := entryID(e); ok {
			have[id] = struct{}{}
		}
	}

	merged := make([]json.RawMessage, 0, len(current)+len(incoming))
	merged = append(merged, current...)
	added := 0
	for _, e := range incoming {
		if id, ok := entryID(e); ok {
			if _, dup := have[id]; dup {
				continue
			}
			have[id] = struct{}{}
		}
		merged = append(merged, e)
		added++
	}

	if err := b.writeJSON(ctx, target, merged); err != nil {
		return 0, err
	}
	return added, nil
}

// entryID returns the raw JSON text of an entry's id so numeric and string
// ids never compare equal.
func entryID(e json.RawMessage) (string, bool) {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(e, &probe); err != nil || len(probe.ID) == 0 || string(probe.ID) == "null" {
		return "", false
	}
	return string(probe.ID), true
}
