package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/observability"
	"github.com/claude/liftlog/internal/records"
)

// schemaStep upgrades one scope's data by one version.
type schemaStep struct {
	to    string
	apply func(ctx context.Context, b *LocalBackend) error
}

var schemaSteps = map[string]schemaStep{
	models.LegacySchemaVersion: {to: models.SchemaVersion, apply: migrateV1ToV2},
}

// MigrateData upgrades the current scope from one schema version to
// another. The route is planned before anything is written; if no route
// exists a *models.MigrationError is returned and the data is untouched.
func (b *LocalBackend) MigrateData(ctx context.Context, from, to string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.migrateSchema(ctx, from, to)
	if from != to {
		observability.RecordMigration("schema", err)
	}
	return err
}

func (b *LocalBackend) migrateSchema(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}

	var route []schemaStep
	visited := make(map[string]bool)
	for v := from; v != to; {
		step, ok := schemaSteps[v]
		if !ok || visited[v] {
			return &models.MigrationError{From: from, To: to, Err: fmt.Errorf("no migration registered from %s", v)}
		}
		visited[v] = true
		route = append(route, step)
		v = step.to
	}

	for _, step := range route {
		if err := step.apply(ctx, b); err != nil {
			return &models.MigrationError{From: from, To: to, Err: err}
		}
	}
	if err := b.setDataVersion(ctx, to); err != nil {
		return &models.MigrationError{From: from, To: to, Err: err}
	}
	b.log.Info("data migrated", "user_id", b.userID, "from", from, "to", to)
	return nil
}

// migrateV1ToV2 re-normalizes every record (replacing legacy numeric ids),
// fills preferences from defaults and recomputes the settings bookkeeping.
func migrateV1ToV2(ctx context.Context, b *LocalBackend) error {
	key := b.key(KeyWorkoutHistory)
	entries, err := b.readEntries(ctx, key)
	if err != nil {
		return err
	}
	recs, stored, _ := b.repair(entries)
	if entries != nil {
		if err := b.writeJSON(ctx, key, stored); err != nil {
			return err
		}
	}

	prefsKey := b.key(KeyPreferences)
	raw, ok, err := b.readObject(ctx, prefsKey)
	if err != nil {
		return err
	}
	if ok {
		prefs := records.RepairPreferences(records.NormalizePreferences(raw))
		if err := b.writeJSON(ctx, prefsKey, prefs); err != nil {
			return err
		}
	}

	settings, err := b.loadSettings(ctx)
	if err != nil {
		return err
	}
	settings.TotalWorkouts = len(recs)
	settings.DataVersion = models.SchemaVersion
	return b.writeJSON(ctx, b.key(KeySettings), settings)
}
