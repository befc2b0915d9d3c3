package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/liftlog/internal/backup"
	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/observability"
	"github.com/claude/liftlog/internal/records"
)

// LocalBackend stores JSON collections in a kv.Store under optionally
// user-scoped keys.
//
// Each operation reads the whole collection, changes it in memory and writes
// it back while holding mu. Scope changes take the same lock, so no call
// observes two users' keys.
type LocalBackend struct {
	mu     sync.Mutex
	store  kv.Store
	norm   *records.Normalizer
	log    *slog.Logger
	userID string
}

var _ Backend = (*LocalBackend)(nil)

// NewLocal creates a LocalBackend with no user scope.
func NewLocal(store kv.Store, norm *records.Normalizer, log *slog.Logger) *LocalBackend {
	return &LocalBackend{store: store, norm: norm, log: log}
}

func (b *LocalBackend) Kind() Kind { return KindLocalStorage }

func (b *LocalBackend) SetUserScope(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userID = userID
}

func (b *LocalBackend) UserID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

func (b *LocalBackend) key(base string) string {
	return ScopedKey(base, b.userID)
}

// --- workouts ---

// GetWorkoutHistory returns every stored record that is valid after
// normalization. Invalid entries are logged and skipped; when ids had to be
// repaired the list is written back so they stay stable across reads.
func (b *LocalBackend) GetWorkoutHistory(ctx context.Context) ([]models.WorkoutRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadHistory(ctx)
}

func (b *LocalBackend) SaveWorkout(ctx context.Context, rec models.WorkoutRecord) (models.WorkoutRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.WorkoutRecord{}, err
	}
	idx := indexOf(recs, rec.ID)

	out := b.norm.Fill(rec, records.IDSet(recs))
	if idx >= 0 {
		out.CreatedAt = recs[idx].CreatedAt
	}
	if err := records.Validate(out); err != nil {
		return models.WorkoutRecord{}, err
	}

	if idx >= 0 {
		recs[idx] = out
	} else {
		recs = append([]models.WorkoutRecord{out}, recs...)
	}
	if err := b.writeHistory(ctx, recs); err != nil {
		return models.WorkoutRecord{}, err
	}
	return out, nil
}

func (b *LocalBackend) UpdateWorkout(ctx context.Context, id string, patch models.WorkoutPatch) (models.WorkoutRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.WorkoutRecord{}, err
	}
	idx := indexOf(recs, id)
	if idx < 0 {
		return models.WorkoutRecord{}, &models.NotFoundError{Kind: "workout", ID: id}
	}

	updated := patch.Apply(recs[idx])
	updated.ID = recs[idx].ID
	updated.CreatedAt = recs[idx].CreatedAt
	updated.UpdatedAt = b.norm.Now()
	if err := records.Validate(updated); err != nil {
		return models.WorkoutRecord{}, err
	}

	recs[idx] = updated
	if err := b.writeHistory(ctx, recs); err != nil {
		return models.WorkoutRecord{}, err
	}
	return updated, nil
}

func (b *LocalBackend) DeleteWorkout(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.loadHistory(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(recs, id)
	if idx < 0 {
		return &models.NotFoundError{Kind: "workout", ID: id}
	}
	recs = append(recs[:idx], recs[idx+1:]...)
	return b.writeHistory(ctx, recs)
}

func (b *LocalBackend) ClearWorkoutHistory(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeHistory(ctx, []models.WorkoutRecord{})
}

func indexOf(recs []models.WorkoutRecord, id string) int {
	if id == "" {
		return -1
	}
	for i, r := range recs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (b *LocalBackend) loadHistory(ctx context.Context) ([]models.WorkoutRecord, error) {
	key := b.key(KeyWorkoutHistory)
	entries, err := b.readEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	recs, stored, repaired := b.repair(entries)
	if repaired {
		if err := b.writeJSON(ctx, key, stored); err != nil {
			// The repaired ids are returned either way; the next read repairs again.
			b.log.Warn("persisting repaired workout ids", "key", key, "error", err)
		}
	}
	return recs, nil
}

func (b *LocalBackend) readEntries(ctx context.Context, key string) ([]json.RawMessage, error) {
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(v), &entries); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return entries, nil
}

// repair normalizes stored entries. It returns the valid records, the list
// to store if a write-back is needed (invalid entries kept verbatim) and
// whether any valid record's id changed. Ids duplicated within the list are
// reassigned after their first occurrence.
func (b *LocalBackend) repair(entries []json.RawMessage) (valid []models.WorkoutRecord, stored []any, repaired bool) {
	raws := make([]map[string]any, len(entries))
	existing := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		var m map[string]any
		if err := json.Unmarshal(e, &m); err != nil {
			continue
		}
		raws[i] = m
		if id, ok := m["id"].(string); ok && ids.IsCurrent(id) {
			existing[id] = struct{}{}
		}
	}

	valid = make([]models.WorkoutRecord, 0, len(entries))
	stored = make([]any, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	dropped := 0
	for i, raw := range raws {
		if raw == nil {
			dropped++
			b.log.Warn("dropping unreadable workout record", "index", i)
			stored = append(stored, entries[i])
			continue
		}
		rec := records.KeepUpdatedAt(b.norm.Normalize(raw, existing), raw)
		if _, dup := seen[rec.ID]; dup {
			rec.ID = b.norm.NewID(existing)
		}
		existing[rec.ID] = struct{}{}

		if err := records.Validate(rec); err != nil {
			dropped++
			b.log.Warn("dropping invalid workout record", "index", i, "error", err)
			stored = append(stored, entries[i])
			continue
		}
		if orig, _ := raw["id"].(string); orig != rec.ID {
			repaired = true
		}
		seen[rec.ID] = struct{}{}
		valid = append(valid, rec)
		stored = append(stored, rec)
	}
	observability.RecordDroppedRecords(dropped)
	return valid, stored, repaired
}

// writeHistory replaces the stored history and syncs settings.totalWorkouts.
// Once the history is committed the call succeeds; a failed settings sync is
// logged and corrected on the next settings read.
func (b *LocalBackend) writeHistory(ctx context.Context, recs []models.WorkoutRecord) error {
	if err := b.writeJSON(ctx, b.key(KeyWorkoutHistory), recs); err != nil {
		return err
	}
	b.stampDataVersion(ctx)

	settings, err := b.loadSettings(ctx)
	if err != nil {
		b.log.Warn("syncing workout count", "user_id", b.userID, "error", err)
		return nil
	}
	settings.TotalWorkouts = len(recs)
	if err := b.writeJSON(ctx, b.key(KeySettings), settings); err != nil {
		b.log.Warn("syncing workout count", "user_id", b.userID, "error", err)
	}
	return nil
}

// stampDataVersion tags a scope written by this build with the current
// schema version. An existing tag is left alone.
func (b *LocalBackend) stampDataVersion(ctx context.Context) {
	key := b.key(KeyDataVersion)
	_, ok, err := b.store.Get(ctx, key)
	if err == nil && ok {
		return
	}
	if err == nil {
		err = b.setDataVersion(ctx, models.SchemaVersion)
	}
	if err != nil {
		b.log.Warn("stamping data version", "key", key, "error", err)
	}
}

// --- preferences and settings ---

func (b *LocalBackend) GetPreferences(ctx context.Context) (models.Preferences, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadPreferences(ctx)
}

// SavePreferences replaces the stored preferences. Empty fields take their
// defaults.
func (b *LocalBackend) SavePreferences(ctx context.Context, prefs models.Preferences) (models.Preferences, error) {
	def := models.DefaultPreferences()
	if prefs.Unit == "" {
		prefs.Unit = def.Unit
	}
	if prefs.Theme == "" {
		prefs.Theme = def.Theme
	}
	if prefs.DefaultBarbell == (models.Barbell{}) {
		prefs.DefaultBarbell = def.DefaultBarbell
	}
	if err := records.ValidatePreferences(prefs); err != nil {
		return models.Preferences{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeJSON(ctx, b.key(KeyPreferences), prefs); err != nil {
		return models.Preferences{}, err
	}
	return prefs, nil
}

func (b *LocalBackend) loadPreferences(ctx context.Context) (models.Preferences, error) {
	key := b.key(KeyPreferences)
	raw, ok, err := b.readObject(ctx, key)
	if err != nil {
		return models.Preferences{}, err
	}
	if !ok {
		prefs := models.DefaultPreferences()
		if err := b.writeJSON(ctx, key, prefs); err != nil {
			b.log.Warn("storing default preferences", "key", key, "error", err)
		}
		return prefs, nil
	}
	prefs := records.NormalizePreferences(raw)
	if err := records.ValidatePreferences(prefs); err != nil {
		b.log.Warn("repairing stored preferences", "key", key, "error", err)
		prefs = records.RepairPreferences(prefs)
	}
	return prefs, nil
}

// GetSettings returns the stored settings with totalWorkouts taken from the
// stored history.
func (b *LocalBackend) GetSettings(ctx context.Context) (models.AppSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings, err := b.loadSettings(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	settings.TotalWorkouts = len(recs)
	return settings, nil
}

// SaveSettings replaces the stored settings. firstUse keeps its stored value
// once set, and totalWorkouts always reflects the stored history.
func (b *LocalBackend) SaveSettings(ctx context.Context, settings models.AppSettings) (models.AppSettings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.loadSettings(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.AppSettings{}, err
	}
	if current.FirstUse != nil {
		settings.FirstUse = current.FirstUse
	}
	if settings.DataVersion == "" {
		settings.DataVersion = current.DataVersion
	}
	settings.TotalWorkouts = len(recs)
	if err := records.ValidateSettings(settings); err != nil {
		return models.AppSettings{}, err
	}
	if err := b.writeJSON(ctx, b.key(KeySettings), settings); err != nil {
		return models.AppSettings{}, err
	}
	return settings, nil
}

// loadSettings returns the stored settings, creating them on first access so
// that firstUse is fixed from then on.
func (b *LocalBackend) loadSettings(ctx context.Context) (models.AppSettings, error) {
	key := b.key(KeySettings)
	raw, ok, err := b.readObject(ctx, key)
	if err != nil {
		return models.AppSettings{}, err
	}
	now := b.norm.Now()
	settings := records.NormalizeSettings(raw, now)
	if !ok || raw["firstUse"] == nil {
		if err := b.writeJSON(ctx, key, settings); err != nil {
			b.log.Warn("storing settings", "key", key, "error", err)
		}
	}
	return settings, nil
}

func (b *LocalBackend) readObject(ctx context.Context, key string) (map[string]any, bool, error) {
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok || v == "" {
		return nil, false, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		b.log.Warn("ignoring unreadable stored object", "key", key, "error", err)
		return nil, false, nil
	}
	return raw, true, nil
}

// --- bulk operations ---

// ExportData stamps lastBackup and snapshots the current scope.
func (b *LocalBackend) ExportData(ctx context.Context) (models.ExportBundle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.norm.Now()
	settings, err := b.loadSettings(ctx)
	if err != nil {
		return models.ExportBundle{}, err
	}
	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.ExportBundle{}, err
	}
	settings.LastBackup = &now
	settings.TotalWorkouts = len(recs)
	if err := b.writeJSON(ctx, b.key(KeySettings), settings); err != nil {
		return models.ExportBundle{}, err
	}

	prefs, err := b.loadPreferences(ctx)
	if err != nil {
		return models.ExportBundle{}, err
	}
	return backup.BuildBundle(recs, prefs, settings, now), nil
}

// ImportData merges bundle into the current scope. If any write fails the
// keys already written are restored, so the scope keeps its prior state.
func (b *LocalBackend) ImportData(ctx context.Context, bundle models.ImportBundle) (models.ImportResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs, err := b.loadHistory(ctx)
	if err != nil {
		return models.ImportResult{}, err
	}
	prefs, err := b.loadPreferences(ctx)
	if err != nil {
		return models.ImportResult{}, err
	}
	settings, err := b.loadSettings(ctx)
	if err != nil {
		return models.ImportResult{}, err
	}

	merged := backup.Merge(b.norm, backup.Snapshot{Workouts: recs, Preferences: prefs, Settings: settings}, bundle)
	res := merged.Result

	writes := []struct {
		key string
		v   any
	}{
		{b.key(KeyWorkoutHistory), merged.Workouts},
		{b.key(KeyPreferences), merged.Preferences},
		{b.key(KeySettings), merged.Settings},
	}
	var done []priorValue
	for _, w := range writes {
		prev, err := b.readPrior(ctx, w.key)
		if err != nil {
			b.rollback(ctx, done)
			return res, err
		}
		if err := b.writeJSON(ctx, w.key, w.v); err != nil {
			b.rollback(ctx, done)
			return res, err
		}
		done = append(done, prev)
	}
	b.stampDataVersion(ctx)

	observability.RecordImport(res.Imported, res.Duplicates, res.Invalid)
	b.log.Info("import merged",
		"user_id", b.userID,
		"imported", res.Imported,
		"duplicates", res.Duplicates,
		"invalid", res.Invalid,
		"total", res.TotalWorkouts,
	)
	return res, nil
}

// priorValue is a key's raw value before a multi-key write.
type priorValue struct {
	key   string
	value string
	ok    bool
}

func (b *LocalBackend) readPrior(ctx context.Context, key string) (priorValue, error) {
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return priorValue{}, fmt.Errorf("reading %s: %w", key, err)
	}
	return priorValue{key: key, value: v, ok: ok}, nil
}

// rollback restores prior values in reverse order.
func (b *LocalBackend) rollback(ctx context.Context, prior []priorValue) {
	for i := len(prior) - 1; i >= 0; i-- {
		s := prior[i]
		var err error
		if s.ok {
			err = b.store.Set(ctx, s.key, s.value)
		} else {
			err = b.store.Remove(ctx, s.key)
		}
		if err != nil {
			b.log.Error("restoring after failed write", "key", s.key, "error", err)
		}
	}
}

// ClearAllData removes every key of the current scope. Directory keys are
// left alone.
func (b *LocalBackend) ClearAllData(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, base := range ScopedBases {
		key := b.key(base)
		if err := b.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}
	return nil
}

// --- versioning and health ---

// GetDataVersion returns the stored schema version. A scope with no version
// tag reports the legacy version if it holds records and the current version
// otherwise.
func (b *LocalBackend) GetDataVersion(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataVersion(ctx)
}

func (b *LocalBackend) dataVersion(ctx context.Context) (string, error) {
	key := b.key(KeyDataVersion)
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	if ok && v != "" {
		return v, nil
	}
	entries, err := b.readEntries(ctx, b.key(KeyWorkoutHistory))
	if err != nil {
		return "", err
	}
	if len(entries) > 0 {
		return models.LegacySchemaVersion, nil
	}
	return models.SchemaVersion, nil
}

func (b *LocalBackend) setDataVersion(ctx context.Context, version string) error {
	return b.set(ctx, b.key(KeyDataVersion), version)
}

// HealthCheck writes, reads back and removes a sentinel value.
func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	payload := fmt.Sprintf("ok-%d", b.norm.Now().UnixNano())
	unavailable := func(reason string, err error) error {
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return &models.BackendUnavailableError{Backend: string(KindLocalStorage), Reason: reason}
	}

	if err := b.store.Set(ctx, healthKey, payload); err != nil {
		return unavailable("health check write", err)
	}
	got, ok, err := b.store.Get(ctx, healthKey)
	if err != nil {
		return unavailable("health check read", err)
	}
	if rmErr := b.store.Remove(ctx, healthKey); rmErr != nil {
		return unavailable("health check delete", rmErr)
	}
	if !ok || got != payload {
		return unavailable("health check payload mismatch", nil)
	}
	return nil
}

// --- low-level writes ---

func (b *LocalBackend) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.set(ctx, key, string(data))
}

func (b *LocalBackend) set(ctx context.Context, key, value string) error {
	if err := b.store.Set(ctx, key, value); err != nil {
		if errors.Is(err, models.ErrQuotaExceeded) {
			observability.RecordQuotaExceeded()
			b.log.Error("storage quota exceeded", "key", key, "error", err)
		}
		return fmt.Errorf("writing %s: %w", key, err)
	}
	base, _, _ := SplitScopedKey(key)
	observability.RecordStorageWrite(base)
	return nil
}
