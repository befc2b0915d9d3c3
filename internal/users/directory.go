// Package users manages local user profiles, the current-user session
// pointer and a per-user activity log. Profiles are never removed; deleting
// a user only clears its active flag.
package users

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/records"
	"github.com/claude/liftlog/internal/storage"
)

const (
	minNameLen = 2
	maxNameLen = 50
	// activity entries kept per user
	maxActivity = 100
)

var nameRe = regexp.MustCompile(`^[\p{L}\p{N} ._'-]+$`)

// Directory stores profiles in the shared key-value store under the
// unscoped users, current_user and user_sessions keys.
type Directory struct {
	mu    sync.Mutex
	store kv.Store
	ids   records.IDGenerator
	now   func() time.Time
	log   *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// New creates a Directory.
func New(store kv.Store, gen records.IDGenerator, log *slog.Logger, opts ...Option) *Directory {
	d := &Directory{store: store, ids: gen, now: time.Now, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Update holds the fields that can change on a profile. Nil fields are left
// unchanged.
type Update struct {
	Name        *string             `json:"name,omitempty"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

// ValidateName checks length and charset. It does not check uniqueness.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < minNameLen || n > maxNameLen:
		return models.NewValidationError("name", fmt.Sprintf("must be %d-%d characters", minNameLen, maxNameLen))
	case !nameRe.MatchString(name):
		return models.NewValidationError("name", "may only contain letters, digits, spaces and . _ ' -")
	}
	return nil
}

// List returns profiles in creation order. Inactive profiles are included
// only when includeInactive is set.
func (d *Directory) List(ctx context.Context, includeInactive bool) ([]models.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return all, nil
	}
	active := make([]models.UserProfile, 0, len(all))
	for _, u := range all {
		if u.IsActive {
			active = append(active, u)
		}
	}
	return active, nil
}

// Get returns a profile by id, active or not.
func (d *Directory) Get(ctx context.Context, id string) (models.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return models.UserProfile{}, missing("get", id)
	}
	return all[idx], nil
}

// Create adds an active profile. prefs may be nil for defaults.
func (d *Directory) Create(ctx context.Context, name string, prefs *models.Preferences) (models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return models.UserProfile{}, err
	}
	p := models.DefaultPreferences()
	if prefs != nil {
		if err := records.ValidatePreferences(*prefs); err != nil {
			return models.UserProfile{}, err
		}
		p = *prefs
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	if nameTaken(all, name, "") {
		return models.UserProfile{}, &models.DirectoryError{Op: "create", Reason: fmt.Sprintf("name %q is already in use", name)}
	}

	existing := make(map[string]struct{}, len(all))
	for _, u := range all {
		existing[u.ID] = struct{}{}
	}
	now := d.now().UTC()
	u := models.UserProfile{
		ID:          d.ids.Generate(existing),
		Name:        name,
		CreatedAt:   now,
		LastActive:  now,
		Preferences: p,
		IsActive:    true,
	}
	if err := d.save(ctx, append(all, u)); err != nil {
		return models.UserProfile{}, err
	}
	d.logActivity(ctx, u.ID, models.ActivityCreated)
	return u, nil
}

// Update changes an active profile.
func (d *Directory) Update(ctx context.Context, id string, upd Update) (models.UserProfile, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := ValidateName(name); err != nil {
			return models.UserProfile{}, err
		}
		upd.Name = &name
	}
	if upd.Preferences != nil {
		if err := records.ValidatePreferences(*upd.Preferences); err != nil {
			return models.UserProfile{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return models.UserProfile{}, missing("update", id)
	}
	if !all[idx].IsActive {
		return models.UserProfile{}, &models.DirectoryError{Op: "update", UserID: id, Reason: "user is inactive"}
	}
	if upd.Name != nil {
		if nameTaken(all, *upd.Name, id) {
			return models.UserProfile{}, &models.DirectoryError{Op: "update", UserID: id, Reason: fmt.Sprintf("name %q is already in use", *upd.Name)}
		}
		all[idx].Name = *upd.Name
	}
	if upd.Preferences != nil {
		all[idx].Preferences = *upd.Preferences
	}
	all[idx].LastActive = d.now().UTC()

	if err := d.save(ctx, all); err != nil {
		return models.UserProfile{}, err
	}
	d.logActivity(ctx, id, models.ActivityUpdated)
	return all[idx], nil
}

// Delete soft-deletes a profile and clears the session if it pointed at it.
func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return missing("delete", id)
	}
	if !all[idx].IsActive {
		return nil
	}
	all[idx].IsActive = false
	if err := d.save(ctx, all); err != nil {
		return err
	}

	current, err := d.currentID(ctx)
	if err != nil {
		return err
	}
	if current == id {
		if err := d.store.Remove(ctx, storage.KeyCurrentUser); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
	}
	d.logActivity(ctx, id, models.ActivityDeleted)
	d.log.Info("user deactivated", "user_id", id)
	return nil
}

// SetWorkoutCount records the user's workout total in the profile metadata.
func (d *Directory) SetWorkoutCount(ctx context.Context, id string, total int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return missing("update", id)
	}
	if all[idx].Metadata.TotalWorkouts == total {
		return nil
	}
	all[idx].Metadata.TotalWorkouts = total
	return d.save(ctx, all)
}

func (d *Directory) load(ctx context.Context) ([]models.UserProfile, error) {
	v, ok, err := d.store.Get(ctx, storage.KeyUsers)
	if err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}
	if !ok || v == "" {
		return []models.UserProfile{}, nil
	}
	var all []models.UserProfile
	if err := json.Unmarshal([]byte(v), &all); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	return all, nil
}

func (d *Directory) save(ctx context.Context, all []models.UserProfile) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	if err := d.store.Set(ctx, storage.KeyUsers, string(data)); err != nil {
		return fmt.Errorf("writing users: %w", err)
	}
	return nil
}

func indexOf(all []models.UserProfile, id string) int {
	for i, u := range all {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// nameTaken reports whether an active profile other than exceptID uses name,
// ignoring case.
func nameTaken(all []models.UserProfile, name, exceptID string) bool {
	for _, u := range all {
		if u.IsActive && u.ID != exceptID && strings.EqualFold(u.Name, name) {
			return true
		}
	}
	return false
}

func missing(op, id string) error {
	return &models.DirectoryError{Op: op, UserID: id, Reason: "user not found", Missing: true}
}
