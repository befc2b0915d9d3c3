package users

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// SetCurrentUser points the session at an active user.
func (d *Directory) SetCurrentUser(ctx context.Context, id string) (models.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.load(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return models.UserProfile{}, missing("select", id)
	}
	if !all[idx].IsActive {
		return models.UserProfile{}, &models.DirectoryError{Op: "select", UserID: id, Reason: "user is inactive"}
	}

	if err := d.store.Set(ctx, storage.KeyCurrentUser, id); err != nil {
		return models.UserProfile{}, fmt.Errorf("writing session: %w", err)
	}
	all[idx].LastActive = d.now().UTC()
	if err := d.save(ctx, all); err != nil {
		d.log.Warn("updating last active", "user_id", id, "error", err)
	}
	d.logActivity(ctx, id, models.ActivitySelected)
	return all[idx], nil
}

// CurrentUser returns the session's user. ok is false when nobody is
// selected or the pointer refers to a missing or inactive profile.
func (d *Directory) CurrentUser(ctx context.Context) (u models.UserProfile, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.currentID(ctx)
	if err != nil || id == "" {
		return models.UserProfile{}, false, err
	}
	all, err := d.load(ctx)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	idx := indexOf(all, id)
	if idx < 0 || !all[idx].IsActive {
		return models.UserProfile{}, false, nil
	}
	return all[idx], true, nil
}

// Logout clears the session pointer. Profiles are not touched.
func (d *Directory) Logout(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.currentID(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if err := d.store.Remove(ctx, storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	d.logActivity(ctx, id, models.ActivityLogout)
	return nil
}

func (d *Directory) currentID(ctx context.Context) (string, error) {
	v, _, err := d.store.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	return v, nil
}

// Activity returns the user's activity log, oldest first.
func (d *Directory) Activity(ctx context.Context, userID string) ([]models.ActivityEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all, err := d.loadActivity(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ActivityEntry, 0)
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// logActivity appends an entry and prunes each user to the newest
// maxActivity entries. Failures are logged; the activity log is advisory.
// An unreadable log is left as stored and the entry is dropped.
func (d *Directory) logActivity(ctx context.Context, userID, typ string) {
	all, err := d.loadActivity(ctx)
	if err != nil {
		d.log.Warn("reading activity log, entry not recorded", "user_id", userID, "type", typ, "error", err)
		return
	}
	all = append(all, models.ActivityEntry{UserID: userID, Type: typ, Timestamp: d.now().UTC()})
	all = prune(all, maxActivity)

	data, err := json.Marshal(all)
	if err == nil {
		err = d.store.Set(ctx, storage.KeySessions, string(data))
	}
	if err != nil {
		d.log.Warn("writing activity log", "user_id", userID, "error", err)
	}
}

func (d *Directory) loadActivity(ctx context.Context) ([]models.ActivityEntry, error) {
	v, ok, err := d.store.Get(ctx, storage.KeySessions)
	if err != nil {
		return nil, fmt.Errorf("reading activity: %w", err)
	}
	if !ok || v == "" {
		return nil, nil
	}
	var all []models.ActivityEntry
	if err := json.Unmarshal([]byte(v), &all); err != nil {
		return nil, fmt.Errorf("decoding activity: %w", err)
	}
	return all, nil
}

// prune keeps the newest limit entries per user, preserving order.
func prune(all []models.ActivityEntry, limit int) []models.ActivityEntry {
	counts := make(map[string]int)
	for _, e := range all {
		counts[e.UserID]++
	}
	out := make([]models.ActivityEntry, 0, len(all))
	for _, e := range all {
		if counts[e.UserID] > limit {
			counts[e.UserID]--
			continue
		}
		out = append(out, e)
	}
	return out
}
