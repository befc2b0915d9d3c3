package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plates"
	"github.com/claude/liftlog/internal/records"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/storage"
)

func newHandlers(t *testing.T) *handlers {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	local := storage.NewLocal(kv.NewMemory(), records.NewNormalizer(ids.New()), log)
	f := service.New(local, log)
	if _, err := f.Initialize(context.Background(), storage.KindLocalStorage, ""); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return &handlers{
		backends: f,
		log:      log,
		now:      func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultJSON decodes the text content of a successful tool result.
func resultJSON(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want TextContent", res.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
}

func TestParseFlexDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2026-03-02", "2026-03-02", false},
		{"2026-03-02T23:30:00Z", "2026-03-02", false},
		{"2026-03-02T23:30:00-05:00", "2026-03-03", false},
		{"not-a-date", "", true},
	}
	for _, tt := range tests {
		got, err := parseFlexDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFlexDate(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFlexDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCalculatePlates(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	res, err := h.calculatePlates(ctx, call(map[string]any{"target": 225.0}))
	if err != nil {
		t.Fatal(err)
	}
	var b plates.Breakdown
	resultJSON(t, res, &b)
	if !b.ExactMatch || b.TotalPlates != 4 {
		t.Errorf("breakdown = %+v, want 4 plates exact", b)
	}

	res, _ = h.calculatePlates(ctx, call(map[string]any{"target": 100.0, "unit": "stone"}))
	if !res.IsError {
		t.Error("unknown unit should be a tool error")
	}
	res, _ = h.calculatePlates(ctx, call(map[string]any{}))
	if !res.IsError {
		t.Error("missing target should be a tool error")
	}
}

func TestLogAndGetWorkouts(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()

	if _, err := h.logWorkout(ctx, call(map[string]any{
		"exercise": "Squat", "target_weight": 100.0, "unit": "kg", "date": "2026-01-05",
	})); err != nil {
		t.Fatal(err)
	}

	res, err := h.logWorkout(ctx, call(map[string]any{
		"exercise":      "Bench Press",
		"target_weight": 187.0,
		"sets":          3.0,
		"reps":          5.0,
		"date":          "2026-03-09",
	}))
	if err != nil {
		t.Fatal(err)
	}
	var saved models.WorkoutRecord
	resultJSON(t, res, &saved)
	if saved.ActualWeight != 185 {
		t.Errorf("actual weight = %v, want 185 (loadable)", saved.ActualWeight)
	}
	if saved.Unit != models.UnitLbs {
		t.Errorf("unit = %q, want preferred lbs", saved.Unit)
	}

	res, _ = h.getWorkouts(ctx, call(map[string]any{"exercise": "bench"}))
	var recs []models.WorkoutRecord
	resultJSON(t, res, &recs)
	if len(recs) != 1 || recs[0].Exercise != "Bench Press" {
		t.Errorf("filtered = %+v", recs)
	}

	res, _ = h.getWorkouts(ctx, call(map[string]any{"since": "2026-02-01"}))
	recs = nil
	resultJSON(t, res, &recs)
	if len(recs) != 1 {
		t.Errorf("since filter = %d records, want 1", len(recs))
	}

	res, _ = h.getWorkouts(ctx, call(map[string]any{"limit": 1.0}))
	recs = nil
	resultJSON(t, res, &recs)
	if len(recs) != 1 || recs[0].Date != "2026-03-09" {
		t.Errorf("limit = %+v, want most recent only", recs)
	}

	res, _ = h.logWorkout(ctx, call(map[string]any{"exercise": "Row", "target_weight": -10.0}))
	if !res.IsError {
		t.Error("negative weight should be a tool error")
	}
}

func TestGetPreferences(t *testing.T) {
	h := newHandlers(t)
	res, err := h.getPreferences(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	var prefs models.Preferences
	resultJSON(t, res, &prefs)
	if prefs != models.DefaultPreferences() {
		t.Errorf("prefs = %+v, want defaults", prefs)
	}
}

func TestRecentWorkoutsResource(t *testing.T) {
	h := newHandlers(t)
	ctx := context.Background()
	b, err := h.backends.Backend()
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{"2026-03-08", "2026-02-01"} {
		if _, err := b.SaveWorkout(ctx, models.WorkoutRecord{Date: d, Exercise: "Deadlift", TargetWeight: 315, Sets: 1, Reps: 5}); err != nil {
			t.Fatal(err)
		}
	}

	var req mcp.ReadResourceRequest
	req.Params.URI = "liftlog://recent_workouts"
	contents, err := h.recentWorkouts(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents)
	var recs []models.WorkoutRecord
	if err := json.Unmarshal([]byte(text.Text), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Date != "2026-03-08" {
		t.Errorf("recent = %+v, want only 2026-03-08", recs)
	}
}

func TestUninitializedBackend(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	local := storage.NewLocal(kv.NewMemory(), records.NewNormalizer(ids.New()), log)
	h := &handlers{backends: service.New(local, log), log: log, now: time.Now}

	res, err := h.getPreferences(context.Background(), call(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error before initialization")
	}
}

func TestHandler(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	local := storage.NewLocal(kv.NewMemory(), records.NewNormalizer(ids.New()), log)
	s := New(service.New(local, log), "test", log)
	if Handler(s) == nil {
		t.Error("Handler returned nil")
	}
}
