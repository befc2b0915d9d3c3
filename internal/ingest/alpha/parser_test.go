package alpha

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/records"
	"github.com/claude/liftlog/internal/storage"
)

const export = `
"Lower · Day 1 · Week 2 · Upper-Lower";"2026-03-02 6:15 h";"0:58 hr"
"1. Back Squat · Barbell · 5 reps";"WU1 · 20 kg · 10 reps<br>WU2 · 60 kg · 5 reps"
#;KG;REPS;RIR
1;100;5;2
2;105;5;1
3;102,5;6;0,5
"2. Leg Press · Machine · 10 reps"
#;KG;REPS;RIR
1;180;10;2
2;180;10;1
"3. Hanging Leg Raises · Bodyweight · 12 reps · 2 dropsets"
#;KG;REPS;RIR
1;+0;12;1
2;+0;10;0

"Upper · Day 2 · Week 2 · Upper-Lower";"2026-03-04 17:40 h";"1:05 hr"
"1. Weighted Pull-ups · 6 reps";"WU1 · +0 kg · 8 reps"
#;KG;REPS;RIR
1;+20;6;1
2;+17,5;7;1
`

func TestParseSessions(t *testing.T) {
	sessions, err := Parse(strings.NewReader(export))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	lower := sessions[0]
	if lower.Name != "Lower · Day 1 · Week 2 · Upper-Lower" {
		t.Errorf("name = %q", lower.Name)
	}
	if want := time.Date(2026, 3, 2, 6, 15, 0, 0, time.UTC); !lower.Date.Equal(want) {
		t.Errorf("date = %v, want %v", lower.Date, want)
	}
	if lower.Duration != "0:58 hr" {
		t.Errorf("duration = %q", lower.Duration)
	}
	if len(lower.Exercises) != 3 {
		t.Fatalf("exercises = %d, want 3", len(lower.Exercises))
	}

	squat := lower.Exercises[0]
	if squat.Name != "Back Squat" || squat.Equipment != "Barbell" || squat.TargetReps != 5 {
		t.Errorf("squat = %+v", squat)
	}
	if len(squat.Sets) != 5 {
		t.Errorf("squat sets = %d, want 5 (2 warmup + 3 working)", len(squat.Sets))
	}
	if got := squat.Sets[4]; got.WeightKg != 102.5 || got.RIR != 0.5 {
		t.Errorf("third working set = %+v", got)
	}

	raises := lower.Exercises[2]
	if raises.Equipment != "Bodyweight" || raises.TargetReps != 12 {
		t.Errorf("modifier suffix not stripped: %+v", raises)
	}

	pullups := sessions[1].Exercises[0]
	if pullups.Equipment != "" {
		t.Errorf("equipment = %q, want empty", pullups.Equipment)
	}
	if sessions[1].Date.Hour() != 17 {
		t.Errorf("24h session time parsed as %v", sessions[1].Date)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"exercise before session", `"1. Squat · Barbell · 5 reps"`},
		{"set before exercise", "\"S\";\"2026-03-02 6:15 h\";\"1:00 hr\"\n1;100;5;1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}

	sessions, err := Parse(strings.NewReader(""))
	if err != nil || len(sessions) != 0 {
		t.Errorf("empty input = %v, %v", sessions, err)
	}
}

func TestWeights(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantBW bool
	}{
		{"102,5", 102.5, false},
		{"100", 100, false},
		{"+35", 35, true},
		{"+0", 0, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, bw := parseWeight(tt.in)
		if got != tt.want || bw != tt.wantBW {
			t.Errorf("parseWeight(%q) = %v, %v, want %v, %v", tt.in, got, bw, tt.want, tt.wantBW)
		}
	}

	sets := parseWarmups("WU1 · 37,5 kg · 9 reps<br>junk<br>WU2 · +0 kg · 7 reps")
	if len(sets) != 2 {
		t.Fatalf("warmups = %d, want 2", len(sets))
	}
	if !sets[0].IsWarmup || sets[0].WeightKg != 37.5 || sets[0].Reps != 9 {
		t.Errorf("wu1 = %+v", sets[0])
	}
	if !sets[1].IsBodyweightPlus {
		t.Errorf("wu2 = %+v", sets[1])
	}
}

func TestToRecords(t *testing.T) {
	sessions, err := Parse(strings.NewReader(export))
	if err != nil {
		t.Fatal(err)
	}
	recs, skipped := ToRecords(sessions)
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1 (bodyweight-only leg raises)", skipped)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}

	squat := recs[0]
	if squat.Exercise != "Back Squat" || squat.Barbell != "Barbell" {
		t.Errorf("squat = %+v", squat)
	}
	if squat.TargetWeight != 105 || squat.ActualWeight != 105 || squat.Reps != 5 || squat.Sets != 3 {
		t.Errorf("squat weight/sets/reps = %v/%d/%d", squat.TargetWeight, squat.Sets, squat.Reps)
	}
	if squat.Unit != models.UnitKg || squat.Date != "2026-03-02" || !squat.Completed {
		t.Errorf("squat unit/date/completed = %s/%s/%v", squat.Unit, squat.Date, squat.Completed)
	}
	if squat.Notes != "Lower · Day 1 · Week 2 · Upper-Lower" {
		t.Errorf("notes = %q", squat.Notes)
	}

	for _, r := range recs {
		if !ids.IsTimestampHex(r.ID) {
			t.Errorf("id %q is not a timestamp id", r.ID)
		}
		if err := records.Validate(r); err != nil {
			t.Errorf("record %s invalid: %v", r.Exercise, err)
		}
	}

	again, _ := ToRecords(sessions)
	if again[0].ID != squat.ID {
		t.Errorf("ids not stable: %s vs %s", again[0].ID, squat.ID)
	}
	if recs[0].ID == recs[1].ID {
		t.Error("exercises in one session share an id")
	}
}

func TestIngestDeduplicatesReimport(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)
	backend := storage.NewLocal(kv.NewMemory(), records.NewNormalizer(ids.New()), log)
	backend.SetUserScope("u1")
	p := NewProvider(log)

	res, err := p.Ingest(ctx, strings.NewReader(export), backend)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Sessions != 2 || res.Exercises != 4 || res.Import.Imported != 3 {
		t.Errorf("first import = %+v", res)
	}

	res, err = p.Ingest(ctx, strings.NewReader(export), backend)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if res.Import.Imported != 0 || res.Import.Duplicates != 3 {
		t.Errorf("re-import = %+v, want all duplicates", res.Import)
	}

	recs, err := backend.GetWorkoutHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Errorf("stored = %d, want 3", len(recs))
	}
	if recs[0].Date != "2026-03-04" {
		t.Errorf("newest first: got %s", recs[0].Date)
	}
}

func TestIngestRejectsMalformedCSV(t *testing.T) {
	p := NewProvider(slog.New(slog.DiscardHandler))
	_, err := p.Ingest(context.Background(), strings.NewReader(`"1. Squat · Barbell · 5 reps"`), nil)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}
