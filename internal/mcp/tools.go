package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plates"
)

const defaultWorkoutLimit = 20

// parseFlexDate accepts RFC 3339 or YYYY-MM-DD and returns the calendar day.
func parseFlexDate(s string) (string, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t.UTC().Format(models.DateLayout), nil
	}
	t, err = time.Parse(models.DateLayout, s)
	if err == nil {
		return t.Format(models.DateLayout), nil
	}
	return "", err
}

// --- Tool definitions ---

var toolCalculatePlates = mcp.NewTool("calculate_plates",
	mcp.WithDescription("Work out which plates to load on the bar for a target weight. Counts in the result are for the whole bar."),
	mcp.WithNumber("target", mcp.Required(), mcp.Description("Target total weight including the bar")),
	mcp.WithString("unit", mcp.Description("Weight unit. Defaults to lbs."), mcp.Enum("lbs", "kg")),
	mcp.WithNumber("barbell", mcp.Description("Bar weight. Defaults to 45 lbs or 20 kg.")),
	mcp.WithString("mode", mcp.Description("Rounding when the target is not loadable exactly. Defaults to down."), mcp.Enum("down", "up")),
)

var toolGetWorkouts = mcp.NewTool("get_workouts",
	mcp.WithDescription("List logged lifts, newest first. Each entry has date, exercise, target and actual weight, sets, reps and notes."),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (partial match, e.g. 'bench')")),
	mcp.WithString("since", mcp.Description("Only lifts on or after this date (YYYY-MM-DD)")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of lifts. Defaults to 20.")),
)

var toolLogWorkout = mcp.NewTool("log_workout",
	mcp.WithDescription("Log a lift for the current user. When actual_weight is omitted it is set to the heaviest weight loadable with standard plates."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name")),
	mcp.WithNumber("target_weight", mcp.Required(), mcp.Description("Planned total weight")),
	mcp.WithNumber("actual_weight", mcp.Description("Weight actually lifted")),
	mcp.WithString("unit", mcp.Description("Weight unit. Defaults to the user's preferred unit."), mcp.Enum("lbs", "kg")),
	mcp.WithNumber("sets", mcp.Description("Number of sets")),
	mcp.WithNumber("reps", mcp.Description("Reps per set")),
	mcp.WithString("date", mcp.Description("Date of the lift (YYYY-MM-DD). Defaults to today.")),
	mcp.WithString("notes", mcp.Description("Free-form notes")),
	mcp.WithBoolean("completed", mcp.Description("Whether every set was completed")),
)

var toolGetPreferences = mcp.NewTool("get_preferences",
	mcp.WithDescription("Get the current user's preferred unit, theme and default barbell."),
)

// --- Tool handlers ---

func (h *handlers) calculatePlates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := req.RequireFloat("target")
	if err != nil {
		return mcp.NewToolResultError("target parameter is required"), nil
	}
	mode, err := plates.ParseMode(req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	unit := models.Unit(req.GetString("unit", string(models.UnitLbs)))

	b, err := plates.SolveFor(target, unit, req.GetFloat("barbell", 0), mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(b)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var since string
	if s := req.GetString("since", ""); s != "" {
		d, err := parseFlexDate(s)
		if err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
		since = d
	}
	exercise := strings.ToLower(strings.TrimSpace(req.GetString("exercise", "")))
	limit := req.GetInt("limit", defaultWorkoutLimit)

	b, err := h.backends.Backend()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recs, err := b.GetWorkoutHistory(ctx)
	if err != nil {
		h.log.Error("mcp get_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := make([]models.WorkoutRecord, 0, min(limit, len(recs)))
	for _, rec := range recs {
		if len(out) >= limit {
			break
		}
		if since != "" && rec.Date < since {
			continue
		}
		if exercise != "" && !strings.Contains(strings.ToLower(rec.Exercise), exercise) {
			continue
		}
		out = append(out, rec)
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) logWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	target, err := req.RequireFloat("target_weight")
	if err != nil {
		return mcp.NewToolResultError("target_weight parameter is required"), nil
	}

	b, err := h.backends.Backend()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	unit := models.Unit(req.GetString("unit", ""))
	if unit == "" {
		prefs, err := b.GetPreferences(ctx)
		if err != nil {
			h.log.Error("mcp log_workout", "error", err)
			return mcp.NewToolResultError("reading preferences failed: " + err.Error()), nil
		}
		unit = prefs.Unit
	}

	rec := models.WorkoutRecord{
		Exercise:     exercise,
		TargetWeight: target,
		ActualWeight: req.GetFloat("actual_weight", 0),
		Unit:         unit,
		Sets:         req.GetInt("sets", 0),
		Reps:         req.GetInt("reps", 0),
		Completed:    req.GetBool("completed", false),
		Notes:        req.GetString("notes", ""),
	}
	if d := req.GetString("date", ""); d != "" {
		if rec.Date, err = parseFlexDate(d); err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
	}
	if rec.ActualWeight == 0 {
		if bd, err := plates.SolveFor(target, unit, 0, plates.RoundDown); err == nil {
			rec.ActualWeight = bd.ActualWeight
		}
	}

	saved, err := b.SaveWorkout(ctx, rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(saved)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPreferences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := h.backends.Backend()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prefs, err := b.GetPreferences(ctx)
	if err != nil {
		h.log.Error("mcp get_preferences", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(prefs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
