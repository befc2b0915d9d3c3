package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
)

const recentDays = 14

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	b, err := h.backends.Backend()
	if err != nil {
		return nil, err
	}
	recs, err := b.GetWorkoutHistory(ctx)
	if err != nil {
		return nil, err
	}

	since := h.now().UTC().AddDate(0, 0, -recentDays).Format(models.DateLayout)
	recent := make([]models.WorkoutRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.Date >= since {
			recent = append(recent, rec)
		}
	}

	data, err := json.Marshal(recent)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
