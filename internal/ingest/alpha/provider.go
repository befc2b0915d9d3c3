package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/liftlog/internal/backup"
	"github.com/claude/liftlog/internal/models"
)

// Importer is the subset of a storage backend an import writes through.
type Importer interface {
	ImportData(ctx context.Context, bundle models.ImportBundle) (models.ImportResult, error)
}

// Result reports an Alpha Progression import.
type Result struct {
	Sessions  int                 `json:"sessions"`
	Exercises int                 `json:"exercises"`
	Skipped   int                 `json:"skipped"`
	Import    models.ImportResult `json:"import"`
}

// Provider imports Alpha Progression CSV exports into a backend.
type Provider struct {
	log *slog.Logger
}

// NewProvider creates a new Alpha Progression import provider.
func NewProvider(log *slog.Logger) *Provider {
	return &Provider{log: log}
}

// Parse reads an export and converts it to records without storing them.
func (p *Provider) Parse(r io.Reader) ([]models.WorkoutRecord, Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, Result{}, &models.ValidationError{Errors: []models.FieldError{
			{Field: "csv", Message: err.Error()},
		}}
	}
	recs, skipped := ToRecords(sessions)
	res := Result{Sessions: len(sessions), Exercises: len(recs) + skipped, Skipped: skipped}
	return recs, res, nil
}

// Ingest parses an export and merges its records into dst. Records already
// imported from the same export are counted as duplicates.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, dst Importer) (Result, error) {
	recs, res, err := p.Parse(r)
	if err != nil {
		return res, err
	}
	bundle, err := backup.RecordsBundle(recs)
	if err != nil {
		return res, err
	}
	res.Import, err = dst.ImportData(ctx, bundle)
	if err != nil {
		return res, fmt.Errorf("importing alpha records: %w", err)
	}
	p.log.Info("alpha import complete",
		"sessions", res.Sessions,
		"imported", res.Import.Imported,
		"duplicates", res.Import.Duplicates,
		"skipped", res.Skipped)
	return res, nil
}
