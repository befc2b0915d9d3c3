package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/backup"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ids"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/records"
	"github.com/claude/liftlog/internal/service"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/users"
)

type job struct {
	userID     string
	exportPath string
	importPath string
	alphaPath  string
	dryRun     bool
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	var j job
	flag.StringVar(&j.userID, "user", "", "user id (defaults to the current session user)")
	flag.StringVar(&j.exportPath, "export", "", "write a backup file")
	flag.StringVar(&j.importPath, "import", "", "merge a backup file")
	flag.StringVar(&j.alphaPath, "alpha", "", "merge an Alpha Progression CSV export")
	flag.BoolVar(&j.dryRun, "dry-run", false, "report counts without writing")
	flag.Parse()

	if j.exportPath == "" && j.importPath == "" && j.alphaPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-backup [-config config.yaml] [-user id] (-export file | -import file | -alpha file) [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	store, err := cfg.Storage.OpenStore()
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := j.run(context.Background(), store, log); err != nil {
		log.Error("backup failed", "error", err)
		store.Close()
		os.Exit(1)
	}
}

// run executes the requested operations in export, import, alpha order.
// With dryRun set, imports are applied to an in-memory copy of the store.
func (j job) run(ctx context.Context, store kv.Store, log *slog.Logger) error {
	if j.dryRun {
		clone, err := cloneStore(ctx, store)
		if err != nil {
			return err
		}
		store = clone
		log.Info("DRY RUN mode, no data will be written")
	}

	gen := ids.New()
	dir := users.New(store, gen, log)
	userID, err := j.resolveUser(ctx, dir)
	if err != nil {
		return err
	}

	f := service.New(storage.NewLocal(store, records.NewNormalizer(gen), log), log)
	defer f.Close()
	if _, err := f.Initialize(ctx, storage.KindLocalStorage, userID); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	b, err := f.Backend()
	if err != nil {
		return err
	}

	if j.exportPath != "" {
		if err := j.export(ctx, b, log); err != nil {
			return err
		}
	}
	if j.importPath != "" {
		if err := j.importBundle(ctx, b, log); err != nil {
			return err
		}
	}
	if j.alphaPath != "" {
		file, err := os.Open(j.alphaPath)
		if err != nil {
			return fmt.Errorf("opening alpha export: %w", err)
		}
		defer file.Close()
		res, err := alpha.NewProvider(log).Ingest(ctx, file, b)
		if err != nil {
			return err
		}
		printResult(log, "alpha import", res.Import)
	}

	if userID != "" && !j.dryRun {
		settings, err := b.GetSettings(ctx)
		if err != nil {
			return err
		}
		if err := dir.SetWorkoutCount(ctx, userID, settings.TotalWorkouts); err != nil {
			log.Warn("syncing workout count", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (j job) resolveUser(ctx context.Context, dir *users.Directory) (string, error) {
	if j.userID != "" {
		u, err := dir.Get(ctx, j.userID)
		if err != nil {
			return "", err
		}
		if !u.IsActive {
			return "", &models.DirectoryError{Op: "select", UserID: u.ID, Reason: "user is deleted"}
		}
		return u.ID, nil
	}
	u, ok, err := dir.CurrentUser(ctx)
	if err != nil || !ok {
		return "", err
	}
	return u.ID, nil
}

func (j job) export(ctx context.Context, b storage.Backend, log *slog.Logger) error {
	bundle, err := b.ExportData(ctx)
	if err != nil {
		return err
	}
	if j.dryRun {
		log.Info("would export", "path", j.exportPath, "workouts", bundle.Metadata.TotalWorkouts)
		return nil
	}
	file, err := os.Create(j.exportPath)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := backup.WriteBundle(file, bundle); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}
	log.Info("exported", "path", j.exportPath, "workouts", bundle.Metadata.TotalWorkouts)
	return nil
}

func (j job) importBundle(ctx context.Context, b storage.Backend, log *slog.Logger) error {
	file, err := os.Open(j.importPath)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer file.Close()
	bundle, err := backup.ParseBundle(file)
	if err != nil {
		return err
	}
	res, err := b.ImportData(ctx, bundle)
	if err != nil {
		return err
	}
	printResult(log, "import", res)
	return nil
}

// cloneStore copies every key of src into an unlimited in-memory store.
func cloneStore(ctx context.Context, src kv.Store) (*kv.Memory, error) {
	keys, err := src.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	dst := kv.NewMemory(kv.WithQuota(0))
	for _, k := range keys {
		v, ok, err := src.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		if !ok {
			continue
		}
		if err := dst.Set(ctx, k, v); err != nil {
			return nil, fmt.Errorf("copying %s: %w", k, err)
		}
	}
	return dst, nil
}

func printResult(log *slog.Logger, what string, res models.ImportResult) {
	log.Info(what+" stats",
		"received", res.Received,
		"imported", res.Imported,
		"duplicates", res.Duplicates,
		"invalid", res.Invalid,
		"total_workouts", res.TotalWorkouts,
		"version_mismatch", res.VersionMismatch,
	)
	for _, w := range res.Warnings {
		log.Warn(what+" warning", "detail", w)
	}
}
