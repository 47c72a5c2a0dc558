package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/trading-academy/internal/ingest"
	"github.com/xenking/trading-academy/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog exports")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "glob of export files inside data-dir, applied in name order")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "decode and merge without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, dryRun); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "match export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no exports match %s in %s", pattern, dataDir)
	}
	// Later names supersede earlier ones.
	slices.Sort(files)

	slog.Info("decoding exports", slog.Int("files", len(files)))
	exports, err := ingest.ReadFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read exports")
	}

	courses, superseded := ingest.Merge(exports)
	slog.Info("exports merged",
		slog.Int("courses", len(courses)),
		slog.Int("superseded", superseded),
	)
	if dryRun || len(courses) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewCourseRepository(pool).Upsert(ctx, courses); err != nil {
		return errors.Wrap(err, "upsert courses")
	}
	slog.Info("courses written", slog.Int("count", len(courses)))

	return nil
}
