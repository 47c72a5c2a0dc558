package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/storage/postgres"
	"github.com/xenking/trading-academy/internal/storage/static"
)

func main() {
	var (
		databaseURL string
		coursesFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&coursesFile, "courses-file", "", "path to a courses JSON array (default: embedded seed)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, coursesFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, coursesFile string) error {
	courses, err := loadCourses(ctx, coursesFile)
	if err != nil {
		return errors.Wrap(err, "load courses")
	}
	// Reject what the server would refuse to start with.
	if _, err := course.NewCatalog(courses); err != nil {
		return errors.Wrap(err, "validate catalog")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("upserting courses", slog.Int("count", len(courses)))

	if err := postgres.NewCourseRepository(pool).Upsert(ctx, courses); err != nil {
		return errors.Wrap(err, "upsert courses")
	}
	for _, c := range courses {
		slog.Info("upserted course", slog.Int("id", c.ID), slog.String("title", c.Title))
	}

	return nil
}

func loadCourses(ctx context.Context, path string) ([]course.Course, error) {
	if path == "" {
		slog.Info("using embedded seed catalog")
		repo, err := static.NewSeedRepository()
		if err != nil {
			return nil, err
		}
		return repo.List(ctx)
	}

	slog.Info("reading courses file", slog.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read courses file")
	}
	return static.ParseCourses(data)
}
