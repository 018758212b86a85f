package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/qaforum/db"
	"github.com/garnizeh/qaforum/internal/config"
	"github.com/garnizeh/qaforum/internal/db"
	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/internal/repository/sqlite"
	"github.com/garnizeh/qaforum/internal/seed"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	sample := flag.Bool("sample", false, "Load the sample forum content into an empty forum")
	flag.Parse()

	if err := run(*configPath, *sample); err != nil {
		fmt.Fprintf(os.Stderr, "db_init: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, sample bool) error {
	ctx := context.Background()
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println("Database initialized successfully.")

	if !sample {
		return nil
	}

	repo := sqlite.New(database, logger)
	snap, err := repo.LoadForum(ctx)
	if err != nil {
		return fmt.Errorf("load forum: %w", err)
	}
	if len(snap.Questions) > 0 {
		fmt.Printf("Forum already has %d questions, sample content skipped.\n", len(snap.Questions))
		return nil
	}

	svc := forum.NewService(forum.WithJournal(repo), forum.WithLogger(logger))
	counts, err := seed.LoadFS(ctx, svc, dbfs.SeedFiles, seed.SampleForumFile)
	if err != nil {
		return fmt.Errorf("sample content: %w", err)
	}
	fmt.Printf("Sample content loaded: %d questions, %d answers, %d replies, %d resolved.\n",
		counts.Questions, counts.Answers, counts.Replies, counts.Resolved)
	return nil
}
