package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/qaforum/api"
	dbfs "github.com/garnizeh/qaforum/db"
	"github.com/garnizeh/qaforum/internal/config"
	"github.com/garnizeh/qaforum/internal/db"
	"github.com/garnizeh/qaforum/internal/forum"
	"github.com/garnizeh/qaforum/internal/identity"
	"github.com/garnizeh/qaforum/internal/jobs"
	"github.com/garnizeh/qaforum/internal/repository/sqlite"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "qaforum: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting qaforum server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("close db", slog.Any("err", err))
		}
	}()

	if *cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	repo := sqlite.New(database, logger)

	svc := forum.NewService(
		forum.WithJournal(repo),
		forum.WithLogger(logger.With(slog.String("component", "forum"))),
		forum.WithResolvedAnswerPolicy(cfg.ResolvedAnswerPolicy()),
	)
	snap, err := repo.LoadForum(ctx)
	if err != nil {
		return fmt.Errorf("load forum: %w", err)
	}
	svc.Load(snap)

	pool := jobs.NewWorkerPool(jobs.NewRepository(database), nil, logger.With(slog.String("component", "jobs")),
		cfg.Jobs.Workers,
		jobs.WithPollInterval(cfg.Jobs.PollInterval),
		jobs.WithRetention(cfg.Jobs.Retention),
		jobs.WithMaintenanceInterval(cfg.Jobs.MaintenanceInterval),
	)

	provider := identity.New(repo, repo, repo, logger.With(slog.String("component", "identity")),
		identity.WithScheduler(pool),
		identity.WithHashCost(cfg.Identity.BcryptCost),
	)
	pool.Handle(identity.JobPurgeExpiredInvitations, jobs.PurgeInvitations(provider, logger))

	// Codes that expired while the server was down.
	if _, err := pool.Enqueue(ctx, identity.JobPurgeExpiredInvitations, nil, 0, 0); err != nil {
		logger.Warn("enqueue startup invitation purge", slog.Any("err", err))
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.SetupRoutes(cfg, version, buildTime, svc, provider),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
