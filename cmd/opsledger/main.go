package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/provenlabs/opsledger/internal/artifact"
	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/auth"
	"github.com/provenlabs/opsledger/internal/config"
	"github.com/provenlabs/opsledger/internal/notify"
	"github.com/provenlabs/opsledger/internal/runner"
	"github.com/provenlabs/opsledger/internal/server"
	"github.com/provenlabs/opsledger/internal/store/postgres"
	redisstore "github.com/provenlabs/opsledger/internal/store/redis"
	"github.com/provenlabs/opsledger/internal/ticket"
	"github.com/provenlabs/opsledger/internal/validate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("OPSLEDGER_LOG_LEVEL"))
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("OPSLEDGER_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Open the append-only audit log.
	auditor, err := audit.NewLogger(cfg.Audit.Dir)
	if err != nil {
		return err
	}

	// Select the artifact storage backend.
	var objects artifact.Store
	switch cfg.Storage.Backend {
	case "memory":
		objects = artifact.NewMemoryStore()
	case "redis":
		objects = artifact.NewRedisStore(pubsub.Client(), cfg.Storage.RedisPrefix)
	default:
		objects, err = artifact.NewLocalStore(cfg.Storage.Root)
		if err != nil {
			return err
		}
	}

	artifacts := artifact.NewService(objects, store.Artifacts(), store.Runs(), auditor, cfg.Storage.MaxArtifactBytes)

	// Notifications go to Slack when configured, otherwise to the log.
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Slack.BotToken != "" && cfg.Slack.Channel != "" {
		notifier = notify.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.Channel)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("Slack notifications enabled")
	}

	registry := validate.NewRegistry()

	authSvc := auth.NewService(store.Users(), auditor, cfg.JWT.Secret, cfg.JWT.AccessTTL)
	tickets := ticket.NewService(store.Tickets(), store.Assets(), auditor, notifier)

	executor := runner.New(
		store.Runs(),
		store.Tickets(),
		store.Users(),
		artifacts,
		registry,
		runner.NotImplementedRunner{},
		auditor,
		pubsub,
		notifier,
		runner.Options{
			Timeout: cfg.Runner.Timeout,
			Workers: cfg.Runner.Workers,
			Queue:   cfg.Runner.Queue,
		},
	)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	executor.Start(ctx)
	defer executor.Shutdown()

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:     store,
		PubSub:    pubsub,
		Auth:      authSvc,
		Tickets:   tickets,
		Artifacts: artifacts,
		Executor:  executor,
		Auditor:   auditor,
		Registry:  registry,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
