// Package main provides the entrypoint for the Konect reference backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/api"
	"github.com/konect/konect/internal/api/handler"
	"github.com/konect/konect/internal/api/middleware"
	"github.com/konect/konect/internal/config"
	"github.com/konect/konect/internal/database"
	"github.com/konect/konect/internal/push"
	"github.com/konect/konect/internal/session"
	"github.com/konect/konect/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "konect-api"

	envFile := flag.String("env", "", "load environment variables from this file first")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadBackend()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Setup structured logging
	zerolog.SetGlobalLevel(cfg.Level())
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	if cfg.LogPretty {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting Konect API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, cfg.Telemetry(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTELEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	repo, closeRepo, err := newRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.SessionStore).Msg("failed to open session store")
	}
	defer closeRepo()

	sender, err := newSender(ctx, cfg, tp.Instruments, log)
	if err != nil {
		log.Fatal().Err(err).Str("sender", cfg.PushSender).Msg("failed to initialize push sender")
	}
	if c, ok := sender.(io.Closer); ok {
		defer c.Close()
	}
	log.Info().
		Str("store", cfg.SessionStore).
		Str("sender", sender.Name()).
		Msg("session service initialized")

	sessions := session.NewService(session.ServiceConfig{
		Repository: repo,
		Sender:     sender,
		Logger:     log.With().Str("component", "sessions").Logger(),
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		Logger:      log,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		Sessions:    sessions,
		ReadyChecks: map[string]handler.ReadyChecker{"sessions": sessions},
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func newRepository(ctx context.Context, cfg *config.Backend, log zerolog.Logger) (session.Repository, func(), error) {
	if cfg.SessionStore != config.StorePostgres {
		return session.NewInMemoryRepository(), func() {}, nil
	}

	pool, err := database.Open(ctx, cfg.Database(), log)
	if err != nil {
		return nil, nil, err
	}
	return session.NewPostgresRepository(pool), pool.Close, nil
}

func newSender(ctx context.Context, cfg *config.Backend, inst *telemetry.Instruments, log zerolog.Logger) (push.Sender, error) {
	logger := log.With().Str("component", "push").Str("sender", cfg.PushSender).Logger()

	switch cfg.PushSender {
	case config.SenderPubSub:
		return push.NewPubSubPublisher(ctx, push.PubSubPublisherConfig{
			ProjectID:   cfg.PubSubProjectID,
			Topic:       cfg.PubSubTopic,
			Instruments: inst,
			Logger:      logger,
		})

	case config.SenderRedis:
		rdb, err := push.NewRedisClient(ctx, push.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return push.NewRedisPublisher(rdb, inst, logger), nil

	case config.SenderFCM:
		return push.NewFCMSender(ctx, push.FCMConfig{
			ProjectID:          cfg.FirebaseProjectID,
			ServiceAccountPath: cfg.FirebaseServiceAccountPath,
			Instruments:        inst,
			Logger:             logger,
		})

	default:
		return push.NewLogSender(logger), nil
	}
}
