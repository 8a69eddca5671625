// Package main provides the Konect background worker: with no UI attached it
// opens the app and posts a local notification for every push it receives.
// With -press-notification it handles one press on a posted notification and
// exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/alert"
	"github.com/konect/konect/internal/alert/feedback"
	"github.com/konect/konect/internal/config"
	"github.com/konect/konect/internal/push"
	"github.com/konect/konect/internal/telemetry"
	"github.com/konect/konect/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "konect-worker"

func main() {
	envFile := flag.String("env", "", "load environment variables from this file first")
	press := flag.Bool("press-notification", false, "handle a press on a posted notification and exit")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

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
		Str("transport", cfg.PushTransport).
		Msg("starting Konect worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *press {
		newBackgroundHandler(cfg, nil, log).HandlePress(ctx)
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
	log.Info().Msg("worker stopped")
}

func run(ctx context.Context, cfg *config.Client, log zerolog.Logger) error {
	// Without a fixed token the worker cannot share a push address with the app.
	if cfg.DeviceToken == "" {
		return errors.New("KONECT_DEVICE_TOKEN must be set for the background worker")
	}

	tp, err := telemetry.Init(ctx, cfg.Telemetry(serviceName, Version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	subscriber, err := newSubscriber(ctx, cfg, tp.Instruments, log)
	if err != nil {
		return err
	}
	defer subscriber.Close()

	w := worker.New(worker.WorkerConfig{
		Config:     worker.DefaultConfig(),
		Subscriber: subscriber,
		Handler:    newBackgroundHandler(cfg, tp.Instruments, log),
		Logger:     log,
	})

	if cfg.WorkerHealthPort > 0 {
		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.WorkerHealthPort),
			Handler:      worker.HealthRouter(w, Version, log),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Info().Str("addr", server.Addr).Msg("health server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("health server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("health server forced to shutdown")
			}
		}()
	}

	return w.Run(ctx)
}

func newBackgroundHandler(cfg *config.Client, inst *telemetry.Instruments, log zerolog.Logger) *alert.BackgroundHandler {
	return alert.NewBackgroundHandler(alert.BackgroundConfig{
		Linker: &feedback.Linker{Command: feedback.ParseCommand(cfg.OpenCommand)},
		Notifier: &feedback.Notifier{
			Command: feedback.ParseCommand(cfg.NotifyCommand),
			Player: &feedback.Player{
				Command:  feedback.ParseCommand(cfg.SoundCommand),
				SoundDir: cfg.SoundDir,
			},
			Logger: log,
		},
		DeepLink:    cfg.DeepLink,
		Instruments: inst,
		Logger:      log,
	})
}

func newSubscriber(ctx context.Context, cfg *config.Client, inst *telemetry.Instruments, log zerolog.Logger) (push.Subscriber, error) {
	logger := log.With().Str("component", "push").Str("transport", cfg.PushTransport).Logger()

	switch cfg.PushTransport {
	case config.TransportPubSub:
		return push.NewPubSubSubscriber(ctx, push.PubSubSubscriberConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			DeviceToken:      cfg.DeviceToken,
			Instruments:      inst,
			Logger:           logger,
		})

	case config.TransportRedis:
		rdb, err := push.NewRedisClient(ctx, push.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return push.NewRedisSubscriber(push.RedisSubscriberConfig{
			Client:      rdb,
			DeviceToken: cfg.DeviceToken,
			Instruments: inst,
			Logger:      logger,
		}), nil

	default:
		return nil, fmt.Errorf("KONECT_PUSH_TRANSPORT %q cannot feed the background worker", cfg.PushTransport)
	}
}
