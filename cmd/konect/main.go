// Package main provides the Konect client: it registers the device, pairs it
// with a session and raises alerts on the partner devices.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/alert"
	"github.com/konect/konect/internal/alert/feedback"
	"github.com/konect/konect/internal/config"
	"github.com/konect/konect/internal/device"
	"github.com/konect/konect/internal/pairing"
	"github.com/konect/konect/internal/pairing/backend"
	"github.com/konect/konect/internal/push"
	"github.com/konect/konect/internal/resilience"
	"github.com/konect/konect/internal/telemetry"
	"github.com/konect/konect/internal/ui"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "konect"

func main() {
	envFile := flag.String("env", "", "load environment variables from this file first")
	launchJSON := flag.String("launch-notification", "", "remote message JSON the app was launched from")
	openJSON := flag.String("open-notification", "", "remote message JSON of a notification opened from the background")
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

	log := newLogger(cfg.Shared)
	log.Info().Str("build_time", BuildTime).Msg("starting Konect")

	launch, err := parseMessage(*launchJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -launch-notification")
	}
	opened, err := parseMessage(*openJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -open-notification")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, launch, opened); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("konect stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Client, log zerolog.Logger, launch, opened *push.RemoteMessage) error {
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

	registry := resilience.NewRegistry()
	defer logRegistry(log, registry)

	client := backend.NewClient(backend.ClientConfig{
		BaseURL:     cfg.BackendURL,
		HTTPClient:  newHTTPClient(cfg, registry),
		Registry:    registry,
		Instruments: tp.Instruments,
		Logger:      log.With().Str("component", "backend_client").Logger(),
	})
	log.Info().Str("backend_url", client.BaseURL()).Bool("resilient", cfg.Resilient()).Msg("backend client ready")

	registrar := device.NewRegistrar(device.RegistrarConfig{
		Permissions: permissionRequester(cfg),
		Source:      tokenSource(cfg),
		Platform:    platform(cfg),
		Logger:      log.With().Str("component", "registrar").Logger(),
	})
	identity, err := registrar.Identity(ctx)
	if err != nil {
		return err
	}

	manager := pairing.NewManager(pairing.ManagerConfig{
		Backend: client,
		Alerts:  alert.NewDispatcher(client, tp.Instruments, log),
		Token:   identity.Token,
		Logger:  log,
	})

	console := ui.NewConsole(os.Stdin, os.Stdout)
	console.Start(ctx)

	// Failures leave the connect form up; the user can still pair manually.
	if _, err := manager.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Msg("initial device check failed")
	}

	foreground := alert.NewForegroundSource()
	tapped := alert.NewBackgroundTapSource()
	receiver := alert.NewReceiver(
		newFeedbackHandler(cfg, console, tp.Instruments, log),
		log.With().Str("component", "alert_receiver").Logger(),
		foreground, tapped, alert.NewColdStartSource(launch),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := receiver.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("alert receiver stopped")
		}
	}()
	if opened != nil {
		select {
		case <-receiver.Ready():
			tapped.Open(*opened)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	subscriber, err := newSubscriber(ctx, cfg, identity.Token, tp.Instruments, log)
	if err != nil {
		return err
	}
	if subscriber != nil {
		defer subscriber.Close()
		deliver := foreground.Deliver
		if cfg.NotifyCommand != "" {
			notifier := newBackgroundHandler(cfg, tp.Instruments, log)
			deliver = func(ctx context.Context, msg push.RemoteMessage) {
				foreground.Deliver(ctx, msg)
				notifier.Notify(ctx, msg)
			}
		}
		go func() {
			if err := subscriber.Receive(ctx, deliver); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("transport", cfg.PushTransport).Msg("push subscriber stopped")
			}
		}()
	}

	view := ui.NewView(ui.ViewConfig{
		Manager: manager,
		Console: console,
		Logger:  log,
	})
	return view.Run(ctx)
}

func newLogger(cfg config.Shared) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level())

	// The terminal belongs to the UI; logs go to stderr.
	var log zerolog.Logger
	if cfg.LogPretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

// newHTTPClient returns nil unless retries or the breaker are enabled, which
// leaves the backend client on its single-attempt default.
func newHTTPClient(cfg *config.Client, registry *resilience.Registry) backend.HTTPDoer {
	if !cfg.Resilient() && cfg.RequestTimeout == 0 {
		return nil
	}

	clientCfg := resilience.DefaultClientConfig(backend.ClientName)
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.MaxRetries = uint64(cfg.RetryMax)
	if cfg.CircuitBreaker {
		cb := resilience.DefaultCircuitBreakerConfig(backend.ClientName)
		clientCfg.CircuitBreaker = &cb
	}
	clientCfg.Registry = registry
	return resilience.NewClient(clientCfg)
}

func permissionRequester(cfg *config.Client) device.PermissionRequester {
	if status, ok := cfg.Permission(); ok {
		return device.Grant(status)
	}
	return &device.PromptRequester{In: os.Stdin, Out: os.Stdout}
}

func tokenSource(cfg *config.Client) device.TokenSource {
	if cfg.DeviceToken != "" {
		return device.StaticSource(cfg.DeviceToken)
	}
	return &device.GeneratedSource{}
}

func platform(cfg *config.Client) device.Platform {
	switch {
	case cfg.Platform != "":
		return device.Platform(cfg.Platform)
	case cfg.DeviceToken == "":
		return device.PlatformDev
	default:
		return device.PlatformFCM
	}
}

func newFeedbackHandler(cfg *config.Client, console *ui.Console, inst *telemetry.Instruments, log zerolog.Logger) *alert.FeedbackHandler {
	return alert.NewFeedbackHandler(alert.FeedbackConfig{
		Player: &feedback.Player{
			Command:  feedback.ParseCommand(cfg.SoundCommand),
			SoundDir: cfg.SoundDir,
		},
		Vibrator:    &feedback.BellVibrator{Out: os.Stdout},
		Prompter:    console,
		SoundClip:   cfg.SoundFile,
		Instruments: inst,
		Logger:      log,
	})
}

// newBackgroundHandler posts the alert notification for foreground pushes,
// next to the in-app feedback.
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

// newSubscriber returns nil when no push transport is configured.
func newSubscriber(ctx context.Context, cfg *config.Client, token device.Token, inst *telemetry.Instruments, log zerolog.Logger) (push.Subscriber, error) {
	logger := log.With().Str("component", "push").Str("transport", cfg.PushTransport).Logger()

	switch cfg.PushTransport {
	case config.TransportPubSub:
		sub, err := push.NewPubSubSubscriber(ctx, push.PubSubSubscriberConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			DeviceToken:      token.String(),
			Instruments:      inst,
			Logger:           logger,
		})
		if err != nil {
			return nil, err
		}
		return sub, nil

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
			DeviceToken: token.String(),
			Instruments: inst,
			Logger:      logger,
		}), nil

	default:
		logger.Info().Msg("no push transport configured, foreground alerts disabled")
		return nil, nil
	}
}

func parseMessage(raw string) (*push.RemoteMessage, error) {
	if raw == "" {
		return nil, nil
	}
	msg, err := push.Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func logRegistry(log zerolog.Logger, registry *resilience.Registry) {
	for _, h := range registry.All() {
		log.Debug().
			Str("client", h.Name).
			Str("state", h.CircuitState.String()).
			Uint32("consecutive_failures", h.Counts.ConsecutiveFailures).
			Msg("backend client health")
	}
}
