package alert

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/push"
	"github.com/konect/konect/internal/telemetry"
)

// DefaultDeepLink opens the app on its notification screen.
const DefaultDeepLink = "myapp://notification"

// Importance of a notification channel.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
)

// Channel is a local notification channel.
type Channel struct {
	ID         string
	Name       string
	Sound      string
	Importance Importance
}

// AlertChannel is the channel background alerts are posted on.
var AlertChannel = Channel{
	ID:         "default",
	Name:       "Default Channel",
	Sound:      "sound_2",
	Importance: ImportanceHigh,
}

// LocalNotification is a notification posted by this device.
type LocalNotification struct {
	Title         string
	Body          string
	ChannelID     string
	PressActionID string
}

// DeepLinker opens a URL in the app.
type DeepLinker interface {
	Open(ctx context.Context, url string) error
}

// Notifier posts local notifications.
type Notifier interface {
	EnsureChannel(ctx context.Context, ch Channel) error
	Display(ctx context.Context, n LocalNotification) error
}

// BackgroundConfig holds configuration for the background handler.
type BackgroundConfig struct {
	Linker   DeepLinker
	Notifier Notifier

	// DeepLink defaults to DefaultDeepLink.
	DeepLink string

	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// BackgroundHandler is the OS-level delivery path. It runs without UI and
// does not coordinate with the in-app receiver.
type BackgroundHandler struct {
	linker      DeepLinker
	notifier    Notifier
	deepLink    string
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewBackgroundHandler creates a background handler.
func NewBackgroundHandler(cfg BackgroundConfig) *BackgroundHandler {
	link := cfg.DeepLink
	if link == "" {
		link = DefaultDeepLink
	}
	return &BackgroundHandler{
		linker:      cfg.Linker,
		notifier:    cfg.Notifier,
		deepLink:    link,
		instruments: cfg.Instruments,
		logger:      cfg.Logger.With().Str("component", "background_handler").Logger(),
	}
}

// Handle deep-links the app open, then posts a high-importance notification
// with sound. Each step runs even if the previous one failed.
func (h *BackgroundHandler) Handle(ctx context.Context, msg push.RemoteMessage) {
	logger := h.logger.With().Str("message_id", msg.MessageID).Logger()
	logger.Info().Msg("background push received")
	h.instruments.RecordAlertReceived(LifecycleBackground.String())

	if err := h.linker.Open(ctx, h.deepLink); err != nil {
		logger.Error().Err(err).Str("url", h.deepLink).Msg("failed to open deep link")
	}

	h.notify(ctx, logger)
}

// Notify posts the alert notification with sound without opening the app.
// The foreground app calls it for every push alongside its in-app feedback.
func (h *BackgroundHandler) Notify(ctx context.Context, msg push.RemoteMessage) {
	h.notify(ctx, h.logger.With().Str("message_id", msg.MessageID).Logger())
}

func (h *BackgroundHandler) notify(ctx context.Context, logger zerolog.Logger) {
	if err := h.notifier.EnsureChannel(ctx, AlertChannel); err != nil {
		logger.Error().Err(err).Str("channel", AlertChannel.ID).Msg("failed to create notification channel")
	}

	title, body := Event{Lifecycle: LifecycleBackground}.Display()
	err := h.notifier.Display(ctx, LocalNotification{
		Title:         title,
		Body:          body,
		ChannelID:     AlertChannel.ID,
		PressActionID: "default",
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to display notification")
	}
}

// HandlePress reacts to a press on a background notification by
// deep-linking the app open.
func (h *BackgroundHandler) HandlePress(ctx context.Context) {
	h.logger.Info().Msg("notification pressed")
	if err := h.linker.Open(ctx, h.deepLink); err != nil {
		h.logger.Error().Err(err).Str("url", h.deepLink).Msg("failed to open deep link")
	}
}
