package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/telemetry"
)

// DefaultSoundClip is the alert sound bundled with the app.
const DefaultSoundClip = "sound_2.mp3"

// DefaultVibrationPattern is pulse, gap, pulse.
var DefaultVibrationPattern = []time.Duration{
	500 * time.Millisecond,
	200 * time.Millisecond,
	500 * time.Millisecond,
}

// Player plays an audio clip.
type Player interface {
	Play(ctx context.Context, clip string) error
}

// Vibrator runs a vibration pattern of alternating pulse and gap durations.
type Vibrator interface {
	Vibrate(ctx context.Context, pattern []time.Duration) error
}

// Prompter shows a message and blocks until the user acknowledges it.
type Prompter interface {
	Prompt(ctx context.Context, title, body string) error
}

// FeedbackConfig holds configuration for the feedback handler.
type FeedbackConfig struct {
	Player   Player
	Vibrator Vibrator
	Prompter Prompter

	// SoundClip defaults to DefaultSoundClip.
	SoundClip string

	// Pattern defaults to DefaultVibrationPattern.
	Pattern []time.Duration

	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// FeedbackHandler alerts the user: sound in the background, vibration, then a
// blocking prompt.
type FeedbackHandler struct {
	player      Player
	vibrator    Vibrator
	prompter    Prompter
	clip        string
	pattern     []time.Duration
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(cfg FeedbackConfig) *FeedbackHandler {
	clip := cfg.SoundClip
	if clip == "" {
		clip = DefaultSoundClip
	}
	pattern := cfg.Pattern
	if len(pattern) == 0 {
		pattern = DefaultVibrationPattern
	}

	return &FeedbackHandler{
		player:      cfg.Player,
		vibrator:    cfg.Vibrator,
		prompter:    cfg.Prompter,
		clip:        clip,
		pattern:     pattern,
		instruments: cfg.Instruments,
		logger:      cfg.Logger.With().Str("component", "alert_feedback").Logger(),
	}
}

// Handle surfaces ev to the user. The sound starts first and plays while
// the device vibrates and the prompt is up; Handle returns once both the
// prompt and the sound are done. A failing step is logged and the next one
// still runs.
func (h *FeedbackHandler) Handle(ctx context.Context, ev Event) {
	title, body := ev.Display()

	logger := h.logger.With().
		Str("lifecycle", ev.Lifecycle.String()).
		Str("message_id", ev.MessageID).
		Logger()

	logger.Info().Str("title", title).Msg("alert received")
	h.instruments.RecordAlertReceived(ev.Lifecycle.String())

	played := make(chan error, 1)
	go func() {
		played <- h.player.Play(ctx, h.clip)
	}()

	if err := h.vibrator.Vibrate(ctx, h.pattern); err != nil {
		logger.Error().Err(err).Msg("failed to vibrate")
	}

	if err := h.prompter.Prompt(ctx, title, body); err != nil {
		logger.Error().Err(err).Msg("failed to show alert prompt")
	}

	if err := <-played; err != nil {
		logger.Error().Err(err).Str("clip", h.clip).Msg("failed to play alert sound")
	}
}
