package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/alert"
)

// Player plays sound files from a directory with an external command
// (for example "paplay" or "afplay").
type Player struct {
	Command  Command
	SoundDir string
}

// Play loads clip from the sound directory and plays it.
func (p *Player) Play(ctx context.Context, clip string) error {
	path := filepath.Join(p.SoundDir, clip)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("loading sound %s: %w", clip, err)
	}
	return p.Command.Run(ctx, path)
}

// BellVibrator renders a vibration pattern as terminal bells: one bell per
// pulse, pauses for the gaps.
type BellVibrator struct {
	Out io.Writer
}

// Vibrate runs the pattern; even entries are pulses, odd entries are gaps.
func (v *BellVibrator) Vibrate(ctx context.Context, pattern []time.Duration) error {
	for i, d := range pattern {
		if i%2 == 0 {
			if _, err := io.WriteString(v.Out, "\a"); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
	return nil
}

// Linker opens deep links with an external command (for example
// "xdg-open" or "open").
type Linker struct {
	Command Command
}

// Open opens url.
func (l *Linker) Open(ctx context.Context, url string) error {
	return l.Command.Run(ctx, url)
}

// Notifier posts local notifications with an external command (for example
// "notify-send"). Channels are kept in memory; a high-importance channel
// maps to an urgent notification and plays the channel sound.
type Notifier struct {
	Command Command
	Player  *Player
	Logger  zerolog.Logger

	mu       sync.Mutex
	channels map[string]alert.Channel
}

// EnsureChannel records the channel; it is idempotent.
func (n *Notifier) EnsureChannel(_ context.Context, ch alert.Channel) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channels == nil {
		n.channels = make(map[string]alert.Channel)
	}
	if _, ok := n.channels[ch.ID]; !ok {
		n.Logger.Debug().Str("channel", ch.ID).Str("name", ch.Name).Msg("notification channel created")
	}
	n.channels[ch.ID] = ch
	return nil
}

// Display posts the notification on its channel and plays the channel sound.
// The sound plays even when posting fails; both errors are returned.
func (n *Notifier) Display(ctx context.Context, ln alert.LocalNotification) error {
	n.mu.Lock()
	ch, ok := n.channels[ln.ChannelID]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown notification channel %q", ln.ChannelID)
	}

	urgency := "normal"
	if ch.Importance == alert.ImportanceHigh {
		urgency = "critical"
	}
	args := []string{"--urgency", urgency, "--app-name", "Konect", ln.Title, ln.Body}
	var postErr, soundErr error
	if err := n.Command.Run(ctx, args...); err != nil {
		postErr = fmt.Errorf("posting notification: %w", err)
	}

	if n.Player != nil && ch.Sound != "" {
		if err := n.Player.Play(ctx, ch.Sound+".mp3"); err != nil {
			soundErr = fmt.Errorf("playing channel sound %s: %w", ch.Sound, err)
		}
	}
	return errors.Join(postErr, soundErr)
}
