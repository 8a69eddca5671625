package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/pairing"
)

// DefaultAnimationDuration is how long the success screen stays up.
const DefaultAnimationDuration = 1500 * time.Millisecond

// Messages printed in response to commands that the current screen does
// not offer.
const (
	msgAlertUnavailable  = "alert control not available"
	msgLogoutUnavailable = "logout not available"
	msgAlreadyConnected  = "already connected"
	msgUnknownCommand    = "unknown command"
)

// ViewConfig holds configuration for the view.
type ViewConfig struct {
	Manager *pairing.Manager
	Console *Console

	// AnimationDuration defaults to DefaultAnimationDuration.
	AnimationDuration time.Duration

	Logger zerolog.Logger
}

// View renders the manager's state and executes typed commands.
type View struct {
	manager   *pairing.Manager
	console   *Console
	animation time.Duration
	logger    zerolog.Logger
}

// NewView creates a view.
func NewView(cfg ViewConfig) *View {
	d := cfg.AnimationDuration
	if d == 0 {
		d = DefaultAnimationDuration
	}
	return &View{
		manager:   cfg.Manager,
		console:   cfg.Console,
		animation: d,
		logger:    cfg.Logger,
	}
}

// Run renders until ctx is done, input ends, or the user quits.
func (v *View) Run(ctx context.Context) error {
	updates, unsubscribe := v.manager.Subscribe()
	defer unsubscribe()

	var (
		shown     = ScreenKind(-1)
		animation <-chan time.Time
	)

	show := func(s pairing.State) {
		kind := Screen(s)
		if kind == shown {
			return
		}
		shown = kind
		v.Render(s)
		if kind == ScreenSuccessAnimation {
			animation = time.After(v.animation)
		} else {
			animation = nil
		}
	}

	show(v.manager.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			show(s)
		case <-animation:
			animation = nil
			v.manager.MarkAnimationDone()
		case line, ok := <-v.console.Commands():
			if !ok {
				return nil
			}
			if quit := v.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Render draws the screen for s.
func (v *View) Render(s pairing.State) {
	switch Screen(s) {
	case ScreenConnectForm:
		v.console.Printf("\nKonect\nEnter a session code to pair this device.\n  connect <code>\n  quit\n> ")
	case ScreenSuccessAnimation:
		v.console.Printf("\n  ✓ Connected to session %s!\n", s.SessionCode)
	case ScreenAlertControl:
		v.console.Printf("\nSession %s\n  alert   send an alert to your partner\n", s.SessionCode)
		if LogoutVisible(s) {
			v.console.Printf("  logout  disconnect this device\n")
		}
		v.console.Printf("  quit\n> ")
	}
}

// Execute runs one typed command and reports whether the user quit.
// Backend failures are logged by the manager and show nothing here; the
// screen simply does not change.
func (v *View) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	s := v.manager.Snapshot()

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true

	case "connect":
		if Screen(s) != ScreenConnectForm {
			v.console.Printf("%s\n> ", msgAlreadyConnected)
			return false
		}
		if len(fields) > 1 {
			v.manager.SetInput(fields[1])
		}
		if err := v.manager.ConnectInput(ctx); err != nil {
			v.logger.Debug().Err(err).Msg("connect did not complete")
		}

	case "alert":
		if !AlertVisible(s) {
			v.console.Printf("%s\n> ", msgAlertUnavailable)
			return false
		}
		if err := v.manager.TriggerAlert(ctx); err != nil {
			v.logger.Debug().Err(err).Msg("alert did not complete")
		}

	case "logout", "disconnect":
		if !LogoutVisible(s) {
			v.console.Printf("%s\n> ", msgLogoutUnavailable)
			return false
		}
		if _, err := v.manager.Disconnect(ctx, v.console); err != nil && !errors.Is(err, context.Canceled) {
			v.logger.Debug().Err(err).Msg("disconnect did not complete")
		}

	default:
		v.console.Printf("%s: %s\n> ", msgUnknownCommand, fields[0])
	}
	return false
}
