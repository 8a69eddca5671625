package alert

import (
	"context"

	"github.com/rs/zerolog"
)

// EventHandler consumes events from the receiver.
type EventHandler interface {
	Handle(ctx context.Context, ev Event)
}

// Receiver merges its sources into one stream and hands each event to the
// handler, one at a time. Events are not deduplicated across sources.
type Receiver struct {
	sources []Source
	handler EventHandler
	logger  zerolog.Logger
	ready   chan struct{}
}

// NewReceiver creates a receiver.
func NewReceiver(handler EventHandler, logger zerolog.Logger, sources ...Source) *Receiver {
	return &Receiver{
		sources: sources,
		handler: handler,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to every source. Run must be called
// at most once.
func (r *Receiver) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to every source and handles events until ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	events := make(chan Event, 16)

	for _, src := range r.sources {
		unsubscribe := src.Subscribe(func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		defer unsubscribe()
	}

	close(r.ready)
	r.logger.Debug().Int("sources", len(r.sources)).Msg("alert receiver started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			r.handler.Handle(ctx, ev)
		}
	}
}
