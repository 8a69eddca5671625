package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/push"
)

// MessageHandler handles one background push.
type MessageHandler interface {
	Handle(ctx context.Context, msg push.RemoteMessage)
}

// Worker feeds a push subscription into a pool of handlers.
type Worker struct {
	config     Config
	subscriber push.Subscriber
	handler    MessageHandler
	logger     zerolog.Logger

	stats *Stats
}

// Stats tracks worker activity.
type Stats struct {
	mu sync.RWMutex

	Received int64
	Handled  int64
	InFlight int64

	StartedAt         time.Time
	LastMessageAt     time.Time
	LastHandleLatency time.Duration
}

// WorkerConfig holds the dependencies of a Worker.
type WorkerConfig struct {
	Config     Config
	Subscriber push.Subscriber
	Handler    MessageHandler
	Logger     zerolog.Logger
}

// New creates a worker.
func New(cfg WorkerConfig) *Worker {
	return &Worker{
		config:     cfg.Config.withDefaults(),
		subscriber: cfg.Subscriber,
		handler:    cfg.Handler,
		logger:     cfg.Logger.With().Str("component", "worker").Logger(),
		stats:      &Stats{},
	}
}

// Run receives until ctx is done, then drains the queue. Messages already
// queued are still handled, each within HandleTimeout.
func (w *Worker) Run(ctx context.Context) error {
	w.stats.mu.Lock()
	w.stats.StartedAt = time.Now()
	w.stats.mu.Unlock()

	w.logger.Info().
		Int("concurrency", w.config.Concurrency).
		Int("queue_size", w.config.QueueSize).
		Msg("worker started")

	jobs := make(chan push.RemoteMessage, w.config.QueueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.process(ctx, jobs)
		}()
	}

	// The subscriber returns only after its handler calls have returned, so
	// closing jobs afterwards is safe.
	err := w.subscriber.Receive(ctx, func(hctx context.Context, msg push.RemoteMessage) {
		select {
		case jobs <- msg:
			w.stats.mu.Lock()
			w.stats.Received++
			w.stats.LastMessageAt = time.Now()
			w.stats.mu.Unlock()
		case <-hctx.Done():
			w.logger.Warn().Str("message_id", msg.MessageID).Msg("dropped message on shutdown")
		}
	})
	close(jobs)
	wg.Wait()

	w.logger.Info().Int64("handled", w.GetStats().Handled).Msg("worker stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Worker) process(ctx context.Context, jobs <-chan push.RemoteMessage) {
	for msg := range jobs {
		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg push.RemoteMessage) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.HandleTimeout)
	defer cancel()

	w.stats.mu.Lock()
	w.stats.InFlight++
	w.stats.mu.Unlock()

	start := time.Now()
	w.handler.Handle(hctx, msg)
	latency := time.Since(start)

	w.stats.mu.Lock()
	w.stats.InFlight--
	w.stats.Handled++
	w.stats.LastHandleLatency = latency
	w.stats.mu.Unlock()

	w.logger.Debug().
		Str("message_id", msg.MessageID).
		Dur("duration", latency).
		Msg("message handled")
}

// GetStats returns a copy of the current stats.
func (w *Worker) GetStats() Stats {
	w.stats.mu.RLock()
	defer w.stats.mu.RUnlock()

	return Stats{
		Received:          w.stats.Received,
		Handled:           w.stats.Handled,
		InFlight:          w.stats.InFlight,
		StartedAt:         w.stats.StartedAt,
		LastMessageAt:     w.stats.LastMessageAt,
		LastHandleLatency: w.stats.LastHandleLatency,
	}
}

// StatsSnapshot returns the stats as a JSON-friendly map.
func (w *Worker) StatsSnapshot() map[string]any {
	s := w.GetStats()
	snapshot := map[string]any{
		"received":            s.Received,
		"handled":             s.Handled,
		"in_flight":           s.InFlight,
		"last_handle_latency": s.LastHandleLatency.String(),
	}
	if !s.StartedAt.IsZero() {
		snapshot["started_at"] = s.StartedAt.UTC()
	}
	if !s.LastMessageAt.IsZero() {
		snapshot["last_message_at"] = s.LastMessageAt.UTC()
	}
	return snapshot
}
