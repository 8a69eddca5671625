// Package worker runs the background alert path: it drains a push
// subscription through a bounded pool of handlers.
package worker

import "time"

// Config holds configuration for the worker pool.
type Config struct {
	// Concurrency is the number of messages handled at once. Default: 4
	Concurrency int

	// QueueSize bounds messages received but not yet handled. Receiving
	// blocks when the queue is full. Default: 16
	QueueSize int

	// HandleTimeout bounds each message. Default: 30 seconds
	HandleTimeout time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		QueueSize:     16,
		HandleTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.HandleTimeout <= 0 {
		c.HandleTimeout = d.HandleTimeout
	}
	return c
}
