package alert

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/pairing/backend"
	"github.com/konect/konect/internal/telemetry"
)

// TriggerClient posts /trigger-alert.
type TriggerClient interface {
	TriggerAlert(ctx context.Context, sessionCode, senderToken string) (json.RawMessage, error)
}

// Dispatcher asks the backend to alert the other devices of a session.
type Dispatcher struct {
	client      TriggerClient
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(client TriggerClient, instruments *telemetry.Instruments, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client:      client,
		instruments: instruments,
		logger:      logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// TriggerAlert sends one alert request. The response body is logged and
// otherwise ignored; failures are logged and returned, never retried.
func (d *Dispatcher) TriggerAlert(ctx context.Context, sessionCode, senderToken string) error {
	d.logger.Info().
		Str("session_code", sessionCode).
		Msg("triggering alert")

	body, err := d.client.TriggerAlert(ctx, sessionCode, senderToken)
	d.instruments.RecordAlertSent(err)
	if err != nil {
		event := d.logger.Error().Err(err).Str("session_code", sessionCode)
		var backendErr *backend.Error
		if errors.As(err, &backendErr) {
			event = event.Int("status", backendErr.StatusCode).Str("body", backendErr.Body)
		}
		event.Msg("trigger alert failed")
		return err
	}

	d.logger.Info().
		Str("session_code", sessionCode).
		Str("response", string(body)).
		Msg("alert triggered")
	return nil
}
