package push

import (
	"context"

	"github.com/rs/zerolog"
)

// TransportLog names the sender that only logs.
const TransportLog = "log"

// LogSender logs every message instead of delivering it.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender for local development.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the transport name.
func (s *LogSender) Name() string {
	return TransportLog
}

// Send logs the message and its target.
func (s *LogSender) Send(_ context.Context, deviceToken string, msg RemoteMessage) error {
	event := s.logger.Info().
		Str("device_token", deviceToken).
		Str("message_id", msg.MessageID)
	if msg.Notification != nil {
		event = event.Str("title", msg.Notification.Title).Str("body", msg.Notification.Body)
	}
	event.Msg("push not delivered (log sender)")
	return nil
}
