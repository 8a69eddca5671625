// Package push carries remote messages between the pairing backend and
// devices. Senders run in the backend; subscribers run on the device and
// stand in for the mobile OS push runtime.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/telemetry"
)

// AttributeDeviceToken is the message attribute naming the target device.
const AttributeDeviceToken = "deviceToken"

// Outcomes recorded for every handled message.
const (
	OutcomeDelivered = "delivered"
	OutcomeIgnored   = "ignored"
	OutcomeMalformed = "malformed"
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// ErrMalformed is returned when a payload is not a remote message.
var ErrMalformed = errors.New("malformed push payload")

// Notification is the user-visible part of a remote message.
type Notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// RemoteMessage is a push delivered to a device. Notification is nil for
// data-only messages.
type RemoteMessage struct {
	MessageID    string            `json:"messageId,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	SentAt       time.Time         `json:"sentAt,omitzero"`
}

// Handler consumes inbound remote messages.
type Handler func(ctx context.Context, msg RemoteMessage)

// Subscriber delivers remote messages addressed to this device.
type Subscriber interface {
	// Receive blocks, calling h for each message, until ctx is done.
	Receive(ctx context.Context, h Handler) error
	Close() error
}

// Sender delivers a remote message to one device.
type Sender interface {
	Name() string
	Send(ctx context.Context, deviceToken string, msg RemoteMessage) error
}

// Decode parses a JSON payload into a RemoteMessage.
func Decode(payload []byte) (RemoteMessage, error) {
	var msg RemoteMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RemoteMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Encode serialises a RemoteMessage.
func Encode(msg RemoteMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// dispatcher is the shared receive path of every subscriber: decode, filter
// by device token, hand off, count.
type dispatcher struct {
	transport   string
	deviceToken string
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// dispatch returns the outcome for the message. A malformed or foreign
// message is never handed to h.
func (d dispatcher) dispatch(ctx context.Context, id string, payload []byte, target string, h Handler) string {
	logger := d.logger.With().Str("message_id", id).Logger()

	if target != "" && d.deviceToken != "" && target != d.deviceToken {
		logger.Debug().Msg("push addressed to another device")
		d.instruments.RecordPushMessage(d.transport, OutcomeIgnored)
		return OutcomeIgnored
	}

	msg, err := Decode(payload)
	if err != nil {
		logger.Error().Err(err).Msg("failed to parse push message")
		d.instruments.RecordPushMessage(d.transport, OutcomeMalformed)
		return OutcomeMalformed
	}
	if msg.MessageID == "" {
		msg.MessageID = id
	}

	logger.Debug().Bool("has_notification", msg.Notification != nil).Msg("push received")
	h(ctx, msg)
	d.instruments.RecordPushMessage(d.transport, OutcomeDelivered)
	return OutcomeDelivered
}
