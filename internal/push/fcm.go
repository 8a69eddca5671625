package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/konect/konect/internal/telemetry"
)

// TransportFCM names the Firebase Cloud Messaging transport.
const TransportFCM = "fcm"

// Android delivery settings for alert pushes.
const (
	AndroidChannelID = "default"
	AndroidSound     = "sound_2"
	APNSSound        = "default"
)

// FCMConfig holds configuration for the FCM sender.
type FCMConfig struct {
	ProjectID string

	// ServiceAccountPath is a credentials file; empty uses application
	// default credentials.
	ServiceAccountPath string

	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// fcmClient is the subset of the messaging client the sender uses.
type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers remote messages through Firebase Cloud Messaging.
type FCMSender struct {
	client      fcmClient
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewFCMSender initialises a Firebase app and its messaging client.
func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	var opts []option.ClientOption
	if cfg.ServiceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating messaging client: %w", err)
	}

	return &FCMSender{
		client:      client,
		instruments: cfg.Instruments,
		logger:      cfg.Logger,
	}, nil
}

// Name returns the transport name.
func (s *FCMSender) Name() string {
	return TransportFCM
}

// Send delivers msg to the device identified by its FCM registration token.
func (s *FCMSender) Send(ctx context.Context, deviceToken string, msg RemoteMessage) error {
	id, err := s.client.Send(ctx, toFCMMessage(deviceToken, msg))
	if err != nil {
		s.instruments.RecordPushMessage(TransportFCM, OutcomeFailed)
		return fmt.Errorf("sending fcm message: %w", err)
	}

	s.instruments.RecordPushMessage(TransportFCM, OutcomePublished)
	s.logger.Debug().
		Str("fcm_message_id", id).
		Str("message_id", msg.MessageID).
		Msg("push sent")
	return nil
}

// toFCMMessage builds a high-priority message that rings on the default
// Android channel with the alert sound.
func toFCMMessage(deviceToken string, msg RemoteMessage) *messaging.Message {
	out := &messaging.Message{
		Token: deviceToken,
		Data:  msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: AndroidChannelID,
				Sound:     AndroidSound,
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: APNSSound},
			},
		},
	}
	if msg.Notification != nil {
		out.Notification = &messaging.Notification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		}
	}
	return out
}
