package push

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/telemetry"
)

// TransportPubSub names the Google Cloud Pub/Sub transport.
const TransportPubSub = "pubsub"

// PubSubSubscriberConfig holds configuration for the Pub/Sub subscriber.
type PubSubSubscriberConfig struct {
	ProjectID        string
	SubscriptionName string

	// DeviceToken filters messages by their deviceToken attribute.
	DeviceToken string

	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// PubSubSubscriber receives remote messages from a Pub/Sub subscription.
type PubSubSubscriber struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       dispatcher
	logger           zerolog.Logger
}

// NewPubSubSubscriber creates a subscriber on the given subscription.
func NewPubSubSubscriber(ctx context.Context, cfg PubSubSubscriberConfig) (*PubSubSubscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	return &PubSubSubscriber{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher: dispatcher{
			transport:   TransportPubSub,
			deviceToken: cfg.DeviceToken,
			instruments: cfg.Instruments,
			logger:      cfg.Logger,
		},
		logger: cfg.Logger,
	}, nil
}

// Receive processes messages until ctx is done.
func (s *PubSubSubscriber) Receive(ctx context.Context, h Handler) error {
	s.logger.Info().
		Str("subscription", s.subscriptionName).
		Msg("starting pubsub subscriber")

	return s.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg, h)
	})
}

// Close closes the Pub/Sub client.
func (s *PubSubSubscriber) Close() error {
	return s.client.Close()
}

// handleMessage acks every message, malformed ones included, so nothing is
// redelivered.
func (s *PubSubSubscriber) handleMessage(ctx context.Context, msg *pubsub.Message, h Handler) {
	s.dispatcher.dispatch(ctx, msg.ID, msg.Data, msg.Attributes[AttributeDeviceToken], h)
	msg.Ack()
}

// PubSubPublisherConfig holds configuration for the Pub/Sub sender.
type PubSubPublisherConfig struct {
	ProjectID   string
	Topic       string
	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// PubSubPublisher publishes remote messages to a topic, addressed by the
// deviceToken attribute.
type PubSubPublisher struct {
	client      *pubsub.Client
	publisher   *pubsub.Publisher
	topic       string
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewPubSubPublisher creates a publisher for the given topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubPublisherConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubPublisher{
		client:      client,
		publisher:   client.Publisher(cfg.Topic),
		topic:       cfg.Topic,
		instruments: cfg.Instruments,
		logger:      cfg.Logger,
	}, nil
}

// Name returns the transport name.
func (p *PubSubPublisher) Name() string {
	return TransportPubSub
}

// Send publishes msg and waits for the server to accept it.
func (p *PubSubPublisher) Send(ctx context.Context, deviceToken string, msg RemoteMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding push message: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{AttributeDeviceToken: deviceToken},
	})

	serverID, err := result.Get(ctx)
	if err != nil {
		p.instruments.RecordPushMessage(TransportPubSub, OutcomeFailed)
		return fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.instruments.RecordPushMessage(TransportPubSub, OutcomePublished)
	p.logger.Debug().
		Str("topic", p.topic).
		Str("server_id", serverID).
		Str("message_id", msg.MessageID).
		Msg("push published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
