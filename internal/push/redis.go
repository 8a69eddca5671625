package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/telemetry"
)

// TransportRedis names the Redis pub/sub transport.
const TransportRedis = "redis"

// ChannelPrefix prefixes the per-device Redis channel.
const ChannelPrefix = "konect:push:"

// Channel returns the Redis channel for a device token.
func Channel(deviceToken string) string {
	return ChannelPrefix + deviceToken
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// RedisSubscriber receives remote messages on the device's Redis channel.
type RedisSubscriber struct {
	rdb        *redis.Client
	channel    string
	dispatcher dispatcher
	logger     zerolog.Logger
}

// RedisSubscriberConfig holds configuration for the Redis subscriber.
type RedisSubscriberConfig struct {
	Client      *redis.Client
	DeviceToken string
	Instruments *telemetry.Instruments
	Logger      zerolog.Logger
}

// NewRedisSubscriber creates a subscriber for the device's channel.
func NewRedisSubscriber(cfg RedisSubscriberConfig) *RedisSubscriber {
	return &RedisSubscriber{
		rdb:     cfg.Client,
		channel: Channel(cfg.DeviceToken),
		dispatcher: dispatcher{
			transport:   TransportRedis,
			deviceToken: cfg.DeviceToken,
			instruments: cfg.Instruments,
			logger:      cfg.Logger,
		},
		logger: cfg.Logger,
	}
}

// Receive processes messages until ctx is done or the subscription closes.
func (s *RedisSubscriber) Receive(ctx context.Context, h Handler) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}

	s.logger.Info().Str("channel", s.channel).Msg("starting redis subscriber")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			s.dispatcher.dispatch(ctx, "", []byte(m.Payload), "", h)
		}
	}
}

// Close closes the Redis client.
func (s *RedisSubscriber) Close() error {
	return s.rdb.Close()
}

// RedisPublisher publishes remote messages on per-device Redis channels.
type RedisPublisher struct {
	rdb         *redis.Client
	instruments *telemetry.Instruments
	logger      zerolog.Logger
}

// NewRedisPublisher creates a Redis sender.
func NewRedisPublisher(rdb *redis.Client, instruments *telemetry.Instruments, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, instruments: instruments, logger: logger}
}

// Name returns the transport name.
func (p *RedisPublisher) Name() string {
	return TransportRedis
}

// Send publishes msg on the device's channel. A device that is not
// listening simply misses it.
func (p *RedisPublisher) Send(ctx context.Context, deviceToken string, msg RemoteMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding push message: %w", err)
	}

	receivers, err := p.rdb.Publish(ctx, Channel(deviceToken), payload).Result()
	if err != nil {
		p.instruments.RecordPushMessage(TransportRedis, OutcomeFailed)
		return fmt.Errorf("publishing to redis: %w", err)
	}

	p.instruments.RecordPushMessage(TransportRedis, OutcomePublished)
	p.logger.Debug().
		Str("message_id", msg.MessageID).
		Int64("receivers", receivers).
		Msg("push published")
	return nil
}
