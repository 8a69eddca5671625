package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) RedisConfig {
	t.Helper()
	return RedisConfig{Addr: miniredis.RunT(t).Addr()}
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestRedis_PublishSubscribe(t *testing.T) {
	cfg := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subClient, err := NewRedisClient(ctx, cfg)
	require.NoError(t, err)
	sub := NewRedisSubscriber(RedisSubscriberConfig{
		Client:      subClient,
		DeviceToken: "token-b",
		Logger:      zerolog.Nop(),
	})
	defer sub.Close()

	pubClient, err := NewRedisClient(ctx, cfg)
	require.NoError(t, err)
	defer pubClient.Close()
	pub := NewRedisPublisher(pubClient, nil, zerolog.Nop())
	assert.Equal(t, TransportRedis, pub.Name())

	received := make(chan RemoteMessage, 2)
	done := make(chan error, 1)
	go func() {
		done <- sub.Receive(ctx, func(_ context.Context, msg RemoteMessage) {
			received <- msg
		})
	}()

	// Publish until the subscription is live; earlier messages have no receiver.
	msg := RemoteMessage{
		MessageID:    "m-1",
		Notification: &Notification{Title: "Alert", Body: "Partner pinged you"},
	}
	var got RemoteMessage
	require.Eventually(t, func() bool {
		if err := pub.Send(ctx, "token-b", msg); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "m-1", got.MessageID)
	require.NotNil(t, got.Notification)
	assert.Equal(t, "Alert", got.Notification.Title)

	// Other devices' channels are not delivered.
	require.NoError(t, pub.Send(ctx, "token-c", RemoteMessage{MessageID: "m-2"}))
	select {
	case m := <-received:
		assert.Equal(t, "m-1", m.MessageID, "unexpected message for another device")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}
