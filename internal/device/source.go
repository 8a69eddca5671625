package device

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TokenSource issues the push token for this installation.
// Token blocks until a token is available or ctx is done.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// StaticSource returns a token provisioned ahead of time, e.g. from configuration.
type StaticSource Token

// Token returns the configured token, or ErrNoToken if it is empty.
func (s StaticSource) Token(_ context.Context) (Token, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return Token(s), nil
}

// ChannelSource waits for a token delivered by the push runtime.
type ChannelSource struct {
	mu    sync.Mutex
	token Token
	ready chan struct{}
}

// NewChannelSource creates a source with no token issued yet.
func NewChannelSource() *ChannelSource {
	return &ChannelSource{ready: make(chan struct{})}
}

// Issue delivers the token. Only the first call has an effect.
func (s *ChannelSource) Issue(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.ready:
		return
	default:
	}
	s.token = token
	close(s.ready)
}

// Token blocks until Issue has been called.
func (s *ChannelSource) Token(ctx context.Context) (Token, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ready:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// GeneratedSource issues a random token for development installations that
// have no push provider. The token is stable for the life of the source.
type GeneratedSource struct {
	once  sync.Once
	token Token
}

// Token returns the generated token.
func (s *GeneratedSource) Token(_ context.Context) (Token, error) {
	s.once.Do(func() {
		s.token = Token("dev-" + uuid.NewString())
	})
	return s.token, nil
}
