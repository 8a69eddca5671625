package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// RegistrarConfig holds configuration for the Registrar.
type RegistrarConfig struct {
	// Permissions asks for notification permission (optional).
	// If nil, no permission request is made.
	Permissions PermissionRequester

	// Source issues the push token (required).
	Source TokenSource

	// Platform is the push platform of the issued token.
	Platform Platform

	// DeviceID is the local device identifier (optional, defaults to LocalID()).
	DeviceID string

	// Logger for registration events.
	Logger zerolog.Logger
}

// Registrar obtains the push token once per launch.
type Registrar struct {
	permissions PermissionRequester
	source      TokenSource
	platform    Platform
	deviceID    string
	logger      zerolog.Logger

	mu    sync.Mutex
	token Token
}

// NewRegistrar creates a new Registrar.
func NewRegistrar(cfg RegistrarConfig) *Registrar {
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = LocalID()
	}

	return &Registrar{
		permissions: cfg.Permissions,
		source:      cfg.Source,
		platform:    cfg.Platform,
		deviceID:    deviceID,
		logger:      cfg.Logger,
	}
}

// AcquireToken requests notification permission and then waits for the push
// token. A denied permission is logged and does not fail acquisition. There is
// no timeout: the call returns only when a token is issued or ctx is done.
// The token is never refreshed once acquired.
func (r *Registrar) AcquireToken(ctx context.Context) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" {
		return r.token, nil
	}

	r.requestPermission(ctx)

	token, err := r.source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquiring push token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}

	r.token = token
	r.logger.Info().
		Str("token_last4", token.Last4()).
		Str("platform", string(r.platform)).
		Msg("push token acquired")

	return token, nil
}

func (r *Registrar) requestPermission(ctx context.Context) {
	if r.permissions == nil {
		return
	}

	status, err := r.permissions.RequestPermission(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("notification permission request failed")
		return
	}

	if !status.Enabled() {
		r.logger.Info().Str("status", status.String()).Msg("notification permission denied")
		return
	}
	r.logger.Info().Str("status", status.String()).Msg("notification authorization status")
}

// Identity returns the local device identity, acquiring the token if needed.
func (r *Registrar) Identity(ctx context.Context) (Identity, error) {
	token, err := r.AcquireToken(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:       r.deviceID,
		Token:    token,
		Platform: r.platform,
	}, nil
}
