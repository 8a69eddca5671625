package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/push"
)

// Alert text pushed to session members.
const (
	AlertTitle = "Incoming Alert!"
	AlertBody  = "You have a new important message!"
)

// ServiceConfig holds configuration for the session service.
type ServiceConfig struct {
	Repository Repository
	Sender     push.Sender
	Logger     zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the pairing backend operations.
type Service struct {
	repo   Repository
	sender push.Sender
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repository,
		sender: cfg.Sender,
		logger: cfg.Logger,
		now:    now,
	}
}

// CheckDevice reports whether the device is in any session.
func (s *Service) CheckDevice(ctx context.Context, deviceToken string) (*DeviceStatus, error) {
	if strings.TrimSpace(deviceToken) == "" {
		return nil, fmt.Errorf("%w: deviceToken is required", ErrInvalidInput)
	}

	codes, err := s.repo.SessionsForDevice(ctx, deviceToken)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}

	return &DeviceStatus{
		Connected:    len(codes) > 0,
		SessionCodes: codes,
	}, nil
}

// Register adds the device to the session, creating it on first use.
func (s *Service) Register(ctx context.Context, sessionCode, deviceToken string) error {
	if strings.TrimSpace(sessionCode) == "" {
		return fmt.Errorf("%w: sessionCode is required", ErrInvalidInput)
	}
	if strings.TrimSpace(deviceToken) == "" {
		return fmt.Errorf("%w: deviceToken is required", ErrInvalidInput)
	}

	if err := s.repo.AddMember(ctx, sessionCode, deviceToken, s.now()); err != nil {
		return fmt.Errorf("adding member: %w", err)
	}

	s.logger.Info().
		Str("session_code", sessionCode).
		Str("device_token_last4", last4(deviceToken)).
		Msg("device registered")
	return nil
}

// RemoveDevice removes the device from every session it belongs to.
func (s *Service) RemoveDevice(ctx context.Context, deviceToken string) (int, error) {
	if strings.TrimSpace(deviceToken) == "" {
		return 0, fmt.Errorf("%w: deviceToken is required", ErrInvalidInput)
	}

	removed, err := s.repo.RemoveDevice(ctx, deviceToken)
	if err != nil {
		return 0, fmt.Errorf("removing device: %w", err)
	}
	if removed == 0 {
		return 0, ErrDeviceNotFound
	}

	s.logger.Info().
		Str("device_token_last4", last4(deviceToken)).
		Int("sessions", removed).
		Msg("device removed")
	return removed, nil
}

// TriggerAlert pushes an alert to every member of the session except the
// sender. Push failures are counted, not returned.
func (s *Service) TriggerAlert(ctx context.Context, sessionCode, senderToken string) (*AlertResult, error) {
	if strings.TrimSpace(sessionCode) == "" {
		return nil, fmt.Errorf("%w: sessionCode is required", ErrInvalidInput)
	}
	if strings.TrimSpace(senderToken) == "" {
		return nil, fmt.Errorf("%w: senderToken is required", ErrInvalidInput)
	}

	members, err := s.repo.Members(ctx, sessionCode)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading members: %w", err)
	}

	isMember := false
	for _, m := range members {
		if m.DeviceToken == senderToken {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, ErrNotMember
	}

	result := &AlertResult{SessionCode: sessionCode}
	sentAt := s.now()

	for _, m := range members {
		if m.DeviceToken == senderToken {
			continue
		}
		result.Recipients++

		msg := push.RemoteMessage{
			MessageID:    uuid.NewString(),
			Notification: &push.Notification{Title: AlertTitle, Body: AlertBody},
			Data:         map[string]string{"sessionCode": sessionCode},
			SentAt:       sentAt,
		}
		if err := s.sender.Send(ctx, m.DeviceToken, msg); err != nil {
			result.Failed++
			s.logger.Warn().
				Err(err).
				Str("session_code", sessionCode).
				Str("device_token_last4", last4(m.DeviceToken)).
				Str("sender", s.sender.Name()).
				Msg("alert push failed")
			continue
		}
		result.Delivered++
	}

	s.logger.Info().
		Str("session_code", sessionCode).
		Int("recipients", result.Recipients).
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Msg("alert triggered")

	return result, nil
}

// Ready checks the backing store.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func last4(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[len(token)-4:]
}
