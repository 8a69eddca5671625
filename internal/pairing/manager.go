// Package pairing manages this device's membership in a pairing session:
// launch-time connection check, joining a session by code, leaving it, and
// triggering alerts on the other members.
package pairing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/konect/konect/internal/device"
	"github.com/konect/konect/internal/pairing/backend"
)

var (
	// ErrNoToken is returned when a session call is made before the device
	// token is known. No request is issued.
	ErrNoToken = errors.New("device token not known yet")

	// ErrNotRegistered is returned when alerting without an active session.
	ErrNotRegistered = errors.New("device is not registered with a session")
)

// Backend is the subset of the backend client the manager needs.
type Backend interface {
	CheckDevice(ctx context.Context, deviceToken string) (*backend.CheckDeviceResponse, error)
	Register(ctx context.Context, sessionCode, deviceToken string) (json.RawMessage, error)
	RemoveDevice(ctx context.Context, deviceToken string) (json.RawMessage, error)
}

// AlertSender triggers an alert on the other members of a session.
type AlertSender interface {
	TriggerAlert(ctx context.Context, sessionCode, senderToken string) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	Backend Backend
	Alerts  AlertSender

	// Token is the device token if already known; see SetToken.
	Token device.Token

	Logger zerolog.Logger
}

// Manager owns the pairing state. Its methods are safe for concurrent use;
// network calls run without holding the lock and their results are applied
// only on success.
type Manager struct {
	backend Backend
	alerts  AlertSender
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]chan State
	nextSubID   int
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		backend:     cfg.Backend,
		alerts:      cfg.Alerts,
		logger:      cfg.Logger.With().Str("component", "pairing").Logger(),
		state:       State{Token: cfg.Token},
		subscribers: make(map[int]chan State),
	}
}

// SetToken records the device token once it has been acquired.
func (m *Manager) SetToken(token device.Token) {
	m.update(func(s *State) { s.Token = token })
}

// SetInput stores the text typed into the connect form.
func (m *Manager) SetInput(text string) {
	m.update(func(s *State) { s.Input = text })
}

// MarkAnimationDone records that the success animation has finished. It has
// no effect on an unregistered device, so a timer outliving a disconnect
// cannot skip the next animation.
func (m *Manager) MarkAnimationDone() {
	m.update(func(s *State) {
		if s.Registered {
			s.AnimationDone = true
		}
	})
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel that receives the state after every change.
// Only the latest state is buffered; slow readers skip intermediate states.
func (m *Manager) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan State, 1)
	m.subscribers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
}

// CheckConnection asks the backend whether this device is already paired.
// A connected device takes the first reported session code and skips the
// success animation; a disconnected one is marked unregistered.
func (m *Manager) CheckConnection(ctx context.Context) (Status, error) {
	token, err := m.token()
	if err != nil {
		return Status{}, err
	}

	resp, err := m.backend.CheckDevice(ctx, token.String())
	if err != nil {
		m.logFailure(err, "check device failed")
		return Status{}, err
	}

	m.logger.Info().
		Bool("connected", resp.Connected).
		Strs("session_codes", resp.SessionCodes).
		Msg("device check complete")

	m.update(func(s *State) {
		if resp.Connected {
			s.Registered = true
			s.SessionCode = resp.FirstSessionCode()
			s.AnimationDone = true
			return
		}
		s.Registered = false
	})

	return Status{Connected: resp.Connected, SessionCodes: resp.SessionCodes}, nil
}

// Connect joins the session identified by code.
func (m *Manager) Connect(ctx context.Context, code string) error {
	token, err := m.token()
	if err != nil {
		return err
	}

	body, err := m.backend.Register(ctx, code, token.String())
	if err != nil {
		m.logFailure(err, "register failed")
		return err
	}

	m.logger.Info().
		Str("session_code", code).
		Str("response", string(body)).
		Msg("device registered")

	m.update(func(s *State) {
		s.Registered = true
		s.SessionCode = code
	})
	return nil
}

// ConnectInput joins the session whose code is in the connect form.
func (m *Manager) ConnectInput(ctx context.Context) error {
	return m.Connect(ctx, m.Snapshot().Input)
}

// Disconnect asks for confirmation and then leaves the session. It reports
// whether the device was removed; a cancelled confirmation sends nothing.
func (m *Manager) Disconnect(ctx context.Context, confirmer Confirmer) (bool, error) {
	ok, err := confirmer.Confirm(ctx, DisconnectConfirmation)
	if err != nil {
		return false, err
	}
	if !ok {
		m.logger.Debug().Msg("disconnect cancelled")
		return false, nil
	}

	token, err := m.token()
	if err != nil {
		return false, err
	}

	body, err := m.backend.RemoveDevice(ctx, token.String())
	if err != nil {
		m.logFailure(err, "remove device failed")
		return false, err
	}

	m.logger.Info().
		Str("response", string(body)).
		Msg("device removed")

	m.update(func(s *State) {
		s.Registered = false
		s.SessionCode = ""
		s.Input = ""
		s.AnimationDone = false
	})
	return true, nil
}

// TriggerAlert alerts the other members of the current session.
func (m *Manager) TriggerAlert(ctx context.Context) error {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()

	if s.Token == "" {
		return ErrNoToken
	}
	if !s.Registered {
		return ErrNotRegistered
	}
	return m.alerts.TriggerAlert(ctx, s.SessionCode, s.Token.String())
}

func (m *Manager) token() (device.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Token == "" {
		return "", ErrNoToken
	}
	return m.state.Token, nil
}

// update applies fn under the lock and publishes the new state.
func (m *Manager) update(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.state)
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- m.state
	}
}

func (m *Manager) logFailure(err error, msg string) {
	event := m.logger.Error().Err(err)
	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		event = event.
			Str("endpoint", backendErr.Endpoint).
			Int("status", backendErr.StatusCode).
			Str("body", backendErr.Body)
	}
	event.Msg(msg)
}
