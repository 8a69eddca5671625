package pairing_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konect/konect/internal/pairing"
	"github.com/konect/konect/internal/pairing/backend"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	checkResp *backend.CheckDeviceResponse
	err       error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CheckDevice(_ context.Context, token string) (*backend.CheckDeviceResponse, error) {
	f.record("check-device " + token)
	if f.err != nil {
		return nil, f.err
	}
	return f.checkResp, nil
}

func (f *fakeBackend) Register(_ context.Context, code, token string) (json.RawMessage, error) {
	f.record("register " + code + " " + token)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"success":true}`), nil
}

func (f *fakeBackend) RemoveDevice(_ context.Context, token string) (json.RawMessage, error) {
	f.record("remove-device " + token)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{}`), nil
}

type fakeAlerts struct {
	code, sender string
	calls        int
}

func (f *fakeAlerts) TriggerAlert(_ context.Context, code, sender string) error {
	f.calls++
	f.code, f.sender = code, sender
	return nil
}

type confirmFunc func() (bool, error)

func (f confirmFunc) Confirm(context.Context, pairing.Confirmation) (bool, error) { return f() }

var (
	confirmYes = confirmFunc(func() (bool, error) { return true, nil })
	confirmNo  = confirmFunc(func() (bool, error) { return false, nil })
)

var errBackend = &backend.Error{
	Endpoint:   backend.EndpointRegister,
	StatusCode: 500,
	Body:       `{"error":"boom"}`,
	Err:        backend.ErrServerError,
}

func newManager(b *fakeBackend, alerts *fakeAlerts) *pairing.Manager {
	return pairing.NewManager(pairing.ManagerConfig{
		Backend: b,
		Alerts:  alerts,
		Token:   "tok-1",
		Logger:  zerolog.Nop(),
	})
}

func TestManager_CheckConnection_Connected(t *testing.T) {
	b := &fakeBackend{checkResp: &backend.CheckDeviceResponse{Connected: true, SessionCodes: []string{"XYZ", "OTHER"}}}
	m := newManager(b, nil)

	status, err := m.CheckConnection(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Connected)
	s := m.Snapshot()
	assert.True(t, s.Registered)
	assert.Equal(t, "XYZ", s.SessionCode)
	assert.True(t, s.AnimationDone, "returning device skips the success animation")
	assert.Equal(t, []string{"check-device tok-1"}, b.Calls())
}

func TestManager_CheckConnection_ConnectedWithoutCodes(t *testing.T) {
	b := &fakeBackend{checkResp: &backend.CheckDeviceResponse{Connected: true}}
	m := newManager(b, nil)

	_, err := m.CheckConnection(context.Background())
	require.NoError(t, err)

	s := m.Snapshot()
	assert.True(t, s.Registered)
	assert.Empty(t, s.SessionCode)
}

func TestManager_CheckConnection_NotConnected(t *testing.T) {
	b := &fakeBackend{checkResp: &backend.CheckDeviceResponse{Connected: true, SessionCodes: []string{"OLD"}}}
	m := newManager(b, nil)
	_, err := m.CheckConnection(context.Background())
	require.NoError(t, err)

	b.checkResp = &backend.CheckDeviceResponse{Connected: false}
	_, err = m.CheckConnection(context.Background())
	require.NoError(t, err)

	s := m.Snapshot()
	assert.False(t, s.Registered)
	assert.Equal(t, "OLD", s.SessionCode, "code is left as is")
}

func TestManager_Connect(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)

	require.NoError(t, m.Connect(context.Background(), "ABC123"))

	s := m.Snapshot()
	assert.True(t, s.Registered)
	assert.Equal(t, "ABC123", s.SessionCode)
	assert.False(t, s.AnimationDone)
	assert.Equal(t, []string{"register ABC123 tok-1"}, b.Calls())
}

func TestManager_ConnectInput(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)

	m.SetInput("ROOM42")
	require.NoError(t, m.ConnectInput(context.Background()))

	assert.Equal(t, "ROOM42", m.Snapshot().SessionCode)
}

func TestManager_FailuresLeaveStateUnchanged(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)
	require.NoError(t, m.Connect(context.Background(), "KEEP"))
	before := m.Snapshot()

	b.err = errBackend

	_, err := m.CheckConnection(context.Background())
	assert.ErrorIs(t, err, backend.ErrServerError)
	assert.Equal(t, before, m.Snapshot())

	err = m.Connect(context.Background(), "OTHER")
	assert.ErrorIs(t, err, backend.ErrServerError)
	assert.Equal(t, before, m.Snapshot())

	removed, err := m.Disconnect(context.Background(), confirmYes)
	assert.ErrorIs(t, err, backend.ErrServerError)
	assert.False(t, removed)
	assert.Equal(t, before, m.Snapshot())
}

func TestManager_Disconnect_Confirmed(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)
	m.SetInput("ABC123")
	require.NoError(t, m.ConnectInput(context.Background()))
	m.MarkAnimationDone()

	removed, err := m.Disconnect(context.Background(), confirmYes)
	require.NoError(t, err)
	assert.True(t, removed)

	s := m.Snapshot()
	assert.False(t, s.Registered)
	assert.Empty(t, s.SessionCode)
	assert.Empty(t, s.Input)
	assert.False(t, s.AnimationDone)
	assert.Equal(t, []string{"register ABC123 tok-1", "remove-device tok-1"}, b.Calls())
}

func TestManager_MarkAnimationDoneIgnoredWhenUnregistered(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)
	require.NoError(t, m.Connect(context.Background(), "ABC123"))

	removed, err := m.Disconnect(context.Background(), confirmYes)
	require.NoError(t, err)
	require.True(t, removed)

	// A success animation started before the disconnect finishes late.
	m.MarkAnimationDone()
	assert.False(t, m.Snapshot().AnimationDone)

	require.NoError(t, m.Connect(context.Background(), "XYZ789"))
	s := m.Snapshot()
	assert.True(t, s.Registered)
	assert.False(t, s.AnimationDone)
}

func TestManager_Disconnect_Cancelled(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)
	require.NoError(t, m.Connect(context.Background(), "ABC123"))
	before := m.Snapshot()

	removed, err := m.Disconnect(context.Background(), confirmNo)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, before, m.Snapshot())
	assert.Equal(t, []string{"register ABC123 tok-1"}, b.Calls(), "no remove-device request")
}

func TestManager_Disconnect_ConfirmerError(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)
	errClosed := errors.New("terminal closed")

	removed, err := m.Disconnect(context.Background(), confirmFunc(func() (bool, error) { return false, errClosed }))
	assert.ErrorIs(t, err, errClosed)
	assert.False(t, removed)
	assert.Empty(t, b.Calls())
}

func TestManager_NoRequestsWithoutToken(t *testing.T) {
	b := &fakeBackend{}
	alerts := &fakeAlerts{}
	m := pairing.NewManager(pairing.ManagerConfig{Backend: b, Alerts: alerts, Logger: zerolog.Nop()})

	_, err := m.CheckConnection(context.Background())
	assert.ErrorIs(t, err, pairing.ErrNoToken)

	assert.ErrorIs(t, m.Connect(context.Background(), "ABC123"), pairing.ErrNoToken)

	_, err = m.Disconnect(context.Background(), confirmYes)
	assert.ErrorIs(t, err, pairing.ErrNoToken)

	assert.ErrorIs(t, m.TriggerAlert(context.Background()), pairing.ErrNoToken)

	assert.Empty(t, b.Calls())
	assert.Zero(t, alerts.calls)

	m.SetToken("late-token")
	require.NoError(t, m.Connect(context.Background(), "ABC123"))
	assert.Equal(t, []string{"register ABC123 late-token"}, b.Calls())
}

func TestManager_TriggerAlert(t *testing.T) {
	b := &fakeBackend{}
	alerts := &fakeAlerts{}
	m := newManager(b, alerts)

	assert.ErrorIs(t, m.TriggerAlert(context.Background()), pairing.ErrNotRegistered)
	assert.Zero(t, alerts.calls)

	require.NoError(t, m.Connect(context.Background(), "ABC123"))
	require.NoError(t, m.TriggerAlert(context.Background()))

	assert.Equal(t, 1, alerts.calls)
	assert.Equal(t, "ABC123", alerts.code)
	assert.Equal(t, "tok-1", alerts.sender)
}

func TestManager_Subscribe(t *testing.T) {
	b := &fakeBackend{}
	m := newManager(b, nil)

	updates, unsubscribe := m.Subscribe()

	require.NoError(t, m.Connect(context.Background(), "ABC123"))
	s := <-updates
	assert.True(t, s.Registered)
	assert.Equal(t, "ABC123", s.SessionCode)

	m.SetInput("a")
	m.SetInput("ab")
	assert.Equal(t, "ab", (<-updates).Input, "only the latest state is buffered")

	unsubscribe()
	_, open := <-updates
	assert.False(t, open)

	assert.NotPanics(t, unsubscribe)
}

func TestDisconnectConfirmation(t *testing.T) {
	assert.Equal(t, "Confirm Disconnect", pairing.DisconnectConfirmation.Title)
	assert.Equal(t, "Are you sure you want to disconnect?", pairing.DisconnectConfirmation.Message)
	assert.Equal(t, "Cancel", pairing.DisconnectConfirmation.CancelLabel)
	assert.Equal(t, "Disconnect", pairing.DisconnectConfirmation.ConfirmLabel)
}
