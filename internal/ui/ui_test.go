package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konect/konect/internal/pairing"
	"github.com/konect/konect/internal/pairing/backend"
	"github.com/konect/konect/internal/ui"
)

func TestScreen(t *testing.T) {
	tests := []struct {
		name   string
		state  pairing.State
		screen ui.ScreenKind
		alert  bool
		logout bool
	}{
		{name: "not registered", state: pairing.State{}, screen: ui.ScreenConnectForm},
		{name: "not registered with stale code", state: pairing.State{SessionCode: "OLD", AnimationDone: true}, screen: ui.ScreenConnectForm},
		{name: "just connected", state: pairing.State{Registered: true, SessionCode: "ABC123"}, screen: ui.ScreenSuccessAnimation, logout: true},
		{name: "connected", state: pairing.State{Registered: true, SessionCode: "ABC123", AnimationDone: true}, screen: ui.ScreenAlertControl, alert: true, logout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.screen, ui.Screen(tt.state))
			assert.Equal(t, tt.alert, ui.AlertVisible(tt.state))
			assert.Equal(t, tt.logout, ui.LogoutVisible(tt.state))
		})
	}
}

// syncBuffer is a bytes.Buffer safe for the console's writer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsole_PromptTakesNextLine(t *testing.T) {
	in, feed := io.Pipe()
	out := &syncBuffer{}
	c := ui.NewConsole(in, out)
	c.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Prompt(context.Background(), "Alert", "Wake up") }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Wake up") }, time.Second, 5*time.Millisecond)
	_, err := io.WriteString(feed, "\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("prompt not dismissed")
	}
	assert.Contains(t, out.String(), "*** Alert ***")

	_, err = io.WriteString(feed, "alert\n")
	require.NoError(t, err)
	assert.Equal(t, "alert", <-c.Commands())

	feed.Close()
	_, open := <-c.Commands()
	assert.False(t, open)
}

func TestConsole_Confirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"Disconnect", true},
		{"disconnect", true},
		{"y", true},
		{"", false},
		{"Cancel", false},
		{"no", false},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			out := &syncBuffer{}
			c := ui.NewConsole(strings.NewReader(tt.answer+"\n"), out)

			result := make(chan bool, 1)
			go func() {
				ok, err := c.Confirm(context.Background(), pairing.DisconnectConfirmation)
				assert.NoError(t, err)
				result <- ok
			}()

			require.Eventually(t, func() bool { return strings.Contains(out.String(), "Confirm Disconnect") }, time.Second, 5*time.Millisecond)
			c.Start(context.Background())

			select {
			case ok := <-result:
				assert.Equal(t, tt.want, ok)
			case <-time.After(time.Second):
				t.Fatal("no answer")
			}
			assert.Contains(t, out.String(), "Are you sure you want to disconnect?")
		})
	}
}

func TestConsole_AskAfterEOF(t *testing.T) {
	c := ui.NewConsole(strings.NewReader(""), io.Discard)
	c.Start(context.Background())

	for range c.Commands() {
	}

	err := c.Prompt(context.Background(), "t", "b")
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsole_AskCancelled(t *testing.T) {
	in, _ := io.Pipe()
	c := ui.NewConsole(in, io.Discard)
	c.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Confirm(ctx, pairing.DisconnectConfirmation)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) add(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) CheckDevice(context.Context, string) (*backend.CheckDeviceResponse, error) {
	f.add("check-device")
	return &backend.CheckDeviceResponse{}, nil
}

func (f *fakeBackend) Register(_ context.Context, code, _ string) (json.RawMessage, error) {
	f.add("register " + code)
	return nil, nil
}

func (f *fakeBackend) RemoveDevice(context.Context, string) (json.RawMessage, error) {
	f.add("remove-device")
	return nil, nil
}

func (f *fakeBackend) TriggerAlert(_ context.Context, code, _ string) error {
	f.add("trigger-alert " + code)
	return nil
}

func newView(t *testing.T, in io.Reader) (*ui.View, *pairing.Manager, *fakeBackend, *ui.Console, *syncBuffer) {
	t.Helper()
	b := &fakeBackend{}
	m := pairing.NewManager(pairing.ManagerConfig{Backend: b, Alerts: b, Token: "tok-1", Logger: zerolog.Nop()})
	out := &syncBuffer{}
	c := ui.NewConsole(in, out)
	v := ui.NewView(ui.ViewConfig{
		Manager:           m,
		Console:           c,
		AnimationDuration: 10 * time.Millisecond,
		Logger:            zerolog.Nop(),
	})
	return v, m, b, c, out
}

func TestView_AlertRejectedWhenNotRegistered(t *testing.T) {
	v, _, b, _, out := newView(t, strings.NewReader(""))

	quit := v.Execute(context.Background(), "alert")

	assert.False(t, quit)
	assert.Contains(t, out.String(), "alert control not available")
	assert.Empty(t, b.Calls())
}

func TestView_AlertRejectedDuringAnimation(t *testing.T) {
	v, m, b, _, out := newView(t, strings.NewReader(""))
	require.NoError(t, m.Connect(context.Background(), "ABC123"))

	v.Execute(context.Background(), "alert")

	assert.Contains(t, out.String(), "alert control not available")
	assert.Equal(t, []string{"register ABC123"}, b.Calls())
}

func TestView_ConnectAndAlert(t *testing.T) {
	v, m, b, _, _ := newView(t, strings.NewReader(""))

	v.Execute(context.Background(), "connect ABC123")
	assert.Equal(t, ui.ScreenSuccessAnimation, ui.Screen(m.Snapshot()))

	m.MarkAnimationDone()
	v.Execute(context.Background(), "alert")

	assert.Equal(t, []string{"register ABC123", "trigger-alert ABC123"}, b.Calls())
}

func TestView_CommandsUnavailable(t *testing.T) {
	v, m, _, _, out := newView(t, strings.NewReader(""))

	v.Execute(context.Background(), "logout")
	assert.Contains(t, out.String(), "logout not available")

	v.Execute(context.Background(), "dance")
	assert.Contains(t, out.String(), "unknown command: dance")

	require.NoError(t, m.Connect(context.Background(), "ABC123"))
	v.Execute(context.Background(), "connect OTHER")
	assert.Contains(t, out.String(), "already connected")

	assert.True(t, v.Execute(context.Background(), "quit"))
	assert.False(t, v.Execute(context.Background(), "   "))
}

func TestView_Run(t *testing.T) {
	in, feed := io.Pipe()
	v, m, b, console, out := newView(t, in)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()

	console.Start(ctx)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Enter a session code") }, time.Second, 5*time.Millisecond)

	write := func(s string) {
		t.Helper()
		_, err := io.WriteString(feed, s)
		require.NoError(t, err)
	}

	write("connect ABC123\n")

	require.Eventually(t, func() bool { return m.Snapshot().AnimationDone }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "alert   send an alert") }, time.Second, 5*time.Millisecond)

	write("logout\n")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Confirm Disconnect") }, time.Second, 5*time.Millisecond)
	write("Disconnect\n")

	require.Eventually(t, func() bool { return !m.Snapshot().Registered }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"register ABC123", "remove-device"}, b.Calls())

	write("quit\n")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("view did not quit")
	}
}

func TestView_LogoutDuringAnimation(t *testing.T) {
	in, feed := io.Pipe()
	b := &fakeBackend{}
	m := pairing.NewManager(pairing.ManagerConfig{Backend: b, Alerts: b, Token: "tok-1", Logger: zerolog.Nop()})
	out := &syncBuffer{}
	console := ui.NewConsole(in, out)
	v := ui.NewView(ui.ViewConfig{
		Manager:           m,
		Console:           console,
		AnimationDuration: 300 * time.Millisecond,
		Logger:            zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	console.Start(ctx)

	write := func(s string) {
		t.Helper()
		_, err := io.WriteString(feed, s)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Enter a session code") }, time.Second, 5*time.Millisecond)
	write("connect ABC123\n")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Connected to session ABC123") }, time.Second, 5*time.Millisecond)

	write("logout\n")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Confirm Disconnect") }, time.Second, 5*time.Millisecond)
	write("Disconnect\n")
	require.Eventually(t, func() bool { return !m.Snapshot().Registered }, time.Second, 5*time.Millisecond)

	// Outlive the animation that was running when the device disconnected.
	time.Sleep(400 * time.Millisecond)
	assert.False(t, m.Snapshot().AnimationDone)

	write("connect XYZ789\n")
	require.Eventually(t, func() bool { return m.Snapshot().Registered }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ui.ScreenSuccessAnimation, ui.Screen(m.Snapshot()))

	write("quit\n")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("view did not quit")
	}
}
