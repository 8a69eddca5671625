package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konect/konect/internal/pairing/backend"
	"github.com/konect/konect/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return backend.NewClient(backend.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})
}

func TestClient_CheckDevice(t *testing.T) {
	var got backend.CheckDeviceRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, backend.EndpointCheckDevice, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"connected":true,"sessionCodes":["XYZ","OTHER"]}`))
	})

	resp, err := client.CheckDevice(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", got.DeviceToken)
	assert.True(t, resp.Connected)
	assert.Equal(t, "XYZ", resp.FirstSessionCode())
}

func TestClient_CheckDevice_EmptySessionCodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"connected":true}`))
	})

	resp, err := client.CheckDevice(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.True(t, resp.Connected)
	assert.Empty(t, resp.FirstSessionCode())
}

func TestClient_CheckDevice_BadResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.CheckDevice(context.Background(), "tok-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrBadResponse)

	var backendErr *backend.Error
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, "not json", backendErr.Body)
}

func TestClient_Register(t *testing.T) {
	var got backend.RegisterRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.EndpointRegister, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	body, err := client.Register(context.Background(), "ABC123", "tok-1")
	require.NoError(t, err)

	assert.Equal(t, backend.RegisterRequest{SessionCode: "ABC123", DeviceToken: "tok-1"}, got)
	assert.JSONEq(t, `{"success":true}`, string(body))
}

func TestClient_RemoveDevice(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.EndpointRemoveDevice, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.RemoveDevice(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"deviceToken": "tok-1"}, got)
}

func TestClient_TriggerAlert(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, backend.EndpointTriggerAlert, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"sent":1}`))
	})

	body, err := client.TriggerAlert(context.Background(), "ABC123", "tok-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"sessionCode": "ABC123", "senderToken": "tok-1"}, got)
	assert.JSONEq(t, `{"sent":1}`, string(body))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "not found", status: http.StatusNotFound, sentinel: backend.ErrRequestFailed},
		{name: "bad request", status: http.StatusBadRequest, sentinel: backend.ErrRequestFailed},
		{name: "internal error", status: http.StatusInternalServerError, sentinel: backend.ErrServerError},
		{name: "bad gateway", status: http.StatusBadGateway, sentinel: backend.ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			_, err := client.Register(context.Background(), "ABC123", "tok-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var backendErr *backend.Error
			require.ErrorAs(t, err, &backendErr)
			assert.Equal(t, backend.EndpointRegister, backendErr.Endpoint)
			assert.Equal(t, tt.status, backendErr.StatusCode)
			assert.JSONEq(t, `{"error":"nope"}`, backendErr.Body)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: url, Logger: zerolog.Nop()})

	_, err := client.CheckDevice(context.Background(), "tok-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnreachable)
}

func TestClient_DefaultsAndRegistry(t *testing.T) {
	registry := resilience.NewRegistry()

	client := backend.NewClient(backend.ClientConfig{Registry: registry, Logger: zerolog.Nop()})

	assert.Equal(t, backend.DefaultBaseURL, client.BaseURL())
	assert.NotNil(t, registry.Health(backend.ClientName))
}

func TestClient_TrimsTrailingSlash(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := backend.NewClient(backend.ClientConfig{BaseURL: server.URL + "/", Logger: zerolog.Nop()})

	_, err := client.RemoveDevice(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, backend.EndpointRemoveDevice, path)
}

func TestError_Message(t *testing.T) {
	err := &backend.Error{Endpoint: "/register", StatusCode: 404, Err: backend.ErrRequestFailed}
	assert.Equal(t, "/register: status 404: backend rejected request", err.Error())

	err = &backend.Error{Endpoint: "/register", Err: backend.ErrUnreachable}
	assert.Equal(t, "/register: backend unreachable", err.Error())
}
