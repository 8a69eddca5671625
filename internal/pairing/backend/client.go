// Package backend is the HTTP client for the pairing backend: one method per
// endpoint, JSON in and out, no validation beyond decoding.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/konect/konect/internal/resilience"
	"github.com/konect/konect/internal/telemetry"
)

const (
	// ClientName identifies the backend client in the resilience registry.
	ClientName = "konect-backend"

	// DefaultBaseURL is the production pairing backend.
	DefaultBaseURL = "https://konect-backend.onrender.com"

	tracerName = "github.com/konect/konect/internal/pairing/backend"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (optional, defaults to production).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, a single-attempt client with no timeout is used.
	HTTPClient HTTPDoer

	// Registry records request outcomes for the default client (optional).
	Registry *resilience.Registry

	// Instruments records request metrics (optional).
	Instruments *telemetry.Instruments

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the pairing backend.
type Client struct {
	baseURL     string
	httpClient  HTTPDoer
	instruments *telemetry.Instruments
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ClientName)
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		instruments: cfg.Instruments,
		tracer:      otel.Tracer(tracerName),
		logger:      cfg.Logger,
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckDevice asks whether the device is paired and with which sessions.
func (c *Client) CheckDevice(ctx context.Context, deviceToken string) (*CheckDeviceResponse, error) {
	body, err := c.post(ctx, EndpointCheckDevice, CheckDeviceRequest{DeviceToken: deviceToken})
	if err != nil {
		return nil, err
	}

	var resp CheckDeviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{
			Endpoint: EndpointCheckDevice,
			Body:     string(body),
			Err:      fmt.Errorf("%w: %v", ErrBadResponse, err),
		}
	}
	return &resp, nil
}

// Register joins the device to the session identified by sessionCode.
// The response body is returned as-is.
func (c *Client) Register(ctx context.Context, sessionCode, deviceToken string) (json.RawMessage, error) {
	return c.post(ctx, EndpointRegister, RegisterRequest{
		SessionCode: sessionCode,
		DeviceToken: deviceToken,
	})
}

// RemoveDevice removes the device from its session.
func (c *Client) RemoveDevice(ctx context.Context, deviceToken string) (json.RawMessage, error) {
	return c.post(ctx, EndpointRemoveDevice, RemoveDeviceRequest{DeviceToken: deviceToken})
}

// TriggerAlert asks the backend to alert every other device in the session.
func (c *Client) TriggerAlert(ctx context.Context, sessionCode, senderToken string) (json.RawMessage, error) {
	return c.post(ctx, EndpointTriggerAlert, TriggerAlertRequest{
		SessionCode: sessionCode,
		SenderToken: senderToken,
	})
}

// post sends a JSON body and returns the raw response body of a 2xx reply.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "backend "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("konect.endpoint", endpoint)),
	)
	defer span.End()

	start := time.Now()
	status, body, err := c.send(ctx, endpoint, payload)
	c.instruments.RecordBackendRequest(endpoint, status, time.Since(start), err)

	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, endpoint string, payload any) (int, json.RawMessage, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	c.logger.Debug().
		Str("endpoint", endpoint).
		RawJSON("body", reqBody).
		Msg("calling backend")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &Error{
			Endpoint: endpoint,
			Err:      fmt.Errorf("%w: %v", ErrUnreachable, err),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &Error{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: reading body: %v", ErrBadResponse, err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, statusError(endpoint, resp.StatusCode, respBody)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Msg("backend responded")

	return resp.StatusCode, respBody, nil
}
