package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	errBodyNotReplayable = errors.New("request body cannot be replayed")
)

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	// Name identifies this client in the registry and the breaker.
	Name string

	// Timeout is the timeout for each individual HTTP attempt.
	// Default: 0 (no timeout)
	Timeout time.Duration

	// MaxRetries is the number of attempts made after the first one.
	// Default: 0 (no retries)
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker configures the breaker. Nil disables it.
	CircuitBreaker *CircuitBreakerConfig

	// Registry records the client's request outcomes (optional).
	Registry *Registry

	// Transport is the underlying round tripper (optional).
	Transport http.RoundTripper
}

// DefaultClientConfig returns a configuration that sends every request once,
// with no timeout, no retries and no breaker.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// ResilientClientConfig returns a configuration with a 10s timeout, three
// retries and a circuit breaker.
func ResilientClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	cfg := DefaultClientConfig(name)
	cfg.Timeout = 10 * time.Second
	cfg.MaxRetries = 3
	cfg.CircuitBreaker = &cb
	return cfg
}

// Client is an HTTP client with optional circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	registry       *Registry
	config         ClientConfig
}

// NewClient creates a client and registers it with cfg.Registry when set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		registry: cfg.Registry,
		config:   cfg,
	}
	if cfg.CircuitBreaker != nil {
		c.circuitBreaker = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type parameter
	}

	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes an HTTP request.
//
// With retries configured, network errors and 5xx responses are retried with
// exponential backoff and the body is replayed through req.GetBody. A 5xx that
// survives every attempt is returned as a response, not an error.
// Returns ErrCircuitOpen when the breaker rejects the request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.do(req.Context(), req)
	c.record(resp, err)
	return resp, err
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.config.MaxRetries == 0 {
		resp, err := c.attempt(ctx, req, true)
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return resp, nil
		}
		return resp, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var lastResp *http.Response
	first := true

	operation := func() error {
		if lastResp != nil {
			lastResp.Body.Close()
			lastResp = nil
		}

		resp, err := c.attempt(ctx, req, first)
		first = false
		if err != nil {
			var serverErr *ServerError
			if errors.As(err, &serverErr) {
				lastResp = resp
				return err
			}
			if errors.Is(err, ErrCircuitOpen) || errors.Is(err, errBodyNotReplayable) {
				return backoff.Permanent(err)
			}
			return err
		}

		lastResp = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if lastResp != nil {
			return lastResp, nil
		}
		return nil, err
	}

	return lastResp, nil
}

// attempt sends the request once, through the breaker when one is
// configured. A 5xx comes back as *ServerError alongside the response so the
// breaker and the retry loop both see it as a failure.
func (c *Client) attempt(ctx context.Context, req *http.Request, first bool) (*http.Response, error) {
	send := func() (*http.Response, error) {
		attemptReq := req.Clone(ctx)
		if !first && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				return nil, errBodyNotReplayable
			}
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("replaying request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := c.httpClient.Do(attemptReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, &ServerError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}

	if c.circuitBreaker == nil {
		return send()
	}

	resp, err := c.circuitBreaker.Execute(send)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return resp, err
}

func (c *Client) record(resp *http.Response, err error) {
	if c.registry == nil {
		return
	}
	switch {
	case err != nil:
		c.registry.RecordFailure(c.config.Name, err)
	case resp.StatusCode >= 500:
		c.registry.RecordFailure(c.config.Name, &ServerError{StatusCode: resp.StatusCode})
	default:
		c.registry.RecordSuccess(c.config.Name)
	}
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
// Clients without a breaker always report closed.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	if c.circuitBreaker == nil {
		return gobreaker.Counts{}
	}
	return c.circuitBreaker.Counts()
}
