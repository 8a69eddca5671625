package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health is the observed state of one registered client.
type Health struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports whether requests are flowing normally.
func (h *Health) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports a half-open breaker.
func (h *Health) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open breaker.
func (h *Health) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks registered clients and the outcome of their requests.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*registeredClient
}

type registeredClient struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*registeredClient),
	}
}

// Register adds a client under name, replacing any previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = &registeredClient{client: client}
}

// Unregister removes a client.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, name)
}

// RecordSuccess records a successful request.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		now := time.Now()
		c.lastSuccessAt = &now
	}
}

// RecordFailure records a failed request.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		now := time.Now()
		c.lastFailureAt = &now
		if err != nil {
			c.lastError = err.Error()
		}
	}
}

// Health returns the health of one client, or nil if it is not registered.
func (r *Registry) Health(name string) *Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[name]
	if !ok {
		return nil
	}
	return c.health(name)
}

// All returns the health of every registered client, sorted by name.
func (r *Registry) All() []*Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Health, 0, len(r.clients))
	for name, c := range r.clients {
		all = append(all, c.health(name))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (c *registeredClient) health(name string) *Health {
	return &Health{
		Name:          name,
		CircuitState:  c.client.CircuitBreakerState(),
		Counts:        c.client.CircuitBreakerCounts(),
		LastSuccessAt: c.lastSuccessAt,
		LastFailureAt: c.lastFailureAt,
		LastError:     c.lastError,
	}
}
