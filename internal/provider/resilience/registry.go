package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BackendHealth is a point-in-time view of a backend.
type BackendHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy returns true when the circuit is closed.
func (h *BackendHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true when the circuit is half-open.
func (h *BackendHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true when the circuit is open.
func (h *BackendHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// breakerView is the part of a Client the registry reads.
type breakerView interface {
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

// Registry tracks backends and their last outcomes for status reporting.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*registeredBackend
}

type registeredBackend struct {
	breaker       breakerView
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]*registeredBackend)}
}

// Register adds a backend client, replacing any previous one of that name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = &registeredBackend{breaker: client}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
}

// RecordSuccess stamps a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[name]; ok {
		now := time.Now()
		b.lastSuccessAt = &now
	}
}

// RecordFailure stamps a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[name]; ok {
		now := time.Now()
		b.lastFailureAt = &now
		if err != nil {
			b.lastError = err.Error()
		}
	}
}

// Health returns the health of one backend, or nil if unknown.
func (r *Registry) Health(name string) *BackendHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil
	}
	return b.health(name)
}

// AllHealth returns the health of every backend, ordered by name.
func (r *Registry) AllHealth() []*BackendHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*BackendHealth, 0, len(r.backends))
	for name, b := range r.backends {
		out = append(out, b.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

func (b *registeredBackend) health(name string) *BackendHealth {
	return &BackendHealth{
		Name:          name,
		CircuitState:  b.breaker.CircuitBreakerState(),
		Counts:        b.breaker.CircuitBreakerCounts(),
		LastSuccessAt: b.lastSuccessAt,
		LastFailureAt: b.lastFailureAt,
		LastError:     b.lastError,
	}
}
