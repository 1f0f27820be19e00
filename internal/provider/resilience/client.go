package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 4 << 20

// ClientConfig holds configuration for the resilient backend client.
type ClientConfig struct {
	// Name identifies the backend for circuit breaker naming and health tracking.
	Name string

	// Timeout is the per-attempt request timeout.
	// Default: 5 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 2 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry receives success and failure records when set.
	Registry *Registry

	// Header is added to every request (e.g. an API key).
	Header http.Header

	// Metrics records the outcome of every call when set.
	Metrics RequestRecorder
}

// RequestRecorder records backend call outcomes.
type RequestRecorder interface {
	RecordRequest(backend, operation string, duration time.Duration, err error)
}

// DefaultClientConfig returns defaults suited to a model-serving backend.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         5 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client calls a backend over HTTP behind a circuit breaker with
// exponential-backoff retries. Request bodies are held as bytes so every
// attempt sends the full payload.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	config     ClientConfig
}

// NewClient creates a new resilient backend client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    NewCircuitBreaker[[]byte](cbConfig),
		config:     cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.config.Name
}

// Invoke sends a request and returns the response body of a 2xx reply.
// 5xx replies and network errors are retried and count against the circuit
// breaker; other statuses fail immediately with a *StatusError.
func (c *Client) Invoke(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	start := time.Now()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries instead

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var result []byte
	operation := func() error {
		out, err := c.breaker.Execute(func() ([]byte, error) {
			return c.attempt(ctx, method, url, body, header)
		})
		if err == nil {
			result = out
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, policy)
	c.report(err)
	if c.config.Metrics != nil {
		c.config.Metrics.RecordRequest(c.config.Name, method, time.Since(start), err)
	}
	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) {
			return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, vs := range c.config.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 300:
		// Client errors are the caller's fault, not the backend's; the
		// breaker treats them as successes.
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return data, nil
}

func (c *Client) report(err error) {
	if c.config.Registry == nil {
		return
	}
	if err != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
		return
	}
	c.config.Registry.RecordSuccess(c.config.Name)
}

// PostJSON posts in as JSON and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	data, err := c.Invoke(ctx, http.MethodPost, url, body, header)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// ServerError represents an HTTP 5xx reply.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// StatusError represents a non-retryable, non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.breaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.breaker.Counts()
}
