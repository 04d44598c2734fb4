// Package restclient provides a base HTTP client for upstream data services with:
// - Request marshaling/unmarshaling
// - Retries with exponential backoff on transient failures (429, 5xx)
// - Standardized error parsing
// - Circuit breaking
// - Observability hooks
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nftdata/internal/core"
	"nftdata/internal/httpclient"
)

// Hooks receives request lifecycle events for metrics collection.
// Implementations must be safe for concurrent use. A nil Hooks is valid.
type Hooks interface {
	// OnRequest fires once per logical request with the final status and
	// total duration, including retries.
	OnRequest(service, endpoint string, statusCode int, duration time.Duration)

	// OnRetry fires for each failed attempt before the next one is made
	// or the final error is surfaced.
	OnRetry(service, endpoint string, attempt int, err error)
}

// Config holds configuration for the REST client
type Config struct {
	// ServiceName identifies the upstream for error messages and metrics
	ServiceName string

	// BaseURL is the API base URL
	BaseURL string

	// Retry configuration
	MaxRetries     int           // Maximum number of retry attempts (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 500ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 10s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// Circuit breaker configuration
	CircuitBreaker *CircuitBreakerConfig

	// Hooks for observability (optional)
	Hooks Hooks
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures before opening the circuit
	FailureThreshold int
	// SuccessThreshold is the number of successes needed to close an open circuit
	SuccessThreshold int
	// Timeout is how long to wait before attempting to close an open circuit
	Timeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig(serviceName, baseURL string) Config {
	return Config{
		ServiceName:    serviceName,
		BaseURL:        baseURL,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for upstream data services
type Client struct {
	httpClient     *http.Client
	config         Config
	headerSetter   HeaderSetter
	circuitBreaker *circuitBreaker
}

// New creates a new REST client with the given configuration
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new REST client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}

	if config.CircuitBreaker != nil {
		c.circuitBreaker = newCircuitBreaker(
			config.CircuitBreaker.FailureThreshold,
			config.CircuitBreaker.SuccessThreshold,
			config.CircuitBreaker.Timeout,
		)
	}

	return c
}

// SetBaseURL updates the base URL
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = url
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method   string
	Endpoint string
	Query    map[string]string // URL query parameters
	Body     interface{}       // Will be JSON marshaled if not nil
	Headers  map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes a request with retries and circuit breaking, then unmarshals the response
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewInvalidRequestError("malformed response from "+c.config.ServiceName+": "+err.Error(), err)
		}
	}

	return nil
}

// DoRaw executes a request with retries and circuit breaking, returning the raw response.
// Transient failures (HTTP 429, any 5xx, and network errors) are retried with
// exponential backoff; any other non-2xx response is fatal and surfaces immediately.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		return nil, core.NewUpstreamError(c.config.ServiceName, http.StatusServiceUnavailable,
			"circuit breaker is open - upstream temporarily unavailable", nil)
	}

	start := time.Now()
	var lastErr error
	lastStatus := 0
	maxAttempts := c.config.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.calculateBackoff(attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			// Network-level failure: retryable
			lastErr = err
			lastStatus = 0
			c.reportAttempt(req.Endpoint, attempt, err)
			if c.circuitBreaker != nil {
				c.circuitBreaker.RecordFailure()
			}
			continue
		}

		if c.isRetryable(resp.StatusCode) {
			lastErr = core.ParseUpstreamError(c.config.ServiceName, resp.StatusCode, resp.Body, nil)
			lastStatus = resp.StatusCode
			c.reportAttempt(req.Endpoint, attempt, lastErr)
			if c.circuitBreaker != nil {
				c.circuitBreaker.RecordFailure()
			}
			continue
		}

		// Fatal error: surface immediately, no retry
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if c.circuitBreaker != nil && resp.StatusCode >= 500 {
				c.circuitBreaker.RecordFailure()
			}
			c.observe(req.Endpoint, resp.StatusCode, start)
			return nil, core.ParseUpstreamError(c.config.ServiceName, resp.StatusCode, resp.Body, nil)
		}

		// Success
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordSuccess()
		}
		c.observe(req.Endpoint, resp.StatusCode, start)
		return resp, nil
	}

	// All retries exhausted: surface the last error annotated with the
	// number of attempts made.
	c.observe(req.Endpoint, lastStatus, start)
	if svcErr, ok := lastErr.(*core.ServiceError); ok {
		svcErr.Attempts = maxAttempts
		return nil, svcErr
	}
	err := core.NewUpstreamError(c.config.ServiceName, http.StatusBadGateway, "request failed after retries", lastErr)
	err.Attempts = maxAttempts
	return nil, err
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ServiceName, http.StatusBadGateway, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewUpstreamError(c.config.ServiceName, http.StatusBadGateway, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	endpoint := c.config.BaseURL + req.Endpoint
	if len(req.Query) > 0 {
		values := url.Values{}
		for key, value := range req.Query {
			values.Set(key, value)
		}
		endpoint += "?" + values.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Apply service-specific headers (API keys etc.)
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

// reportAttempt logs a failed attempt and notifies hooks
func (c *Client) reportAttempt(endpoint string, attempt int, err error) {
	slog.Warn("upstream request attempt failed",
		"service", c.config.ServiceName,
		"endpoint", endpoint,
		"attempt", attempt,
		"error", err,
	)
	if c.config.Hooks != nil {
		c.config.Hooks.OnRetry(c.config.ServiceName, endpoint, attempt, err)
	}
}

// observe notifies hooks of a completed logical request
func (c *Client) observe(endpoint string, statusCode int, start time.Time) {
	if c.config.Hooks != nil {
		c.config.Hooks.OnRequest(c.config.ServiceName, endpoint, statusCode, time.Since(start))
	}
}

// calculateBackoff calculates the backoff duration for a given attempt
func (c *Client) calculateBackoff(attempt int) time.Duration {
	initial := c.config.InitialBackoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	factor := c.config.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	maxBackoff := c.config.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}

	backoff := float64(initial) * math.Pow(factor, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable returns true if the status code indicates a transient error:
// rate limits and any server error
func (c *Client) isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// circuitBreaker implements a simple circuit breaker pattern
type circuitBreaker struct {
	mu               sync.RWMutex
	state            circuitState
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	lastFailure      time.Time
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func newCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		state:            circuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
	}
}

// Allow checks if a request should be allowed through the circuit breaker
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return true
	case circuitOpen:
		// Check if timeout has passed
		if time.Since(cb.lastFailure) > cb.timeout {
			cb.state = circuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	}
	return true
}

// RecordSuccess records a successful request
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = circuitClosed
			cb.failures = 0
		}
	case circuitClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed request
func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case circuitClosed:
		if cb.failures >= cb.failureThreshold {
			cb.state = circuitOpen
		}
	case circuitHalfOpen:
		cb.state = circuitOpen
		cb.successes = 0
	}
}

// State returns the current circuit state (for testing/monitoring)
func (cb *circuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.state {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}
