// Package jira is the client for the Jira REST API v2. Every call runs
// through a client-side rate limiter, a circuit breaker and a retry loop,
// and issue and project reads are served from a cache when one is set.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pitabwire/jiramcp/internal/cache"
	"github.com/pitabwire/jiramcp/internal/config"
	"github.com/pitabwire/jiramcp/internal/observability"
)

const (
	maxResponseBytes = 10 << 20
	maxRetryAfter    = time.Minute
	userAgent        = "jira-mcp-server/1.0.0"
)

// Client talks to one Jira site.
type Client struct {
	baseURL    string
	domain     string
	authHeader string
	maxResults int

	http    *http.Client
	limiter *rate.Limiter
	breaker *Breaker
	retry   config.RetryConfig

	cache    cache.Cache
	cacheTTL time.Duration

	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache caches issue and project reads for ttl. A zero ttl disables
// caching.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithClock sets the clock used for backoff and the circuit breaker.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables Prometheus request, retry and breaker metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client authenticated with the account email and API token.
func New(cfg config.JiraConfig, token string, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	c := &Client{
		baseURL:    cfg.APIURL(),
		domain:     cfg.Domain,
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Email+":"+token)),
		maxResults: maxResults,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxConnsPerHost:     10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
		retry:   cfg.Retry,
		cache:   cache.Nop{},
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = NewBreaker(cfg.CircuitBreaker, c.clock, func(s BreakerState) {
		c.metrics.SetJiraCircuitBreakerState(float64(s))
		c.logger.Warn("jira circuit breaker state changed", zap.String("state", s.String()))
	})
	return c
}

// BreakerState returns the circuit breaker's current state.
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// HealthCheck verifies the credentials by fetching the current user.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, request{op: "health", method: http.MethodGet, path: "/myself", idempotent: true}, nil)
}

// request describes one Jira call.
type request struct {
	op     string
	method string
	path   string
	body   any
	// idempotent marks requests that may be retried after Jira has seen
	// them. Other requests are only retried on 429 and refused connections.
	idempotent bool
}

// do executes req with rate limiting, circuit breaking and retries, and
// decodes a successful JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	ctx, span := observability.Tracer().Start(ctx, "jira.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(observability.AttrJiraOperation.String(req.op)),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	var payload []byte
	if req.body != nil {
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.op, err)
		}
	}

	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	logger := observability.RequestLogger(ctx, c.logger).With(zap.String("operation", req.op))

	var wait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.RecordJiraRetry()
			select {
			case <-ctx.Done():
				return transportError(c.domain, ctx.Err())
			case <-c.clock.After(wait):
			}
		}

		status, body, retryAfter, callErr := c.attempt(ctx, req, payload)
		last := attempt == attempts-1

		if callErr != nil {
			var apiErr *APIError
			if errors.As(callErr, &apiErr) && !last && c.retryableTransport(req, apiErr) && ctx.Err() == nil {
				wait = c.backoff(attempt+1, 0)
				logger.Debug("retrying jira request after error", zap.Int("attempt", attempt+1), zap.Error(callErr))
				continue
			}
			return callErr
		}

		if status >= 200 && status < 300 {
			if out == nil || len(body) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return &APIError{StatusCode: status, Message: "Jira API error: invalid response body", Cause: err}
			}
			return nil
		}

		if !last && retryableStatus(status) && (req.idempotent || status == http.StatusTooManyRequests) {
			wait = c.backoff(attempt+1, retryAfter)
			logger.Debug("retrying jira request after status",
				zap.Int("attempt", attempt+1),
				zap.Int("status", status),
				zap.Duration("wait", wait),
			)
			continue
		}
		return statusError(status, body)
	}
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, req request, payload []byte) (status int, body []byte, retryAfter time.Duration, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, 0, transportError(c.domain, err)
	}
	if err := c.breaker.Allow(); err != nil {
		return 0, nil, 0, &APIError{Message: "Jira API error: " + err.Error(), Cause: err}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, reader)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("build %s request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader)
	httpReq.Header.Set("User-Agent", userAgent)
	observability.InjectTraceHeaders(ctx, httpReq.Header)

	start := c.clock.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordJiraRequest(req.op, 0, c.clock.Since(start))
		return 0, nil, 0, transportError(c.domain, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordJiraRequest(req.op, resp.StatusCode, c.clock.Since(start))
	if err != nil {
		c.breaker.RecordFailure()
		return 0, nil, 0, transportError(c.domain, err)
	}

	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else if resp.StatusCode < 400 {
		c.breaker.RecordSuccess()
	}

	return resp.StatusCode, body, parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now()), nil
}

func (c *Client) retryableTransport(req request, err *APIError) bool {
	if err.Cause == nil || errors.Is(err.Cause, errBreakerOpen) {
		return false
	}
	if errors.Is(err.Cause, context.Canceled) || errors.Is(err.Cause, context.DeadlineExceeded) {
		return false
	}
	if req.idempotent {
		var netErr net.Error
		var opErr *net.OpError
		return errors.As(err.Cause, &netErr) || errors.As(err.Cause, &opErr)
	}
	// The request never reached Jira.
	return err.StatusCode == 0 && isConnRefused(err)
}

func isConnRefused(err *APIError) bool {
	var opErr *net.OpError
	return errors.As(err.Cause, &opErr) && opErr.Op == "dial"
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff returns the wait before the given retry attempt (1-based). A
// server-supplied Retry-After wins when it is longer.
func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	initial := c.retry.BackoffInitial
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	multiplier := c.retry.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	ceiling := c.retry.BackoffMax
	if ceiling <= 0 {
		ceiling = 5 * time.Second
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay > ceiling {
			delay = ceiling
			break
		}
	}
	if retryAfter > delay {
		delay = min(retryAfter, maxRetryAfter)
	}
	return delay
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
