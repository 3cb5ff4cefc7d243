// Package tracker fetches tasks, users and sprints from the task tracker's
// REST API.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/logger"
	"github.com/okian/kpiboard/pkg/metrics"
)

// Default client settings.
const (
	defaultTimeout = 5 * time.Second
	defaultRPS     = 20
	defaultBurst   = 5
	maxErrorBody   = 512
)

// Resource paths on the tracker.
const (
	pathTasks   = "/task"
	pathUsers   = "/user"
	pathSprints = "/sprint"
)

// Client is a rate-limited tracker API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the tracker at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(defaultRPS, defaultBurst),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchTasks returns every task. Null sprint references become the backlog.
func (c *Client) FetchTasks(ctx context.Context) ([]model.Task, error) {
	var dtos []taskDTO
	if err := c.get(ctx, pathTasks, &dtos); err != nil {
		return nil, err
	}
	out := make([]model.Task, len(dtos))
	for i, d := range dtos {
		out[i] = d.model()
	}
	return out, nil
}

// FetchUsers returns every user.
func (c *Client) FetchUsers(ctx context.Context) ([]model.User, error) {
	var dtos []userDTO
	if err := c.get(ctx, pathUsers, &dtos); err != nil {
		return nil, err
	}
	out := make([]model.User, len(dtos))
	for i, d := range dtos {
		out[i] = d.model()
	}
	return out, nil
}

// FetchSprints returns every sprint.
func (c *Client) FetchSprints(ctx context.Context) ([]model.Sprint, error) {
	var dtos []sprintDTO
	if err := c.get(ctx, pathSprints, &dtos); err != nil {
		return nil, err
	}
	out := make([]model.Sprint, len(dtos))
	for i, d := range dtos {
		out[i] = d.model()
	}
	return out, nil
}

// HealthCheck reports whether the tracker answers the sprint listing.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.get(ctx, pathSprints, nil)
}

// get fetches path and decodes the JSON body into dst. A nil dst discards
// the body.
func (c *Client) get(ctx context.Context, path string, dst any) error {
	if !c.limiter.Allow() {
		metrics.RecordTrackerThrottled()
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tracker %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if id, ok := logger.RequestID(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn(ctx, "tracker request failed",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: GET %s: status %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrDecode, path, err)
	}
	return nil
}
