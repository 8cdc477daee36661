package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"homehelper/internal/config"
	"homehelper/internal/failure"
	"homehelper/internal/logging"
	"homehelper/internal/metrics"
	"homehelper/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// TokenFunc supplies the bearer token for each call. An empty token sends no
// Authorization header.
type TokenFunc func() string

// Client calls the Home Helper REST backend. Every call carries its own
// timeout; there are no retries.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	token      TokenFunc
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) { c.logger = logging.Component(logger, "api_client") }
}

// New constructs a client from the api config section.
func New(cfg config.APIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout(),
		httpClient: &http.Client{},
		logger:     logging.Component(nil, "api_client"),
	}
	if c.timeout <= 0 {
		c.timeout = models.DefaultRequestTimeoutSeconds * time.Second
	}
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseRedisCache configures optional Redis caching for the leaderboard and
// review endpoints. Booking lists are never cached.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *Client) doGet(ctx context.Context, endpoint, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, path, nil)
}

func (c *Client) doPost(ctx context.Context, endpoint, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = struct{}{}
	}
	return c.do(ctx, http.MethodPost, endpoint, path, body)
}

// do performs one request under the client timeout and returns the envelope
// data. endpoint is the metrics label.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()
	data, err := c.send(ctx, method, path, body, requestID)
	took := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = string(failure.KindOf(err))
	}
	metrics.ObserveAPI(endpoint, outcome, took)

	event := c.logger.Debug()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Dur("took", took).
		Msg("api call")

	return data, err
}

func (c *Client) send(ctx context.Context, method, path string, body any, requestID string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, failure.Timeout(err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.addHeaders(req, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, failure.Backend(resp.StatusCode, env.Message)
	}
	if decodeErr != nil {
		c.logger.Warn().Err(decodeErr).Str("path", path).Msg("malformed response envelope")
		return nil, failure.Backend(resp.StatusCode, "")
	}
	if env.Success != nil && !*env.Success {
		return nil, failure.Backend(resp.StatusCode, env.Message)
	}
	return env.Data, nil
}

func (c *Client) addHeaders(req *http.Request, requestID string) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderRequestID, requestID)
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// classify maps transport errors onto the failure taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return failure.Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure.Timeout(err)
	}
	return failure.Network(err)
}
