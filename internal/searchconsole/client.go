// Package searchconsole is a thin REST client for the Search Console,
// URL Inspection and Indexing APIs. Every network call is gated by a
// gsc.RateLimiter and reported once to a gsc.UsageRecorder.
package searchconsole

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// Default endpoints.
const (
	DefaultWebmastersBaseURL    = "https://www.googleapis.com/webmasters/v3"
	DefaultSearchConsoleBaseURL = "https://searchconsole.googleapis.com/v1"
	DefaultIndexingBaseURL      = "https://indexing.googleapis.com/v3"
)

const defaultMaxBodyBytes = 32 << 20

// Config controls endpoints and timeouts.
type Config struct {
	WebmastersBaseURL    string
	SearchConsoleBaseURL string
	IndexingBaseURL      string
	// ReadTimeout bounds ordinary calls, QueryTimeout the analytics query.
	ReadTimeout  time.Duration
	QueryTimeout time.Duration
	MaxBodyBytes int64
	HTTPClient   *http.Client
}

func (c Config) withDefaults() Config {
	if c.WebmastersBaseURL == "" {
		c.WebmastersBaseURL = DefaultWebmastersBaseURL
	}
	if c.SearchConsoleBaseURL == "" {
		c.SearchConsoleBaseURL = DefaultSearchConsoleBaseURL
	}
	if c.IndexingBaseURL == "" {
		c.IndexingBaseURL = DefaultIndexingBaseURL
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 60 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	c.WebmastersBaseURL = strings.TrimRight(c.WebmastersBaseURL, "/")
	c.SearchConsoleBaseURL = strings.TrimRight(c.SearchConsoleBaseURL, "/")
	c.IndexingBaseURL = strings.TrimRight(c.IndexingBaseURL, "/")
	return c
}

// Client implements the remote operations.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  gsc.TokenProvider
	limiter gsc.RateLimiter
	usage   gsc.UsageRecorder
	logger  *zap.Logger
}

// New creates a Client.
func New(
	cfg Config,
	tokens gsc.TokenProvider,
	limiter gsc.RateLimiter,
	usage gsc.UsageRecorder,
	logger *zap.Logger,
) *Client {
	cfg = cfg.withDefaults()
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		tokens:  tokens,
		limiter: limiter,
		usage:   usage,
		logger:  logger,
	}
}

type call struct {
	service   string
	operation string
	method    string
	url       string
	body      any
	timeout   time.Duration
	out       any
}

// do runs one gated call: token, then limiter, then the network.
func (c *Client) do(ctx context.Context, cl call) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", cl.operation, err)
	}
	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", cl.operation, err)
		}
	}
	req, err := http.NewRequest(cl.method, cl.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %s: build request: %v", gsc.ErrInvalidRequest, cl.operation, err)
	}

	token, err := c.tokens.Token(ctx, cl.service)
	if err != nil {
		if !errors.Is(err, gsc.ErrNoValidToken) {
			err = fmt.Errorf("%w: %v", gsc.ErrNoValidToken, err)
		}
		return fmt.Errorf("%s: %w", cl.operation, err)
	}
	if !c.limiter.TryAcquire(cl.service) {
		return fmt.Errorf("%s: %w", cl.operation, gsc.ErrRateLimitExceeded)
	}

	// The caller's cancellation is not propagated into the request; only the
	// per-call timeout bounds it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cl.timeout)
	defer cancel()
	req = req.WithContext(callCtx)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.finish(ctx, cl, false, 0, start)
		return &gsc.TransportError{Operation: cl.operation, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		c.finish(ctx, cl, false, resp.StatusCode, start)
		return &gsc.TransportError{Operation: cl.operation, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.finish(ctx, cl, false, resp.StatusCode, start)
		return &gsc.RemoteAPIError{
			Operation: cl.operation,
			Code:      resp.StatusCode,
			Message:   remoteMessage(body, resp.Status),
		}
	}
	if cl.out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, cl.out); err != nil {
			c.finish(ctx, cl, false, resp.StatusCode, start)
			return &gsc.TransportError{Operation: cl.operation, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	c.finish(ctx, cl, true, resp.StatusCode, start)
	return nil
}

func (c *Client) finish(ctx context.Context, cl call, success bool, code int, start time.Time) {
	elapsed := time.Since(start)
	if c.usage != nil {
		c.usage.Record(ctx, cl.service, cl.operation, success, code)
	}
	metrics.ObserveAPICall(cl.service, cl.operation, success, elapsed)
	c.logger.Debug("remote call finished",
		zap.String("service", cl.service),
		zap.String("operation", cl.operation),
		zap.Bool("success", success),
		zap.Int("code", code),
		zap.Duration("elapsed", elapsed),
	)
}

// remoteMessage extracts error.message from a Google error body.
func remoteMessage(body []byte, status string) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return status
}

// encodeSite renders a site identifier as a single fully escaped path segment.
func encodeSite(site string) string {
	return strings.ReplaceAll(url.QueryEscape(site), "+", "%20")
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", gsc.ErrInvalidRequest, field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s %q is not an absolute http(s) url", gsc.ErrInvalidRequest, field, raw)
	}
	return nil
}

func requireSite(siteURL string) error {
	if strings.TrimSpace(siteURL) == "" {
		return fmt.Errorf("%w: site url is required", gsc.ErrInvalidRequest)
	}
	return nil
}
