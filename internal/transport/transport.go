// Package transport is the remote-fetch collaborator: a rate-limited HTTP
// client with typed status errors. Authentication handshakes are opaque to
// callers; they see only the data-returning contract.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/folioapp/folio-ingest/internal/errors"
	"github.com/folioapp/folio-ingest/internal/ratelimit"
)

// Typed fetch errors. All carry the transport code so the coordinator can
// classify them as recoverable per-record failures.
var (
	ErrNotFound    = errors.ErrNotFound
	ErrRateLimited = errors.Transport("rate limited by remote")
	ErrServer      = errors.Transport("remote server error")
)

// Config holds the client's fetch policy.
type Config struct {
	// Timeout bounds each fetch, connection setup included.
	Timeout time.Duration
	// RPS and Burst feed the per-host token bucket.
	RPS   float64
	Burst int
	// UserAgent is sent on every request.
	UserAgent string
}

// Client fetches remote resources with per-host rate limiting. Requests are
// never retried; a timeout surfaces as a transport error for the caller to
// treat as a recoverable per-record failure.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	cfg     Config
	logger  *slog.Logger
}

// New creates a transport client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "folio-ingest/1.0"
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		cfg:     cfg,
		logger:  logger,
	}
}

// Close releases the limiter.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Fetch retrieves the resource at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Validationf("invalid fetch URL %q: %v", rawURL, err)
	}

	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "rate limiter wait interrupted")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "building request")
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, application/xml, text/csv, */*")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeTransport, "fetching %s", rawURL)
	}
	defer resp.Body.Close()

	c.logger.Debug("fetched remote resource",
		"url", rawURL, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound.WithDetails(rawURL)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited.WithDetails(rawURL)
	case resp.StatusCode >= 500:
		return nil, ErrServer.WithDetails(rawURL)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Transportf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeTransport, "reading response from %s", rawURL)
	}
	return body, nil
}

// FetchJSON retrieves and decodes a JSON resource into dest.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, dest any) error {
	body, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(err, errors.CodeTransport, "decoding JSON from %s", rawURL)
	}
	return nil
}
