package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loykin/pnrwatch/internal/metrics"
	"github.com/loykin/pnrwatch/internal/pnr"
)

// Default request settings.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 5
	DefaultRetryDelay = 1 * time.Second
)

// Config holds the fixed request shape for the status API.
type Config struct {
	// URLTemplate must contain "{pnr}", replaced by the path-escaped reference.
	URLTemplate string
	Headers     map[string]string
	Body        map[string]any
	Timeout     time.Duration
	// MaxRetries is the total number of attempts per reference.
	MaxRetries int
	RetryDelay time.Duration

	Logger     *slog.Logger
	HTTPClient *http.Client
	// Timer overrides the delay timer between attempts (tests).
	Timer backoff.Timer
}

// Client fetches PNR status payloads with bounded retry.
type Client struct {
	cfg    Config
	body   []byte
	client *http.Client
	logger *slog.Logger
}

// New creates a Client, applying defaults for zero values.
func New(cfg Config) (*Client, error) {
	if !strings.Contains(cfg.URLTemplate, "{pnr}") {
		return nil, fmt.Errorf("url template %q has no {pnr} placeholder", cfg.URLTemplate)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	body := []byte("{}")
	if cfg.Body != nil {
		b, err := json.Marshal(cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = b
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, body: body, client: hc, logger: cfg.Logger}, nil
}

// Fetch returns the payload for ref, retrying retryable failures up to
// MaxRetries attempts in total with a constant delay in between. No delay
// follows the final attempt. A failure is always a *FetchError.
func (c *Client) Fetch(ctx context.Context, ref string) (*pnr.Response, error) {
	var (
		result   *pnr.Response
		attempts int
	)
	op := func() error {
		attempts++
		resp, err := c.once(ctx, ref)
		if err != nil {
			kind := kindOf(err)
			metrics.IncFetchAttempt(string(kind))
			c.logger.Debug("fetch attempt failed", "pnr", ref, "attempt", attempts, "max", c.cfg.MaxRetries, "kind", kind, "error", err)
			if !kind.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		metrics.IncFetchAttempt("ok")
		result = resp
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.MaxRetries-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		c.logger.Warn("fetch attempt failed, retrying", "pnr", ref, "attempt", attempts, "max", c.cfg.MaxRetries, "retry_in", next, "error", err)
	}
	if err := backoff.RetryNotifyWithTimer(op, b, notify, c.cfg.Timer); err != nil {
		return nil, &FetchError{Reference: ref, Kind: kindOf(err), Attempts: attempts, Err: err}
	}
	return result, nil
}

func (c *Client) once(ctx context.Context, ref string) (*pnr.Response, error) {
	u := strings.ReplaceAll(c.cfg.URLTemplate, "{pnr}", url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(c.body))
	if err != nil {
		return nil, classify(KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(transportKind(ctx, err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classify(KindHTTPStatus, fmt.Errorf("status %d from %s", resp.StatusCode, u))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(transportKind(ctx, err), err)
	}
	var out pnr.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, classify(KindBadJSON, err)
	}
	if msg, ok := out.AppError(); ok {
		return nil, classify(KindApplication, errors.New(msg))
	}
	return &out, nil
}

// transportKind separates timeouts from other connection failures. A
// cancelled parent context is not retryable.
func transportKind(ctx context.Context, err error) Kind {
	if ctx.Err() != nil {
		return KindUnexpected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindConnection
}
