package pnrwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/pnrwatch/internal/config"
	"github.com/loykin/pnrwatch/internal/fetcher"
	"github.com/loykin/pnrwatch/internal/history"
	"github.com/loykin/pnrwatch/internal/history/factory"
	"github.com/loykin/pnrwatch/internal/metrics"
	"github.com/loykin/pnrwatch/internal/notify"
	"github.com/loykin/pnrwatch/internal/pnr"
	"github.com/loykin/pnrwatch/internal/store"
	"github.com/loykin/pnrwatch/internal/tracker"
)

// Re-export core types for external consumers.

type Config = cfg.Config

type Record = pnr.Record

type Passenger = pnr.Passenger

type Summary = tracker.Summary

type HistorySink = history.Sink

type Notifier = notify.Notifier

func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// LoadStatus reads a status file without modifying it.
func LoadStatus(path string, logger *slog.Logger) (map[string]Record, error) {
	return store.NewFile(path, logger).Load()
}

// Options carries the run-time collaborators that are not part of Config.
type Options struct {
	// Out receives the progress lines and the summary.
	Out    io.Writer
	Logger *slog.Logger
	// Notifier replaces the webhook notifier built from Config.
	Notifier Notifier
	// Sinks are used in addition to the sink configured by history.dsn.
	Sinks []HistorySink
}

// Tracker runs one check of every configured reference.
type Tracker struct {
	inner    *tracker.Tracker
	registry *prometheus.Registry
	textfile string
	closers  []io.Closer
	logger   *slog.Logger
}

// NewTracker builds the fetcher, notifier, store and optional history sink
// described by c. A history sink that cannot be opened is logged and skipped.
func NewTracker(c *Config, opts Options) (*Tracker, error) {
	if c == nil {
		return nil, errors.New("nil config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	body, err := c.API.BodyMap()
	if err != nil {
		return nil, err
	}
	f, err := fetcher.New(fetcher.Config{
		URLTemplate: c.API.URLTemplate,
		Headers:     c.API.Headers,
		Body:        body,
		Timeout:     c.API.Timeout,
		MaxRetries:  c.API.MaxRetries,
		RetryDelay:  c.API.RetryDelay,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	n := opts.Notifier
	if n == nil {
		n = notify.NewWebhook(c.Notify.WebhookURL, c.Notify.Timeout, logger)
	}

	t := &Tracker{textfile: c.Metrics.Textfile, logger: logger}
	sinks := append([]history.Sink(nil), opts.Sinks...)
	if c.History.DSN != "" {
		s, err := factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			logger.Warn("history sink disabled", "error", err)
		} else {
			sinks = append(sinks, s)
			if cl, ok := s.(io.Closer); ok {
				t.closers = append(t.closers, cl)
			}
		}
	}

	if t.textfile != "" {
		t.registry = prometheus.NewRegistry()
		if err := metrics.Register(t.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	inner, err := tracker.New(tracker.Config{
		References: c.References,
		Fetcher:    f,
		Store:      store.NewFile(c.StatusFile, logger),
		Notifier:   n,
		Sinks:      sinks,
		Out:        opts.Out,
		Logger:     logger,
	})
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	t.inner = inner
	return t, nil
}

// Run performs one pass over the tracking list. Only status file errors
// are returned; per-reference failures are reported in the Summary.
func (t *Tracker) Run(ctx context.Context) (Summary, error) {
	sum, err := t.inner.Run(ctx)
	if t.registry != nil {
		if werr := metrics.WriteTextfile(t.textfile, t.registry); werr != nil {
			t.logger.Warn("write metrics textfile", "path", t.textfile, "error", werr)
		}
	}
	return sum, err
}

// Close releases history sinks.
func (t *Tracker) Close() error {
	var errs []error
	for _, c := range t.closers {
		errs = append(errs, c.Close())
	}
	t.closers = nil
	return errors.Join(errs...)
}
