package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/loykin/pnrwatch/internal/history"
	"github.com/loykin/pnrwatch/internal/metrics"
	"github.com/loykin/pnrwatch/internal/notify"
	"github.com/loykin/pnrwatch/internal/pnr"
	"github.com/loykin/pnrwatch/internal/store"
)

// Fetcher retrieves the raw status payload for one reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (*pnr.Response, error)
}

// Store loads and saves the whole status snapshot.
type Store interface {
	Load() (store.Snapshot, error)
	Save(store.Snapshot) error
}

// Config wires the collaborators of a run. Fetcher and Store are required.
type Config struct {
	References []string
	Fetcher    Fetcher
	Store      Store
	// Notifier is called for each status change; nil disables notifications.
	Notifier notify.Notifier
	// Sinks receive one event per successful check.
	Sinks []history.Sink
	// Out receives the operator-facing progress lines; nil discards them.
	Out    io.Writer
	Logger *slog.Logger
	Now    func() time.Time
}

// Summary counts the outcomes of one run.
type Summary struct {
	Successful int
	Failed     int
	Changed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d successful, %d failed", s.Successful, s.Failed)
}

// Tracker checks every reference once per Run.
type Tracker struct {
	cfg    Config
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config) (*Tracker, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("tracker: fetcher is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("tracker: store is required")
	}
	t := &Tracker{cfg: cfg, out: cfg.Out, logger: cfg.Logger, now: cfg.Now}
	if t.out == nil {
		t.out = io.Discard
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// Run loads the snapshot, checks each reference in order and saves the
// snapshot once at the end. Per-reference failures are counted and leave the
// previous entry untouched; only store errors are returned.
func (t *Tracker) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	snap, err := t.cfg.Store.Load()
	if err != nil {
		return sum, fmt.Errorf("load status file: %w", err)
	}

	t.printf("Checking %d PNR(s)...\n\n", len(t.cfg.References))
	for _, ref := range t.cfg.References {
		changed, err := t.check(ctx, snap, ref)
		metrics.IncCheck(err == nil)
		if err != nil {
			sum.Failed++
			t.logger.Error("pnr check failed", "pnr", ref, "error", err)
			continue
		}
		sum.Successful++
		if changed {
			sum.Changed++
		}
	}

	t.printf("Summary: %s\n", sum)
	metrics.SetLastRun(t.now(), sum.Failed)

	if err := t.cfg.Store.Save(snap); err != nil {
		return sum, fmt.Errorf("save status file: %w", err)
	}
	if p, ok := t.cfg.Store.(interface{ Path() string }); ok {
		t.printf("Status saved to %s\n", p.Path())
	}
	return sum, nil
}

func (t *Tracker) check(ctx context.Context, snap store.Snapshot, ref string) (bool, error) {
	t.printf("Checking PNR: %s\n", ref)

	resp, err := t.cfg.Fetcher.Fetch(ctx, ref)
	if err != nil {
		t.printf("  Failed to fetch status for PNR %s: %v\n\n", ref, err)
		return false, err
	}
	rec, err := pnr.Extract(resp, t.now())
	if err != nil {
		t.printf("  Error processing status for PNR %s: %v\n\n", ref, err)
		return false, err
	}
	if len(rec.PassengerStatus) == 0 {
		t.printf("  Warning: No passenger status information available\n")
	}

	prev := snap.Get(ref)
	changed := pnr.Changed(prev, rec)
	snap.Put(ref, rec)

	t.printf("  Status updated at %s\n", rec.Timestamp)
	if lead, ok := rec.Lead(); ok {
		t.printf("  Current Status: %s\n", lead.CurrentStatus)
		t.printf("  Prediction: %s (%s%%)\n", lead.Prediction, lead.PredictionPercentage.String())
	}

	if changed {
		metrics.IncStatusChange(ref)
		t.printf("  🔔 Status has changed!\n")
		t.notify(ctx, notify.Change{Reference: ref, Previous: prev, Current: rec})
	} else {
		t.printf("  No change in status\n")
	}
	t.record(ctx, history.NewEvent(ref, prev, rec, changed, t.now()))
	t.printf("\n")
	return changed, nil
}

// notify never fails the check: delivery problems are reported and counted.
func (t *Tracker) notify(ctx context.Context, c notify.Change) {
	if t.cfg.Notifier == nil {
		metrics.IncNotification("disabled")
		return
	}
	err := t.cfg.Notifier.Notify(ctx, c)
	switch {
	case err == nil:
		metrics.IncNotification("sent")
		t.printf("  ✓ Notification sent\n")
	case errors.Is(err, notify.ErrDisabled):
		metrics.IncNotification("disabled")
		t.printf("  No chat webhook configured, skipping notification\n")
	default:
		metrics.IncNotification("failed")
		t.logger.Warn("notification failed", "pnr", c.Reference, "error", err)
		t.printf("  ✗ Failed to send notification: %v\n", err)
	}
}

func (t *Tracker) record(ctx context.Context, e history.Event) {
	for _, s := range t.cfg.Sinks {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, e); err != nil {
			t.logger.Warn("history sink failed", "pnr", e.Reference, "error", err)
		}
	}
}

func (t *Tracker) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}
