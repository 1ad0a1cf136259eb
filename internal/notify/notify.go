package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/pnrwatch/internal/pnr"
)

// ErrDisabled is returned by Webhook.Notify when no webhook URL is configured.
var ErrDisabled = errors.New("notifications disabled: no webhook configured")

// placeholder stands in for a previous status that was never observed.
const placeholder = "N/A"

// Change describes a detected status transition for one PNR.
type Change struct {
	Reference string
	Previous  *pnr.Record
	Current   pnr.Record
}

// Notifier delivers change alerts. Delivery is best effort; callers log
// errors and carry on.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// Message renders the chat text for a change.
func Message(c Change) string {
	prev := placeholder
	if c.Previous != nil {
		if p, ok := c.Previous.Lead(); ok {
			prev = p.CurrentStatus
		}
	}
	lead, _ := c.Current.Lead()

	var b strings.Builder
	b.WriteString("🚂 *PNR Status Change Alert*\n\n")
	fmt.Fprintf(&b, "*PNR:* %s\n", c.Reference)
	fmt.Fprintf(&b, "*Train:* %s\n", c.Current.Train)
	fmt.Fprintf(&b, "*Journey Date:* %s\n", c.Current.DOJ)
	fmt.Fprintf(&b, "*Route:* %s\n\n", c.Current.Route)
	b.WriteString("*Status Changed:*\n")
	fmt.Fprintf(&b, "  Previous: %s\n", prev)
	fmt.Fprintf(&b, "  Current: %s\n\n", lead.CurrentStatus)
	fmt.Fprintf(&b, "*Prediction:* %s (%s%%)\n", lead.Prediction, lead.PredictionPercentage.String())
	fmt.Fprintf(&b, "*Updated:* %s", c.Current.Timestamp)
	return b.String()
}

// Webhook posts {"text": ...} to a chat incoming webhook (Google Chat format).
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook returns a Webhook notifier. An empty url yields a notifier
// that only logs and returns ErrDisabled.
func NewWebhook(url string, timeout time.Duration, logger *slog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{url: strings.TrimSpace(url), client: &http.Client{Timeout: timeout}, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

func (w *Webhook) Notify(ctx context.Context, c Change) error {
	if !w.Enabled() {
		w.logger.Info("no chat webhook configured, skipping notification", "pnr", c.Reference)
		return ErrDisabled
	}
	body, err := json.Marshal(map[string]string{"text": Message(c)})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	w.logger.Debug("notification sent", "pnr", c.Reference)
	return nil
}
