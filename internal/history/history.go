package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/pnrwatch/internal/pnr"
)

// EventType defines the kind of status event.
type EventType string

const (
	EventObserved      EventType = "observed"
	EventStatusChanged EventType = "status_changed"
)

// Event is one captured status, exported to external systems. The status
// file only keeps the latest record per PNR; sinks keep the trail.
type Event struct {
	// ID is unique per event so sinks can deduplicate redelivery.
	ID             string     `json:"id"`
	Type           EventType  `json:"type"`
	OccurredAt     time.Time  `json:"occurred_at"`
	Reference      string     `json:"pnr"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	Record         pnr.Record `json:"record"`
}

// NewEvent builds an event for a capture of ref. The type is status_changed
// when changed is true, observed otherwise.
func NewEvent(ref string, prev *pnr.Record, cur pnr.Record, changed bool, at time.Time) Event {
	e := Event{ID: uuid.NewString(), Type: EventObserved, OccurredAt: at.UTC(), Reference: ref, Record: cur}
	if changed {
		e.Type = EventStatusChanged
	}
	if prev != nil {
		if p, ok := prev.Lead(); ok {
			e.PreviousStatus = p.CurrentStatus
		}
	}
	return e
}

// CurrentStatus returns the lead passenger's status of the captured record.
func (e Event) CurrentStatus() string {
	p, _ := e.Record.Lead()
	return p.CurrentStatus
}

// Prediction returns the lead passenger's prediction and its percentage.
func (e Event) Prediction() (string, string) {
	p, _ := e.Record.Lead()
	return p.Prediction, p.PredictionPercentage.String()
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
