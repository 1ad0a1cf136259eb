package history

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/loykin/pnrwatch/internal/pnr"
)

func record(status string) pnr.Record {
	return pnr.Record{
		Train: "12951 RAJDHANI",
		PassengerStatus: []pnr.Passenger{{
			CurrentStatus:        status,
			Prediction:           "Confirm",
			PredictionPercentage: pnr.Scalar("88"),
		}},
	}
}

func TestNewEvent_Types(t *testing.T) {
	prev := record("WL 5")
	testCases := []struct {
		name     string
		prev     *pnr.Record
		changed  bool
		wantType EventType
		wantPrev string
	}{
		{"first observation", nil, false, EventObserved, ""},
		{"unchanged", &prev, false, EventObserved, "WL 5"},
		{"changed", &prev, true, EventStatusChanged, "WL 5"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvent("8439632790", tc.prev, record("RAC 1"), tc.changed, time.Now())
			if e.Type != tc.wantType {
				t.Errorf("Expected event type %s, got %s", tc.wantType, e.Type)
			}
			if e.PreviousStatus != tc.wantPrev {
				t.Errorf("Expected previous status %q, got %q", tc.wantPrev, e.PreviousStatus)
			}
			if e.CurrentStatus() != "RAC 1" {
				t.Errorf("Expected current status RAC 1, got %s", e.CurrentStatus())
			}
		})
	}
}

func TestNewEvent_UTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	e := NewEvent("1", nil, record("CNF"), false, time.Date(2025, 1, 1, 5, 30, 0, 0, loc))
	if e.OccurredAt.Location() != time.UTC || e.OccurredAt.Hour() != 0 {
		t.Errorf("Expected UTC midnight, got %v", e.OccurredAt)
	}
}

func TestEvent_JSON(t *testing.T) {
	e := NewEvent("8439632790", nil, record("CNF"), false, time.Now())
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["pnr"] != "8439632790" || m["type"] != "observed" {
		t.Errorf("unexpected event json: %s", b)
	}
	if _, ok := m["previous_status"]; ok {
		t.Errorf("previous_status should be omitted on first observation: %s", b)
	}
	pred, pct := e.Prediction()
	if pred != "Confirm" || pct != "88" {
		t.Errorf("unexpected prediction %s %s", pred, pct)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent("1", nil, record("CNF"), false, time.Now())
	b := NewEvent("1", nil, record("CNF"), false, time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}
