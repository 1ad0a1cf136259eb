package pnr

import (
	"bytes"
	"encoding/json"
)

// Record is the snapshot captured for one PNR on one run.
// Field names follow the persisted status file layout.
type Record struct {
	Timestamp       string      `json:"timestamp"`
	Train           string      `json:"train"`
	DOJ             string      `json:"doj"`
	Route           string      `json:"route"`
	Departure       string      `json:"departure"`
	PassengerStatus []Passenger `json:"passenger_status"`
}

// Passenger is the per-passenger part of a Record.
type Passenger struct {
	Number               Scalar `json:"number"`
	BookingStatus        string `json:"booking_status"`
	CurrentStatus        string `json:"current_status"`
	Prediction           string `json:"prediction"`
	PredictionPercentage Scalar `json:"prediction_percentage"`
}

// Lead returns the first passenger, which is the one status changes are tracked on.
func (r Record) Lead() (Passenger, bool) {
	if len(r.PassengerStatus) == 0 {
		return Passenger{}, false
	}
	return r.PassengerStatus[0], true
}

// Scalar keeps a JSON scalar exactly as the service sent it. The API is not
// consistent about numbers vs strings for the same field.
type Scalar json.RawMessage

func (s Scalar) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return s, nil
}

// UnmarshalJSON stores null as the empty scalar.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = nil
		return nil
	}
	*s = append((*s)[0:0], b...)
	return nil
}

// String renders the scalar for humans: strings unquoted, null as "".
func (s Scalar) String() string {
	if len(s) == 0 || bytes.Equal(s, []byte("null")) {
		return ""
	}
	var str string
	if err := json.Unmarshal(s, &str); err == nil {
		return str
	}
	return string(s)
}

// IsSet reports whether the value is present and not a falsy JSON value.
func (s Scalar) IsSet() bool {
	switch string(bytes.TrimSpace(s)) {
	case "", "null", `""`, "false", "0", "{}", "[]":
		return false
	}
	return true
}
