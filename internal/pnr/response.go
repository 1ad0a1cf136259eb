package pnr

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoPNRResponse is returned by Extract when the payload has no data.pnrResponse object.
// Such a reply counts as a failed check and the stored entry is left untouched,
// rather than being replaced by an empty record.
var ErrNoPNRResponse = errors.New("response has no pnrResponse")

// Response is the subset of the status API payload that is consumed.
type Response struct {
	Data *struct {
		PNRResponse *PNRResponse `json:"pnrResponse"`
	} `json:"data"`
}

// PNRResponse carries train, route and passenger fields, or Error for an invalid PNR.
type PNRResponse struct {
	TrainNo         Scalar              `json:"trainNo"`
	TrainName       string              `json:"trainName"`
	DOJ             string              `json:"doj"`
	SourceName      string              `json:"sourceName"`
	DestinationName string              `json:"destinationName"`
	DepartureTime   string              `json:"departureTime"`
	PassengerStatus []PassengerResponse `json:"passengerStatus"`
	Error           Scalar              `json:"error"`
}

type PassengerResponse struct {
	Number               Scalar `json:"number"`
	BookingStatus        string `json:"bookingStatus"`
	CurrentStatus        string `json:"currentStatus"`
	Prediction           string `json:"prediction"`
	PredictionPercentage Scalar `json:"predictionPercentage"`
}

// PNR returns the embedded pnrResponse, or nil.
func (r *Response) PNR() *PNRResponse {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.PNRResponse
}

// AppError returns the application-level error text embedded in a 200 payload, if any.
func (r *Response) AppError() (string, bool) {
	p := r.PNR()
	if p == nil || !p.Error.IsSet() {
		return "", false
	}
	return p.Error.String(), true
}

// Extract builds a Record from a fetched payload, stamped with now.
func Extract(resp *Response, now time.Time) (Record, error) {
	p := resp.PNR()
	if p == nil {
		return Record{}, ErrNoPNRResponse
	}
	rec := Record{
		Timestamp:       now.Format(time.RFC3339),
		Train:           fmt.Sprintf("%s %s", p.TrainNo.String(), p.TrainName),
		DOJ:             p.DOJ,
		Route:           fmt.Sprintf("%s → %s", p.SourceName, p.DestinationName),
		Departure:       p.DepartureTime,
		PassengerStatus: make([]Passenger, 0, len(p.PassengerStatus)),
	}
	for _, ps := range p.PassengerStatus {
		rec.PassengerStatus = append(rec.PassengerStatus, Passenger{
			Number:               ps.Number,
			BookingStatus:        ps.BookingStatus,
			CurrentStatus:        ps.CurrentStatus,
			Prediction:           ps.Prediction,
			PredictionPercentage: ps.PredictionPercentage,
		})
	}
	return rec, nil
}
