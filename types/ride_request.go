package types

import (
	"encoding/json"
	"fmt"
)

// Requester identifies the actor who asked for the ride.
type Requester struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RideRequestEvent is an incoming ride request delivered on the actor's
// notification topic. It is immutable once received.
type RideRequestEvent struct {
	// RequestID identifies the request. When the payload omits it, the notification
	// queue derives one from the arrival position (see HasRequestID).
	RequestID string `json:"requestId,omitempty"`

	// Requester is the rider asking for the trip.
	Requester Requester `json:"requestingActor"`

	// Destination is the free-form drop-off address typed by the rider.
	Destination string `json:"destination"`

	// DistanceToPickup is the distance in kilometers from this actor to the rider.
	DistanceToPickup float64 `json:"distanceToPickup"`

	// EstimatedFare is optional; nil when the backend did not quote a fare.
	EstimatedFare *float64 `json:"estimatedFare,omitempty"`
}

// HasRequestID reports whether the payload carried its own identifier.
func (e RideRequestEvent) HasRequestID() bool {
	return e.RequestID != ""
}

// WithRequestID returns a copy carrying the given identifier.
func (e RideRequestEvent) WithRequestID(id string) RideRequestEvent {
	e.RequestID = id
	return e
}

// Fare returns the estimated fare and whether one was provided.
func (e RideRequestEvent) Fare() (float64, bool) {
	if e.EstimatedFare == nil {
		return 0, false
	}

	return *e.EstimatedFare, true
}

// UnmarshalJSON decodes a notification body. requestId may be a string or a number.
func (e *RideRequestEvent) UnmarshalJSON(data []byte) error {
	var w struct {
		RequestID        json.RawMessage `json:"requestId"`
		Requester        *Requester      `json:"requestingActor"`
		Destination      string          `json:"destination"`
		DistanceToPickup float64         `json:"distanceToPickup"`
		EstimatedFare    *float64        `json:"estimatedFare"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Requester == nil {
		return fmt.Errorf("ride request is missing requestingActor")
	}

	id, err := decodeID(w.RequestID)
	if err != nil {
		return fmt.Errorf("requestId: %w", err)
	}

	*e = RideRequestEvent{
		RequestID:        id,
		Requester:        *w.Requester,
		Destination:      w.Destination,
		DistanceToPickup: w.DistanceToPickup,
		EstimatedFare:    w.EstimatedFare,
	}

	return nil
}
