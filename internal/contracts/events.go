package contracts

import "time"

// RideStatusEvent is published on ExchangeRideTopic with routing key
// "ride.status.{status}" whenever a ride changes lifecycle state.
type RideStatusEvent struct {
	Type               string   `json:"type"` // one of the EventRide* constants
	RideID             string   `json:"ride_id"`
	RideNumber         string   `json:"ride_number,omitempty"`
	Status             string   `json:"status"`
	DriverID           string   `json:"driver_id,omitempty"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	FinalFare          *float64 `json:"final_fare,omitempty"`
	Envelope
}

// OfferEvent is published on ExchangeOfferTopic with routing key
// "offer.{outcome}" for every offer attempt and resolution.
type OfferEvent struct {
	Type         string     `json:"type"` // EventOfferCreated or EventOfferResolved
	AssignmentID string     `json:"assignment_id"`
	RideID       string     `json:"ride_id"`
	DriverID     string     `json:"driver_id"`
	Status       string     `json:"status"` // PENDING|ACCEPTED|DECLINED|EXPIRED|REASSIGNED
	MatchScore   float64    `json:"match_score,omitempty"`
	ReasonCode   string     `json:"reason_code,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Envelope
}

// HeartbeatMessage is the Kafka record carrying one driver heartbeat. The
// ingest worker replays these into the availability store.
type HeartbeatMessage struct {
	DriverID  string    `json:"driver_id"`
	Status    string    `json:"status"` // AVAILABLE|UNAVAILABLE
	Capacity  int       `json:"capacity"`
	Location  GeoPoint  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}
