package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/geo"
)

// ----- DTOs for Dispatch Service -----

// RequestRideInput is the validated input required to open a ride request.
type RequestRideInput struct {
	PassengerID     string
	Pickup          geo.Location
	Dropoff         geo.Location
	Seats           int
	SurgeMultiplier float64
}

// RequestRideResult is returned by DispatchService.RequestRide().
type RequestRideResult struct {
	RideID              string  `json:"ride_id"`
	RideNumber          string  `json:"ride_number"`
	Status              string  `json:"status"`
	FareQuote           float64 `json:"fare_quote"`
	EstimatedDistanceKM float64 `json:"estimated_distance_km"`
}

// HeartbeatInput carries one driver location/availability report.
type HeartbeatInput struct {
	DriverID  string
	Location  geo.Location
	Available bool
	Capacity  int
}

// OfferResponseInput is a driver's answer to a pending offer.
type OfferResponseInput struct {
	AssignmentID string
	DriverID     string
	Accept       bool
}

// OfferResponseResult reports what the response resolved to.
type OfferResponseResult struct {
	AssignmentID string `json:"assignment_id"`
	RideID       string `json:"ride_id"`
	Status       string `json:"status"`
}

// ProgressInput is a driver-reported lifecycle advance for an active ride.
type ProgressInput struct {
	RideID    string
	DriverID  string
	Event     string // "enroute_pickup" | "passenger_onboard" | "completed"
	FinalFare float64
}

// ProgressResult echoes the ride state after the advance.
type ProgressResult struct {
	RideID    string  `json:"ride_id"`
	Status    string  `json:"status"`
	FinalFare float64 `json:"final_fare,omitempty"`
}

// CancelRideInput identifies who is cancelling and why.
type CancelRideInput struct {
	RideID  string
	ActorID string
	Role    string // "passenger" | "driver" | "admin"
	Reason  string
}

// CancelRideResult matches the API response for a cancellation.
type CancelRideResult struct {
	RideID     string `json:"ride_id"`
	Status     string `json:"status"`
	Requeued   bool   `json:"requeued"`
	RequeuedAt string `json:"requeued_at,omitempty"`
}

// OfferView is one historical or pending offer on a ride.
type OfferView struct {
	AssignmentID string     `json:"assignment_id"`
	DriverID     string     `json:"driver_id"`
	Status       string     `json:"status"`
	MatchScore   float64    `json:"match_score"`
	ReasonCode   string     `json:"reason_code,omitempty"`
	OfferedAt    time.Time  `json:"offered_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

// RideView is the external projection of a ride.
type RideView struct {
	RideID             string       `json:"ride_id"`
	RideNumber         string       `json:"ride_number"`
	PassengerID        string       `json:"passenger_id"`
	DriverID           string       `json:"driver_id,omitempty"`
	Status             string       `json:"status"`
	Pickup             geo.Location `json:"pickup"`
	Dropoff            geo.Location `json:"dropoff"`
	FareQuote          *float64     `json:"fare_quote,omitempty"`
	FinalFare          *float64     `json:"final_fare,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	RequestedAt        time.Time    `json:"requested_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
}

// ----- Dispatch Service Interface -----

// DispatchService exposes the boundary for the dispatch engine.
type DispatchService interface {
	RequestRide(ctx context.Context, in RequestRideInput) (RequestRideResult, error)
	GetRide(ctx context.Context, rideID string) (RideView, error)
	CancelRide(ctx context.Context, in CancelRideInput) (CancelRideResult, error)
	SendHeartbeat(ctx context.Context, in HeartbeatInput) error
	RespondToOffer(ctx context.Context, in OfferResponseInput) (OfferResponseResult, error)
	ReportProgress(ctx context.Context, in ProgressInput) (ProgressResult, error)
	ListOffers(ctx context.Context, rideID string) ([]OfferView, error)
	RunBackgroundWorkers(ctx context.Context)
}
