package ride

import (
	"errors"
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
)

// Ride is the domain entity corresponding to the `rides` table. It is owned
// by the lifecycle state machine below and mutated only through its
// transition methods.
type Ride struct {
	// Identity & audit
	ID         string
	RideNumber string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Actors
	PassengerID string
	DriverID    *string // nil until assigned, cleared again on reassignment

	// Core state
	Status          Status
	Seats           int
	SurgeMultiplier float64

	// Locations
	Pickup  geo.Location
	Dropoff geo.Location

	// Fare
	FareQuote *float64
	FinalFare *float64

	// Lifecycle timestamps
	RequestedAt time.Time
	AssignedAt  *time.Time
	EnrouteAt   *time.Time
	OnboardAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancellationReason *string
}

// Cancellation reasons the engine itself produces.
const (
	ReasonNoDriversAvailable  = "no_drivers_available"
	ReasonDispatchInterrupted = "dispatch_interrupted"
)

var (
	ErrConflictingState   = errors.New("conflicting ride state")
	ErrPassengerRequired  = errors.New("passenger id is required")
	ErrRideNumberRequired = errors.New("ride number is required")
	ErrSeatsOutOfRange    = errors.New("seats must be between 1 and 8")
	ErrNoDriverAssigned   = errors.New("no driver assigned")
	ErrDriverRequired     = errors.New("driver id is required")
	ErrBadSurge           = errors.New("surge multiplier must be at least 1.0")
)

// NewRide creates a new ride in REQUESTED state.
func NewRide(rideNumber, passengerID string, pickup, dropoff geo.Location, seats int, surge float64) (*Ride, error) {
	if rideNumber = strings.TrimSpace(rideNumber); rideNumber == "" {
		return nil, ErrRideNumberRequired
	}
	if passengerID = strings.TrimSpace(passengerID); passengerID == "" {
		return nil, ErrPassengerRequired
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	if err := dropoff.Validate(); err != nil {
		return nil, err
	}
	if seats < 1 || seats > 8 {
		return nil, ErrSeatsOutOfRange
	}
	if surge < 1.0 {
		return nil, ErrBadSurge
	}

	now := time.Now().UTC()
	return &Ride{
		RideNumber:      rideNumber,
		CreatedAt:       now,
		UpdatedAt:       now,
		PassengerID:     passengerID,
		Status:          StatusRequested,
		Seats:           seats,
		SurgeMultiplier: surge,
		Pickup:          pickup,
		Dropoff:         dropoff,
		RequestedAt:     now,
	}, nil
}

// AssignDriver sets the driver and moves REQUESTED -> DRIVER_ASSIGNED.
func (ride *Ride) AssignDriver(driverID string) error {
	if strings.TrimSpace(driverID) == "" {
		return ErrDriverRequired
	}
	if ride.Status != StatusRequested || ride.DriverID != nil {
		return ErrConflictingState
	}

	now := time.Now().UTC()
	ride.DriverID = &driverID
	ride.AssignedAt = &now
	ride.setStatus(StatusDriverAssigned)
	return nil
}

// MarkEnroutePickup transitions DRIVER_ASSIGNED -> ENROUTE_PICKUP.
func (ride *Ride) MarkEnroutePickup() error {
	if ride.DriverID == nil {
		return ErrNoDriverAssigned
	}
	if ride.Status != StatusDriverAssigned {
		return ErrConflictingState
	}
	now := time.Now().UTC()
	ride.EnrouteAt = &now
	ride.setStatus(StatusEnroutePickup)
	return nil
}

// MarkPassengerOnboard transitions ENROUTE_PICKUP -> PASSENGER_ONBOARD.
func (ride *Ride) MarkPassengerOnboard() error {
	if ride.DriverID == nil {
		return ErrNoDriverAssigned
	}
	if ride.Status != StatusEnroutePickup {
		return ErrConflictingState
	}
	now := time.Now().UTC()
	ride.OnboardAt = &now
	ride.setStatus(StatusPassengerOnboard)
	return nil
}

// Complete transitions PASSENGER_ONBOARD -> COMPLETED and records the fare.
func (ride *Ride) Complete(finalFare float64) error {
	if ride.Status != StatusPassengerOnboard {
		return ErrConflictingState
	}
	now := time.Now().UTC()
	ride.CompletedAt = &now
	ride.FinalFare = &finalFare
	ride.setStatus(StatusCompleted)
	return nil
}

// CancelByPassenger transitions to CANCELLED_PASSENGER. Passengers may not
// cancel once they are onboard.
func (ride *Ride) CancelByPassenger(reason string) error {
	switch ride.Status {
	case StatusRequested, StatusDriverAssigned, StatusEnroutePickup:
		ride.cancel(StatusCancelledPassenger, reason)
		return nil
	default:
		return ErrConflictingState
	}
}

// CancelByDriver handles a driver abandoning an assigned ride. Before the
// passenger is onboard the ride is requeued: the driver is unassigned and the
// ride returns to REQUESTED so the coordinator can re-dispatch it. Once the
// passenger is onboard the cancellation is terminal. The returned flag
// reports whether the ride was requeued.
func (ride *Ride) CancelByDriver(reason string) (requeued bool, err error) {
	if ride.DriverID == nil {
		return false, ErrConflictingState
	}
	switch ride.Status {
	case StatusDriverAssigned, StatusEnroutePickup:
		ride.DriverID = nil
		ride.AssignedAt = nil
		ride.EnrouteAt = nil
		ride.setStatus(StatusRequested)
		return true, nil
	case StatusPassengerOnboard:
		ride.cancel(StatusCancelledDriver, reason)
		return false, nil
	default:
		return false, ErrConflictingState
	}
}

// CancelBySystem transitions any non-terminal state to CANCELLED_SYSTEM.
func (ride *Ride) CancelBySystem(reason string) error {
	if ride.Status.Terminal() {
		return ErrConflictingState
	}
	ride.cancel(StatusCancelledSystem, reason)
	return nil
}

// ----- internal helpers -----

func (ride *Ride) cancel(status Status, reason string) {
	now := time.Now().UTC()
	ride.CancelledAt = &now
	if rs := strings.TrimSpace(reason); rs != "" {
		ride.CancellationReason = &rs
	}
	ride.setStatus(status)
}

func (ride *Ride) setStatus(status Status) {
	ride.Status = status
	ride.touch()
}

func (ride *Ride) touch() {
	ride.UpdatedAt = time.Now().UTC()
}
