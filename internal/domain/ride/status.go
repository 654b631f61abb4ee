package ride

import (
	"errors"
	"strings"
)

// Status is a ride lifecycle status as stored in the `rides` table.
type Status string

const (
	StatusRequested          Status = "REQUESTED"
	StatusDriverAssigned     Status = "DRIVER_ASSIGNED"
	StatusEnroutePickup      Status = "ENROUTE_PICKUP"
	StatusPassengerOnboard   Status = "PASSENGER_ONBOARD"
	StatusCompleted          Status = "COMPLETED"
	StatusCancelledPassenger Status = "CANCELLED_PASSENGER"
	StatusCancelledDriver    Status = "CANCELLED_DRIVER"
	StatusCancelledSystem    Status = "CANCELLED_SYSTEM"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusRequested, StatusDriverAssigned, StatusEnroutePickup, StatusPassengerOnboard,
		StatusCompleted, StatusCancelledPassenger, StatusCancelledDriver, StatusCancelledSystem:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// Progress states are strictly monotonic; cancellation branches follow the
// actor-specific rules enforced by the Ride entity.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusRequested:
		return next == StatusDriverAssigned || next.Cancelled()

	case StatusDriverAssigned:
		return next == StatusEnroutePickup || next.Cancelled()

	case StatusEnroutePickup:
		return next == StatusPassengerOnboard || next.Cancelled()

	case StatusPassengerOnboard:
		// a passenger may not cancel mid-trip
		return next == StatusCompleted || next == StatusCancelledDriver || next == StatusCancelledSystem

	case StatusCompleted, StatusCancelledPassenger, StatusCancelledDriver, StatusCancelledSystem:
		return false

	default:
		return false
	}
}

// Cancelled reports whether the status is one of the cancellation branches.
func (status Status) Cancelled() bool {
	switch status {
	case StatusCancelledPassenger, StatusCancelledDriver, StatusCancelledSystem:
		return true
	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status.Cancelled()
}
