package driver

import (
	"errors"
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
)

// AvailabilityStatus is the driver's self-reported availability.
type AvailabilityStatus string

const (
	StatusAvailable   AvailabilityStatus = "AVAILABLE"
	StatusUnavailable AvailabilityStatus = "UNAVAILABLE"
)

var ErrInvalidAvailabilityStatus = errors.New("invalid availability status")

// ParseAvailabilityStatus normalizes and validates an availability status string.
func ParseAvailabilityStatus(in string) (AvailabilityStatus, error) {
	status := AvailabilityStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidAvailabilityStatus
}

// Valid reports whether the status is one of the allowed constants.
func (status AvailabilityStatus) Valid() bool {
	return status == StatusAvailable || status == StatusUnavailable
}

// String returns the string representation of the AvailabilityStatus.
func (status AvailabilityStatus) String() string {
	return string(status)
}

// Availability is the latest heartbeat snapshot for one driver. Each driver
// owns exactly one record; every heartbeat overwrites it (last-write-wins).
// Records are never deleted, only treated as stale at read time.
type Availability struct {
	DriverID      string
	Status        AvailabilityStatus
	Capacity      int
	Location      geo.Location
	LastHeartbeat time.Time
}

var (
	ErrDriverRequired     = errors.New("driver id is required")
	ErrCapacityOutOfRange = errors.New("capacity must be between 1 and 8")
)

// NewAvailability validates a heartbeat and builds the availability record.
func NewAvailability(driverID string, status AvailabilityStatus, capacity int, loc geo.Location, at time.Time) (Availability, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return Availability{}, ErrDriverRequired
	}
	if !status.Valid() {
		return Availability{}, ErrInvalidAvailabilityStatus
	}
	if capacity < 1 || capacity > 8 {
		return Availability{}, ErrCapacityOutOfRange
	}
	if err := loc.Validate(); err != nil {
		return Availability{}, err
	}

	return Availability{
		DriverID:      driverID,
		Status:        status,
		Capacity:      capacity,
		Location:      loc,
		LastHeartbeat: at.UTC(),
	}, nil
}

// Fresh reports whether the heartbeat is within the staleness window.
func (av Availability) Fresh(now time.Time, staleness time.Duration) bool {
	return now.Sub(av.LastHeartbeat) <= staleness
}

// Eligible reports whether the driver may be considered for a ride needing
// the given number of seats. Stale drivers are silently excluded rather than
// raising an error.
func (av Availability) Eligible(now time.Time, staleness time.Duration, seats int) bool {
	return av.Status == StatusAvailable && av.Capacity >= seats && av.Fresh(now, staleness)
}
