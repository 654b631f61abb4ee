package assignment

import (
	"errors"
	"strings"
	"time"
)

// Assignment is one time-bounded offer of a ride to one specific driver,
// corresponding to a row in the `assignments` table. A ride accumulates one
// record per offered driver; resolved records are the dispatch audit trail
// and the input to reliability scoring.
type Assignment struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations (id lookups, never embedded ownership)
	RideID   string
	DriverID string

	// Offer state
	Status     Status
	MatchScore float64
	ReasonCode string

	// Deadline & response
	ExpiresAt   time.Time
	RespondedAt *time.Time
}

// Reason codes recorded when an offer resolves without acceptance.
const (
	ReasonDriverDeclined = "driver_declined"
	ReasonOfferTimeout   = "offer_timeout"
	ReasonRideCancelled  = "ride_cancelled"
	ReasonDriverBailed   = "driver_cancelled_after_accept"
)

var (
	ErrAlreadyResolved = errors.New("assignment already resolved")
	ErrRideRequired    = errors.New("ride id is required")
	ErrDriverRequired  = errors.New("driver id is required")
	ErrBadDeadline     = errors.New("offer deadline must be in the future")
)

// NewAssignment creates a PENDING offer with the given deadline.
func NewAssignment(id, rideID, driverID string, score float64, expiresAt time.Time) (*Assignment, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideRequired
	}
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverRequired
	}
	now := time.Now().UTC()
	if !expiresAt.After(now) {
		return nil, ErrBadDeadline
	}

	return &Assignment{
		ID:         strings.TrimSpace(id),
		CreatedAt:  now,
		UpdatedAt:  now,
		RideID:     rideID,
		DriverID:   driverID,
		Status:     StatusPending,
		MatchScore: score,
		ExpiresAt:  expiresAt,
	}, nil
}

// Accept resolves a PENDING offer as ACCEPTED.
func (asg *Assignment) Accept() error {
	return asg.resolve(StatusAccepted, "")
}

// Decline resolves a PENDING offer as DECLINED.
func (asg *Assignment) Decline() error {
	return asg.resolve(StatusDeclined, ReasonDriverDeclined)
}

// Expire resolves a PENDING offer as EXPIRED after its deadline passed with
// no response.
func (asg *Assignment) Expire() error {
	return asg.resolve(StatusExpired, ReasonOfferTimeout)
}

// Reassign withdraws an offer because the ride was cancelled or re-entered
// matching. Unlike the other resolutions it also applies to ACCEPTED
// assignments (a driver abandoning an accepted ride).
func (asg *Assignment) Reassign(reason string) error {
	if asg.Status == StatusPending {
		return asg.resolve(StatusReassigned, reason)
	}
	if asg.Status != StatusAccepted {
		return ErrAlreadyResolved
	}
	now := time.Now().UTC()
	asg.Status = StatusReassigned
	asg.ReasonCode = reason
	asg.UpdatedAt = now
	return nil
}

// Expired reports whether the offer deadline has passed at the given instant.
func (asg *Assignment) Expired(now time.Time) bool {
	return now.After(asg.ExpiresAt)
}

func (asg *Assignment) resolve(status Status, reason string) error {
	if asg.Status != StatusPending {
		return ErrAlreadyResolved
	}
	now := time.Now().UTC()
	asg.Status = status
	asg.ReasonCode = reason
	asg.RespondedAt = &now
	asg.UpdatedAt = now
	return nil
}
