package assignment

import (
	"errors"
	"strings"
)

// Status is an offer status as stored in the `assignments` table.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAccepted   Status = "ACCEPTED"
	StatusDeclined   Status = "DECLINED"
	StatusExpired    Status = "EXPIRED"
	StatusReassigned Status = "REASSIGNED"
)

var ErrInvalidStatus = errors.New("invalid assignment status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed assignment status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusAccepted, StatusDeclined, StatusExpired, StatusReassigned:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates if the status can no longer change. Every status except
// PENDING is immutable once reached.
func (status Status) Terminal() bool {
	return status != StatusPending
}
