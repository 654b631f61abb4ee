package ports

import "errors"

// Engine error taxonomy. ErrConflictingState deliberately aliases the domain
// sentinel so callers can match either spelling with errors.Is.
var (
	// ErrValidation marks malformed input rejected before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a ride/assignment/driver lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrNoEligibleDrivers is returned when matching produced an empty
	// ranked list. Not fatal; the coordinator retries with backoff.
	ErrNoEligibleDrivers = errors.New("no eligible drivers")

	// ErrExhaustedRetries is returned when every re-match attempt failed;
	// the ride surfaces as CANCELLED_SYSTEM.
	ErrExhaustedRetries = errors.New("exhausted dispatch retries")
)
