package driver

import (
	"testing"
	"time"

	"ride-dispatch/internal/domain/geo"
)

func TestEligibility(t *testing.T) {
	now := time.Now().UTC()
	loc := geo.Location{Lat: 27.70, Lng: 85.32}
	staleness := 60 * time.Second

	av, err := NewAvailability("driver-1", StatusAvailable, 4, loc, now)
	if err != nil {
		t.Fatalf("new availability: %v", err)
	}

	if !av.Eligible(now, staleness, 4) {
		t.Fatal("fresh available driver with matching capacity must be eligible")
	}
	if av.Eligible(now, staleness, 5) {
		t.Fatal("capacity 4 must never satisfy a 5-seat request")
	}
	if av.Eligible(now.Add(61*time.Second), staleness, 1) {
		t.Fatal("stale heartbeat must exclude the driver")
	}

	av.Status = StatusUnavailable
	if av.Eligible(now, staleness, 1) {
		t.Fatal("unavailable driver must be excluded")
	}
}

func TestNewAvailabilityValidation(t *testing.T) {
	now := time.Now()
	loc := geo.Location{Lat: 0, Lng: 0}

	if _, err := NewAvailability("", StatusAvailable, 4, loc, now); err != ErrDriverRequired {
		t.Fatalf("expected ErrDriverRequired, got %v", err)
	}
	if _, err := NewAvailability("d1", "SLEEPING", 4, loc, now); err != ErrInvalidAvailabilityStatus {
		t.Fatalf("expected ErrInvalidAvailabilityStatus, got %v", err)
	}
	if _, err := NewAvailability("d1", StatusAvailable, 0, loc, now); err != ErrCapacityOutOfRange {
		t.Fatalf("expected ErrCapacityOutOfRange, got %v", err)
	}
	if _, err := NewAvailability("d1", StatusAvailable, 2, geo.Location{Lat: 120, Lng: 0}, now); err == nil {
		t.Fatal("expected location validation error")
	}
}
