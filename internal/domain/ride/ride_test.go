package ride

import (
	"testing"

	"ride-dispatch/internal/domain/geo"
)

func newTestRide(t *testing.T) *Ride {
	t.Helper()
	pickup := geo.Location{Lat: 27.70, Lng: 85.32}
	dropoff := geo.Location{Lat: 27.68, Lng: 85.35}
	rd, err := NewRide("RIDE_20260829_001", "passenger-1", pickup, dropoff, 2, 1.0)
	if err != nil {
		t.Fatalf("new ride: %v", err)
	}
	return rd
}

func TestHappyPathProgression(t *testing.T) {
	rd := newTestRide(t)

	if rd.Status != StatusRequested {
		t.Fatalf("expected REQUESTED, got %s", rd.Status)
	}
	if err := rd.AssignDriver("driver-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if rd.DriverID == nil || *rd.DriverID != "driver-1" {
		t.Fatalf("driver id not set after assignment")
	}
	if rd.AssignedAt == nil {
		t.Fatalf("assigned timestamp not set")
	}
	if err := rd.MarkEnroutePickup(); err != nil {
		t.Fatalf("enroute: %v", err)
	}
	if err := rd.MarkPassengerOnboard(); err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if err := rd.Complete(1250); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rd.Status != StatusCompleted || rd.FinalFare == nil || *rd.FinalFare != 1250 {
		t.Fatalf("unexpected final state: %s", rd.Status)
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	rd := newTestRide(t)
	if err := rd.AssignDriver("driver-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := rd.MarkEnroutePickup(); err != nil {
		t.Fatalf("enroute: %v", err)
	}
	if err := rd.MarkPassengerOnboard(); err != nil {
		t.Fatalf("onboard: %v", err)
	}

	// a later state can never regress to an earlier one
	if err := rd.MarkEnroutePickup(); err != ErrConflictingState {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}
	if rd.Status != StatusPassengerOnboard {
		t.Fatalf("illegal transition mutated the ride: %s", rd.Status)
	}
}

func TestOnboardRequiresAssignment(t *testing.T) {
	rd := newTestRide(t)
	if err := rd.MarkPassengerOnboard(); err == nil {
		t.Fatal("expected error: onboard without a driver")
	}
	if rd.Status != StatusRequested {
		t.Fatalf("failed transition mutated the ride: %s", rd.Status)
	}
}

func TestDoubleAssignRejected(t *testing.T) {
	rd := newTestRide(t)
	if err := rd.AssignDriver("driver-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := rd.AssignDriver("driver-2"); err != ErrConflictingState {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}
	if *rd.DriverID != "driver-1" {
		t.Fatalf("second assign overwrote driver: %s", *rd.DriverID)
	}
}

func TestPassengerCannotCancelMidTrip(t *testing.T) {
	rd := newTestRide(t)
	_ = rd.AssignDriver("driver-1")
	_ = rd.MarkEnroutePickup()
	_ = rd.MarkPassengerOnboard()

	if err := rd.CancelByPassenger("changed my mind"); err != ErrConflictingState {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}
	if rd.Status != StatusPassengerOnboard {
		t.Fatalf("rejected cancel mutated ride: %s", rd.Status)
	}
}

func TestPassengerCancelBeforeOnboard(t *testing.T) {
	rd := newTestRide(t)
	_ = rd.AssignDriver("driver-1")

	if err := rd.CancelByPassenger("waited too long"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if rd.Status != StatusCancelledPassenger {
		t.Fatalf("expected CANCELLED_PASSENGER, got %s", rd.Status)
	}
	if rd.CancellationReason == nil || *rd.CancellationReason != "waited too long" {
		t.Fatal("cancellation reason not recorded")
	}
	if rd.CancelledAt == nil {
		t.Fatal("cancellation timestamp not recorded")
	}
}

func TestDriverCancelBeforeOnboardRequeues(t *testing.T) {
	rd := newTestRide(t)
	_ = rd.AssignDriver("driver-1")
	_ = rd.MarkEnroutePickup()

	requeued, err := rd.CancelByDriver("vehicle problem")
	if err != nil {
		t.Fatalf("driver cancel: %v", err)
	}
	if !requeued {
		t.Fatal("expected requeue before onboard")
	}
	if rd.Status != StatusRequested {
		t.Fatalf("expected REQUESTED after requeue, got %s", rd.Status)
	}
	if rd.DriverID != nil || rd.AssignedAt != nil || rd.EnrouteAt != nil {
		t.Fatal("driver fields not cleared on requeue")
	}
}

func TestDriverCancelAfterOnboardIsTerminal(t *testing.T) {
	rd := newTestRide(t)
	_ = rd.AssignDriver("driver-1")
	_ = rd.MarkEnroutePickup()
	_ = rd.MarkPassengerOnboard()

	requeued, err := rd.CancelByDriver("emergency")
	if err != nil {
		t.Fatalf("driver cancel: %v", err)
	}
	if requeued {
		t.Fatal("must not requeue after onboard")
	}
	if rd.Status != StatusCancelledDriver {
		t.Fatalf("expected CANCELLED_DRIVER, got %s", rd.Status)
	}
}

func TestSystemCancelAlwaysAllowedUntilTerminal(t *testing.T) {
	rd := newTestRide(t)
	if err := rd.CancelBySystem(ReasonNoDriversAvailable); err != nil {
		t.Fatalf("system cancel: %v", err)
	}
	if rd.Status != StatusCancelledSystem {
		t.Fatalf("expected CANCELLED_SYSTEM, got %s", rd.Status)
	}
	if *rd.CancellationReason != ReasonNoDriversAvailable {
		t.Fatalf("reason not recorded: %v", rd.CancellationReason)
	}

	// terminal states reject everything, including another cancel
	if err := rd.CancelBySystem("again"); err != ErrConflictingState {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}
}

func TestNewRideValidation(t *testing.T) {
	pickup := geo.Location{Lat: 27.70, Lng: 85.32}
	dropoff := geo.Location{Lat: 27.68, Lng: 85.35}

	if _, err := NewRide("R1", "", pickup, dropoff, 1, 1.0); err != ErrPassengerRequired {
		t.Fatalf("expected ErrPassengerRequired, got %v", err)
	}
	if _, err := NewRide("R1", "p1", pickup, dropoff, 0, 1.0); err != ErrSeatsOutOfRange {
		t.Fatalf("expected ErrSeatsOutOfRange, got %v", err)
	}
	if _, err := NewRide("R1", "p1", geo.Location{Lat: 91, Lng: 0}, dropoff, 1, 1.0); err == nil {
		t.Fatal("expected invalid latitude error")
	}
	if _, err := NewRide("R1", "p1", pickup, dropoff, 1, 0.5); err != ErrBadSurge {
		t.Fatalf("expected ErrBadSurge, got %v", err)
	}
}
