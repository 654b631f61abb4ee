package assignment

import (
	"testing"
	"time"
)

func newPending(t *testing.T) *Assignment {
	t.Helper()
	asg, err := NewAssignment("offer-1", "ride-1", "driver-1", 0.87, time.Now().Add(20*time.Second))
	if err != nil {
		t.Fatalf("new assignment: %v", err)
	}
	return asg
}

func TestResolutionsAreTerminal(t *testing.T) {
	cases := []struct {
		name    string
		resolve func(*Assignment) error
		status  Status
		reason  string
	}{
		{"accept", (*Assignment).Accept, StatusAccepted, ""},
		{"decline", (*Assignment).Decline, StatusDeclined, ReasonDriverDeclined},
		{"expire", (*Assignment).Expire, StatusExpired, ReasonOfferTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			asg := newPending(t)
			if err := tc.resolve(asg); err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if asg.Status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, asg.Status)
			}
			if asg.ReasonCode != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, asg.ReasonCode)
			}
			if asg.RespondedAt == nil {
				t.Fatal("responded timestamp not set")
			}

			// immutable once resolved
			if err := asg.Accept(); err != ErrAlreadyResolved {
				t.Fatalf("expected ErrAlreadyResolved, got %v", err)
			}
			if err := asg.Decline(); err != ErrAlreadyResolved {
				t.Fatalf("expected ErrAlreadyResolved, got %v", err)
			}
		})
	}
}

func TestReassignPendingAndAccepted(t *testing.T) {
	asg := newPending(t)
	if err := asg.Reassign(ReasonRideCancelled); err != nil {
		t.Fatalf("reassign pending: %v", err)
	}
	if asg.Status != StatusReassigned || asg.ReasonCode != ReasonRideCancelled {
		t.Fatalf("unexpected state after reassign: %s %s", asg.Status, asg.ReasonCode)
	}

	// an accepted assignment can still be withdrawn when the driver bails
	asg = newPending(t)
	if err := asg.Accept(); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := asg.Reassign(ReasonDriverBailed); err != nil {
		t.Fatalf("reassign accepted: %v", err)
	}
	if asg.Status != StatusReassigned {
		t.Fatalf("expected REASSIGNED, got %s", asg.Status)
	}

	// but not a declined one
	asg = newPending(t)
	_ = asg.Decline()
	if err := asg.Reassign(ReasonRideCancelled); err != ErrAlreadyResolved {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestExpiredDeadlineCheck(t *testing.T) {
	asg := newPending(t)
	if asg.Expired(time.Now()) {
		t.Fatal("fresh offer reported expired")
	}
	if !asg.Expired(asg.ExpiresAt.Add(time.Millisecond)) {
		t.Fatal("offer past deadline not reported expired")
	}
}

func TestNewAssignmentValidation(t *testing.T) {
	deadline := time.Now().Add(time.Second)
	if _, err := NewAssignment("o1", "", "d1", 0, deadline); err != ErrRideRequired {
		t.Fatalf("expected ErrRideRequired, got %v", err)
	}
	if _, err := NewAssignment("o1", "r1", " ", 0, deadline); err != ErrDriverRequired {
		t.Fatalf("expected ErrDriverRequired, got %v", err)
	}
	if _, err := NewAssignment("o1", "r1", "d1", 0, time.Now().Add(-time.Second)); err != ErrBadDeadline {
		t.Fatalf("expected ErrBadDeadline, got %v", err)
	}
}
