package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAwaitResolvesAccept(t *testing.T) {
	m := NewManager(time.Second)
	s, err := m.Begin("ride_1", "asg_1", "drv_1")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	go func() {
		if _, err := m.Respond("asg_1", "drv_1", true); err != nil {
			t.Errorf("Respond: %v", err)
		}
	}()

	if got := m.Await(context.Background(), s); got != OutcomeAccepted {
		t.Fatalf("expected accepted, got %v", got)
	}
	if m.DriverBusy("drv_1") {
		t.Fatal("driver should be free after resolution")
	}
}

func TestAwaitResolvesDecline(t *testing.T) {
	m := NewManager(time.Second)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")

	go m.Respond("asg_1", "drv_1", false)

	if got := m.Await(context.Background(), s); got != OutcomeDeclined {
		t.Fatalf("expected declined, got %v", got)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	m := NewManager(50 * time.Millisecond)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")

	start := time.Now()
	if got := m.Await(context.Background(), s); got != OutcomeExpired {
		t.Fatalf("expected expired, got %v", got)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("resolved before the deadline")
	}
}

func TestLateResponseFindsNoOffer(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")
	_ = m.Await(context.Background(), s)

	_, err := m.Respond("asg_1", "drv_1", true)
	if !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("expected ErrNoPendingOffer, got %v", err)
	}
}

func TestRespondWrongDriver(t *testing.T) {
	m := NewManager(time.Second)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")
	defer m.CancelRide("ride_1")

	if _, err := m.Respond("asg_1", "drv_2", true); !errors.Is(err, ErrWrongDriver) {
		t.Fatalf("expected ErrWrongDriver, got %v", err)
	}

	go m.CancelRide("ride_1")
	if got := m.Await(context.Background(), s); got != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %v", got)
	}
}

func TestDriverHoldsOnePendingOffer(t *testing.T) {
	m := NewManager(time.Second)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")

	if _, err := m.Begin("ride_2", "asg_2", "drv_1"); !errors.Is(err, ErrDriverBusy) {
		t.Fatalf("expected ErrDriverBusy, got %v", err)
	}

	go m.Respond("asg_1", "drv_1", false)
	_ = m.Await(context.Background(), s)

	if _, err := m.Begin("ride_2", "asg_2", "drv_1"); err != nil {
		t.Fatalf("driver should be offerable again: %v", err)
	}
}

func TestCancelRideAbortsInFlightOffer(t *testing.T) {
	m := NewManager(time.Second)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")

	done := make(chan Outcome, 1)
	go func() { done <- m.Await(context.Background(), s) }()

	// give Await a moment to park
	time.Sleep(10 * time.Millisecond)
	m.CancelRide("ride_1")

	select {
	case got := <-done:
		if got != OutcomeCancelled {
			t.Fatalf("expected cancelled, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after cancel")
	}
}

func TestConcurrentResponsesResolveOnce(t *testing.T) {
	m := NewManager(time.Second)
	s, _ := m.Begin("ride_1", "asg_1", "drv_1")

	var delivered int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Respond("asg_1", "drv_1", true); err == nil {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}

	if got := m.Await(context.Background(), s); got != OutcomeAccepted {
		t.Fatalf("expected accepted, got %v", got)
	}
	wg.Wait()

	if delivered != 1 {
		t.Fatalf("expected exactly one delivered response, got %d", delivered)
	}
}
