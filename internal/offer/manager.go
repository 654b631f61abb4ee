// Package offer coordinates in-flight ride offers. Each offer is one
// goroutine waiting on a driver's answer with a deadline; the manager routes
// responses and cancellations into that wait and guarantees a driver never
// holds two pending offers at once.
package offer

import (
	"context"
	"errors"
	"sync"
	"time"

	"ride-dispatch/internal/general/metrics"
)

// Outcome is how a pending offer resolved.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDeclined
	OutcomeExpired
	OutcomeCancelled
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDeclined:
		return "declined"
	case OutcomeExpired:
		return "expired"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "interrupted"
	}
}

var (
	ErrDriverBusy     = errors.New("driver already holds a pending offer")
	ErrNoPendingOffer = errors.New("no pending offer")
	ErrWrongDriver    = errors.New("offer belongs to another driver")
)

// Session is one live offer. The coordinator creates it, pushes the offer to
// the driver, then blocks in Await.
type Session struct {
	RideID       string
	AssignmentID string
	DriverID     string
	ExpiresAt    time.Time

	respond   chan bool
	cancelled chan struct{}
	resolved  bool // guarded by Manager.mu; set by whichever side wins
	once      sync.Once
	offeredAt time.Time
}

// Manager indexes live sessions by assignment, driver and ride.
type Manager struct {
	mu           sync.Mutex
	byAssignment map[string]*Session
	byDriver     map[string]*Session
	byRide       map[string]*Session
	timeout      time.Duration
}

func NewManager(perOfferTimeout time.Duration) *Manager {
	return &Manager{
		byAssignment: make(map[string]*Session),
		byDriver:     make(map[string]*Session),
		byRide:       make(map[string]*Session),
		timeout:      perOfferTimeout,
	}
}

// Timeout returns the per-offer response window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Begin registers a new pending offer. It fails with ErrDriverBusy when the
// driver is already waiting on another offer, which is what keeps a driver on
// at most one pending assignment across all rides.
func (m *Manager) Begin(rideID, assignmentID, driverID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.byDriver[driverID]; busy {
		return nil, ErrDriverBusy
	}

	s := &Session{
		RideID:       rideID,
		AssignmentID: assignmentID,
		DriverID:     driverID,
		ExpiresAt:    time.Now().UTC().Add(m.timeout),
		respond:      make(chan bool, 1),
		cancelled:    make(chan struct{}),
		offeredAt:    time.Now().UTC(),
	}
	m.byAssignment[assignmentID] = s
	m.byDriver[driverID] = s
	m.byRide[rideID] = s
	return s, nil
}

// Await blocks until the driver answers, the offer deadline passes, the ride
// is cancelled, or ctx is done. Exactly one of those wins: a response claims
// the session under the manager lock before it is delivered, so a deadline
// firing concurrently with an answer always observes the answer.
func (m *Manager) Await(ctx context.Context, s *Session) Outcome {
	timer := time.NewTimer(time.Until(s.ExpiresAt))
	defer timer.Stop()

	var outcome Outcome
	for {
		select {
		case accept := <-s.respond:
			if accept {
				outcome = OutcomeAccepted
			} else {
				outcome = OutcomeDeclined
			}
		case <-timer.C:
			if !m.claim(s) {
				// a response won the race; it is already buffered
				continue
			}
			outcome = OutcomeExpired
		case <-s.cancelled:
			if !m.claim(s) {
				continue
			}
			outcome = OutcomeCancelled
		case <-ctx.Done():
			if !m.claim(s) {
				continue
			}
			outcome = OutcomeInterrupted
		}
		break
	}

	m.release(s)

	metrics.OffersTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == OutcomeAccepted || outcome == OutcomeDeclined {
		metrics.OfferResponseSeconds.Observe(time.Since(s.offeredAt).Seconds())
	}
	return outcome
}

// Respond delivers a driver's answer into the waiting session. A response
// for an unknown assignment (already resolved, or never offered) returns
// ErrNoPendingOffer; the caller maps that onto its conflict error.
func (m *Manager) Respond(assignmentID, driverID string, accept bool) (rideID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byAssignment[assignmentID]
	if !ok {
		return "", ErrNoPendingOffer
	}
	if s.DriverID != driverID {
		return "", ErrWrongDriver
	}
	if s.resolved {
		return "", ErrNoPendingOffer
	}

	s.resolved = true
	s.respond <- accept // buffered; the single delivery never blocks
	return s.RideID, nil
}

// Abort tears down a session whose offer never went out, freeing the driver
// without recording an outcome.
func (m *Manager) Abort(s *Session) {
	if m.claim(s) {
		m.release(s)
	}
}

// claim marks the session resolved on behalf of a timeout or cancellation.
// It loses when a response got there first.
func (m *Manager) claim(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.resolved {
		return false
	}
	s.resolved = true
	return true
}

// CancelRide aborts the in-flight offer for a ride, if any. Used when the
// passenger cancels mid-dispatch.
func (m *Manager) CancelRide(rideID string) {
	m.mu.Lock()
	s, ok := m.byRide[rideID]
	m.mu.Unlock()

	if ok {
		s.once.Do(func() { close(s.cancelled) })
	}
}

// PendingForRide returns the live session for a ride, if one exists.
func (m *Manager) PendingForRide(rideID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byRide[rideID]
	return s, ok
}

// DriverBusy reports whether the driver currently holds a pending offer.
func (m *Manager) DriverBusy(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.byDriver[driverID]
	return busy
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.byAssignment[s.AssignmentID]; ok && cur == s {
		delete(m.byAssignment, s.AssignmentID)
	}
	if cur, ok := m.byDriver[s.DriverID]; ok && cur == s {
		delete(m.byDriver, s.DriverID)
	}
	if cur, ok := m.byRide[s.RideID]; ok && cur == s {
		delete(m.byRide, s.RideID)
	}
}
