package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"ride-dispatch/internal/availability"
	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/assignment"
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/eta"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/matching"
	"ride-dispatch/internal/offer"
	"ride-dispatch/internal/ports"
	"ride-dispatch/internal/reliability"
)

// ----- in-memory fakes -----

type memUow struct{}

func (memUow) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRideRepo struct {
	mu    sync.Mutex
	seq   int
	rides map[string]ride.Ride
}

func newMemRideRepo() *memRideRepo {
	return &memRideRepo{rides: make(map[string]ride.Ride)}
}

func (m *memRideRepo) Create(_ context.Context, r *ride.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = fmt.Sprintf("ride_%d", m.seq)
	m.rides[r.ID] = *r
	return nil
}

func (m *memRideRepo) GetByID(_ context.Context, id string) (*ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, fmt.Errorf("ride %s: %w", id, ports.ErrNotFound)
	}
	cp := r
	return &cp, nil
}

func (m *memRideRepo) GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return m.GetByID(ctx, id)
}

func (m *memRideRepo) Update(_ context.Context, r *ride.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[r.ID]; !ok {
		return fmt.Errorf("ride %s: %w", r.ID, ports.ErrNotFound)
	}
	m.rides[r.ID] = *r
	return nil
}

func (m *memRideRepo) ListActiveByPassenger(context.Context, string) ([]*ride.Ride, error) {
	return nil, nil
}

func (m *memRideRepo) ListActiveByDriver(context.Context, string) ([]*ride.Ride, error) {
	return nil, nil
}

func (m *memRideRepo) ListByStatus(_ context.Context, status ride.Status) ([]*ride.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ride.Ride
	for _, r := range m.rides {
		if r.Status == status {
			cp := r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memAsgRepo struct {
	mu   sync.Mutex
	asgs map[string]assignment.Assignment
}

func newMemAsgRepo() *memAsgRepo {
	return &memAsgRepo{asgs: make(map[string]assignment.Assignment)}
}

func (m *memAsgRepo) Create(_ context.Context, a *assignment.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.asgs {
		if cur.RideID == a.RideID && cur.Status == assignment.StatusPending {
			return errors.New("duplicate pending assignment for ride")
		}
	}
	m.asgs[a.ID] = *a
	return nil
}

func (m *memAsgRepo) GetByID(_ context.Context, id string) (*assignment.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.asgs[id]
	if !ok {
		return nil, fmt.Errorf("assignment: %w", ports.ErrNotFound)
	}
	cp := a
	return &cp, nil
}

func (m *memAsgRepo) GetByIDForUpdate(ctx context.Context, id string) (*assignment.Assignment, error) {
	return m.GetByID(ctx, id)
}

func (m *memAsgRepo) Update(_ context.Context, a *assignment.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asgs[a.ID] = *a
	return nil
}

func (m *memAsgRepo) GetPendingByRide(_ context.Context, rideID string) (*assignment.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.asgs {
		if a.RideID == rideID && a.Status == assignment.StatusPending {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("assignment: %w", ports.ErrNotFound)
}

func (m *memAsgRepo) GetPendingByDriver(_ context.Context, driverID string) (*assignment.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.asgs {
		if a.DriverID == driverID && a.Status == assignment.StatusPending {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("assignment: %w", ports.ErrNotFound)
}

func (m *memAsgRepo) ListByRide(_ context.Context, rideID string) ([]*assignment.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*assignment.Assignment
	for _, a := range m.asgs {
		if a.RideID == rideID {
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// sentOffer pairs the pushed payload with its target driver.
type sentOffer struct {
	driverID string
	offer    contracts.WSDriverRideOffer
}

type fakeNotifier struct {
	mu        sync.Mutex
	offers    chan sentOffer
	withdrawn []contracts.WSOfferWithdrawn
	passenger []contracts.WSPassengerRideStatus
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{offers: make(chan sentOffer, 16)}
}

func (f *fakeNotifier) SendToDriver(driverID string, msg any) error {
	switch v := msg.(type) {
	case contracts.WSDriverRideOffer:
		f.offers <- sentOffer{driverID: driverID, offer: v}
	case contracts.WSOfferWithdrawn:
		f.mu.Lock()
		f.withdrawn = append(f.withdrawn, v)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeNotifier) NotifyPassenger(_ string, msg any) error {
	if v, ok := msg.(contracts.WSPassengerRideStatus); ok {
		f.mu.Lock()
		f.passenger = append(f.passenger, v)
		f.mu.Unlock()
	}
	return nil
}

// ----- harness -----

type harness struct {
	svc      *Service
	rides    *memRideRepo
	asgs     *memAsgRepo
	pool     *availability.MemoryStore
	rel      *reliability.Tracker
	notifier *fakeNotifier
}

func newHarness(t *testing.T, offerTimeout time.Duration, retries int) *harness {
	t.Helper()

	log := logger.NewWithWriter("dispatch_test", io.Discard)

	cfg := &config.Config{}
	cfg.Dispatch.PerOfferTimeout = offerTimeout
	cfg.Dispatch.HeartbeatStaleness = time.Minute
	cfg.Dispatch.MatchRetries = retries
	cfg.Dispatch.RetryBackoff = 10 * time.Millisecond
	cfg.Dispatch.SearchRadiusKM = 5.0
	cfg.Dispatch.MaxCandidates = 10

	rides := newMemRideRepo()
	asgs := newMemAsgRepo()
	pool := availability.NewMemoryStore(cfg.Dispatch.HeartbeatStaleness)
	rel := reliability.NewTracker()
	est := eta.NewEstimator(nil, nil, 24.0, log)
	ranker := matching.NewRanker(est, rel, matching.DefaultWeights, cfg.Dispatch.HeartbeatStaleness)
	offers := offer.NewManager(offerTimeout)

	svc := NewService(log, cfg, memUow{}, rides, asgs, pool, ranker, offers, rel, nil, nil)
	notifier := newFakeNotifier()
	svc.AttachNotifier(notifier)

	return &harness{svc: svc, rides: rides, asgs: asgs, pool: pool, rel: rel, notifier: notifier}
}

func (h *harness) addDriver(t *testing.T, id string, lat, lng float64) {
	t.Helper()
	snap, err := driver.NewAvailability(id, driver.StatusAvailable, 4, geo.Location{Lat: lat, Lng: lng}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewAvailability: %v", err)
	}
	if err := h.pool.Upsert(context.Background(), snap); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

// respondAs answers offers pushed to the given driver until ctx is done.
func (h *harness) respondAs(ctx context.Context, decide func(driverID string) (accept, respond bool)) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sent := <-h.notifier.offers:
				accept, respond := decide(sent.driverID)
				if !respond {
					continue
				}
				_, _ = h.svc.RespondToOffer(ctx, ports.OfferResponseInput{
					AssignmentID: sent.offer.AssignmentID,
					DriverID:     sent.driverID,
					Accept:       accept,
				})
			}
		}
	}()
}

func (h *harness) requestRide(t *testing.T) ports.RequestRideResult {
	t.Helper()
	res, err := h.svc.RequestRide(context.Background(), ports.RequestRideInput{
		PassengerID: "pas_1",
		Pickup:      geo.Location{Lat: 43.2380, Lng: 76.9452},
		Dropoff:     geo.Location{Lat: 43.2600, Lng: 76.9600},
		Seats:       2,
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	return res
}

func (h *harness) rideStatus(t *testing.T, rideID string) ride.Status {
	t.Helper()
	r, err := h.rides.GetByID(context.Background(), rideID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return r.Status
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ----- scenarios -----

func TestDispatchAssignsNearestAcceptingDriver(t *testing.T) {
	h := newHarness(t, time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.addDriver(t, "drv_near", 43.2390, 76.9452)
	h.addDriver(t, "drv_far", 43.2700, 76.9452)
	h.respondAs(ctx, func(string) (bool, bool) { return true, true })

	res := h.requestRide(t)
	if res.Status != ride.StatusRequested.String() {
		t.Fatalf("expected REQUESTED, got %s", res.Status)
	}
	if res.FareQuote <= 0 {
		t.Fatalf("expected a positive fare quote, got %v", res.FareQuote)
	}

	waitFor(t, "driver assignment", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusDriverAssigned
	})

	r, _ := h.rides.GetByID(ctx, res.RideID)
	if r.DriverID == nil || *r.DriverID != "drv_near" {
		t.Fatalf("expected drv_near assigned, got %v", r.DriverID)
	}

	offers, _ := h.svc.ListOffers(ctx, res.RideID)
	if len(offers) != 1 || offers[0].Status != assignment.StatusAccepted.String() {
		t.Fatalf("expected one accepted offer, got %+v", offers)
	}
}

func TestDeclineAdvancesToNextDriver(t *testing.T) {
	h := newHarness(t, time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.addDriver(t, "drv_near", 43.2390, 76.9452)
	h.addDriver(t, "drv_far", 43.2450, 76.9452)
	h.respondAs(ctx, func(driverID string) (bool, bool) {
		return driverID != "drv_near", true // nearest declines, next accepts
	})

	res := h.requestRide(t)
	waitFor(t, "driver assignment", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusDriverAssigned
	})

	r, _ := h.rides.GetByID(ctx, res.RideID)
	if r.DriverID == nil || *r.DriverID != "drv_far" {
		t.Fatalf("expected drv_far assigned after decline, got %v", r.DriverID)
	}

	offers, _ := h.svc.ListOffers(ctx, res.RideID)
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	byDriver := map[string]string{}
	for _, o := range offers {
		byDriver[o.DriverID] = o.Status
	}
	if byDriver["drv_near"] != assignment.StatusDeclined.String() {
		t.Fatalf("expected drv_near DECLINED, got %s", byDriver["drv_near"])
	}
	if byDriver["drv_far"] != assignment.StatusAccepted.String() {
		t.Fatalf("expected drv_far ACCEPTED, got %s", byDriver["drv_far"])
	}
}

func TestEmptyPoolCancelsBySystem(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond, 1)

	res := h.requestRide(t)
	waitFor(t, "system cancellation", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusCancelledSystem
	})

	r, _ := h.rides.GetByID(context.Background(), res.RideID)
	if r.CancellationReason == nil || *r.CancellationReason != ride.ReasonNoDriversAvailable {
		t.Fatalf("expected reason %q, got %v", ride.ReasonNoDriversAvailable, r.CancellationReason)
	}
}

func TestOfferTimeoutExpiresAssignment(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond, 0)

	h.addDriver(t, "drv_silent", 43.2390, 76.9452)
	// nobody responds

	res := h.requestRide(t)
	waitFor(t, "system cancellation after timeout", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusCancelledSystem
	})

	offers, _ := h.svc.ListOffers(context.Background(), res.RideID)
	if len(offers) == 0 {
		t.Fatal("expected at least one offer")
	}
	if offers[0].Status != assignment.StatusExpired.String() {
		t.Fatalf("expected EXPIRED, got %s", offers[0].Status)
	}
	if offers[0].ReasonCode != assignment.ReasonOfferTimeout {
		t.Fatalf("expected reason %q, got %q", assignment.ReasonOfferTimeout, offers[0].ReasonCode)
	}
}

func TestAcceptAfterExpiryIsConflict(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond, 0)
	h.addDriver(t, "drv_slow", 43.2390, 76.9452)

	// prior accepted history, so the reliability drop is observable
	h.rel.RecordOffered("drv_slow")
	h.rel.RecordAccepted("drv_slow")

	res := h.requestRide(t)

	var late sentOffer
	select {
	case late = <-h.notifier.offers:
	case <-time.After(time.Second):
		t.Fatal("no offer pushed")
	}

	// let the offer expire before answering
	waitFor(t, "offer expiry", func() bool {
		offers, _ := h.svc.ListOffers(context.Background(), res.RideID)
		return len(offers) > 0 && offers[0].Status == assignment.StatusExpired.String()
	})

	scoreBefore := h.rel.Score("drv_slow")

	_, err := h.svc.RespondToOffer(context.Background(), ports.OfferResponseInput{
		AssignmentID: late.offer.AssignmentID,
		DriverID:     "drv_slow",
		Accept:       true,
	})
	if !errors.Is(err, ride.ErrConflictingState) {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}

	// the answer changed nothing, but the lateness itself still counts
	// against the driver's reliability
	if after := h.rel.Score("drv_slow"); after >= scoreBefore {
		t.Fatalf("late response should lower reliability: before=%v after=%v", scoreBefore, after)
	}
}

func TestPassengerCancelDuringOfferReassignsIt(t *testing.T) {
	h := newHarness(t, time.Second, 0)
	h.addDriver(t, "drv_1", 43.2390, 76.9452)

	res := h.requestRide(t)

	// wait for the offer to go out, then cancel while it is pending
	select {
	case <-h.notifier.offers:
	case <-time.After(time.Second):
		t.Fatal("no offer pushed")
	}

	cres, err := h.svc.CancelRide(context.Background(), ports.CancelRideInput{
		RideID:  res.RideID,
		ActorID: "pas_1",
		Role:    "passenger",
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if cres.Status != ride.StatusCancelledPassenger.String() {
		t.Fatalf("expected CANCELLED_PASSENGER, got %s", cres.Status)
	}

	waitFor(t, "assignment reassignment", func() bool {
		offers, _ := h.svc.ListOffers(context.Background(), res.RideID)
		return len(offers) == 1 && offers[0].Status == assignment.StatusReassigned.String()
	})
}

func TestDriverBailBeforePickupRequeues(t *testing.T) {
	h := newHarness(t, time.Second, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.addDriver(t, "drv_1", 43.2390, 76.9452)
	h.addDriver(t, "drv_2", 43.2500, 76.9452)
	h.respondAs(ctx, func(string) (bool, bool) { return true, true })

	res := h.requestRide(t)
	waitFor(t, "first assignment", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusDriverAssigned
	})

	r, _ := h.rides.GetByID(ctx, res.RideID)
	if r.DriverID == nil || *r.DriverID != "drv_1" {
		t.Fatalf("expected drv_1 assigned first, got %v", r.DriverID)
	}

	cres, err := h.svc.CancelRide(ctx, ports.CancelRideInput{
		RideID:  res.RideID,
		ActorID: "drv_1",
		Role:    "driver",
		Reason:  "flat tire",
	})
	if err != nil {
		t.Fatalf("CancelRide: %v", err)
	}
	if !cres.Requeued {
		t.Fatal("expected the ride to requeue")
	}

	// the ride goes back through matching; the bailed driver is excluded
	waitFor(t, "re-assignment", func() bool {
		r, _ := h.rides.GetByID(ctx, res.RideID)
		return r.Status == ride.StatusDriverAssigned && r.DriverID != nil
	})

	r, _ = h.rides.GetByID(ctx, res.RideID)
	if *r.DriverID != "drv_2" {
		t.Fatalf("expected drv_2 after bail, got %s", *r.DriverID)
	}

	offers, _ := h.svc.ListOffers(ctx, res.RideID)
	var reassigned, toBailed int
	for _, o := range offers {
		if o.Status == assignment.StatusReassigned.String() && o.ReasonCode == assignment.ReasonDriverBailed {
			reassigned++
		}
		if o.DriverID == "drv_1" {
			toBailed++
		}
	}
	if reassigned != 1 {
		t.Fatalf("expected one bailed assignment, got %d (offers=%+v)", reassigned, offers)
	}
	if toBailed != 1 {
		t.Fatalf("bailed driver must not be offered the same ride again, got %d offers", toBailed)
	}
}

func TestProgressLifecycleToCompletion(t *testing.T) {
	h := newHarness(t, time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.addDriver(t, "drv_1", 43.2390, 76.9452)
	h.respondAs(ctx, func(string) (bool, bool) { return true, true })

	res := h.requestRide(t)
	waitFor(t, "assignment", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusDriverAssigned
	})

	// onboard before enroute must conflict
	_, err := h.svc.ReportProgress(ctx, ports.ProgressInput{
		RideID: res.RideID, DriverID: "drv_1", Event: ProgressPassengerOnboard,
	})
	if !errors.Is(err, ride.ErrConflictingState) {
		t.Fatalf("expected ErrConflictingState, got %v", err)
	}

	for _, event := range []string{ProgressEnroutePickup, ProgressPassengerOnboard} {
		if _, err := h.svc.ReportProgress(ctx, ports.ProgressInput{
			RideID: res.RideID, DriverID: "drv_1", Event: event,
		}); err != nil {
			t.Fatalf("ReportProgress(%s): %v", event, err)
		}
	}

	// passenger can no longer cancel once onboard
	if _, err := h.svc.CancelRide(ctx, ports.CancelRideInput{
		RideID: res.RideID, ActorID: "pas_1", Role: "passenger",
	}); !errors.Is(err, ride.ErrConflictingState) {
		t.Fatalf("expected ErrConflictingState for onboard cancel, got %v", err)
	}

	// a negative fare never reaches the ride
	if _, err := h.svc.ReportProgress(ctx, ports.ProgressInput{
		RideID: res.RideID, DriverID: "drv_1", Event: ProgressCompleted, FinalFare: -1,
	}); !errors.Is(err, ports.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative fare, got %v", err)
	}

	pres, err := h.svc.ReportProgress(ctx, ports.ProgressInput{
		RideID: res.RideID, DriverID: "drv_1", Event: ProgressCompleted, FinalFare: 1234.5,
	})
	if err != nil {
		t.Fatalf("ReportProgress(completed): %v", err)
	}
	if pres.Status != ride.StatusCompleted.String() || pres.FinalFare != 1234.5 {
		t.Fatalf("unexpected completion result: %+v", pres)
	}

	// wrong driver can never advance a ride
	if _, err := h.svc.ReportProgress(ctx, ports.ProgressInput{
		RideID: res.RideID, DriverID: "drv_ghost", Event: ProgressEnroutePickup,
	}); !errors.Is(err, ports.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBusyDriverIsSkipped(t *testing.T) {
	h := newHarness(t, 150*time.Millisecond, 0)
	h.addDriver(t, "drv_1", 43.2390, 76.9452)

	// first ride parks an offer on the only driver; nobody answers
	first := h.requestRide(t)
	select {
	case <-h.notifier.offers:
	case <-time.After(time.Second):
		t.Fatal("no offer for the first ride")
	}

	// second ride finds the driver busy, exhausts its single round
	second := h.requestRide(t)
	waitFor(t, "second ride system-cancelled", func() bool {
		return h.rideStatus(t, second.RideID) == ride.StatusCancelledSystem
	})

	// at no point did the second ride get an assignment row
	offers, _ := h.svc.ListOffers(context.Background(), second.RideID)
	if len(offers) != 0 {
		t.Fatalf("busy driver must not receive a second offer, got %+v", offers)
	}

	waitFor(t, "first ride resolution", func() bool {
		return h.rideStatus(t, first.RideID) == ride.StatusCancelledSystem
	})
}

func TestSweepResolvesOrphanedPendingOffer(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond, 0)
	ctx := context.Background()

	// a REQUESTED ride and a PENDING offer left behind by a dead loop
	r, err := ride.NewRide("R-0001", "pas_1", geo.Location{Lat: 43.2380, Lng: 76.9452},
		geo.Location{Lat: 43.2600, Lng: 76.9600}, 2, 1.0)
	if err != nil {
		t.Fatalf("NewRide: %v", err)
	}
	if err := h.rides.Create(ctx, r); err != nil {
		t.Fatalf("Create ride: %v", err)
	}
	orphan, err := assignment.NewAssignment("asg_orphan", r.ID, "drv_gone", 0.9,
		time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("NewAssignment: %v", err)
	}
	if err := h.asgs.Create(ctx, orphan); err != nil {
		t.Fatalf("Create assignment: %v", err)
	}

	h.svc.sweepRequested(ctx)

	// the stale offer resolves before dispatch restarts
	waitFor(t, "orphan resolution", func() bool {
		a, err := h.asgs.GetByID(ctx, "asg_orphan")
		return err == nil && a.Status == assignment.StatusReassigned
	})
	a, _ := h.asgs.GetByID(ctx, "asg_orphan")
	if a.ReasonCode != ride.ReasonDispatchInterrupted {
		t.Fatalf("expected reason %q, got %q", ride.ReasonDispatchInterrupted, a.ReasonCode)
	}

	// with no drivers the restarted loop ends the ride
	waitFor(t, "system cancellation", func() bool {
		return h.rideStatus(t, r.ID) == ride.StatusCancelledSystem
	})
}

func TestDriverPendingInStoreIsNotReoffered(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond, 0)
	ctx := context.Background()

	h.addDriver(t, "drv_1", 43.2390, 76.9452)

	// a PENDING offer persisted by another dispatcher instance
	foreign, err := assignment.NewAssignment("asg_foreign", "ride_ext", "drv_1", 0.9,
		time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("NewAssignment: %v", err)
	}
	if err := h.asgs.Create(ctx, foreign); err != nil {
		t.Fatalf("Create assignment: %v", err)
	}

	res := h.requestRide(t)
	waitFor(t, "system cancellation", func() bool {
		return h.rideStatus(t, res.RideID) == ride.StatusCancelledSystem
	})

	offers, _ := h.svc.ListOffers(ctx, res.RideID)
	if len(offers) != 0 {
		t.Fatalf("driver with a live offer elsewhere must be skipped, got %+v", offers)
	}
}

func TestRequestRideValidation(t *testing.T) {
	h := newHarness(t, time.Second, 0)

	_, err := h.svc.RequestRide(context.Background(), ports.RequestRideInput{
		PassengerID: "pas_1",
		Pickup:      geo.Location{Lat: 91, Lng: 0},
		Dropoff:     geo.Location{Lat: 43.26, Lng: 76.96},
		Seats:       2,
	})
	if !errors.Is(err, ports.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad latitude, got %v", err)
	}

	_, err = h.svc.RequestRide(context.Background(), ports.RequestRideInput{
		PassengerID: "pas_1",
		Pickup:      geo.Location{Lat: 43.23, Lng: 76.94},
		Dropoff:     geo.Location{Lat: 43.26, Lng: 76.96},
		Seats:       9,
	})
	if !errors.Is(err, ports.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad seats, got %v", err)
	}
}
