package service

import (
	"context"
	"sync"

	"ride-dispatch/internal/availability"
	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/keymutex"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/rabbitmq"
	"ride-dispatch/internal/matching"
	"ride-dispatch/internal/offer"
	"ride-dispatch/internal/ports"
	"ride-dispatch/internal/reliability"
)

// Notifier pushes messages to connected actors. The websocket hub satisfies
// it; tests plug in fakes.
type Notifier interface {
	SendToDriver(driverID string, msg any) error
	NotifyPassenger(passengerID string, msg any) error
}

// HeartbeatSink is where accepted heartbeats go before they reach the
// availability store. In the single-binary deployment this is the Kafka
// producer; when nil, heartbeats are applied to the store directly.
type HeartbeatSink interface {
	Publish(ctx context.Context, msg contracts.HeartbeatMessage) error
}

// Service is the dispatch coordinator. It owns the ride lifecycle, runs the
// offer loop for every open request, and serializes per-ride mutation behind
// a keyed mutex plus row locks.
type Service struct {
	logger     *logger.Logger
	cfg        *config.Config
	uow        ports.UnitOfWork
	rideRepo   ports.RideRepository
	asgRepo    ports.AssignmentRepository
	pool       availability.Store
	ranker     *matching.Ranker
	offers     *offer.Manager
	rel        *reliability.Tracker
	rideMu     *keymutex.KeyMutex
	pub        *rabbitmq.MQPublisher
	heartbeats HeartbeatSink

	mu       sync.Mutex
	notifier Notifier

	// rides with a live dispatch loop in this process
	dispatching sync.Map // rideID(string) -> struct{}
}

func NewService(
	log *logger.Logger,
	cfg *config.Config,
	uow ports.UnitOfWork,
	rideRepo ports.RideRepository,
	asgRepo ports.AssignmentRepository,
	pool availability.Store,
	ranker *matching.Ranker,
	offers *offer.Manager,
	rel *reliability.Tracker,
	pub *rabbitmq.MQPublisher,
	heartbeats HeartbeatSink,
) *Service {
	return &Service{
		logger:     log,
		cfg:        cfg,
		uow:        uow,
		rideRepo:   rideRepo,
		asgRepo:    asgRepo,
		pool:       pool,
		ranker:     ranker,
		offers:     offers,
		rel:        rel,
		rideMu:     keymutex.New(),
		pub:        pub,
		heartbeats: heartbeats,
	}
}

var _ ports.DispatchService = (*Service)(nil)

// AttachNotifier wires the websocket hub in after construction. The hub
// needs the service for inbound frames, so the two cannot be built in one
// step.
func (service *Service) AttachNotifier(n Notifier) {
	service.mu.Lock()
	service.notifier = n
	service.mu.Unlock()
}

func (service *Service) getNotifier() Notifier {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.notifier
}
