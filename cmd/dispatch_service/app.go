package dispatchservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-dispatch/internal/availability"
	"ride-dispatch/internal/eta"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/postgres"
	"ride-dispatch/internal/general/rabbitmq"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ingest"
	"ride-dispatch/internal/matching"
	"ride-dispatch/internal/offer"
	"ride-dispatch/internal/reliability"
	"ride-dispatch/internal/software/dispatch/handler"
	"ride-dispatch/internal/software/dispatch/service"
)

// Run wires the dispatch service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// static request ID for startup logs
	logger := logger.New("dispatch-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	rmq, err := rabbitmq.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	pub := rabbitmq.NewMQPublisher(rmq)

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.AccessTTL)

	uow := postgres.NewUnitOfWork(pool)
	rideRepo := postgres.NewRideRepo()
	asgRepo := postgres.NewAssignmentRepo()

	// driver availability: Redis when configured, in-memory otherwise
	var driverPool availability.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		driverPool = availability.NewRedisStore(rdb, cfg.Redis.GeoKey, cfg.Dispatch.HeartbeatStaleness)
		logger.Info(ctx, "availability_store_ready", "Using Redis availability store",
			map[string]any{"addr": cfg.Redis.Addr})
	} else {
		driverPool = availability.NewMemoryStore(cfg.Dispatch.HeartbeatStaleness)
		logger.Info(ctx, "availability_store_ready", "Using in-memory availability store", nil)
	}

	// ETA estimation: OSRM with a TTL cache, straight-line fallback
	var routing eta.Client
	if cfg.ETA.OSRMEndpoint != "" {
		routing = eta.NewOSRMClient(cfg.ETA.OSRMEndpoint)
	}
	estimator := eta.NewEstimator(routing, eta.NewCache(cfg.ETA.CacheTTL), cfg.ETA.DefaultSpeedKMH, logger)

	rel := reliability.NewTracker()
	ranker := matching.NewRanker(estimator, rel, matching.DefaultWeights, cfg.Dispatch.HeartbeatStaleness)
	offers := offer.NewManager(cfg.Dispatch.PerOfferTimeout)

	// heartbeats flow through Kafka when brokers are configured
	var heartbeats service.HeartbeatSink
	if len(cfg.Kafka.Brokers) > 0 {
		producer := ingest.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic)
		defer producer.Close()
		heartbeats = producer

		// Without shared Redis state the dispatch process must consume its
		// own heartbeat stream to keep the local store warm.
		if cfg.Redis.Addr == "" {
			worker := ingest.NewWorker(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic, cfg.Kafka.ConsumerGroup, driverPool, logger)
			go worker.Run(ctx)
		}
	}

	svc := service.NewService(logger, cfg, uow, rideRepo, asgRepo, driverPool, ranker, offers, rel, pub, heartbeats)

	hub := websocket.NewHub(logger, jwtManager, svc)
	svc.AttachNotifier(hub)

	// requeue sweeper for rides stranded in REQUESTED
	go svc.RunBackgroundWorkers(ctx)

	httpHandler := handler.NewDispatchHTTPHandler(svc, logger, jwtManager, hub)
	limitedHandler := withConcurrencyLimit(maxConcurrent, httpHandler.Router())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.DispatchServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second, // hijacked WebSocket conns are exempt
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch Service started on port %d", cfg.Services.DispatchServicePort),
		map[string]any{"port": cfg.Services.DispatchServicePort, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "shutdown_started", "Dispatch Service shutting down", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err,
				map[string]any{"port": cfg.Services.DispatchServicePort})
			return err
		}
		return nil
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client cancelled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
