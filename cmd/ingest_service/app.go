package ingestservice

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"ride-dispatch/internal/availability"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ingest"
)

// Run consumes the heartbeat stream into the shared availability store and
// blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	logger := logger.New("ingest-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// a standalone ingest process only makes sense with shared state
	if len(cfg.Kafka.Brokers) == 0 {
		err := errors.New("kafka brokers are not configured")
		logger.Error(ctx, "kafka_not_configured", "Ingest service requires a Kafka heartbeat stream", err, nil)
		return err
	}
	if cfg.Redis.Addr == "" {
		err := errors.New("redis addr is not configured")
		logger.Error(ctx, "redis_not_configured", "Ingest service requires the Redis availability store", err, nil)
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error(ctx, "redis_connection_failed", "Failed to reach Redis", err, nil)
		return err
	}

	store := availability.NewRedisStore(rdb, cfg.Redis.GeoKey, cfg.Dispatch.HeartbeatStaleness)
	worker := ingest.NewWorker(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic, cfg.Kafka.ConsumerGroup, store, logger)

	logger.Info(ctx, "service_started", "Ingest Service consuming heartbeats",
		map[string]any{"topic": cfg.Kafka.HeartbeatTopic, "group": cfg.Kafka.ConsumerGroup})

	worker.Run(ctx)

	logger.Info(ctx, "shutdown_complete", "Ingest Service stopped", nil)
	return nil
}
