package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ride-dispatch/internal/availability"
	"ride-dispatch/internal/contracts"
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/logger"

	"github.com/segmentio/kafka-go"
)

// messageReader is the slice of kafka.Reader the worker needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Worker consumes the heartbeat topic and applies each record to the
// availability store. Malformed records are logged and skipped; the stream
// must keep moving.
type Worker struct {
	reader messageReader
	store  availability.Store
	logger *logger.Logger
}

func NewWorker(brokers []string, topic, group string, store availability.Store, log *logger.Logger) *Worker {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Worker{reader: r, store: store, logger: log}
}

// Run reads until ctx is done, backing off on broker errors.
func (w *Worker) Run(ctx context.Context) {
	defer w.reader.Close()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info(ctx, "ingest_stopped", "Heartbeat consumer shutting down", nil)
				return
			}
			w.logger.Error(ctx, "ingest_read_failed", "Kafka read failed, backing off", err,
				map[string]any{"backoff": backoff.String()})
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		if err := w.apply(ctx, m.Value); err != nil {
			w.logger.Error(ctx, "ingest_bad_heartbeat", "Dropping invalid heartbeat record", err,
				map[string]any{"offset": m.Offset})
		}
	}
}

func (w *Worker) apply(ctx context.Context, value []byte) error {
	var msg contracts.HeartbeatMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("unmarshal heartbeat: %w", err)
	}

	status := driver.StatusAvailable
	if msg.Status != "" {
		parsed, err := driver.ParseAvailabilityStatus(msg.Status)
		if err != nil {
			return err
		}
		status = parsed
	}

	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	snap, err := driver.NewAvailability(msg.DriverID, status, msg.Capacity,
		geo.Location{Lat: msg.Location.Lat, Lng: msg.Location.Lng}, at)
	if err != nil {
		return err
	}

	return w.store.Upsert(ctx, snap)
}
