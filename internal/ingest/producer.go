// Package ingest moves driver heartbeats through Kafka. Producers run inside
// the API surface; the consumer worker replays the stream into the
// availability store, so dispatch reads never wait on Kafka.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ride-dispatch/internal/contracts"

	"github.com/segmentio/kafka-go"
)

// Producer publishes heartbeat records keyed by driver id, so one driver's
// heartbeats stay ordered within a partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, msg contracts.HeartbeatMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(msg.DriverID),
		Value: body,
	})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
