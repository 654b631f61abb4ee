package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MQPublisher adapts the Client to the narrow publisher interface the
// dispatch service depends on.
type MQPublisher struct {
	Client *Client
}

func NewMQPublisher(client *Client) *MQPublisher {
	return &MQPublisher{Client: client}
}

func (publisher *MQPublisher) Publish(exchange, routingKey string, body []byte) error {
	return publisher.Client.PublishMessage(exchange, routingKey, body)
}

// PublishMessage publishes a persistent JSON message and waits for the
// broker's publisher confirm.
func (client *Client) PublishMessage(exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	// confirms arrive in publish order, so publishes serialize on pubMu
	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ch.PublishWithContext(ctx, exchange, routingKey, true /* mandatory */, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	select {
	case c := <-confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: publish not acknowledged")
		}
	case <-ctx.Done():
		// keep the confirm stream aligned: consume the straggler confirm
		// before handing the channel to the next publish
		select {
		case c := <-confirms:
			if !c.Ack {
				return fmt.Errorf("rabbitmq: publish not acknowledged after timeout")
			}
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}

	return nil
}
