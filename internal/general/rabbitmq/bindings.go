package rabbitmq

import (
	"fmt"

	"ride-dispatch/internal/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

func declareTopology(ch *amqp.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{contracts.ExchangeRideTopic, "topic"},
		{contracts.ExchangeOfferTopic, "topic"},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	queues := []string{
		contracts.QueueRideStatus,
		contracts.QueueOfferEvents,
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{contracts.QueueRideStatus, contracts.ExchangeRideTopic, contracts.RouteRideStatusPrefix + "*"},
		{contracts.QueueOfferEvents, contracts.ExchangeOfferTopic, contracts.RouteOfferPrefix + "*"},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
