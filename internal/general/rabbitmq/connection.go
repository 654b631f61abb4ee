package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client is a resilient RabbitMQ connector with auto-reconnect and topology
// setup. A single channel with publisher confirms serves all publishes;
// consumers open their own channels.
type Client struct {
	url    string
	logger *logger.Logger
	logCtx context.Context

	mu      sync.RWMutex
	conn    *amqp.Connection
	pubChan *amqp.Channel

	pubMu       sync.Mutex
	pubConfirms chan amqp.Confirmation

	closed    chan struct{}
	reconnect chan struct{}
}

// Connect establishes the connection and starts a background watcher that
// reconnects on failures.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	client := &Client{
		url:       url,
		logger:    log,
		logCtx:    context.WithoutCancel(ctx), // reconnect logging survives request contexts
		closed:    make(chan struct{}),
		reconnect: make(chan struct{}, 1),
	}

	// single attempt; further retries happen in the watcher
	if err := client.connectOnce(); err != nil {
		return nil, err
	}

	go client.watch()
	return client, nil
}

// Close stops the watcher and closes AMQP resources.
func (client *Client) Close() {
	select {
	case <-client.closed:
	default:
		close(client.closed)
	}

	client.mu.Lock()
	if client.pubChan != nil {
		_ = client.pubChan.Close()
		client.pubChan = nil
	}
	if client.conn != nil {
		_ = client.conn.Close()
		client.conn = nil
	}
	client.mu.Unlock()

	client.pubMu.Lock()
	if client.pubConfirms != nil {
		close(client.pubConfirms)
		client.pubConfirms = nil
	}
	client.pubMu.Unlock()
}

func (client *Client) connectOnce() error {
	conn, err := amqp.DialConfig(client.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_dial_failed", "Failed to dial RabbitMQ", err, nil)
		return fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	defer func() {
		if err != nil && conn != nil {
			_ = conn.Close()
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_open_channel_failed", "Failed to open RabbitMQ channel", err, nil)
		return fmt.Errorf("rabbitmq: failed to open channel: %w", err)
	}

	defer func() {
		if err != nil && ch != nil {
			_ = ch.Close()
		}
	}()

	if err = declareTopology(ch); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_declare_topology_failed", "Failed to declare RabbitMQ topology", err, nil)
		return fmt.Errorf("rabbitmq: failed to declare topology: %w", err)
	}

	if err = ch.Confirm(false); err != nil {
		client.logger.Error(client.logCtx, "rabbitmq_enable_confirms_failed", "Failed to enable publisher confirms", err, nil)
		return fmt.Errorf("rabbitmq: failed to enable confirms: %w", err)
	}

	client.pubMu.Lock()
	oldConfirms := client.pubConfirms
	client.pubConfirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	client.pubMu.Unlock()
	if oldConfirms != nil {
		close(oldConfirms)
	}

	// mandatory publishes that cannot be routed come back here
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	go func() {
		for r := range returns {
			client.logger.Error(client.logCtx, "rabbitmq_returned", "Message was returned (unroutable)",
				fmt.Errorf("code=%d text=%s", r.ReplyCode, r.ReplyText),
				map[string]any{
					"exchange":   r.Exchange,
					"routingKey": r.RoutingKey,
					"size":       len(r.Body),
				},
			)
		}
	}()

	client.mu.Lock()
	if client.pubChan != nil && !client.pubChan.IsClosed() {
		_ = client.pubChan.Close()
	}
	client.conn = conn
	client.pubChan = ch
	client.mu.Unlock()

	// either the connection or the publish channel closing triggers a reconnect
	go func(conn *amqp.Connection, ch *amqp.Channel) {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-client.closed:
			return
		case <-connClosed:
		case <-chClosed:
		}
		select {
		case client.reconnect <- struct{}{}:
		default:
		}
	}(conn, ch)

	client.logger.Info(client.logCtx, "rabbitmq_connected", "RabbitMQ connection established", nil)
	return nil
}

// watch reconnects with exponential backoff capped at 30s.
func (client *Client) watch() {
	backoff := time.Second
	for {
		select {
		case <-client.closed:
			return
		case <-client.reconnect:
			for {
				select {
				case <-client.closed:
					return
				default:
				}

				if err := client.connectOnce(); err == nil {
					backoff = time.Second
					client.logger.Info(client.logCtx, "rabbitmq_reconnected", "Reconnected to RabbitMQ and re-ensured topology", nil)
					break
				} else {
					client.logger.Error(client.logCtx, "retry_attempted", "Failed to reconnect to RabbitMQ", err, nil)
				}

				time.Sleep(backoff)
				if backoff < 30*time.Second {
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
				}
			}
		}
	}
}
