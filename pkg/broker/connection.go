// Package broker provides RabbitMQ messaging: a self-healing connection,
// the exchange and queue topology, and publisher/consumer primitives used
// for job submission and lifecycle event delivery.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/slidesmith/slidesmith/pkg/lifecycle"
)

// maxReconnectDelay caps the exponential backoff between reconnect attempts.
const maxReconnectDelay = 30 * time.Second

// Connection wraps an AMQP connection with automatic reconnection.
// Channel access is serialized; consumers learn about reconnects through
// ReconnectNotify and re-establish their subscriptions.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}

	reconnectCh chan struct{}
}

// NewConnection dials RabbitMQ and starts the connection watchdog.
func NewConnection(cfg *Config, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         cfg.URL,
		logger:      logger.With("system", "broker"),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

// Start registers topology setup on startup and connection teardown on
// shutdown with the lifecycle coordinator.
func (c *Connection) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting broker system")

	lc.OnStartup(func() {
		if err := SetupTopology(lc.Context(), c); err != nil {
			c.logger.Error("broker topology setup failed", "error", err)
			return
		}
		c.logger.Info("broker topology ready")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := c.Close(); err != nil {
			c.logger.Error("broker close failed", "error", err)
		}
	})

	return nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch

	c.logger.Info("connected to message broker")
	return nil
}

// watch blocks on connection close notifications and reconnects with
// exponential backoff until Close is called.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(time.Second)
			continue
		}

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("broker connection lost", "error", err)
			}
			c.reconnect()
		}
	}
}

func (c *Connection) reconnect() {
	delay := time.Second

	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		c.mu.RUnlock()

		c.logger.Info("reconnecting to broker", "delay", delay)
		time.Sleep(delay)

		if err := c.connect(); err != nil {
			c.logger.Warn("broker reconnect failed", "error", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return
	}
}

// Channel returns the current AMQP channel, or nil while disconnected.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify signals once after each successful reconnection.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// WithChannel runs fn against the current channel.
func (c *Connection) WithChannel(_ context.Context, fn func(ch *amqp.Channel) error) error {
	ch := c.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}
	return fn(ch)
}

// Close tears the connection down permanently.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.closedCh)

	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close connection: %w", err)
		}
	}

	if firstErr == nil {
		c.logger.Info("broker connection closed")
	}
	return firstErr
}
