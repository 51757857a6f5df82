// Package natsclient wraps the NATS connection used to publish decode
// results and pipeline status. It adds connect retries, reconnection
// callbacks, and classified errors over the raw nats.go API.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/neurostream/errors"
	"github.com/c360/neurostream/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status holds runtime counters for the connection.
type Status struct {
	Status     ConnectionStatus
	Reconnects int32
	Published  uint64
}

// Client manages a NATS connection for the pipeline's outbound traffic.
type Client struct {
	url    string
	logger *slog.Logger

	name          string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration

	status     atomic.Int32
	reconnects atomic.Int32
	published  atomic.Uint64

	onReconnect  func()
	onDisconnect func(error)

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// Option configures a Client.
type Option func(*Client)

// WithName sets the client name reported to the NATS server.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithReconnect tunes the nats.go automatic reconnection behavior.
func WithReconnect(maxReconnects int, wait time.Duration) Option {
	return func(c *Client) {
		c.maxReconnects = maxReconnects
		c.reconnectWait = wait
	}
}

// WithTimeout sets the per-attempt connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// OnReconnect registers a callback invoked after automatic reconnects.
func OnReconnect(fn func()) Option {
	return func(c *Client) { c.onReconnect = fn }
}

// OnDisconnect registers a callback invoked when the connection drops.
func OnDisconnect(fn func(error)) Option {
	return func(c *Client) { c.onDisconnect = fn }
}

// NewClient creates an unconnected client for the given server URL.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:           url,
		name:          "neurostream",
		maxReconnects: 10,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the connection, retrying transient failures with
// backoff until ctx is cancelled or attempts run out.
func (c *Client) Connect(ctx context.Context) error {
	c.status.Store(int32(StatusConnecting))
	c.logger.Info("connecting to NATS", "url", c.url)

	natsOpts := []nats.Option{
		nats.Name(c.name),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.status.Store(int32(StatusReconnecting))
			c.logger.Warn("NATS disconnected", "error", err)
			if c.onDisconnect != nil {
				c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.status.Store(int32(StatusConnected))
			c.reconnects.Add(1)
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(int32(StatusDisconnected))
		}),
	}

	conn, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*nats.Conn, error) {
		return nats.Connect(c.url, natsOpts...)
	})
	if err != nil {
		c.status.Store(int32(StatusDisconnected))
		return errors.WrapTransient(err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.status.Store(int32(StatusConnected))
	c.logger.Info("connected to NATS", "url", conn.ConnectedUrl())
	return nil
}

// Publish sends data to a subject.
func (c *Client) Publish(subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "Client", "Publish", "send "+subject)
	}

	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "send "+subject)
	}
	c.published.Add(1)
	return nil
}

// Subscribe registers a handler for a subject. Subscriptions are drained
// on Close.
func (c *Client) Subscribe(subject string, handler func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.WrapInvalid(errors.ErrNoConnection, "Client", "Subscribe", "subscribe "+subject)
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return errors.Wrap(err, "Client", "Subscribe", "subscribe "+subject)
	}

	c.subs = append(c.subs, sub)
	return nil
}

// IsConnected reports whether the underlying connection is live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Status returns a snapshot of connection state and counters.
func (c *Client) Status() Status {
	return Status{
		Status:     ConnectionStatus(c.status.Load()),
		Reconnects: c.reconnects.Load(),
		Published:  c.published.Load(),
	}
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("subscription drain failed", "subject", sub.Subject, "error", err)
		}
	}
	c.subs = nil

	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		c.conn = nil
		c.status.Store(int32(StatusDisconnected))
		return errors.Wrap(err, "Client", "Close", "drain connection")
	}

	c.conn = nil
	c.status.Store(int32(StatusDisconnected))
	return nil
}
