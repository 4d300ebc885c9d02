package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Config holds the message bus connection settings.
type Config struct {
	URL            string        `yaml:"url"`
	Subject        string        `yaml:"subject"`
	Queue          string        `yaml:"queue"`
	ClientName     string        `yaml:"client_name"`
	Concurrency    int           `yaml:"concurrency"`
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// drainTimeout bounds how long Close waits for buffered messages.
const drainTimeout = 30 * time.Second

// Handler processes the raw payload of one inbound message.
type Handler func(ctx context.Context, payload []byte) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	// Close stops delivery after the buffered messages have been handled
	// and waits for in-flight handlers to return.
	Close() error
}

// Source delivers inbound messages to a handler.
type Source interface {
	Subscribe(subject string, handle Handler) (Subscription, error)
}

// Publisher sends raw payloads to a subject.
type Publisher interface {
	Publish(subject string, payload []byte) error
}

// Conn is a NATS backed Source and Publisher.
type Conn struct {
	cfg Config
	nc  *nats.Conn
}

// Connect establishes a connection to the message bus.
func Connect(cfg Config) (*Conn, error) {
	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.ClientName),
		// Try reconnecting indefinitely.
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[%s] disconnected: %v", cfg.ClientName, err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[%s] reconnected to %s", cfg.ClientName, nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.URL, err)
	}

	return &Conn{cfg: cfg, nc: nc}, nil
}

// Subscribe joins the configured queue group on subject.
func (c *Conn) Subscribe(subject string, handle Handler) (Subscription, error) {
	d := newDispatcher(subject, handle, c.cfg.Concurrency, c.cfg.HandlerTimeout)

	sub, err := c.nc.QueueSubscribe(subject, c.cfg.Queue, func(msg *nats.Msg) {
		d.dispatch(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	log.Printf("[%s] subscribed to %s (queue %s)", c.cfg.ClientName, subject, c.cfg.Queue)

	return &natsSubscription{sub: sub, dispatcher: d, timeout: drainTimeout}, nil
}

// Publish sends payload to subject.
func (c *Conn) Publish(subject string, payload []byte) error {
	if err := c.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Flush waits until the server has processed every published message.
func (c *Conn) Flush(ctx context.Context) error {
	return c.nc.FlushWithContext(ctx)
}

// Close the underlying connection.
func (c *Conn) Close() error {
	c.nc.Close()
	return nil
}

type natsSubscription struct {
	sub        *nats.Subscription
	dispatcher *dispatcher
	timeout    time.Duration
}

// Close drains buffered messages into the handler, then waits for every
// in-flight handler to return.
func (s *natsSubscription) Close() error {
	// Nothing is left to drain once the connection is closed.
	if !s.sub.IsValid() {
		s.dispatcher.wait()
		return nil
	}

	closed := s.sub.StatusChanged(nats.SubscriptionClosed)

	err := s.sub.Drain()
	if err == nil {
		select {
		case <-closed:
		case <-time.After(s.timeout):
			log.Printf("[%s] drain did not finish within %v", s.sub.Subject, s.timeout)
		}
	}

	s.dispatcher.wait()

	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	return nil
}
