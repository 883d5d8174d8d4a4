// Package messaging provides a NATS client wrapper used as the room channel
// fabric. Every active room maps to one subject; both participants'
// connections subscribe to it and the session relay publishes room events
// there. It handles connection lifecycle and per-connection subscription
// bookkeeping.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectRoom is the prefix for room channel subjects: room.<room_id>.
const SubjectRoom = "room"

// NATSClient wraps the NATS connection with helper methods for room channels.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription // conn_id -> room subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "strangerhub",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// SubscribeRoom subscribes a connection to the room.<roomID> subject. The
// subscription is keyed by connID so both participants on the same server
// can subscribe to the same room without overwriting each other. Any
// existing room subscription for the connection is replaced — a connection
// is in at most one room at a time.
func (c *NATSClient) SubscribeRoom(roomID, connID string, handler func(data []byte)) error {
	subject := SubjectRoom + "." + roomID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if prev, ok := c.subs[connID]; ok {
		_ = prev.Unsubscribe()
	}
	c.subs[connID] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeRoom drops a connection's room subscription, if any.
func (c *NATSClient) UnsubscribeRoom(connID string) error {
	c.mu.Lock()
	sub, ok := c.subs[connID]
	if ok {
		delete(c.subs, connID)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe conn %s: %w", connID, err)
	}
	return nil
}

// PublishRoom publishes data to the room.<roomID> subject.
func (c *NATSClient) PublishRoom(roomID string, data []byte) error {
	return c.conn.Publish(SubjectRoom+"."+roomID, data)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for connID, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain conn %s: %v", connID, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
