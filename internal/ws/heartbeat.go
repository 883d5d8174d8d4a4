package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to ping
	Timeout  time.Duration // max time to wait for activity after a ping
}

// DefaultHeartbeatConfig returns the production defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat starts a background goroutine that periodically pings all
// connections and evicts those with no activity within Interval + Timeout.
// The goroutine exits when the server's done channel closes.
func StartHeartbeat(server *Server, config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-server.done:
				return
			case <-ticker.C:
				checkConnections(server, config)
			}
		}
	}()
}

// checkConnections removes connections that have gone stale and sends a
// protocol-level ping frame to the rest; browsers answer the pong
// automatically.
func checkConnections(server *Server, config HeartbeatConfig) {
	deadline := config.Interval + config.Timeout
	now := time.Now()

	for _, c := range server.Connections().All() {
		if now.Sub(c.LastPing) > deadline {
			log.Printf("ws: heartbeat timeout conn=%s last_activity=%s ago",
				c.ID, now.Sub(c.LastPing).Round(time.Second))
			server.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed conn=%s: %v", c.ID, err)
			server.RemoveConnection(c)
		}
	}
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9). The
// write mutex keeps it from interleaving with other outbound frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
