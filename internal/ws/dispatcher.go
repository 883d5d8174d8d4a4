package ws

import (
	"log"
	"time"

	"github.com/strangerhub/realtime/internal/protocol"
)

// EventHandler is the callback signature for a parsed client event. The msg
// parameter is the concrete struct returned by protocol.ParseClientEvent
// (e.g. protocol.FindChatEvent, protocol.SendMessageEvent).
type EventHandler func(conn *Connection, msg interface{})

// Dispatcher routes incoming WebSocket events to registered handlers by
// event type. The built-in ping/pong keepalive is answered internally, and
// malformed or unsupported events get a structured error response.
type Dispatcher struct {
	handlers map[string]EventHandler
	server   *Server
}

// NewDispatcher creates a Dispatcher. The server reference is assigned
// later via SetServer, since NewServer itself takes the Dispatch callback.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]EventHandler)}
}

// SetServer assigns the Server used to write responses back to clients.
func (d *Dispatcher) SetServer(server *Server) {
	d.server = server
}

// Register associates an EventHandler with an event type, replacing any
// previous handler for that type.
func (d *Dispatcher) Register(msgType string, handler EventHandler) {
	d.handlers[msgType] = handler
}

// Dispatch is the onMessage callback implementation: parse, answer ping
// internally, route everything else to the registered handler.
func (d *Dispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientEvent(data)
	if err != nil {
		log.Printf("ws: dispatch parse error conn=%s: %v", conn.ID, err)
		d.sendError(conn, "parse_error", "invalid event format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		log.Printf("ws: unsupported event type=%q conn=%s", msgType, conn.ID)
		d.sendError(conn, "unsupported_type", "unsupported event type")
		return
	}

	handler(conn, msg)
}

// SendError sends a structured error event to the client. Build or write
// failures are logged, not propagated.
func (d *Dispatcher) SendError(conn *Connection, code, message string) {
	d.sendError(conn, code, message)
}

func (d *Dispatcher) sendError(conn *Connection, code, message string) {
	data, err := protocol.NewServerEvent(protocol.TypeError, protocol.ErrorEvent{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("ws: failed to build error event conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send error event conn=%s: %v", conn.ID, err)
	}
}

// sendPong answers a client ping and refreshes the connection's keepalive
// timestamp.
func (d *Dispatcher) sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewServerEvent(protocol.TypePong, protocol.PongEvent{})
	if err != nil {
		log.Printf("ws: failed to build pong conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send pong conn=%s: %v", conn.ID, err)
	}
}
