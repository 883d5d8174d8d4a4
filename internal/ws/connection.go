package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is a single authenticated WebSocket client connection. The
// connection handle (ID) is minted at upgrade time and is distinct from the
// user identity carried in UserID.
type Connection struct {
	ID         string     // connection handle (UUID), unique per socket
	UserID     string     // authenticated user identity from the admission token
	Conn       net.Conn   // underlying TCP connection
	Fd         int        // file descriptor for epoll lookups
	CreatedAt  time.Time  // when the connection was established
	LastPing   time.Time  // last activity observed from the client
	writeMu    sync.Mutex // serializes writes to this connection
	processing int32      // atomic flag: 0 = idle, 1 = being read by handleConn
}

// WriteMessage sends a WebSocket text frame. The write mutex keeps frames
// from concurrent goroutines from interleaving.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry mapping connection handles and
// file descriptors to Connection objects, with O(1) lookups by either key.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection // conn handle -> Connection
	byFd map[int]*Connection    // fd -> Connection
}

// NewConnectionManager creates an empty ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
		byFd: make(map[int]*Connection),
	}
}

// Add registers a connection in both lookup maps.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.byFd[conn.Fd] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by handle, closing the underlying socket.
// Returns false if the connection was already gone, which lets racing
// cleanup paths (read error vs. heartbeat timeout) settle on one winner.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFd, conn.Fd)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for a handle, or nil.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for a file descriptor, or nil.
func (cm *ConnectionManager) GetByFd(fd int) *Connection {
	cm.mu.RLock()
	conn := cm.byFd[fd]
	cm.mu.RUnlock()
	return conn
}

// GetByConn resolves a net.Conn to its Connection via the file descriptor.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	return cm.GetByFd(socketFD(c))
}

// Count returns the number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// Broadcast sends a frame to every connected client. Per-connection write
// errors are ignored; dead sockets are reaped by the event loop or the
// heartbeat.
func (cm *ConnectionManager) Broadcast(msg []byte) {
	for _, conn := range cm.All() {
		_ = conn.WriteMessage(msg)
	}
}

// All returns a snapshot of current connections, safe to iterate without
// holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
