// Package ws is the WebSocket edge: it admits authenticated connections,
// registers them with a Linux epoll instance for I/O readiness, reads frames
// on a bounded worker pool, and hands parsed traffic to the application
// layer. All session semantics live above this package; ws only knows
// connection handles and the user identity proven at admission.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
)

// TokenVerifier validates an admission credential and returns the user
// identity it asserts. Implemented by the auth package.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket server built on gobwas/ws and Linux epoll. It
// upgrades HTTP connections, registers them with epoll for readiness
// notifications, and dispatches ready connections to a bounded worker pool
// for frame reading. Unauthenticated upgrade attempts are rejected before
// any connection state is created.
type Server struct {
	config       ServerConfig
	epoll        *Epoll
	conns        *ConnectionManager
	verifier     TokenVerifier
	workerPool   chan struct{}                       // semaphore limiting concurrent read workers
	onMessage    func(conn *Connection, data []byte) // message handler callback
	onConnect    func(connID, userID string)         // called after a connection is admitted
	onDisconnect func(connID string)                 // called when a connection is removed
	httpServer   *http.Server
	extraRoutes  map[string]http.Handler
	done         chan struct{}
	startedAt    time.Time
}

// NewServer creates a Server with the given configuration, token verifier,
// and message callback. The onMessage function is called from a worker
// goroutine whenever a complete WebSocket text frame arrives.
func NewServer(config ServerConfig, verifier TokenVerifier, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:      config,
		conns:       NewConnectionManager(),
		verifier:    verifier,
		workerPool:  make(chan struct{}, config.WorkerPoolSize),
		onMessage:   onMessage,
		extraRoutes: make(map[string]http.Handler),
		done:        make(chan struct{}),
	}
}

// SetOnConnect registers a callback invoked after a connection has been
// admitted and registered. It runs before the client can send any frame.
func (s *Server) SetOnConnect(fn func(connID, userID string)) {
	s.onConnect = fn
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// (read error, heartbeat timeout, or graceful close).
func (s *Server) SetOnDisconnect(fn func(connID string)) {
	s.onDisconnect = fn
}

// Handle mounts an extra HTTP handler (e.g. the metrics endpoint) on the
// server's mux. Must be called before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.extraRoutes[pattern] = h
}

// Start initializes epoll, configures the HTTP server, and begins accepting
// WebSocket connections. It blocks on http.Server.ListenAndServe.
func (s *Server) Start() error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	for pattern, h := range s.extraRoutes {
		mux.Handle(pattern, h)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	go s.startEventLoop()

	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("ws: server listening on %s (workers=%d, max_conns=%d)",
		s.config.ListenAddr, s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// admissionToken extracts the credential from the upgrade request: the
// Authorization bearer header or, for browser WebSocket clients that cannot
// set headers, the token query parameter.
func admissionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// handleUpgrade authenticates the request and upgrades it to a WebSocket
// connection. The credential check happens before the upgrade, so rejected
// clients get a plain HTTP status and no connection state is ever created
// for them.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	token := admissionToken(r)
	if token == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	userID, err := s.verifier.Verify(token)
	if err != nil {
		log.Printf("ws: admission rejected: %v", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed for user=%s: %v", userID, err)
		return
	}

	fd := socketFD(conn)
	connID := uuid.New().String()

	c := &Connection{
		ID:        connID,
		UserID:    userID,
		Conn:      conn,
		Fd:        fd,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}

	s.conns.Add(c)
	if err := s.epoll.Add(conn); err != nil {
		log.Printf("ws: epoll add failed for conn=%s: %v", connID, err)
		s.conns.Remove(connID)
		return
	}

	if s.onConnect != nil {
		s.onConnect(connID, userID)
	}

	log.Printf("ws: new connection conn=%s user=%s fd=%d (total=%d)", connID, userID, fd, s.conns.Count())
}

// handleHealth reports connection count and uptime as JSON for load-balancer
// health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop runs the epoll wait loop, dispatching each ready connection
// to a worker goroutine bounded by the pool semaphore.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				// EINTR is expected during signal handling.
				if isEINTR(err) {
					continue
				}
				log.Printf("ws: epoll wait error: %v", err)
				continue
			}
		}

		for _, conn := range conns {
			conn := conn

			s.workerPool <- struct{}{}

			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads a single WebSocket frame from a ready connection using
// wsutil.NextReader so control frames are handled without blocking on a data
// frame that may never arrive. Read failures remove the connection.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}

	// Guard against duplicate dispatch from level-triggered epoll.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
	if err != nil {
		// A read timeout means no data was available (stale epoll
		// dispatch); the heartbeat handles genuinely dead connections.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})

	// Any frame proves the connection is alive.
	c.LastPing = time.Now()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
		}
		return
	}

	data := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, data); err != nil {
			s.RemoveConnection(c)
			return
		}
	}

	if len(data) == 0 {
		return
	}

	if s.onMessage != nil {
		s.onMessage(c, data)
	}
}

// RemoveConnection removes a connection from epoll and the manager and
// closes the socket. Exported so the heartbeat monitor can evict dead
// connections.
func (s *Server) RemoveConnection(c *Connection) {
	_ = s.epoll.Remove(c.Conn)

	// Only the goroutine that actually removed the entry runs teardown;
	// this settles races between read errors and heartbeat timeouts.
	if !s.conns.Remove(c.ID) {
		return
	}

	if s.onDisconnect != nil {
		s.onDisconnect(c.ID)
	}

	log.Printf("ws: connection closed conn=%s user=%s (total=%d)", c.ID, c.UserID, s.conns.Count())
}

// SendMessage writes a WebSocket text frame to the connection identified by
// connID. Goroutine-safe thanks to the per-connection write mutex.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", connID)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear the deadline so it does not affect later writes.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Broadcast writes a text frame to every connected client.
func (s *Server) Broadcast(data []byte) {
	s.conns.Broadcast(data)
}

// Connections returns the ConnectionManager for external access to
// connection state.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown gracefully stops the server: the HTTP listener, the event loop,
// all active connections, and the epoll instance.
func (s *Server) Shutdown() error {
	log.Println("ws: shutting down server...")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("ws: http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		_ = s.epoll.Remove(c.Conn)
		c.Close()
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}

// isEINTR reports whether the error is an interrupted syscall, which is
// expected during signal handling and should be retried.
func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "interrupted system call" ||
		err.Error() == "errno 4"
}
