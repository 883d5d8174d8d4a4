//go:build linux

package ws

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Epoll wraps the Linux epoll syscalls for I/O multiplexing across many
// WebSocket connections. Rather than a read goroutine per socket, file
// descriptors are registered with the kernel and the event loop is woken
// only when data is ready.
type Epoll struct {
	fd          int               // epoll file descriptor
	connections map[int]net.Conn  // fd -> net.Conn
	mu          sync.RWMutex      // protects connections
	events      []unix.EpollEvent // reusable event buffer for Wait
}

// NewEpoll creates an epoll instance via epoll_create1.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("ws: epoll_create1: %w", err)
	}
	return &Epoll{
		fd:          fd,
		connections: make(map[int]net.Conn),
		events:      make([]unix.EpollEvent, 128),
	}, nil
}

// Add registers a connection for read-readiness notifications. EPOLLRDHUP
// is included so peer half-closes wake the loop and the dead read path can
// reap the connection promptly.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLHUP | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	})
	if err != nil {
		return fmt.Errorf("ws: epoll add fd=%d: %w", fd, err)
	}

	e.mu.Lock()
	e.connections[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove drops a connection from the epoll interest list and the fd map.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(e.fd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("ws: epoll del fd=%d: %w", fd, err)
	}

	e.mu.Lock()
	delete(e.connections, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until registered connections are ready for reading and
// returns them. Descriptors removed between epoll_wait returning and the
// map lookup are skipped.
func (e *Epoll) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(e.fd, e.events, -1)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	conns := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		if conn, ok := e.connections[int(e.events[i].Fd)]; ok {
			conns = append(conns, conn)
		}
	}
	e.mu.RUnlock()
	return conns, nil
}

// Close closes the epoll file descriptor.
func (e *Epoll) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connections = nil
	return unix.Close(e.fd)
}

// socketFD extracts the file descriptor from a net.Conn through the
// SyscallConn interface, without duplicating the descriptor the way File()
// would. The original fd stays valid for epoll registration.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	var fd int
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
