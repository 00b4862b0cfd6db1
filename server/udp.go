package server

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UDPServer is the UDP transport variant: the TCP contract degraded to
// a single-datagram request/response without the accept step — one
// packet in, one packet out, no connection, no per-connection goroutine.
// It shares a Server's resource registry, mapper registry, and
// security/compression configuration, so the same resources can be
// served over both transports at once.
type UDPServer struct {
	core *Server

	address string
	mu      sync.Mutex
	conn    *net.UDPConn
	closed  bool
	wg      sync.WaitGroup
}

// NewUDPServer wraps core (already configured with resources, mappers,
// security, and compression) to also serve requests over UDP at address.
func NewUDPServer(core *Server, address string) *UDPServer {
	return &UDPServer{core: core, address: address}
}

// Start binds the UDP socket and loops reading one datagram, processing
// it through the same parse/dispatch/encode pipeline as the TCP server,
// and replying to the sender with one datagram. It blocks until Stop
// closes the socket.
func (u *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", u.address)
	if err != nil {
		return fmt.Errorf("server: resolve udp address %q: %w", u.address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("server: listen udp on %q: %w", u.address, err)
	}

	u.mu.Lock()
	u.conn = conn
	u.mu.Unlock()

	u.core.logger.Info("udp_server_started", "address", conn.LocalAddr().String())

	buf := make([]byte, 64*1024)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			u.mu.Lock()
			closed := u.closed
			u.mu.Unlock()
			if closed {
				return nil
			}
			u.core.logger.Error("udp_read_failed", "error", err.Error())
			continue
		}

		frame := strings.TrimRight(string(buf[:n]), "\r\n")
		u.wg.Add(1)
		go u.respond(conn, clientAddr, frame)
	}
}

func (u *UDPServer) respond(conn *net.UDPConn, clientAddr *net.UDPAddr, frame string) {
	defer u.wg.Done()
	datagramLogger := u.core.logger.Bind("datagram_id", uuid.New().String(), "remote", clientAddr.String())
	response := u.core.process(frame, datagramLogger)
	if _, err := conn.WriteToUDP([]byte(response+"\n"), clientAddr); err != nil {
		u.core.logger.Debug("udp_write_failed", "error", err.Error())
	}
}

// Stop closes the UDP socket and waits up to timeout for in-flight
// datagram handlers, mirroring Server.GracefulStop's bound.
func (u *UDPServer) Stop(timeout time.Duration) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return
	}
	u.closed = true
	conn := u.conn
	u.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		u.core.logger.Warn("udp_shutdown_timeout", "timeout_ms", timeout.Milliseconds())
	}
}
