// Package server implements the connection server loop: a blocking
// accept loop over one-shot TCP connections (one request line, one
// response line, close), with a PASSIVE -> RUNNING -> CLOSING lifecycle
// and idempotent, bounded-timeout graceful shutdown. Grounded on
// coreengine/grpc.GracefulServer's shutdownMu/isShutdown idiom, adapted
// from wrapping a grpc.Server to driving a raw net.Listener accept loop.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tcprest/tcprest-go/internal/admin"
	"github.com/tcprest/tcprest-go/internal/compress"
	"github.com/tcprest/tcprest-go/internal/dispatch"
	"github.com/tcprest/tcprest-go/internal/logging"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcconfig"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
	"github.com/tcprest/tcprest-go/internal/security"
	"github.com/tcprest/tcprest-go/internal/wire"
)

// State is one of the three lifecycle states a Server moves through.
// It never re-enters Running after Closing.
type State int32

const (
	StatePassive State = iota
	StateRunning
	StateClosing
)

func (s State) String() string {
	switch s {
	case StatePassive:
		return "passive"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Hooks lets embedders observe dispatch outcomes (metrics, tracing)
// without this package importing internal/observability directly.
type Hooks interface {
	RequestReceived(classFQN, method string)
	RequestCompleted(classFQN, method string, status rpcerrors.Status, duration time.Duration)
}

type noopHooks struct{}

func (noopHooks) RequestReceived(string, string)                              {}
func (noopHooks) RequestCompleted(string, string, rpcerrors.Status, time.Duration) {}

// Server is the TCPREST connection server: resource registry, wire
// security/compression configuration, and the accept loop itself.
type Server struct {
	logger logging.Logger
	hooks  Hooks

	registry    *dispatch.Registry
	mappers     *mapper.Registry
	security    *rpcconfig.SecurityConfig
	compression *rpcconfig.CompressionConfig
	signatures  *security.Registry

	// SignKey signs outgoing responses; VerifyKey verifies incoming
	// request signatures. Both nil unless signing is configured.
	signKey, verifyKey any

	address         string
	shutdownTimeout time.Duration

	mu         sync.Mutex
	state      State
	listener   net.Listener
	isShutdown bool
	startedAt  time.Time

	activeConns int64

	wg sync.WaitGroup
}

// New creates a Server bound to address, unstarted (PASSIVE).
func New(address string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Noop()
	}
	return &Server{
		logger:          logger,
		hooks:           noopHooks{},
		registry:        dispatch.NewRegistry(),
		mappers:         mapper.NewRegistry(),
		security:        rpcconfig.DefaultSecurityConfig(),
		compression:     rpcconfig.DefaultCompressionConfig(),
		signatures:      security.NewRegistry(),
		address:         address,
		shutdownTimeout: 5 * time.Second,
	}
}

// SetHooks installs an observability Hooks implementation.
func (s *Server) SetHooks(h Hooks) {
	if h == nil {
		h = noopHooks{}
	}
	s.hooks = h
}

// SetShutdownTimeout overrides the default 5s bound GracefulStop waits for
// in-flight connections after closing the listener.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

// SetSecurityConfig installs the checksum/signature/whitelist policy.
func (s *Server) SetSecurityConfig(cfg *rpcconfig.SecurityConfig) {
	s.security = cfg
}

// SetCompressionConfig installs the GZIP policy.
func (s *Server) SetCompressionConfig(cfg *rpcconfig.CompressionConfig) {
	s.compression = cfg
}

// SetKeys installs the server's own signing key (for responses) and the
// counterpart public key used to verify request signatures.
func (s *Server) SetKeys(signKey, verifyKey any) {
	s.signKey = signKey
	s.verifyKey = verifyKey
}

// RegisterMapper adds a value codec for typeFQN.
func (s *Server) RegisterMapper(typeFQN string, m mapper.Mapper) {
	s.mappers.Register(typeFQN, m)
}

// RegisterSignatureHandler adds a signing algorithm to the server's
// capability registry.
func (s *Server) RegisterSignatureHandler(h security.SignatureHandler) error {
	return s.signatures.Register(h)
}

// AddResource registers a class-only resource, instantiated fresh per
// dispatch. Valid only while the server is PASSIVE or RUNNING.
func (s *Server) AddResource(classFQN string, zeroValue any) error {
	if s.State() == StateClosing {
		return fmt.Errorf("server: cannot add resource %q while closing", classFQN)
	}
	return s.registry.AddResource(classFQN, zeroValue)
}

// AddSingletonResource registers a singleton resource shared across every
// dispatch. Valid only while the server is PASSIVE or RUNNING.
func (s *Server) AddSingletonResource(classFQN string, instance any) error {
	if s.State() == StateClosing {
		return fmt.Errorf("server: cannot add resource %q while closing", classFQN)
	}
	return s.registry.AddSingleton(classFQN, instance)
}

// State reports the server's current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Snapshot returns a read-only view of the server's current lifecycle
// state, registered resource classes, and live connection count, for
// startup logging or local debugging. It is not exposed over the wire.
func (s *Server) Snapshot() admin.Snapshot {
	s.mu.Lock()
	state := s.state
	startedAt := s.startedAt
	var addr string
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	s.mu.Unlock()

	var uptime time.Duration
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	return admin.Snapshot{
		State:             state.String(),
		Address:           addr,
		RegisteredClasses: s.registry.ClassNames(),
		ActiveConnections: atomic.LoadInt64(&s.activeConns),
		Uptime:            uptime,
	}
}

// Signatures implements wire.Verifier.
func (s *Server) Signatures() *security.Registry { return s.signatures }

// VerifyKey implements wire.Verifier.
func (s *Server) VerifyKey() any { return s.verifyKey }

func (s *Server) securityContext() *wire.SecurityContext {
	return &wire.SecurityContext{
		Config:     s.security,
		Signatures: s.signatures,
		SignKey:    s.signKey,
		VerifyKey:  s.verifyKey,
	}
}

// BindError reports a failure to bind the listening socket, kept distinct
// from other initialisation failures so a CLI entry point can exit with a
// different status code for "address already in use" than for a generic
// configuration error.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: bind %q: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Start transitions PASSIVE -> RUNNING, binds the listener, and runs the
// accept loop until the listener is closed by GracefulStop/Stop or ctx is
// cancelled. It returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePassive {
		s.mu.Unlock()
		return fmt.Errorf("server: Start called in state %s, want %s", s.state, StatePassive)
	}
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		s.mu.Unlock()
		return &BindError{Address: s.address, Err: err}
	}
	s.listener = lis
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("server_started", "address", lis.Addr().String())

	if ctx != nil {
		go func() {
			<-ctx.Done()
			s.GracefulStop()
		}()
	}

	for {
		conn, err := lis.Accept()
		if err != nil {
			if s.State() == StateClosing {
				return nil
			}
			s.logger.Error("accept_failed", "error", err.Error())
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// StartBackground runs Start in a goroutine and reports errors on the
// returned channel, which is closed once the accept loop exits.
func (s *Server) StartBackground(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(ctx); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// handleConn implements the one-shot per-connection contract: read one
// line, process, write one response line, close. An I/O failure closes
// only this connection — an I/O failure never propagates out of the
// accept loop, it just terminates the one connection that hit it.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	atomic.AddInt64(&s.activeConns, 1)
	defer atomic.AddInt64(&s.activeConns, -1)

	connID := uuid.New().String()
	connLogger := s.logger.Bind("conn_id", connID)
	connLogger.Debug("connection_accepted", "remote", conn.RemoteAddr().String())

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		connLogger.Debug("connection_read_failed", "error", err.Error())
		return
	}
	frame := strings.TrimRight(line, "\r\n")

	response := s.process(frame, connLogger)
	if _, err := conn.Write([]byte(response + "\n")); err != nil {
		connLogger.Debug("connection_write_failed", "error", err.Error())
	}
}

// process runs the full decompress -> parse -> dispatch -> encode
// pipeline for one request frame and always returns a complete response
// frame, never propagating an error out to the caller. logger carries the
// connection's correlation ID and is further bound with a request ID once
// the frame is known to be a well-formed request.
func (s *Server) process(frame string, logger logging.Logger) string {
	start := time.Now()

	plain, err := compress.Unwrap(frame)
	if err != nil {
		return s.errorResponse(rpcerrors.NewProtocolError(fmt.Sprintf("decompressing frame: %v", err)), logger)
	}

	parsed, err := wire.ParseRequest(string(plain), s.security, s)
	if err != nil {
		return s.errorResponse(err, logger)
	}

	reqLogger := logger.Bind("request_id", uuid.New().String(), "class", parsed.ClassFQN, "method", parsed.Method)
	reqLogger.Debug("request_dispatching")

	s.hooks.RequestReceived(parsed.ClassFQN, parsed.Method)

	result, err := dispatch.Dispatch(s.registry, parsed.ClassFQN, parsed.Method, parsed.ParamTokens, s.mappers)
	status := rpcerrors.StatusOf(err)
	s.hooks.RequestCompleted(parsed.ClassFQN, parsed.Method, status, time.Since(start))

	if err != nil {
		reqLogger.Debug("request_failed", "status", status.String(), "error", err.Error())
		return s.errorResponse(err, reqLogger)
	}
	reqLogger.Debug("request_completed", "status", status.String())
	return s.successResponse(result, reqLogger)
}

func (s *Server) successResponse(result *dispatch.Result, logger logging.Logger) string {
	body, err := wire.EncodeSuccessBody(result.Value, result.TypeFQN, s.mappers)
	if err != nil {
		return s.fallbackErrorFrame(fmt.Sprintf("encoding response: %v", err), logger)
	}
	frame, err := wire.BuildResponseV2(rpcerrors.StatusSuccess, body, s.securityContext())
	if err != nil {
		return s.fallbackErrorFrame(fmt.Sprintf("sealing response: %v", err), logger)
	}
	wrapped, err := compress.Wrap(s.compression, []byte(frame))
	if err != nil {
		return s.fallbackErrorFrame(fmt.Sprintf("compressing response: %v", err), logger)
	}
	return wrapped
}

func (s *Server) errorResponse(err error, logger logging.Logger) string {
	status := rpcerrors.StatusOf(err)
	typeFQN, message := errorTypeAndMessage(err)
	body := wire.EncodeFailureBody(typeFQN, message)

	frame, buildErr := wire.BuildResponseV2(status, body, s.securityContext())
	if buildErr != nil {
		return s.fallbackErrorFrame(fmt.Sprintf("%s: %v (also failed to encode: %v)", typeFQN, message, buildErr), logger)
	}
	wrapped, wrapErr := compress.Wrap(s.compression, []byte(frame))
	if wrapErr != nil {
		return s.fallbackErrorFrame(fmt.Sprintf("%s: %v (also failed to compress: %v)", typeFQN, message, wrapErr), logger)
	}
	return wrapped
}

// fallbackErrorFrame is the last resort when even error-response encoding
// fails; it skips GZIP and security sealing, carrying only the "0|"
// uncompressed marker, so a client that requires no checksum or signature
// still gets a parseable, if minimal, protocol-error frame.
func (s *Server) fallbackErrorFrame(reason string, logger logging.Logger) string {
	logger.Error("response_encoding_failed", "reason", reason)
	return fmt.Sprintf("0|%d|%d|%s", int(wire.VersionV2), int(rpcerrors.StatusProtocol), "")
}

func errorTypeAndMessage(err error) (typeFQN, message string) {
	switch e := err.(type) {
	case *rpcerrors.BusinessError:
		return e.TypeFQN, e.Message
	case *rpcerrors.ServerError:
		return e.TypeFQN, e.Message
	case *rpcerrors.ProtocolError:
		return "ProtocolError", e.Reason
	default:
		return "ServerError", err.Error()
	}
}

// Stop immediately closes the listener without waiting for in-flight
// connections. Use GracefulStop in production; idempotent like it.
func (s *Server) Stop() {
	s.shutdown(0)
}

// GracefulStop transitions RUNNING -> CLOSING, closes the listener to
// unblock accept, and waits up to the configured shutdown timeout
// (default 5s) for in-flight handlers to finish.
// Safe to call more than once; only the first call has any effect.
func (s *Server) GracefulStop() {
	s.shutdown(s.shutdownTimeout)
}

func (s *Server) shutdown(timeout time.Duration) {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.state = StateClosing
	lis := s.listener
	s.mu.Unlock()

	s.logger.Info("server_shutdown_initiated")

	if lis != nil {
		_ = lis.Close()
	}

	if timeout <= 0 {
		s.logger.Info("server_shutdown_completed")
		return
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server_shutdown_completed")
	case <-time.After(timeout):
		s.logger.Warn("server_shutdown_timeout", "timeout_ms", timeout.Milliseconds())
	}
}
