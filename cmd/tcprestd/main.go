// Command tcprestd runs a standalone TCPREST server process: a bind
// address and a fixed set of example resources, suitable as a sidecar or
// smoke-test target. Real deployments embed package server directly and
// register their own resources; this binary exists so the framework has a
// runnable reference the way coreengine/grpc ships cmd/main.go.
//
// Usage:
//
//	go run ./cmd/tcprestd                 # binds :7777
//	go run ./cmd/tcprestd -addr :9000
//	go build -o tcprestd ./cmd/tcprestd && ./tcprestd -addr :9000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcprest/tcprest-go/internal/admin"
	"github.com/tcprest/tcprest-go/internal/logging"
	"github.com/tcprest/tcprest-go/internal/observability"
	"github.com/tcprest/tcprest-go/internal/rpcconfig"
	"github.com/tcprest/tcprest-go/server"
)

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// exampleEchoService is the one resource tcprestd registers out of the box,
// so a freshly built binary has something to dispatch to. Real deployments
// register their own resources against package server directly.
type exampleEchoService struct{}

func (exampleEchoService) Echo(message string) string { return message }

func main() {
	os.Exit(run())
}

// run contains everything main would otherwise do inline, so defers (like
// tracer shutdown) fire before the process exits.
func run() int {
	addr := flag.String("addr", ":7777", "TCP bind address")
	udpAddr := flag.String("udp-addr", "", "UDP bind address (empty disables the UDP listener)")
	shutdownMS := flag.Int("shutdown-timeout-ms", 5000, "graceful shutdown bound in milliseconds")
	tracingEndpoint := flag.String("otlp-endpoint", "", "OTLP/gRPC collector endpoint (empty disables tracing)")
	flag.Parse()

	logger := logging.NewStdLogger()
	logger.Info("tcprestd_starting", "addr", *addr)

	if *tracingEndpoint != "" {
		shutdown, err := observability.InitTracer("tcprestd", *tracingEndpoint)
		if err != nil {
			logger.Error("tracer_init_failed", "error", err.Error())
			return 1
		}
		defer shutdown(context.Background())
	}

	srv := server.New(*addr, logger)
	srv.SetHooks(observability.NewMetrics())
	srv.SetShutdownTimeout(msToDuration(*shutdownMS))
	srv.SetSecurityConfig(rpcconfig.DefaultSecurityConfig())
	srv.SetCompressionConfig(rpcconfig.DefaultCompressionConfig())

	if err := srv.AddSingletonResource("tcprest.example.EchoService", &exampleEchoService{}); err != nil {
		logger.Error("resource_registration_failed", "error", err.Error())
		return 1
	}

	var udp *server.UDPServer
	if *udpAddr != "" {
		udp = server.NewUDPServer(srv, *udpAddr)
		go func() {
			if err := udp.Start(); err != nil {
				logger.Error("udp_server_failed", "error", err.Error())
			}
		}()
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := srv.StartBackground(ctx)

	snap := srv.Snapshot()
	logSnapshot(logger, snap)
	fmt.Printf("tcprestd listening on %s (Ctrl+C to stop)\n", *addr)

	err := <-errCh

	if udp != nil {
		udp.Stop(msToDuration(*shutdownMS))
	}

	if err != nil {
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			logger.Error("bind_failed", "error", err.Error())
			return 2
		}
		logger.Error("server_failed", "error", err.Error())
		return 1
	}

	logger.Info("tcprestd_stopped")
	return 0
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func logSnapshot(logger logging.Logger, snap admin.Snapshot) {
	logger.Info("tcprestd_ready",
		"state", snap.State,
		"address", snap.Address,
		"resources", snap.RegisteredClasses,
	)
}
