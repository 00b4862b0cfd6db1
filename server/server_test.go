package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcprest/tcprest-go/client"
	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/logging"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
)

type echoResource struct{}

func (echoResource) Echo(message string) string { return message }

func (echoResource) Boom(message string) error {
	return rpcerrors.NewBusinessError("com.example.Boom", message)
}

func waitForAddr(t *testing.T, s *Server) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := s.Addr(); addr != "" {
			return addr
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server never bound a listener")
	return ""
}

func newRunningServer(t *testing.T) (*Server, func()) {
	t.Helper()
	s := New("127.0.0.1:0", logging.Noop())
	require.NoError(t, s.AddSingletonResource("tcprest.test.Echo", &echoResource{}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := s.StartBackground(ctx)
	waitForAddr(t, s)

	return s, func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	}
}

func TestServerLifecycleStartsPassiveAndTransitionsRunning(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()

	assert.Equal(t, StateRunning, s.State())
}

func TestServerGracefulStopTransitionsToClosing(t *testing.T) {
	s, stop := newRunningServer(t)
	stop()

	assert.Equal(t, StateClosing, s.State())
}

func TestServerGracefulStopIsIdempotent(t *testing.T) {
	s, stop := newRunningServer(t)
	stop()

	assert.NotPanics(t, func() {
		s.GracefulStop()
		s.Stop()
	})
}

func TestServerStartTwiceReturnsError(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()

	err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestServerStartReportsBindErrorOnOccupiedAddress(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()
	addr := s.Addr()

	other := New(addr, logging.Noop())
	err := other.Start(context.Background())
	require.Error(t, err)

	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, addr, bindErr.Address)
}

func TestServerAddResourceRejectedWhileClosing(t *testing.T) {
	s, stop := newRunningServer(t)
	stop()

	err := s.AddResource("tcprest.test.Late", &echoResource{})
	assert.Error(t, err)

	err = s.AddSingletonResource("tcprest.test.Late", &echoResource{})
	assert.Error(t, err)
}

func TestServerSnapshotReportsStateAddressAndClasses(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()

	snap := s.Snapshot()
	assert.Equal(t, "running", snap.State)
	assert.Equal(t, s.Addr(), snap.Address)
	assert.Contains(t, snap.RegisteredClasses, "tcprest.test.Echo")
	assert.GreaterOrEqual(t, snap.Uptime, time.Duration(0))
}

func TestServerEndToEndCallViaClient(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()

	c := client.New(s.Addr(), client.NetworkTCP)
	value, err := c.Call("tcprest.test.Echo", "Echo",
		[]convert.Arg{{Value: "hello", TypeFQN: mapper.TypeString}}, mapper.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestServerEndToEndBusinessErrorViaClient(t *testing.T) {
	s, stop := newRunningServer(t)
	defer stop()

	c := client.New(s.Addr(), client.NetworkTCP)
	_, err := c.Call("tcprest.test.Echo", "Boom",
		[]convert.Arg{{Value: "nope", TypeFQN: mapper.TypeString}}, mapper.TypeString)
	require.Error(t, err)

	var be *rpcerrors.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "com.example.Boom", be.TypeFQN)
}
