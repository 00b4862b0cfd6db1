package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcprest/tcprest-go/annotation"
	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
	"github.com/tcprest/tcprest-go/internal/wire"
)

func TestNewClientDefaults(t *testing.T) {
	c := New("127.0.0.1:7777", NetworkTCP)
	assert.Equal(t, annotation.DefaultTimeout, c.timeoutFor("AnyMethod"))
}

func TestSetMethodTimeoutOverridesDefault(t *testing.T) {
	c := New("127.0.0.1:7777", NetworkTCP)
	c.SetMethodTimeout("SlowOp", 2*time.Second)

	assert.Equal(t, 2*time.Second, c.timeoutFor("SlowOp"))
	assert.Equal(t, annotation.DefaultTimeout, c.timeoutFor("OtherOp"))
}

func TestSetDefaultTimeoutAppliesToUnconfiguredMethods(t *testing.T) {
	c := New("127.0.0.1:7777", NetworkTCP)
	c.SetDefaultTimeout(500 * time.Millisecond)

	assert.Equal(t, 500*time.Millisecond, c.timeoutFor("AnyMethod"))
}

func TestCallFailsWithTransportErrorWhenServerUnreachable(t *testing.T) {
	c := New("127.0.0.1:1", NetworkTCP)
	c.SetDefaultTimeout(200 * time.Millisecond)

	_, err := c.Call("com.example.Greeter", "greet",
		[]convert.Arg{{Value: "world", TypeFQN: mapper.TypeString}}, mapper.TypeString)
	require.Error(t, err)

	var te *rpcerrors.TransportError
	require.ErrorAs(t, err, &te)
}

func TestReconstructErrorMapsStatusToErrorKind(t *testing.T) {
	business := reconstructError(&wire.ParsedResponse{
		Status: rpcerrors.StatusBusiness,
		Body:   wire.EncodeFailureBody("com.example.BadInput", "bad input"),
	})
	var be *rpcerrors.BusinessError
	require.ErrorAs(t, business, &be)
	assert.Equal(t, "com.example.BadInput", be.TypeFQN)

	protocol := reconstructError(&wire.ParsedResponse{
		Status: rpcerrors.StatusProtocol,
		Body:   wire.EncodeFailureBody("", "malformed frame"),
	})
	var pe *rpcerrors.ProtocolError
	require.ErrorAs(t, protocol, &pe)

	serverErr := reconstructError(&wire.ParsedResponse{
		Status: rpcerrors.StatusServer,
		Body:   wire.EncodeFailureBody("com.example.Oops", "boom"),
	})
	var se *rpcerrors.ServerError
	require.ErrorAs(t, serverErr, &se)
}

func TestRoundTripUnreachableServerReturnsTransportError(t *testing.T) {
	c := New("127.0.0.1:1", NetworkTCP)
	c.SetDefaultTimeout(50 * time.Millisecond)

	_, err := c.roundTrip("AnyMethod", "1|dGVzdA==|dGVzdA==")
	require.Error(t, err)

	var te *rpcerrors.TransportError
	require.ErrorAs(t, err, &te)
}
