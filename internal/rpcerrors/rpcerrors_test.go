package rpcerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOfMapsErrorKinds(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusBusiness, StatusOf(NewBusinessError("com.example.Oops", "bad input")))
	assert.Equal(t, StatusProtocol, StatusOf(NewProtocolError("malformed frame")))
	assert.Equal(t, StatusServer, StatusOf(NewServerError("com.example.Oops", "boom", nil)))
	assert.Equal(t, StatusServer, StatusOf(errors.New("some other error")))
}

func TestServerErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := NewServerError("com.example.Oops", "wrapper", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "root cause")
}

func TestTransportErrorDistinguishesTimeout(t *testing.T) {
	cause := errors.New("i/o timeout")
	timedOut := NewTransportError("read", true, cause)
	refused := NewTransportError("dial", false, cause)

	assert.Contains(t, timedOut.Error(), "timed out")
	assert.Contains(t, refused.Error(), "failed")
	assert.ErrorIs(t, timedOut, cause)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "business", StatusBusiness.String())
	assert.Equal(t, "server", StatusServer.String())
	assert.Equal(t, "protocol", StatusProtocol.String())
	assert.Equal(t, "unknown", Status(99).String())
}
