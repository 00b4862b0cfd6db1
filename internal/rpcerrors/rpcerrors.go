// Package rpcerrors defines the sum-type result of a dispatched call.
//
// Every exception class the Java source threw is collapsed here into three
// wire-level error kinds plus success, matching protocol v2's STATUS byte:
// Business (1), Server (2), Protocol (3). Each is a distinct Go type so
// callers can use errors.As to recover the original type FQN and message
// the way a Java client would catch a typed exception.
package rpcerrors

import "fmt"

// Status is the v2 wire status code.
type Status int

const (
	StatusSuccess Status = 0
	StatusBusiness Status = 1
	StatusServer   Status = 2
	StatusProtocol Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBusiness:
		return "business"
	case StatusServer:
		return "server"
	case StatusProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// BusinessError surfaces a declared exception thrown by user resource code.
// It is replayed to the client as-is (STATUS=1).
type BusinessError struct {
	TypeFQN string
	Message string
}

func (e *BusinessError) Error() string { return fmt.Sprintf("%s: %s", e.TypeFQN, e.Message) }

func NewBusinessError(typeFQN, message string) *BusinessError {
	return &BusinessError{TypeFQN: typeFQN, Message: message}
}

// ServerError covers instantiation/access failures and unanticipated
// runtime failures on the server (STATUS=2).
type ServerError struct {
	TypeFQN string
	Message string
	Cause   error
}

func (e *ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.TypeFQN, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.TypeFQN, e.Message)
}

func (e *ServerError) Unwrap() error { return e.Cause }

func NewServerError(typeFQN, message string, cause error) *ServerError {
	return &ServerError{TypeFQN: typeFQN, Message: message, Cause: cause}
}

// ProtocolError covers malformed frames, invalid identifiers, arity
// mismatches, checksum/signature failures, whitelist rejection, and
// missing mappers (STATUS=3). It never carries a partial dispatch result.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

func NewProtocolError(reason string) *ProtocolError {
	return &ProtocolError{Reason: reason}
}

// TransportError is never put on the wire; it represents a failure of the
// underlying connection itself (refused, reset, timed out) and is
// surfaced to the client caller with its original cause intact, distinct
// from a protocol-level STATUS=3 response.
type TransportError struct {
	Op      string
	Timeout bool
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tcprest: %s timed out: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("tcprest: %s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func NewTransportError(op string, timeout bool, cause error) *TransportError {
	return &TransportError{Op: op, Timeout: timeout, Cause: cause}
}

// StatusOf maps an error produced by the dispatch core to its wire status.
// A nil error maps to StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	switch err.(type) {
	case *BusinessError:
		return StatusBusiness
	case *ProtocolError:
		return StatusProtocol
	default:
		return StatusServer
	}
}
