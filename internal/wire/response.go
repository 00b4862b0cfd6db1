package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcconfig"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
	"github.com/tcprest/tcprest-go/internal/security"
)

// ParsedResponse is the result of parsing a response frame: the wire
// version, the status code, and the still-encoded body text. What the
// body holds depends on Status: on success it is the method's
// mapper-encoded return value, decoded by DecodeValue once the caller
// supplies the return type its own stub already knows statically; on any
// other status it is "ExceptionTypeFQN:message", decoded by
// DecodeFailure.
type ParsedResponse struct {
	Version Version
	Status  rpcerrors.Status
	Body    string
}

// BuildResponseV2 assembles a "1|STATUS|BODY_B64[|CHK:...][|SIG:...]"
// response frame. body is the already-rendered wire text: the encoded
// return value on success, or "ExceptionTypeFQN:message" otherwise — see
// EncodeSuccessBody and EncodeFailureBody.
func BuildResponseV2(status rpcerrors.Status, body string, sec *SecurityContext) (string, error) {
	bodyB64 := security.EncodeURLSafe([]byte(body))
	frame := fmt.Sprintf("%d|%d|%s", int(VersionV2), int(status), bodyB64)
	return sec.Seal(frame)
}

// EncodeSuccessBody renders value as wire text using the mapper
// registered for typeFQN, or the null sentinel when value is nil.
func EncodeSuccessBody(value any, typeFQN string, mappers *mapper.Registry) (string, error) {
	if value == nil {
		return mapper.NullSentinel, nil
	}
	m, err := mappers.MustLookup(typeFQN)
	if err != nil {
		return "", err
	}
	return m.Encode(value)
}

// EncodeFailureBody folds an exception's type FQN and message into the
// one body segment a response frame carries for a non-success status.
func EncodeFailureBody(typeFQN, message string) string {
	return typeFQN + ":" + message
}

// ParseResponse parses a response frame (already stripped of any
// compression marker) into a ParsedResponse, after the same SIG/CHK
// verification ParseRequest applies. Only the "1|" (v2) version prefix is
// accepted for responses.
func ParseResponse(frame string, cfg *rpcconfig.SecurityConfig, verifier Verifier) (*ParsedResponse, error) {
	body, err := verifyAndStrip(frame, cfg, verifier)
	if err != nil {
		return nil, err
	}

	version := DetectVersion(body)
	if version != VersionV2 {
		return nil, newProtocolErrorf("response frame has no valid version prefix: %q", body)
	}

	parts := strings.SplitN(body, "|", 3)
	if len(parts) != 3 {
		return nil, newProtocolErrorf("malformed response frame: expected 3 pipe-separated segments, got %d", len(parts))
	}

	statusNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, newProtocolErrorf("response status %q is not numeric", parts[1])
	}

	bodyRaw, err := security.DecodeURLSafe(parts[2])
	if err != nil {
		return nil, newProtocolErrorf("response body is not valid base64: %v", err)
	}

	return &ParsedResponse{
		Version: version,
		Status:  rpcerrors.Status(statusNum),
		Body:    string(bodyRaw),
	}, nil
}

// DecodeValue maps the response body through the mapper registered for
// typeFQN — the caller's statically-known return type, not anything
// carried on the wire. Only meaningful when Status is StatusSuccess.
func (r *ParsedResponse) DecodeValue(typeFQN string, mappers *mapper.Registry) (any, error) {
	if r.Body == mapper.NullSentinel {
		return nil, nil
	}
	m, ok := mappers.Lookup(typeFQN)
	if !ok {
		return nil, &mapper.NotFoundError{TypeFQN: typeFQN}
	}
	return m.Decode(r.Body)
}

// DecodeFailure splits a non-success body into the exception type FQN
// and message EncodeFailureBody folded together.
func (r *ParsedResponse) DecodeFailure() (typeFQN, message string) {
	typeFQN, message, found := strings.Cut(r.Body, ":")
	if !found {
		return "", r.Body
	}
	return typeFQN, message
}
