package wire

import (
	"strings"

	"github.com/tcprest/tcprest-go/internal/rpcconfig"
	"github.com/tcprest/tcprest-go/internal/security"
)

// SecurityContext binds a SecurityConfig to the key material and handler
// registry needed to actually seal (sign + checksum) outgoing frames and
// verify incoming ones. A nil *SecurityContext, or one with a nil Config,
// behaves as if all protections are disabled.
type SecurityContext struct {
	Config     *rpcconfig.SecurityConfig
	Signatures *security.Registry

	// SignKey is the key passed to the registered handler's Sign method
	// when sealing a frame this side originates.
	SignKey any
	// VerifyKey is the key passed to the registered handler's Verify
	// method when checking a frame this side received.
	VerifyKey any
}

func (s *SecurityContext) requiresChecksum() bool {
	return s != nil && s.Config.RequiresChecksum()
}

func (s *SecurityContext) requiresSignature() bool {
	return s != nil && s.Config.RequiresSignature()
}

// Seal appends "|CHK:..." then "|SIG:algo:..." to body as configured.
// Checksum covers body alone; signature covers body+CHK when both are
// present.
func (s *SecurityContext) Seal(body string) (string, error) {
	out := body
	if s.requiresChecksum() {
		chk, err := security.Checksum(s.Config.Checksum, s.Config.HMACSecret, []byte(out))
		if err != nil {
			return "", newProtocolErrorf("computing checksum: %v", err)
		}
		out = out + chkMarker + chk
	}
	if s.requiresSignature() {
		handler, ok := s.Signatures.Lookup(s.Config.SignatureAlgorithm)
		if !ok {
			return "", newProtocolErrorf("no signature handler registered for algorithm %q", s.Config.SignatureAlgorithm)
		}
		sig, err := handler.Sign([]byte(out), s.SignKey)
		if err != nil {
			return "", newProtocolErrorf("signing frame: %v", err)
		}
		out = out + sigMarker + s.Config.SignatureAlgorithm + ":" + security.EncodeURLSafe(sig)
	}
	return out, nil
}

// verifyAndStrip checks SIG (if required) then CHK (if required), in that
// order — signature is verified before the inner components are parsed
// (invariant I3) — and returns the frame with both segments removed.
func verifyAndStrip(frame string, cfg *rpcconfig.SecurityConfig, verifier Verifier) (string, error) {
	sec := &SecurityContext{Config: cfg}
	if verifier != nil {
		sec.Signatures = verifier.Signatures()
		sec.VerifyKey = verifier.VerifyKey()
	}
	return sec.Verify(frame)
}

// Verify reverses Seal: strips and checks SIG, then CHK, returning the
// remaining body. A frame missing a segment that configuration requires
// is a protocol error, never a silent pass-through (invariant I2).
func (s *SecurityContext) Verify(frame string) (string, error) {
	body := frame
	if s.requiresSignature() {
		remainder, sigValue, found := splitTrailingSegment(body, sigMarker)
		if !found {
			return "", newProtocolErrorf("frame is missing required signature segment")
		}
		algo, sigB64, ok := strings.Cut(sigValue, ":")
		if !ok {
			return "", newProtocolErrorf("malformed signature segment %q", sigValue)
		}
		handler, ok := s.Signatures.Lookup(algo)
		if !ok {
			return "", newProtocolErrorf("no signature handler registered for algorithm %q", algo)
		}
		sigBytes, err := security.DecodeURLSafe(sigB64)
		if err != nil {
			return "", newProtocolErrorf("signature is not valid base64: %v", err)
		}
		if err := handler.Verify([]byte(remainder), sigBytes, s.VerifyKey); err != nil {
			return "", newProtocolErrorf("signature verification failed: %v", err)
		}
		body = remainder
	}
	if s.requiresChecksum() {
		remainder, chkValue, found := splitTrailingSegment(body, chkMarker)
		if !found {
			return "", newProtocolErrorf("frame is missing required checksum segment")
		}
		ok, err := security.VerifyChecksum(s.Config.Checksum, s.Config.HMACSecret, []byte(remainder), chkValue)
		if err != nil {
			return "", newProtocolErrorf("computing checksum: %v", err)
		}
		if !ok {
			return "", newProtocolErrorf("checksum mismatch")
		}
		body = remainder
	}
	return body, nil
}

// Verifier supplies the signature registry and verification key a
// SecurityContext needs to check an incoming frame. Server and client
// each implement this trivially over their own configuration.
type Verifier interface {
	Signatures() *security.Registry
	VerifyKey() any
}
