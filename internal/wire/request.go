package wire

import (
	"fmt"
	"strings"

	"github.com/tcprest/tcprest-go/internal/convert"
	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/rpcconfig"
	"github.com/tcprest/tcprest-go/internal/rpcerrors"
	"github.com/tcprest/tcprest-go/internal/security"
)

// newProtocolErrorf builds a *rpcerrors.ProtocolError from a formatted
// reason; every malformed-frame path in this package returns through it.
func newProtocolErrorf(format string, args ...any) error {
	return rpcerrors.NewProtocolError(fmt.Sprintf(format, args...))
}

// ParsedRequest is the result of parsing a request frame up to (but not
// including) mapper-level argument decoding — that happens once the
// dispatch core has resolved the overload and knows the target method's
// declared parameter types.
type ParsedRequest struct {
	Version  Version
	ClassFQN string
	Method   string
	// ParamTokens holds the raw {value, typeFQN} pairs for every param
	// in the order they appeared on the wire.
	ParamTokens []convert.Token
}

// BuildRequestV2 assembles a "V|META_B64|PARAMS_B64[|CHK:...][|SIG:...]"
// frame. The caller is responsible for GZIP-wrapping the result at the
// transport boundary if compression is configured.
func BuildRequestV2(classFQN, method string, args []convert.Arg, mappers *mapper.Registry, sec *SecurityContext) (string, error) {
	metaB64 := security.EncodeURLSafe([]byte(convert.Metadata(classFQN, method)))
	paramsPlain, err := convert.EncodeArgsV2(args, mappers)
	if err != nil {
		return "", err
	}
	paramsB64 := security.EncodeURLSafe([]byte(paramsPlain))

	body := fmt.Sprintf("%d|%s|%s", int(VersionV2), metaB64, paramsB64)
	return sec.Seal(body)
}

// BuildRequestLegacy assembles the legacy "ClassFQN/methodName(tok,tok)" shape.
func BuildRequestLegacy(classFQN, method string, args []convert.Arg, mappers *mapper.Registry) (string, error) {
	paramsPlain, err := convert.EncodeArgsLegacy(args, mappers)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s(%s)", classFQN, method, paramsPlain), nil
}

// ParseRequest parses a frame (already stripped of any compression
// marker by the transport boundary) into a ParsedRequest, performing
// signature verification, checksum verification, version detection,
// identifier validation, and whitelist enforcement along the way. It does
// NOT resolve the target class/method against a registry, nor decode
// param values through mappers — see internal/dispatch for that.
func ParseRequest(frame string, cfg *rpcconfig.SecurityConfig, verifier Verifier) (*ParsedRequest, error) {
	body, err := verifyAndStrip(frame, cfg, verifier)
	if err != nil {
		return nil, err
	}

	version := DetectVersion(body)
	if version == VersionLegacy {
		return parseLegacyRequest(body, cfg)
	}
	return parseV2Request(body, version, cfg)
}

func parseV2Request(body string, version Version, cfg *rpcconfig.SecurityConfig) (*ParsedRequest, error) {
	parts := strings.SplitN(body, "|", 3)
	if len(parts) != 3 {
		return nil, newProtocolErrorf("malformed v2 request frame: expected 3 pipe-separated segments, got %d", len(parts))
	}

	metaRaw, err := security.DecodeURLSafe(parts[1])
	if err != nil {
		return nil, newProtocolErrorf("metadata is not valid base64: %v", err)
	}
	classFQN, method, err := splitMetadata(string(metaRaw))
	if err != nil {
		return nil, err
	}
	if err := validateIdentifiers(classFQN, method, cfg); err != nil {
		return nil, err
	}

	paramsRaw, err := security.DecodeURLSafe(parts[2])
	if err != nil {
		return nil, newProtocolErrorf("params is not valid base64: %v", err)
	}
	tokens, err := convert.SplitParamsV2(string(paramsRaw))
	if err != nil {
		return nil, newProtocolErrorf("malformed param tokens: %v", err)
	}

	return &ParsedRequest{Version: version, ClassFQN: classFQN, Method: method, ParamTokens: tokens}, nil
}

func parseLegacyRequest(body string, cfg *rpcconfig.SecurityConfig) (*ParsedRequest, error) {
	openParen := strings.Index(body, "(")
	if openParen < 0 || !strings.HasSuffix(body, ")") {
		return nil, newProtocolErrorf("malformed legacy request frame: %q", body)
	}
	head := body[:openParen]
	paramsPlain := body[openParen+1 : len(body)-1]

	classFQN, method, err := splitMetadata(head)
	if err != nil {
		return nil, err
	}
	if err := validateIdentifiers(classFQN, method, cfg); err != nil {
		return nil, err
	}

	tokens, err := convert.SplitParamsLegacy(paramsPlain)
	if err != nil {
		return nil, newProtocolErrorf("malformed legacy param tokens: %v", err)
	}

	return &ParsedRequest{Version: VersionLegacy, ClassFQN: classFQN, Method: method, ParamTokens: tokens}, nil
}

func splitMetadata(metadata string) (classFQN, method string, err error) {
	idx := strings.LastIndex(metadata, "/")
	if idx < 0 {
		return "", "", newProtocolErrorf("metadata %q missing class/method separator", metadata)
	}
	return metadata[:idx], metadata[idx+1:], nil
}

func validateIdentifiers(classFQN, method string, cfg *rpcconfig.SecurityConfig) error {
	if !IsValidClassName(classFQN) {
		return newProtocolErrorf("invalid class name %q", classFQN)
	}
	if !IsValidMethodName(method) {
		return newProtocolErrorf("invalid method name %q", method)
	}
	if cfg != nil && !cfg.IsWhitelisted(classFQN) {
		return newProtocolErrorf("class %q is not in the configured whitelist", classFQN)
	}
	return nil
}
