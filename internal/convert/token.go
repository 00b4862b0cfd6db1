// Package convert implements the Converter component: it turns method
// arguments into wire tokens on encode, and wire tokens back into typed
// argument values on decode. Frame-level concerns (version, checksum,
// signature, compression) live in internal/wire; convert only ever sees
// the METADATA and PARAMS payloads once those layers have already been
// peeled off.
package convert

import (
	"fmt"
	"strings"

	"github.com/tcprest/tcprest-go/internal/mapper"
	"github.com/tcprest/tcprest-go/internal/security"
)

// ParamDelimiter separates param tokens inside the decoded PARAMS
// payload; an empty payload always means zero params, never a
// one-element slice holding the empty string.
const ParamDelimiter = "@@"

// Token is one parsed, not-yet-mapper-decoded parameter: the raw value
// text and the type FQN it was tagged with on the wire.
type Token struct {
	Value   string
	TypeFQN string
}

// EncodeToken renders a token in its wire shape: "{{value}}typeFQN".
func EncodeToken(value, typeFQN string) string {
	return "{{" + value + "}}" + typeFQN
}

// DecodeToken extracts {value, typeFQN} from a token's wire shape by
// taking the substring between the first "{{" and the last "}}" as the
// value and everything after the last "}}" as the type FQN.
func DecodeToken(raw string) (Token, error) {
	open := strings.Index(raw, "{{")
	closeIdx := strings.LastIndex(raw, "}}")
	if open != 0 || closeIdx < open+2 {
		return Token{}, fmt.Errorf("convert: malformed token %q", raw)
	}
	value := raw[open+2 : closeIdx]
	typeFQN := raw[closeIdx+2:]
	if typeFQN == "" {
		return Token{}, fmt.Errorf("convert: token %q missing type FQN", raw)
	}
	return Token{Value: value, TypeFQN: typeFQN}, nil
}

// EncodeParamV2 wraps one wire token in URL-safe Base64 so that the "@@"
// param delimiter and the outer frame's "|" delimiters never collide with
// braces the value itself might contain.
func EncodeParamV2(value, typeFQN string) string {
	return security.EncodeURLSafe([]byte(EncodeToken(value, typeFQN)))
}

// DecodeParamV2 reverses EncodeParamV2.
func DecodeParamV2(encoded string) (Token, error) {
	raw, err := security.DecodeURLSafe(encoded)
	if err != nil {
		return Token{}, fmt.Errorf("convert: param token not valid base64: %w", err)
	}
	return DecodeToken(string(raw))
}

// SplitParamsV2 splits a decoded v2 PARAMS payload into its per-token
// Base64 blobs and decodes each one. An empty payload decodes to zero
// tokens, never a one-element slice containing the empty string.
func SplitParamsV2(paramsPlain string) ([]Token, error) {
	if paramsPlain == "" {
		return nil, nil
	}
	parts := strings.Split(paramsPlain, ParamDelimiter)
	tokens := make([]Token, 0, len(parts))
	for _, part := range parts {
		tok, err := DecodeParamV2(part)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// JoinParamsV2 renders a slice of already-wrapped, Base64'd param blobs
// back into the decoded PARAMS payload, joined by ParamDelimiter.
func JoinParamsV2(encodedTokens []string) string {
	return strings.Join(encodedTokens, ParamDelimiter)
}

// SplitParamsLegacy parses the legacy comma-separated parameter list
// "{{v1}}t1,{{v2}}t2". A single trailing separator is trimmed before
// splitting, matching the legacy converter's tokenizer behaviour.
func SplitParamsLegacy(paramsPlain string) ([]Token, error) {
	trimmed := strings.TrimSuffix(paramsPlain, ",")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	tokens := make([]Token, 0, len(parts))
	for _, part := range parts {
		tok, err := DecodeToken(part)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// DecodeArgs maps each token's raw value text through the mapper
// registered for its type FQN, producing the typed Go argument values the
// invoker will pass to the resolved method.
func DecodeArgs(tokens []Token, mappers *mapper.Registry) ([]any, error) {
	args := make([]any, len(tokens))
	for i, tok := range tokens {
		m, err := resolveMapper(tok, mappers)
		if err != nil {
			return nil, err
		}
		value, err := m.Decode(tok.Value)
		if err != nil {
			return nil, fmt.Errorf("convert: decoding param %d (%s): %w", i, tok.TypeFQN, err)
		}
		args[i] = value
	}
	return args, nil
}

// resolveMapper implements the encode/decode fallback rule: Null for the
// null sentinel first, then an exact FQN match, then String for the
// string type.
func resolveMapper(tok Token, mappers *mapper.Registry) (mapper.Mapper, error) {
	if tok.Value == mapper.NullSentinel {
		return mappers.Null(), nil
	}
	if m, ok := mappers.Lookup(tok.TypeFQN); ok {
		return m, nil
	}
	if tok.TypeFQN == mapper.TypeString {
		if m, ok := mappers.Lookup(mapper.TypeString); ok {
			return m, nil
		}
	}
	return nil, &mapper.NotFoundError{TypeFQN: tok.TypeFQN}
}
