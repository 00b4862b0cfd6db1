package convert

import (
	"fmt"

	"github.com/tcprest/tcprest-go/internal/mapper"
)

// Arg is one call argument paired with the type FQN it should be encoded
// as. TypeFQN is explicit rather than discovered via Go reflection over
// interface{} because the same Go value (e.g. int) may need to travel as
// different wire types depending on the declared method signature.
type Arg struct {
	Value   any
	TypeFQN string
}

// Metadata renders the METADATA component: "ClassFQN/methodName".
func Metadata(classFQN, method string) string {
	return classFQN + "/" + method
}

// EncodeArgsV2 renders args as the decoded v2 PARAMS payload: each
// argument becomes a Base64-wrapped token, joined by "@@".
// A nil Value is always encoded through the null mapper regardless of its
// declared TypeFQN, so the wire carries NullSentinel rather than a
// type-mismatched mapper error.
func EncodeArgsV2(args []Arg, mappers *mapper.Registry) (string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		token, err := encodeToken(arg, mappers)
		if err != nil {
			return "", fmt.Errorf("convert: encoding arg %d: %w", i, err)
		}
		encoded[i] = EncodeParamV2(token, arg.TypeFQN)
	}
	return JoinParamsV2(encoded), nil
}

// EncodeArgsLegacy renders args as the legacy comma-separated param list.
func EncodeArgsLegacy(args []Arg, mappers *mapper.Registry) (string, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		token, err := encodeToken(arg, mappers)
		if err != nil {
			return "", fmt.Errorf("convert: encoding arg %d: %w", i, err)
		}
		parts[i] = EncodeToken(token, arg.TypeFQN)
	}
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += ","
		}
		joined += p
	}
	return joined, nil
}

// encodeToken resolves the right mapper for arg and returns the encoded
// value text (not yet wrapped in "{{}}typeFQN" or Base64).
func encodeToken(arg Arg, mappers *mapper.Registry) (string, error) {
	if arg.Value == nil {
		return mapper.NullSentinel, nil
	}
	m, err := mappers.MustLookup(arg.TypeFQN)
	if err != nil {
		// Fall back to the string mapper only when the declared type really
		// is the string type but wasn't registered under that exact key.
		if arg.TypeFQN == mapper.TypeString {
			return fmt.Sprintf("%v", arg.Value), nil
		}
		return "", err
	}
	return m.Encode(arg.Value)
}
