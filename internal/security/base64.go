package security

import "encoding/base64"

// urlSafeEncoding is standard Base64 with the URL-safe substitutions
// (+ -> -, / -> _) and padding stripped. Used for the metadata, param,
// and inner tokens so none of the protocol's structural delimiters
// (|, /, (, ), {{, }}) can appear inside an encoded component.
var urlSafeEncoding = base64.RawURLEncoding

// EncodeURLSafe Base64-encodes data using the URL-safe alphabet with padding
// stripped.
func EncodeURLSafe(data []byte) string {
	return urlSafeEncoding.EncodeToString(data)
}

// DecodeURLSafe reverses EncodeURLSafe.
func DecodeURLSafe(s string) ([]byte, error) {
	return urlSafeEncoding.DecodeString(s)
}
