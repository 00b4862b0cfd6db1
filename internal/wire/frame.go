// Package wire implements the RequestParser/ResponseEncoder pair:
// frame-level version detection, checksum/signature verification and
// assembly, and the {version, metadata, params} split. Argument-level
// token encode/decode is delegated to internal/convert; compression is
// applied by the transport boundary (server/client) before a frame ever
// reaches this package.
package wire

import (
	"regexp"
	"strings"
)

// Version identifies which wire generation a frame uses.
type Version int

const (
	VersionLegacy Version = -1
	VersionV1     Version = 0
	VersionV2     Version = 1
)

const (
	chkMarker = "|CHK:"
	sigMarker = "|SIG:"
)

// classNameRegex accepts dotted Java-style identifiers and nothing else,
// blocking path traversal ("..", "/"), HTML/XML injection ("<"), and any
// other non-identifier character.
var classNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// methodNameRegex accepts a single Java-style identifier.
var methodNameRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsValidClassName reports whether s is a safe, well-formed class FQN.
func IsValidClassName(s string) bool {
	return s != "" && classNameRegex.MatchString(s)
}

// IsValidMethodName reports whether s is a safe, well-formed method name.
func IsValidMethodName(s string) bool {
	return s != "" && methodNameRegex.MatchString(s)
}

// DetectVersion inspects frame's leading bytes and reports which wire
// generation it uses: a leading "0|" or "1|" selects the v1/v2 path,
// anything else falls back to the legacy path.
func DetectVersion(frame string) Version {
	switch {
	case strings.HasPrefix(frame, "0|"):
		return VersionV1
	case strings.HasPrefix(frame, "1|"):
		return VersionV2
	default:
		return VersionLegacy
	}
}

// splitTrailingSegment removes a trailing "|PREFIX..." segment from frame,
// if present, and returns (remainder, segmentValue, found). segmentValue
// excludes the marker itself (e.g. for "|CHK:abcd" with marker "|CHK:" it
// returns "abcd").
func splitTrailingSegment(frame, marker string) (remainder, value string, found bool) {
	idx := strings.LastIndex(frame, marker)
	if idx < 0 {
		return frame, "", false
	}
	return frame[:idx], frame[idx+len(marker):], true
}
