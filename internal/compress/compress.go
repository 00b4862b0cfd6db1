// Package compress implements the optional GZIP wrap/unwrap pipeline: a
// leading "1|" marks a GZIP-compressed payload, "0|" marks an
// uncompressed one; compression only kicks in once the payload reaches a
// configurable threshold.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/tcprest/tcprest-go/internal/rpcconfig"
)

const (
	compressedPrefix   = "1|"
	uncompressedPrefix = "0|"
)

// Wrap conditionally GZIPs payload and prepends the compression marker.
// Compression is applied only when cfg.Enabled and len(payload) is at
// least cfg.Threshold; otherwise the payload passes through uncompressed
// with the "0|" prefix.
func Wrap(cfg *rpcconfig.CompressionConfig, payload []byte) (string, error) {
	if cfg == nil || !cfg.Enabled || len(payload) < cfg.Threshold {
		return uncompressedPrefix + string(payload), nil
	}

	level := cfg.Level
	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return "", fmt.Errorf("compress: new gzip writer: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("compress: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("compress: gzip close: %w", err)
	}
	return compressedPrefix + buf.String(), nil
}

// Unwrap strips the compression marker and transparently GZIP-decompresses
// the payload when it was compressed. Legacy frames carrying no marker at
// all are passed through unchanged.
func Unwrap(frame string) ([]byte, error) {
	switch {
	case strings.HasPrefix(frame, compressedPrefix):
		body := frame[len(compressedPrefix):]
		r, err := gzip.NewReader(strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("compress: new gzip reader: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("compress: gzip read: %w", err)
		}
		return out, nil
	case strings.HasPrefix(frame, uncompressedPrefix):
		return []byte(frame[len(uncompressedPrefix):]), nil
	default:
		// Legacy frame with no compression marker at all.
		return []byte(frame), nil
	}
}
