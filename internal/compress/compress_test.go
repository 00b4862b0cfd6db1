package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcprest/tcprest-go/internal/rpcconfig"
)

func TestWrapDisabledPassesThroughUncompressed(t *testing.T) {
	cfg := rpcconfig.DefaultCompressionConfig()
	wrapped, err := Wrap(cfg, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uncompressedPrefix+"hello", wrapped)
}

func TestWrapBelowThresholdPassesThroughUncompressed(t *testing.T) {
	cfg := &rpcconfig.CompressionConfig{Enabled: true, Threshold: 100, Level: 6}
	wrapped, err := Wrap(cfg, []byte("short"))
	require.NoError(t, err)
	assert.Equal(t, uncompressedPrefix+"short", wrapped)
}

func TestWrapUnwrapRoundTripCompressed(t *testing.T) {
	cfg := &rpcconfig.CompressionConfig{Enabled: true, Threshold: 0, Level: 6}
	payload := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20))

	wrapped, err := Wrap(cfg, payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wrapped, compressedPrefix))

	unwrapped, err := Unwrap(wrapped)
	require.NoError(t, err)
	assert.Equal(t, payload, unwrapped)
}

func TestUnwrapUncompressedMarker(t *testing.T) {
	unwrapped, err := Unwrap(uncompressedPrefix + "plain text")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain text"), unwrapped)
}

func TestUnwrapLegacyFrameWithoutMarker(t *testing.T) {
	unwrapped, err := Unwrap("com.example.Widget/doThing()")
	require.NoError(t, err)
	assert.Equal(t, []byte("com.example.Widget/doThing()"), unwrapped)
}

func TestUnwrapMalformedGzipFails(t *testing.T) {
	_, err := Unwrap(compressedPrefix + "not actually gzip data")
	require.Error(t, err)
}
