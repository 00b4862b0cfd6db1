package rpcconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSecurityConfigHasNoProtections(t *testing.T) {
	cfg := DefaultSecurityConfig()
	assert.False(t, cfg.RequiresChecksum())
	assert.False(t, cfg.RequiresSignature())
	assert.True(t, cfg.IsWhitelisted("com.example.Anything"))
}

func TestSecurityConfigRequiresChecksumIgnoresNone(t *testing.T) {
	cfg := &SecurityConfig{Checksum: ChecksumNone}
	assert.False(t, cfg.RequiresChecksum())

	cfg = &SecurityConfig{Checksum: ChecksumCRC32}
	assert.True(t, cfg.RequiresChecksum())
}

func TestSecurityConfigRequiresSignatureWhenAlgorithmSet(t *testing.T) {
	cfg := &SecurityConfig{SignatureAlgorithm: "RSA"}
	assert.True(t, cfg.RequiresSignature())
}

func TestSecurityConfigNilReceiverIsSafe(t *testing.T) {
	var cfg *SecurityConfig
	assert.False(t, cfg.RequiresChecksum())
	assert.False(t, cfg.RequiresSignature())
	assert.True(t, cfg.IsWhitelisted("anything"))
}

func TestSecurityConfigIsWhitelistedRestrictsToListedClasses(t *testing.T) {
	cfg := &SecurityConfig{ClassWhitelist: []string{"com.example.Allowed"}}
	assert.True(t, cfg.IsWhitelisted("com.example.Allowed"))
	assert.False(t, cfg.IsWhitelisted("com.example.Blocked"))
}

func TestDefaultCompressionConfigDisabled(t *testing.T) {
	cfg := DefaultCompressionConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 6, cfg.Level)
}

func TestDefaultServerConfigShutdownTimeout(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 5000, cfg.ShutdownTimeoutMS)
}
