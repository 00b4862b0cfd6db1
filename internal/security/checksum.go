package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"

	"github.com/tcprest/tcprest-go/internal/rpcconfig"
)

// Checksum computes the integrity digest for a frame prefix: CRC32 for
// accidental corruption, HMAC-SHA256 with a shared secret for
// cryptographic integrity. The digest covers exactly the bytes preceding
// the "|CHK:" marker — callers must pass that prefix only.
func Checksum(algorithm rpcconfig.ChecksumAlgorithm, secret string, prefix []byte) (string, error) {
	switch algorithm {
	case rpcconfig.ChecksumCRC32:
		sum := crc32.ChecksumIEEE(prefix)
		return fmt.Sprintf("%08x", sum), nil
	case rpcconfig.ChecksumHMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(prefix)
		return hex.EncodeToString(mac.Sum(nil)), nil
	case rpcconfig.ChecksumNone, "":
		return "", nil
	default:
		return "", fmt.Errorf("security: unknown checksum algorithm %q", algorithm)
	}
}

// VerifyChecksum recomputes the checksum over prefix and compares it
// against the received hex digest using a constant-time comparison for
// HMAC to avoid leaking timing information about the secret.
func VerifyChecksum(algorithm rpcconfig.ChecksumAlgorithm, secret string, prefix []byte, received string) (bool, error) {
	expected, err := Checksum(algorithm, secret, prefix)
	if err != nil {
		return false, err
	}
	if algorithm == rpcconfig.ChecksumHMACSHA256 {
		expectedRaw, err1 := hex.DecodeString(expected)
		receivedRaw, err2 := hex.DecodeString(received)
		if err1 != nil || err2 != nil {
			return false, nil
		}
		return hmac.Equal(expectedRaw, receivedRaw), nil
	}
	return expected == received, nil
}
