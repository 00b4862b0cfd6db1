package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"sync"
)

// SignatureHandler is the pluggable signing/verification capability
// contract. Implementations register themselves into the process-wide
// registry keyed by algorithm name (e.g. "RSA", "GPG"); PGP/RSA signature
// *implementations* are out of scope for the framework itself except for
// the RSA reference handler this package supplies.
type SignatureHandler interface {
	Algorithm() string
	Sign(message []byte, privateKey any) ([]byte, error)
	Verify(message, signature []byte, publicKey any) error
}

// Registry is a capability registry for SignatureHandler implementations,
// grounded on the same registration/lookup shape as
// coreengine/tools.ToolExecutor: populated at configuration time, then
// read-only for concurrent lookups.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]SignatureHandler
}

// NewRegistry creates an empty signature handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]SignatureHandler)}
}

// Register adds a handler under its own Algorithm() name.
func (r *Registry) Register(h SignatureHandler) error {
	if h == nil || h.Algorithm() == "" {
		return fmt.Errorf("security: signature handler must declare a non-empty algorithm")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Algorithm()] = h
	return nil
}

// Lookup returns the handler registered for algorithm, if any.
func (r *Registry) Lookup(algorithm string) (SignatureHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[algorithm]
	return h, ok
}

// RSAHandler is the reference SignatureHandler implementation, using
// RSA-PSS over a SHA-256 digest of the message. It is the one concrete
// signing algorithm the framework ships; every other algorithm (including
// GPG) is left to an application-supplied SignatureHandler.
type RSAHandler struct{}

func (RSAHandler) Algorithm() string { return "RSA" }

func (RSAHandler) Sign(message []byte, privateKey any) ([]byte, error) {
	key, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("security: RSA signer requires an *rsa.PrivateKey")
	}
	digest := sha256.Sum256(message)
	return rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], nil)
}

func (RSAHandler) Verify(message, signature []byte, publicKey any) error {
	key, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("security: RSA verifier requires an *rsa.PublicKey")
	}
	digest := sha256.Sum256(message)
	return rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil)
}

// ParsePKCS1PublicKeyDER is a convenience helper for tests and simple
// deployments that keep keys as DER-encoded PKCS1 blobs on disk.
func ParsePKCS1PublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	return x509.ParsePKCS1PublicKey(der)
}
