// Package annotation models the declarative markers a Java source would
// express as @Timeout, @Singleton, and @SSL annotations on interface
// methods and resource classes.
//
// Go has no annotation facility, so each marker becomes an explicit,
// typed value attached at registration time instead of metadata discovered
// by reflecting over annotations: a MethodTimeouts map (the client keeps
// one, filled through client.Client.SetMethodTimeout), singleton status
// implied by calling AddSingletonResource, and an opaque TLSParams struct
// passed wherever SSL configuration is treated as opaque.
package annotation

import "time"

// DefaultTimeout is used for methods with no declared @Timeout (0 in the
// source means "implementation default", which this package sets at 30s).
const DefaultTimeout = 30 * time.Second

// MethodTimeouts declares a per-method client read timeout, keyed by method
// name. A method absent from the map uses DefaultTimeout.
type MethodTimeouts map[string]time.Duration

// TimeoutFor resolves the effective timeout for a method.
func (m MethodTimeouts) TimeoutFor(method string) time.Duration {
	if m == nil {
		return DefaultTimeout
	}
	if d, ok := m[method]; ok && d > 0 {
		return d
	}
	return DefaultTimeout
}

// TLSParams is an opaque secure-socket-factory parameter bag. tcprest-go
// never inspects these fields; they are handed to whatever transport dialer
// or listener wrapper the embedding application supplies.
type TLSParams struct {
	CertFile string
	KeyFile  string
	CAFile   string
	ServerName string
}

// IsSet reports whether any TLS parameter was configured.
func (t *TLSParams) IsSet() bool {
	return t != nil && (t.CertFile != "" || t.KeyFile != "" || t.CAFile != "" || t.ServerName != "")
}
