// Package admin is a small read-only introspection surface, not a second
// RPC mechanism: a Snapshot describes a running server's lifecycle state,
// registered resource classes, and live connection count. Grounded on
// coreengine/kernel.Kernel.GetSystemStatus, adapted from that map[string]any
// shape to a typed struct since tcprest-go has one fixed set of fields to
// report rather than a variable bag of subsystem stats.
package admin

import "time"

// Snapshot is a point-in-time view of a server's operational state.
type Snapshot struct {
	State             string
	Address           string
	RegisteredClasses []string
	ActiveConnections int64
	Uptime            time.Duration
}
