package state

import "github.com/vlet/tls12/internal/suite"

// SessionSnapshot is the SecurityParameters subset that survives past a
// connection's lifetime so a later connection can resume it (spec §3's
// SessionCacheEntry).
type SessionSnapshot struct {
	SessionID    []byte
	Suite        suite.Info
	MasterSecret [48]byte
}

// SessionStore is the client-side cache contract, keyed by server name
// (spec module 4: "client-side session cache keyed by server name").
// session.ClientCache implements this structurally.
type SessionStore interface {
	Lookup(serverName string) (SessionSnapshot, bool)
	Store(serverName string, snap SessionSnapshot)
	Invalidate(serverName string)
}

// ServerSessionStore is the server-side counterpart, keyed by the opaque
// session_id the server itself minted. session.ServerCache implements this
// structurally.
type ServerSessionStore interface {
	LookupByID(sessionID string) (SessionSnapshot, bool)
	Store(sessionID string, snap SessionSnapshot)
}
