// Package session implements the LRU-backed session caches referenced by
// internal/state as SessionStore and ServerSessionStore. Keeping them
// outside internal/state avoids a dependency from the state machine onto a
// concrete cache implementation; the two packages are wired together only
// by the caller (the root tls12 package).
package session

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vlet/tls12/internal/state"
)

// DefaultCacheSize bounds both caches below absent an explicit size from
// the caller. A long-running server or client should not grow its session
// cache without bound just because many distinct peers connect once.
const DefaultCacheSize = 1024

// ClientCache is a client-side session cache keyed by server name. The
// client has exactly one interesting session per remote host at a time, so
// a newer entry simply replaces an older one for the same key.
type ClientCache struct {
	lru *lru.Cache[string, state.SessionSnapshot]
}

// NewClientCache builds a ClientCache holding at most size entries. size<=0
// falls back to DefaultCacheSize.
func NewClientCache(size int) *ClientCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, state.SessionSnapshot](size)
	if err != nil {
		// Only returns an error for size<=0, which is excluded above.
		panic(err)
	}
	return &ClientCache{lru: c}
}

func (c *ClientCache) Lookup(serverName string) (state.SessionSnapshot, bool) {
	return c.lru.Get(serverName)
}

func (c *ClientCache) Store(serverName string, snap state.SessionSnapshot) {
	c.lru.Add(serverName, snap)
}

func (c *ClientCache) Invalidate(serverName string) {
	c.lru.Remove(serverName)
}

// Len reports the number of cached sessions.
func (c *ClientCache) Len() int { return c.lru.Len() }

// Keys returns the cached server names in recency order, oldest first, as
// the underlying LRU reports them.
func (c *ClientCache) Keys() []string { return c.lru.Keys() }

// ServerCache is the server-side counterpart, keyed by the opaque
// session_id the server itself minted and handed back to the client.
type ServerCache struct {
	lru *lru.Cache[string, state.SessionSnapshot]
}

// NewServerCache builds a ServerCache holding at most size entries. size<=0
// falls back to DefaultCacheSize.
func NewServerCache(size int) *ServerCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, state.SessionSnapshot](size)
	if err != nil {
		panic(err)
	}
	return &ServerCache{lru: c}
}

func (c *ServerCache) LookupByID(sessionID string) (state.SessionSnapshot, bool) {
	return c.lru.Get(sessionID)
}

func (c *ServerCache) Store(sessionID string, snap state.SessionSnapshot) {
	c.lru.Add(sessionID, snap)
}

// Forget evicts a session_id, e.g. when a server wants to force a full
// handshake on the next reconnect from that client.
func (c *ServerCache) Forget(sessionID string) {
	c.lru.Remove(sessionID)
}

func (c *ServerCache) Len() int { return c.lru.Len() }
