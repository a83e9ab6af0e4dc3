package tls12

import (
	"go.uber.org/zap"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/state"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/session"
)

// Client is spec §6's "Client object": it owns the crypto backend and the
// session cache shared by reference across every Connection it mints, the
// way the spec's client driver object is described in §3/§9.
type Client struct {
	backend crypto.Backend
	logger  *zap.Logger
	cache   *session.ClientCache
	suites  []wire.CipherSuite
}

// ClientOption configures NewClient.
type ClientOption func(*Client)

// WithClientLogger attaches a zap logger the engine logs state transitions
// and record-protection failures to (SPEC_FULL §10).
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClientCipherSuites overrides the default ClientHello cipher-suite
// offer order (state.DefaultClientCipherSuites).
func WithClientCipherSuites(suites []wire.CipherSuite) ClientOption {
	return func(c *Client) { c.suites = suites }
}

// WithClientSessionCacheSize bounds the session-resumption LRU (session
// §11 domain-stack note on hashicorp/golang-lru).
func WithClientSessionCacheSize(size int) ClientOption {
	return func(c *Client) { c.cache = session.NewClientCache(size) }
}

// WithClientBackend overrides the default crypto.Backend, mainly for tests
// that need deterministic randomness.
func WithClientBackend(b crypto.Backend) ClientOption {
	return func(c *Client) { c.backend = b }
}

// NewClient builds a Client with the standard-library-plus-cfssl/zcrypto
// crypto backend and a bounded session cache, ready to mint Connections.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		backend: crypto.NewDefaultBackend(),
		cache:   session.NewClientCache(session.DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CachedServerNames returns the server names this Client currently holds a
// resumable session for, for tooling (e.g. tls12ctl) that wants to report
// on cache contents without depending on the session package directly.
func (cl *Client) CachedServerNames() []string {
	return cl.cache.Keys()
}

// NewConnection mints a Connection to serverName and immediately enqueues
// its ClientHello (spec §3: a client Context is created already in
// HS_START, after enqueuing ClientHello). If the session cache holds an
// entry for serverName, the ClientHello offers that session id for
// resumption.
func (cl *Client) NewConnection(serverName string, cb Callbacks) (*Connection, error) {
	ctx := state.NewClient(cl.backend, cl.logger, serverName, cl.cache)
	if cl.suites != nil {
		ctx.OfferedSuites = cl.suites
	}
	conn := newConnection(ctx, cb)
	if err := ctx.Start(); err != nil {
		return nil, err
	}
	return conn, nil
}
