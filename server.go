package tls12

import (
	"crypto/rsa"

	"go.uber.org/zap"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/state"
	"github.com/vlet/tls12/session"
)

// Server is spec §6's "Server object": constructed once with the server's
// certificate and private key, it mints one Connection per inbound client,
// sharing its session cache across them.
type Server struct {
	backend crypto.Backend
	logger  *zap.Logger
	certDER []byte
	key     *rsa.PrivateKey
	cache   *session.ServerCache
}

// ServerOption configures NewServer / NewServerFromDER.
type ServerOption func(*Server)

// WithServerLogger attaches a zap logger (SPEC_FULL §10).
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithServerSessionCacheSize bounds the server-side session-id LRU.
func WithServerSessionCacheSize(size int) ServerOption {
	return func(s *Server) { s.cache = session.NewServerCache(size) }
}

// WithServerBackend overrides the default crypto.Backend, mainly for tests.
func WithServerBackend(b crypto.Backend) ServerOption {
	return func(s *Server) { s.backend = b }
}

func newServer(backend crypto.Backend, certDER []byte, key *rsa.PrivateKey, opts []ServerOption) *Server {
	s := &Server{
		backend: backend,
		certDER: certDER,
		key:     key,
		cache:   session.NewServerCache(session.DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer parses a PEM certificate and PEM RSA private key via the
// default backend's cfssl-backed parser (spec §6 crypto backend contract)
// and builds a Server from the result.
func NewServer(certPEM, keyPEM []byte, opts ...ServerOption) (*Server, error) {
	backend := crypto.NewDefaultBackend()
	certDER, key, err := backend.ParseCertificateAndKey(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return newServer(backend, certDER, key, opts), nil
}

// NewServerFromDER builds a Server directly from already-decoded
// certificate DER and an RSA private key, for callers that parse their own
// material (spec §6: "Server object: new({cert_der, key_der})").
func NewServerFromDER(certDER []byte, key *rsa.PrivateKey, opts ...ServerOption) *Server {
	return newServer(crypto.NewDefaultBackend(), certDER, key, opts)
}

// NewConnection mints a server-role Connection in the IDLE state, waiting
// for the peer's ClientHello.
func (s *Server) NewConnection(cb Callbacks) *Connection {
	ctx := state.NewServer(s.backend, s.logger, s.certDER, s.key, s.cache)
	return newConnection(ctx, cb)
}
