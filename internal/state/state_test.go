package state

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/handshake"
	"github.com/vlet/tls12/internal/record"
	"github.com/vlet/tls12/internal/wire"
)

func generateSelfSigned(t *testing.T) (certDER []byte, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tls12-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der, key
}

// memClientStore and memServerStore are minimal in-memory test doubles for
// SessionStore / ServerSessionStore — they exist purely to exercise the
// resumption paths without depending on the real cache implementation.
type memClientStore struct {
	byServer map[string]SessionSnapshot
}

func newMemClientStore() *memClientStore { return &memClientStore{byServer: map[string]SessionSnapshot{}} }

func (m *memClientStore) Lookup(serverName string) (SessionSnapshot, bool) {
	snap, ok := m.byServer[serverName]
	return snap, ok
}
func (m *memClientStore) Store(serverName string, snap SessionSnapshot) { m.byServer[serverName] = snap }
func (m *memClientStore) Invalidate(serverName string)                 { delete(m.byServer, serverName) }

type memServerStore struct {
	byID map[string]SessionSnapshot
}

func newMemServerStore() *memServerStore { return &memServerStore{byID: map[string]SessionSnapshot{}} }

func (m *memServerStore) LookupByID(sessionID string) (SessionSnapshot, bool) {
	snap, ok := m.byID[sessionID]
	return snap, ok
}
func (m *memServerStore) Store(sessionID string, snap SessionSnapshot) { m.byID[sessionID] = snap }

func driveHandshake(t *testing.T, client, server *Context) error {
	t.Helper()
	for i := 0; i < 32; i++ {
		progressed := false
		for {
			rec, ok := client.NextRecord()
			if !ok {
				break
			}
			if err := server.Feed(rec); err != nil {
				return err
			}
			progressed = true
		}
		for {
			rec, ok := server.NextRecord()
			if !ok {
				break
			}
			if err := client.Feed(rec); err != nil {
				return err
			}
			progressed = true
		}
		if client.State() == StateOpen && server.State() == StateOpen {
			return nil
		}
		if !progressed {
			return nil // stalled without error; caller checks final states
		}
	}
	return nil
}

func newPair(t *testing.T, serverName string, offered []wire.CipherSuite, clientStore SessionStore, serverStore ServerSessionStore) (*Context, *Context, []byte, *rsa.PrivateKey) {
	t.Helper()
	certDER, key := generateSelfSigned(t)
	backend := crypto.NewDefaultBackend()

	client := NewClient(backend, nil, serverName, clientStore)
	if offered != nil {
		client.OfferedSuites = offered
	}
	server := NewServer(backend, nil, certDER, key, serverStore)
	return client, server, certDER, key
}

func TestFullHandshakeNullCipherApplicationDataRoundTrip(t *testing.T) {
	client, server, certDER, _ := newPair(t, "example.test", []wire.CipherSuite{wire.TLSRSAWithNullSHA}, nil, nil)

	require.NoError(t, client.Start())
	require.NoError(t, driveHandshake(t, client, server))
	require.Equal(t, StateOpen, client.State())
	require.Equal(t, StateOpen, server.State())
	assert.Equal(t, certDER, client.PeerCertificateDER())
	assert.Equal(t, "example.test", server.ServerName())

	require.NoError(t, client.Send([]byte("ping")))
	rec, ok := client.NextRecord()
	require.True(t, ok)
	require.NoError(t, server.Feed(rec))
	got, ok := server.Received()
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), got)

	require.NoError(t, server.Send([]byte("pong")))
	rec, ok = server.NextRecord()
	require.True(t, ok)
	require.NoError(t, client.Feed(rec))
	got, ok = client.Received()
	require.True(t, ok)
	assert.Equal(t, []byte("pong"), got)
}

func TestFullHandshakeCBCSuiteApplicationDataRoundTrip(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", nil, nil, nil)

	require.NoError(t, client.Start())
	require.NoError(t, driveHandshake(t, client, server))
	require.Equal(t, StateOpen, client.State())
	require.Equal(t, StateOpen, server.State())

	info, ok := client.NegotiatedSuite()
	require.True(t, ok)
	assert.Equal(t, wire.TLSRSAWithAES128CBCSHA, info.Suite)

	payload := []byte("application data payload over CBC")
	require.NoError(t, client.Send(payload))
	rec, ok := client.NextRecord()
	require.True(t, ok)
	require.NoError(t, server.Feed(rec))
	got, ok := server.Received()
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestSessionResumptionSkipsCertificateExchange(t *testing.T) {
	clientStore := newMemClientStore()
	serverStore := newMemServerStore()
	certDER, key := generateSelfSigned(t)
	backend := crypto.NewDefaultBackend()

	client1 := NewClient(backend, nil, "example.test", clientStore)
	server1 := NewServer(backend, nil, certDER, key, serverStore)
	require.NoError(t, client1.Start())
	require.NoError(t, driveHandshake(t, client1, server1))
	require.Equal(t, StateOpen, client1.State())
	assert.False(t, client1.Resuming())

	client2 := NewClient(backend, nil, "example.test", clientStore)
	server2 := NewServer(backend, nil, certDER, key, serverStore)
	require.NoError(t, client2.Start())
	require.NoError(t, driveHandshake(t, client2, server2))
	require.Equal(t, StateOpen, client2.State())
	assert.True(t, client2.Resuming())
	assert.True(t, server2.Resuming())
	assert.Nil(t, client2.PeerCertificateDER(), "a resumed handshake never re-sends the certificate")
}

func TestServerForgettingSessionFallsBackToFullHandshake(t *testing.T) {
	clientStore := newMemClientStore()
	serverStore := newMemServerStore()
	certDER, key := generateSelfSigned(t)
	backend := crypto.NewDefaultBackend()

	client1 := NewClient(backend, nil, "example.test", clientStore)
	server1 := NewServer(backend, nil, certDER, key, serverStore)
	require.NoError(t, client1.Start())
	require.NoError(t, driveHandshake(t, client1, server1))
	require.Equal(t, StateOpen, client1.State())

	// The server's cache entry is gone (evicted, restarted, whatever);
	// the client still offers the old session_id.
	serverStore.byID = map[string]SessionSnapshot{}

	client2 := NewClient(backend, nil, "example.test", clientStore)
	server2 := NewServer(backend, nil, certDER, key, serverStore)
	require.NoError(t, client2.Start())
	require.NoError(t, driveHandshake(t, client2, server2))
	require.Equal(t, StateOpen, client2.State())
	assert.False(t, client2.Resuming())
	assert.NotNil(t, client2.PeerCertificateDER())
}

func TestMismatchedKeyPairFailsHandshake(t *testing.T) {
	certDER, _ := generateSelfSigned(t)
	_, wrongKey := generateSelfSigned(t)
	backend := crypto.NewDefaultBackend()

	client := NewClient(backend, nil, "example.test", nil)
	server := NewServer(backend, nil, certDER, wrongKey, nil)

	require.NoError(t, client.Start())
	_ = driveHandshake(t, client, server)
	assert.NotEqual(t, StateOpen, client.State())
}

func TestUnexpectedMessageInHSStartIsFatal(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", nil, nil, nil)
	require.NoError(t, client.Start())

	// Drain the client's ClientHello so the two don't desync, then feed
	// the client a ClientHello-shaped record instead of a ServerHello.
	_, ok := client.NextRecord()
	require.True(t, ok)
	_ = server

	foreignClient := NewClient(crypto.NewDefaultBackend(), nil, "other", nil)
	require.NoError(t, foreignClient.Start())
	rec, ok := foreignClient.NextRecord()
	require.True(t, ok)

	err := client.Feed(rec)
	require.Error(t, err)
	assert.Equal(t, StateClosed, client.State())
}

func TestRenegotiationIsRejectedNotTornDown(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", nil, nil, nil)
	require.NoError(t, client.Start())
	require.NoError(t, driveHandshake(t, client, server))
	require.Equal(t, StateOpen, client.State())
	require.Equal(t, StateOpen, server.State())

	// Hand-craft a second ClientHello protected under the connection's
	// already-negotiated write keys, simulating a renegotiation attempt
	// over the established channel rather than a brand new connection.
	ch := handshake.ClientHello{
		Version:            wire.VersionTLS12,
		Random:             client.clientRandom,
		CipherSuites:       client.OfferedSuites,
		CompressionMethods: []wire.CompressionMethod{wire.CompressionNull},
	}
	raw := handshake.Wrap(wire.HandshakeTypeClientHello, handshake.EncodeClientHello(ch))
	info, keys := client.writeParams()
	ciphertext, err := record.Protect(client.Backend, info, keys, client.seqWrite, wire.ContentTypeHandshake, wire.VersionTLS12, raw)
	require.NoError(t, err)
	client.seqWrite++
	rec := record.Build(wire.ContentTypeHandshake, wire.VersionTLS12, ciphertext)

	require.NoError(t, server.Feed(rec))
	assert.Equal(t, StateOpen, server.State())

	alertRec, ok := server.NextRecord()
	require.True(t, ok)
	assert.Equal(t, wire.ContentTypeAlert, wire.ContentType(alertRec[0]))
}

func TestHandshakeMessageFragmentedAcrossTwoFeedCalls(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", nil, nil, nil)
	require.NoError(t, client.Start())

	rec, ok := client.NextRecord()
	require.True(t, ok)
	split := len(rec) / 2
	require.NoError(t, server.Feed(rec[:split]))
	assert.Equal(t, StateIdle, server.State(), "a partial record must not advance the state machine")
	require.NoError(t, server.Feed(rec[split:]))
	assert.Equal(t, StateSessNew, server.State())
}

func TestZeroLengthApplicationDataRecord(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", []wire.CipherSuite{wire.TLSRSAWithNullSHA}, nil, nil)
	require.NoError(t, client.Start())
	require.NoError(t, driveHandshake(t, client, server))

	require.NoError(t, client.Send(nil))
	rec, ok := client.NextRecord()
	require.True(t, ok)
	require.NoError(t, server.Feed(rec))
	got, ok := server.Received()
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestCloseSendsCloseNotifyAndShutdownTracksBothSides(t *testing.T) {
	client, server, _, _ := newPair(t, "example.test", nil, nil, nil)
	require.NoError(t, client.Start())
	require.NoError(t, driveHandshake(t, client, server))

	require.NoError(t, client.Close())
	assert.Equal(t, StateClosed, client.State())
	assert.False(t, client.Shutdown())

	rec, ok := client.NextRecord()
	require.True(t, ok)
	require.NoError(t, server.Feed(rec))
	assert.Equal(t, StateClosed, server.State())

	rec, ok = server.NextRecord()
	require.True(t, ok)
	require.NoError(t, client.Feed(rec))
	assert.True(t, client.Shutdown())
}
