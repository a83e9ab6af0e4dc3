package state

import (
	"crypto/rsa"
	"fmt"

	"go.uber.org/zap"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/handshake"
	"github.com/vlet/tls12/internal/record"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
	"github.com/vlet/tls12/internal/xlog"
)

// DefaultClientCipherSuites is the client's offer order when the caller
// doesn't override it: the one block suite first, then the two null
// suites (weakest last, for backward test-only compatibility).
var DefaultClientCipherSuites = []wire.CipherSuite{
	wire.TLSRSAWithAES128CBCSHA,
	wire.TLSRSAWithNullSHA256,
	wire.TLSRSAWithNullSHA,
}

type direction int

const (
	dirWrite direction = iota
	dirRead
)

// Context is the single mutable record spec §3 describes: negotiated
// parameters, pending/current key material, sequence numbers, the
// handshake transcript, and the in/out byte queues a sans-I/O caller
// drains.
type Context struct {
	Role    suite.ConnectionEnd
	Backend crypto.Backend
	Logger  *zap.Logger

	// Server-only identity.
	CertDER    []byte
	PrivateKey *rsa.PrivateKey

	ClientSessions SessionStore
	ServerSessions ServerSessionStore

	OfferedSuites []wire.CipherSuite

	// OnStateChange, if set, is invoked synchronously on every transition.
	OnStateChange func(old, new ConnState)

	serverName string // dial target (client) or decoded SNI (server)

	state          ConnState
	clientVersion  uint16
	sessionID      []byte
	resuming       bool
	cachedSnapshot SessionSnapshot

	selected        suite.Info
	clientRandom    [32]byte
	serverRandom    [32]byte
	masterSecret    [48]byte
	pendingKeyBlock suite.KeyBlock

	peerCertDER   []byte
	peerPublicKey *rsa.PublicKey

	currentReadCipher  suite.Info
	currentReadKeys    record.Keys
	currentWriteCipher suite.Info
	currentWriteKeys   record.Keys
	seqRead            uint64
	seqWrite           uint64

	sentFinished     bool
	receivedFinished bool

	sentCloseNotify     bool
	receivedCloseNotify bool

	transcript  []byte
	reassembler handshake.Reassembler

	inbound   []byte
	outQueue  [][]byte
	appDataIn [][]byte

	closeErr error
}

func nullCipherInfo() suite.Info {
	return suite.Info{CipherType: suite.CipherTypeStream, Bulk: suite.BulkNull}
}

// NewClient constructs a client-role Context dialing serverName. sessions
// may be nil to disable resumption.
func NewClient(backend crypto.Backend, logger *zap.Logger, serverName string, sessions SessionStore) *Context {
	if logger == nil {
		logger = xlog.NoOp()
	}
	return &Context{
		Role:               suite.ConnectionEndClient,
		Backend:            backend,
		Logger:             logger,
		ClientSessions:     sessions,
		OfferedSuites:      DefaultClientCipherSuites,
		serverName:         serverName,
		state:              StateIdle,
		currentReadCipher:  nullCipherInfo(),
		currentWriteCipher: nullCipherInfo(),
	}
}

// NewServer constructs a server-role Context. sessions may be nil to
// disable resumption.
func NewServer(backend crypto.Backend, logger *zap.Logger, certDER []byte, key *rsa.PrivateKey, sessions ServerSessionStore) *Context {
	if logger == nil {
		logger = xlog.NoOp()
	}
	return &Context{
		Role:               suite.ConnectionEndServer,
		Backend:            backend,
		Logger:             logger,
		CertDER:            certDER,
		PrivateKey:         key,
		ServerSessions:     sessions,
		state:              StateIdle,
		currentReadCipher:  nullCipherInfo(),
		currentWriteCipher: nullCipherInfo(),
	}
}

func (c *Context) State() ConnState           { return c.state }
func (c *Context) ServerName() string         { return c.serverName }
func (c *Context) PeerCertificateDER() []byte { return c.peerCertDER }
func (c *Context) Err() error                 { return c.closeErr }
func (c *Context) Resuming() bool             { return c.resuming }
func (c *Context) NegotiatedSuite() (suite.Info, bool) {
	return c.selected, c.selected.Suite != 0
}

func (c *Context) setState(s ConnState) {
	old := c.state
	c.state = s
	if c.OnStateChange != nil && old != s {
		c.OnStateChange(old, s)
	}
	if c.Logger != nil {
		c.Logger.Debug("tls12: state transition", zap.String("from", old.String()), zap.String("to", s.String()))
	}
}

func (c *Context) handshakeInProgress() bool {
	switch c.state {
	case StateIdle, StateOpen, StateClosed:
		return false
	default:
		return true
	}
}

// --- key schedule -----------------------------------------------------

func (c *Context) keysForDirection(dir direction) record.Keys {
	clientSide := (c.Role == suite.ConnectionEndClient) == (dir == dirWrite)
	if clientSide {
		return record.Keys{MACKey: c.pendingKeyBlock.ClientWriteMACKey, EncKey: c.pendingKeyBlock.ClientWriteEncKey}
	}
	return record.Keys{MACKey: c.pendingKeyBlock.ServerWriteMACKey, EncKey: c.pendingKeyBlock.ServerWriteEncKey}
}

func (c *Context) applyPendingWrite() {
	c.currentWriteCipher = c.selected
	c.currentWriteKeys = c.keysForDirection(dirWrite)
	c.seqWrite = 0
}

func (c *Context) applyPendingRead() {
	c.currentReadCipher = c.selected
	c.currentReadKeys = c.keysForDirection(dirRead)
	c.seqRead = 0
}

func (c *Context) readParams() (suite.Info, record.Keys) {
	return c.currentReadCipher, c.currentReadKeys
}

func (c *Context) writeParams() (suite.Info, record.Keys) {
	return c.currentWriteCipher, c.currentWriteKeys
}

func (c *Context) ownFinishedLabel() string {
	if c.Role == suite.ConnectionEndClient {
		return handshake.LabelClientFinished
	}
	return handshake.LabelServerFinished
}

func (c *Context) peerFinishedLabel() string {
	if c.Role == suite.ConnectionEndClient {
		return handshake.LabelServerFinished
	}
	return handshake.LabelClientFinished
}

// --- outbound plumbing --------------------------------------------------

func (c *Context) enqueueRecord(ct wire.ContentType, plaintext []byte) error {
	info, keys := c.writeParams()
	ciphertext, err := record.Protect(c.Backend, info, keys, c.seqWrite, ct, wire.VersionTLS12, plaintext)
	if err != nil {
		return c.fail(err)
	}
	c.seqWrite++
	c.outQueue = append(c.outQueue, record.Build(ct, wire.VersionTLS12, ciphertext))
	return nil
}

func (c *Context) sendHandshake(t wire.HandshakeType, body []byte) error {
	raw := handshake.Wrap(t, body)
	if err := c.enqueueRecord(wire.ContentTypeHandshake, raw); err != nil {
		return err
	}
	c.transcript = append(c.transcript, raw...)
	return nil
}

func (c *Context) sendChangeCipherSpec() error {
	if err := c.enqueueRecord(wire.ContentTypeChangeCipherSpec, []byte{handshake.ChangeCipherSpecByte}); err != nil {
		return err
	}
	c.applyPendingWrite()
	return nil
}

func (c *Context) sendAlert(level wire.AlertLevel, desc wire.AlertDescription) error {
	return c.enqueueRecord(wire.ContentTypeAlert, handshake.EncodeAlert(level, desc))
}

func (c *Context) sendFinished(label string) error {
	vd := handshake.FinishedVerifyData(c.Backend, c.masterSecret, label, c.transcript)
	if err := c.sendHandshake(wire.HandshakeTypeFinished, handshake.EncodeFinished(vd)); err != nil {
		return err
	}
	c.onFinishedSent()
	return nil
}

func (c *Context) onFinishedSent() {
	c.sentFinished = true
	c.checkOpen()
}

func (c *Context) onFinishedVerified() {
	c.receivedFinished = true
	c.checkOpen()
}

func (c *Context) checkOpen() {
	if c.sentFinished && c.receivedFinished {
		c.setState(StateHSFull)
		c.setState(StateOpen)
	}
}

// --- failure handling ---------------------------------------------------

func (c *Context) fail(err error) error {
	if err == nil {
		return nil
	}
	ae, ok := err.(*xerrors.AlertError)
	if !ok {
		ae = xerrors.Internal("state", err)
	}
	if c.state != StateClosed {
		_ = c.sendAlert(ae.Level, ae.Description)
		c.closeErr = ae
		c.setState(StateClosed)
	}
	return xlog.Error(c.Logger, ae, "tls12: handshake failed")
}

// --- public sans-I/O surface --------------------------------------------

// Feed appends newly-arrived bytes and drains every complete record it
// can find, dispatching each to the handshake/record/application-data
// paths. A malformed or protocol-violating record ends the connection
// and the resulting error is returned; the bytes still buffered at that
// point are dropped, so nothing is replayed on a later call.
func (c *Context) Feed(b []byte) error {
	c.inbound = append(c.inbound, b...)
	for {
		n, err := c.consumeOneRecord(c.inbound)
		if err != nil {
			c.inbound = nil
			return err
		}
		if n == 0 {
			return nil
		}
		c.inbound = c.inbound[n:]
	}
}

func (c *Context) consumeOneRecord(buf []byte) (int, error) {
	hdr, payload, n, err := record.Peek(buf)
	if err != nil {
		return 0, c.fail(err)
	}
	if n == 0 {
		return 0, nil
	}

	info, keys := c.readParams()
	plaintext, err := record.Unprotect(c.Backend, info, keys, c.seqRead, hdr.Type, hdr.Version, payload)
	if err != nil {
		return 0, c.fail(err)
	}
	c.seqRead++
	if len(plaintext) > wire.MaxPlaintextLength {
		return n, c.fail(xerrors.RecordOverflow("record.unprotect", fmt.Errorf("plaintext length %d exceeds maximum %d", len(plaintext), wire.MaxPlaintextLength)))
	}

	switch hdr.Type {
	case wire.ContentTypeChangeCipherSpec:
		if err := c.handleChangeCipherSpec(plaintext); err != nil {
			return n, err
		}
	case wire.ContentTypeAlert:
		if err := c.handleAlert(plaintext); err != nil {
			return n, err
		}
	case wire.ContentTypeHandshake:
		if err := c.handleHandshakeBytes(plaintext); err != nil {
			return n, err
		}
	case wire.ContentTypeApplicationData:
		if err := c.handleApplicationData(plaintext); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Context) handleChangeCipherSpec(body []byte) error {
	if len(body) != 1 || body[0] != handshake.ChangeCipherSpecByte {
		return c.fail(xerrors.UnexpectedMessage("change_cipher_spec", fmt.Errorf("malformed change_cipher_spec body")))
	}
	if c.state != StateHSHalf {
		return c.fail(xerrors.UnexpectedMessage("change_cipher_spec", fmt.Errorf("unexpected change_cipher_spec in state %s", c.state)))
	}
	c.applyPendingRead()
	return nil
}

func (c *Context) handleAlert(body []byte) error {
	if c.state == StateClosed {
		// This side has already closed; a further alert changes nothing.
		return nil
	}
	level, desc, err := handshake.DecodeAlert(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("alert", err))
	}
	if desc == wire.AlertCloseNotify {
		if !c.sentCloseNotify {
			_ = c.sendAlert(wire.AlertLevelWarning, wire.AlertCloseNotify)
			c.sentCloseNotify = true
		}
		c.receivedCloseNotify = true
		c.setState(StateClosed)
		return nil
	}
	if level == wire.AlertLevelWarning {
		// Nothing beyond close_notify and no_renegotiation is defined by
		// this engine; tolerate other warning alerts silently.
		return nil
	}
	ae := xerrors.Fatal("alert", desc, nil)
	c.closeErr = ae
	c.setState(StateClosed)
	return xlog.Error(c.Logger, ae, "tls12: peer sent fatal alert")
}

func (c *Context) handleApplicationData(plaintext []byte) error {
	if c.state != StateOpen {
		return c.fail(xerrors.UnexpectedMessage("application_data", fmt.Errorf("application data received before the handshake completed")))
	}
	c.appDataIn = append(c.appDataIn, plaintext)
	return nil
}

func (c *Context) handleHandshakeBytes(plaintext []byte) error {
	c.reassembler.Feed(plaintext)
	for {
		raw, ok := c.reassembler.Next()
		if !ok {
			return nil
		}
		msgType, body, err := handshake.Unwrap(raw)
		if err != nil {
			return c.fail(xerrors.UnexpectedMessage("handshake.unwrap", err))
		}

		if c.state == StateOpen {
			// A handshake message after OPEN can only be a renegotiation
			// attempt; reject it without tearing down the connection
			// (SPEC_FULL §12 resolution of the renegotiation open
			// question).
			ae := xerrors.NoRenegotiation("handshake_bytes")
			_ = c.sendAlert(ae.Level, ae.Description)
			continue
		}

		if msgType == wire.HandshakeTypeFinished {
			if err := c.dispatchFinished(body); err != nil {
				return err
			}
			continue
		}

		c.transcript = append(c.transcript, raw...)
		if err := c.dispatch(msgType, body); err != nil {
			return err
		}
	}
}

func (c *Context) dispatch(msgType wire.HandshakeType, body []byte) error {
	if c.Role == suite.ConnectionEndClient {
		return c.clientDispatch(msgType, body)
	}
	return c.serverDispatch(msgType, body)
}

func (c *Context) verifyPeerFinished(body []byte) error {
	if c.state != StateHSHalf {
		return c.fail(xerrors.UnexpectedMessage("finished", fmt.Errorf("unexpected finished in state %s", c.state)))
	}
	got, err := handshake.DecodeFinished(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("finished", err))
	}
	want := handshake.FinishedVerifyData(c.Backend, c.masterSecret, c.peerFinishedLabel(), c.transcript)

	raw := handshake.Wrap(wire.HandshakeTypeFinished, body)
	c.transcript = append(c.transcript, raw...)

	if !constantTimeEqual12(got, want) {
		return c.fail(xerrors.HandshakeFailure("finished", fmt.Errorf("verify_data mismatch")))
	}
	c.onFinishedVerified()
	return nil
}

func (c *Context) dispatchFinished(body []byte) error {
	if err := c.verifyPeerFinished(body); err != nil {
		return err
	}
	if !c.sentFinished {
		// We are the second side to finish: the new-session server (just
		// verified the client's Finished) or the resuming client (just
		// verified the server's Finished).
		if err := c.sendChangeCipherSpec(); err != nil {
			return err
		}
		if err := c.sendFinished(c.ownFinishedLabel()); err != nil {
			return err
		}
	}
	return nil
}

// NextRecord pops the next wire-ready record this Context has queued for
// transmission, if any.
func (c *Context) NextRecord() ([]byte, bool) {
	if len(c.outQueue) == 0 {
		return nil, false
	}
	rec := c.outQueue[0]
	c.outQueue = c.outQueue[1:]
	return rec, true
}

// Received pops the next decrypted application-data chunk, if any.
func (c *Context) Received() ([]byte, bool) {
	if len(c.appDataIn) == 0 {
		return nil, false
	}
	d := c.appDataIn[0]
	c.appDataIn = c.appDataIn[1:]
	return d, true
}

// Send protects and queues an application-data record. Valid only once
// the connection is OPEN.
func (c *Context) Send(data []byte) error {
	if c.state != StateOpen {
		return fmt.Errorf("tls12: cannot send application data in state %s", c.state)
	}
	return c.enqueueRecord(wire.ContentTypeApplicationData, data)
}

// Close queues a close_notify alert at the warning level (SPEC_FULL §12
// open question (a)) and ends the connection locally.
func (c *Context) Close() error {
	if c.state == StateClosed {
		return nil
	}
	if err := c.sendAlert(wire.AlertLevelWarning, wire.AlertCloseNotify); err != nil {
		return err
	}
	c.sentCloseNotify = true
	c.setState(StateClosed)
	return nil
}

// Shutdown reports whether the context has reached CLOSED with nothing
// left queued for transmission (spec §4.6) — true whether that closure
// came from a mutual close_notify exchange or from either side's fatal
// alert (spec §4.5).
func (c *Context) Shutdown() bool {
	return c.state == StateClosed && len(c.outQueue) == 0
}

func constantTimeEqual12(a, b [12]byte) bool {
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
