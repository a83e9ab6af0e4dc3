package state

import (
	"bytes"
	"fmt"

	"github.com/vlet/tls12/internal/handshake"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
)

func offeredContains(offered []wire.CipherSuite, cs wire.CipherSuite) bool {
	for _, c := range offered {
		if c == cs {
			return true
		}
	}
	return false
}

// Start builds and queues the ClientHello, consulting ClientSessions for
// a resumable session against this Context's server name. Client role
// only.
func (c *Context) Start() error {
	if c.Role != suite.ConnectionEndClient {
		return xerrors.Internal("state.start", fmt.Errorf("Start is client-role only"))
	}
	if c.state != StateIdle {
		return xerrors.Internal("state.start", fmt.Errorf("handshake already started"))
	}

	random, err := c.Backend.Random(32)
	if err != nil {
		return c.fail(err)
	}
	copy(c.clientRandom[:], random)
	c.clientVersion = wire.VersionTLS12

	var offeredSessionID []byte
	if c.ClientSessions != nil {
		if snap, ok := c.ClientSessions.Lookup(c.serverName); ok {
			offeredSessionID = snap.SessionID
			c.cachedSnapshot = snap
		}
	}
	c.sessionID = offeredSessionID

	ch := handshake.ClientHello{
		Version:            c.clientVersion,
		Random:             c.clientRandom,
		SessionID:          offeredSessionID,
		CipherSuites:       c.OfferedSuites,
		CompressionMethods: []wire.CompressionMethod{wire.CompressionNull},
		ServerName:         c.serverName,
	}
	if err := c.sendHandshake(wire.HandshakeTypeClientHello, handshake.EncodeClientHello(ch)); err != nil {
		return err
	}
	c.setState(StateHSStart)
	return nil
}

func (c *Context) clientDispatch(msgType wire.HandshakeType, body []byte) error {
	switch msgType {
	case wire.HandshakeTypeServerHello:
		if c.state != StateHSStart {
			return c.fail(xerrors.UnexpectedMessage("server_hello", fmt.Errorf("unexpected in state %s", c.state)))
		}
		return c.handleServerHello(body)

	case wire.HandshakeTypeCertificate:
		if c.state != StateSessNew {
			return c.fail(xerrors.UnexpectedMessage("certificate", fmt.Errorf("unexpected in state %s", c.state)))
		}
		return c.handleServerCertificate(body)

	case wire.HandshakeTypeCertificateRequest:
		// Client authentication is out of scope (spec §1 Non-goals):
		// recognize the message cleanly and refuse rather than stalling.
		return c.fail(xerrors.HandshakeFailure("certificate_request", fmt.Errorf("client authentication is not supported")))

	case wire.HandshakeTypeServerHelloDone:
		if c.state != StateSessNew {
			return c.fail(xerrors.UnexpectedMessage("server_hello_done", fmt.Errorf("unexpected in state %s", c.state)))
		}
		return c.handleServerHelloDone()

	default:
		return c.fail(xerrors.UnexpectedMessage("client_dispatch", fmt.Errorf("unexpected handshake message %s", msgType)))
	}
}

func (c *Context) handleServerHello(body []byte) error {
	sh, err := handshake.DecodeServerHello(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("server_hello", err))
	}
	if sh.Version != wire.VersionTLS12 {
		return c.fail(xerrors.ProtocolVersion("server_hello", fmt.Errorf("server selected unsupported version %#04x", sh.Version)))
	}
	info, ok := suite.Lookup(sh.CipherSuite)
	if !ok || !offeredContains(c.OfferedSuites, sh.CipherSuite) {
		return c.fail(xerrors.HandshakeFailure("server_hello", fmt.Errorf("server selected an unacceptable cipher suite %#04x", sh.CipherSuite)))
	}
	c.selected = info
	c.serverRandom = sh.Random

	if len(c.sessionID) > 0 && len(sh.SessionID) > 0 && bytes.Equal(c.sessionID, sh.SessionID) {
		c.resuming = true
		c.masterSecret = c.cachedSnapshot.MasterSecret
		c.pendingKeyBlock = handshake.DeriveKeyBlock(c.Backend, c.selected, c.masterSecret, c.clientRandom, c.serverRandom)
		c.setState(StateSessResume)
		c.setState(StateHSHalf)
		return nil
	}

	c.resuming = false
	c.sessionID = sh.SessionID
	c.setState(StateSessNew)
	return nil
}

func (c *Context) handleServerCertificate(body []byte) error {
	der, err := handshake.DecodeCertificate(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("certificate", err))
	}
	pub, err := c.Backend.CertPublicKey(der)
	if err != nil {
		return c.fail(xerrors.HandshakeFailure("certificate", err))
	}
	c.peerCertDER = der
	c.peerPublicKey = pub
	return nil
}

func (c *Context) handleServerHelloDone() error {
	if err := handshake.RequireRSA(c.selected); err != nil {
		return c.fail(err)
	}
	if c.peerPublicKey == nil {
		return c.fail(xerrors.HandshakeFailure("server_hello_done", fmt.Errorf("no server certificate was received")))
	}

	pms, err := handshake.BuildPreMasterSecret(c.Backend, c.clientVersion)
	if err != nil {
		return c.fail(err)
	}
	encrypted, err := c.Backend.RSAEncrypt(c.peerPublicKey, pms)
	if err != nil {
		return c.fail(xerrors.Internal("client_key_exchange", err))
	}
	if err := c.sendHandshake(wire.HandshakeTypeClientKeyExchange, handshake.EncodeClientKeyExchangeRSA(encrypted)); err != nil {
		return err
	}

	c.masterSecret = handshake.MasterSecret(c.Backend, pms, c.clientRandom, c.serverRandom)
	c.pendingKeyBlock = handshake.DeriveKeyBlock(c.Backend, c.selected, c.masterSecret, c.clientRandom, c.serverRandom)

	c.setState(StateHSHalf)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	if err := c.sendFinished(c.ownFinishedLabel()); err != nil {
		return err
	}

	if c.ClientSessions != nil {
		c.ClientSessions.Store(c.serverName, SessionSnapshot{
			SessionID:    c.sessionID,
			Suite:        c.selected,
			MasterSecret: c.masterSecret,
		})
	}
	return nil
}
