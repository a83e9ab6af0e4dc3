package state

import (
	"fmt"

	"github.com/vlet/tls12/internal/handshake"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
)

func (c *Context) serverDispatch(msgType wire.HandshakeType, body []byte) error {
	switch msgType {
	case wire.HandshakeTypeClientHello:
		if c.state != StateIdle {
			return c.fail(xerrors.UnexpectedMessage("client_hello", fmt.Errorf("unexpected in state %s", c.state)))
		}
		return c.handleClientHello(body)

	case wire.HandshakeTypeClientKeyExchange:
		if c.state != StateSessNew {
			return c.fail(xerrors.UnexpectedMessage("client_key_exchange", fmt.Errorf("unexpected in state %s", c.state)))
		}
		return c.handleClientKeyExchange(body)

	default:
		return c.fail(xerrors.UnexpectedMessage("server_dispatch", fmt.Errorf("unexpected handshake message %s", msgType)))
	}
}

func (c *Context) handleClientHello(body []byte) error {
	ch, err := handshake.DecodeClientHello(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("client_hello", err))
	}
	if ch.Version != wire.VersionTLS12 {
		return c.fail(xerrors.ProtocolVersion("client_hello", fmt.Errorf("client offered unsupported version %#04x", ch.Version)))
	}

	c.clientRandom = ch.Random
	c.clientVersion = ch.Version
	c.serverName = ch.ServerName

	if len(ch.SessionID) > 0 && c.ServerSessions != nil {
		if snap, ok := c.ServerSessions.LookupByID(string(ch.SessionID)); ok && offeredContains(ch.CipherSuites, snap.Suite.Suite) {
			c.selected = snap.Suite
			return c.resumeSession(ch.SessionID, snap)
		}
	}

	info, ok := suite.SelectFirstSupported(ch.CipherSuites)
	if !ok {
		return c.fail(xerrors.HandshakeFailure("client_hello", fmt.Errorf("no mutually supported cipher suite")))
	}
	c.selected = info
	return c.startNewSession()
}

func (c *Context) resumeSession(sessionID []byte, snap SessionSnapshot) error {
	c.resuming = true
	c.sessionID = sessionID
	c.masterSecret = snap.MasterSecret

	random, err := c.Backend.Random(32)
	if err != nil {
		return c.fail(err)
	}
	copy(c.serverRandom[:], random)

	sh := handshake.ServerHello{
		Version:           wire.VersionTLS12,
		Random:            c.serverRandom,
		SessionID:         c.sessionID,
		CipherSuite:       c.selected.Suite,
		CompressionMethod: wire.CompressionNull,
	}
	if err := c.sendHandshake(wire.HandshakeTypeServerHello, handshake.EncodeServerHello(sh)); err != nil {
		return err
	}

	c.pendingKeyBlock = handshake.DeriveKeyBlock(c.Backend, c.selected, c.masterSecret, c.clientRandom, c.serverRandom)

	c.setState(StateHSHalf)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	return c.sendFinished(c.ownFinishedLabel())
}

func (c *Context) startNewSession() error {
	c.resuming = false

	sessionID, err := c.Backend.Random(32)
	if err != nil {
		return c.fail(err)
	}
	c.sessionID = sessionID

	random, err := c.Backend.Random(32)
	if err != nil {
		return c.fail(err)
	}
	copy(c.serverRandom[:], random)

	sh := handshake.ServerHello{
		Version:           wire.VersionTLS12,
		Random:            c.serverRandom,
		SessionID:         c.sessionID,
		CipherSuite:       c.selected.Suite,
		CompressionMethod: wire.CompressionNull,
	}
	if err := c.sendHandshake(wire.HandshakeTypeServerHello, handshake.EncodeServerHello(sh)); err != nil {
		return err
	}
	if err := c.sendHandshake(wire.HandshakeTypeCertificate, handshake.EncodeCertificate(c.CertDER)); err != nil {
		return err
	}
	if err := c.sendHandshake(wire.HandshakeTypeServerHelloDone, handshake.EncodeServerHelloDone()); err != nil {
		return err
	}

	c.setState(StateSessNew)
	return nil
}

func (c *Context) handleClientKeyExchange(body []byte) error {
	if err := handshake.RequireRSA(c.selected); err != nil {
		return c.fail(err)
	}
	encrypted, err := handshake.DecodeClientKeyExchangeRSA(body)
	if err != nil {
		return c.fail(xerrors.UnexpectedMessage("client_key_exchange", err))
	}

	pms, decryptErr := c.Backend.RSADecrypt(c.PrivateKey, encrypted)
	if decryptErr != nil || len(pms) != 48 || pms[0] != byte(c.clientVersion>>8) || pms[1] != byte(c.clientVersion) {
		// RFC 5246 §7.4.7.1: never let decryption failure or a bad
		// version check surface differently on the wire than a correct
		// decrypt, or this becomes a Bleichenbacher padding oracle.
		// Continue the handshake with a random premaster secret instead;
		// Finished verification will fail harmlessly downstream.
		pms, err = handshake.BuildPreMasterSecret(c.Backend, c.clientVersion)
		if err != nil {
			return c.fail(err)
		}
	}

	c.masterSecret = handshake.MasterSecret(c.Backend, pms, c.clientRandom, c.serverRandom)
	c.pendingKeyBlock = handshake.DeriveKeyBlock(c.Backend, c.selected, c.masterSecret, c.clientRandom, c.serverRandom)

	if c.ServerSessions != nil {
		c.ServerSessions.Store(string(c.sessionID), SessionSnapshot{
			SessionID:    c.sessionID,
			Suite:        c.selected,
			MasterSecret: c.masterSecret,
		})
	}

	c.setState(StateHSHalf)
	return nil
}
