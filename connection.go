// Package tls12 is the public surface of the engine: a sans-I/O TLS 1.2
// record layer and handshake state machine (spec §1). A Client or Server
// object mints Connections; the caller feeds transport bytes in and drains
// wire-ready bytes out, never handing a socket to the engine itself (spec
// §5, §6).
package tls12

import (
	"github.com/google/uuid"

	"github.com/vlet/tls12/internal/state"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
)

// Callbacks groups the per-connection hooks spec §3 lists as Context
// callback slots. Each is invoked synchronously and re-entrantly from
// within Feed (spec §5); nil hooks are simply skipped.
type Callbacks struct {
	// OnData fires once per ApplicationData record, in arrival order,
	// only once the connection has reached OPEN.
	OnData func(data []byte)

	// OnHandshakeFinish fires exactly once per connection, the instant
	// the state machine reaches OPEN.
	OnHandshakeFinish func()

	// OnError fires when Feed returns a fatal protocol error, with the
	// alert description the engine sent or is about to close with.
	OnError func(desc wire.AlertDescription)
}

// Connection is the sans-I/O handle spec §6 calls "Connection object":
// Feed(bytes), NextRecord() (bytes, bool), Send(bytes), Close(), Shutdown().
type Connection struct {
	// ID distinguishes connections from one another in logs when a
	// single process multiplexes many (spec §11 domain-stack note on
	// google/uuid).
	ID uuid.UUID

	ctx *state.Context
	cb  Callbacks

	handshakeDone bool
}

func newConnection(ctx *state.Context, cb Callbacks) *Connection {
	c := &Connection{ID: uuid.New(), ctx: ctx, cb: cb}
	ctx.OnStateChange = c.onStateChange
	return c
}

func (c *Connection) onStateChange(_, newState state.ConnState) {
	if newState == state.StateOpen && !c.handshakeDone {
		c.handshakeDone = true
		if c.cb.OnHandshakeFinish != nil {
			c.cb.OnHandshakeFinish()
		}
	}
}

// Feed appends newly-arrived transport bytes, synchronously draining every
// record they complete. Application data is delivered via OnData before
// Feed returns; a protocol failure is both returned and, if registered,
// reported to OnError.
func (c *Connection) Feed(b []byte) error {
	err := c.ctx.Feed(b)
	for {
		data, ok := c.ctx.Received()
		if !ok {
			break
		}
		if c.cb.OnData != nil {
			c.cb.OnData(data)
		}
	}
	if err != nil && c.cb.OnError != nil {
		if ae, ok := err.(*xerrors.AlertError); ok {
			c.cb.OnError(ae.Description)
		}
	}
	return err
}

// NextRecord pops the next fully-framed record awaiting transmission.
func (c *Connection) NextRecord() ([]byte, bool) { return c.ctx.NextRecord() }

// Send protects and queues an application-data record. Valid only once the
// connection has reached OPEN.
func (c *Connection) Send(data []byte) error { return c.ctx.Send(data) }

// Close enqueues close_notify and transitions this side to CLOSED.
func (c *Connection) Close() error { return c.ctx.Close() }

// Shutdown reports whether the connection has reached CLOSED with
// nothing left queued for transmission, whether that closure came from a
// mutual close_notify exchange or a fatal alert either side sent or
// received.
func (c *Connection) Shutdown() bool { return c.ctx.Shutdown() }

// State exposes the current handshake state, mainly for tests and the CLI.
func (c *Connection) State() state.ConnState { return c.ctx.State() }

// Resuming reports whether this connection took the abbreviated
// session-resumption path.
func (c *Connection) Resuming() bool { return c.ctx.Resuming() }

// ServerName returns the SNI name: the dial target on the client side, the
// decoded ServerName extension on the server side (empty if the client
// didn't send one).
func (c *Connection) ServerName() string { return c.ctx.ServerName() }

// PeerCertificateDER returns the leaf certificate DER the client received,
// or nil on the server side / before Certificate has arrived.
func (c *Connection) PeerCertificateDER() []byte { return c.ctx.PeerCertificateDER() }

// Err returns the alert error that closed the connection, if any.
func (c *Connection) Err() error { return c.ctx.Err() }
