// Package handshake implements the encode/decode of each TLS 1.2
// handshake message payload (spec §4.3), cipher-suite selection, and the
// handshake cryptographic flow (spec §4.4): master-secret and key-block
// derivation and Finished verify_data.
package handshake

import (
	"fmt"

	"github.com/vlet/tls12/internal/wire"
)

// ClientHello is the decoded/pre-encode shape of spec §4.3's ClientHello.
type ClientHello struct {
	Version            uint16
	Random             [32]byte
	SessionID          []byte
	CipherSuites       []wire.CipherSuite
	CompressionMethods []wire.CompressionMethod
	ServerName         string // empty if the SNI extension was absent
}

// ServerHello is the decoded/pre-encode shape of spec §4.3's ServerHello.
type ServerHello struct {
	Version           uint16
	Random            [32]byte
	SessionID         []byte
	CipherSuite       wire.CipherSuite
	CompressionMethod wire.CompressionMethod
}

// Wrap prepends the 4-byte handshake header (type:u8, length:u24) to an
// already-encoded message body.
func Wrap(t wire.HandshakeType, body []byte) []byte {
	w := wire.NewWriter()
	w.U8(uint8(t))
	w.U24(uint32(len(body)))
	w.Write(body)
	return w.Final()
}

// Unwrap splits a full (header+body) handshake message, as produced by a
// Reassembler, back into its type and body.
func Unwrap(raw []byte) (wire.HandshakeType, []byte, error) {
	r := wire.NewReader(raw)
	t, err := r.U8()
	if err != nil {
		return 0, nil, fmt.Errorf("handshake: %w", err)
	}
	body, err := r.VecU24()
	if err != nil {
		return 0, nil, fmt.Errorf("handshake: %w", err)
	}
	return wire.HandshakeType(t), body, nil
}

// Reassembler buffers inbound Handshake-content-type bytes and yields
// complete (header+body) handshake messages regardless of how those bytes
// were split across records (spec §8 boundary: "the handshake codec must
// reassemble by content-type streaming, not by record boundaries").
type Reassembler struct {
	buf []byte
}

func (r *Reassembler) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next extracts the next complete handshake message, if the buffer holds
// one yet.
func (r *Reassembler) Next() (raw []byte, ok bool) {
	if len(r.buf) < 4 {
		return nil, false
	}
	length := int(r.buf[1])<<16 | int(r.buf[2])<<8 | int(r.buf[3])
	total := 4 + length
	if len(r.buf) < total {
		return nil, false
	}
	raw = append([]byte(nil), r.buf[:total]...)
	r.buf = r.buf[total:]
	return raw, true
}

func encodeCipherSuites(suites []wire.CipherSuite) []byte {
	w := wire.NewWriter()
	for _, cs := range suites {
		w.U16(uint16(cs))
	}
	return w.Final()
}

func decodeCipherSuites(b []byte) ([]wire.CipherSuite, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("handshake: odd-length cipher suite list")
	}
	out := make([]wire.CipherSuite, 0, len(b)/2)
	r := wire.NewReader(b)
	for r.Remaining() > 0 {
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		out = append(out, wire.CipherSuite(v))
	}
	return out, nil
}

func encodeCompressionMethods(methods []wire.CompressionMethod) []byte {
	w := wire.NewWriter()
	for _, m := range methods {
		w.U8(uint8(m))
	}
	return w.Final()
}

func decodeCompressionMethods(b []byte) []wire.CompressionMethod {
	out := make([]wire.CompressionMethod, 0, len(b))
	for _, m := range b {
		out = append(out, wire.CompressionMethod(m))
	}
	return out
}

// encodeServerNameExtension encodes the RFC 6066 ServerName extension
// (extensions TLV header included) for a single host_name entry.
func encodeServerNameExtension(name string) []byte {
	entry := wire.NewWriter()
	entry.U8(uint8(wire.ServerNameTypeHostName))
	entry.VecU16([]byte(name))

	listBody := wire.NewWriter()
	listBody.VecU16(entry.Final())

	ext := wire.NewWriter()
	ext.U16(uint16(wire.ExtensionServerName))
	ext.VecU16(listBody.Final())
	return ext.Final()
}

// decodeExtensions walks a raw extensions block and returns the SNI
// host_name if present; every other extension is skipped unread, per
// spec §1 ("extensions beyond ServerName... out of scope").
func decodeExtensions(b []byte) (serverName string, err error) {
	r := wire.NewReader(b)
	for r.Remaining() > 0 {
		extType, err := r.U16()
		if err != nil {
			return "", err
		}
		extData, err := r.VecU16()
		if err != nil {
			return "", err
		}
		if wire.ExtensionType(extType) != wire.ExtensionServerName {
			continue
		}
		inner := wire.NewReader(extData)
		listBytes, err := inner.VecU16()
		if err != nil {
			return "", err
		}
		lr := wire.NewReader(listBytes)
		for lr.Remaining() > 0 {
			nameType, err := lr.U8()
			if err != nil {
				return "", err
			}
			name, err := lr.VecU16()
			if err != nil {
				return "", err
			}
			if wire.ServerNameType(nameType) == wire.ServerNameTypeHostName && serverName == "" {
				serverName = string(name)
			}
		}
	}
	return serverName, nil
}

// EncodeClientHello implements spec §4.3's ClientHello wire format,
// including the client's optional SNI extension.
func EncodeClientHello(ch ClientHello) []byte {
	w := wire.NewWriter()
	w.U16(ch.Version)
	w.Write(ch.Random[:])
	w.VecU8(ch.SessionID)
	w.VecU16(encodeCipherSuites(ch.CipherSuites))
	w.VecU8(encodeCompressionMethods(ch.CompressionMethods))

	ext := wire.NewWriter()
	if ch.ServerName != "" {
		ext.Write(encodeServerNameExtension(ch.ServerName))
	}
	w.VecU16(ext.Final())
	return w.Final()
}

// DecodeClientHello parses a ClientHello body (server side).
func DecodeClientHello(body []byte) (ClientHello, error) {
	r := wire.NewReader(body)
	var ch ClientHello

	version, err := r.U16()
	if err != nil {
		return ch, fmt.Errorf("client_hello.version: %w", err)
	}
	ch.Version = version

	randomBytes, err := r.Bytes(32)
	if err != nil {
		return ch, fmt.Errorf("client_hello.random: %w", err)
	}
	copy(ch.Random[:], randomBytes)

	sid, err := r.VecU8()
	if err != nil {
		return ch, fmt.Errorf("client_hello.session_id: %w", err)
	}
	ch.SessionID = append([]byte(nil), sid...)

	suitesRaw, err := r.VecU16()
	if err != nil {
		return ch, fmt.Errorf("client_hello.cipher_suites: %w", err)
	}
	ch.CipherSuites, err = decodeCipherSuites(suitesRaw)
	if err != nil {
		return ch, fmt.Errorf("client_hello.cipher_suites: %w", err)
	}

	compRaw, err := r.VecU8()
	if err != nil {
		return ch, fmt.Errorf("client_hello.compression_methods: %w", err)
	}
	ch.CompressionMethods = decodeCompressionMethods(compRaw)

	if r.Remaining() > 0 {
		extRaw, err := r.VecU16()
		if err != nil {
			return ch, fmt.Errorf("client_hello.extensions: %w", err)
		}
		ch.ServerName, err = decodeExtensions(extRaw)
		if err != nil {
			return ch, fmt.Errorf("client_hello.extensions: %w", err)
		}
	}

	return ch, nil
}

// EncodeServerHello implements spec §4.3's ServerHello wire format.
func EncodeServerHello(sh ServerHello) []byte {
	w := wire.NewWriter()
	w.U16(sh.Version)
	w.Write(sh.Random[:])
	w.VecU8(sh.SessionID)
	w.U16(uint16(sh.CipherSuite))
	w.U8(uint8(sh.CompressionMethod))
	w.VecU16(nil) // this engine produces no server-side extensions
	return w.Final()
}

// DecodeServerHello parses a ServerHello body (client side).
func DecodeServerHello(body []byte) (ServerHello, error) {
	r := wire.NewReader(body)
	var sh ServerHello

	version, err := r.U16()
	if err != nil {
		return sh, fmt.Errorf("server_hello.version: %w", err)
	}
	sh.Version = version

	randomBytes, err := r.Bytes(32)
	if err != nil {
		return sh, fmt.Errorf("server_hello.random: %w", err)
	}
	copy(sh.Random[:], randomBytes)

	sid, err := r.VecU8()
	if err != nil {
		return sh, fmt.Errorf("server_hello.session_id: %w", err)
	}
	sh.SessionID = append([]byte(nil), sid...)

	cs, err := r.U16()
	if err != nil {
		return sh, fmt.Errorf("server_hello.cipher_suite: %w", err)
	}
	sh.CipherSuite = wire.CipherSuite(cs)

	comp, err := r.U8()
	if err != nil {
		return sh, fmt.Errorf("server_hello.compression_method: %w", err)
	}
	sh.CompressionMethod = wire.CompressionMethod(comp)

	// Extensions are optional on the wire; ignore them if present (spec
	// §1: extensions beyond ServerName are out of scope for the server
	// direction).
	return sh, nil
}

// EncodeCertificate wraps a single DER certificate in the two nested
// length-prefixed lists spec §4.3 describes. Only one certificate is ever
// produced (spec §1 Non-goal: single cert only).
func EncodeCertificate(der []byte) []byte {
	inner := wire.NewWriter()
	inner.VecU24(der)
	w := wire.NewWriter()
	w.VecU24(inner.Final())
	return w.Final()
}

// DecodeCertificate parses a Certificate body and retains only the first
// certificate in the chain.
func DecodeCertificate(body []byte) ([]byte, error) {
	r := wire.NewReader(body)
	chain, err := r.VecU24()
	if err != nil {
		return nil, fmt.Errorf("certificate.chain: %w", err)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("certificate: empty certificate list")
	}
	inner := wire.NewReader(chain)
	first, err := inner.VecU24()
	if err != nil {
		return nil, fmt.Errorf("certificate.entry: %w", err)
	}
	return first, nil
}

// EncodeServerHelloDone returns the (empty) ServerHelloDone body.
func EncodeServerHelloDone() []byte { return []byte{} }

// DecodeServerHelloDone validates that a ServerHelloDone body is empty.
func DecodeServerHelloDone(body []byte) error {
	if len(body) != 0 {
		return fmt.Errorf("server_hello_done: expected empty body, got %d bytes", len(body))
	}
	return nil
}

// EncodeClientKeyExchangeRSA wraps an RSA-encrypted premaster secret.
func EncodeClientKeyExchangeRSA(encryptedPreMasterSecret []byte) []byte {
	w := wire.NewWriter()
	w.VecU16(encryptedPreMasterSecret)
	return w.Final()
}

// DecodeClientKeyExchangeRSA extracts the RSA-encrypted premaster secret.
func DecodeClientKeyExchangeRSA(body []byte) ([]byte, error) {
	r := wire.NewReader(body)
	ct, err := r.VecU16()
	if err != nil {
		return nil, fmt.Errorf("client_key_exchange: %w", err)
	}
	return ct, nil
}

// EncodeFinished returns the 12-byte Finished body.
func EncodeFinished(verifyData [12]byte) []byte {
	return append([]byte(nil), verifyData[:]...)
}

// DecodeFinished parses exactly 12 bytes of verify_data.
func DecodeFinished(body []byte) ([12]byte, error) {
	var vd [12]byte
	if len(body) != 12 {
		return vd, fmt.Errorf("finished: expected 12 bytes, got %d", len(body))
	}
	copy(vd[:], body)
	return vd, nil
}

// ChangeCipherSpecByte is the sole valid ChangeCipherSpec record payload.
// ChangeCipherSpec is not a handshake message: it carries content type 20
// and is never added to the handshake transcript.
const ChangeCipherSpecByte = 0x01

// EncodeAlert returns the 2-byte (level, description) alert body.
func EncodeAlert(level wire.AlertLevel, desc wire.AlertDescription) []byte {
	return []byte{byte(level), byte(desc)}
}

// DecodeAlert parses a 2-byte alert body.
func DecodeAlert(body []byte) (wire.AlertLevel, wire.AlertDescription, error) {
	if len(body) != 2 {
		return 0, 0, fmt.Errorf("alert: expected 2 bytes, got %d", len(body))
	}
	return wire.AlertLevel(body[0]), wire.AlertDescription(body[1]), nil
}
