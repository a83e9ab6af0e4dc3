// Package wire defines the TLS 1.2 record and handshake enumerations and
// the big-endian, length-prefixed codec primitives the rest of the engine
// builds on. Nothing here knows about connection state.
package wire

// ContentType is the outermost record-layer demultiplexing tag.
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeChangeCipherSpec, ContentTypeAlert, ContentTypeHandshake, ContentTypeApplicationData:
		return true
	default:
		return false
	}
}

func (t ContentType) String() string {
	switch t {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	default:
		return "unknown_content_type"
	}
}

// HandshakeType is the first byte of every handshake-layer message.
type HandshakeType uint8

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello       HandshakeType = 1
	HandshakeTypeServerHello       HandshakeType = 2
	HandshakeTypeCertificate       HandshakeType = 11
	HandshakeTypeServerKeyExchange HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone   HandshakeType = 14
	HandshakeTypeCertificateVerify HandshakeType = 15
	HandshakeTypeClientKeyExchange HandshakeType = 16
	HandshakeTypeFinished          HandshakeType = 20
)

func (t HandshakeType) String() string {
	switch t {
	case HandshakeTypeHelloRequest:
		return "hello_request"
	case HandshakeTypeClientHello:
		return "client_hello"
	case HandshakeTypeServerHello:
		return "server_hello"
	case HandshakeTypeCertificate:
		return "certificate"
	case HandshakeTypeServerKeyExchange:
		return "server_key_exchange"
	case HandshakeTypeCertificateRequest:
		return "certificate_request"
	case HandshakeTypeServerHelloDone:
		return "server_hello_done"
	case HandshakeTypeCertificateVerify:
		return "certificate_verify"
	case HandshakeTypeClientKeyExchange:
		return "client_key_exchange"
	case HandshakeTypeFinished:
		return "finished"
	default:
		return "unknown_handshake_type"
	}
}

// AlertLevel is the first byte of an Alert record.
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription is the second byte of an Alert record; it also doubles
// as this engine's error-kind enumeration (§7 of the spec).
type AlertDescription uint8

const (
	AlertCloseNotify       AlertDescription = 0
	AlertUnexpectedMessage AlertDescription = 10
	AlertBadRecordMAC      AlertDescription = 20
	AlertRecordOverflow    AlertDescription = 22
	AlertHandshakeFailure  AlertDescription = 40
	AlertProtocolVersion   AlertDescription = 70
	AlertInternalError     AlertDescription = 80
	AlertNoRenegotiation   AlertDescription = 100
)

func (d AlertDescription) String() string {
	switch d {
	case AlertCloseNotify:
		return "close_notify"
	case AlertUnexpectedMessage:
		return "unexpected_message"
	case AlertBadRecordMAC:
		return "bad_record_mac"
	case AlertRecordOverflow:
		return "record_overflow"
	case AlertHandshakeFailure:
		return "handshake_failure"
	case AlertProtocolVersion:
		return "protocol_version"
	case AlertInternalError:
		return "internal_error"
	case AlertNoRenegotiation:
		return "no_renegotiation"
	default:
		return "unknown_alert"
	}
}

// CipherSuite is the 16-bit wire code negotiated in ClientHello/ServerHello.
type CipherSuite uint16

const (
	TLSRSAWithNullSHA      CipherSuite = 0x0002
	TLSRSAWithAES128CBCSHA CipherSuite = 0x002F
	TLSRSAWithNullSHA256   CipherSuite = 0x003B
)

// Protocol versions recognized at the record layer. Only VersionTLS12 is
// accepted past the record layer into the handshake state machine.
const (
	VersionTLS10 uint16 = 0x0301
	VersionTLS11 uint16 = 0x0302
	VersionTLS12 uint16 = 0x0303
)

// IsTLSVersion reports whether v is a version the record layer will frame,
// independent of whether the handshake will ultimately accept it.
func IsTLSVersion(v uint16) bool {
	switch v {
	case VersionTLS10, VersionTLS11, VersionTLS12:
		return true
	default:
		return false
	}
}

// CompressionMethod is the single byte offered/selected for compression.
type CompressionMethod uint8

const CompressionNull CompressionMethod = 0

// ExtensionType identifies a ClientHello/ServerHello extension. Only
// ServerName is produced or consumed; others are skipped when decoding
// and are not retained.
type ExtensionType uint16

const ExtensionServerName ExtensionType = 0

// ServerNameType tags entries inside the ServerName extension.
type ServerNameType uint8

const ServerNameTypeHostName ServerNameType = 0

// MaxPlaintextLength is the largest pre-protection record payload (2^14),
// per RFC 5246 §6.2.1.
const MaxPlaintextLength = 1 << 14

// MaxCiphertextLength is the largest post-protection record payload
// (2^14 + 2048), per RFC 5246 §6.2.3.
const MaxCiphertextLength = MaxPlaintextLength + 2048
