package record

import (
	"fmt"

	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
)

const headerLength = 5

// Header is the 5-byte record header: type:u8 | version:u16_be | length:u16_be.
type Header struct {
	Type    wire.ContentType
	Version uint16
	Length  uint16
}

// Peek implements spec §4.1 steps 1-4 plus the record_overflow check added
// by SPEC_FULL §12: it parses one record header out of buf without
// requiring the payload to already be present, validates version/type/
// length, and reports how many bytes of buf the full record occupies.
//
// consumed == 0 && err == nil means "need more bytes" (partial header or
// partial payload); consumed > 0 means a full record was parsed; err
// non-nil is a fatal framing violation the caller must turn into an alert.
func Peek(buf []byte) (hdr Header, payload []byte, consumed int, err error) {
	if len(buf) < headerLength {
		return Header{}, nil, 0, nil
	}

	hdr = Header{
		Type:    wire.ContentType(buf[0]),
		Version: uint16(buf[1])<<8 | uint16(buf[2]),
		Length:  uint16(buf[3])<<8 | uint16(buf[4]),
	}

	if !wire.IsTLSVersion(hdr.Version) {
		return Header{}, nil, 0, xerrors.ProtocolVersion("record.peek", fmt.Errorf("unrecognized record version %#04x", hdr.Version))
	}
	if !hdr.Type.Valid() {
		return Header{}, nil, 0, xerrors.UnexpectedMessage("record.peek", fmt.Errorf("unrecognized content type %d", hdr.Type))
	}
	if int(hdr.Length) > wire.MaxCiphertextLength {
		return Header{}, nil, 0, xerrors.RecordOverflow("record.peek", fmt.Errorf("record length %d exceeds maximum %d", hdr.Length, wire.MaxCiphertextLength))
	}

	total := headerLength + int(hdr.Length)
	if len(buf) < total {
		return Header{}, nil, 0, nil
	}

	return hdr, buf[headerLength:total], total, nil
}

// Build prepends a record header to an already-protected payload.
func Build(ct wire.ContentType, version uint16, payload []byte) []byte {
	out := make([]byte, 0, headerLength+len(payload))
	out = append(out, byte(ct), byte(version>>8), byte(version))
	out = append(out, byte(len(payload)>>8), byte(len(payload)))
	out = append(out, payload...)
	return out
}
