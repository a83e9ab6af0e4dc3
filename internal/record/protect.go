// Package record implements the TLS 1.2 record layer from spec §4.1:
// framing, protection (MAC+encrypt / decrypt+verify), and the boundary
// buffering needed to cope with partial reads. It is deliberately
// stateless with respect to sequence numbers and epochs — the caller
// (internal/state) owns seq_read/seq_write and hands in the right value
// each call, per the Context ownership model in spec §3.
package record

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
	"github.com/vlet/tls12/internal/xerrors"
)

// Keys is the half of a KeyBlock a single Protect/Unprotect call needs:
// the writer's own keys to Protect, the peer's to Unprotect.
type Keys struct {
	MACKey []byte
	EncKey []byte
}

func macInput(seq uint64, ct wire.ContentType, version uint16, plaintext []byte) []byte {
	b := make([]byte, 0, 8+1+2+2+len(plaintext))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	b = append(b, seqBuf[:]...)
	b = append(b, byte(ct))
	b = append(b, byte(version>>8), byte(version))
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(plaintext)))
	b = append(b, lenBuf[:]...)
	b = append(b, plaintext...)
	return b
}

func fillByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// Protect implements the outbound half of spec §4.1 step 3: identity for
// the null cipher; MAC, PKCS#7 pad, fresh explicit IV, and CBC-encrypt for
// block ciphers (RFC 5246 §6.2.3.2, added per SPEC_FULL §12).
func Protect(backend crypto.Backend, params suite.Info, keys Keys, seq uint64, ct wire.ContentType, version uint16, plaintext []byte) ([]byte, error) {
	switch params.CipherType {
	case suite.CipherTypeStream:
		// "Stream" covers both the pre-handshake identity cipher (MAC
		// algorithm null, nothing appended) and TLS_RSA_WITH_NULL_SHA{,256}
		// (a real MAC is still computed; only the bulk encryption is null).
		if params.Bulk != suite.BulkNull {
			return nil, xerrors.Internal("protect", fmt.Errorf("stream cipher %s not implemented", params.Bulk))
		}
		mac, err := backend.HMAC(params.MAC, keys.MACKey, macInput(seq, ct, version, plaintext))
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(plaintext)+len(mac))
		out = append(out, plaintext...)
		out = append(out, mac...)
		return out, nil

	case suite.CipherTypeBlock:
		mac, err := backend.HMAC(params.MAC, keys.MACKey, macInput(seq, ct, version, plaintext))
		if err != nil {
			return nil, err
		}
		withMAC := make([]byte, 0, len(plaintext)+len(mac))
		withMAC = append(withMAC, plaintext...)
		withMAC = append(withMAC, mac...)

		padLen := params.BlockLength - (len(withMAC) % params.BlockLength)
		padded := append(withMAC, fillByte(byte(padLen-1), padLen)...)

		iv, err := backend.Random(params.RecordIVLength)
		if err != nil {
			return nil, err
		}
		ciphertext, err := backend.CBCEncrypt(params.Bulk, keys.EncKey, iv, padded)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(iv)+len(ciphertext))
		out = append(out, iv...)
		out = append(out, ciphertext...)
		return out, nil

	default:
		return nil, xerrors.Internal("protect", fmt.Errorf("unsupported cipher type"))
	}
}

// Unprotect implements the inbound half of spec §4.1 step 5.
func Unprotect(backend crypto.Backend, params suite.Info, keys Keys, seq uint64, ct wire.ContentType, version uint16, payload []byte) ([]byte, error) {
	switch params.CipherType {
	case suite.CipherTypeStream:
		if params.Bulk != suite.BulkNull {
			return nil, xerrors.Internal("unprotect", fmt.Errorf("stream cipher %s not implemented", params.Bulk))
		}
		if len(payload) < params.MACLength {
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("payload shorter than MAC"))
		}
		macStart := len(payload) - params.MACLength
		plaintext := payload[:macStart]
		gotMAC := payload[macStart:]
		wantMAC, err := backend.HMAC(params.MAC, keys.MACKey, macInput(seq, ct, version, plaintext))
		if err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("mac mismatch"))
		}
		return append([]byte(nil), plaintext...), nil

	case suite.CipherTypeBlock:
		if len(payload) < params.RecordIVLength {
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("payload shorter than explicit IV"))
		}
		iv := payload[:params.RecordIVLength]
		ciphertext := payload[params.RecordIVLength:]
		if len(ciphertext) == 0 || len(ciphertext)%params.BlockLength != 0 {
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("ciphertext not a block multiple"))
		}

		padded, err := backend.CBCDecrypt(params.Bulk, keys.EncKey, iv, ciphertext)
		if err != nil {
			return nil, xerrors.BadRecordMAC("unprotect", err)
		}

		padLen := int(padded[len(padded)-1]) + 1
		padOK := padLen <= len(padded)
		padStart := len(padded) - padLen
		if padOK {
			for _, b := range padded[padStart:] {
				if int(b) != padLen-1 {
					padOK = false
				}
			}
		} else {
			padStart = 0
		}

		if !padOK || len(padded[:padStart]) < params.MACLength {
			// Don't reveal *why* verification failed: fold a bad-padding
			// report into the same bad_record_mac alert a MAC mismatch
			// produces.
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("invalid padding or insufficient room for MAC"))
		}

		withoutPad := padded[:padStart]
		macStart := len(withoutPad) - params.MACLength
		plaintext := withoutPad[:macStart]
		gotMAC := withoutPad[macStart:]

		wantMAC, err := backend.HMAC(params.MAC, keys.MACKey, macInput(seq, ct, version, plaintext))
		if err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
			return nil, xerrors.BadRecordMAC("unprotect", fmt.Errorf("mac mismatch"))
		}
		return append([]byte(nil), plaintext...), nil

	default:
		return nil, xerrors.Internal("unprotect", fmt.Errorf("unsupported cipher type"))
	}
}
