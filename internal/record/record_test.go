package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
)

func TestPeekNeedsMoreBytes(t *testing.T) {
	hdr, payload, consumed, err := Peek([]byte{0x17, 0x03})
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Nil(t, payload)
	assert.Equal(t, Header{}, hdr)
}

func TestPeekNeedsMorePayloadBytes(t *testing.T) {
	header := Build(wire.ContentTypeApplicationData, wire.VersionTLS12, []byte("hello"))
	hdr, payload, consumed, err := Peek(header[:len(header)-2])
	require.NoError(t, err)
	assert.Equal(t, 0, consumed)
	assert.Nil(t, payload)
	_ = hdr
}

func TestPeekFullRecord(t *testing.T) {
	rec := Build(wire.ContentTypeApplicationData, wire.VersionTLS12, []byte("ping\n"))
	hdr, payload, consumed, err := Peek(rec)
	require.NoError(t, err)
	assert.Equal(t, len(rec), consumed)
	assert.Equal(t, []byte("ping\n"), payload)
	assert.Equal(t, wire.ContentTypeApplicationData, hdr.Type)
	assert.Equal(t, wire.VersionTLS12, hdr.Version)
}

func TestPeekRejectsBadVersion(t *testing.T) {
	buf := []byte{byte(wire.ContentTypeHandshake), 0x09, 0x09, 0x00, 0x00}
	_, _, _, err := Peek(buf)
	require.Error(t, err)
}

func TestPeekRejectsUnknownContentType(t *testing.T) {
	buf := []byte{0x01, 0x03, 0x03, 0x00, 0x00}
	_, _, _, err := Peek(buf)
	require.Error(t, err)
}

func TestPeekRejectsOverflow(t *testing.T) {
	buf := []byte{byte(wire.ContentTypeApplicationData), 0x03, 0x03, 0xFF, 0xFF}
	_, _, _, err := Peek(buf)
	require.Error(t, err)
}

func TestPeekAcceptsZeroLengthRecord(t *testing.T) {
	rec := Build(wire.ContentTypeApplicationData, wire.VersionTLS12, nil)
	hdr, payload, consumed, err := Peek(rec)
	require.NoError(t, err)
	assert.Equal(t, 5, consumed)
	assert.Empty(t, payload)
	assert.Equal(t, wire.ContentTypeApplicationData, hdr.Type)
}

// identityParams is the pre-handshake, pre-CCS cipher: stream type, null
// bulk, and a null MAC algorithm, so Protect/Unprotect are true identity.
func identityParams() suite.Info {
	return suite.Info{CipherType: suite.CipherTypeStream, Bulk: suite.BulkNull}
}

func nullSHAParams() suite.Info {
	info, _ := suite.Lookup(wire.TLSRSAWithNullSHA)
	return info
}

func cbcParams() suite.Info {
	info, _ := suite.Lookup(wire.TLSRSAWithAES128CBCSHA)
	return info
}

func TestProtectUnprotectIdentityCipherIsIdentity(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	params := identityParams()
	keys := Keys{}

	ct, err := Protect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, []byte("ping\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ping\n"), ct)

	pt, err := Unprotect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping\n"), pt)
}

func TestProtectUnprotectNullSHASuiteStillAppliesARealMAC(t *testing.T) {
	// TLS_RSA_WITH_NULL_SHA has no bulk encryption, but the MAC is not
	// optional: every record still carries a 20-byte HMAC-SHA1 trailer.
	backend := crypto.NewDefaultBackend()
	params := nullSHAParams()
	keys := Keys{MACKey: bytes.Repeat([]byte{0x09}, params.MACKeyLength)}

	plaintext := []byte("ping\n")
	ct, err := Protect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, plaintext)
	require.NoError(t, err)
	assert.Len(t, ct, len(plaintext)+20)
	assert.Equal(t, plaintext, ct[:len(plaintext)])
	assert.NotEqual(t, make([]byte, 20), ct[len(plaintext):])

	pt, err := Unprotect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)

	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = Unprotect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, tampered)
	require.Error(t, err)
}

func TestProtectUnprotectCBCRoundTrip(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	params := cbcParams()
	keys := Keys{MACKey: bytes.Repeat([]byte{0x11}, params.MACKeyLength), EncKey: bytes.Repeat([]byte{0x22}, params.EncKeyLength)}

	plaintext := []byte("application data payload")
	ct, err := Protect(backend, params, keys, 3, wire.ContentTypeApplicationData, wire.VersionTLS12, plaintext)
	require.NoError(t, err)

	pt, err := Unprotect(backend, params, keys, 3, wire.ContentTypeApplicationData, wire.VersionTLS12, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestProtectCBCSingleByteRecordLength(t *testing.T) {
	// Scenario 2 from spec §8: a 1-byte application-data record under
	// AES-128-CBC-SHA must produce a 53-byte wire record: 5 header +
	// 16 explicit IV + 32 (1 byte payload + 20 byte MAC padded to the
	// next 16-byte block boundary).
	backend := crypto.NewDefaultBackend()
	params := cbcParams()
	keys := Keys{MACKey: bytes.Repeat([]byte{0x01}, params.MACKeyLength), EncKey: bytes.Repeat([]byte{0x02}, params.EncKeyLength)}

	ct, err := Protect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, []byte{0x42})
	require.NoError(t, err)
	assert.Len(t, ct, 48) // 16 IV + 32 ciphertext

	rec := Build(wire.ContentTypeApplicationData, wire.VersionTLS12, ct)
	assert.Len(t, rec, 53)
}

func TestUnprotectDetectsBadMAC(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	params := cbcParams()
	keys := Keys{MACKey: bytes.Repeat([]byte{0x01}, params.MACKeyLength), EncKey: bytes.Repeat([]byte{0x02}, params.EncKeyLength)}

	ct, err := Protect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, []byte("hello"))
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = Unprotect(backend, params, keys, 0, wire.ContentTypeApplicationData, wire.VersionTLS12, tampered)
	require.Error(t, err)
}

func TestUnprotectDetectsWrongSequenceNumber(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	params := cbcParams()
	keys := Keys{MACKey: bytes.Repeat([]byte{0x01}, params.MACKeyLength), EncKey: bytes.Repeat([]byte{0x02}, params.EncKeyLength)}

	ct, err := Protect(backend, params, keys, 5, wire.ContentTypeApplicationData, wire.VersionTLS12, []byte("hello"))
	require.NoError(t, err)

	_, err = Unprotect(backend, params, keys, 6, wire.ContentTypeApplicationData, wire.VersionTLS12, ct)
	require.Error(t, err)
}
