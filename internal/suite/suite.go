// Package suite holds the cipher-suite table and the SecurityParameters /
// KeyBlock data model from spec §3. It depends only on wire, so both the
// handshake codec and the record layer can depend on it without a cycle.
package suite

import "github.com/vlet/tls12/internal/wire"

type ConnectionEnd uint8

const (
	ConnectionEndClient ConnectionEnd = iota
	ConnectionEndServer
)

// BulkCipher enumerates the bulk ciphers SecurityParameters can name.
// Only Null and AES128CBC are reachable through the statically recognized
// suite table; 3DES and RC4 are carried for completeness of the bulk
// cipher dispatch (SPEC_FULL §12) even though no suite here selects them.
type BulkCipher uint8

const (
	BulkNull BulkCipher = iota
	BulkAES128CBC
	BulkAES256CBC
	Bulk3DESEDECBC
	BulkRC4128
)

func (b BulkCipher) String() string {
	switch b {
	case BulkNull:
		return "null"
	case BulkAES128CBC:
		return "aes_128_cbc"
	case BulkAES256CBC:
		return "aes_256_cbc"
	case Bulk3DESEDECBC:
		return "3des_ede_cbc"
	case BulkRC4128:
		return "rc4_128"
	default:
		return "unknown_bulk_cipher"
	}
}

type CipherType uint8

const (
	CipherTypeStream CipherType = iota
	CipherTypeBlock
	CipherTypeAEAD
)

// MACAlgorithm enumerates the MAC hash used by the record layer.
type MACAlgorithm uint8

const (
	MACNull MACAlgorithm = iota
	MACMD5
	MACSHA
	MACSHA256
)

func (m MACAlgorithm) String() string {
	switch m {
	case MACNull:
		return "null"
	case MACMD5:
		return "md5"
	case MACSHA:
		return "sha"
	case MACSHA256:
		return "sha256"
	default:
		return "unknown_mac"
	}
}

// KeyExchangeAlgorithm names the key-exchange method a suite uses. Only
// RSA is implemented (spec §1 Non-goals exclude Diffie-Hellman).
type KeyExchangeAlgorithm string

const KeyExchangeRSA KeyExchangeAlgorithm = "RSA"

// Info is the resolved shape of a cipher suite: everything SecurityParameters
// needs to size keys, IVs, and MAC output once a suite has been chosen.
type Info struct {
	Suite          wire.CipherSuite
	KeyExchange    KeyExchangeAlgorithm
	Bulk           BulkCipher
	CipherType     CipherType
	MAC            MACAlgorithm
	EncKeyLength   int
	BlockLength    int
	FixedIVLength  int
	RecordIVLength int
	MACLength      int
	MACKeyLength   int
}

var table = map[wire.CipherSuite]Info{
	wire.TLSRSAWithNullSHA: {
		Suite: wire.TLSRSAWithNullSHA, KeyExchange: KeyExchangeRSA,
		Bulk: BulkNull, CipherType: CipherTypeStream, MAC: MACSHA,
		EncKeyLength: 0, BlockLength: 0, FixedIVLength: 0, RecordIVLength: 0,
		MACLength: 20, MACKeyLength: 20,
	},
	wire.TLSRSAWithNullSHA256: {
		Suite: wire.TLSRSAWithNullSHA256, KeyExchange: KeyExchangeRSA,
		Bulk: BulkNull, CipherType: CipherTypeStream, MAC: MACSHA256,
		EncKeyLength: 0, BlockLength: 0, FixedIVLength: 0, RecordIVLength: 0,
		MACLength: 32, MACKeyLength: 32,
	},
	wire.TLSRSAWithAES128CBCSHA: {
		Suite: wire.TLSRSAWithAES128CBCSHA, KeyExchange: KeyExchangeRSA,
		Bulk: BulkAES128CBC, CipherType: CipherTypeBlock, MAC: MACSHA,
		EncKeyLength: 16, BlockLength: 16, FixedIVLength: 0, RecordIVLength: 16,
		MACLength: 20, MACKeyLength: 20,
	},
}

// Lookup resolves a wire cipher suite code to its Info. ok is false for
// any suite this engine does not statically recognize (spec §3: "Unknown
// suites cause cipher_type() to return none").
func Lookup(cs wire.CipherSuite) (Info, bool) {
	info, ok := table[cs]
	return info, ok
}

// SelectFirstSupported implements the server's cipher-selection rule
// (spec §4.3): the first offered suite this engine recognizes wins.
func SelectFirstSupported(offered []wire.CipherSuite) (Info, bool) {
	for _, cs := range offered {
		if info, ok := Lookup(cs); ok {
			return info, true
		}
	}
	return Info{}, false
}

// Parameters is the SecurityParameters record from spec §3.
type Parameters struct {
	ConnectionEnd ConnectionEnd
	Suite         Info
	MasterSecret  [48]byte
	ClientRandom  [32]byte
	ServerRandom  [32]byte
}

// KeyBlock is the six derived byte strings from spec §3, split in the
// fixed order client_write_MAC_key, server_write_MAC_key,
// client_write_enc_key, server_write_enc_key, client_write_IV,
// server_write_IV.
type KeyBlock struct {
	ClientWriteMACKey []byte
	ServerWriteMACKey []byte
	ClientWriteEncKey []byte
	ServerWriteEncKey []byte
	ClientWriteIV     []byte
	ServerWriteIV     []byte
}

// Split carves a PRF "key expansion" output into the six KeyBlock fields,
// in the exact order spec §4.4 mandates. raw must be at least
// 2*MACKeyLength + 2*EncKeyLength + 2*FixedIVLength bytes.
func (i Info) Split(raw []byte) KeyBlock {
	var kb KeyBlock
	off := 0
	take := func(n int) []byte {
		b := raw[off : off+n]
		off += n
		return b
	}
	kb.ClientWriteMACKey = take(i.MACKeyLength)
	kb.ServerWriteMACKey = take(i.MACKeyLength)
	kb.ClientWriteEncKey = take(i.EncKeyLength)
	kb.ServerWriteEncKey = take(i.EncKeyLength)
	kb.ClientWriteIV = take(i.FixedIVLength)
	kb.ServerWriteIV = take(i.FixedIVLength)
	return kb
}

// KeyBlockLength returns the total PRF output length Split expects.
func (i Info) KeyBlockLength() int {
	return 2*i.MACKeyLength + 2*i.EncKeyLength + 2*i.FixedIVLength
}
