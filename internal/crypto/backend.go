// Package crypto is the cryptographic backend abstraction from spec §6:
// everything PEM/ASN.1/RSA/HMAC/block-cipher shaped that the record layer
// and handshake cryptographic flow treat as an external collaborator.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"hash"

	cfsslhelpers "github.com/cloudflare/cfssl/helpers"
	zx509 "github.com/zmap/zcrypto/x509"

	"github.com/vlet/tls12/internal/prf"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/xerrors"
)

// Backend is the crypto contract from spec §6. A Context is constructed
// with one; tests may supply a fake that returns deterministic randomness
// to make scenarios reproducible.
type Backend interface {
	// Random returns n cryptographically strong random bytes.
	Random(n int) ([]byte, error)

	// PRF is the TLS 1.2 pseudo-random function (spec §4.4).
	PRF(secret []byte, label string, seed []byte, n int) []byte

	// PRFHash is the transcript hash, SHA-256 for TLS 1.2.
	PRFHash(data []byte) [32]byte

	// HMAC computes the MAC for the given algorithm; MACNull returns
	// (nil, nil).
	HMAC(alg suite.MACAlgorithm, key, data []byte) ([]byte, error)

	// CertPublicKey extracts the RSA subjectPublicKeyInfo from a DER
	// certificate.
	CertPublicKey(der []byte) (*rsa.PublicKey, error)

	// ParseCertificateAndKey parses a PEM certificate and PEM RSA
	// private key, returning the certificate's DER bytes and the
	// decoded key, for server-side setup.
	ParseCertificateAndKey(certPEM, keyPEM []byte) (certDER []byte, priv *rsa.PrivateKey, err error)

	// RSAEncrypt/RSADecrypt implement RSAES-PKCS1-v1_5.
	RSAEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	RSADecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)

	// CBCEncrypt/CBCDecrypt implement the block-cipher primitives the
	// protection layer needs for AES-128/256-CBC and 3DES-EDE-CBC.
	CBCEncrypt(alg suite.BulkCipher, key, iv, plaintext []byte) ([]byte, error)
	CBCDecrypt(alg suite.BulkCipher, key, iv, ciphertext []byte) ([]byte, error)

	// RC4Keystream returns n bytes of RC4 keystream seeded by key,
	// for the (unused-by-default-suites, but dispatch-complete) RC4_128
	// stream cipher.
	RC4Keystream(key []byte, n int) ([]byte, error)
}

// DefaultBackend implements Backend with the Go standard library plus
// cfssl/zcrypto for certificate parsing, as described in SPEC_FULL §11.
type DefaultBackend struct{}

func NewDefaultBackend() *DefaultBackend { return &DefaultBackend{} }

func (DefaultBackend) Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, xerrors.Internal("random", err)
	}
	return b, nil
}

func (DefaultBackend) PRF(secret []byte, label string, seed []byte, n int) []byte {
	return prf.PRF(secret, label, seed, n)
}

func (DefaultBackend) PRFHash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func (DefaultBackend) HMAC(alg suite.MACAlgorithm, key, data []byte) ([]byte, error) {
	var newHash func() hash.Hash
	switch alg {
	case suite.MACNull:
		return nil, nil
	case suite.MACMD5:
		newHash = md5.New
	case suite.MACSHA:
		newHash = sha1.New
	case suite.MACSHA256:
		newHash = sha256.New
	default:
		return nil, xerrors.Internal("hmac", fmt.Errorf("unsupported mac algorithm %s", alg))
	}
	mac := hmac.New(newHash, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (DefaultBackend) CertPublicKey(der []byte) (*rsa.PublicKey, error) {
	if cert, err := x509.ParseCertificate(der); err == nil {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, xerrors.Internal("cert_pubkey", fmt.Errorf("leaf certificate key is not RSA"))
		}
		return pub, nil
	}

	// The strict stdlib parser rejects some certificates a real TLS
	// stack must still tolerate (weak signature OIDs, stray extensions).
	// zcrypto exists specifically for this leniency; fall back to it
	// before giving up.
	zc, err := zx509.ParseCertificate(der)
	if err != nil {
		return nil, xerrors.Internal("cert_pubkey", fmt.Errorf("parse certificate: %w", err))
	}
	pub, ok := zc.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, xerrors.Internal("cert_pubkey", fmt.Errorf("leaf certificate key is not RSA"))
	}
	return pub, nil
}

func (DefaultBackend) ParseCertificateAndKey(certPEM, keyPEM []byte) ([]byte, *rsa.PrivateKey, error) {
	cert, err := cfsslhelpers.ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, nil, xerrors.Internal("parse_certificate", err)
	}
	key, err := cfsslhelpers.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, nil, xerrors.Internal("parse_private_key", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, xerrors.Internal("parse_private_key", fmt.Errorf("only RSA private keys are supported"))
	}
	return cert.Raw, rsaKey, nil
}

func (DefaultBackend) RSAEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	if err != nil {
		return nil, xerrors.Internal("rsa_encrypt", err)
	}
	return ct, nil
}

func (DefaultBackend) RSADecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	pt, err := rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
	if err != nil {
		return nil, xerrors.Internal("rsa_decrypt", err)
	}
	return pt, nil
}

func newBlockCipher(alg suite.BulkCipher, key []byte) (cipher.Block, error) {
	switch alg {
	case suite.BulkAES128CBC, suite.BulkAES256CBC:
		b, err := aes.NewCipher(key)
		if err != nil {
			return nil, xerrors.Internal("aes_new_cipher", err)
		}
		return b, nil
	case suite.Bulk3DESEDECBC:
		b, err := des.NewTripleDESCipher(key)
		if err != nil {
			return nil, xerrors.Internal("3des_new_cipher", err)
		}
		return b, nil
	default:
		return nil, xerrors.Internal("block_cipher", fmt.Errorf("unsupported block cipher %s", alg))
	}
}

func (DefaultBackend) CBCEncrypt(alg suite.BulkCipher, key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlockCipher(alg, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

func (DefaultBackend) CBCDecrypt(alg suite.BulkCipher, key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlockCipher(alg, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

func (DefaultBackend) RC4Keystream(key []byte, n int) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, xerrors.Internal("rc4_new_cipher", err)
	}
	zeros := make([]byte, n)
	out := make([]byte, n)
	c.XORKeyStream(out, zeros)
	return out, nil
}
