package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vlet/tls12/internal/suite"
)

func generateSelfSigned(t *testing.T) (certPEM, keyPEM []byte, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tls12-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, key
}

func TestParseCertificateAndKeyRoundTrip(t *testing.T) {
	certPEM, keyPEM, key := generateSelfSigned(t)

	b := NewDefaultBackend()
	der, priv, err := b.ParseCertificateAndKey(certPEM, keyPEM)
	require.NoError(t, err)
	require.Equal(t, key.D, priv.D)

	pub, err := b.CertPublicKey(der)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey.N, pub.N)
}

func TestRSAEncryptDecryptRoundTrip(t *testing.T) {
	_, _, key := generateSelfSigned(t)
	b := NewDefaultBackend()

	plaintext := make([]byte, 46)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}
	ct, err := b.RSAEncrypt(&key.PublicKey, plaintext)
	require.NoError(t, err)

	pt, err := b.RSADecrypt(key, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestCBCEncryptDecryptRoundTrip(t *testing.T) {
	b := NewDefaultBackend()
	key := make([]byte, 16)
	iv := make([]byte, 16)
	plaintext := make([]byte, 32)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ct, err := b.CBCEncrypt(suite.BulkAES128CBC, key, iv, plaintext)
	require.NoError(t, err)
	require.Len(t, ct, len(plaintext))

	pt, err := b.CBCDecrypt(suite.BulkAES128CBC, key, iv, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestHMACNullReturnsNil(t *testing.T) {
	b := NewDefaultBackend()
	mac, err := b.HMAC(suite.MACNull, []byte("k"), []byte("d"))
	require.NoError(t, err)
	require.Nil(t, mac)
}

func TestHMACSHA256Length(t *testing.T) {
	b := NewDefaultBackend()
	mac, err := b.HMAC(suite.MACSHA256, []byte("k"), []byte("d"))
	require.NoError(t, err)
	require.Len(t, mac, 32)
}

func TestRC4KeystreamLength(t *testing.T) {
	b := NewDefaultBackend()
	ks, err := b.RC4Keystream([]byte("0123456789abcdef"), 40)
	require.NoError(t, err)
	require.Len(t, ks, 40)
}
