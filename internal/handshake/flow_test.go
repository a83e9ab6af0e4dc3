package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/wire"
)

func TestBuildPreMasterSecretShape(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	pms, err := BuildPreMasterSecret(backend, wire.VersionTLS12)
	require.NoError(t, err)
	require.Len(t, pms, 48)
	assert.Equal(t, byte(wire.VersionTLS12>>8), pms[0])
	assert.Equal(t, byte(wire.VersionTLS12), pms[1])
}

func TestMasterSecretDeterministic(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	var cr, sr [32]byte
	for i := range cr {
		cr[i] = byte(i)
		sr[i] = byte(64 - i)
	}
	pms := make([]byte, 48)
	ms1 := MasterSecret(backend, pms, cr, sr)
	ms2 := MasterSecret(backend, pms, cr, sr)
	assert.Equal(t, ms1, ms2)

	sr[0] ^= 0xFF
	ms3 := MasterSecret(backend, pms, cr, sr)
	assert.NotEqual(t, ms1, ms3)
}

func TestDeriveKeyBlockLengthsMatchSuite(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	info, ok := suite.Lookup(wire.TLSRSAWithAES128CBCSHA)
	require.True(t, ok)

	var ms [48]byte
	var cr, sr [32]byte
	kb := DeriveKeyBlock(backend, info, ms, cr, sr)

	assert.Len(t, kb.ClientWriteMACKey, info.MACKeyLength)
	assert.Len(t, kb.ServerWriteMACKey, info.MACKeyLength)
	assert.Len(t, kb.ClientWriteEncKey, info.EncKeyLength)
	assert.Len(t, kb.ServerWriteEncKey, info.EncKeyLength)
	assert.Len(t, kb.ClientWriteIV, info.FixedIVLength)
	assert.Len(t, kb.ServerWriteIV, info.FixedIVLength)
}

func TestFinishedVerifyDataDiffersByLabel(t *testing.T) {
	backend := crypto.NewDefaultBackend()
	var ms [48]byte
	transcript := []byte("fake transcript bytes")

	client := FinishedVerifyData(backend, ms, LabelClientFinished, transcript)
	server := FinishedVerifyData(backend, ms, LabelServerFinished, transcript)
	assert.NotEqual(t, client, server)

	again := FinishedVerifyData(backend, ms, LabelClientFinished, transcript)
	assert.Equal(t, client, again)
}

func TestRequireRSARejectsOtherAlgorithms(t *testing.T) {
	info := suite.Info{KeyExchange: "DH"}
	require.Error(t, RequireRSA(info))

	info.KeyExchange = suite.KeyExchangeRSA
	require.NoError(t, RequireRSA(info))
}
