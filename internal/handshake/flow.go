package handshake

import (
	"fmt"

	"github.com/vlet/tls12/internal/crypto"
	"github.com/vlet/tls12/internal/suite"
	"github.com/vlet/tls12/internal/xerrors"
)

// PRF labels from RFC 5246 §5.
const (
	LabelMasterSecret  = "master secret"
	LabelKeyExpansion  = "key expansion"
	LabelClientFinished = "client finished"
	LabelServerFinished = "server finished"
)

// RequireRSA rejects any negotiated suite whose key exchange isn't RSA;
// spec §1 lists DH key exchange as out of scope, so reaching this with
// anything else is an internal_error, not a protocol alert.
func RequireRSA(info suite.Info) error {
	if info.KeyExchange != suite.KeyExchangeRSA {
		return xerrors.Internal("handshake.key_exchange", fmt.Errorf("unsupported key exchange algorithm %q", info.KeyExchange))
	}
	return nil
}

// BuildPreMasterSecret constructs the RSA premaster secret: the client's
// originally advertised protocol version (not the negotiated one — this
// resolves the downgrade-protection open question in the client's favor,
// RFC 5246 §7.4.7.1) followed by 46 random bytes.
func BuildPreMasterSecret(backend crypto.Backend, clientAdvertisedVersion uint16) ([]byte, error) {
	random, err := backend.Random(46)
	if err != nil {
		return nil, err
	}
	pms := make([]byte, 0, 48)
	pms = append(pms, byte(clientAdvertisedVersion>>8), byte(clientAdvertisedVersion))
	pms = append(pms, random...)
	return pms, nil
}

// MasterSecret derives the 48-byte master secret (spec §4.4 step 3):
// PRF(pre_master_secret, "master secret", client_random || server_random).
func MasterSecret(backend crypto.Backend, preMasterSecret []byte, clientRandom, serverRandom [32]byte) [48]byte {
	seed := make([]byte, 0, 64)
	seed = append(seed, clientRandom[:]...)
	seed = append(seed, serverRandom[:]...)
	out := backend.PRF(preMasterSecret, LabelMasterSecret, seed, 48)
	var ms [48]byte
	copy(ms[:], out)
	return ms
}

// DeriveKeyBlock expands the master secret into a key_block (spec §4.4
// step 4) and splits it using the negotiated suite's fixed field order.
func DeriveKeyBlock(backend crypto.Backend, info suite.Info, masterSecret [48]byte, clientRandom, serverRandom [32]byte) suite.KeyBlock {
	seed := make([]byte, 0, 64)
	seed = append(seed, serverRandom[:]...)
	seed = append(seed, clientRandom[:]...)
	raw := backend.PRF(masterSecret[:], LabelKeyExpansion, seed, info.KeyBlockLength())
	return info.Split(raw)
}

// FinishedVerifyData computes PRF(master_secret, label, Hash(transcript), 12)
// per spec §4.4 step 5. label must be LabelClientFinished or
// LabelServerFinished depending on which side is sending.
func FinishedVerifyData(backend crypto.Backend, masterSecret [48]byte, label string, transcript []byte) [12]byte {
	hash := backend.PRFHash(transcript)
	out := backend.PRF(masterSecret[:], label, hash[:], 12)
	var vd [12]byte
	copy(vd[:], out)
	return vd
}
