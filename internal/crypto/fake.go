package crypto

import "io"

// FakeBackend wraps DefaultBackend but draws "random" bytes from a
// caller-supplied deterministic stream instead of crypto/rand. It exists
// so record- and handshake-layer tests can assert exact wire bytes
// (explicit IVs, client/server random, premaster padding) without
// reaching into the real backend's entropy source.
type FakeBackend struct {
	DefaultBackend
	Source io.Reader
}

func NewFakeBackend(source io.Reader) *FakeBackend {
	return &FakeBackend{Source: source}
}

func (f *FakeBackend) Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(f.Source, b); err != nil {
		return nil, err
	}
	return b, nil
}
