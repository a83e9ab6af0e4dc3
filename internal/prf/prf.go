// Package prf implements the TLS 1.2 pseudo-random function, P_SHA256,
// used to derive the master secret, the key block, and Finished
// verify_data (spec §4.4).
package prf

import (
	"crypto/hmac"
	"crypto/sha256"
)

// pHash computes P_SHA256(secret, seed) = HMAC(secret, A(1)||seed) ||
// HMAC(secret, A(2)||seed) || ... truncated to n bytes, where A(0) = seed
// and A(i) = HMAC(secret, A(i-1)).
func pHash(secret, seed []byte, n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	a := seed
	for len(out) < n {
		mac := hmac.New(sha256.New, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(sha256.New, secret)
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:n]
}

// PRF computes PRF(secret, label, seed, n) = P_SHA256(secret, label||seed)
// truncated to n bytes. PRF(..., 0) returns an empty, non-nil slice.
func PRF(secret []byte, label string, seed []byte, n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	full := make([]byte, 0, len(label)+len(seed))
	full = append(full, label...)
	full = append(full, seed...)
	return pHash(secret, full, n)
}
