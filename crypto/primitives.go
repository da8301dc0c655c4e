// Package crypto implements the Noise Protocol Framework engine (handshake
// state, symmetric state, cipher state) used to establish encrypted
// per-peer sessions, grounded on the layering of the teacher's
// crypto/noise.go and crypto/encryption.go.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// DHLen is the length in bytes of a Curve25519 public key or shared secret.
	DHLen = 32
	// HashLen is the length in bytes of a SHA-256 digest.
	HashLen = 32
)

// GenerateKeypair produces a fresh Curve25519 keypair using the package's
// cryptographic RNG. The returned private scalar is clamped by
// curve25519.X25519 at DH time; no additional clamping is performed here.
func GenerateKeypair() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(rand.Reader, priv[:]); err != nil {
		return priv, pub, wrapErr(KindMissingKeys, "generate keypair", err)
	}
	pubSlice, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, wrapErr(KindMissingKeys, "derive public key", err)
	}
	copy(pub[:], pubSlice)
	return priv, pub, nil
}

// derivePublicCurve25519 computes the public point for a private scalar.
func derivePublicCurve25519(priv [32]byte) ([32]byte, error) {
	var pub [32]byte
	res, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, wrapErr(KindMissingLocalStaticKey, "derive public key", err)
	}
	copy(pub[:], res)
	return pub, nil
}

// DH performs X25519(priv, pub), returning the 32-byte shared secret.
func DH(priv, pub [32]byte) ([32]byte, error) {
	var out [32]byte
	res, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, wrapErr(KindInvalidPublicKey, "x25519", err)
	}
	copy(out[:], res)
	return out, nil
}

// RandomBytes fills and returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, wrapErr(KindUnknown, "random bytes", err)
	}
	return b, nil
}

// noiseHKDF implements Noise §4.3's HKDF(chainingKey, inputKeyMaterial,
// numOutputs) in terms of RFC 5869 HKDF: chainingKey is the Extract salt,
// inputKeyMaterial is the Extract secret, and the Expand info is empty.
// Because HashLen equals SHA-256's block output size, reading numOutputs
// sequential 32-byte blocks off the Expand stream reproduces Noise's
// chained output1/output2/output3 construction exactly, matching the
// teacher's crypto/noise.go mixKey, which builds its chaining key the same
// way via hkdf.Extract/hkdf.Expand.
func noiseHKDF(chainingKey, inputKeyMaterial []byte, numOutputs int) [][]byte {
	reader := hkdf.New(sha256.New, inputKeyMaterial, chainingKey, nil)
	outputs := make([][]byte, numOutputs)
	for i := range outputs {
		out := make([]byte, HashLen)
		if _, err := io.ReadFull(reader, out); err != nil {
			panic("noiseHKDF: expand stream exhausted: " + err.Error())
		}
		outputs[i] = out
	}
	return outputs
}
