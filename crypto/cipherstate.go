package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherState holds a single AEAD key and a strictly monotonic 64-bit nonce
// counter, per §4.B. It is the leaf of the Noise layering: SymmetricState
// and HandshakeState are both built on top of it, the way the teacher's
// crypto/encryption.go CipherState underlies crypto/noise.go.
//
// Unlike the teacher's nonce construction (big-endian counter in the last
// 8 bytes), this implementation uses little-endian, per the wire contract
// this repository targets: nonce = 0x00 x 4 ‖ LE(counter, 8 bytes).
type CipherState struct {
	c     cipherAEAD
	nonce uint64
	keyed bool
}

// cipherAEAD is the minimal surface CipherState needs; an interface keeps
// the chacha20poly1305 import isolated to this file.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewCipherState returns an unkeyed CipherState; HasKey() is false until
// InitializeKey is called.
func NewCipherState() *CipherState {
	return &CipherState{}
}

// InitializeKey sets the AEAD key and resets the nonce counter to zero.
func (cs *CipherState) InitializeKey(key [32]byte) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		// key is always exactly 32 bytes here; chacha20poly1305.New only
		// fails on wrong key length.
		panic("crypto: unreachable: chacha20poly1305 key length")
	}
	cs.c = aead
	cs.nonce = 0
	cs.keyed = true
}

// HasKey reports whether InitializeKey has been called.
func (cs *CipherState) HasKey() bool { return cs.keyed }

// Nonce returns the current (next-to-use) nonce counter, for diagnostics
// and tests.
func (cs *CipherState) Nonce() uint64 { return cs.nonce }

func nonceBytes(counter uint64) [12]byte {
	var n [12]byte
	binary.LittleEndian.PutUint64(n[4:], counter)
	return n
}

// Encrypt seals plaintext with associated data ad, returning ciphertext‖tag.
// The nonce counter only advances on success.
func (cs *CipherState) Encrypt(plaintext, ad []byte) ([]byte, error) {
	if !cs.keyed {
		return nil, newErr(KindUninitializedCipher, "encrypt without key")
	}
	n := nonceBytes(cs.nonce)
	out := cs.c.Seal(nil, n[:], plaintext, ad)
	cs.nonce++
	return out, nil
}

// Decrypt opens ciphertext (ct‖tag) with associated data ad. The nonce
// counter only advances on authenticated success.
func (cs *CipherState) Decrypt(ciphertext, ad []byte) ([]byte, error) {
	if !cs.keyed {
		return nil, newErr(KindUninitializedCipher, "decrypt without key")
	}
	if len(ciphertext) < chacha20poly1305.Overhead {
		return nil, newErr(KindInvalidCiphertext, "ciphertext shorter than tag")
	}
	n := nonceBytes(cs.nonce)
	pt, err := cs.c.Open(nil, n[:], ciphertext, ad)
	if err != nil {
		return nil, wrapErr(KindAuthenticationFailure, "aead open", err)
	}
	cs.nonce++
	return pt, nil
}
