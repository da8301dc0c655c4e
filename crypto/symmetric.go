package crypto

import "crypto/sha256"

// SymmetricState tracks the running chaining key and handshake hash used
// to mix DH outputs and payloads into the transcript, per §4.C. It owns a
// single CipherState that becomes keyed partway through the handshake.
type SymmetricState struct {
	ck []byte // chaining key, HashLen bytes
	h  []byte // handshake hash, HashLen bytes
	cs *CipherState
}

// NewSymmetricState initialises h from protocolName (zero-padded if short
// enough, else hashed) and sets ck = h, per Noise §5.2.
func NewSymmetricState(protocolName string) *SymmetricState {
	h := make([]byte, HashLen)
	name := []byte(protocolName)
	if len(name) <= HashLen {
		copy(h, name)
	} else {
		sum := sha256.Sum256(name)
		copy(h, sum[:])
	}
	ck := make([]byte, HashLen)
	copy(ck, h)
	return &SymmetricState{ck: ck, h: h, cs: NewCipherState()}
}

// MixKey absorbs a DH output into the chaining key and re-keys the
// internal cipher state.
func (ss *SymmetricState) MixKey(ikm []byte) {
	out := noiseHKDF(ss.ck, ikm, 2)
	ss.ck = out[0]
	var k [32]byte
	copy(k[:], out[1])
	ss.cs.InitializeKey(k)
}

// MixHash folds data into the running transcript hash.
func (ss *SymmetricState) MixHash(data []byte) {
	sum := sha256.New()
	sum.Write(ss.h)
	sum.Write(data)
	ss.h = sum.Sum(nil)
}

// MixKeyAndHash absorbs ikm into both the chaining key (deriving a new
// cipher key) and the transcript hash via the intermediate HKDF output,
// used only by the psk token (unused by XX/IK/NK but kept for symmetry
// with the Noise spec's full operation set).
func (ss *SymmetricState) MixKeyAndHash(ikm []byte) {
	out := noiseHKDF(ss.ck, ikm, 3)
	ss.ck = out[0]
	ss.MixHash(out[1])
	var k [32]byte
	copy(k[:], out[2])
	ss.cs.InitializeKey(k)
}

// EncryptAndHash encrypts plaintext if the internal cipher is keyed
// (mixing the ciphertext into the hash), or else passes it through
// unencrypted while still mixing it into the hash.
func (ss *SymmetricState) EncryptAndHash(plaintext []byte) ([]byte, error) {
	if !ss.cs.HasKey() {
		ss.MixHash(plaintext)
		return plaintext, nil
	}
	ct, err := ss.cs.Encrypt(plaintext, ss.h)
	if err != nil {
		return nil, err
	}
	ss.MixHash(ct)
	return ct, nil
}

// DecryptAndHash is the inverse of EncryptAndHash.
func (ss *SymmetricState) DecryptAndHash(ciphertext []byte) ([]byte, error) {
	if !ss.cs.HasKey() {
		ss.MixHash(ciphertext)
		return ciphertext, nil
	}
	pt, err := ss.cs.Decrypt(ciphertext, ss.h)
	if err != nil {
		return nil, err
	}
	ss.MixHash(ciphertext)
	return pt, nil
}

// Split derives the two transport cipher states from the final chaining
// key. The caller (HandshakeState) assigns (cs1, cs2) to (send, recv) for
// the initiator and (recv, send) for the responder.
func (ss *SymmetricState) Split() (cs1, cs2 *CipherState) {
	out := noiseHKDF(ss.ck, nil, 2)
	var k1, k2 [32]byte
	copy(k1[:], out[0])
	copy(k2[:], out[1])
	cs1 = NewCipherState()
	cs1.InitializeKey(k1)
	cs2 = NewCipherState()
	cs2.InitializeKey(k2)
	return cs1, cs2
}

// HandshakeHash returns the current transcript hash; valid at any point,
// but only meaningful as the session-binding value once the handshake
// terminates.
func (ss *SymmetricState) HandshakeHash() []byte {
	out := make([]byte, len(ss.h))
	copy(out, ss.h)
	return out
}
