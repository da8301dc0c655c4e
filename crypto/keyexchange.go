package crypto

// KeyExchange is a sealed interface over the Diffie-Hellman primitive the
// handshake layer depends on. It exists as a reserved seam for a future
// post-quantum hybrid key exchange (DESIGN NOTES): HandshakeState is
// written against this interface rather than the concrete Curve25519
// implementation, so a hybrid implementation is a pure addition rather
// than a rewrite. Only Curve25519KeyExchange ships; the unexported
// sealed() method keeps the interface closed to this package until a
// second implementation is added here.
type KeyExchange interface {
	// GenerateKeypair returns a fresh private/public keypair.
	GenerateKeypair() (priv, pub [32]byte, err error)
	// DH performs the key agreement between a local private key and a
	// remote public key, returning the shared secret to mix into the
	// chaining key.
	DH(priv, pub [32]byte) ([32]byte, error)
	// PublicKeyLen is the wire length of a public key for this exchange.
	PublicKeyLen() int

	sealed()
}

// Curve25519KeyExchange is the classical X25519 implementation and the
// only KeyExchange this repository ships.
type Curve25519KeyExchange struct{}

var _ KeyExchange = Curve25519KeyExchange{}

func (Curve25519KeyExchange) GenerateKeypair() (priv, pub [32]byte, err error) {
	return GenerateKeypair()
}

func (Curve25519KeyExchange) DH(priv, pub [32]byte) ([32]byte, error) {
	return DH(priv, pub)
}

func (Curve25519KeyExchange) PublicKeyLen() int { return DHLen }

func (Curve25519KeyExchange) sealed() {}
