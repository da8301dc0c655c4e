package crypto

// ProtocolName returns the bit-exact Noise protocol name string for a
// pattern, e.g. "Noise_XX_25519_ChaChaPoly_SHA256".
func ProtocolName(p Pattern) string {
	return "Noise_" + p.String() + "_25519_ChaChaPoly_SHA256"
}
