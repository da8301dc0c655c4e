package crypto

import "bytes"

// Pattern names one of the three supported Noise handshake patterns.
type Pattern int

const (
	PatternXX Pattern = iota
	PatternIK
	PatternNK
)

func (p Pattern) String() string {
	switch p {
	case PatternXX:
		return "XX"
	case PatternIK:
		return "IK"
	case PatternNK:
		return "NK"
	default:
		return "?"
	}
}

// token is a single Noise pattern primitive: transmit an ephemeral/static
// key, or mix a DH result.
type token int

const (
	tokenE token = iota
	tokenS
	tokenEE
	tokenES
	tokenSE
	tokenSS
)

// messagePatterns returns, for each pattern, the token sequence of every
// handshake message in order, per §4.D.
func messagePatterns(p Pattern) [][]token {
	switch p {
	case PatternXX:
		return [][]token{
			{tokenE},
			{tokenE, tokenEE, tokenS, tokenES},
			{tokenS, tokenSE},
		}
	case PatternIK:
		return [][]token{
			{tokenE, tokenES, tokenS, tokenSS},
			{tokenE, tokenEE, tokenSE},
		}
	case PatternNK:
		return [][]token{
			{tokenE, tokenES},
			{tokenE, tokenEE},
		}
	default:
		return nil
	}
}

// Role distinguishes the handshake initiator from the responder; it
// determines DH directionality for es/se tokens and which split cipher
// is send vs. recv.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// HandshakeState drives one Noise handshake to completion: pattern-driven
// message assembly/parsing, pre-message mixing, and the final transport
// key split. It is built on SymmetricState exactly as the teacher's
// crypto/noise.go layers its HandshakeState on SymmetricState/CipherState.
type HandshakeState struct {
	kx      KeyExchange
	role    Role
	pattern Pattern
	ss      *SymmetricState
	pc      [][]token
	i       int

	hasS, hasE   bool
	s, e         [32]byte // local static/ephemeral private keys
	sPub, ePub   [32]byte
	hasRS, hasRE bool
	rs, re       [32]byte // remote static/ephemeral public keys
}

// NewHandshakeState constructs a HandshakeState for the given pattern and
// role. localStatic is required for XX/IK (both parties have a static
// key); NK's initiator passes a zero key and hasLocalStatic=false.
// remoteStatic is the responder's known static key, required for IK/NK
// initiators (pre-message mixing) and unused otherwise.
func NewHandshakeState(kx KeyExchange, pattern Pattern, role Role, localStatic [32]byte, hasLocalStatic bool, remoteStatic [32]byte, hasRemoteStatic bool) (*HandshakeState, error) {
	if kx == nil {
		kx = Curve25519KeyExchange{}
	}
	protocolName := "Noise_" + pattern.String() + "_25519_ChaChaPoly_SHA256"
	hs := &HandshakeState{
		kx:      kx,
		role:    role,
		pattern: pattern,
		ss:      NewSymmetricState(protocolName),
		pc:      messagePatterns(pattern),
	}
	if hasLocalStatic {
		hs.hasS = true
		hs.s = localStatic
		pub, err := hs.derivePublic(localStatic)
		if err != nil {
			return nil, err
		}
		hs.sPub = pub
	}
	if hasRemoteStatic {
		hs.hasRS = true
		hs.rs = remoteStatic
	}

	// Pre-message mixing: IK/NK initiators mix the responder's known
	// static public key into the transcript before the first token.
	switch pattern {
	case PatternIK, PatternNK:
		if !hasRemoteStatic {
			return nil, newErr(KindMissingKeys, "IK/NK requires the responder's static public key")
		}
		hs.ss.MixHash(remoteStatic[:])
	}

	return hs, nil
}

func (hs *HandshakeState) derivePublic(priv [32]byte) ([32]byte, error) {
	// Curve25519 public derivation is DH(priv, basepoint); reuse DH via
	// the concrete primitive since KeyExchange only exposes DH(priv,pub).
	return derivePublicCurve25519(priv)
}

// IsComplete reports whether every message in the pattern has been
// written or read.
func (hs *HandshakeState) IsComplete() bool { return hs.i >= len(hs.pc) }

// HandshakeHash returns the running transcript hash.
func (hs *HandshakeState) HandshakeHash() []byte { return hs.ss.HandshakeHash() }

// RemoteStatic returns the remote party's static public key, once learned.
func (hs *HandshakeState) RemoteStatic() ([32]byte, bool) { return hs.rs, hs.hasRS }

// WriteMessage writes the next handshake message, appending payload
// (encrypted if a cipher key is established) at the end. Returns the
// wire bytes, and the (send, recv) transport ciphers once the pattern
// completes (nil otherwise).
func (hs *HandshakeState) WriteMessage(payload []byte) (out []byte, send, recv *CipherState, err error) {
	if hs.IsComplete() {
		return nil, nil, nil, newErr(KindHandshakeComplete, "write after handshake completion")
	}
	var buf bytes.Buffer
	for _, t := range hs.pc[hs.i] {
		switch t {
		case tokenE:
			priv, pub, gerr := hs.kx.GenerateKeypair()
			if gerr != nil {
				return nil, nil, nil, wrapErr(KindMissingKeys, "generate ephemeral", gerr)
			}
			hs.e, hs.ePub, hs.hasE = priv, pub, true
			buf.Write(pub[:])
			hs.ss.MixHash(pub[:])
		case tokenS:
			if !hs.hasS {
				return nil, nil, nil, newErr(KindMissingLocalStaticKey, "write s token without local static key")
			}
			ct, eerr := hs.ss.EncryptAndHash(hs.sPub[:])
			if eerr != nil {
				return nil, nil, nil, eerr
			}
			buf.Write(ct)
		case tokenEE:
			if derr := hs.mixDH(hs.e, hs.hasE, hs.re, hs.hasRE); derr != nil {
				return nil, nil, nil, derr
			}
		case tokenES:
			if hs.role == RoleInitiator {
				err = hs.mixDH(hs.e, hs.hasE, hs.rs, hs.hasRS)
			} else {
				err = hs.mixDH(hs.s, hs.hasS, hs.re, hs.hasRE)
			}
			if err != nil {
				return nil, nil, nil, err
			}
		case tokenSE:
			if hs.role == RoleInitiator {
				err = hs.mixDH(hs.s, hs.hasS, hs.re, hs.hasRE)
			} else {
				err = hs.mixDH(hs.e, hs.hasE, hs.rs, hs.hasRS)
			}
			if err != nil {
				return nil, nil, nil, err
			}
		case tokenSS:
			if derr := hs.mixDH(hs.s, hs.hasS, hs.rs, hs.hasRS); derr != nil {
				return nil, nil, nil, derr
			}
		}
	}
	ct, eerr := hs.ss.EncryptAndHash(payload)
	if eerr != nil {
		return nil, nil, nil, eerr
	}
	buf.Write(ct)
	hs.i++

	if hs.IsComplete() {
		cs1, cs2 := hs.ss.Split()
		if hs.role == RoleInitiator {
			return buf.Bytes(), cs1, cs2, nil
		}
		return buf.Bytes(), cs2, cs1, nil
	}
	return buf.Bytes(), nil, nil, nil
}

// ReadMessage parses the next expected handshake message. Returns the
// decrypted payload, and the (send, recv) transport ciphers once the
// pattern completes.
func (hs *HandshakeState) ReadMessage(msg []byte) (payload []byte, send, recv *CipherState, err error) {
	if hs.IsComplete() {
		return nil, nil, nil, newErr(KindHandshakeComplete, "read after handshake completion")
	}
	buf := msg
	for _, t := range hs.pc[hs.i] {
		switch t {
		case tokenE:
			if len(buf) < DHLen {
				return nil, nil, nil, newErr(KindInvalidMessage, "short buffer reading e")
			}
			var re [32]byte
			copy(re[:], buf[:DHLen])
			if verr := ValidatePublicKey(re[:]); verr != nil {
				return nil, nil, nil, verr
			}
			hs.re, hs.hasRE = re, true
			hs.ss.MixHash(re[:])
			buf = buf[DHLen:]
		case tokenS:
			n := DHLen
			if hs.ss.cs.HasKey() {
				n = DHLen + 16 // AEAD tag overhead
			}
			if len(buf) < n {
				return nil, nil, nil, newErr(KindInvalidMessage, "short buffer reading s")
			}
			pt, derr := hs.ss.DecryptAndHash(buf[:n])
			if derr != nil {
				return nil, nil, nil, wrapErr(KindAuthenticationFailure, "decrypt static key", derr)
			}
			var rs [32]byte
			copy(rs[:], pt)
			if verr := ValidatePublicKey(rs[:]); verr != nil {
				return nil, nil, nil, verr
			}
			hs.rs, hs.hasRS = rs, true
			buf = buf[n:]
		case tokenEE:
			if derr := hs.mixDH(hs.e, hs.hasE, hs.re, hs.hasRE); derr != nil {
				return nil, nil, nil, derr
			}
		case tokenES:
			if hs.role == RoleInitiator {
				err = hs.mixDH(hs.e, hs.hasE, hs.rs, hs.hasRS)
			} else {
				err = hs.mixDH(hs.s, hs.hasS, hs.re, hs.hasRE)
			}
			if err != nil {
				return nil, nil, nil, err
			}
		case tokenSE:
			if hs.role == RoleInitiator {
				err = hs.mixDH(hs.s, hs.hasS, hs.re, hs.hasRE)
			} else {
				err = hs.mixDH(hs.e, hs.hasE, hs.rs, hs.hasRS)
			}
			if err != nil {
				return nil, nil, nil, err
			}
		case tokenSS:
			if derr := hs.mixDH(hs.s, hs.hasS, hs.rs, hs.hasRS); derr != nil {
				return nil, nil, nil, derr
			}
		}
	}
	pt, derr := hs.ss.DecryptAndHash(buf)
	if derr != nil {
		return nil, nil, nil, wrapErr(KindAuthenticationFailure, "decrypt payload", derr)
	}
	hs.i++

	if hs.IsComplete() {
		cs1, cs2 := hs.ss.Split()
		if hs.role == RoleInitiator {
			return pt, cs1, cs2, nil
		}
		return pt, cs2, cs1, nil
	}
	return pt, nil, nil, nil
}

func (hs *HandshakeState) mixDH(privKey [32]byte, hasPriv bool, pubKey [32]byte, hasPub bool) error {
	if !hasPriv || !hasPub {
		return newErr(KindMissingKeys, "dh token with missing key material")
	}
	secret, err := hs.kx.DH(privKey, pubKey)
	if err != nil {
		return err
	}
	hs.ss.MixKey(secret[:])
	return nil
}
