// Package session multiplexes Noise handshakes and transport ciphers by
// peer identifier, enforcing session lifetime/nonce caps and reconciling
// racing handshakes, grounded on the orchestration shape of the teacher's
// device/device.go (connection lifecycle) and crypto/pfs.go (renegotiation
// triggers).
package session

import (
	"sync"
	"time"

	"github.com/zeugmaster/bitchat-sub002/crypto"
)

// State is the Session state machine's current phase, per spec §4.E.
type State int

const (
	StateUninit State = iota
	StateHandshaking
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "Uninit"
	case StateHandshaking:
		return "Handshaking"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return "?"
	}
}

// Security caps enforced by the secure-session layer, §4.G.
const (
	SessionTimeout        = 24 * time.Hour
	MaxMessagesPerSession = 1_000_000_000
	MaxMessageSize        = 65535
	RenegotiationFraction = 0.9
)

// Session is one Noise tunnel to a single peer: its handshake machine
// while handshaking, its split transport ciphers once established, and
// the security-cap bookkeeping from §4.G (start time, last activity,
// message count) folded directly in rather than as a separate wrapper
// type, since every caller needs both halves together.
type Session struct {
	mu sync.RWMutex

	peerID  string
	role    crypto.Role
	pattern crypto.Pattern
	state   State
	failErr error

	localStatic     [32]byte
	hasRemoteKnown  bool
	remoteKnown     [32]byte // IK/NK: responder's static key known ahead of time
	kx              crypto.KeyExchange

	hs   *crypto.HandshakeState
	send *crypto.CipherState
	recv *crypto.CipherState

	remoteStatic    [32]byte
	hasRemoteStatic bool
	handshakeHash   []byte

	startedAt    time.Time
	lastActivity time.Time
	msgCount     uint64
}

// NewSession constructs a Session in Uninit state for peerID. remoteKnown
// is the peer's static public key if already known (required for IK/NK
// initiators); pattern selects which Noise pattern startHandshake uses.
func NewSession(peerID string, role crypto.Role, pattern crypto.Pattern, localStatic [32]byte, remoteKnown [32]byte, hasRemoteKnown bool) *Session {
	return &Session{
		peerID:         peerID,
		role:           role,
		pattern:        pattern,
		state:          StateUninit,
		localStatic:    localStatic,
		remoteKnown:    remoteKnown,
		hasRemoteKnown: hasRemoteKnown,
		kx:             crypto.Curve25519KeyExchange{},
	}
}

// PeerID returns the peer this session belongs to.
func (s *Session) PeerID() string { return s.peerID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// StartHandshake requires Uninit; constructs the HandshakeState and, for
// the initiator, immediately writes and returns the first message. A
// responder returns a nil buffer — it waits for the peer's first message
// instead, per §4.E.
func (s *Session) StartHandshake() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninit {
		return nil, &Error{Kind: KindInvalidState, Msg: "startHandshake requires Uninit"}
	}
	hs, err := crypto.NewHandshakeState(s.kx, s.pattern, s.role, s.localStatic, true, s.remoteKnown, s.hasRemoteKnown)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.hs = hs
	s.state = StateHandshaking
	s.startedAt = time.Now()
	s.lastActivity = s.startedAt

	if s.role == crypto.RoleInitiator {
		out, send, recv, werr := hs.WriteMessage(nil)
		if werr != nil {
			s.fail(werr)
			return nil, werr
		}
		if send != nil {
			s.completeLocked(hs, send, recv)
		}
		return out, nil
	}
	return nil, nil
}

// ProcessHandshakeMessage advances the handshake with an inbound message,
// lazily initialising a responder's HandshakeState on first call. Returns
// the response bytes to send back, if any (nil once the pattern needs no
// further replies from this side).
func (s *Session) ProcessHandshakeMessage(msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninit && s.role == crypto.RoleResponder {
		hs, err := crypto.NewHandshakeState(s.kx, s.pattern, s.role, s.localStatic, true, s.remoteKnown, s.hasRemoteKnown)
		if err != nil {
			s.fail(err)
			return nil, err
		}
		s.hs = hs
		s.state = StateHandshaking
		s.startedAt = time.Now()
		s.lastActivity = s.startedAt
	}
	if s.state != StateHandshaking {
		return nil, &Error{Kind: KindInvalidState, Msg: "processHandshakeMessage requires Handshaking"}
	}

	s.lastActivity = time.Now()
	_, send, recv, err := s.hs.ReadMessage(msg)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if send != nil {
		s.completeLocked(s.hs, send, recv)
		return nil, nil
	}
	if s.hs.IsComplete() {
		return nil, nil
	}
	out, send2, recv2, werr := s.hs.WriteMessage(nil)
	if werr != nil {
		s.fail(werr)
		return nil, werr
	}
	if send2 != nil {
		s.completeLocked(s.hs, send2, recv2)
	}
	return out, nil
}

func (s *Session) completeLocked(hs *crypto.HandshakeState, send, recv *crypto.CipherState) {
	s.send = send
	s.recv = recv
	s.handshakeHash = hs.HandshakeHash()
	if rs, ok := hs.RemoteStatic(); ok {
		s.remoteStatic = rs
		s.hasRemoteStatic = true
	}
	s.state = StateEstablished
	s.hs = nil
}

func (s *Session) fail(err error) {
	s.state = StateFailed
	s.failErr = err
}

// Encrypt requires Established and enforces the §4.G security caps
// (session age, message count, plaintext size) before delegating to the
// send CipherState.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUsableLocked(len(plaintext)); err != nil {
		return nil, err
	}
	ct, err := s.send.Encrypt(plaintext, nil)
	if err != nil {
		return nil, &Error{Kind: KindNotEstablished, Msg: "encrypt", Err: err}
	}
	s.msgCount++
	s.lastActivity = time.Now()
	return ct, nil
}

// Decrypt requires Established and enforces the same caps as Encrypt.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUsableLocked(len(ciphertext)); err != nil {
		return nil, err
	}
	pt, err := s.recv.Decrypt(ciphertext, nil)
	if err != nil {
		return nil, &Error{Kind: KindNotEstablished, Msg: "decrypt", Err: err}
	}
	s.msgCount++
	s.lastActivity = time.Now()
	return pt, nil
}

func (s *Session) checkUsableLocked(size int) error {
	if s.state != StateEstablished {
		return &Error{Kind: KindNotEstablished, Msg: "session not established"}
	}
	if size > MaxMessageSize {
		return &Error{Kind: KindMessageTooLarge, Msg: "message exceeds max size"}
	}
	if time.Since(s.startedAt) > SessionTimeout {
		return &Error{Kind: KindSessionExpired, Msg: "session exceeded lifetime"}
	}
	if s.msgCount >= MaxMessagesPerSession {
		return &Error{Kind: KindSessionExhausted, Msg: "session exceeded message cap"}
	}
	return nil
}

// NeedsRenegotiation reports whether this session has crossed the rekey
// threshold: 90% of its message budget, or longer than SessionTimeout
// since its last activity, per §4.G and the teacher's crypto/pfs.go
// renegotiation triggers.
func (s *Session) NeedsRenegotiation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateEstablished {
		return false
	}
	if float64(s.msgCount) >= RenegotiationFraction*float64(MaxMessagesPerSession) {
		return true
	}
	return time.Since(s.lastActivity) > SessionTimeout
}

// Reset returns the session to Uninit, discarding all handshake and
// transport state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUninit
	s.hs = nil
	s.send = nil
	s.recv = nil
	s.hasRemoteStatic = false
	s.handshakeHash = nil
	s.msgCount = 0
	s.failErr = nil
}

// RemoteStaticKey returns the peer's static public key, once learned.
func (s *Session) RemoteStaticKey() ([32]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remoteStatic, s.hasRemoteStatic
}

// HandshakeHash returns the completed handshake's transcript hash.
func (s *Session) HandshakeHash() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handshakeHash == nil {
		return nil, false
	}
	out := make([]byte, len(s.handshakeHash))
	copy(out, s.handshakeHash)
	return out, true
}

// StartedAt reports when the current handshake/session attempt began,
// used by the manager's 60-second abandoned-handshake sweep (§5).
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// FailKind returns the error the session failed with, if State() is
// StateFailed.
func (s *Session) FailKind() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failErr
}

// SetMessageCountForTest forces the message counter, used only to exercise
// the rekey threshold without sending 900 million real messages.
func (s *Session) SetMessageCountForTest(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgCount = n
}
