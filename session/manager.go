package session

import (
	"sync"
	"time"

	"github.com/zeugmaster/bitchat-sub002/crypto"
)

// Logger is the minimal structured-logging surface the manager needs;
// satisfied by *logging.Logger without importing it directly.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// SecurityLog is the §6 SecurityLog collaborator contract subset this
// package emits to.
type SecurityLog interface {
	InvalidKey(peerID string)
	HandshakeFailed(peerID string, reason string)
}

// EstablishedCallback and FailedCallback fire outside any internal lock,
// per §4.F/§5, so a callback can safely call back into the manager.
type EstablishedCallback func(peerID string, remoteStaticPk [32]byte)
type FailedCallback func(peerID string, errKind ErrorKind)

// Manager multiplexes Sessions by peer identifier: creation, the race
// resolution rules of §4.F, rekey scheduling, and the abandoned-handshake
// sweep. Grounded on the teacher's device/device.go connection table and
// its read-write locking discipline (peer map + per-peer state under one
// RWMutex, callbacks queued for dispatch outside the critical section).
type Manager struct {
	mu      sync.RWMutex
	peers   map[string]*Session
	pattern crypto.Pattern

	localStaticPriv [32]byte
	localStaticPub  [32]byte

	// CookieTTL reserves the responder-cookie anti-DoS hook (SUPPLEMENTED
	// FEATURE 1): zero by default, meaning the hook is unused. No wire
	// format for the cookie is defined by this repository.
	CookieTTL time.Duration

	log       Logger
	secLog    SecurityLog
	onSuccess []EstablishedCallback
	onFailure []FailedCallback
}

// NewManager constructs a Manager for a node identified by localStatic.
// pattern selects XX, IK, or NK for every session this manager creates.
func NewManager(pattern crypto.Pattern, localStaticPriv, localStaticPub [32]byte, log Logger, secLog SecurityLog) *Manager {
	return &Manager{
		peers:           make(map[string]*Session),
		pattern:         pattern,
		localStaticPriv: localStaticPriv,
		localStaticPub:  localStaticPub,
		log:             log,
		secLog:          secLog,
	}
}

// OnSessionEstablished registers a callback fired once a session
// completes its handshake.
func (m *Manager) OnSessionEstablished(cb EstablishedCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSuccess = append(m.onSuccess, cb)
}

// OnSessionFailed registers a callback fired when a session's handshake
// fails.
func (m *Manager) OnSessionFailed(cb FailedCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailure = append(m.onFailure, cb)
}

// CreateSession creates (or replaces) a Session for peerID in Uninit
// state, without starting a handshake.
func (m *Manager) CreateSession(peerID string, role crypto.Role) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(peerID, role, m.pattern, m.localStaticPriv, [32]byte{}, false)
	m.peers[peerID] = s
	return s
}

// InitiateHandshake creates an initiator session for peerID (failing
// AlreadyEstablished if one already exists and is Established) and
// returns the first handshake message.
func (m *Manager) InitiateHandshake(peerID string) ([]byte, error) {
	m.mu.Lock()
	if existing, ok := m.peers[peerID]; ok && existing.State() == StateEstablished {
		m.mu.Unlock()
		return nil, ErrAlreadyEstablished
	}
	s := NewSession(peerID, crypto.RoleInitiator, m.pattern, m.localStaticPriv, [32]byte{}, false)
	m.peers[peerID] = s
	m.mu.Unlock()

	out, err := s.StartHandshake()
	if err != nil {
		m.dispatchFailure(peerID, err)
		return nil, err
	}
	if s.State() == StateEstablished {
		m.dispatchSuccess(s)
	}
	return out, nil
}

// HandleIncomingHandshake applies the §4.F race-resolution rules and
// calls the resolved session's ProcessHandshakeMessage in the same
// critical section, per §5: the session-map write lock is held across
// the whole resolve+process sequence, not released in between. Two
// concurrent inbound messages for the same peer are fully serialized at
// the manager level, so the second can never observe a state the first
// produced (e.g. Established right after Rule 5 chose "continue with
// the existing session") and mistakenly tear down a session its sibling
// call just finished establishing. Callbacks fire afterward, outside
// the lock.
func (m *Manager) HandleIncomingHandshake(peerID string, msg []byte) ([]byte, error) {
	m.mu.Lock()

	s, existed := m.peers[peerID]

	switch {
	case !existed:
		// Rule 1: no existing session -> create responder and process.
		s = NewSession(peerID, crypto.RoleResponder, m.pattern, m.localStaticPriv, [32]byte{}, false)
		m.peers[peerID] = s

	case existed && s.State() == StateEstablished && len(msg) == crypto.DHLen:
		// Rule 2: established session, fresh 32-byte initiator `e` ->
		// peer restarted; drop and recreate.
		s = NewSession(peerID, crypto.RoleResponder, m.pattern, m.localStaticPriv, [32]byte{}, false)
		m.peers[peerID] = s

	case existed && s.State() == StateEstablished:
		// Rule 3: established session, anything else -> refuse.
		m.mu.Unlock()
		return nil, ErrAlreadyEstablished

	case existed && s.State() == StateHandshaking && len(msg) == crypto.DHLen:
		// Rule 4: mid-handshake session, fresh 32-byte `e` -> restart.
		s = NewSession(peerID, crypto.RoleResponder, m.pattern, m.localStaticPriv, [32]byte{}, false)
		m.peers[peerID] = s

	default:
		// Rule 5: continue with the existing session.
	}

	out, err := s.ProcessHandshakeMessage(msg)
	if err != nil {
		delete(m.peers, peerID)
		m.mu.Unlock()
		m.dispatchFailure(peerID, err)
		return nil, err
	}
	established := s.State() == StateEstablished
	m.mu.Unlock()

	if established {
		m.dispatchSuccess(s)
	}
	return out, nil
}

func (m *Manager) dispatchSuccess(s *Session) {
	rs, _ := s.RemoteStaticKey()
	m.mu.RLock()
	cbs := append([]EstablishedCallback(nil), m.onSuccess...)
	m.mu.RUnlock()
	if m.log != nil {
		m.log.Info("session established", map[string]interface{}{"peer": s.PeerID()})
	}
	for _, cb := range cbs {
		cb(s.PeerID(), rs)
	}
}

func (m *Manager) dispatchFailure(peerID string, err error) {
	kind := KindUnknown
	if se, ok := err.(*Error); ok {
		kind = se.Kind
	}
	m.mu.RLock()
	cbs := append([]FailedCallback(nil), m.onFailure...)
	m.mu.RUnlock()
	if m.log != nil {
		m.log.Warn("handshake failed", map[string]interface{}{"peer": peerID, "error": err.Error()})
	}
	if m.secLog != nil {
		m.secLog.HandshakeFailed(peerID, err.Error())
	}
	for _, cb := range cbs {
		cb(peerID, kind)
	}
}

// Encrypt/Decrypt/RemoteStaticKey/HandshakeHash delegate to the named
// peer's Session, failing SessionNotFound if no session exists.

func (m *Manager) session(peerID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.peers[peerID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Encrypt(peerID string, plaintext []byte) ([]byte, error) {
	s, err := m.session(peerID)
	if err != nil {
		return nil, err
	}
	return s.Encrypt(plaintext)
}

func (m *Manager) Decrypt(peerID string, ciphertext []byte) ([]byte, error) {
	s, err := m.session(peerID)
	if err != nil {
		return nil, err
	}
	return s.Decrypt(ciphertext)
}

func (m *Manager) RemoteStaticKey(peerID string) ([32]byte, bool, error) {
	s, err := m.session(peerID)
	if err != nil {
		return [32]byte{}, false, err
	}
	rs, ok := s.RemoteStaticKey()
	return rs, ok, nil
}

func (m *Manager) HandshakeHash(peerID string) ([]byte, error) {
	s, err := m.session(peerID)
	if err != nil {
		return nil, err
	}
	h, _ := s.HandshakeHash()
	return h, nil
}

// SessionsNeedingRekey returns every peer whose session has crossed the
// §4.G renegotiation threshold.
func (m *Manager) SessionsNeedingRekey() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for peerID, s := range m.peers {
		if s.NeedsRenegotiation() {
			out = append(out, peerID)
		}
	}
	return out
}

// InitiateRekey removes the peer's current session and starts a fresh
// initiator handshake.
func (m *Manager) InitiateRekey(peerID string) ([]byte, error) {
	m.mu.Lock()
	delete(m.peers, peerID)
	m.mu.Unlock()
	return m.InitiateHandshake(peerID)
}

// Tick performs periodic maintenance with no hidden timer goroutine, per
// DESIGN NOTES: it abandons handshakes that have been pending longer than
// 60 seconds (§5), removing them so the next attempt starts clean.
func (m *Manager) Tick(now time.Time) {
	m.mu.Lock()
	var timedOut []string
	for peerID, s := range m.peers {
		if s.State() == StateHandshaking && now.Sub(s.StartedAt()) > 60*time.Second {
			timedOut = append(timedOut, peerID)
			delete(m.peers, peerID)
		}
	}
	m.mu.Unlock()

	for _, peerID := range timedOut {
		m.dispatchFailure(peerID, &Error{Kind: KindHandshakeTimeout, Msg: "handshake abandoned after 60s"})
	}
}
