// Package securitylog implements the SecurityLog event sink referenced
// by session/ and channel/ (and called directly by cmd/bitchatcore when
// a ratelimit.Limiter check refuses a request): a structured, append-only
// record of security-relevant events, distinct from ambient logging.
// Grounded on the teacher's audit/audit.go (JSON-encoder-over-io.Writer,
// mutex-guarded ring buffer, Search/Statistics helpers), narrowed to this
// repository's fixed event taxonomy instead of the teacher's open-ended
// username/sourceIP/resource audit schema.
package securitylog

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the security events this core can raise.
type EventType string

const (
	EventInvalidKey           EventType = "invalid_key"
	EventReplayAttackDetected EventType = "replay_attack_detected"
	EventRateLimited          EventType = "rate_limited"
	EventHandshakeFailed      EventType = "handshake_failed"
	EventSessionExpired       EventType = "session_expired"
)

// Event is a single security-log record.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	PeerID    string            `json:"peer_id,omitempty"`
	Channel   string            `json:"channel,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink is a mutex-guarded, JSON-encoding security event log with a
// bounded in-memory ring buffer, mirroring the teacher's AuditLogger
// shape but over this package's fixed event taxonomy.
type Sink struct {
	mu         sync.Mutex
	out        io.Writer
	enc        *json.Encoder
	buffer     []Event
	bufferSize int
}

// New returns a Sink writing newline-delimited JSON events to out and
// retaining up to bufferSize recent events for inspection. A bufferSize
// of 0 defaults to 256.
func New(out io.Writer, bufferSize int) *Sink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Sink{
		out:        out,
		enc:        json.NewEncoder(out),
		buffer:     make([]Event, 0, bufferSize),
		bufferSize: bufferSize,
	}
}

func (s *Sink) record(ev Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.enc.Encode(ev)

	s.buffer = append(s.buffer, ev)
	if len(s.buffer) > s.bufferSize {
		s.buffer = s.buffer[1:]
	}
}

// InvalidKey records a rejected public key, per §6/§8's low-order-point
// testable property. Matches the single-argument shape every package's
// SecurityLog collaborator interface declares for this event.
func (s *Sink) InvalidKey(peerID string) {
	s.record(Event{Type: EventInvalidKey, PeerID: peerID})
}

// ReplayAttackDetected records a channel key-packet nonce reused within
// the freshness window, per §4.H/§8 scenario 5.
func (s *Sink) ReplayAttackDetected(channel string) {
	s.record(Event{Type: EventReplayAttackDetected, Channel: channel})
}

// RateLimited records a request denied by ratelimit.Limiter.
func (s *Sink) RateLimited(peerID, reason string) {
	s.record(Event{Type: EventRateLimited, PeerID: peerID, Reason: reason})
}

// HandshakeFailed records a session handshake failure, mirroring
// session.Manager's onSessionFailed callback for durable auditing.
func (s *Sink) HandshakeFailed(peerID, reason string) {
	s.record(Event{Type: EventHandshakeFailed, PeerID: peerID, Reason: reason})
}

// SessionExpired records a session rejected for having aged past
// sessionTimeout.
func (s *Sink) SessionExpired(peerID string) {
	s.record(Event{Type: EventSessionExpired, PeerID: peerID})
}

// Recent returns up to count of the most recently recorded events.
func (s *Sink) Recent(count int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if count > len(s.buffer) || count <= 0 {
		count = len(s.buffer)
	}
	out := make([]Event, count)
	copy(out, s.buffer[len(s.buffer)-count:])
	return out
}
