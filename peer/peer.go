// Package peer tracks per-peer session activity counters for hosting
// code that wants a Snapshot-able view of the mesh without reaching
// into session.Manager's internals. Grounded on the teacher's
// peer.Peer (mutex-guarded counters/timestamps behind a Snapshot
// method), stripped of the VPN-specific AllowedIPs/endpoint/tunnel
// fields that have no analog in a peer-to-peer mesh core.
package peer

import (
	"sync"
	"time"
)

// Peer accumulates activity counters for one remote peer ID. It has no
// opinion on transport addressing; session.Manager keys sessions by
// peer ID alone.
type Peer struct {
	ID string

	mu            sync.RWMutex
	lastHandshake time.Time
	lastRekeyAt   time.Time
	lastSend      time.Time
	lastReceive   time.Time
	messagesSent  uint64
	messagesRecv  uint64
	rekeyEpoch    uint64
}

func New(id string) *Peer {
	return &Peer{ID: id}
}

// TouchHandshake records that a handshake with this peer just
// completed.
func (p *Peer) TouchHandshake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHandshake = time.Now()
}

// TouchRekey records a completed session renegotiation at the given
// channel-rotation epoch, if the peer's traffic is epoch-scoped.
func (p *Peer) TouchRekey(epoch uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rekeyEpoch = epoch
	p.lastRekeyAt = time.Now()
}

func (p *Peer) TouchSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSend = time.Now()
	p.messagesSent++
}

func (p *Peer) TouchReceive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastReceive = time.Now()
	p.messagesRecv++
}

// Snapshot is a point-in-time, lock-free copy of a Peer's counters.
type Snapshot struct {
	ID            string    `json:"id"`
	RekeyEpoch    uint64    `json:"rekeyEpoch"`
	LastHandshake time.Time `json:"lastHandshake"`
	LastRekey     time.Time `json:"lastRekey"`
	LastSend      time.Time `json:"lastSend"`
	LastReceive   time.Time `json:"lastReceive"`
	MessagesSent  uint64    `json:"messagesSent"`
	MessagesRecv  uint64    `json:"messagesRecv"`
}

func (p *Peer) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		ID:            p.ID,
		RekeyEpoch:    p.rekeyEpoch,
		LastHandshake: p.lastHandshake,
		LastRekey:     p.lastRekeyAt,
		LastSend:      p.lastSend,
		LastReceive:   p.lastReceive,
		MessagesSent:  p.messagesSent,
		MessagesRecv:  p.messagesRecv,
	}
}

// Registry is a mutex-guarded map of known peers, keyed by peer ID.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Get returns the Peer for id, creating one on first reference.
func (r *Registry) Get(id string) *Peer {
	r.mu.RLock()
	p, ok := r.peers[id]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[id]; ok {
		return p
	}
	p = New(id)
	r.peers[id] = p
	return p
}

// Remove drops a peer from the registry, e.g. once session.Manager
// reports it Failed and hosting code decides not to retry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// Snapshots returns a Snapshot for every currently tracked peer.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p.Snapshot())
	}
	return out
}
