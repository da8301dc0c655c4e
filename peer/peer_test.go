package peer

import "testing"

func TestPeerTouchCountersAccumulate(t *testing.T) {
	p := New("alice")
	p.TouchSend()
	p.TouchSend()
	p.TouchReceive()
	p.TouchHandshake()
	p.TouchRekey(3)

	snap := p.Snapshot()
	if snap.MessagesSent != 2 {
		t.Fatalf("messagesSent = %d, want 2", snap.MessagesSent)
	}
	if snap.MessagesRecv != 1 {
		t.Fatalf("messagesRecv = %d, want 1", snap.MessagesRecv)
	}
	if snap.RekeyEpoch != 3 {
		t.Fatalf("rekeyEpoch = %d, want 3", snap.RekeyEpoch)
	}
	if snap.LastHandshake.IsZero() || snap.LastRekey.IsZero() {
		t.Fatalf("expected handshake/rekey timestamps set: %+v", snap)
	}
}

func TestRegistryGetIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.Get("bob")
	b := r.Get("bob")
	if a != b {
		t.Fatal("expected the same *Peer for repeated Get calls")
	}
}

func TestRegistrySnapshotsAndRemove(t *testing.T) {
	r := NewRegistry()
	r.Get("carol").TouchSend()
	r.Get("dave").TouchReceive()

	if got := len(r.Snapshots()); got != 2 {
		t.Fatalf("snapshots = %d, want 2", got)
	}

	r.Remove("carol")
	snaps := r.Snapshots()
	if len(snaps) != 1 || snaps[0].ID != "dave" {
		t.Fatalf("unexpected snapshots after remove: %+v", snaps)
	}
}
