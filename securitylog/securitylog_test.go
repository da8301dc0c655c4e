package securitylog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSinkRecordsEventWithUUID(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, 0)

	s.InvalidKey("peer-1")

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode emitted event: %v", err)
	}
	if decoded.Type != EventInvalidKey {
		t.Fatalf("type = %q, want %q", decoded.Type, EventInvalidKey)
	}
	if decoded.PeerID != "peer-1" {
		t.Fatalf("peerID = %q", decoded.PeerID)
	}
	if decoded.ID == "" || !strings.Contains(decoded.ID, "-") {
		t.Fatalf("expected a UUID-shaped ID, got %q", decoded.ID)
	}
}

func TestSinkReplayAttackDetected(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, 0)

	s.ReplayAttackDetected("#general")

	recent := s.Recent(1)
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent event, got %d", len(recent))
	}
	if recent[0].Type != EventReplayAttackDetected || recent[0].Channel != "#general" {
		t.Fatalf("unexpected event: %+v", recent[0])
	}
}

func TestSinkRecentTruncatesToBufferSize(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, 3)

	for i := 0; i < 10; i++ {
		s.RateLimited("peer-x", "handshake cap")
	}

	recent := s.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(recent))
	}
}
