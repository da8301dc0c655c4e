package session

import (
	"errors"
	"testing"
	"time"

	"github.com/zeugmaster/bitchat-sub002/crypto"
)

func newTestManager(t *testing.T) (*Manager, [32]byte) {
	t.Helper()
	priv, pub, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate static key: %v", err)
	}
	return NewManager(crypto.PatternXX, priv, pub, nil, nil), pub
}

// driveHandshake runs a full XX handshake between an initiator manager
// and a responder manager for peer IDs that label each side from the
// other's point of view, returning once both sides report Established.
func driveHandshake(t *testing.T, initMgr, respMgr *Manager, initPeerLabel, respPeerLabel string) {
	t.Helper()
	msg, err := initMgr.InitiateHandshake(initPeerLabel)
	if err != nil {
		t.Fatalf("initiate handshake: %v", err)
	}
	for i := 0; i < 10 && msg != nil; i++ {
		reply, err := respMgr.HandleIncomingHandshake(respPeerLabel, msg)
		if err != nil {
			t.Fatalf("responder handle: %v", err)
		}
		msg = nil
		if reply != nil {
			msg, err = initMgr.HandleIncomingHandshake(initPeerLabel, reply)
			if err != nil {
				t.Fatalf("initiator handle: %v", err)
			}
		}
	}
}

func TestManagerEstablishesSession(t *testing.T) {
	initMgr, initPub := newTestManager(t)
	respMgr, respPub := newTestManager(t)

	var established []string
	initMgr.OnSessionEstablished(func(peerID string, rs [32]byte) {
		established = append(established, peerID)
		if rs != respPub {
			t.Errorf("initiator learned wrong remote static key")
		}
	})

	driveHandshake(t, initMgr, respMgr, "responder", "initiator")

	if len(established) != 1 {
		t.Fatalf("expected exactly one onSessionEstablished callback, got %d", len(established))
	}
	rs, ok, err := respMgr.RemoteStaticKey("initiator")
	if err != nil || !ok || rs != initPub {
		t.Fatalf("responder did not learn initiator's static key: %v %v", ok, err)
	}

	ct, err := initMgr.Encrypt("responder", []byte("hi"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := respMgr.Decrypt("initiator", ct)
	if err != nil || string(pt) != "hi" {
		t.Fatalf("decrypt mismatch: %v %q", err, pt)
	}
}

func TestHandleIncomingNoExistingSessionCreatesResponder(t *testing.T) {
	respMgr, _ := newTestManager(t)
	initMgr, _ := newTestManager(t)
	msg, err := initMgr.InitiateHandshake("peer")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := respMgr.HandleIncomingHandshake("peer", msg); err != nil {
		t.Fatalf("rule 1 failed: %v", err)
	}
	s, err := respMgr.session("peer")
	if err != nil || s.State() != StateHandshaking {
		t.Fatalf("expected responder session in Handshaking state")
	}
}

func TestHandleIncomingEstablishedSessionRestartsOnFreshE(t *testing.T) {
	initMgr, _ := newTestManager(t)
	respMgr, _ := newTestManager(t)
	driveHandshake(t, initMgr, respMgr, "r", "i")

	var failed, established int
	respMgr.OnSessionFailed(func(string, ErrorKind) { failed++ })
	respMgr.OnSessionEstablished(func(string, [32]byte) { established++ })

	// Peer restarts: brand-new initiator manager sends a fresh `e`.
	newInitMgr, _ := newTestManager(t)
	msg, err := newInitMgr.InitiateHandshake("r")
	if err != nil {
		t.Fatalf("initiate after restart: %v", err)
	}
	if len(msg) != crypto.DHLen {
		t.Fatalf("expected bare 32-byte e message, got %d bytes", len(msg))
	}
	if _, err := respMgr.HandleIncomingHandshake("i", msg); err != nil {
		t.Fatalf("rule 2 restart failed: %v", err)
	}
	s, err := respMgr.session("i")
	if err != nil || s.State() != StateHandshaking {
		t.Fatalf("expected session recreated in Handshaking state after restart")
	}
}

func TestHandleIncomingEstablishedSessionRefusesNonRestart(t *testing.T) {
	initMgr, _ := newTestManager(t)
	respMgr, _ := newTestManager(t)
	driveHandshake(t, initMgr, respMgr, "r", "i")

	_, err := respMgr.HandleIncomingHandshake("i", []byte("not-a-handshake-e-and-not-32-bytes"))
	if !errors.Is(err, ErrAlreadyEstablished) {
		t.Fatalf("expected AlreadyEstablished, got %v", err)
	}
}

func TestSessionsNeedingRekey(t *testing.T) {
	initMgr, _ := newTestManager(t)
	respMgr, _ := newTestManager(t)
	driveHandshake(t, initMgr, respMgr, "r", "i")

	if got := initMgr.SessionsNeedingRekey(); len(got) != 0 {
		t.Fatalf("expected no sessions needing rekey yet, got %v", got)
	}
	s, err := initMgr.session("r")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	s.SetMessageCountForTest(uint64(0.95 * MaxMessagesPerSession))
	got := initMgr.SessionsNeedingRekey()
	if len(got) != 1 || got[0] != "r" {
		t.Fatalf("expected [r] needing rekey, got %v", got)
	}
}

func TestManagerTickAbandonsStaleHandshake(t *testing.T) {
	respMgr, _ := newTestManager(t)
	initMgr, _ := newTestManager(t)
	msg, err := initMgr.InitiateHandshake("peer")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := respMgr.HandleIncomingHandshake("peer", msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var failedKind ErrorKind
	respMgr.OnSessionFailed(func(_ string, kind ErrorKind) { failedKind = kind })

	respMgr.Tick(time.Now().Add(61 * time.Second))

	if failedKind != KindHandshakeTimeout {
		t.Fatalf("expected HandshakeTimeout, got %v", failedKind)
	}
	if _, err := respMgr.session("peer"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session removed after tick timeout")
	}
}
