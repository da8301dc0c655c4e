package channel

import (
	"testing"
	"time"

	"github.com/zeugmaster/bitchat-sub002/store"
)

func TestGetCurrentKeyCreatesFirstEpoch(t *testing.T) {
	r := NewRotator(store.NewMemory())
	now := time.Unix(1_700_000_000, 0)
	key, epoch, err := r.GetCurrentKey("#general", "pw", "", now)
	if err != nil {
		t.Fatalf("get current key: %v", err)
	}
	if epoch.N != 1 {
		t.Fatalf("expected epoch 1, got %d", epoch.N)
	}
	key2, epoch2, err := r.GetCurrentKey("#general", "pw", "", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("get current key again: %v", err)
	}
	if key != key2 || epoch.N != epoch2.N {
		t.Fatal("expected the same epoch within its validity window")
	}
}

func TestRotateChannelKeyAppendsAndTruncates(t *testing.T) {
	r := NewRotator(store.NewMemory())
	now := time.Unix(1_700_000_000, 0)
	if _, _, err := r.GetCurrentKey("#g", "pw", "", now); err != nil {
		t.Fatalf("seed epoch: %v", err)
	}
	var last Epoch
	for i := 0; i < 10; i++ {
		e, err := r.RotateChannelKey("#g", "pw", "", now.Add(time.Duration(i+1)*EpochDuration))
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
		last = e
	}
	if last.N != 11 {
		t.Fatalf("expected 11 rotations total, got epoch %d", last.N)
	}
	r.mu.RLock()
	history := r.epochs["#g"]
	r.mu.RUnlock()
	if len(history) != MaxEpochHistory {
		t.Fatalf("expected history truncated to %d, got %d", MaxEpochHistory, len(history))
	}
}

func TestGetValidKeysForDecryptionIncludesOverlap(t *testing.T) {
	r := NewRotator(store.NewMemory())
	now := time.Unix(1_700_000_000, 0)
	oldKey, _, err := r.GetCurrentKey("#g", "pw", "", now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := r.RotateChannelKey("#g", "pw", "", now.Add(EpochDuration)); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// Just after rotation, but within the 1h overlap window, the old key
	// must still be considered valid for decryption.
	keys, err := r.GetValidKeysForDecryption("#g", "pw", "", now.Add(EpochDuration).Add(30*time.Minute))
	if err != nil {
		t.Fatalf("get valid keys: %v", err)
	}
	found := false
	for _, k := range keys {
		if k == oldKey {
			found = true
		}
	}
	if !found {
		t.Fatal("expected old epoch key still valid within overlap window")
	}
}

func TestNeedsKeyRotation(t *testing.T) {
	r := NewRotator(store.NewMemory())
	if !r.NeedsKeyRotation("#new", time.Unix(0, 0)) {
		t.Fatal("expected rotation needed with no epochs yet")
	}
	now := time.Unix(1_700_000_000, 0)
	if _, _, err := r.GetCurrentKey("#g", "pw", "", now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if r.NeedsKeyRotation("#g", now) {
		t.Fatal("fresh epoch should not need rotation")
	}
	if !r.NeedsKeyRotation("#g", now.Add(EpochDuration).Add(-time.Hour)) {
		t.Fatal("epoch expiring within 2h should need rotation")
	}
}

func TestEpochsPersistAcrossRotators(t *testing.T) {
	backing := store.NewMemory()
	now := time.Unix(1_700_000_000, 0)

	r1 := NewRotator(backing)
	if _, _, err := r1.GetCurrentKey("#g", "pw", "", now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r2 := NewRotator(backing)
	if err := r2.LoadSavedEpochs("#g"); err != nil {
		t.Fatalf("load saved epochs: %v", err)
	}
	key, epoch, err := r2.GetCurrentKey("#g", "pw", "", now)
	if err != nil {
		t.Fatalf("get current key after load: %v", err)
	}
	expectedKey := epochKey("#g", "", 1, "pw")
	if key != expectedKey || epoch.N != 1 {
		t.Fatal("expected loaded epoch history to resolve to the persisted epoch 1 key")
	}
}
