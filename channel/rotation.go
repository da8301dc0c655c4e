package channel

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/zeugmaster/bitchat-sub002/store"
)

const (
	EpochDuration  = 24 * time.Hour
	EpochOverlap   = 1 * time.Hour
	MaxEpochHistory = 7
	rotationWarning = 2 * time.Hour
)

// Epoch is one entry in a channel's key history, per §3's KeyEpoch and
// §4.I.
type Epoch struct {
	N              uint64    `json:"n"`
	StartAt        time.Time `json:"startAt"`
	EndAt          time.Time `json:"endAt"`
	Commitment     string    `json:"commitment"`
	PrevCommitment string    `json:"prevCommitment,omitempty"`
}

func epochStorageKey(channelName string) string { return "epoch::" + channelName }

// Rotator maintains per-channel epoch histories, persisting them through
// a store.SecretStore under the "epoch::<channel>" namespaced key, per
// DESIGN NOTES. Grounded on the teacher's crypto/rekey.go label-derived
// secrets (HMAC-labelled key derivation per epoch), generalized from
// Noise transport rekeying to password-derived group epochs.
type Rotator struct {
	mu     sync.RWMutex
	store  store.SecretStore
	epochs map[string][]Epoch
}

// NewRotator returns a Rotator backed by st.
func NewRotator(st store.SecretStore) *Rotator {
	return &Rotator{store: st, epochs: make(map[string][]Epoch)}
}

// epochKey derives the key for epoch n of channel/creatorFingerprint
// under password, per §4.I: PBKDF2("<channel>-<creatorFp>-epoch-<n>", pw, 210000, 32).
func epochKey(channelName, creatorFingerprint string, n uint64, password string) Key {
	salt := fmt.Sprintf("%s-%s-epoch-%d", channelName, creatorFingerprint, n)
	derived := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, keyLen, sha256.New)
	var k Key
	copy(k[:], derived)
	return k
}

// GetCurrentKey returns the channel's current epoch key at now, creating
// epoch 1 if none is valid yet.
func (r *Rotator) GetCurrentKey(channelName, password, creatorFingerprint string, now time.Time) (Key, Epoch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.epochs[channelName]
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if !now.Before(e.StartAt) && now.Before(e.EndAt) {
			return epochKey(channelName, creatorFingerprint, e.N, password), e, nil
		}
	}

	var prevCommitment string
	var n uint64 = 1
	if len(history) > 0 {
		n = history[len(history)-1].N + 1
		prevCommitment = history[len(history)-1].Commitment
	}
	k := epochKey(channelName, creatorFingerprint, n, password)
	e := Epoch{
		N:              n,
		StartAt:        now,
		EndAt:          now.Add(EpochDuration),
		Commitment:     Commitment(k),
		PrevCommitment: prevCommitment,
	}
	history = append(history, e)
	if len(history) > MaxEpochHistory {
		history = history[len(history)-MaxEpochHistory:]
	}
	r.epochs[channelName] = history
	if err := r.persistLocked(channelName); err != nil {
		return Key{}, Epoch{}, err
	}
	return k, e, nil
}

// GetValidKeysForDecryption returns every epoch key whose overlap-extended
// window covers at, newest first, so decryption can try the most likely
// key before falling back to older ones.
func (r *Rotator) GetValidKeysForDecryption(channelName, password, creatorFingerprint string, at time.Time) ([]Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Key
	history := r.epochs[channelName]
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if !at.Before(e.StartAt.Add(-EpochOverlap)) && at.Before(e.EndAt.Add(EpochOverlap)) {
			out = append(out, epochKey(channelName, creatorFingerprint, e.N, password))
		}
	}
	return out, nil
}

// RotateChannelKey appends epoch n+1 starting now, truncates history to
// the 7 most recent entries, and persists the result.
func (r *Rotator) RotateChannelKey(channelName, password, creatorFingerprint string, now time.Time) (Epoch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.epochs[channelName]
	var n uint64 = 1
	var prevCommitment string
	if len(history) > 0 {
		last := history[len(history)-1]
		n = last.N + 1
		prevCommitment = last.Commitment
	}
	k := epochKey(channelName, creatorFingerprint, n, password)
	e := Epoch{
		N:              n,
		StartAt:        now,
		EndAt:          now.Add(EpochDuration),
		Commitment:     Commitment(k),
		PrevCommitment: prevCommitment,
	}
	history = append(history, e)
	if len(history) > MaxEpochHistory {
		history = history[len(history)-MaxEpochHistory:]
	}
	r.epochs[channelName] = history
	if err := r.persistLocked(channelName); err != nil {
		return Epoch{}, err
	}
	return e, nil
}

// NeedsKeyRotation reports whether channelName has no epochs yet, or its
// current epoch expires within 2 hours.
func (r *Rotator) NeedsKeyRotation(channelName string, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.epochs[channelName]
	if len(history) == 0 {
		return true
	}
	last := history[len(history)-1]
	return last.EndAt.Sub(now) < rotationWarning
}

// ClearEpochs removes all epoch history for channelName, locally and in
// the backing store.
func (r *Rotator) ClearEpochs(channelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.epochs, channelName)
	if r.store == nil {
		return nil
	}
	return r.store.Delete(epochStorageKey(channelName))
}

// LoadSavedEpochs reads channelName's epoch history back from the
// backing store, treating enumeration as the discovery mechanism per
// DESIGN NOTES (the store is enumerated by the "epoch::" prefix at
// start-up to find every channel with saved history).
func (r *Rotator) LoadSavedEpochs(channelName string) error {
	if r.store == nil {
		return nil
	}
	raw, found, err := r.store.Get(epochStorageKey(channelName))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	var history []Epoch
	if err := json.Unmarshal(raw, &history); err != nil {
		return fmt.Errorf("channel: decode saved epochs for %q: %w", channelName, err)
	}
	r.mu.Lock()
	r.epochs[channelName] = history
	r.mu.Unlock()
	return nil
}

// LoadAllSavedEpochs enumerates every "epoch::<channel>" record in the
// backing store and loads it, for use at start-up.
func (r *Rotator) LoadAllSavedEpochs() error {
	if r.store == nil {
		return nil
	}
	entries, err := r.store.Enumerate("epoch::")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		var history []Epoch
		if err := json.Unmarshal(entry.Value, &history); err != nil {
			continue
		}
		channelName := entry.ID[len("epoch::"):]
		r.mu.Lock()
		r.epochs[channelName] = history
		r.mu.Unlock()
	}
	return nil
}

func (r *Rotator) persistLocked(channelName string) error {
	if r.store == nil {
		return nil
	}
	data, err := json.Marshal(r.epochs[channelName])
	if err != nil {
		return err
	}
	return r.store.Put(epochStorageKey(channelName), data)
}
