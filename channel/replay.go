package channel

import (
	"sync"
	"time"
)

const (
	keyPacketFreshness = 5 * time.Minute
	nonceCacheBulkCap  = 1000
)

// SecurityLog is the subset of the §6 SecurityLog contract this package
// emits to.
type SecurityLog interface {
	ReplayAttackDetected(channelName string)
}

// ReplayCache tracks nonces seen in ChannelKeyPacket processing to reject
// duplicates within the 5-minute freshness window, per §4.H. It is
// grounded on the teacher's crypto/antireplay.go TimestampValidator
// (`seenNonces map[uint64]time.Time`, `maxAge`, periodic cleanup), with
// both halves of the §9 Open Question resolved together: per-nonce
// timestamped expiry is tracked for exactness under adversarial timing,
// *and* the 1000-entry bulk-clear backstop is retained so long-running
// processes never grow the map unboundedly between Tick calls, matching
// the source's weaker-but-simpler behaviour as a safety net rather than
// the sole mechanism.
type ReplayCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewReplayCache returns an empty ReplayCache.
func NewReplayCache() *ReplayCache {
	return &ReplayCache{seen: make(map[string]time.Time)}
}

// CheckAndRecord validates packet freshness and nonce novelty against
// now, recording the nonce on success. It reports ErrReplayDetected for a
// duplicate nonce seen within the last 5 minutes, and a generic
// InvalidCiphertext-kind error for stale packets.
func (c *ReplayCache) CheckAndRecord(packet *KeyPacket, now time.Time, secLog SecurityLog) error {
	packetTime := time.Unix(packet.Timestamp, 0)
	if now.Sub(packetTime) >= keyPacketFreshness {
		return &Error{Kind: KindInvalidCiphertext, Msg: "channel key packet too old"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[packet.Nonce]; dup {
		if secLog != nil {
			secLog.ReplayAttackDetected(packet.Channel)
		}
		return ErrReplayDetected
	}
	c.seen[packet.Nonce] = now
	if len(c.seen) > nonceCacheBulkCap {
		c.seen = make(map[string]time.Time)
		c.seen[packet.Nonce] = now
	}
	return nil
}

// Tick garbage-collects nonces older than the freshness window, per the
// explicit-tick DESIGN NOTES convention (no hidden timer goroutine).
func (c *ReplayCache) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for nonce, seenAt := range c.seen {
		if now.Sub(seenAt) >= keyPacketFreshness {
			delete(c.seen, nonce)
		}
	}
}

// ProcessKeyPacket validates and records packet, returning (channel,
// password) on success.
func (c *ReplayCache) ProcessKeyPacket(packet *KeyPacket, now time.Time, secLog SecurityLog) (channelName, password string, err error) {
	if err := c.CheckAndRecord(packet, now, secLog); err != nil {
		return "", "", err
	}
	return packet.Channel, packet.Password, nil
}
