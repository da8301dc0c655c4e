// Package config loads the tunable, non-secret knobs of this core
// (rate-limit caps, session lifetime overrides, epoch rotation timing,
// padding block sizes, compression threshold) from TOML, grounded on
// the teacher's config.Config/Duration pattern but narrowed to this
// repository's domain instead of the teacher's VPN peer/tunnel schema.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so it can be expressed as a TOML string
// ("24h", "90m") rather than a raw integer of nanoseconds, matching the
// teacher's Duration wrapper.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// RateLimitConfig overrides ratelimit.Limiter's caps.
type RateLimitConfig struct {
	HandshakesPerPeerCap  int      `toml:"handshakes_per_peer_cap"`
	HandshakesPerPeerWindow Duration `toml:"handshakes_per_peer_window"`
	HandshakesGlobalCap   int      `toml:"handshakes_global_cap"`
	HandshakesGlobalWindow Duration `toml:"handshakes_global_window"`
	MessagesPerPeerCap    int      `toml:"messages_per_peer_cap"`
	MessagesPerPeerWindow Duration `toml:"messages_per_peer_window"`
	MessagesGlobalCap     int      `toml:"messages_global_cap"`
	MessagesGlobalWindow  Duration `toml:"messages_global_window"`
}

// SessionConfig overrides session.Session/Manager lifetime parameters.
type SessionConfig struct {
	Timeout               Duration `toml:"timeout"`
	MaxMessagesPerSession  uint64   `toml:"max_messages_per_session"`
	RenegotiationFraction  float64  `toml:"renegotiation_fraction"`
	HandshakeAbandonAfter  Duration `toml:"handshake_abandon_after"`
}

// ChannelConfig overrides channel/rotation.go's epoch parameters.
type ChannelConfig struct {
	EpochDuration     Duration `toml:"epoch_duration"`
	EpochOverlap      Duration `toml:"epoch_overlap"`
	MaxEpochHistory   int      `toml:"max_epoch_history"`
	KeyPacketFreshness Duration `toml:"key_packet_freshness"`
}

// WireConfig overrides wire/padding.go and wire/compress.go thresholds.
type WireConfig struct {
	BlockSizes           []int `toml:"block_sizes"`
	CompressionThreshold int   `toml:"compression_threshold"`
}

// LoggingConfig controls the logging package's output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// Config is the root TOML document.
type Config struct {
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Session   SessionConfig   `toml:"session"`
	Channel   ChannelConfig   `toml:"channel"`
	Wire      WireConfig      `toml:"wire"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Default returns the spec's hard-coded defaults, so the core works
// with zero configuration; Load only overrides values explicitly
// present in the file.
func Default() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			HandshakesPerPeerCap:    10,
			HandshakesPerPeerWindow: Duration{60 * time.Second},
			HandshakesGlobalCap:     30,
			HandshakesGlobalWindow:  Duration{60 * time.Second},
			MessagesPerPeerCap:      100,
			MessagesPerPeerWindow:   Duration{1 * time.Second},
			MessagesGlobalCap:       500,
			MessagesGlobalWindow:    Duration{1 * time.Second},
		},
		Session: SessionConfig{
			Timeout:              Duration{24 * time.Hour},
			MaxMessagesPerSession: 1_000_000_000,
			RenegotiationFraction: 0.9,
			HandshakeAbandonAfter: Duration{60 * time.Second},
		},
		Channel: ChannelConfig{
			EpochDuration:      Duration{24 * time.Hour},
			EpochOverlap:       Duration{1 * time.Hour},
			MaxEpochHistory:    7,
			KeyPacketFreshness: Duration{5 * time.Minute},
		},
		Wire: WireConfig{
			BlockSizes:           []int{256, 512, 1024, 2048},
			CompressionThreshold: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// Load reads and parses a TOML file at path, starting from Default and
// overriding only the fields present in the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimit.HandshakesPerPeerCap <= 0 {
		return fmt.Errorf("rate_limit.handshakes_per_peer_cap must be positive")
	}
	if c.RateLimit.MessagesPerPeerCap <= 0 {
		return fmt.Errorf("rate_limit.messages_per_peer_cap must be positive")
	}
	if c.Session.Timeout.Duration <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.Session.RenegotiationFraction <= 0 || c.Session.RenegotiationFraction > 1 {
		return fmt.Errorf("session.renegotiation_fraction must be in (0, 1]")
	}
	if c.Channel.MaxEpochHistory <= 0 {
		return fmt.Errorf("channel.max_epoch_history must be positive")
	}
	if len(c.Wire.BlockSizes) == 0 {
		return fmt.Errorf("wire.block_sizes must not be empty")
	}
	return nil
}
