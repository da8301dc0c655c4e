package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	d := Default()
	if d.RateLimit.HandshakesPerPeerCap != 10 {
		t.Fatalf("handshakes per peer cap = %d, want 10", d.RateLimit.HandshakesPerPeerCap)
	}
	if d.RateLimit.MessagesGlobalCap != 500 {
		t.Fatalf("messages global cap = %d, want 500", d.RateLimit.MessagesGlobalCap)
	}
	if d.Session.Timeout.Duration != 24*time.Hour {
		t.Fatalf("session timeout = %v, want 24h", d.Session.Timeout.Duration)
	}
	if d.Channel.EpochOverlap.Duration != time.Hour {
		t.Fatalf("epoch overlap = %v, want 1h", d.Channel.EpochOverlap.Duration)
	}
	if len(d.Wire.BlockSizes) != 4 {
		t.Fatalf("block sizes = %v, want 4 entries", d.Wire.BlockSizes)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.toml")
	contents := `
[rate_limit]
handshakes_per_peer_cap = 5

[session]
timeout = "12h"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit.HandshakesPerPeerCap != 5 {
		t.Fatalf("overridden cap = %d, want 5", cfg.RateLimit.HandshakesPerPeerCap)
	}
	if cfg.Session.Timeout.Duration != 12*time.Hour {
		t.Fatalf("overridden timeout = %v, want 12h", cfg.Session.Timeout.Duration)
	}
	if cfg.RateLimit.MessagesGlobalCap != 500 {
		t.Fatalf("untouched field changed: %d", cfg.RateLimit.MessagesGlobalCap)
	}
}

func TestLoadRejectsInvalidRenegotiationFraction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.toml")
	contents := `
[session]
renegotiation_fraction = 1.5
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for out-of-range renegotiation fraction")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
