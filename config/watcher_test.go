package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWatcherReloadRecordsChangedGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitchatcore.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatalf("seed config file: %v", err)
	}

	initial, err := Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	w := NewWatcher(path, initial, 4)

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n[wire]\nblock_sizes = [256, 512]\n"), 0o644); err != nil {
		t.Fatalf("rewrite config file: %v", err)
	}
	if err := w.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	last := w.LastReload()
	if last == nil || !last.Success {
		t.Fatalf("expected a successful reload event, got %+v", last)
	}
	changed := map[string]bool{}
	for _, g := range last.Changed {
		changed[g] = true
	}
	if !changed["logging"] || !changed["wire"] {
		t.Fatalf("expected logging and wire to be reported changed, got %v", last.Changed)
	}
	if changed["session"] || changed["rate_limit"] {
		t.Fatalf("did not expect unrelated groups reported changed, got %v", last.Changed)
	}
}

func TestWatcherReloadFailureLeavesCurrentUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitchatcore.toml")
	if err := os.WriteFile(path, []byte("[session]\ntimeout = \"12h\"\n"), 0o644); err != nil {
		t.Fatalf("seed config file: %v", err)
	}
	initial, err := Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}
	w := NewWatcher(path, initial, 4)

	if err := os.WriteFile(path, []byte("[session]\nrenegotiation_fraction = 2.0\n"), 0o644); err != nil {
		t.Fatalf("rewrite config file: %v", err)
	}
	if err := w.Reload(); err == nil {
		t.Fatal("expected reload to fail validation")
	}

	if got := w.Current().Session.Timeout.String(); got != "12h0m0s" {
		t.Fatalf("expected Current to retain prior value, got %q", got)
	}
	total, successful, failed := w.Stats()
	if total != 1 || successful != 0 || failed != 1 {
		t.Fatalf("stats = %d/%d/%d, want 1/0/1", total, successful, failed)
	}
}

func TestNewWatcherDefaultsMaxSize(t *testing.T) {
	w := NewWatcher("unused.toml", Default(), 0)
	for i := 0; i < 15; i++ {
		w.Reload()
	}
	total, _, _ := w.Stats()
	if total != 10 {
		t.Fatalf("history = %d, want capped at default 10", total)
	}
}
