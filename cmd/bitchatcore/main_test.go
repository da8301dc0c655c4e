package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/zeugmaster/bitchat-sub002/config"
	"github.com/zeugmaster/bitchat-sub002/logging"
	"github.com/zeugmaster/bitchat-sub002/securitylog"
)

// TestRunDemoCompletesEndToEnd exercises the same handshake, message,
// and channel-key path main() drives, without touching the
// filesystem watcher or process signals.
func TestRunDemoCompletesEndToEnd(t *testing.T) {
	var logBuf bytes.Buffer
	logger := logging.New(logging.LevelInfo, &logBuf)
	secLog := securitylog.New(&bytes.Buffer{}, 16)

	if err := runDemo(logger, secLog, config.Default()); err != nil {
		t.Fatalf("runDemo: %v", err)
	}

	if logBuf.Len() == 0 {
		t.Fatal("expected log output from the demo run")
	}
}

// TestStartConfigWatcherReloadsOnWrite confirms a write to the watched
// file is observed and recorded by the config.Watcher.
func TestStartConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bitchatcore.toml"
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatalf("seed config file: %v", err)
	}

	initial, err := config.Load(path)
	if err != nil {
		t.Fatalf("initial load: %v", err)
	}

	var logBuf bytes.Buffer
	logger := logging.New(logging.LevelInfo, &logBuf)
	w := config.NewWatcher(path, initial, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startConfigWatcher(ctx, w, logger)

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		total, _, _ := w.Stats()
		if total > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected at least one reload attempt to be recorded")
}
