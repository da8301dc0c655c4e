package config

import (
	"reflect"
	"sync"
	"time"
)

// ReloadEvent records one attempt to reload the TOML config file,
// surfaced by cmd/bitchatcore's fsnotify watch loop. Changed lists which
// top-level groups (rate_limit/session/channel/wire/logging) actually
// differed from the previously active Config, computed by Watcher.Reload
// itself rather than supplied by the caller.
type ReloadEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Changed   []string  `json:"changed,omitempty"`
}

// Watcher holds the currently active Config for a path and a bounded
// history of reload attempts against it, so hosting code can both read
// the live config and audit how it has drifted over time. Grounded on
// the teacher's internal/state reload bookkeeping, reworked from a bare
// caller-fed event log into a type that owns the config it is tracking:
// Reload loads the file itself and diffs the result against the
// previously active Config, rather than trusting the caller to describe
// what changed.
type Watcher struct {
	mu      sync.RWMutex
	path    string
	current *Config
	history []ReloadEvent
	maxSize int
}

// NewWatcher returns a Watcher for path, seeded with initial (normally
// the Config loaded at startup) and retaining up to maxSize reload
// events. maxSize <= 0 defaults to 10.
func NewWatcher(path string, initial *Config, maxSize int) *Watcher {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &Watcher{
		path:    path,
		current: initial,
		history: make([]ReloadEvent, 0, maxSize),
		maxSize: maxSize,
	}
}

// Current returns the Watcher's active Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Path returns the TOML file path this Watcher reloads from.
func (w *Watcher) Path() string {
	return w.path
}

// Reload re-reads the TOML file at w.path, diffs it against the
// currently active Config, and — on success — swaps it in as current.
// A failed reload leaves Current unchanged.
func (w *Watcher) Reload() error {
	next, err := Load(w.path)
	if err != nil {
		w.mu.Lock()
		w.addEvent(ReloadEvent{Timestamp: time.Now(), Success: false, Error: err.Error()})
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	changed := diffGroups(w.current, next)
	w.current = next
	w.addEvent(ReloadEvent{Timestamp: time.Now(), Success: true, Changed: changed})
	return nil
}

func (w *Watcher) addEvent(event ReloadEvent) {
	w.history = append(w.history, event)
	if len(w.history) > w.maxSize {
		w.history = w.history[1:]
	}
}

// History returns a copy of the retained reload events, oldest first.
func (w *Watcher) History() []ReloadEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ReloadEvent, len(w.history))
	copy(out, w.history)
	return out
}

// LastReload returns the most recent reload event, or nil if none has
// happened yet.
func (w *Watcher) LastReload() *ReloadEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.history) == 0 {
		return nil
	}
	event := w.history[len(w.history)-1]
	return &event
}

// Stats summarizes the retained reload history.
func (w *Watcher) Stats() (total, successful, failed int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	total = len(w.history)
	for _, event := range w.history {
		if event.Success {
			successful++
		} else {
			failed++
		}
	}
	return
}

// diffGroups names the top-level Config groups that differ between old
// and next. A nil old (no prior successful load) reports every group as
// changed.
func diffGroups(old, next *Config) []string {
	if old == nil {
		return []string{"rate_limit", "session", "channel", "wire", "logging"}
	}
	var changed []string
	if !reflect.DeepEqual(old.RateLimit, next.RateLimit) {
		changed = append(changed, "rate_limit")
	}
	if !reflect.DeepEqual(old.Session, next.Session) {
		changed = append(changed, "session")
	}
	if !reflect.DeepEqual(old.Channel, next.Channel) {
		changed = append(changed, "channel")
	}
	if !reflect.DeepEqual(old.Wire, next.Wire) {
		changed = append(changed, "wire")
	}
	if !reflect.DeepEqual(old.Logging, next.Logging) {
		changed = append(changed, "logging")
	}
	return changed
}
