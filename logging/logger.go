// Package logging provides the structured, level-filtered JSON logger
// used as the ambient logging layer across this core (satisfying the
// session.Logger collaborator interface). Grounded on the teacher's internal/logging package for
// the level/With/component shape, but the actual encode path follows
// audit.AuditLogger's typed-event-over-json.Encoder pattern instead of
// the teacher's flatten-into-one-map-then-log.Println approach — the
// same choice this repository's own securitylog.Sink makes, so every
// JSON-lines emitter in this tree shares one encode strategy.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity, ordered so that filtering is a single
// integer comparison.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps a config string to a Level, defaulting to LevelInfo
// for anything unrecognized.
func ParseLevel(input string) Level {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "info"
	}
}

// record is the typed shape of one emitted line, mirroring the
// teacher's AuditEvent (fixed top-level fields plus an open Fields bag)
// rather than a single ad hoc map built fresh per call.
type record struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Logger is a mutex-guarded, level-filtered JSON-lines logger. A Logger
// derived via With carries its parent's base fields, so call sites can
// attach stable context (peerID, channel, component) once and reuse the
// derived logger for the life of that scope.
type Logger struct {
	mu    *sync.Mutex
	level Level
	base  map[string]any
	enc   *json.Encoder
}

// New returns a Logger at the given level, writing newline-delimited
// JSON to output. A nil output defaults to os.Stdout.
func New(level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		mu:    &sync.Mutex{},
		level: level,
		base:  map[string]any{},
		enc:   json.NewEncoder(output),
	}
}

// With returns a child Logger that merges fields into its parent's base
// fields; the parent is left unmodified. The child shares the parent's
// encoder, so both still write to the same underlying writer under one
// mutex.
func (l *Logger) With(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.base)+len(fields))
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{mu: l.mu, level: l.level, enc: l.enc, base: merged}
}

// Component is a convenience wrapper around With for the common case of
// tagging every subsequent line with the originating package.
func (l *Logger) Component(name string) *Logger {
	return l.With(map[string]any{"component": name})
}

func (l *Logger) logf(level Level, msg string, fields map[string]any) {
	if level < l.level {
		return
	}

	var merged map[string]any
	if len(l.base) > 0 || len(fields) > 0 {
		merged = make(map[string]any, len(l.base)+len(fields))
		for k, v := range l.base {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	rec := record{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		Fields:    merged,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(rec); err != nil {
		// Fall back to a minimal, hand-built line rather than dropping
		// the failure silently; encoding a record should never fail in
		// practice since every field is a JSON-safe scalar or map.
		l.enc.Encode(record{Timestamp: time.Now().UTC(), Level: "error", Message: "log encode failed: " + err.Error()})
	}
}

func (l *Logger) Debug(msg string, fields map[string]any) {
	l.logf(LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.logf(LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.logf(LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.logf(LevelError, msg, fields)
}

// Fatal logs at LevelFatal and terminates the process. Reserved for
// cmd/bitchatcore startup failures; library packages should never call
// it.
func (l *Logger) Fatal(msg string, fields map[string]any) {
	l.logf(LevelFatal, msg, fields)
	os.Exit(1)
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}
