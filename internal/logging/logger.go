// Package logging provides leveled logging and simulation event tracing.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger for structured JSONL state-machine events (<run dir>/events.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LevelTrace is a custom slog level below Debug for per-agent detail.
const LevelTrace = slog.LevelDebug - 4

// EventsFile is the name of the event log inside a run directory.
const EventsFile = "events.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// EventLogger writes simulation events (conversions, diagnoses, enrolments,
// incarcerations, ...) to a JSONL file, one object per line.
// It is safe for concurrent use. A nil EventLogger is safe to use;
// all methods are no-ops on nil receiver.
type EventLogger struct {
	mu    sync.Mutex
	w     io.Writer
	file  *os.File
	runID string
}

// NewEventLogger creates an event logger writing to dir/events.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewEventLogger(dir, level, runID string) *EventLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, EventsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &EventLogger{w: f, file: f, runID: runID}
}

// NewEventWriter creates an event logger writing to w. Close does not close w.
func NewEventWriter(w io.Writer, runID string) *EventLogger {
	return &EventLogger{w: w, runID: runID}
}

// Log writes one event as a single JSONL line. The event name, the time step
// and the run id are added to fields; the caller's map is not mutated.
// Safe to call on nil receiver.
func (el *EventLogger) Log(event string, t int, fields map[string]any) {
	if el == nil {
		return
	}

	// Copy to avoid mutating caller's map
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["t"] = t
	if el.runID != "" {
		entry["run_id"] = el.runID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.w == nil {
		return
	}
	_, _ = el.w.Write(data)
}

// Agent logs an event about one agent.
func (el *EventLogger) Agent(event string, t int, agentID int64, fields map[string]any) {
	if el == nil {
		return
	}
	entry := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}
	entry["agent"] = agentID
	el.Log(event, t, entry)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.file != nil {
		el.file.Close()
	}
	el.file = nil
	el.w = nil
}
