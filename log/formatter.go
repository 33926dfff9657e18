// formatter.go provides pluggable line formatters for the execution core's
// logs and the slog.Handler adapter that drives them. The default logger
// writes slog JSON directly; NewWithFormatter routes records through a
// LogFormatter instead, which the tests use for human-readable output.
package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a log entry, mirroring the slog levels this
// package emits.
type LogLevel int

const (
	// DEBUG is the most verbose level, used for per-call diagnostics.
	DEBUG LogLevel = iota
	// INFO is for general operational messages.
	INFO
	// WARN indicates a suspicious but non-fatal condition, such as a
	// reverted fee transfer.
	WARN
	// ERROR indicates a failure the core could not recover from.
	ERROR
)

// String returns the uppercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// LevelFromString parses a level name case-insensitively. Unrecognised
// strings return INFO.
func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// slogLevel converts to the slog scale.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// levelFromSlog converts from the slog scale.
func levelFromSlog(l slog.Level) LogLevel {
	switch {
	case l < slog.LevelInfo:
		return DEBUG
	case l < slog.LevelWarn:
		return INFO
	case l < slog.LevelError:
		return WARN
	default:
		return ERROR
	}
}

// LogEntry is one log event as seen by a formatter.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogFormatter renders a LogEntry into a single output line (without the
// trailing newline).
type LogFormatter interface {
	Format(entry LogEntry) string
}

// sortedFieldKeys returns the entry's field keys in sorted order so output
// is deterministic.
func sortedFieldKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TextFormatter renders entries as plain text:
//
//	2024-01-01T12:00:00Z INFO  executed transaction module=core fee=42
type TextFormatter struct {
	// TimeFormat controls the timestamp layout; time.RFC3339 when empty.
	TimeFormat string
}

// Format implements LogFormatter.
func (f *TextFormatter) Format(entry LogEntry) string {
	layout := f.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	var b strings.Builder
	b.WriteString(entry.Timestamp.Format(layout))
	b.WriteString(" ")
	// Pad to the widest level name so messages line up.
	fmt.Fprintf(&b, "%-5s", entry.Level)
	b.WriteString(" ")
	b.WriteString(entry.Message)
	for _, k := range sortedFieldKeys(entry.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

// JSONFormatter renders entries as one JSON object per line, with the
// time/level/msg keys slog uses.
type JSONFormatter struct {
	// TimeFormat controls the timestamp layout; time.RFC3339 when empty.
	TimeFormat string
}

// Format implements LogFormatter.
func (f *JSONFormatter) Format(entry LogEntry) string {
	layout := f.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}

	obj := make(map[string]interface{}, 3+len(entry.Fields))
	obj["time"] = entry.Timestamp.Format(layout)
	obj["level"] = entry.Level.String()
	obj["msg"] = entry.Message
	for k, v := range entry.Fields {
		obj[k] = v
	}

	data, err := json.Marshal(obj)
	if err != nil {
		// Logging must never fail the caller; fall back to the bare fields.
		return fmt.Sprintf(`{"time":%q,"level":%q,"msg":%q}`,
			entry.Timestamp.Format(layout), entry.Level, entry.Message)
	}
	return string(data)
}

// formatterHandler adapts a LogFormatter into a slog.Handler so formatted
// loggers share the Logger/Module machinery with the default JSON one.
type formatterHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	formatter LogFormatter
	attrs     []slog.Attr
}

func newFormatterHandler(w io.Writer, formatter LogFormatter, level LogLevel) *formatterHandler {
	return &formatterHandler{
		mu:        new(sync.Mutex),
		w:         w,
		level:     level.slogLevel(),
		formatter: formatter,
	}
}

// Enabled implements slog.Handler.
func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *formatterHandler) Handle(_ context.Context, rec slog.Record) error {
	entry := LogEntry{
		Timestamp: rec.Time,
		Level:     levelFromSlog(rec.Level),
		Message:   rec.Message,
		Fields:    make(map[string]interface{}, len(h.attrs)+rec.NumAttrs()),
	}
	for _, a := range h.attrs {
		entry.Fields[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		entry.Fields[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, h.formatter.Format(entry)+"\n")
	return err
}

// WithAttrs implements slog.Handler.
func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &formatterHandler{
		mu:        h.mu,
		w:         h.w,
		level:     h.level,
		formatter: h.formatter,
		attrs:     merged,
	}
}

// WithGroup implements slog.Handler. Groups are flattened: the core's
// loggers only use flat key-value context.
func (h *formatterHandler) WithGroup(string) slog.Handler {
	return h
}

var _ slog.Handler = (*formatterHandler)(nil)
