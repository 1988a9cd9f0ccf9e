package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nixlim/cc-relay/internal/event"
)

// Logger provides structured debug logging for the event feed.
// Implementations must be safe for concurrent use.
type Logger interface {
	// LogEvent logs one ingested event.
	LogEvent(ev event.Event)
}

// NopLogger discards all log output. This is the default when debug logging
// is not enabled, and has zero allocation overhead.
type NopLogger struct{}

// LogEvent is a no-op.
func (NopLogger) LogEvent(event.Event) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp string  `json:"ts"`
	Kind      string  `json:"kind"`
	SessionID string  `json:"session,omitempty"`
	ToolID    string  `json:"tool_id,omitempty"`
	ToolName  string  `json:"tool_name,omitempty"`
	IsError   bool    `json:"is_error,omitempty"`
	TextLen   int     `json:"text_len,omitempty"`
	InputKeys int     `json:"input_keys,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
}

// FileLogger writes structured JSON debug output to an io.Writer.
// Each line is a complete JSON object (JSONL format).
type FileLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewFileLogger creates a FileLogger that writes to the given writer.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w}
}

// LogEvent writes a JSON line for an ingested event. Payload text is
// summarized by length rather than copied into the trace.
func (l *FileLogger) LogEvent(ev event.Event) {
	ts := ev.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	entry := logEntry{
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Kind:      string(ev.Kind),
		SessionID: ev.SessionID,
		ToolID:    ev.ToolID,
		ToolName:  ev.ToolName,
		IsError:   ev.IsError,
		TextLen:   len(ev.Text),
		InputKeys: len(ev.Input),
		CostUSD:   ev.CostUSD,
	}

	l.write(entry)
}

func (l *FileLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, string(data))
}
