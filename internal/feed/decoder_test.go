package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nixlim/cc-relay/internal/event"
)

func TestDecoder_DecodesEventsInOrder(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"session_init","session_id":"s1","model":"opus"}`,
		`{"kind":"tool_use","session_id":"s1","tool_id":"1","tool_name":"Bash","input":{"command":"ls"}}`,
		`{"kind":"tool_result","session_id":"s1","tool_id":"1","text":"README.md"}`,
	}, "\n")

	var got []event.Event
	d := NewDecoder(strings.NewReader(input))
	if err := d.Run(func(ev event.Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Kind != event.KindSessionInit || got[0].Model != "opus" {
		t.Errorf("event 0: expected session_init with model, got %+v", got[0])
	}
	if got[1].Kind != event.KindToolUse || got[1].ToolID != "1" {
		t.Errorf("event 1: expected tool_use id=1, got %+v", got[1])
	}
	if cmd, _ := got[1].Input["command"].(string); cmd != "ls" {
		t.Errorf("event 1: expected input command 'ls', got %v", got[1].Input)
	}
	if got[2].Kind != event.KindToolResult || got[2].Text != "README.md" {
		t.Errorf("event 2: expected tool_result with body, got %+v", got[2])
	}
}

func TestDecoder_StampsReceivedAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := NewDecoder(
		strings.NewReader(`{"kind":"text","text":"hi"}`),
		WithClock(func() time.Time { return now }),
	)

	var got []event.Event
	if err := d.Run(func(ev event.Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if !got[0].ReceivedAt.Equal(now) {
		t.Errorf("expected ReceivedAt stamped from clock, got %v", got[0].ReceivedAt)
	}
}

func TestDecoder_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"text","text":"good"}`,
		`{not json`,
		``,
		`{"kind":"text","text":"also good"}`,
	}, "\n")

	var got []event.Event
	d := NewDecoder(strings.NewReader(input))
	if err := d.Run(func(ev event.Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if d.Skipped() != 1 {
		t.Errorf("expected 1 skipped line, got %d", d.Skipped())
	}
}

func TestDecoder_InvokesLogger(t *testing.T) {
	var buf bytes.Buffer
	d := NewDecoder(
		strings.NewReader(`{"kind":"tool_use","tool_id":"1","tool_name":"Read"}`),
		WithLogger(NewFileLogger(&buf)),
	)
	if err := d.Run(func(event.Event) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, `"kind":"tool_use"`) {
		t.Errorf("expected kind in debug log, got %q", line)
	}
	if !strings.Contains(line, `"tool_name":"Read"`) {
		t.Errorf("expected tool name in debug log, got %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected JSONL line termination")
	}
}

func TestFileLogger_SummarizesPayload(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)

	l.LogEvent(event.Event{
		Kind:       event.KindToolResult,
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ToolID:     "1",
		Text:       "secret result body",
	})

	line := buf.String()
	if strings.Contains(line, "secret result body") {
		t.Errorf("debug log must not copy payload text, got %q", line)
	}
	if !strings.Contains(line, `"text_len":18`) {
		t.Errorf("expected payload length summary, got %q", line)
	}
	if !strings.Contains(line, `"ts":"2025-06-01T12:00:00Z"`) {
		t.Errorf("expected RFC3339 timestamp, got %q", line)
	}
}
