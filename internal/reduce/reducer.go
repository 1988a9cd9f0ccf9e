// Package reduce turns ordered event groups into display-ready records,
// applying truncation and duplicate suppression. Records are plain text;
// coloring and box drawing belong to the downstream renderer.
package reduce

import (
	"fmt"
	"strings"

	"github.com/nixlim/cc-relay/internal/event"
	"github.com/nixlim/cc-relay/internal/pairing"
)

// RecordKind tags a display record with its origin.
type RecordKind string

const (
	RecordToolComplete    RecordKind = "tool_complete"
	RecordToolFailed      RecordKind = "tool_failed"
	RecordToolInterrupted RecordKind = "tool_interrupted"
	RecordToolOrphaned    RecordKind = "tool_orphaned"
	RecordPlain           RecordKind = "plain"
)

// DisplayRecord is one display-ready unit. Downstream sinks must treat
// Content as opaque text plus the kind tag.
type DisplayRecord struct {
	Kind      RecordKind
	SessionID string
	Content   string
}

// DefaultMaxResultLines caps how many lines of a result body are rendered
// before truncation.
const DefaultMaxResultLines = 500

// Reducer converts groups into records. It is incremental: successive calls
// to Reduce share the duplicate-suppression state, so a record whose content
// exactly equals the previously emitted one is dropped even across batches.
// A Reducer is owned by a single consumer and is not safe for concurrent use.
type Reducer struct {
	maxResultLines int

	lastContent string
	hasLast     bool
}

// NewReducer creates a Reducer with the given result line cap. Non-positive
// caps fall back to DefaultMaxResultLines.
func NewReducer(maxResultLines int) *Reducer {
	if maxResultLines < 1 {
		maxResultLines = DefaultMaxResultLines
	}
	return &Reducer{maxResultLines: maxResultLines}
}

// Reduce renders each group into one record, suppressing records whose
// content repeats the previously emitted one. Suppressed groups still count
// as fully processed.
func (r *Reducer) Reduce(groups []pairing.Group) []DisplayRecord {
	var records []DisplayRecord
	for _, g := range groups {
		rec := r.render(g)
		if r.hasLast && rec.Content == r.lastContent {
			continue
		}
		r.lastContent = rec.Content
		r.hasLast = true
		records = append(records, rec)
	}
	return records
}

func (r *Reducer) render(g pairing.Group) DisplayRecord {
	switch {
	case g.Kind == pairing.GroupToolPair:
		return r.renderToolPair(g)
	case g.Resolution == pairing.ResolutionInterrupted:
		return DisplayRecord{
			Kind:      RecordToolInterrupted,
			SessionID: g.Event.SessionID,
			Content: fmt.Sprintf("%s \u2717 interrupted by a new tool request (%s)",
				toolHeading(g.Event), formatDuration(g.DurationMS)),
		}
	case g.Resolution == pairing.ResolutionOrphaned:
		return DisplayRecord{
			Kind:      RecordToolOrphaned,
			SessionID: g.Event.SessionID,
			Content: fmt.Sprintf("%s \u2717 no result within timeout (%s)",
				toolHeading(g.Event), formatDuration(g.DurationMS)),
		}
	default:
		return r.renderSingle(g.Event)
	}
}

// renderToolPair produces one block: heading with outcome mark and duration,
// then the result body (or the error text for failures) under the line cap.
func (r *Reducer) renderToolPair(g pairing.Group) DisplayRecord {
	kind := RecordToolComplete
	mark := "\u2713"
	if g.Resolution == pairing.ResolutionFailed {
		kind = RecordToolFailed
		mark = "\u2717"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)", toolHeading(g.Event), mark, formatDuration(g.DurationMS))
	if list := todoList(g.Event); list != "" {
		b.WriteString("\n")
		b.WriteString(list)
	}

	body := ""
	if g.Result != nil {
		body = g.Result.Text
	}
	if kind == RecordToolFailed {
		if body == "" {
			body = "unknown error"
		}
		body = "Error: " + body
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(r.truncate(body))
	}

	return DisplayRecord{Kind: kind, SessionID: g.Event.SessionID, Content: b.String()}
}

// renderSingle handles groups that never involved a pending tool.
func (r *Reducer) renderSingle(ev event.Event) DisplayRecord {
	rec := DisplayRecord{Kind: RecordPlain, SessionID: ev.SessionID}

	switch ev.Kind {
	case event.KindSessionInit:
		if ev.Model != "" {
			rec.Content = fmt.Sprintf("Session started (%s)", ev.Model)
		} else {
			rec.Content = "Session started"
		}
	case event.KindTaskResult:
		rec.Content = formatTaskResult(ev)
	case event.KindToolResult:
		// Orphan result: its tool is unknown or already resolved.
		rec.Content = r.truncate(ev.Text)
		if ev.ToolName != "" {
			rec.Content = fmt.Sprintf("%s result\n%s", ev.ToolName, rec.Content)
		}
	default:
		rec.Content = r.truncate(ev.Text)
	}
	return rec
}

// toolHeading renders "Name(primary-arg)", or just the name when the input
// offers nothing informative.
func toolHeading(ev event.Event) string {
	name := ev.ToolName
	if name == "" {
		name = "tool"
	}
	if arg := primaryArgument(ev.Input); arg != "" {
		return fmt.Sprintf("%s(%s)", name, arg)
	}
	return name
}

// todoList renders a task-list update tool's items one per line, preserving
// the given order. It returns "" for every other tool.
func todoList(ev event.Event) string {
	if ev.ToolName != event.TodoToolName {
		return ""
	}
	return renderTodoList(ev.Input)
}

// primaryArgument picks the most informative field of a tool's input.
func primaryArgument(input map[string]any) string {
	for _, key := range []string{"command", "file_path", "path", "pattern", "url", "description", "prompt", "query"} {
		if v, ok := input[key].(string); ok && v != "" {
			return firstLine(v)
		}
	}
	return ""
}

// renderTodoList renders a task-list update's items as one line per item.
func renderTodoList(input map[string]any) string {
	items, ok := input["todos"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}

	var lines []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		status, _ := m["status"].(string)
		lines = append(lines, todoMarker(status)+" "+content)
	}
	return strings.Join(lines, "\n")
}

func todoMarker(status string) string {
	switch status {
	case "completed":
		return "\u2713"
	case "in_progress":
		return "\u25b8"
	default:
		return "\u25a1"
	}
}

// formatTaskResult renders the end-of-task summary with its metrics.
func formatTaskResult(ev event.Event) string {
	outcome := "Task finished"
	if ev.IsError {
		outcome = "Task failed"
	}

	var parts []string
	if ev.CostUSD > 0 {
		parts = append(parts, fmt.Sprintf("$%.2f", ev.CostUSD))
	}
	if ev.NumTurns > 0 {
		parts = append(parts, fmt.Sprintf("%d turns", ev.NumTurns))
	}

	s := outcome
	if ev.DurationMS > 0 {
		s += " in " + formatDuration(ev.DurationMS)
	}
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	if ev.Text != "" {
		s += "\n" + firstLine(ev.Text)
	}
	return s
}

// truncate caps s at the configured line count, appending an explicit
// marker with the number of hidden lines.
func (r *Reducer) truncate(s string) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= r.maxResultLines {
		return s
	}
	kept := lines[:r.maxResultLines]
	return strings.Join(kept, "\n") +
		fmt.Sprintf("\n... (%d more lines truncated)", len(lines)-r.maxResultLines)
}

// formatDuration converts milliseconds to seconds with two decimals.
func formatDuration(ms float64) string {
	return fmt.Sprintf("%.2fs", ms/1000)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
