// Package event defines the structured session events consumed by the
// pairing engine. Events arrive fully parsed from the upstream producer;
// this package owns their in-memory and wire (JSON) representation only.
package event

import "time"

// Kind discriminates between event variants.
type Kind string

const (
	// KindTextMessage is an assistant text block.
	KindTextMessage Kind = "text"
	// KindToolUse is a tool invocation request.
	KindToolUse Kind = "tool_use"
	// KindToolResult is the outcome of a tool invocation.
	KindToolResult Kind = "tool_result"
	// KindSessionInit marks the start of a session.
	KindSessionInit Kind = "session_init"
	// KindTaskResult marks the end of a task with summary metrics.
	KindTaskResult Kind = "task_result"
)

// Event is one incoming unit of the session stream, immutable once created.
// Fields beyond Kind/SessionID/ReceivedAt are populated per kind; absent
// fields are left at their zero value rather than rejected.
type Event struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"session_id,omitempty"`

	// ReceivedAt is stamped at ingestion. Ingestion order is authoritative
	// for pairing; wall-clock equality between events carries no meaning.
	ReceivedAt time.Time `json:"-"`

	// ToolID correlates a ToolUse to its ToolResult. A ToolResult whose id
	// matches no pending ToolUse is emitted standalone, not treated as an
	// error. An empty id on a ToolUse makes it unmatchable by any result.
	ToolID string `json:"tool_id,omitempty"`

	// ToolName and Input describe a ToolUse invocation.
	ToolName string         `json:"tool_name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`

	// Text carries assistant text, a tool result body, an error body when
	// IsError is set, or a task result summary.
	Text    string `json:"text,omitempty"`
	IsError bool   `json:"is_error,omitempty"`

	// Session metadata (SessionInit) and task metrics (TaskResult).
	Model      string  `json:"model,omitempty"`
	DurationMS float64 `json:"duration_ms,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	NumTurns   int     `json:"num_turns,omitempty"`
}

// Immediate reports whether the event is a session lifecycle marker that
// may bypass the drain sampling window.
func (e Event) Immediate() bool {
	return e.Kind == KindSessionInit || e.Kind == KindTaskResult
}

// TodoToolName marks a tool invocation as a structured task-list update,
// which renders as an itemized list instead of a plain result block.
const TodoToolName = "TodoWrite"
