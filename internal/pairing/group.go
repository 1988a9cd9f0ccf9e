package pairing

import (
	"github.com/nixlim/cc-relay/internal/event"
)

// GroupKind distinguishes single-event groups from matched tool pairs.
type GroupKind string

const (
	// GroupSingle carries exactly one event: a text message, a lifecycle
	// marker, an unmatched tool result, or a tool use resolved without one.
	GroupSingle GroupKind = "single"
	// GroupToolPair carries a tool use and its resolving result.
	GroupToolPair GroupKind = "tool_pair"
)

// Resolution names how a pending tool invocation was resolved. It is empty
// for groups that never involved a pending tool.
type Resolution string

const (
	// ResolutionCompleted means a matching result arrived without error.
	ResolutionCompleted Resolution = "completed"
	// ResolutionFailed means a matching result arrived with is_error set.
	ResolutionFailed Resolution = "failed"
	// ResolutionInterrupted means a new tool use arrived before any result.
	ResolutionInterrupted Resolution = "interrupted"
	// ResolutionOrphaned means no result arrived within the timeout, or the
	// tool was still pending at shutdown.
	ResolutionOrphaned Resolution = "orphaned"
)

// Group is the engine's output unit. Groups are emitted in the exact order
// their resolving condition occurred.
type Group struct {
	Kind       GroupKind
	Resolution Resolution

	// Event is the single event for GroupSingle, or the originating ToolUse
	// for GroupToolPair and for interrupted/orphaned singles.
	Event event.Event

	// Result is the resolving ToolResult; set only for GroupToolPair.
	Result *event.Event

	// DurationMS is result arrival minus tool start for pairs, and
	// resolution time minus tool start for interrupted/orphaned tools.
	DurationMS float64
}
