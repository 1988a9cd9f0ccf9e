// Package pairing buffers session events and matches asynchronous tool
// invocations to their outcomes under a single-active-tool constraint,
// emitting ordered groups to a caller-supplied sink.
package pairing

import (
	"sync"
	"time"

	"github.com/nixlim/cc-relay/internal/event"
)

// Sink receives the full ordered batch of groups produced by one drain.
// It is invoked from the engine's drain goroutine; implementations that
// need concurrency safety beyond that must provide their own.
type Sink func(groups []Group)

// pendingTool is the at-most-one in-flight tool invocation awaiting
// resolution. Exactly one of four outcomes resolves it: a matching result
// (completed or failed), a newer tool use (interrupted), or elapsed time
// past the orphan timeout (orphaned).
type pendingTool struct {
	toolID    string
	startedAt time.Time
	use       event.Event
}

// Engine is the event-pairing state machine. Enqueue may be called from any
// goroutine; all pairing state is owned by the drain loop and guarded by a
// single mutex, so groups are a deterministic function of arrival order plus
// elapsed time at each drain.
type Engine struct {
	tick           time.Duration
	timeout        time.Duration
	immediateFlush bool

	sink Sink
	now  func() time.Time

	mu      sync.Mutex
	buf     []event.Event
	pending *pendingTool

	flushCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used by tests to simulate
// the orphan timeout without waiting.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithImmediateFlush controls whether session lifecycle events (SessionInit,
// TaskResult) force an out-of-band drain instead of waiting for the next
// tick. Either policy preserves ordering; flushing only shortens latency.
func WithImmediateFlush(enabled bool) Option {
	return func(e *Engine) { e.immediateFlush = enabled }
}

// NewEngine creates an Engine that drains every tick, orphans a pending tool
// after timeout, and delivers each drain's groups to sink. A nil sink
// discards groups. Non-positive tick or timeout fall back to the defaults
// (500ms and 30s).
func NewEngine(tick, timeout time.Duration, sink Sink, opts ...Option) *Engine {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if sink == nil {
		sink = func([]Group) {}
	}
	e := &Engine{
		tick:           tick,
		timeout:        timeout,
		immediateFlush: true,
		sink:           sink,
		now:            time.Now,
		flushCh:        make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue appends one event to the buffer. It never blocks and never fails;
// malformed events are normalized during the drain rather than rejected.
// Events missing a ReceivedAt are stamped on entry so ingestion order stays
// authoritative.
func (e *Engine) Enqueue(ev event.Event) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = e.now()
	}

	e.mu.Lock()
	e.buf = append(e.buf, ev)
	immediate := e.immediateFlush && ev.Immediate()
	e.mu.Unlock()

	if immediate {
		select {
		case e.flushCh <- struct{}{}:
		default:
		}
	}
}

// Start launches the periodic drain loop. Calling Start more than once is
// a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	go e.run()
}

// Stop halts the drain loop and synchronously performs one final drain so no
// buffered event or live pending tool is lost: a tool still pending at stop
// is resolved as orphaned with its duration computed against the stop time.
// Stop is idempotent and safe to call without Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		started := e.started
		e.stopped = true
		e.mu.Unlock()

		if started {
			close(e.stopCh)
			<-e.doneCh
			return
		}
		e.emit(e.finalDrain(e.now()))
	})
}

func (e *Engine) run() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			e.emit(e.finalDrain(e.now()))
			return
		case <-ticker.C:
			e.emit(e.drain(e.now()))
		case <-e.flushCh:
			e.emit(e.drain(e.now()))
		}
	}
}

func (e *Engine) emit(groups []Group) {
	if len(groups) > 0 {
		e.sink(groups)
	}
}

// drain processes all buffered events in strict arrival order, then sweeps
// the pending tool against the orphan timeout. It returns the ordered groups
// produced by this pass.
func (e *Engine) drain(now time.Time) []Group {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := e.buf
	e.buf = nil

	var groups []Group
	for _, ev := range batch {
		groups = append(groups, e.process(ev, now)...)
	}

	if g, ok := e.sweepOrphan(now, false); ok {
		groups = append(groups, g)
	}
	return groups
}

// finalDrain is drain with an unconditional orphan sweep: a live pending
// tool at shutdown is resolved rather than dropped.
func (e *Engine) finalDrain(now time.Time) []Group {
	groups := e.drain(now)

	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.sweepOrphan(now, true); ok {
		groups = append(groups, g)
	}
	return groups
}

// process applies one event to the pairing state. Caller holds e.mu.
func (e *Engine) process(ev event.Event, now time.Time) []Group {
	switch ev.Kind {
	case event.KindToolUse:
		return e.processToolUse(ev, now)
	case event.KindToolResult:
		return []Group{e.processToolResult(ev)}
	default:
		// TextMessage, SessionInit, TaskResult and anything unrecognized
		// pass through untouched; they never interact with the pending slot.
		return []Group{{Kind: GroupSingle, Event: ev}}
	}
}

func (e *Engine) processToolUse(ev event.Event, now time.Time) []Group {
	var groups []Group

	// A second tool use while one is pending interrupts the first. The
	// interruption group is emitted before the new tool can resolve, so a
	// tool's fate is always visible before any later event's group.
	if e.pending != nil {
		groups = append(groups, e.resolve(ResolutionInterrupted, ev.ReceivedAt))
	}

	startedAt := ev.ReceivedAt
	if startedAt.IsZero() {
		startedAt = now
	}
	e.pending = &pendingTool{
		toolID:    ev.ToolID,
		startedAt: startedAt,
		use:       ev,
	}
	return groups
}

func (e *Engine) processToolResult(ev event.Event) Group {
	// A tool use without an id is never matchable, so an empty-id result
	// cannot claim it.
	if e.pending != nil && e.pending.toolID != "" && e.pending.toolID == ev.ToolID {
		res := ResolutionCompleted
		if ev.IsError {
			res = ResolutionFailed
		}
		g := e.resolve(res, ev.ReceivedAt)
		g.Kind = GroupToolPair
		result := ev
		g.Result = &result
		return g
	}

	// Orphan result: the tool that produced it is unknown or already
	// resolved. Emitted standalone; pending state is untouched.
	return Group{Kind: GroupSingle, Event: ev}
}

// sweepOrphan resolves the pending tool as orphaned when it has been alive
// for at least the timeout, or unconditionally when force is set (shutdown).
// Caller holds e.mu.
func (e *Engine) sweepOrphan(now time.Time, force bool) (Group, bool) {
	if e.pending == nil {
		return Group{}, false
	}
	if !force && now.Sub(e.pending.startedAt) < e.timeout {
		return Group{}, false
	}
	return e.resolve(ResolutionOrphaned, now), true
}

// resolve destroys the pending tool with the given outcome and returns its
// group. Caller holds e.mu and guarantees e.pending != nil.
func (e *Engine) resolve(res Resolution, at time.Time) Group {
	p := e.pending
	e.pending = nil

	duration := at.Sub(p.startedAt)
	if duration < 0 {
		duration = 0
	}
	return Group{
		Kind:       GroupSingle,
		Resolution: res,
		Event:      p.use,
		DurationMS: float64(duration) / float64(time.Millisecond),
	}
}
