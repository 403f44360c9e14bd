package governor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopkit/loopkit/driver"
	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
	"github.com/loopkit/loopkit/telemetry"
)

// runContext is the per-run state a Governor threads through the advisor
// hooks for exactly one invocation. It stands in for the thread-local
// storage the source relies on: since Go has no thread-local primitive, the
// Governor keys a lookup by RunID instead and relies on the context carrying
// that RunID through the driver's hook calls (see SPEC_FULL.md's Open
// Question resolution for per-run state).
type runContext struct {
	mu           sync.Mutex
	state        state.LoopState
	lastResponse driver.Response
	lastVerdict  *judge.Verdict
	started      time.Time
	aborted      atomic.Bool

	invokeSpan  telemetry.Span
	turnSpan    telemetry.Span
	turnStarted time.Time
}

func newRunContext(id runid.RunID) *runContext {
	return &runContext{
		state:   state.Initial(id),
		started: time.Now(),
	}
}

func (rc *runContext) snapshot() state.LoopState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

func (rc *runContext) updateState(fn func(state.LoopState) state.LoopState) state.LoopState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.state = fn(rc.state)
	return rc.state
}

// takeInvokeSpan returns and clears the invocation span, so it is ended
// exactly once regardless of which Invoke branch terminates the run.
func (rc *runContext) takeInvokeSpan() telemetry.Span {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	span := rc.invokeSpan
	rc.invokeSpan = nil
	return span
}

// takeTurnSpan returns and clears the in-flight turn span and its start
// time, so AfterModelCall can record its duration exactly once per turn.
func (rc *runContext) takeTurnSpan() (telemetry.Span, time.Time) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	span := rc.turnSpan
	started := rc.turnStarted
	rc.turnSpan = nil
	return span, started
}
