// Package governor implements the Loop Governor: it wraps an externally
// provided recursive tool-call driver, enforces composite termination before
// and after each model round, and converts any trip into a pattern-specific
// result. See SPEC_FULL.md §4.4 for the full component design this package
// implements.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/loopkit/loopkit/driver"
	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/result"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
	"github.com/loopkit/loopkit/telemetry"
)

// Governor bounds an otherwise-unbounded recursive tool-call session. One
// Governor instance may drive multiple concurrent invocations, each scoped
// to its own RunID; construction is immutable once Build()'d.
type Governor struct {
	cfg     policy.Config
	mc      *events.Multicaster
	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	runs sync.Map // runid.RunID -> *runContext
}

// Configuration returns the immutable config this Governor was built with.
func (g *Governor) Configuration() policy.Config {
	return g.cfg
}

// ToolListener returns the tool-call observer a Driver must notify as it
// executes tool calls. Listeners and validators (e.g.
// adapters/tools/jsonschema.ValidatingToolListener, gating on
// Configuration().AllowedTools) registered via Builder.ToolListener are
// reached through here.
func (g *Governor) ToolListener() events.ToolListener {
	return g.mc
}

func (g *Governor) run(id runid.RunID) (*runContext, bool) {
	v, ok := g.runs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*runContext), true
}

// Abort sets the external abort flag for the given run. It is observed at
// the next before-model-call hook; in-flight model calls and tool
// executions are not interrupted. A Governor has no implicit "current
// thread" the way the source does, so callers pass the RunID explicitly
// (see SPEC_FULL.md's per-run-state Open Question resolution).
func (g *Governor) Abort(id runid.RunID) {
	if rc, ok := g.run(id); ok {
		rc.aborted.Store(true)
	}
}

// AbortSignalled reports whether Abort has been called for id.
func (g *Governor) AbortSignalled(id runid.RunID) bool {
	rc, ok := g.run(id)
	return ok && rc.aborted.Load()
}

// CurrentState returns a read-only snapshot of the active run's state, or
// the zero state and false between runs / for an unknown RunID.
func (g *Governor) CurrentState(id runid.RunID) (state.LoopState, bool) {
	rc, ok := g.run(id)
	if !ok {
		return state.LoopState{}, false
	}
	return rc.snapshot(), true
}

// Invoke drives one invocation of d, wiring this Governor in as the advisor.
// It converts the terminal outcome — whether a LoopTerminated/JuryPassed
// signal, natural completion, or an unhandled error — into a
// result.TurnLimitedResult, per the control-flow contract in SPEC_FULL.md
// §4.4. This is the "outer call site" spec.md refers to.
func (g *Governor) Invoke(ctx context.Context, d driver.Driver, req driver.Request) result.TurnLimitedResult {
	handle := &invocationHandle{}
	resp, err := d.Run(withHandle(ctx, handle), g, req)
	ctx = withRunID(ctx, handle.id)

	var jury *driver.JuryPassed
	var terminated *driver.LoopTerminated
	switch {
	case errors.As(err, &jury):
		v := jury.Verdict
		id := jury.State.RunID
		g.mc.OnLoopCompleted(id, jury.State, jury.Reason)
		g.endInvocation(id, jury.Reason, nil)
		g.forget(id)
		return result.NewTurnLimitedResult(jury.State, textOf(jury.Response), jury.Reason, false, startedAt(jury.State), &v)
	case errors.As(err, &terminated):
		id := terminated.State.RunID
		g.mc.OnLoopCompleted(id, terminated.State, terminated.Reason)
		g.endInvocation(id, terminated.Reason, nil)
		verdict := g.lastVerdict(id)
		g.forget(id)
		return result.NewTurnLimitedResult(terminated.State, textOf(terminated.Response), terminated.Reason, false, startedAt(terminated.State), verdict)
	}

	if err != nil {
		id, _ := RunIDFromContext(ctx)
		st, _ := g.CurrentState(id)
		g.logger.Error(ctx, "governor: invocation failed", "run_id", id.String(), "error", err.Error())
		g.mc.OnLoopFailed(id, st, err)
		g.endInvocation(id, policy.ReasonError, err)
		verdict := g.lastVerdict(id)
		g.forget(id)
		return result.NewTurnLimitedResult(st, "", policy.ReasonError, true, startedAt(st), verdict)
	}

	// Natural completion: the driver returned without further tool calls.
	id, _ := RunIDFromContext(ctx)
	st, _ := g.CurrentState(id)
	g.mc.OnLoopCompleted(id, st, policy.ReasonFinishToolCalled)
	g.endInvocation(id, policy.ReasonFinishToolCalled, nil)
	verdict := g.lastVerdict(id)
	g.forget(id)
	return result.NewTurnLimitedResult(st, textOf(resp), policy.ReasonFinishToolCalled, false, startedAt(st), verdict)
}

// lastVerdict returns the most recent judge verdict recorded for id, or nil
// if no judge ran during the run.
func (g *Governor) lastVerdict(id runid.RunID) *judge.Verdict {
	rc, ok := g.run(id)
	if !ok {
		return nil
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.lastVerdict
}

// endInvocation records the loop.terminations counter by reason and ends the
// invocation span started in BeforeInvocation, if one is still open.
func (g *Governor) endInvocation(id runid.RunID, reason policy.TerminationReason, err error) {
	g.metrics.IncCounter("loop.terminations", 1, "reason", reason.String())
	rc, ok := g.run(id)
	if !ok {
		return
	}
	span := rc.takeInvokeSpan()
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func (g *Governor) forget(id runid.RunID) {
	g.runs.Delete(id)
}

func textOf(resp driver.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Text()
}

func startedAt(s state.LoopState) time.Time {
	if s.StartedAt.IsZero() {
		return time.Now()
	}
	return s.StartedAt
}

var _ driver.Advisor = (*Governor)(nil)

// ErrNilDriver is the error for a missing driver. No function in this
// package returns it; Invoke does not check for a nil driver.
var ErrNilDriver = fmt.Errorf("governor: driver is required")
