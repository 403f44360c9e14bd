package governor

import (
	"context"
	"time"

	"github.com/loopkit/loopkit/driver"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

// BeforeInvocation is the first advisor hook, called once per external
// invocation. It assigns a fresh RunID, resets per-run state, and notifies
// listeners that a new loop has started.
func (g *Governor) BeforeInvocation(ctx context.Context, req driver.Request) (context.Context, error) {
	id := runid.New()
	rc := newRunContext(id)

	ctx, span := g.tracer.Start(ctx, "loop.invoke")
	rc.invokeSpan = span
	g.runs.Store(id, rc)

	ctx = withRunID(ctx, id)
	g.metrics.IncCounter("loop.starts", 1)
	g.mc.OnLoopStarted(id, req.UserMessage)
	g.logger.Debug(ctx, "governor: invocation started", "run_id", id.String())
	return ctx, nil
}

// BeforeModelCall is the second advisor hook, called once per model round
// before the driver issues the round. It evaluates the ordered pre-call
// termination conditions and, on the first trip, returns a *LoopTerminated
// the driver must propagate unchanged.
func (g *Governor) BeforeModelCall(ctx context.Context) (context.Context, error) {
	id, ok := RunIDFromContext(ctx)
	if !ok {
		return ctx, nil
	}
	rc, ok := g.run(id)
	if !ok {
		return ctx, nil
	}

	if rc.aborted.Load() {
		rc.updateState(state.LoopState.Abort)
	}

	s := rc.snapshot()
	if reason, tripped := policy.PreCallCheck(s, g.cfg); tripped {
		g.logger.Info(ctx, "governor: pre-call termination", "run_id", id.String(), "reason", reason.String())
		return ctx, &driver.LoopTerminated{Reason: reason, Message: "pre-call check tripped", State: s}
	}

	ctx, turnSpan := g.tracer.Start(ctx, "loop.turn")
	rc.mu.Lock()
	rc.turnSpan = turnSpan
	rc.turnStarted = time.Now()
	rc.mu.Unlock()

	g.mc.OnTurnStarted(id, s.CurrentTurn)
	return ctx, nil
}

// AfterModelCall is the third advisor hook, called once per model round
// after the driver receives a response. It extracts usage/tool-call/text
// metadata, updates LoopState, runs post-call checks in order (stuck
// detection, then judge), and notifies listeners of a normal turn
// completion when nothing trips.
func (g *Governor) AfterModelCall(ctx context.Context, resp driver.Response) (context.Context, error) {
	id, ok := RunIDFromContext(ctx)
	if !ok {
		return ctx, nil
	}
	rc, ok := g.run(id)
	if !ok {
		return ctx, nil
	}

	tokens := int64(0)
	hadToolCalls := false
	text := ""
	if resp != nil {
		tokens = resp.TotalTokens()
		hadToolCalls = resp.HasToolCalls()
		text = resp.Text()
	}
	cost := float64(tokens) * g.cfg.EffectiveCostPerToken()
	sig := state.Signature(text)

	if turnSpan, started := rc.takeTurnSpan(); turnSpan != nil {
		g.metrics.RecordTimer("loop.turn.duration", time.Since(started), "run_id", id.String())
		turnSpan.End()
	}
	g.metrics.RecordGauge("loop.turn.tokens", float64(tokens), "run_id", id.String())

	s := rc.updateState(func(prev state.LoopState) state.LoopState {
		return prev.CompleteTurn(tokens, cost, hadToolCalls, sig)
	})
	turnIndex := s.CurrentTurn - 1

	if reason, tripped := policy.PostCallStuckCheck(s, g.cfg); tripped {
		g.notifyTurnCompleted(id, turnIndex, reason)
		g.logger.Info(ctx, "governor: post-call termination", "run_id", id.String(), "reason", reason.String())
		return ctx, &driver.LoopTerminated{Reason: reason, Message: "stuck detection tripped", State: s, Response: resp}
	}

	if policy.JudgeDue(s, g.cfg) {
		verdict, err := g.cfg.Judge.Evaluate(ctx, judgeInput(id, text, g.cfg, s))
		if err != nil {
			return ctx, err
		}
		rc.mu.Lock()
		rc.lastVerdict = &verdict
		rc.mu.Unlock()
		if verdict.Pass {
			g.notifyTurnCompleted(id, turnIndex, policy.ReasonScoreThresholdMet)
			return ctx, driver.NewJuryPassed(verdict, s, resp)
		}
	}

	g.notifyTurnCompleted(id, turnIndex, policy.ReasonUnspecified)
	return ctx, nil
}

func (g *Governor) notifyTurnCompleted(id runid.RunID, turnIndex int, reason policy.TerminationReason) {
	if reason == policy.ReasonUnspecified {
		g.mc.OnTurnCompleted(id, turnIndex, nil)
		return
	}
	r := reason
	g.mc.OnTurnCompleted(id, turnIndex, &r)
}
