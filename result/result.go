// Package result defines the common LoopResult contract and the
// pattern-specific TurnLimitedResult extension produced at the end of a run.
package result

import (
	"time"

	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

// LoopResult is the common contract every pattern-specific result satisfies.
type LoopResult interface {
	RunID() runid.RunID
	Output() string
	Status() policy.Status
	Reason() policy.TerminationReason
	TurnsCompleted() int
	TotalDuration() time.Duration
	TotalTokens() int64
	EstimatedCost() float64
	Success() bool
}

// base implements the common accessors shared by every result variant.
type base struct {
	runID          runid.RunID
	output         string
	status         policy.Status
	reason         policy.TerminationReason
	turnsCompleted int
	totalDuration  time.Duration
	totalTokens    int64
	estimatedCost  float64
}

func (b base) RunID() runid.RunID                      { return b.runID }
func (b base) Output() string                          { return b.output }
func (b base) Status() policy.Status                   { return b.status }
func (b base) Reason() policy.TerminationReason        { return b.reason }
func (b base) TurnsCompleted() int                     { return b.turnsCompleted }
func (b base) TotalDuration() time.Duration             { return b.totalDuration }
func (b base) TotalTokens() int64                       { return b.totalTokens }
func (b base) EstimatedCost() float64                   { return b.estimatedCost }
func (b base) Success() bool                            { return b.status == policy.StatusCompleted }

// TurnLimitedResult is the result of a single turn-bounded loop invocation:
// LoopResult plus the final LoopState and, when a judge ran, its last
// verdict.
type TurnLimitedResult struct {
	base
	FinalState  state.LoopState
	LastVerdict *judge.Verdict
}

// NewTurnLimitedResult builds a TurnLimitedResult from a final state and
// termination outcome.
func NewTurnLimitedResult(
	s state.LoopState,
	output string,
	reason policy.TerminationReason,
	failed bool,
	started time.Time,
	lastVerdict *judge.Verdict,
) TurnLimitedResult {
	status := policy.StatusFor(reason)
	if failed {
		status = policy.StatusFailed
	}
	return TurnLimitedResult{
		base: base{
			runID:          s.RunID,
			output:         output,
			status:         status,
			reason:         reason,
			turnsCompleted: s.CurrentTurn,
			totalDuration:  time.Since(started),
			totalTokens:    s.TotalTokensUsed,
			estimatedCost:  s.EstimatedCost,
		},
		FinalState:  s,
		LastVerdict: lastVerdict,
	}
}

// WasStuck reports whether this result terminated due to stuck detection.
func (r TurnLimitedResult) WasStuck() bool {
	return r.Reason() == policy.ReasonStuckDetected
}

var _ LoopResult = TurnLimitedResult{}
