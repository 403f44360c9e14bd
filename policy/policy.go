package policy

import "github.com/loopkit/loopkit/state"

// PreCallCheck evaluates the ordered pre-call termination conditions against
// s and cfg: external abort, timeout, cost limit, max turns. It returns the
// first tripped reason and true, or the zero reason and false if none trip.
func PreCallCheck(s state.LoopState, cfg Config) (TerminationReason, bool) {
	if s.AbortSignalled {
		return ReasonExternalSignal, true
	}
	if s.TimeoutExceeded(cfg.Timeout) {
		return ReasonTimeout, true
	}
	if cfg.CostLimit > 0 && s.CostExceeded(cfg.CostLimit) {
		return ReasonCostLimitExceeded, true
	}
	if s.MaxTurnsReached(cfg.MaxTurns) {
		return ReasonMaxTurnsReached, true
	}
	return ReasonUnspecified, false
}

// PostCallStuckCheck evaluates stuck detection, the only post-call check that
// does not require invoking an external judge.
func PostCallStuckCheck(s state.LoopState, cfg Config) (TerminationReason, bool) {
	if s.IsStuck(cfg.StuckThreshold) {
		return ReasonStuckDetected, true
	}
	return ReasonUnspecified, false
}

// JudgeDue reports whether the judge should be consulted for the state's
// current turn, per `currentTurn % interval == 0` with interval > 0.
func JudgeDue(s state.LoopState, cfg Config) bool {
	if cfg.Judge == nil || cfg.JudgeEvaluationInterval <= 0 {
		return false
	}
	return s.CurrentTurn%cfg.JudgeEvaluationInterval == 0
}
