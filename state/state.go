// Package state implements the immutable per-run progress record for a loop
// invocation. Every update operation returns a new LoopState; the receiver is
// never mutated, so concurrent runs sharing no memory are trivially safe.
package state

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/loopkit/loopkit/runid"
)

// TurnSnapshot captures the outcome of one completed turn.
type TurnSnapshot struct {
	TurnNumber      int
	TokensThisTurn  int64
	CostThisTurn    float64
	HadToolCalls    bool
	OutputSignature uint64
}

// LoopState is the immutable record of one run's progress.
type LoopState struct {
	RunID                      runid.RunID
	CurrentTurn                int
	StartedAt                  time.Time
	TotalTokensUsed            int64
	EstimatedCost              float64
	AbortSignalled             bool
	TurnHistory                []TurnSnapshot
	ConsecutiveSameOutputCount int
}

// emptySignature is the sentinel signature for an empty response text.
const emptySignature uint64 = 0xcbf29ce484222325 // fnv-1a offset basis

// Signature returns a stable hash of text, suitable for stuck-detection
// comparisons. The empty string hashes to a fixed sentinel.
func Signature(text string) uint64 {
	if text == "" {
		return emptySignature
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}

// Initial returns the zero-progress state for a freshly started run.
func Initial(id runid.RunID) LoopState {
	return LoopState{
		RunID:     id,
		StartedAt: time.Now(),
	}
}

// CompleteTurn appends a TurnSnapshot for the just-finished turn and returns
// a new LoopState reflecting it. tokens and cost must be non-negative.
func (s LoopState) CompleteTurn(tokens int64, cost float64, hadToolCalls bool, outputSignature uint64) LoopState {
	if tokens < 0 {
		panic(fmt.Sprintf("state: negative tokens %d", tokens))
	}
	if cost < 0 {
		panic(fmt.Sprintf("state: negative cost %f", cost))
	}

	turnNumber := s.CurrentTurn + 1
	consecutive := 1
	if len(s.TurnHistory) > 0 {
		prev := s.TurnHistory[len(s.TurnHistory)-1]
		if prev.OutputSignature == outputSignature {
			consecutive = s.ConsecutiveSameOutputCount + 1
		}
	}

	history := make([]TurnSnapshot, len(s.TurnHistory), len(s.TurnHistory)+1)
	copy(history, s.TurnHistory)
	history = append(history, TurnSnapshot{
		TurnNumber:      turnNumber,
		TokensThisTurn:  tokens,
		CostThisTurn:    cost,
		HadToolCalls:    hadToolCalls,
		OutputSignature: outputSignature,
	})

	return LoopState{
		RunID:                      s.RunID,
		CurrentTurn:                turnNumber,
		StartedAt:                  s.StartedAt,
		TotalTokensUsed:            s.TotalTokensUsed + tokens,
		EstimatedCost:              s.EstimatedCost + cost,
		AbortSignalled:             s.AbortSignalled,
		TurnHistory:                history,
		ConsecutiveSameOutputCount: consecutive,
	}
}

// Abort returns a new LoopState with AbortSignalled set to true. Idempotent:
// calling it again on an already-aborted state yields an equal state.
func (s LoopState) Abort() LoopState {
	s.AbortSignalled = true
	return s
}

// MaxTurnsReached reports whether the run has reached or exceeded limit.
func (s LoopState) MaxTurnsReached(limit int) bool {
	return s.CurrentTurn >= limit
}

// TimeoutExceeded reports whether d has elapsed since the run started.
func (s LoopState) TimeoutExceeded(d time.Duration) bool {
	return time.Since(s.StartedAt) >= d
}

// CostExceeded reports whether accumulated cost strictly exceeds limit.
func (s LoopState) CostExceeded(limit float64) bool {
	return s.EstimatedCost > limit
}

// IsStuck reports whether the model has produced threshold or more
// consecutive turns with an identical output signature. threshold=0 disables
// stuck detection.
func (s LoopState) IsStuck(threshold int) bool {
	return threshold > 0 && s.ConsecutiveSameOutputCount >= threshold
}
