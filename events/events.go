// Package events defines the Governor's listener contract: lifecycle hooks
// for a run plus a separate tool-call observation hook. All delivery is
// best-effort — a panicking or erroring listener is caught, logged, and
// dropped, and never affects the loop it observes or the other listeners in
// the registration order.
package events

import (
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

// Listener receives lifecycle notifications for a run. Every method has an
// implicit no-op default: embed NoopListener to implement only the methods
// you care about.
type Listener interface {
	OnLoopStarted(runID runid.RunID, userMessage string)
	OnTurnStarted(runID runid.RunID, turnIndex int)
	OnTurnCompleted(runID runid.RunID, turnIndex int, reason *policy.TerminationReason)
	OnLoopCompleted(runID runid.RunID, final state.LoopState, reason policy.TerminationReason)
	OnLoopFailed(runID runid.RunID, final state.LoopState, err error)
}

// ToolListener receives tool-call observation notifications, independent of
// the lifecycle Listener interface.
type ToolListener interface {
	OnToolCallStart(toolName string, arguments map[string]any)
	OnToolCallComplete(toolName string, result any)
	OnToolCallError(toolName string, err error)
}

// NoopListener implements Listener with all-no-op methods. Embed it in a
// partial listener to avoid implementing methods you don't need.
type NoopListener struct{}

func (NoopListener) OnLoopStarted(runid.RunID, string)                                 {}
func (NoopListener) OnTurnStarted(runid.RunID, int)                                     {}
func (NoopListener) OnTurnCompleted(runid.RunID, int, *policy.TerminationReason)        {}
func (NoopListener) OnLoopCompleted(runid.RunID, state.LoopState, policy.TerminationReason) {}
func (NoopListener) OnLoopFailed(runid.RunID, state.LoopState, error)                   {}

// NoopToolListener implements ToolListener with all-no-op methods.
type NoopToolListener struct{}

func (NoopToolListener) OnToolCallStart(string, map[string]any) {}
func (NoopToolListener) OnToolCallComplete(string, any)         {}
func (NoopToolListener) OnToolCallError(string, error)          {}

var (
	_ Listener     = NoopListener{}
	_ ToolListener = NoopToolListener{}
)
