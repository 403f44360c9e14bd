// Package driver declares the contract the Governor expects from the
// external recursive tool-call driver it wraps: a Request/Response shape
// carrying usage and tool-call metadata, and the typed termination signal
// the advisor hooks return to unwind the driver's recursion.
package driver

import (
	"context"

	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/state"
)

// Request is one round-trip request the driver is about to send to the
// model. UserMessage is the most recent user-typed message, used by the
// Governor's before-invocation hook to notify listeners.
type Request struct {
	UserMessage string
	Messages    []Message
	Model       string
}

// Message is one entry in a conversation transcript.
type Message struct {
	Role    string
	Content string
}

// Response is the outcome of one model round. Implementations typically wrap
// a provider SDK's response type; see adapters/model/* for concrete
// implementations over Anthropic, OpenAI, and Bedrock.
type Response interface {
	// TotalTokens returns total tokens consumed by this round, or 0 when
	// usage metadata is unavailable.
	TotalTokens() int64
	// HasToolCalls reports whether the model requested any tool calls.
	HasToolCalls() bool
	// Text returns the response's textual output, or "" when absent.
	Text() string
}

// ModelClient is the minimal seam adapters implement to let the Governor's
// afterModelCall hook extract usage, tool-call presence, and text uniformly
// across providers.
type ModelClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Advisor is the set of ordered hooks a Driver must call at the documented
// points: once at invocation start, then before and after every internal
// model round. Either BeforeModelCall or AfterModelCall may return a
// *LoopTerminated (or, from AfterModelCall, a *JuryPassed); the Driver must
// propagate it unchanged rather than retrying or swallowing it.
type Advisor interface {
	BeforeInvocation(ctx context.Context, req Request) (context.Context, error)
	BeforeModelCall(ctx context.Context) (context.Context, error)
	AfterModelCall(ctx context.Context, resp Response) (context.Context, error)
	// ToolListener returns the observer a Driver must notify of every tool
	// call it executes, so registered listeners (audit sinks, argument
	// validators) see tool activity the same way they see loop lifecycle
	// events.
	ToolListener() events.ToolListener
}

// Driver is the external recursive tool-call driver the Governor wraps. It
// owns the model transport and tool-call recursion; the Governor only
// observes it through the Advisor hooks. Driver.Run must call
// advisor.BeforeInvocation exactly once, then alternate BeforeModelCall and
// AfterModelCall around each model round until it completes naturally
// (returning the final Response with HasToolCalls()==false) or a hook
// returns an error that must be propagated unchanged.
type Driver interface {
	Run(ctx context.Context, advisor Advisor, req Request) (Response, error)
}

// LoopTerminated is the internal signalling mechanism used to unwind the
// driver's recursion once a termination condition trips. It is a typed Go
// error value, not a panic: the driver contract requires advisor hooks
// return it unchanged and the caller propagate it unmodified up to the
// invocation's call site, where the Governor recovers it and converts it
// into a LoopResult. It must never be surfaced to an application as a
// generic error.
type LoopTerminated struct {
	Reason   policy.TerminationReason
	Message  string
	State    state.LoopState
	Response Response
}

func (e *LoopTerminated) Error() string {
	return "loop terminated: " + e.Reason.String() + ": " + e.Message
}

// JuryPassed is a LoopTerminated specialization reported when a configured
// judge returns a passing verdict; its Reason is always
// policy.ReasonScoreThresholdMet.
type JuryPassed struct {
	LoopTerminated
	Verdict judge.Verdict
}

// NewJuryPassed constructs a JuryPassed signal from a passing verdict.
func NewJuryPassed(verdict judge.Verdict, s state.LoopState, resp Response) *JuryPassed {
	return &JuryPassed{
		LoopTerminated: LoopTerminated{
			Reason:   policy.ReasonScoreThresholdMet,
			Message:  "judge verdict passed",
			State:    s,
			Response: resp,
		},
		Verdict: verdict,
	}
}
