package governor

import (
	"context"

	"github.com/loopkit/loopkit/runid"
)

type runIDKey struct{}
type handleKey struct{}

// invocationHandle is written once by BeforeInvocation and read back by
// Invoke after the driver returns, so the final RunID is recoverable even if
// the driver's own context threading doesn't make it back to the call site
// unchanged (Go has no thread-local to fall back on; this is the
// per-run-state resolution documented in SPEC_FULL.md).
type invocationHandle struct {
	id runid.RunID
}

// withRunID returns a context carrying id, retrievable via RunIDFromContext.
func withRunID(ctx context.Context, id runid.RunID) context.Context {
	if h, ok := ctx.Value(handleKey{}).(*invocationHandle); ok {
		h.id = id
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// withHandle installs a fresh invocationHandle that BeforeInvocation will
// populate.
func withHandle(ctx context.Context, h *invocationHandle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// RunIDFromContext extracts the RunID a Governor placed on ctx during
// BeforeInvocation, for drivers and tool adapters that need to correlate
// their own logging with the active invocation.
func RunIDFromContext(ctx context.Context) (runid.RunID, bool) {
	id, ok := ctx.Value(runIDKey{}).(runid.RunID)
	return id, ok
}
