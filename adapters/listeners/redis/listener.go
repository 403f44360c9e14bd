// Package redis publishes loop lifecycle events onto a Redis stream, for
// fan-out to external subscribers (dashboards, audit pipelines).
package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

const defaultStream = "loopkit:events"

// Options configures the listener.
type Options struct {
	Client  *redis.Client
	Stream  string
	Timeout time.Duration
}

// Listener implements events.Listener by publishing one XADD entry per
// lifecycle event.
type Listener struct {
	client  *redis.Client
	stream  string
	timeout time.Duration
}

// New returns a Listener backed by the provided Redis client.
func New(opts Options) (*Listener, error) {
	if opts.Client == nil {
		return nil, errors.New("redis: client is required")
	}
	stream := opts.Stream
	if stream == "" {
		stream = defaultStream
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Listener{client: opts.Client, stream: stream, timeout: timeout}, nil
}

var _ events.Listener = (*Listener)(nil)

func (l *Listener) publish(kind string, fields map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	values := map[string]any{"kind": kind}
	for k, v := range fields {
		values[k] = v
	}
	// Best-effort: the publish error is discarded here and never reaches the
	// loop being observed.
	_ = l.client.XAdd(ctx, &redis.XAddArgs{Stream: l.stream, Values: values}).Err()
}

func (l *Listener) OnLoopStarted(id runid.RunID, userMessage string) {
	l.publish("loop_started", map[string]any{"run_id": id.String(), "user_message": userMessage})
}

func (l *Listener) OnTurnStarted(id runid.RunID, turnIndex int) {
	l.publish("turn_started", map[string]any{"run_id": id.String(), "turn_index": strconv.Itoa(turnIndex)})
}

func (l *Listener) OnTurnCompleted(id runid.RunID, turnIndex int, reason *policy.TerminationReason) {
	fields := map[string]any{"run_id": id.String(), "turn_index": strconv.Itoa(turnIndex)}
	if reason != nil {
		fields["reason"] = reason.String()
	}
	l.publish("turn_completed", fields)
}

func (l *Listener) OnLoopCompleted(id runid.RunID, final state.LoopState, reason policy.TerminationReason) {
	l.publish("loop_completed", map[string]any{"run_id": id.String(), "reason": reason.String()})
}

func (l *Listener) OnLoopFailed(id runid.RunID, final state.LoopState, err error) {
	fields := map[string]any{"run_id": id.String()}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.publish("loop_failed", fields)
}
