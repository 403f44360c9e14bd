package governor

import (
	"time"

	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/judge"
	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/telemetry"
)

// Builder assembles a Governor. Obtain one with NewBuilder; configuration is
// validated and frozen at Build.
type Builder struct {
	cfgBuilder *policy.ConfigBuilder
	listeners  []events.Listener
	tools      []events.ToolListener
	logger     telemetry.Logger
	metrics    telemetry.Metrics
	tracer     telemetry.Tracer
	onListenerError events.ErrorHandler
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{cfgBuilder: policy.NewConfigBuilder()}
}

// MaxTurns sets the turn budget. Default 20.
func (b *Builder) MaxTurns(n int) *Builder { b.cfgBuilder.MaxTurns(n); return b }

// Timeout sets the wall-clock budget. Default 10 minutes.
func (b *Builder) Timeout(d time.Duration) *Builder { b.cfgBuilder.Timeout(d); return b }

// CostLimit sets the USD cost budget. Default $5; 0 disables. Default 5.
func (b *Builder) CostLimit(limit float64) *Builder { b.cfgBuilder.CostLimit(limit); return b }

// StuckThreshold sets the consecutive-identical-output threshold. Default 3;
// 0 disables.
func (b *Builder) StuckThreshold(n int) *Builder { b.cfgBuilder.StuckThreshold(n); return b }

// Judge registers a judge and the turn interval at which it runs. interval=0
// disables judge evaluation.
func (b *Builder) Judge(j judge.Judge, interval int) *Builder {
	b.cfgBuilder.JudgeFn(j, interval)
	return b
}

// WorkingDirectory sets the path surfaced to judges and tool adapters.
func (b *Builder) WorkingDirectory(path string) *Builder {
	b.cfgBuilder.WorkingDirectory(path)
	return b
}

// AllowedTool registers one tool name in the allow-set.
func (b *Builder) AllowedTool(name string) *Builder {
	b.cfgBuilder.AllowedTool(name)
	return b
}

// FinishTool sets the finish tool name. Default "complete_task".
func (b *Builder) FinishTool(name string) *Builder {
	b.cfgBuilder.FinishTool(name)
	return b
}

// ScoreThreshold records a judge score threshold, in [0,1], in the
// configuration. The Governor ends a run on a judge verdict's Pass flag and
// does not compare the verdict's score against this threshold.
func (b *Builder) ScoreThreshold(threshold float64) *Builder {
	b.cfgBuilder.ScoreThreshold(threshold)
	return b
}

// CostPerToken overrides the blended per-token cost constant.
func (b *Builder) CostPerToken(perToken float64) *Builder {
	b.cfgBuilder.CostPerToken(perToken)
	return b
}

// Config applies a previously built preset configuration wholesale.
func (b *Builder) Config(cfg policy.Config) *Builder {
	b.cfgBuilder = cfg.ToBuilder()
	return b
}

// Listener registers a lifecycle listener, invoked in registration order.
func (b *Builder) Listener(l events.Listener) *Builder {
	b.listeners = append(b.listeners, l)
	return b
}

// ToolListener registers a tool-call observation listener.
func (b *Builder) ToolListener(l events.ToolListener) *Builder {
	b.tools = append(b.tools, l)
	return b
}

// OnListenerError installs a hook invoked whenever a listener panics or
// errors; by default such failures are silently dropped.
func (b *Builder) OnListenerError(fn events.ErrorHandler) *Builder {
	b.onListenerError = fn
	return b
}

// Logger installs the Governor's own structured logger. Defaults to a no-op.
func (b *Builder) Logger(l telemetry.Logger) *Builder { b.logger = l; return b }

// Metrics installs the Governor's own metrics recorder. Defaults to a no-op.
func (b *Builder) Metrics(m telemetry.Metrics) *Builder { b.metrics = m; return b }

// Tracer installs the Governor's own tracer. Defaults to a no-op.
func (b *Builder) Tracer(t telemetry.Tracer) *Builder { b.tracer = t; return b }

// Build validates the configuration and returns an immutable Governor.
func (b *Builder) Build() (*Governor, error) {
	cfg, err := b.cfgBuilder.Build()
	if err != nil {
		return nil, err
	}

	mc := events.NewMulticaster(b.onListenerError)
	for _, l := range b.listeners {
		mc.Register(l)
	}
	for _, t := range b.tools {
		mc.RegisterTool(t)
	}

	logger := b.logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	return &Governor{
		cfg:     cfg,
		mc:      mc,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}
