package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/loopkit/loopkit/judge"
)

// Defaults mirror the builder defaults from the external interfaces surface.
const (
	DefaultMaxTurns        = 20
	DefaultTimeout         = 10 * time.Minute
	DefaultCostLimit       = 5.0
	DefaultStuckThreshold  = 3
	DefaultFinishToolName  = "complete_task"
	defaultCostPerToken    = 6e-6
	DefaultJudgeInterval   = 0
	DefaultScoreThreshold  = 0.0
)

// Config is the immutable, validated configuration for one Governor. Build it
// with NewConfigBuilder; the zero value is not valid.
type Config struct {
	MaxTurns              int
	Timeout               time.Duration
	CostLimit             float64
	StuckThreshold        int
	JudgeEvaluationInterval int
	Judge                 judge.Judge
	WorkingDirectory      string
	AllowedTools          map[string]struct{}
	FinishToolName        string
	ScoreThreshold        float64
	// CostPerToken overrides the default blended per-token cost estimate.
	// Zero means "use the default".
	CostPerToken float64
}

// ErrInvalidConfig wraps all configuration validation failures.
var ErrInvalidConfig = errors.New("policy: invalid configuration")

// ConfigBuilder incrementally assembles a Config, validating at Build.
type ConfigBuilder struct {
	cfg Config
	set struct {
		maxTurns       bool
		timeout        bool
		costLimit      bool
		stuckThreshold bool
		finishTool     bool
	}
}

// NewConfigBuilder returns a builder pre-seeded with nothing; defaults are
// applied lazily at Build for any field the caller never set.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{AllowedTools: map[string]struct{}{}}}
}

// MaxTurns sets the turn budget. Must be > 0.
func (b *ConfigBuilder) MaxTurns(n int) *ConfigBuilder {
	b.cfg.MaxTurns = n
	b.set.maxTurns = true
	return b
}

// Timeout sets the wall-clock budget. Must be positive.
func (b *ConfigBuilder) Timeout(d time.Duration) *ConfigBuilder {
	b.cfg.Timeout = d
	b.set.timeout = true
	return b
}

// CostLimit sets the USD cost budget. Zero disables the check.
func (b *ConfigBuilder) CostLimit(limit float64) *ConfigBuilder {
	b.cfg.CostLimit = limit
	b.set.costLimit = true
	return b
}

// StuckThreshold sets the consecutive-identical-output threshold. Zero
// disables stuck detection.
func (b *ConfigBuilder) StuckThreshold(n int) *ConfigBuilder {
	b.cfg.StuckThreshold = n
	b.set.stuckThreshold = true
	return b
}

// JudgeFn registers a judge and the turn interval at which it is consulted.
// interval=0 disables judge evaluation even if j is non-nil.
func (b *ConfigBuilder) JudgeFn(j judge.Judge, interval int) *ConfigBuilder {
	b.cfg.Judge = j
	b.cfg.JudgeEvaluationInterval = interval
	return b
}

// WorkingDirectory sets the path surfaced to judges and tool adapters.
func (b *ConfigBuilder) WorkingDirectory(path string) *ConfigBuilder {
	b.cfg.WorkingDirectory = path
	return b
}

// AllowedTool registers one tool name in the allow-set.
func (b *ConfigBuilder) AllowedTool(name string) *ConfigBuilder {
	b.cfg.AllowedTools[name] = struct{}{}
	return b
}

// FinishTool sets the finish tool name. Non-blank.
func (b *ConfigBuilder) FinishTool(name string) *ConfigBuilder {
	b.cfg.FinishToolName = name
	b.set.finishTool = true
	return b
}

// ScoreThreshold records a judge score threshold, in [0,1]. Nothing in the
// policy checks compares a verdict's score against it.
func (b *ConfigBuilder) ScoreThreshold(threshold float64) *ConfigBuilder {
	b.cfg.ScoreThreshold = threshold
	return b
}

// CostPerToken overrides the blended per-token cost constant.
func (b *ConfigBuilder) CostPerToken(perToken float64) *ConfigBuilder {
	b.cfg.CostPerToken = perToken
	return b
}

// Build validates all ranges, applies defaults to anything left unset, and
// returns an immutable Config with defensively copied collections.
func (b *ConfigBuilder) Build() (Config, error) {
	cfg := b.cfg

	if !b.set.maxTurns {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if !b.set.timeout {
		cfg.Timeout = DefaultTimeout
	}
	if !b.set.costLimit {
		cfg.CostLimit = DefaultCostLimit
	}
	if !b.set.stuckThreshold {
		cfg.StuckThreshold = DefaultStuckThreshold
	}
	if !b.set.finishTool {
		cfg.FinishToolName = DefaultFinishToolName
	}
	if cfg.CostPerToken == 0 {
		cfg.CostPerToken = defaultCostPerToken
	}

	if cfg.MaxTurns <= 0 {
		return Config{}, fmt.Errorf("%w: maxTurns must be > 0, got %d", ErrInvalidConfig, cfg.MaxTurns)
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, cfg.Timeout)
	}
	if cfg.CostLimit < 0 {
		return Config{}, fmt.Errorf("%w: costLimit must be >= 0, got %f", ErrInvalidConfig, cfg.CostLimit)
	}
	if cfg.StuckThreshold < 0 {
		return Config{}, fmt.Errorf("%w: stuckThreshold must be >= 0, got %d", ErrInvalidConfig, cfg.StuckThreshold)
	}
	if cfg.JudgeEvaluationInterval < 0 {
		return Config{}, fmt.Errorf("%w: judgeEvaluationInterval must be >= 0, got %d", ErrInvalidConfig, cfg.JudgeEvaluationInterval)
	}
	if cfg.FinishToolName == "" {
		return Config{}, fmt.Errorf("%w: finish tool name must be non-blank", ErrInvalidConfig)
	}
	if cfg.ScoreThreshold < 0 || cfg.ScoreThreshold > 1 {
		return Config{}, fmt.Errorf("%w: scoreThreshold must be within [0,1], got %f", ErrInvalidConfig, cfg.ScoreThreshold)
	}

	tools := make(map[string]struct{}, len(cfg.AllowedTools))
	for name := range cfg.AllowedTools {
		tools[name] = struct{}{}
	}
	cfg.AllowedTools = tools

	return cfg, nil
}

// ToBuilder returns a new ConfigBuilder pre-seeded with cfg's values, such
// that ToBuilder().Build() yields a config equal to the original.
func (c Config) ToBuilder() *ConfigBuilder {
	b := NewConfigBuilder().
		MaxTurns(c.MaxTurns).
		Timeout(c.Timeout).
		CostLimit(c.CostLimit).
		StuckThreshold(c.StuckThreshold).
		FinishTool(c.FinishToolName).
		ScoreThreshold(c.ScoreThreshold).
		CostPerToken(c.CostPerToken).
		WorkingDirectory(c.WorkingDirectory)
	if c.Judge != nil || c.JudgeEvaluationInterval != 0 {
		b.JudgeFn(c.Judge, c.JudgeEvaluationInterval)
	}
	for name := range c.AllowedTools {
		b.AllowedTool(name)
	}
	return b
}

// EffectiveCostPerToken returns the configured per-token cost, falling back
// to the built-in blended estimate.
func (c Config) EffectiveCostPerToken() float64 {
	if c.CostPerToken == 0 {
		return defaultCostPerToken
	}
	return c.CostPerToken
}
