// Package jsonschema validates tool-call arguments against declared JSON
// Schemas before a call reaches the model driver's tool executor.
package jsonschema

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/loopkit/loopkit/events"
	"github.com/loopkit/loopkit/policy"
)

// ErrUnknownTool is returned by Validate when no schema was registered for
// the given tool name.
var ErrUnknownTool = errors.New("jsonschema: no schema registered for tool")

// ErrToolNotAllowed is returned when a tool name falls outside a
// non-empty allow-list.
var ErrToolNotAllowed = errors.New("jsonschema: tool not in allow-list")

// Validator compiles and caches one JSON Schema per tool name.
type Validator struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles schemaJSON and associates it with toolName, overwriting
// any prior schema for that name.
func (v *Validator) Register(toolName string, schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	url := "mem://" + toolName
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("jsonschema: decode schema for %s: %w", toolName, err)
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("jsonschema: add resource for %s: %w", toolName, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("jsonschema: compile schema for %s: %w", toolName, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[toolName] = schema
	return nil
}

// Validate checks arguments against the schema registered for toolName.
func (v *Validator) Validate(toolName string, arguments map[string]any) error {
	v.mu.RLock()
	schema, ok := v.schemas[toolName]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	if err := schema.Validate(toNormalizedInstance(arguments)); err != nil {
		return fmt.Errorf("jsonschema: %s: %w", toolName, err)
	}
	return nil
}

// toNormalizedInstance copies arguments into a fresh map[string]any, the
// decoded-JSON-object shape the validator accepts.
func toNormalizedInstance(arguments map[string]any) any {
	out := make(map[string]any, len(arguments))
	for k, val := range arguments {
		out[k] = val
	}
	return out
}

// ValidatingToolListener wraps an events.ToolListener and rejects tool calls
// that fall outside AllowedTools (when non-empty) or whose arguments fail
// schema validation, surfacing the failure to OnToolCallError on the
// delegate instead of OnToolCallStart.
type ValidatingToolListener struct {
	events.NoopToolListener
	Validator *Validator
	// AllowedTools gates OnToolCallStart the same way policy.Config.AllowedTools
	// gates the Governor: nil or empty means no allow-list restriction.
	AllowedTools map[string]struct{}
	Delegate     events.ToolListener
}

var _ events.ToolListener = (*ValidatingToolListener)(nil)

// NewAllowedToolListener builds a ValidatingToolListener that gates on both
// cfg.AllowedTools and v, so a Governor's configured allow-list is actually
// enforced on tool calls the driver routes through Governor.ToolListener.
func NewAllowedToolListener(v *Validator, cfg policy.Config, delegate events.ToolListener) *ValidatingToolListener {
	return &ValidatingToolListener{Validator: v, AllowedTools: cfg.AllowedTools, Delegate: delegate}
}

func (l *ValidatingToolListener) OnToolCallStart(toolName string, arguments map[string]any) {
	if len(l.AllowedTools) > 0 {
		if _, ok := l.AllowedTools[toolName]; !ok {
			if l.Delegate != nil {
				l.Delegate.OnToolCallError(toolName, fmt.Errorf("%w: %s", ErrToolNotAllowed, toolName))
			}
			return
		}
	}
	if err := l.Validator.Validate(toolName, arguments); err != nil {
		if l.Delegate != nil {
			l.Delegate.OnToolCallError(toolName, err)
		}
		return
	}
	if l.Delegate != nil {
		l.Delegate.OnToolCallStart(toolName, arguments)
	}
}

func (l *ValidatingToolListener) OnToolCallComplete(toolName string, result any) {
	if l.Delegate != nil {
		l.Delegate.OnToolCallComplete(toolName, result)
	}
}

func (l *ValidatingToolListener) OnToolCallError(toolName string, err error) {
	if l.Delegate != nil {
		l.Delegate.OnToolCallError(toolName, err)
	}
}
