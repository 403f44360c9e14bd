package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/loopkit/policy"
)

const searchSchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"limit": {"type": "integer", "minimum": 1}
	},
	"required": ["query"]
}`

func TestValidatorAcceptsConformingArguments(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))

	err := v.Validate("search", map[string]any{"query": "hello", "limit": float64(5)})
	assert.NoError(t, err)
}

func TestValidatorRejectsMissingRequiredField(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))

	err := v.Validate("search", map[string]any{"limit": float64(5)})
	assert.Error(t, err)
}

func TestValidatorRejectsWrongType(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))

	err := v.Validate("search", map[string]any{"query": 123})
	assert.Error(t, err)
}

func TestValidatorUnknownToolReturnsErrUnknownTool(t *testing.T) {
	v := NewValidator()
	err := v.Validate("missing", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

type recordingToolListener struct {
	started  []string
	errored  []string
	lastErr  error
}

func (r *recordingToolListener) OnToolCallStart(toolName string, _ map[string]any) {
	r.started = append(r.started, toolName)
}
func (r *recordingToolListener) OnToolCallComplete(string, any) {}
func (r *recordingToolListener) OnToolCallError(toolName string, err error) {
	r.errored = append(r.errored, toolName)
	r.lastErr = err
}

func TestValidatingToolListenerBlocksInvalidCalls(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))
	delegate := &recordingToolListener{}
	l := &ValidatingToolListener{Validator: v, Delegate: delegate}

	l.OnToolCallStart("search", map[string]any{"limit": float64(1)})
	assert.Empty(t, delegate.started)
	require.Len(t, delegate.errored, 1)
	assert.Equal(t, "search", delegate.errored[0])

	l.OnToolCallStart("search", map[string]any{"query": "ok"})
	assert.Equal(t, []string{"search"}, delegate.started)
}

func TestNewAllowedToolListenerRejectsNameOutsideAllowList(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))
	cfg, err := policy.NewConfigBuilder().AllowedTool("search").Build()
	require.NoError(t, err)
	delegate := &recordingToolListener{}

	l := NewAllowedToolListener(v, cfg, delegate)

	l.OnToolCallStart("delete_everything", map[string]any{"query": "ok"})
	assert.Empty(t, delegate.started)
	require.Len(t, delegate.errored, 1)
	assert.ErrorIs(t, delegate.lastErr, ErrToolNotAllowed)

	l.OnToolCallStart("search", map[string]any{"query": "ok"})
	assert.Equal(t, []string{"search"}, delegate.started)
}

func TestNewAllowedToolListenerWithEmptyAllowListSkipsNameGate(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("search", []byte(searchSchema)))
	cfg, err := policy.NewConfigBuilder().Build() // no AllowedTool() calls
	require.NoError(t, err)
	delegate := &recordingToolListener{}

	l := NewAllowedToolListener(v, cfg, delegate)

	l.OnToolCallStart("search", map[string]any{"query": "ok"})
	assert.Equal(t, []string{"search"}, delegate.started)
}
