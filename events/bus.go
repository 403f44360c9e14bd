package events

import (
	"fmt"
	"sync"

	"github.com/loopkit/loopkit/policy"
	"github.com/loopkit/loopkit/runid"
	"github.com/loopkit/loopkit/state"
)

// ErrorHandler receives a listener's panic or error, recovered so it never
// escapes the Multicaster. Typically wired to telemetry.Logger.Warn.
type ErrorHandler func(err error)

// Multicaster fans lifecycle and tool-call notifications out to registered
// listeners in registration order. Unlike the fail-fast bus this is adapted
// from, a listener that panics or simply fails to do anything useful never
// stops delivery to the remaining listeners and never affects the loop being
// observed — this is the "best-effort" delivery rule in the Event Contract.
type Multicaster struct {
	mu        sync.RWMutex
	listeners []Listener
	tools     []ToolListener
	onError   ErrorHandler
}

// NewMulticaster returns a ready-to-use Multicaster. onError may be nil, in
// which case listener failures are silently dropped.
func NewMulticaster(onError ErrorHandler) *Multicaster {
	if onError == nil {
		onError = func(error) {}
	}
	return &Multicaster{onError: onError}
}

// Register adds a lifecycle listener. Listeners are invoked in the order
// they were registered.
func (m *Multicaster) Register(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// RegisterTool adds a tool-call listener.
func (m *Multicaster) RegisterTool(l ToolListener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.tools = append(m.tools, l)
	m.mu.Unlock()
}

func (m *Multicaster) snapshot() []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *Multicaster) snapshotTools() []ToolListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ToolListener, len(m.tools))
	copy(out, m.tools)
	return out
}

// guard invokes fn and recovers any panic, routing it to onError as an error
// without ever propagating to the caller.
func (m *Multicaster) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.onError(fmt.Errorf("listener panicked: %v", r))
		}
	}()
	fn()
}

func (m *Multicaster) OnLoopStarted(runID runid.RunID, userMessage string) {
	for _, l := range m.snapshot() {
		l := l
		m.guard(func() { l.OnLoopStarted(runID, userMessage) })
	}
}

func (m *Multicaster) OnTurnStarted(runID runid.RunID, turnIndex int) {
	for _, l := range m.snapshot() {
		l := l
		m.guard(func() { l.OnTurnStarted(runID, turnIndex) })
	}
}

func (m *Multicaster) OnTurnCompleted(runID runid.RunID, turnIndex int, reason *policy.TerminationReason) {
	for _, l := range m.snapshot() {
		l := l
		m.guard(func() { l.OnTurnCompleted(runID, turnIndex, reason) })
	}
}

func (m *Multicaster) OnLoopCompleted(runID runid.RunID, final state.LoopState, reason policy.TerminationReason) {
	for _, l := range m.snapshot() {
		l := l
		m.guard(func() { l.OnLoopCompleted(runID, final, reason) })
	}
}

func (m *Multicaster) OnLoopFailed(runID runid.RunID, final state.LoopState, err error) {
	for _, l := range m.snapshot() {
		l := l
		m.guard(func() { l.OnLoopFailed(runID, final, err) })
	}
}

func (m *Multicaster) OnToolCallStart(toolName string, arguments map[string]any) {
	for _, l := range m.snapshotTools() {
		l := l
		m.guard(func() { l.OnToolCallStart(toolName, arguments) })
	}
}

func (m *Multicaster) OnToolCallComplete(toolName string, result any) {
	for _, l := range m.snapshotTools() {
		l := l
		m.guard(func() { l.OnToolCallComplete(toolName, result) })
	}
}

func (m *Multicaster) OnToolCallError(toolName string, err error) {
	for _, l := range m.snapshotTools() {
		l := l
		m.guard(func() { l.OnToolCallError(toolName, err) })
	}
}

var (
	_ Listener     = (*Multicaster)(nil)
	_ ToolListener = (*Multicaster)(nil)
)
