package graph

import (
	"context"

	"github.com/loopkit/loopkit/driver"
	"github.com/loopkit/loopkit/result"
)

// Node is one step in a graph. Execute receives the graph's shared Context
// and the input routed to this node, and returns the output routed onward.
type Node interface {
	Name() string
	Execute(ctx context.Context, gctx *Context, input any) (any, error)
}

// FuncNode wraps a pure function as a node.
type FuncNode struct {
	name string
	fn   func(ctx context.Context, gctx *Context, input any) (any, error)
}

// NewFuncNode returns a Node named name that delegates execution to fn.
func NewFuncNode(name string, fn func(ctx context.Context, gctx *Context, input any) (any, error)) *FuncNode {
	return &FuncNode{name: name, fn: fn}
}

func (n *FuncNode) Name() string { return n.name }

func (n *FuncNode) Execute(ctx context.Context, gctx *Context, input any) (any, error) {
	return n.fn(ctx, gctx, input)
}

// Invoker is the subset of *governor.Governor a LoopNode drives. Declared
// here rather than imported directly so this package needs no import-cycle
// awareness of the governor package's internals.
type Invoker interface {
	Invoke(ctx context.Context, d driver.Driver, req driver.Request) result.TurnLimitedResult
}

// LoopNode wraps a governor-driven loop as a graph node: it invokes the loop
// with the routed input as the user message and returns the loop's
// result.LoopResult as node output, so downstream edge predicates can
// inspect termination status directly.
type LoopNode struct {
	name       string
	invoker    Invoker
	driver     driver.Driver
	toRequest  func(input any) driver.Request
}

// NewLoopNode returns a Node named name that drives invoker/d once per
// execution. toRequest builds the driver.Request from the routed input; if
// nil, input is type-asserted to a string and used as UserMessage (empty
// string on mismatch).
func NewLoopNode(name string, invoker Invoker, d driver.Driver, toRequest func(any) driver.Request) *LoopNode {
	if toRequest == nil {
		toRequest = func(input any) driver.Request {
			msg, _ := input.(string)
			return driver.Request{UserMessage: msg}
		}
	}
	return &LoopNode{name: name, invoker: invoker, driver: d, toRequest: toRequest}
}

func (n *LoopNode) Name() string { return n.name }

func (n *LoopNode) Execute(ctx context.Context, gctx *Context, input any) (any, error) {
	req := n.toRequest(input)
	res := n.invoker.Invoke(ctx, n.driver, req)
	return res, nil
}
