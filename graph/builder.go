package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/loopkit/loopkit/driver"
)

// ErrInvalidGraph wraps all build-time topology validation failures: a
// duplicate node name, a dangling edge target, or a missing start/finish
// node.
var ErrInvalidGraph = errors.New("graph: invalid topology")

const defaultMaxIterations = 50

// Builder assembles a Strategy. Obtain one with NewBuilder; topology is
// validated at Build.
type Builder struct {
	name          string
	nodes         map[string]Node
	order         []string
	edges         []edge
	start         string
	finish        string
	maxIterations int
}

// NewBuilder returns an empty Builder for a strategy named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, nodes: map[string]Node{}}
}

// Start names the unique entry node.
func (b *Builder) Start(name string) *Builder { b.start = name; return b }

// Finish names the unique exit node.
func (b *Builder) Finish(name string) *Builder { b.finish = name; return b }

// MaxIterations caps traversal rounds. Default 50.
func (b *Builder) MaxIterations(n int) *Builder { b.maxIterations = n; return b }

// AddNode registers a pure function-node.
func (b *Builder) AddNode(name string, fn func(ctx context.Context, gctx *Context, input any) (any, error)) *Builder {
	return b.addNode(NewFuncNode(name, fn))
}

// AddLoopNode registers a node wrapping a governor-driven loop.
func (b *Builder) AddLoopNode(name string, invoker Invoker, d driver.Driver, toRequest func(any) driver.Request) *Builder {
	return b.addNode(NewLoopNode(name, invoker, d, toRequest))
}

func (b *Builder) addNode(n Node) *Builder {
	b.nodes[n.Name()] = n
	b.order = append(b.order, n.Name())
	return b
}

// AddEdge registers a directed edge from "from" to "to", evaluated in
// declaration order relative to other edges sharing the same source. opts
// may set a predicate and/or transform; the zero-value edge is
// unconditional identity.
func (b *Builder) AddEdge(from, to string, opts ...EdgeOption) *Builder {
	e := edge{from: from, to: to}
	for _, opt := range opts {
		opt(&e)
	}
	b.edges = append(b.edges, e)
	return b
}

// EdgeOption configures an edge registered via AddEdge.
type EdgeOption func(*edge)

// When attaches a predicate; the edge is only eligible when it reports true
// for the source node's output.
func When(p Predicate) EdgeOption {
	return func(e *edge) { e.predicate = p }
}

// WithTransform attaches an output transform applied when the edge is taken.
func WithTransform(t Transform) EdgeOption {
	return func(e *edge) { e.transform = t }
}

// Build validates topology and returns an immutable Strategy.
func (b *Builder) Build() (*Strategy, error) {
	if b.start == "" {
		return nil, fmt.Errorf("%w: start node not set", ErrInvalidGraph)
	}
	if b.finish == "" {
		return nil, fmt.Errorf("%w: finish node not set", ErrInvalidGraph)
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, fmt.Errorf("%w: start node %q not declared", ErrInvalidGraph, b.start)
	}
	if _, ok := b.nodes[b.finish]; !ok {
		return nil, fmt.Errorf("%w: finish node %q not declared", ErrInvalidGraph, b.finish)
	}

	seen := make(map[string]struct{}, len(b.order))
	for _, name := range b.order {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate node name %q", ErrInvalidGraph, name)
		}
		seen[name] = struct{}{}
	}

	byFrom := make(map[string][]edge, len(b.nodes))
	for _, e := range b.edges {
		if _, ok := b.nodes[e.to]; !ok {
			return nil, fmt.Errorf("%w: edge from %q targets undeclared node %q", ErrInvalidGraph, e.from, e.to)
		}
		if _, ok := b.nodes[e.from]; !ok {
			return nil, fmt.Errorf("%w: edge declared from undeclared node %q", ErrInvalidGraph, e.from)
		}
		byFrom[e.from] = append(byFrom[e.from], e)
	}

	maxIterations := b.maxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	nodes := make(map[string]Node, len(b.nodes))
	for k, v := range b.nodes {
		nodes[k] = v
	}

	return &Strategy{
		name:          b.name,
		nodes:         nodes,
		edgesByFrom:   byFrom,
		start:         b.start,
		finish:        b.finish,
		maxIterations: maxIterations,
	}, nil
}
