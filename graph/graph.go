// Package graph composes loop-wrapping and pure-function nodes into a
// directed graph with conditional routing. It distinguishes graph topology
// failures (no edge satisfied from a non-finish node) from loop failures (a
// loop inside a node terminating unsuccessfully).
package graph

import (
	"context"
	"time"
)

// Strategy is an immutable, validated graph topology. Build one with
// NewBuilder; Run executes a single traversal and is safe to call
// repeatedly, but not concurrently with a shared Context (each Run should
// get its own via NewContext unless the caller intends to share data across
// traversals deliberately).
type Strategy struct {
	name          string
	nodes         map[string]Node
	edgesByFrom   map[string][]edge
	start         string
	finish        string
	maxIterations int
}

// Name returns the strategy's name.
func (s *Strategy) Name() string { return s.name }

// Result is the outcome of one traversal.
type Result struct {
	Status        Status
	Output        any
	PathTaken     []string
	StuckNodeName string
	Iterations    int
	Duration      time.Duration
	Err           error
}

// Run executes the traversal algorithm: starting at the strategy's start
// node, it repeatedly executes the current node, routes via the first
// matching outgoing edge (declaration order, first-match-wins), and
// continues until it reaches the finish node, exceeds maxIterations, finds
// no matching edge from a non-finish node, or a node returns an error.
func (s *Strategy) Run(ctx context.Context, input any) Result {
	gctx := NewContext()
	return s.RunWithContext(ctx, gctx, input)
}

// RunWithContext is Run with a caller-supplied Context, for traversals that
// need to share state with prior runs or be seeded with initial values.
func (s *Strategy) RunWithContext(ctx context.Context, gctx *Context, input any) Result {
	started := time.Now()
	current := s.start
	path := []string{s.start}
	iterations := 0

	for current != s.finish {
		iterations++
		if iterations > s.maxIterations {
			return Result{
				Status:     StatusMaxIterations,
				PathTaken:  path,
				Iterations: iterations,
				Duration:   time.Since(started),
			}
		}

		output, err := s.execute(ctx, gctx, current, input)
		if err != nil {
			return Result{
				Status:     StatusError,
				PathTaken:  path,
				Iterations: iterations,
				Duration:   time.Since(started),
				Err:        err,
			}
		}

		next, taken := s.firstMatchingEdge(current, output)
		if !taken {
			return Result{
				Status:        StatusStuckInNode,
				PathTaken:     path,
				StuckNodeName: current,
				Iterations:    iterations,
				Duration:      time.Since(started),
			}
		}

		input = next.apply(output)
		current = next.to
		path = append(path, current)
	}

	output, err := s.execute(ctx, gctx, current, input)
	if err != nil {
		return Result{
			Status:     StatusError,
			PathTaken:  path,
			Iterations: iterations,
			Duration:   time.Since(started),
			Err:        err,
		}
	}

	return Result{
		Status:     StatusCompleted,
		Output:     output,
		PathTaken:  path,
		Iterations: iterations,
		Duration:   time.Since(started),
	}
}

func (s *Strategy) execute(ctx context.Context, gctx *Context, nodeName string, input any) (out any, err error) {
	node := s.nodes[nodeName]
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(r)
		}
	}()
	return node.Execute(ctx, gctx, input)
}

func (s *Strategy) firstMatchingEdge(from string, output any) (edge, bool) {
	for _, e := range s.edgesByFrom[from] {
		if e.matches(output) {
			return e, true
		}
	}
	return edge{}, false
}
