package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthrough(_ context.Context, _ *Context, input any) (any, error) {
	return input, nil
}

func TestGraphCycleWithExit(t *testing.T) {
	counter := func(_ context.Context, _ *Context, input any) (any, error) {
		n := input.(int)
		return n + 1, nil
	}

	strat, err := NewBuilder("counter-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", passthrough).
		AddNode("counter", counter).
		AddNode("finish", passthrough).
		AddEdge("start", "counter").
		AddEdge("counter", "counter", When(func(output any) bool { return output.(int) < 3 })).
		AddEdge("counter", "finish").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), 0)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 3, res.Output)
	assert.Equal(t, []string{"start", "counter", "counter", "counter", "finish"}, res.PathTaken)
}

func TestGraphStuckNode(t *testing.T) {
	strat, err := NewBuilder("stuck-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", passthrough).
		AddNode("node", passthrough).
		AddNode("finish", passthrough).
		AddEdge("start", "node").
		AddEdge("node", "finish", When(func(any) bool { return false })).
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), "x")

	assert.Equal(t, StatusStuckInNode, res.Status)
	assert.Equal(t, "node", res.StuckNodeName)
}

func TestGraphMaxIterationsExceeded(t *testing.T) {
	strat, err := NewBuilder("infinite-strategy").
		Start("start").
		Finish("finish").
		MaxIterations(5).
		AddNode("start", passthrough).
		AddNode("finish", passthrough).
		AddEdge("start", "start").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), "x")

	assert.Equal(t, StatusMaxIterations, res.Status)
	assert.Equal(t, 6, res.Iterations)
}

func TestGraphNodeErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	strat, err := NewBuilder("erroring-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", func(context.Context, *Context, any) (any, error) { return nil, boom }).
		AddNode("finish", passthrough).
		AddEdge("start", "finish").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), "x")

	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestGraphNodePanicBecomesErrorResult(t *testing.T) {
	strat, err := NewBuilder("panicking-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", func(context.Context, *Context, any) (any, error) { panic("node exploded") }).
		AddNode("finish", passthrough).
		AddEdge("start", "finish").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), "x")

	assert.Equal(t, StatusError, res.Status)
	require.Error(t, res.Err)
}

func TestGraphUnconditionalEdgeIsIdentityByDefault(t *testing.T) {
	strat, err := NewBuilder("identity-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", passthrough).
		AddNode("finish", passthrough).
		AddEdge("start", "finish").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), 42)
	assert.Equal(t, 42, res.Output)
}

func TestGraphEdgeTransformAppliesOnTake(t *testing.T) {
	strat, err := NewBuilder("transform-strategy").
		Start("start").
		Finish("finish").
		AddNode("start", passthrough).
		AddNode("finish", passthrough).
		AddEdge("start", "finish", WithTransform(func(output any) any { return output.(int) * 2 })).
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), 21)
	assert.Equal(t, 42, res.Output)
}

func TestBuildValidation(t *testing.T) {
	t.Run("missing start", func(t *testing.T) {
		_, err := NewBuilder("s").Finish("f").AddNode("f", passthrough).Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
	t.Run("missing finish", func(t *testing.T) {
		_, err := NewBuilder("s").Start("a").AddNode("a", passthrough).Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
	t.Run("start not declared", func(t *testing.T) {
		_, err := NewBuilder("s").Start("missing").Finish("f").AddNode("f", passthrough).Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
	t.Run("dangling edge target", func(t *testing.T) {
		_, err := NewBuilder("s").
			Start("a").Finish("b").
			AddNode("a", passthrough).AddNode("b", passthrough).
			AddEdge("a", "nowhere").
			Build()
		assert.ErrorIs(t, err, ErrInvalidGraph)
	})
}

func TestGraphContextGetTypedMismatchIsAbsent(t *testing.T) {
	gctx := NewContext()
	gctx.Set("count", 7)

	_, ok := GetTyped[string](gctx, "count")
	assert.False(t, ok)

	v, ok := GetTyped[int](gctx, "count")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = GetTyped[int](gctx, "missing")
	assert.False(t, ok)
}

func TestGraphContextSharedAcrossNodes(t *testing.T) {
	write := func(_ context.Context, gctx *Context, input any) (any, error) {
		gctx.Set("seen", input)
		return input, nil
	}
	read := func(_ context.Context, gctx *Context, input any) (any, error) {
		v, _ := GetTyped[string](gctx, "seen")
		return v + "-read", nil
	}

	strat, err := NewBuilder("shared-context-strategy").
		Start("write").
		Finish("read").
		AddNode("write", write).
		AddNode("read", read).
		AddEdge("write", "read").
		Build()
	require.NoError(t, err)

	res := strat.Run(context.Background(), "hello")
	assert.Equal(t, "hello-read", res.Output)
}
