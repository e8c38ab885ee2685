package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/flowdesign/internal/branch"
	"github.com/hb-chen/flowdesign/internal/flow"
)

func node(id string, nt flow.NodeType) flow.Node {
	return flow.Node{ID: id, Type: nt, Data: &flow.NodeData{Name: id}}
}

func pipeline() ([]flow.Node, []flow.Edge) {
	cond := node("cond", flow.NodeTypeCondition)
	cond.Data.Conditions = []flow.Condition{{ID: "big", Label: "big", Operator: "greater_than", Value: "1"}}

	nodes := []flow.Node{
		node("in", flow.NodeTypeInput),
		cond,
		node("gen", flow.NodeTypeGenerator),
		node("ret", flow.NodeTypeRetriever),
		node("out", flow.NodeTypeOutputFormatter),
	}
	edges := []flow.Edge{
		{ID: "e1", Source: "in", Target: "cond"},
		{ID: "e2", Source: "cond", SourceHandle: flow.HandleID("cond", flow.BranchCondition, "big"), Target: "gen"},
		{ID: "e3", Source: "cond", SourceHandle: flow.HandleID("cond", flow.BranchCondition, "else"), Target: "ret"},
		{ID: "e4", Source: "gen", Target: "out"},
		{ID: "e5", Source: "ret", Target: "out"},
	}
	return nodes, edges
}

func TestCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		nodes, edges := pipeline()
		r := Check(nodes, edges)
		assert.True(t, r.Valid, r.Issues)
		assert.Equal(t, "in", r.Entry)
		assert.Empty(t, r.Issues)
	})

	t.Run("unreachable output", func(t *testing.T) {
		nodes, edges := pipeline()
		r := Check(nodes, edges[:3])
		require.False(t, r.Valid)
		require.Len(t, r.Issues, 1)
		assert.Equal(t, IssueUnreachableOutput, r.Issues[0].Code)
		assert.Equal(t, "out", r.Issues[0].NodeID)
	})

	t.Run("inputs and outputs", func(t *testing.T) {
		r := Check([]flow.Node{node("gen", flow.NodeTypeGenerator)}, nil)
		codes := []IssueCode{}
		for _, i := range r.Issues {
			codes = append(codes, i.Code)
		}
		assert.ElementsMatch(t, []IssueCode{IssueNoInput, IssueNoOutput}, codes)

		r = Check([]flow.Node{node("a", flow.NodeTypeInput), node("b", flow.NodeTypeInput), node("o", flow.NodeTypeOutputSelector)}, nil)
		assert.Equal(t, IssueMultipleInputs, r.Issues[0].Code)
	})

	t.Run("dangling edge", func(t *testing.T) {
		nodes, edges := pipeline()
		edges = append(edges, flow.Edge{ID: "bad", Source: "gen", Target: "gone"})
		r := Check(nodes, edges)
		require.Len(t, r.Issues, 1)
		assert.Equal(t, IssueDanglingEdge, r.Issues[0].Code)
		assert.Equal(t, "bad", r.Issues[0].EdgeID)
	})
}

func TestCompile(t *testing.T) {
	nodes, edges := pipeline()
	runnable, err := Compile(nodes, edges)
	require.NoError(t, err)
	assert.NotNil(t, runnable)

	_, err = Compile(nodes[1:], edges)
	assert.ErrorIs(t, err, ErrNoEntry)

	_, err = Compile(append(nodes, node("in2", flow.NodeTypeInput)), edges)
	assert.ErrorIs(t, err, ErrMultipleEntries)
}

func TestRouter(t *testing.T) {
	nodes, edges := pipeline()
	cond := nodes[1]
	route := router(cond, flow.BranchCondition, []branch.Branch{{ID: "big", Label: "big", Index: 0}}, edges[1:3])

	ctx := context.Background()
	assert.Equal(t, "gen", route(ctx, map[string]any{}))
	assert.Equal(t, "ret", route(ctx, map[string]any{RouteKey("cond"): "else"}))
	assert.Equal(t, "gen", route(ctx, map[string]any{RouteKey("cond"): "unknown"}))
}
