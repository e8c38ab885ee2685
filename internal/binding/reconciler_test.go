package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
)

func TestReconcilerWaitsForStablePasses(t *testing.T) {
	gen := generatorNode("query__n1")
	nodes := []flow.Node{gen}
	reg := keytable.Build(nodes)

	r := NewReconciler(2)

	assert.Empty(t, r.Observe(1, nodes, reg))
	assert.Equal(t, 1, r.Pending())

	// same version counts once
	assert.Empty(t, r.Observe(1, nodes, reg))

	clears := r.Observe(2, nodes, reg)
	require.Len(t, clears, 1)
	assert.Equal(t, Clear{NodeID: "n2", InputIndex: 0, KeyTableID: "query__n1"}, clears[0])
	assert.Equal(t, 0, r.Pending())
}

func TestReconcilerForgetsRecoveredBindings(t *testing.T) {
	gen := generatorNode("query__n1")
	r := NewReconciler(2)

	without := []flow.Node{gen}
	assert.Empty(t, r.Observe(1, without, keytable.Build(without)))

	with := []flow.Node{inputNode(), gen}
	assert.Empty(t, r.Observe(2, with, keytable.Build(with)))
	assert.Equal(t, 0, r.Pending())

	assert.Empty(t, r.Observe(3, without, keytable.Build(without)))
}

func TestReconcilerDisabled(t *testing.T) {
	gen := generatorNode("query__n1")
	nodes := []flow.Node{gen}
	r := NewReconciler(0)

	for v := uint64(1); v < 5; v++ {
		assert.Empty(t, r.Observe(v, nodes, keytable.Build(nodes)))
	}
}

func TestApply(t *testing.T) {
	gen := generatorNode("query__n1")

	next, changed := Apply(gen.Data, []Clear{{NodeID: "n2", InputIndex: 0, KeyTableID: "query__n1"}})
	require.True(t, changed)
	assert.Empty(t, next.InputKeys[0].KeyTableID)
	assert.Equal(t, "query__n1", gen.Data.InputKeys[0].KeyTableID)

	// rebound in the meantime
	_, changed = Apply(gen.Data, []Clear{{NodeID: "n2", InputIndex: 0, KeyTableID: "other"}})
	assert.False(t, changed)

	_, changed = Apply(gen.Data, []Clear{{NodeID: "n2", InputIndex: 5, KeyTableID: "query__n1"}})
	assert.False(t, changed)
}

func TestReconcilerAcknowledge(t *testing.T) {
	gen := generatorNode("query__n1")
	nodes := []flow.Node{gen}
	reg := keytable.Build(nodes)
	r := NewReconciler(2)

	assert.Empty(t, r.Observe(1, nodes, reg))
	r.Acknowledge(2)
	assert.Empty(t, r.Observe(2, nodes, reg))
	assert.Len(t, r.Observe(3, nodes, reg), 1)
}
