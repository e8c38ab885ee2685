package keytable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/flowdesign/internal/flow"
)

func testNodes() []flow.Node {
	return []flow.Node{
		{
			ID:   "n1",
			Type: flow.NodeTypeInput,
			Data: &flow.NodeData{
				Name:       "Input",
				OutputKeys: []flow.OutputKeyItem{{Name: "query"}},
				InputKeys: []flow.InputKeyItem{
					{Name: "temperature", ObjectType: flow.ObjectTypeLLMParameters},
					{Name: "plain"},
					{Name: "top_p", ObjectType: flow.ObjectTypeLLMParameters, KeyTableID: "custom__n1"},
				},
			},
		},
		{
			ID:   "n2",
			Type: flow.NodeTypeGenerator,
			Data: &flow.NodeData{
				Name: "Generator",
				OutputKeys: []flow.OutputKeyItem{
					{Name: "answer"},
					{Name: "summary", Global: true},
					{Name: ""},
				},
				// only Input nodes expose input keys
				InputKeys: []flow.InputKeyItem{{Name: "x", ObjectType: flow.ObjectTypeLLMParameters}},
			},
		},
	}
}

func TestBuild(t *testing.T) {
	r := Build(testNodes())

	ids := make([]string, 0, r.Len())
	for _, e := range r.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{
		"query__n1",
		"ext_llm_args0__n1",
		"custom__n1",
		"answer__n2",
		"summary__n2_global",
	}, ids)

	e, ok := r.Lookup("summary__n2_global")
	require.True(t, ok)
	assert.True(t, e.IsGlobal)
	assert.Equal(t, "summary", e.Display())
	assert.Equal(t, "Generator", e.NodeName)

	e, ok = r.Lookup("answer__n2")
	require.True(t, ok)
	assert.False(t, e.IsGlobal)
	assert.Equal(t, "Generator.answer", e.Display())

	assert.Len(t, r.ForNode("n1"), 3)
	assert.Len(t, r.Globals(), 1)
	assert.False(t, r.Contains(""))
}

func TestBuildIsDeterministic(t *testing.T) {
	nodes := testNodes()
	a := Build(nodes)
	b := Build(nodes)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Entries(), b.Entries())
}

func TestBuildLaterDuplicateWins(t *testing.T) {
	nodes := []flow.Node{
		{ID: "a", Type: flow.NodeTypeInput, Data: &flow.NodeData{
			Name:      "first",
			InputKeys: []flow.InputKeyItem{{Name: "k1", ObjectType: flow.ObjectTypeLLMParameters, KeyTableID: "shared"}},
		}},
		{ID: "b", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{Name: "mid", OutputKeys: []flow.OutputKeyItem{{Name: "o"}}}},
		{ID: "c", Type: flow.NodeTypeInput, Data: &flow.NodeData{
			Name:      "second",
			InputKeys: []flow.InputKeyItem{{Name: "k2", ObjectType: flow.ObjectTypeLLMParameters, KeyTableID: "shared"}},
		}},
	}

	r := Build(nodes)
	require.Equal(t, 2, r.Len())
	assert.Equal(t, "shared", r.Entries()[0].ID)
	assert.Equal(t, "second", r.Entries()[0].NodeName)
	assert.Equal(t, "k2", r.Entries()[0].Key)
}

func TestWithNode(t *testing.T) {
	nodes := testNodes()
	r := Build(nodes)

	updated := nodes[0]
	data := updated.Data.Clone()
	data.InputKeys = append(data.InputKeys, flow.InputKeyItem{Name: "max_tokens", ObjectType: flow.ObjectTypeLLMParameters})
	updated.Data = data

	next := r.WithNode(nodes, updated)
	assert.True(t, next.Contains("ext_llm_args2__n1"))
	assert.False(t, r.Contains("ext_llm_args2__n1"))

	fresh := flow.Node{ID: "n9", Type: flow.NodeTypeTool, Data: &flow.NodeData{OutputKeys: []flow.OutputKeyItem{{Name: "result"}}}}
	assert.True(t, r.WithNode(nodes, fresh).Contains("result__n9"))
}

func TestEqual(t *testing.T) {
	a := Build(testNodes())
	nodes := testNodes()
	nodes[1].Data.Name = "Renamed"
	b := Build(nodes)

	assert.False(t, a.Equal(b))
	assert.True(t, (*Registry)(nil).Equal(Build(nil)))
}
