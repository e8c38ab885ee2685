package editor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/flowdesign/internal/binding"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/layout"
	"github.com/hb-chen/flowdesign/internal/validation"
)

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func pipeline() *flow.Document {
	return &flow.Document{
		Nodes: []flow.Node{
			{ID: "n1", Type: flow.NodeTypeInput, Data: &flow.NodeData{
				Name:       "Input 1",
				OutputKeys: []flow.OutputKeyItem{{Name: "query"}},
			}},
			{ID: "n2", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{
				Name:       "Generator 1",
				InputKeys:  []flow.InputKeyItem{{Name: "query", Required: true, KeyTableID: "query__n1"}},
				OutputKeys: []flow.OutputKeyItem{{Name: "generation"}},
			}},
		},
		Edges: []flow.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

func categorizerDoc() *flow.Document {
	doc := &flow.Document{
		Nodes: []flow.Node{
			{ID: "cat", Type: flow.NodeTypeCategorizer, Data: &flow.NodeData{
				Name: "Categorizer 1",
				Categories: []flow.Category{
					{ID: "c1", Category: "A"},
					{ID: "c2", Category: "B"},
					{ID: "c3", Category: "C"},
				},
			}},
			{ID: "t1", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{Name: "Generator 1"}},
			{ID: "t2", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{Name: "Generator 2"}},
			{ID: "t3", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{Name: "Generator 3"}},
		},
	}
	for i, c := range []string{"c1", "c2", "c3"} {
		target := doc.Nodes[i+1].ID
		doc.Edges = append(doc.Edges, flow.Edge{
			ID:           "e-" + c,
			Source:       "cat",
			SourceHandle: flow.ShortHandleID(c),
			Target:       target,
			Label:        doc.Nodes[0].Data.Categories[i].Category,
			Data:         &flow.EdgeData{Category: &flow.CategoryRef{ID: c, Category: doc.Nodes[0].Data.Categories[i].Category}},
		})
	}
	return doc
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestDeleteProducerLeavesBindingUnbound(t *testing.T) {
	s := newSession(t, Options{DanglingClearPasses: 2})
	s.Load(pipeline())

	res, ok := s.Resolve("n2", 0)
	require.True(t, ok)
	assert.Equal(t, binding.KindRegistry, res.Kind)
	assert.Equal(t, "Input 1.query", res.Value)
	assert.True(t, s.GetValidation("n2", validation.DomainInput).Valid)

	require.True(t, s.RemoveNode("n1"))
	assert.Empty(t, s.Edges())
	assert.False(t, s.KeyTable().Contains("query__n1"))

	res, ok = s.Resolve("n2", 0)
	require.True(t, ok)
	assert.Equal(t, binding.KindUnbound, res.Kind)
	assert.True(t, res.Dangling)

	r := s.GetValidation("n2", validation.DomainInput)
	require.False(t, r.Valid)
	assert.Equal(t, validation.DanglingReference, r.Errors[0].Type)

	// still referenced after one pass; a second registry version unbinds it
	n2, _ := s.Node("n2")
	assert.Equal(t, "query__n1", n2.Data.InputKeys[0].KeyTableID)

	_, err := s.AddNode(flow.NodeTypeRetriever, "")
	require.NoError(t, err)

	n2, _ = s.Node("n2")
	assert.Empty(t, n2.Data.InputKeys[0].KeyTableID)
	r = s.GetValidation("n2", validation.DomainInput)
	require.False(t, r.Valid)
	assert.Equal(t, validation.MissingRequiredBinding, r.Errors[0].Type)
}

func TestDanglingBindingSurvivesWhenClearingDisabled(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())
	require.True(t, s.RemoveNode("n1"))

	for i := 0; i < 3; i++ {
		_, err := s.AddNode(flow.NodeTypeTool, "")
		require.NoError(t, err)
	}
	n2, _ := s.Node("n2")
	assert.Equal(t, "query__n1", n2.Data.InputKeys[0].KeyTableID)
}

func TestSyncNodeData(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())
	v := s.Version()

	n2, _ := s.Node("n2")
	assert.False(t, s.SyncNodeData("n2", n2.Data), "same data is a no-op")
	assert.False(t, s.SyncNodeData("missing", n2.Data))
	assert.Equal(t, v, s.Version())

	data := n2.Data.Clone()
	data.InputKeys[0].SetFixedValue("hello")
	require.True(t, s.SyncNodeData("n2", data))
	assert.Greater(t, s.Version(), v)

	res, _ := s.Resolve("n2", 0)
	assert.Equal(t, binding.KindLiteral, res.Kind)
	assert.Equal(t, "hello", res.Value)

	data = data.Clone()
	data.InputKeys[0].BindKey("query__n1")
	require.True(t, s.SyncNodeData("n2", data))
	n2, _ = s.Node("n2")
	assert.Nil(t, n2.Data.InputKeys[0].FixedValue)
	res, _ = s.Resolve("n2", 0)
	assert.Equal(t, binding.KindRegistry, res.Kind)
}

func TestSyncNodeDataKeepsOneValueSource(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())
	lit := "x"

	n2, _ := s.Node("n2")
	data := n2.Data.Clone()
	data.InputKeys[0] = flow.InputKeyItem{Name: "query", Required: true, KeyTableID: "query__n1", FixedValue: &lit}
	require.True(t, s.SyncNodeData("n2", data))

	n2, _ = s.Node("n2")
	assert.Equal(t, "query__n1", n2.Data.InputKeys[0].KeyTableID)
	assert.Nil(t, n2.Data.InputKeys[0].FixedValue)

	// branch nodes take the single-step path
	s.Load(categorizerDoc())
	cat, _ := s.Node("cat")
	data = cat.Data.Clone()
	data.InputKeys = []flow.InputKeyItem{{Name: "text", KeyTableID: "query__n1", FixedValue: &lit}}
	require.True(t, s.SyncNodeData("cat", data))

	cat, _ = s.Node("cat")
	assert.Nil(t, cat.Data.InputKeys[0].FixedValue)
}

func TestOutputRenameDanglesConsumers(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())

	n1, _ := s.Node("n1")
	data := n1.Data.Clone()
	data.OutputKeys[0].Name = "question"
	require.True(t, s.SyncNodeData("n1", data))

	assert.True(t, s.KeyTable().Contains("question__n1"))
	res, _ := s.Resolve("n2", 0)
	assert.True(t, res.Dangling)
}

func TestSetKeyTableUnchangedIsNoop(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())

	var events int
	s.Subscribe(func(Event) { events++ })

	n1, _ := s.Node("n1")
	current := s.KeyTable()
	assert.Same(t, current, s.SetKeyTable(n1))
	assert.Zero(t, events)
}

func TestSetKeyTablePushesAhead(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())
	v := s.Version()

	n1, _ := s.Node("n1")
	pending := n1
	pending.Data = n1.Data.Clone()
	pending.Data.OutputKeys = append(pending.Data.OutputKeys, flow.OutputKeyItem{Name: "history"})

	reg := s.SetKeyTable(pending)
	assert.True(t, reg.Contains("history__n1"))
	assert.True(t, s.KeyTable().Contains("history__n1"))
	assert.Equal(t, v, s.Version())

	// the next mutation rebuilds from the store
	_, err := s.AddNode(flow.NodeTypeTool, "")
	require.NoError(t, err)
	assert.False(t, s.KeyTable().Contains("history__n1"))
}

func TestDuplicateNames(t *testing.T) {
	s := newSession(t, Options{NameDebounce: time.Hour})

	a, err := s.AddNode(flow.NodeTypeGenerator, "gen")
	require.NoError(t, err)
	b, err := s.AddNode(flow.NodeTypeGenerator, "gen")
	require.NoError(t, err)
	c, err := s.AddNode(flow.NodeTypeRetriever, "gen")
	require.NoError(t, err)

	// debounced until flushed
	assert.True(t, s.GetValidation(a.ID, validation.DomainName).Valid)
	assert.Positive(t, s.FlushValidation())

	for _, id := range []string{a.ID, b.ID} {
		r := s.GetValidation(id, validation.DomainName)
		require.False(t, r.Valid, id)
		assert.Equal(t, validation.DuplicateName, r.Errors[0].Type)
	}
	assert.True(t, s.GetValidation(c.ID, validation.DomainName).Valid)

	// renaming one clears both
	data := b.Data.Clone()
	data.Name = "gen 2"
	require.True(t, s.SyncNodeData(b.ID, data))
	s.FlushValidation()
	assert.True(t, s.GetValidation(a.ID, validation.DomainName).Valid)
	assert.True(t, s.GetValidation(b.ID, validation.DomainName).Valid)
}

func TestNameValidationDebounces(t *testing.T) {
	s := newSession(t, Options{NameDebounce: 20 * time.Millisecond})

	a, err := s.AddNode(flow.NodeTypeGenerator, "gen")
	require.NoError(t, err)
	_, err = s.AddNode(flow.NodeTypeGenerator, "gen")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !s.GetValidation(a.ID, validation.DomainName).Valid
	}, time.Second, 5*time.Millisecond)
}

func TestAddNodeDefaults(t *testing.T) {
	s := newSession(t, Options{})

	n, err := s.AddNode(flow.NodeTypeGenerator, "")
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "Generator 1", n.Name())

	n, err = s.AddNode(flow.NodeTypeGenerator, "")
	require.NoError(t, err)
	assert.Equal(t, "Generator 2", n.Name())

	r := s.GetValidation(n.ID, validation.DomainInput)
	require.False(t, r.Valid)
	assert.Equal(t, validation.MissingRequiredBinding, r.Errors[0].Type)

	_, err = s.AddNode("bogus", "")
	assert.ErrorIs(t, err, flow.ErrUnknownNodeType)
}

func TestRenameCategoryKeepsEdgeIdentity(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(categorizerDoc())

	require.True(t, s.RenameCategory("cat", "c1", "Renamed"))

	n, _ := s.Node("cat")
	assert.Equal(t, "Renamed", n.Data.Categories[0].Category)

	edges := s.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, "cat", edges[0].Source)
	assert.Equal(t, "handle-c1", edges[0].SourceHandle)
	assert.Equal(t, "Renamed", edges[0].Label)
	assert.Equal(t, "Renamed", edges[0].Data.Category.Category)
	assert.Equal(t, "B", edges[1].Label)

	assert.False(t, s.RenameCategory("cat", "missing", "x"))
	assert.False(t, s.RenameCategory("t1", "c1", "x"))
}

func TestDeleteCategoryRemovesOnlyItsEdges(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(categorizerDoc())
	before := s.Edges()

	require.True(t, s.DeleteCategory("cat", "c2"))

	after := s.Edges()
	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[1])

	n, _ := s.Node("cat")
	require.Len(t, n.Data.Categories, 2)
	assert.Equal(t, "c3", n.Data.Categories[1].ID)
}

func TestDeleteCategoryTwiceWithPositionalHandles(t *testing.T) {
	s := newSession(t, Options{})
	doc := categorizerDoc()
	for i := range doc.Edges {
		doc.Edges[i].SourceHandle = flow.PositionalHandleID("cat", flow.BranchCategory, i)
		doc.Edges[i].Data = nil
	}
	s.Load(doc)

	require.True(t, s.DeleteCategory("cat", "c1"))
	require.True(t, s.DeleteCategory("cat", "c3"))

	edges := s.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "e-c2", edges[0].ID)
	assert.Equal(t, "t2", edges[0].Target)
	assert.Equal(t, "B", edges[0].Label)
	assert.Equal(t, flow.HandleID("cat", flow.BranchCategory, "c2"), edges[0].SourceHandle)
}

func TestAddCategoryAndConnect(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(categorizerDoc())

	c, ok := s.AddCategory("cat", "D")
	require.True(t, ok)

	e, err := s.Connect(flow.Edge{Source: "cat", SourceHandle: flow.ShortHandleID(c.ID), Target: "t1"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "D", e.Label)
	require.NotNil(t, e.Data)
	assert.Equal(t, c.ID, e.Data.Category.ID)

	_, err = s.Connect(flow.Edge{Source: "cat", SourceHandle: flow.ShortHandleID("nope"), Target: "t1"})
	assert.ErrorIs(t, err, flow.ErrInvalidEdge)

	_, err = s.Connect(flow.Edge{Source: "cat", Target: "missing"})
	assert.ErrorIs(t, err, flow.ErrNodeNotFound)

	assert.True(t, s.Disconnect(e.ID))
	assert.False(t, s.Disconnect(e.ID))
}

func TestConditionBranches(t *testing.T) {
	s := newSession(t, Options{})
	cond, err := s.AddNode(flow.NodeTypeCondition, "")
	require.NoError(t, err)
	gen, err := s.AddNode(flow.NodeTypeGenerator, "")
	require.NoError(t, err)

	c, ok := s.AddCondition(cond.ID, flow.Condition{Label: "large", Operator: "greater_than", Value: "10"})
	require.True(t, ok)

	e, err := s.Connect(flow.Edge{Source: cond.ID, SourceHandle: flow.HandleID(cond.ID, flow.BranchCondition, c.ID), Target: gen.ID})
	require.NoError(t, err)
	assert.Equal(t, "large", e.Label)

	_, err = s.Connect(flow.Edge{Source: cond.ID, SourceHandle: flow.HandleID(cond.ID, flow.BranchCondition, "else"), Target: gen.ID})
	require.NoError(t, err)

	require.True(t, s.RenameCondition(cond.ID, c.ID, "huge"))
	assert.Equal(t, "huge", s.Edges()[0].Label)

	assert.False(t, s.DeleteCondition(cond.ID, "else"))
	require.True(t, s.DeleteCondition(cond.ID, c.ID))
	edges := s.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, flow.HandleID(cond.ID, flow.BranchCondition, "else"), edges[0].SourceHandle)
}

func TestConditionValues(t *testing.T) {
	s := newSession(t, Options{})
	cond, err := s.AddNode(flow.NodeTypeCondition, "")
	require.NoError(t, err)

	// default condition has no value yet
	r := s.GetValidation(cond.ID, validation.DomainNodeValue)
	require.False(t, r.Valid)
	assert.Equal(t, validation.InvalidConditionValue, r.Errors[0].Type)

	n, _ := s.Node(cond.ID)
	conds := append([]flow.Condition(nil), n.Data.Conditions...)
	conds[0].Value = "yes"
	assert.True(t, s.ValidateCondition(cond.ID, conds).Valid)
}

func TestSyncNodeDataSweepsBranchEdges(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(categorizerDoc())

	n, _ := s.Node("cat")
	data := n.Data.Clone()
	data.Categories = data.Categories[1:]
	data.Categories[0].Category = "Bee"
	require.True(t, s.SyncNodeData("cat", data))

	edges := s.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "Bee", edges[0].Label)
}

func TestValidationAPI(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())

	r := s.ValidateNode("n2", flow.NodeTypeGenerator, []flow.InputKeyItem{{Name: "query", Required: true}})
	assert.False(t, r.Valid)
	assert.False(t, s.GetValidation("n2", validation.DomainInput).Valid)
	require.Len(t, s.Invalid(), 1)

	s.UpdateValidation("n2", validation.DomainInput, true, nil)
	assert.True(t, s.GetValidation("n2", validation.DomainInput).Valid)

	s.UpdateValidation("n2", validation.DomainName, false, []validation.Error{{Type: validation.DuplicateName, Message: "x"}})
	assert.False(t, s.Validations("n2")[validation.DomainName].Valid)

	s.ClearValidation("n2")
	assert.True(t, s.GetValidation("n2", validation.DomainName).Valid)
	assert.Empty(t, s.Invalid())
}

func TestEvents(t *testing.T) {
	s := newSession(t, Options{})
	rec := &recorder{}
	cancel := s.Subscribe(rec.add)

	s.Load(pipeline())
	assert.Equal(t, 1, rec.count(EventReset))

	v := s.Version()
	require.True(t, s.ToggleNodeView("n2", true))
	assert.Equal(t, v, s.Version())
	assert.Equal(t, 1, rec.count(EventView))
	assert.False(t, s.ToggleNodeView("missing", true))

	_, err := s.AddNode(flow.NodeTypeTool, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count(EventGraph))
	assert.Positive(t, rec.count(EventValidation))

	cancel()
	_, err = s.AddNode(flow.NodeTypeTool, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count(EventGraph))
}

func TestReportNodeSize(t *testing.T) {
	s := newSession(t, Options{LayoutFrame: 5 * time.Millisecond, LayoutSettle: 15 * time.Millisecond})
	s.Load(pipeline())
	rec := &recorder{}
	s.Subscribe(rec.add)

	assert.False(t, s.ReportNodeSize("missing", layout.Size{Width: 1, Height: 1}))
	require.True(t, s.ReportNodeSize("n1", layout.Size{Width: 200, Height: 80}))
	assert.False(t, s.ReportNodeSize("n1", layout.Size{Width: 200, Height: 80}))

	assert.Eventually(t, func() bool { return rec.count(EventLayout) == 3 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotAndDocument(t *testing.T) {
	s := newSession(t, Options{})
	s.Load(pipeline())

	snap := s.Snapshot()
	assert.Equal(t, s.Version(), snap.Version)
	assert.Len(t, snap.Nodes, 2)
	assert.Len(t, snap.Edges, 1)
	require.Len(t, snap.KeyTable, 2)
	assert.Equal(t, "query__n1", snap.KeyTable[0].ID)

	doc := s.Document()
	assert.Len(t, doc.Nodes, 2)

	_, ok := s.Resolve("n2", 7)
	assert.False(t, ok)
	assert.False(t, s.RemoveNode("missing"))
}
