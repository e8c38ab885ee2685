// Package editor composes the graph store, key registry, binding resolver,
// branch synchronizer, validation engine and layout feedback loop into one
// editing session. Every mutation goes through the session so derived state
// is rebuilt and revalidated before subscribers hear about it.
package editor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hb-chen/flowdesign/internal/binding"
	"github.com/hb-chen/flowdesign/internal/branch"
	"github.com/hb-chen/flowdesign/internal/debounce"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
	"github.com/hb-chen/flowdesign/internal/layout"
	"github.com/hb-chen/flowdesign/internal/nodedefaults"
	"github.com/hb-chen/flowdesign/internal/validation"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

// Default session settings
const (
	DefaultNameDebounce        = 300 * time.Millisecond
	DefaultDanglingClearPasses = 2
)

// Options configures a session
type Options struct {
	// Defaults is the node defaults table; nil uses the builtin table
	Defaults *nodedefaults.Table
	// NameDebounce delays duplicate-name validation after an edit.
	// Zero validates names synchronously.
	NameDebounce time.Duration
	// DanglingClearPasses is how many registry versions a dangling binding
	// survives before it is unbound. Zero never clears.
	DanglingClearPasses int
	LayoutFrame         time.Duration
	LayoutSettle        time.Duration
}

// DefaultOptions returns the settings used by the server
func DefaultOptions() Options {
	return Options{
		NameDebounce:        DefaultNameDebounce,
		DanglingClearPasses: DefaultDanglingClearPasses,
		LayoutFrame:         layout.DefaultFrame,
		LayoutSettle:        layout.DefaultSettle,
	}
}

// Snapshot is a read-only view of the session state
type Snapshot struct {
	Version  uint64           `json:"version"`
	Nodes    []flow.Node      `json:"nodes"`
	Edges    []flow.Edge      `json:"edges"`
	KeyTable []keytable.Entry `json:"keytable"`
}

// Session is one editing session over a single graph
type Session struct {
	store      *flow.Store
	defaults   *nodedefaults.Table
	validator  *validation.Engine
	reconciler *binding.Reconciler
	names      *debounce.Group
	layout     *layout.Observer
	unwatch    func()

	// registry memo, keyed by store version
	mu              sync.Mutex
	registry        *keytable.Registry
	registryVersion uint64

	lmu          sync.RWMutex
	listeners    map[int]func(Event)
	order        []int
	nextListener int
}

// New creates an empty session
func New(opts Options) (*Session, error) {
	defaults := opts.Defaults
	if defaults == nil {
		var err error
		if defaults, err = nodedefaults.Builtin(); err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	}

	s := &Session{
		store:      flow.NewStore(),
		defaults:   defaults,
		validator:  validation.NewEngine(),
		reconciler: binding.NewReconciler(opts.DanglingClearPasses),
		names:      debounce.New(opts.NameDebounce),
		listeners:  make(map[int]func(Event)),
	}
	s.layout = layout.NewObserver(s.recompute, opts.LayoutFrame, opts.LayoutSettle)
	s.unwatch = s.store.Subscribe(s.onChange)
	return s, nil
}

// onChange forwards store changes that need no derived-state rebuild
func (s *Session) onChange(ch flow.Change) {
	switch ch.Kind {
	case flow.ChangeView:
		s.emit(Event{Type: EventView, Version: ch.Version, NodeID: ch.NodeID})
	case flow.ChangeReset:
		s.emit(Event{Type: EventReset, Version: ch.Version})
	}
}

func (s *Session) recompute(nodeID string) {
	s.emit(Event{Type: EventLayout, Version: s.store.Version(), NodeID: nodeID})
}

// Load replaces the session graph with doc and validates all of it
func (s *Session) Load(doc *flow.Document) {
	for _, n := range s.store.Nodes() {
		s.layout.Forget(n.ID)
	}
	s.names.CancelAll()
	s.reconciler.Reset()
	s.validator.Reset()

	s.store.Load(doc)
	s.store.Mutate("", sweep)

	reg := s.KeyTable()
	nodes := s.store.Nodes()
	s.validator.ValidateGraph(nodes, reg)
	s.reconciler.Observe(s.store.Version(), nodes, reg)

	logger.Infof("[Session] loaded %d nodes, %d edges, %d keys", len(nodes), len(s.store.Edges()), reg.Len())
	s.emit(Event{Type: EventValidation, Version: s.store.Version()})
}

// Close cancels pending timers and drops the graph
func (s *Session) Close() {
	s.names.Close()
	s.layout.Close()
	s.store.Clear()
	s.unwatch()
	s.validator.Reset()
	s.reconciler.Reset()

	s.mu.Lock()
	s.registry = nil
	s.mu.Unlock()
}

// Document exports the current graph
func (s *Session) Document() *flow.Document {
	return &flow.Document{Nodes: s.store.Nodes(), Edges: s.store.Edges()}
}

// Version returns the store data version
func (s *Session) Version() uint64 {
	return s.store.Version()
}

// Nodes returns a copy of all nodes
func (s *Session) Nodes() []flow.Node {
	return s.store.Nodes()
}

// Node returns one node
func (s *Session) Node(id string) (flow.Node, bool) {
	return s.store.Node(id)
}

// Edges returns a copy of all edges
func (s *Session) Edges() []flow.Edge {
	return s.store.Edges()
}

// KeyTable returns the registry for the current store version, rebuilding
// it when the graph changed since the last call.
func (s *Session) KeyTable() *keytable.Registry {
	v := s.store.Version()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry == nil || s.registryVersion != v {
		s.registry = keytable.Build(s.store.Nodes())
		s.registryVersion = v
	}
	return s.registry
}

// SetKeyTable pushes a rebuilt registry containing node's pending data
// ahead of the store. The next store mutation rebuilds from scratch.
func (s *Session) SetKeyTable(node flow.Node) *keytable.Registry {
	current := s.KeyTable()
	reg := current.WithNode(s.store.Nodes(), node)
	if reg.Equal(current) {
		return current
	}

	s.mu.Lock()
	s.registry = reg
	s.registryVersion = s.store.Version()
	s.mu.Unlock()

	for _, n := range s.store.Nodes() {
		s.validator.ValidateValues(n, reg)
	}
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: node.ID})
	return reg
}

// Snapshot returns nodes, edges and the key table together
func (s *Session) Snapshot() Snapshot {
	reg := s.KeyTable()
	return Snapshot{
		Version:  s.store.Version(),
		Nodes:    s.store.Nodes(),
		Edges:    s.store.Edges(),
		KeyTable: reg.Entries(),
	}
}

// Resolve resolves input item index of node nodeID against the key table
func (s *Session) Resolve(nodeID string, index int) (binding.Resolution, bool) {
	n, ok := s.store.Node(nodeID)
	if !ok || n.Data == nil || index < 0 || index >= len(n.Data.InputKeys) {
		return binding.Resolution{}, false
	}
	return binding.Resolve(n.Data.InputKeys[index], s.KeyTable()), true
}

// AddNode creates a node of type nt from the defaults table. An empty name
// picks the first free default name of that type.
func (s *Session) AddNode(nt flow.NodeType, name string) (flow.Node, error) {
	if _, err := flow.ParseNodeType(string(nt)); err != nil {
		return flow.Node{}, fmt.Errorf("failed to add node: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		name = s.defaults.UniqueName(nt, s.store.Nodes())
	}

	n, err := s.store.AddNode(flow.Node{Type: nt, Data: s.defaults.NewData(nt, name)})
	if err != nil {
		return flow.Node{}, fmt.Errorf("failed to add node: %w", err)
	}
	logger.Debugf("[Session] added %s node %s (%s)", nt, n.ID, name)

	s.afterMutation(n.ID, nt)
	return n, nil
}

// SyncNodeData replaces the data of a node wholesale. Edges leaving a
// branch node are re-synced with its branch list in the same step.
func (s *Session) SyncNodeData(id string, data *flow.NodeData) bool {
	prev, ok := s.store.Node(id)
	if !ok || data == nil {
		logger.Debugf("[Session] sync skipped, node %s not found", id)
		return false
	}

	var applied bool
	if _, branched := prev.Type.BranchKind(); branched {
		applied = s.store.Mutate(id, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, bool) {
			for i := range nodes {
				if nodes[i].ID != id {
					continue
				}
				if nodes[i].Data == data {
					return nil, nil, false
				}
				nodes[i].Data = data.Normalized()
				swept, _ := branch.Sweep(nodes, edges)
				return nodes, swept, true
			}
			return nil, nil, false
		})
	} else {
		applied = s.store.SyncNodeData(id, data)
	}
	if !applied {
		return false
	}

	if strings.TrimSpace(prev.Name()) != strings.TrimSpace(data.Name) {
		s.afterMutation(id, prev.Type)
	} else {
		s.afterMutation(id)
	}
	return true
}

// RemoveNode deletes a node, the edges touching it and its validations
func (s *Session) RemoveNode(id string) bool {
	n, ok := s.store.Node(id)
	if !ok || !s.store.RemoveNode(id) {
		logger.Debugf("[Session] remove skipped, node %s not found", id)
		return false
	}
	s.store.Mutate(id, sweep)

	s.names.Cancel(id)
	s.layout.Forget(id)
	s.validator.Clear(id)
	logger.Debugf("[Session] removed node %s", id)

	s.afterMutation(id, n.Type)
	return true
}

// ToggleNodeView collapses or expands a node. Only view state changes.
func (s *Session) ToggleNodeView(id string, collapsed bool) bool {
	return s.store.ToggleNodeView(id, collapsed)
}

// Move sets the canvas position of a node
func (s *Session) Move(id string, pos flow.Position) bool {
	return s.store.MoveNode(id, pos)
}

// Connect adds an edge. Edges leaving a branch must name an existing branch
// and get its label filled in.
func (s *Session) Connect(e flow.Edge) (flow.Edge, error) {
	src, ok := s.store.Node(e.Source)
	if !ok {
		return flow.Edge{}, fmt.Errorf("failed to connect edge: %w: %s", flow.ErrNodeNotFound, e.Source)
	}
	dst, ok := s.store.Node(e.Target)
	if !ok {
		return flow.Edge{}, fmt.Errorf("failed to connect edge: %w: %s", flow.ErrNodeNotFound, e.Target)
	}

	e = branch.Decorate(src, e)
	if kept, _ := branch.Sweep([]flow.Node{src, dst}, []flow.Edge{e}); len(kept) == 0 {
		return flow.Edge{}, fmt.Errorf("failed to connect edge: %w: unknown branch %s", flow.ErrInvalidEdge, e.SourceHandle)
	}

	added, err := s.store.AddEdge(e)
	if err != nil {
		return flow.Edge{}, fmt.Errorf("failed to connect edge: %w", err)
	}
	s.afterMutation(added.Source)
	return added, nil
}

// Disconnect removes an edge
func (s *Session) Disconnect(edgeID string) bool {
	for _, e := range s.store.Edges() {
		if e.ID != edgeID {
			continue
		}
		if !s.store.RemoveEdge(edgeID) {
			return false
		}
		s.afterMutation(e.Source)
		return true
	}
	logger.Debugf("[Session] disconnect skipped, edge %s not found", edgeID)
	return false
}

// ReportNodeSize feeds a measured node size into the layout loop
func (s *Session) ReportNodeSize(nodeID string, size layout.Size) bool {
	if _, ok := s.store.Node(nodeID); !ok {
		return false
	}
	return s.layout.Report(nodeID, size)
}

// afterMutation rebuilds derived state after a data change: the key table,
// dangling-binding reconciliation and value validation of every node.
// Names of nodes of the renamed types are revalidated after the debounce.
func (s *Session) afterMutation(nodeID string, renamed ...flow.NodeType) {
	reg := s.KeyTable()
	nodes := s.store.Nodes()

	if clears := s.reconciler.Observe(s.store.Version(), nodes, reg); len(clears) > 0 && s.applyClears(clears) {
		s.reconciler.Acknowledge(s.store.Version())
		logger.Infof("[Session] cleared %d dangling bindings", len(clears))
		reg = s.KeyTable()
		nodes = s.store.Nodes()
	}
	if n := s.reconciler.Pending(); n > 0 {
		logger.Debugf("[Session] %d dangling bindings awaiting clear", n)
	}

	for _, n := range nodes {
		s.validator.ValidateValues(n, reg)
	}

	v := s.store.Version()
	s.emit(Event{Type: EventGraph, Version: v, NodeID: nodeID})
	s.emit(Event{Type: EventValidation, Version: v, NodeID: nodeID})

	for _, nt := range renamed {
		s.scheduleNames(nt)
	}
}

func (s *Session) applyClears(clears []binding.Clear) bool {
	byNode := make(map[string][]binding.Clear)
	for _, c := range clears {
		byNode[c.NodeID] = append(byNode[c.NodeID], c)
	}
	return s.store.Mutate("", func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, bool) {
		changed := false
		for i, n := range nodes {
			cs, ok := byNode[n.ID]
			if !ok {
				continue
			}
			if data, ok := binding.Apply(n.Data, cs); ok {
				nodes[i].Data = data
				changed = true
			}
		}
		return nodes, edges, changed
	})
}

// scheduleNames debounces name validation of every node of type nt.
// Duplicate names are symmetric, so siblings are revalidated too.
func (s *Session) scheduleNames(nt flow.NodeType) {
	for _, n := range s.store.Nodes() {
		if n.Type != nt {
			continue
		}
		id := n.ID
		s.names.Call(id, func() { s.validateName(id) })
	}
}

func (s *Session) validateName(nodeID string) {
	n, ok := s.store.Node(nodeID)
	if !ok {
		return
	}
	s.validator.ValidateName(n, s.store.Nodes())
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: nodeID})
}

func sweep(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, bool) {
	swept, changed := branch.Sweep(nodes, edges)
	return nodes, swept, changed
}
