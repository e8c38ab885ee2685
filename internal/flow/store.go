package flow

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChangeKind describes what a store change touched
type ChangeKind string

const (
	// ChangeData means nodes or edges changed and derived state must be rebuilt
	ChangeData ChangeKind = "data"
	// ChangeView means only view state changed
	ChangeView ChangeKind = "view"
	// ChangeReset means the store was loaded or cleared
	ChangeReset ChangeKind = "reset"
)

// Change is delivered to store subscribers after every applied mutation
type Change struct {
	Kind    ChangeKind
	Version uint64
	NodeID  string
}

// MutateFunc receives copies of the current nodes and edges and returns the
// replacement slices. Returning false discards the result.
type MutateFunc func(nodes []Node, edges []Edge) ([]Node, []Edge, bool)

// Store is the single source of truth for the nodes and edges of a graph
type Store struct {
	mu        sync.RWMutex
	nodes     []Node
	index     map[string]int
	edges     []Edge
	version   uint64
	listeners map[int]func(Change)
	order     []int
	nextID    int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		index:     make(map[string]int),
		listeners: make(map[int]func(Change)),
	}
}

// Version returns the data version, bumped on every data mutation
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Load replaces the whole graph
func (s *Store) Load(doc *Document) {
	s.mu.Lock()
	s.nodes = nil
	s.edges = nil
	if doc != nil {
		for _, n := range doc.Nodes {
			n.Data = n.Data.Normalized()
			s.nodes = append(s.nodes, n)
		}
		for _, e := range doc.Edges {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			s.edges = append(s.edges, e)
		}
	}
	s.reindex()
	ch := s.bump(ChangeReset, "")
	s.mu.Unlock()

	s.notify(ch)
}

// Clear drops every node and edge
func (s *Store) Clear() {
	s.Load(nil)
}

// AddNode appends a node. A node with an empty id gets a fresh one.
func (s *Store) AddNode(n Node) (Node, error) {
	if _, err := ParseNodeType(string(n.Type)); err != nil {
		return Node{}, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Data == nil {
		n.Data = &NodeData{}
	}
	n.Data = n.Data.Normalized()

	s.mu.Lock()
	if _, exists := s.index[n.ID]; exists {
		s.mu.Unlock()
		return Node{}, fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
	}
	s.index[n.ID] = len(s.nodes)
	s.nodes = append(s.nodes, n)
	ch := s.bump(ChangeData, n.ID)
	s.mu.Unlock()

	s.notify(ch)
	return n, nil
}

// Node returns the node with the given id
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// Nodes returns a copy of all nodes in insertion order
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Node(nil), s.nodes...)
}

// Edges returns a copy of all edges in insertion order
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Edge(nil), s.edges...)
}

// SyncNodeData replaces the data of node id wholesale. Callers spread the
// previous data themselves. Absent ids and the current pointer are no-ops.
func (s *Store) SyncNodeData(id string, data *NodeData) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].Data == data || data == nil {
		s.mu.Unlock()
		return false
	}
	s.nodes[i].Data = data.Normalized()
	ch := s.bump(ChangeData, id)
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// RemoveNode removes node id and every edge touching it
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.nodes = append(s.nodes[:i:i], s.nodes[i+1:]...)
	kept := s.edges[:0:0]
	for _, e := range s.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	s.reindex()
	ch := s.bump(ChangeData, id)
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// ToggleNodeView sets the collapsed flag of a node's view
func (s *Store) ToggleNodeView(id string, collapsed bool) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].InnerData.IsToggle == collapsed {
		s.mu.Unlock()
		return false
	}
	s.nodes[i].InnerData.IsToggle = collapsed
	ch := Change{Kind: ChangeView, Version: s.version, NodeID: id}
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// MoveNode sets the canvas position of a node. Like toggling, this is view
// state and leaves the data version alone.
func (s *Store) MoveNode(id string, pos Position) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.nodes[i].Position == pos {
		s.mu.Unlock()
		return false
	}
	s.nodes[i].Position = pos
	ch := Change{Kind: ChangeView, Version: s.version, NodeID: id}
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// AddEdge appends an edge, assigning an id when missing
func (s *Store) AddEdge(e Edge) (Edge, error) {
	if e.Source == "" || e.Target == "" {
		return Edge{}, ErrInvalidEdge
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	for _, existing := range s.edges {
		if existing.ID == e.ID {
			s.mu.Unlock()
			return Edge{}, fmt.Errorf("%w: %s", ErrDuplicateEdgeID, e.ID)
		}
	}
	_, srcOK := s.index[e.Source]
	_, dstOK := s.index[e.Target]
	if !srcOK || !dstOK {
		s.mu.Unlock()
		return Edge{}, fmt.Errorf("%w: %s -> %s", ErrNodeNotFound, e.Source, e.Target)
	}
	s.edges = append(s.edges, e)
	ch := s.bump(ChangeData, e.Source)
	s.mu.Unlock()

	s.notify(ch)
	return e, nil
}

// RemoveEdge removes the edge with the given id
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	for i, e := range s.edges {
		if e.ID == id {
			s.edges = append(s.edges[:i:i], s.edges[i+1:]...)
			ch := s.bump(ChangeData, e.Source)
			s.mu.Unlock()
			s.notify(ch)
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Mutate applies fn as one atomic step with a single version bump
func (s *Store) Mutate(nodeID string, fn MutateFunc) bool {
	s.mu.Lock()
	nodes, edges, ok := fn(append([]Node(nil), s.nodes...), append([]Edge(nil), s.edges...))
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.nodes = nodes
	s.edges = edges
	s.reindex()
	ch := s.bump(ChangeData, nodeID)
	s.mu.Unlock()

	s.notify(ch)
	return true
}

// Subscribe registers fn for every change and returns a cancel func
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.nodes))
	for i, n := range s.nodes {
		s.index[n.ID] = i
	}
}

// bump must be called with the lock held
func (s *Store) bump(kind ChangeKind, nodeID string) Change {
	s.version++
	return Change{Kind: kind, Version: s.version, NodeID: nodeID}
}

func (s *Store) notify(ch Change) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, id := range s.order {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}
