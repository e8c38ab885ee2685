// Package keytable derives the graph-wide registry of named values that
// nodes expose for other nodes to bind to.
package keytable

import (
	"strings"

	"github.com/hb-chen/flowdesign/internal/flow"
)

// Entry is one key table row contributed by a node
type Entry struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	NodeID   string `json:"nodeId"`
	NodeName string `json:"nodeName"`
	IsGlobal bool   `json:"isGlobal"`
}

// Display returns the label shown in key pickers
func (e Entry) Display() string {
	if e.IsGlobal || e.NodeName == "" {
		return e.Key
	}
	return e.NodeName + "." + e.Key
}

// IsGlobalID reports whether a key table id uses the global suffix
func IsGlobalID(id string) bool {
	return strings.HasSuffix(id, flow.GlobalSuffix)
}

// Registry is an immutable, ordered key table
type Registry struct {
	entries []Entry
	index   map[string]int
}

// Build derives the registry from scratch. It is deterministic for a fixed
// node order: when two entries share an id the later one wins but keeps the
// position of the first.
func Build(nodes []flow.Node) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, n := range nodes {
		for _, e := range contributions(n) {
			r.put(e)
		}
	}
	return r
}

func contributions(n flow.Node) []Entry {
	if n.Data == nil {
		return nil
	}

	var out []Entry
	for _, key := range n.Data.OutputKeys {
		if key.Name == "" {
			continue
		}
		id := key.KeyTableID(n.ID)
		out = append(out, Entry{
			ID:       id,
			Key:      key.Name,
			NodeID:   n.ID,
			NodeName: n.Data.Name,
			IsGlobal: IsGlobalID(id),
		})
	}

	if n.Type != flow.NodeTypeInput {
		return out
	}
	exposed := 0
	for _, ik := range n.Data.InputKeys {
		if !ik.IsExposed() || ik.Name == "" {
			continue
		}
		id := ik.KeyTableID
		if id == "" {
			id = flow.ExternalLLMArgID(exposed, n.ID)
		}
		exposed++
		out = append(out, Entry{
			ID:       id,
			Key:      ik.Name,
			NodeID:   n.ID,
			NodeName: n.Data.Name,
			IsGlobal: IsGlobalID(id),
		})
	}
	return out
}

func (r *Registry) put(e Entry) {
	if i, ok := r.index[e.ID]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.ID] = len(r.entries)
	r.entries = append(r.entries, e)
}

// WithNode returns the registry rebuilt with node's contribution replaced
// by its updated data. Other nodes keep their entries and order.
func (r *Registry) WithNode(nodes []flow.Node, updated flow.Node) *Registry {
	merged := make([]flow.Node, 0, len(nodes)+1)
	found := false
	for _, n := range nodes {
		if n.ID == updated.ID {
			merged = append(merged, updated)
			found = true
			continue
		}
		merged = append(merged, n)
	}
	if !found {
		merged = append(merged, updated)
	}
	return Build(merged)
}

// Entries returns a copy of the ordered entries
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of entries
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Lookup returns the entry with the given id
func (r *Registry) Lookup(id string) (Entry, bool) {
	if r == nil || id == "" {
		return Entry{}, false
	}
	i, ok := r.index[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Contains reports whether id is a live entry
func (r *Registry) Contains(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// ForNode returns the entries produced by nodeID
func (r *Registry) ForNode(nodeID string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Globals returns the entries visible across the whole graph
func (r *Registry) Globals() []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.IsGlobal {
			out = append(out, e)
		}
	}
	return out
}

// Equal reports whether both registries hold the same entries in the same order
func (r *Registry) Equal(other *Registry) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i := 0; i < r.Len(); i++ {
		if r.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}
