package binding

import (
	"sync"

	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
)

// Clear instructs the owner of a node to unbind one input item
type Clear struct {
	NodeID     string
	InputIndex int
	KeyTableID string
}

type slot struct {
	nodeID string
	index  int
	id     string
}

// Reconciler tracks dangling bindings across registry rebuilds and asks for
// a binding to be cleared only once it has been dangling for clearAfter
// consecutive passes. A zero threshold disables clearing and the first pass
// never clears.
type Reconciler struct {
	mu         sync.Mutex
	clearAfter int
	lastPass   uint64
	misses     map[slot]int
}

// NewReconciler creates a reconciler with the given pass threshold
func NewReconciler(clearAfter int) *Reconciler {
	return &Reconciler{
		clearAfter: clearAfter,
		misses:     make(map[slot]int),
	}
}

// Observe records one pass over nodes against reg, identified by version.
// Repeated calls with the same version count once.
func (r *Reconciler) Observe(version uint64, nodes []flow.Node, reg *keytable.Registry) []Clear {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clearAfter <= 0 {
		return nil
	}
	if version != 0 && version == r.lastPass {
		return nil
	}
	r.lastPass = version

	seen := make(map[slot]int, len(r.misses))
	var clears []Clear
	for _, n := range nodes {
		if n.Data == nil {
			continue
		}
		for i, item := range n.Data.InputKeys {
			if n.Type == flow.NodeTypeInput && item.IsExposed() {
				continue
			}
			if item.KeyTableID == "" || reg.Contains(item.KeyTableID) {
				continue
			}
			s := slot{nodeID: n.ID, index: i, id: item.KeyTableID}
			count := r.misses[s] + 1
			if count >= r.clearAfter && count > 1 {
				clears = append(clears, Clear{NodeID: n.ID, InputIndex: i, KeyTableID: item.KeyTableID})
				continue
			}
			seen[s] = count
		}
	}
	r.misses = seen

	return clears
}

// Acknowledge marks version as already observed, so a rebuild caused by
// applying clears does not count as another pass
func (r *Reconciler) Acknowledge(version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastPass = version
}

// Pending returns how many bindings are currently dangling but not yet cleared
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.misses)
}

// Reset forgets every tracked binding
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.misses = make(map[slot]int)
	r.lastPass = 0
}

// Apply unbinds the items named by clears in data, returning a new copy.
// Items whose keytable_id changed since the clear was issued are left alone.
func Apply(data *flow.NodeData, clears []Clear) (*flow.NodeData, bool) {
	if data == nil || len(clears) == 0 {
		return data, false
	}
	next := data.Clone()
	changed := false
	for _, c := range clears {
		if c.InputIndex < 0 || c.InputIndex >= len(next.InputKeys) {
			continue
		}
		item := &next.InputKeys[c.InputIndex]
		if item.KeyTableID != c.KeyTableID {
			continue
		}
		item.Unbind()
		changed = true
	}
	if !changed {
		return data, false
	}
	return next, true
}
