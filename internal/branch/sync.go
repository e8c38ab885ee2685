// Package branch keeps edges leaving categorizer and condition nodes aligned
// with the node's own branch list. Edges are matched by stable branch id,
// never by label text.
package branch

import (
	"strconv"

	"github.com/hb-chen/flowdesign/internal/flow"
)

// ElseID is the implicit fallback branch of a condition node
const ElseID = "else"

// Branch is one dynamic output path of a node
type Branch struct {
	ID    string
	Label string
	Index int
}

// Branches lists the branches node n currently defines
func Branches(n flow.Node) (flow.BranchKind, []Branch) {
	kind, ok := n.Type.BranchKind()
	if !ok || n.Data == nil {
		return "", nil
	}
	var out []Branch
	switch kind {
	case flow.BranchCategory:
		for i, c := range n.Data.Categories {
			out = append(out, Branch{ID: c.ID, Label: c.Category, Index: i})
		}
	case flow.BranchCondition:
		for i, c := range n.Data.Conditions {
			out = append(out, Branch{ID: c.ID, Label: c.Label, Index: i})
		}
	}
	return kind, out
}

// Matches reports whether e leaves nodeID on the branch with the given id
func Matches(e flow.Edge, nodeID string, kind flow.BranchKind, branchID string) bool {
	if e.Source != nodeID || branchID == "" {
		return false
	}
	if e.SourceHandle == flow.ShortHandleID(branchID) {
		return true
	}
	if k, id, ok := flow.ParseHandle(e.SourceHandle, nodeID); ok && k == kind && id == branchID {
		return true
	}
	return e.Data.BranchID(kind) == branchID
}

func matchesIndex(e flow.Edge, nodeID string, kind flow.BranchKind, index int) bool {
	if index < 0 || e.Source != nodeID {
		return false
	}
	k, id, ok := flow.ParseHandle(e.SourceHandle, nodeID)
	return ok && k == kind && id == strconv.Itoa(index)
}

// relabel returns a copy of e carrying label for the given branch.
// The original Data is never mutated.
func relabel(e flow.Edge, kind flow.BranchKind, branchID, label string) flow.Edge {
	data := &flow.EdgeData{}
	if e.Data != nil {
		*data = *e.Data
	}
	switch kind {
	case flow.BranchCategory:
		data.Category = &flow.CategoryRef{ID: branchID, Category: label}
	case flow.BranchCondition:
		data.Condition = &flow.ConditionRef{ID: branchID, ConditionLabel: label}
	}
	e.Label = label
	e.Data = data
	return e
}

func labelled(e flow.Edge, kind flow.BranchKind, branchID, label string) bool {
	if e.Label != label || e.Data == nil {
		return false
	}
	switch kind {
	case flow.BranchCategory:
		return e.Data.Category != nil && e.Data.Category.ID == branchID && e.Data.Category.Category == label
	case flow.BranchCondition:
		return e.Data.Condition != nil && e.Data.Condition.ID == branchID && e.Data.Condition.ConditionLabel == label
	}
	return false
}

// Rename rewrites the label of every edge on the renamed branch. Source,
// target and handles stay as they are. It returns the number of edges touched.
func Rename(edges []flow.Edge, nodeID string, kind flow.BranchKind, branchID, label string) ([]flow.Edge, int) {
	out := make([]flow.Edge, len(edges))
	n := 0
	for i, e := range edges {
		if Matches(e, nodeID, kind, branchID) {
			e = relabel(e, kind, branchID, label)
			n++
		}
		out[i] = e
	}
	return out, n
}

// Delete drops the edges on a deleted branch. branches is the node's branch
// list before the delete. Edges addressing a later branch by positional
// handle are re-pointed to the id form, since those positions shift down.
func Delete(edges []flow.Edge, nodeID string, kind flow.BranchKind, branches []Branch, branchID string) ([]flow.Edge, int) {
	deleted := -1
	for _, b := range branches {
		if b.ID == branchID {
			deleted = b.Index
		}
	}

	out := make([]flow.Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source != nodeID {
			out = append(out, e)
			continue
		}
		if Matches(e, nodeID, kind, branchID) {
			continue
		}
		b, ok := locate(nodeID, kind, branches, e)
		if ok && b.ID == branchID {
			continue
		}
		if ok && deleted >= 0 && b.Index > deleted && positionalHandle(e, nodeID, kind, b.ID) {
			e.SourceHandle = flow.HandleID(nodeID, kind, b.ID)
		}
		out = append(out, e)
	}
	return out, len(edges) - len(out)
}

// locate finds the branch an edge leaving nodeID belongs to. Id forms take
// precedence over positional handles.
func locate(nodeID string, kind flow.BranchKind, branches []Branch, e flow.Edge) (Branch, bool) {
	for _, b := range branches {
		if Matches(e, nodeID, kind, b.ID) {
			return b, true
		}
	}
	for _, b := range branches {
		if matchesIndex(e, nodeID, kind, b.Index) {
			return b, true
		}
	}
	return Branch{}, false
}

// positionalHandle reports whether e addresses its branch by index rather
// than by the id branchID
func positionalHandle(e flow.Edge, nodeID string, kind flow.BranchKind, branchID string) bool {
	k, id, ok := flow.ParseHandle(e.SourceHandle, nodeID)
	if !ok || k != kind || id == branchID {
		return false
	}
	_, err := strconv.Atoi(id)
	return err == nil
}

// resolve finds the branch an edge of n belongs to, including the implicit
// else branch of condition nodes
func resolve(n flow.Node, kind flow.BranchKind, branches []Branch, e flow.Edge) (Branch, bool) {
	if b, ok := locate(n.ID, kind, branches, e); ok {
		return b, true
	}
	if kind == flow.BranchCondition && Matches(e, n.ID, kind, ElseID) {
		return Branch{ID: ElseID, Label: ElseID, Index: -1}, true
	}
	return Branch{}, false
}

func isBranchEdge(e flow.Edge, kind flow.BranchKind) bool {
	return flow.IsHandle(e.SourceHandle) || e.Data.BranchID(kind) != ""
}

// Decorate fills the denormalized branch label of a new edge leaving a
// branch node. Edges that do not leave a branch are returned unchanged.
func Decorate(n flow.Node, e flow.Edge) flow.Edge {
	if e.Source != n.ID {
		return e
	}
	kind, branches := Branches(n)
	if kind == "" {
		return e
	}
	b, ok := resolve(n, kind, branches, e)
	if !ok {
		return e
	}
	return relabel(e, kind, b.ID, b.Label)
}

// Sweep removes edges whose endpoints no longer exist or whose branch was
// deleted, and re-syncs branch labels that drifted from their node.
func Sweep(nodes []flow.Node, edges []flow.Edge) ([]flow.Edge, bool) {
	byID := make(map[string]flow.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	changed := false
	out := make([]flow.Edge, 0, len(edges))
	for _, e := range edges {
		src, ok := byID[e.Source]
		if _, dst := byID[e.Target]; !ok || !dst {
			changed = true
			continue
		}
		kind, branches := Branches(src)
		if kind == "" || !isBranchEdge(e, kind) {
			out = append(out, e)
			continue
		}
		b, found := resolve(src, kind, branches, e)
		if !found {
			changed = true
			continue
		}
		if !labelled(e, kind, b.ID, b.Label) {
			e = relabel(e, kind, b.ID, b.Label)
			changed = true
		}
		out = append(out, e)
	}
	return out, changed
}
