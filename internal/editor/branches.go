package editor

import (
	"github.com/google/uuid"

	"github.com/hb-chen/flowdesign/internal/branch"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

// branchEdit receives the node and a copy of the edges and returns the new
// node data and edges. Returning false leaves the store untouched.
type branchEdit func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool)

// editBranches applies edit to a node of type nt and its edges as one step
func (s *Session) editBranches(nodeID string, nt flow.NodeType, edit branchEdit) bool {
	ok := s.store.Mutate(nodeID, func(nodes []flow.Node, edges []flow.Edge) ([]flow.Node, []flow.Edge, bool) {
		for i, n := range nodes {
			if n.ID != nodeID {
				continue
			}
			if n.Type != nt || n.Data == nil {
				return nil, nil, false
			}
			data, next, changed := edit(n, edges)
			if !changed {
				return nil, nil, false
			}
			nodes[i].Data = data
			return nodes, next, true
		}
		return nil, nil, false
	})
	if !ok {
		logger.Debugf("[Session] branch edit skipped on %s node %s", nt, nodeID)
		return false
	}
	s.afterMutation(nodeID)
	return true
}

// AddCategory appends a category to a categorizer node
func (s *Session) AddCategory(nodeID, label string) (flow.Category, bool) {
	c := flow.Category{ID: uuid.NewString(), Category: label}
	ok := s.editBranches(nodeID, flow.NodeTypeCategorizer, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		data := n.Data.Clone()
		data.Categories = append(data.Categories, c)
		return data, edges, true
	})
	return c, ok
}

// RenameCategory relabels a category and every edge leaving it
func (s *Session) RenameCategory(nodeID, categoryID, label string) bool {
	return s.editBranches(nodeID, flow.NodeTypeCategorizer, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		data := n.Data.Clone()
		for i := range data.Categories {
			if data.Categories[i].ID == categoryID {
				data.Categories[i].Category = label
				next, _ := branch.Rename(edges, nodeID, flow.BranchCategory, categoryID, label)
				return data, next, true
			}
		}
		return nil, nil, false
	})
}

// DeleteCategory removes a category and the edges leaving it
func (s *Session) DeleteCategory(nodeID, categoryID string) bool {
	return s.editBranches(nodeID, flow.NodeTypeCategorizer, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		_, before := branch.Branches(n)
		data := n.Data.Clone()
		for i := range data.Categories {
			if data.Categories[i].ID == categoryID {
				data.Categories = append(data.Categories[:i], data.Categories[i+1:]...)
				next, _ := branch.Delete(edges, nodeID, flow.BranchCategory, before, categoryID)
				return data, next, true
			}
		}
		return nil, nil, false
	})
}

// AddCondition appends a condition to a condition node. An empty id gets
// a fresh one.
func (s *Session) AddCondition(nodeID string, c flow.Condition) (flow.Condition, bool) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ID == branch.ElseID {
		return flow.Condition{}, false
	}
	ok := s.editBranches(nodeID, flow.NodeTypeCondition, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		data := n.Data.Clone()
		for _, existing := range data.Conditions {
			if existing.ID == c.ID {
				return nil, nil, false
			}
		}
		data.Conditions = append(data.Conditions, c)
		return data, edges, true
	})
	return c, ok
}

// RenameCondition relabels a condition and every edge leaving it
func (s *Session) RenameCondition(nodeID, conditionID, label string) bool {
	return s.editBranches(nodeID, flow.NodeTypeCondition, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		data := n.Data.Clone()
		for i := range data.Conditions {
			if data.Conditions[i].ID == conditionID {
				data.Conditions[i].Label = label
				next, _ := branch.Rename(edges, nodeID, flow.BranchCondition, conditionID, label)
				return data, next, true
			}
		}
		return nil, nil, false
	})
}

// DeleteCondition removes a condition and the edges leaving it. The else
// branch cannot be deleted.
func (s *Session) DeleteCondition(nodeID, conditionID string) bool {
	if conditionID == branch.ElseID {
		return false
	}
	return s.editBranches(nodeID, flow.NodeTypeCondition, func(n flow.Node, edges []flow.Edge) (*flow.NodeData, []flow.Edge, bool) {
		_, before := branch.Branches(n)
		data := n.Data.Clone()
		for i := range data.Conditions {
			if data.Conditions[i].ID == conditionID {
				data.Conditions = append(data.Conditions[:i], data.Conditions[i+1:]...)
				next, _ := branch.Delete(edges, nodeID, flow.BranchCondition, before, conditionID)
				return data, next, true
			}
		}
		return nil, nil, false
	})
}
