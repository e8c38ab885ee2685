package editor

import (
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/validation"
)

// ValidateNode validates the input domain of a node against the current key
// table. Condition nodes also get their stored conditions checked, and the
// node name is revalidated after the debounce.
func (s *Session) ValidateNode(nodeID string, nodeType flow.NodeType, inputKeys []flow.InputKeyItem) validation.Result {
	r := s.validator.ValidateInputs(nodeID, inputKeys, s.KeyTable())

	if n, ok := s.store.Node(nodeID); ok {
		if nodeType == flow.NodeTypeCondition && n.Data != nil {
			s.validator.ValidateConditions(nodeID, n.Data.Conditions)
		}
		s.names.Call(nodeID, func() { s.validateName(nodeID) })
	}
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: nodeID})
	return r
}

// ValidateCondition validates the node_value domain of a condition node
func (s *Session) ValidateCondition(nodeID string, conditions []flow.Condition) validation.Result {
	r := s.validator.ValidateConditions(nodeID, conditions)
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: nodeID})
	return r
}

// GetValidation returns the stored result of one node and domain
func (s *Session) GetValidation(nodeID string, domain validation.Domain) validation.Result {
	return s.validator.Get(nodeID, domain)
}

// Validations returns every domain result of a node
func (s *Session) Validations(nodeID string) map[validation.Domain]validation.Result {
	out := make(map[validation.Domain]validation.Result, len(validation.Domains))
	for _, d := range validation.Domains {
		out[d] = s.validator.Get(nodeID, d)
	}
	return out
}

// UpdateValidation stores an externally computed result
func (s *Session) UpdateValidation(nodeID string, domain validation.Domain, valid bool, errs []validation.Error) {
	s.validator.Update(nodeID, domain, valid, errs)
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: nodeID})
}

// ClearValidation drops every stored result of a node
func (s *Session) ClearValidation(nodeID string) {
	s.validator.Clear(nodeID)
	s.emit(Event{Type: EventValidation, Version: s.store.Version(), NodeID: nodeID})
}

// Invalid summarizes every node that currently has errors
func (s *Session) Invalid() []validation.NodeReport {
	return s.validator.Invalid()
}

// FlushValidation runs pending debounced name validations now
func (s *Session) FlushValidation() int {
	return s.names.Flush()
}
