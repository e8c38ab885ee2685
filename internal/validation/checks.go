package validation

import (
	"fmt"
	"strings"

	"github.com/hb-chen/flowdesign/internal/binding"
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
)

// CheckName reports a duplicate when another node of the same type carries
// the same non-empty name. Nodes of other types never conflict.
func CheckName(node flow.Node, nodes []flow.Node) []Error {
	name := strings.TrimSpace(node.Name())
	if name == "" {
		return nil
	}

	var conflicts []string
	for _, other := range nodes {
		if other.ID == node.ID || other.Type != node.Type {
			continue
		}
		if strings.TrimSpace(other.Name()) == name {
			conflicts = append(conflicts, other.ID)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}

	return []Error{{
		Type:    DuplicateName,
		Message: fmt.Sprintf("name %q is already used by another %s node", name, node.Type),
		Details: map[string]any{DetailConflictIDs: conflicts},
	}}
}

// CheckInputs reports every required input that does not resolve to a value
func CheckInputs(items []flow.InputKeyItem, reg *keytable.Registry) []Error {
	var errs []Error
	for i, item := range items {
		if !item.Required {
			continue
		}
		res := binding.Resolve(item, reg)
		if res.Bound() {
			continue
		}
		if res.Dangling {
			errs = append(errs, Error{
				Type:    DanglingReference,
				Message: fmt.Sprintf("%s refers to a key that no longer exists, please select again", displayName(item, i)),
				Details: map[string]any{DetailInputIndex: i, DetailKeyTableID: item.KeyTableID},
			})
			continue
		}
		errs = append(errs, Error{
			Type:    MissingRequiredBinding,
			Message: fmt.Sprintf("%s is required", displayName(item, i)),
			Details: map[string]any{DetailInputIndex: i},
		})
	}
	return errs
}

func displayName(item flow.InputKeyItem, i int) string {
	if item.Name != "" {
		return item.Name
	}
	return fmt.Sprintf("input #%d", i+1)
}

// CheckConditions reports conditions whose literal comparison value is empty
// while the operand is not bound to a key and the operator needs a value
func CheckConditions(conditions []flow.Condition) []Error {
	var errs []Error
	for i, c := range conditions {
		if !c.NeedsValue() || c.ValueKeyTableID != "" {
			continue
		}
		if strings.TrimSpace(c.Value) != "" {
			continue
		}
		label := c.Label
		if label == "" {
			label = fmt.Sprintf("condition #%d", i+1)
		}
		errs = append(errs, Error{
			Type:    InvalidConditionValue,
			Message: fmt.Sprintf("%s needs a comparison value", label),
			Details: map[string]any{DetailConditionIndex: i},
		})
	}
	return errs
}
