package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// BranchKind names the kind of dynamic output branch a node exposes
type BranchKind string

const (
	BranchCategory  BranchKind = "category"
	BranchCondition BranchKind = "condition"
)

// CategoryRef is the denormalized copy of a category on an edge
type CategoryRef struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

// ConditionRef is the denormalized copy of a condition on an edge
type ConditionRef struct {
	ID             string `json:"id"`
	ConditionLabel string `json:"condition_label"`
}

// EdgeData carries branch labels so rendering needs no second lookup
type EdgeData struct {
	Category  *CategoryRef  `json:"category,omitempty"`
	Condition *ConditionRef `json:"condition,omitempty"`
}

// BranchID returns the branch id recorded on the edge data
func (d *EdgeData) BranchID(kind BranchKind) string {
	if d == nil {
		return ""
	}
	switch kind {
	case BranchCategory:
		if d.Category != nil {
			return d.Category.ID
		}
	case BranchCondition:
		if d.Condition != nil {
			return d.Condition.ID
		}
	}
	return ""
}

// Edge connects a source handle of one node to a target handle of another
type Edge struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SourceHandle string    `json:"sourceHandle,omitempty"`
	Target       string    `json:"target"`
	TargetHandle string    `json:"targetHandle,omitempty"`
	Label        string    `json:"label,omitempty"`
	Data         *EdgeData `json:"data,omitempty"`
}

// Touches reports whether the edge starts or ends at nodeID
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

const handlePrefix = "handle-"

// HandleID returns the source handle of a branch: handle-<nodeId>-<kind>-<branch>
func HandleID(nodeID string, kind BranchKind, branch string) string {
	return fmt.Sprintf("%s%s-%s-%s", handlePrefix, nodeID, kind, branch)
}

// ShortHandleID returns the legacy handle form handle-<branchId>
func ShortHandleID(branchID string) string {
	return handlePrefix + branchID
}

// PositionalHandleID returns the handle encoding a branch by its index
func PositionalHandleID(nodeID string, kind BranchKind, index int) string {
	return HandleID(nodeID, kind, strconv.Itoa(index))
}

// ParseHandle splits a branch handle of node nodeID into kind and branch part.
// Node ids may contain dashes, so the node id is matched as a known prefix.
func ParseHandle(handle, nodeID string) (BranchKind, string, bool) {
	prefix := handlePrefix + nodeID + "-"
	if !strings.HasPrefix(handle, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(handle, prefix)
	for _, kind := range []BranchKind{BranchCategory, BranchCondition} {
		p := string(kind) + "-"
		if strings.HasPrefix(rest, p) && len(rest) > len(p) {
			return kind, strings.TrimPrefix(rest, p), true
		}
	}
	return "", "", false
}

// IsHandle reports whether h uses the branch handle prefix
func IsHandle(h string) bool {
	return strings.HasPrefix(h, handlePrefix)
}
