// Package validation computes per-node validation results for the name,
// input and node_value domains. Results are recomputed per node and stored
// keyed by node id and domain; they are values, never Go errors.
package validation

// Domain groups validations of one node
type Domain string

const (
	DomainName      Domain = "name"
	DomainInput     Domain = "input"
	DomainNodeValue Domain = "node_value"
)

// Domains lists every validation domain
var Domains = []Domain{DomainName, DomainInput, DomainNodeValue}

// ErrorType is the closed set of validation error kinds
type ErrorType string

const (
	// DuplicateName: two nodes of the same type share a display name
	DuplicateName ErrorType = "DUPLICATE_NAME"
	// MissingRequiredBinding: a required input has no resolved value
	MissingRequiredBinding ErrorType = "MISSING_REQUIRED_BINDING"
	// DanglingReference: a keytable_id points at a deleted registry entry
	DanglingReference ErrorType = "DANGLING_REFERENCE"
	// InvalidConditionValue: a condition's literal operand is empty
	InvalidConditionValue ErrorType = "INVALID_CONDITION_VALUE"
)

// Detail keys anchoring an error under a specific field
const (
	DetailInputIndex     = "inputIndex"
	DetailConditionIndex = "conditionIndex"
	DetailKeyTableID     = "keytableId"
	DetailConflictIDs    = "conflictingNodeIds"
)

// Error is one user-correctable validation message
type Error struct {
	Type    ErrorType      `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Result is the stored outcome of one (node, domain) validation
type Result struct {
	Valid  bool    `json:"isValid"`
	Errors []Error `json:"errors"`
}

func resultOf(errs []Error) Result {
	if errs == nil {
		errs = []Error{}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}
