package flow

import (
	"fmt"
)

// NodeType is the discriminant of a node kind
type NodeType string

const (
	NodeTypeInput              NodeType = "input"
	NodeTypeGenerator          NodeType = "generator"
	NodeTypeRetriever          NodeType = "retriever"
	NodeTypeCondition          NodeType = "condition"
	NodeTypeCategorizer        NodeType = "categorizer"
	NodeTypeTool               NodeType = "tool"
	NodeTypeReviewer           NodeType = "reviewer"
	NodeTypeOutputFormatter    NodeType = "output_formatter"
	NodeTypeOutputSelector     NodeType = "output_selector"
	NodeTypeUnion              NodeType = "union"
	NodeTypeAgentApp           NodeType = "agent_app"
	NodeTypeCompressor         NodeType = "compressor"
	NodeTypeFilter             NodeType = "filter"
	NodeTypeReRanker           NodeType = "reranker"
	NodeTypeRewriterHyDE       NodeType = "rewriter_hyde"
	NodeTypeRewriterMultiQuery NodeType = "rewriter_multiquery"
)

// NodeTypes lists every node kind in display order
var NodeTypes = []NodeType{
	NodeTypeInput,
	NodeTypeGenerator,
	NodeTypeRetriever,
	NodeTypeCondition,
	NodeTypeCategorizer,
	NodeTypeTool,
	NodeTypeReviewer,
	NodeTypeOutputFormatter,
	NodeTypeOutputSelector,
	NodeTypeUnion,
	NodeTypeAgentApp,
	NodeTypeCompressor,
	NodeTypeFilter,
	NodeTypeReRanker,
	NodeTypeRewriterHyDE,
	NodeTypeRewriterMultiQuery,
}

// ParseNodeType returns the node type named s
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
}

// IsOutput reports whether nodes of this type terminate a pipeline
func (t NodeType) IsOutput() bool {
	return t == NodeTypeOutputFormatter || t == NodeTypeOutputSelector
}

// BranchKind returns the kind of dynamic branches a node type exposes, if any
func (t NodeType) BranchKind() (BranchKind, bool) {
	switch t {
	case NodeTypeCategorizer:
		return BranchCategory, true
	case NodeTypeCondition:
		return BranchCondition, true
	default:
		return "", false
	}
}

// ObjectTypeLLMParameters marks an Input node key exposed to the key table
const ObjectTypeLLMParameters = "LLM parameters"

// InputKeyItem is one input binding of a node.
// A binding either references a key table entry or carries a literal, never both.
type InputKeyItem struct {
	Name        string  `json:"name"`
	Required    bool    `json:"required"`
	KeyTableID  string  `json:"keytable_id"`
	FixedValue  *string `json:"fixed_value"`
	ObjectType  string  `json:"object_type,omitempty"`
	Description string  `json:"description,omitempty"`
}

// BindKey binds the item to a key table entry and drops any literal
func (i *InputKeyItem) BindKey(keyTableID string) {
	i.KeyTableID = keyTableID
	if keyTableID != "" {
		i.FixedValue = nil
	}
}

// SetFixedValue sets a literal value and drops any key table binding
func (i *InputKeyItem) SetFixedValue(v string) {
	i.FixedValue = &v
	i.KeyTableID = ""
}

// Unbind clears both value sources
func (i *InputKeyItem) Unbind() {
	i.KeyTableID = ""
	i.FixedValue = nil
}

// IsExposed reports whether the item is itself a key table producer
func (i InputKeyItem) IsExposed() bool {
	return i.ObjectType == ObjectTypeLLMParameters
}

// GlobalSuffix marks key table ids visible to the whole graph
const GlobalSuffix = "_global"

// OutputKeyItem is a value a node exposes to the key table
type OutputKeyItem struct {
	Name        string `json:"name"`
	Global      bool   `json:"global,omitempty"`
	Description string `json:"description,omitempty"`
}

// KeyTableID derives the key table id of this output on node nodeID
func (o OutputKeyItem) KeyTableID(nodeID string) string {
	id := OutputKeyTableID(o.Name, nodeID)
	if o.Global {
		id += GlobalSuffix
	}
	return id
}

// OutputKeyTableID joins a key name and its producing node id
func OutputKeyTableID(name, nodeID string) string {
	return name + "__" + nodeID
}

// ExternalLLMArgID is the key table id of the index-th exposed Input node key
func ExternalLLMArgID(index int, nodeID string) string {
	return fmt.Sprintf("ext_llm_args%d__%s", index, nodeID)
}

// Category is one branch of a categorizer node
type Category struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// Condition operators that do not compare against a value
const (
	OperatorIsEmpty    = "is_empty"
	OperatorIsNotEmpty = "is_not_empty"
)

// Condition is one branch of a condition node
type Condition struct {
	ID              string `json:"id"`
	Label           string `json:"condition_label"`
	KeyTableID      string `json:"keytable_id"`
	Operator        string `json:"operator"`
	Value           string `json:"value"`
	ValueKeyTableID string `json:"value_keytable_id,omitempty"`
}

// NeedsValue reports whether the operator compares against a value
func (c Condition) NeedsValue() bool {
	return c.Operator != OperatorIsEmpty && c.Operator != OperatorIsNotEmpty
}

// NodeData is the type-specific payload of a node
type NodeData struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputKeys    []InputKeyItem  `json:"input_keys"`
	OutputKeys   []OutputKeyItem `json:"output_keys"`
	Conditions   []Condition     `json:"conditions,omitempty"`
	Categories   []Category      `json:"categories,omitempty"`
	ServingModel string          `json:"serving_model,omitempty"`
	Extra        map[string]any  `json:"extra,omitempty"`
}

// Clone returns a copy that shares nothing mutable with d
func (d *NodeData) Clone() *NodeData {
	if d == nil {
		return nil
	}
	c := *d
	c.InputKeys = append([]InputKeyItem(nil), d.InputKeys...)
	for i := range c.InputKeys {
		if v := c.InputKeys[i].FixedValue; v != nil {
			fv := *v
			c.InputKeys[i].FixedValue = &fv
		}
	}
	c.OutputKeys = append([]OutputKeyItem(nil), d.OutputKeys...)
	c.Conditions = append([]Condition(nil), d.Conditions...)
	c.Categories = append([]Category(nil), d.Categories...)
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Normalized returns d with every input bound to a key table entry stripped
// of its literal. d itself is returned when nothing needs to change.
func (d *NodeData) Normalized() *NodeData {
	if d == nil {
		return nil
	}
	for i, item := range d.InputKeys {
		if item.KeyTableID != "" && item.FixedValue != nil {
			c := d.Clone()
			for j := i; j < len(c.InputKeys); j++ {
				c.InputKeys[j].BindKey(c.InputKeys[j].KeyTableID)
			}
			return c
		}
	}
	return d
}

// InnerData is transient view state owned by the node's own view
type InnerData struct {
	IsRun    bool  `json:"isRun,omitempty"`
	IsDone   bool  `json:"isDone,omitempty"`
	IsError  bool  `json:"isError,omitempty"`
	IsToggle bool  `json:"isToggle,omitempty"`
	LogData  []any `json:"logData,omitempty"`
}

// Position is the canvas location of a node
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of the pipeline graph
type Node struct {
	ID        string    `json:"id"`
	Type      NodeType  `json:"type"`
	Data      *NodeData `json:"data"`
	InnerData InnerData `json:"innerData"`
	Position  Position  `json:"position"`
}

// Name returns the node's display name
func (n Node) Name() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.Name
}
