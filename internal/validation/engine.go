package validation

import (
	"sort"
	"sync"

	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
)

type slot struct {
	nodeID string
	domain Domain
}

// Engine stores validation results per node and domain
type Engine struct {
	mu      sync.RWMutex
	results map[slot]Result
}

// NewEngine creates an empty engine
func NewEngine() *Engine {
	return &Engine{results: make(map[slot]Result)}
}

func (e *Engine) store(nodeID string, domain Domain, r Result) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.results[slot{nodeID, domain}] = r
	return r
}

// ValidateName recomputes the name domain of node against nodes
func (e *Engine) ValidateName(node flow.Node, nodes []flow.Node) Result {
	return e.store(node.ID, DomainName, resultOf(CheckName(node, nodes)))
}

// ValidateInputs recomputes the input domain of a node
func (e *Engine) ValidateInputs(nodeID string, items []flow.InputKeyItem, reg *keytable.Registry) Result {
	return e.store(nodeID, DomainInput, resultOf(CheckInputs(items, reg)))
}

// ValidateConditions recomputes the node_value domain of a condition node
func (e *Engine) ValidateConditions(nodeID string, conditions []flow.Condition) Result {
	return e.store(nodeID, DomainNodeValue, resultOf(CheckConditions(conditions)))
}

// ValidateValues recomputes the input and node_value domains of one node
func (e *Engine) ValidateValues(n flow.Node, reg *keytable.Registry) {
	if n.Data == nil {
		return
	}
	e.ValidateInputs(n.ID, n.Data.InputKeys, reg)
	if n.Type == flow.NodeTypeCondition {
		e.ValidateConditions(n.ID, n.Data.Conditions)
	}
}

// ValidateGraph recomputes every domain of every node
func (e *Engine) ValidateGraph(nodes []flow.Node, reg *keytable.Registry) {
	for _, n := range nodes {
		e.ValidateName(n, nodes)
		e.ValidateValues(n, reg)
	}
}

// Get returns the stored result of a node and domain. A missing result
// reads as valid.
func (e *Engine) Get(nodeID string, domain Domain) Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.results[slot{nodeID, domain}]
	if !ok {
		return resultOf(nil)
	}
	return r
}

// Update stores a result computed elsewhere, e.g. by a scheme editor
func (e *Engine) Update(nodeID string, domain Domain, valid bool, errs []Error) {
	if errs == nil {
		errs = []Error{}
	}
	e.store(nodeID, domain, Result{Valid: valid && len(errs) == 0, Errors: errs})
}

// Clear drops every result of a node
func (e *Engine) Clear(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range Domains {
		delete(e.results, slot{nodeID, d})
	}
}

// Reset drops every result
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.results = make(map[slot]Result)
}

// NodeReport collects the invalid domains of one node
type NodeReport struct {
	NodeID  string            `json:"nodeId"`
	Domains map[Domain]Result `json:"domains"`
}

// Invalid lists every node with at least one invalid domain, ordered by id
func (e *Engine) Invalid() []NodeReport {
	e.mu.RLock()
	byNode := make(map[string]map[Domain]Result)
	for s, r := range e.results {
		if r.Valid {
			continue
		}
		if byNode[s.nodeID] == nil {
			byNode[s.nodeID] = make(map[Domain]Result)
		}
		byNode[s.nodeID][s.domain] = r
	}
	e.mu.RUnlock()

	out := make([]NodeReport, 0, len(byNode))
	for id, domains := range byNode {
		out = append(out, NodeReport{NodeID: id, Domains: domains})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}
