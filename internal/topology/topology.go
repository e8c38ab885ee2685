// Package topology lints the pipeline structure and exports it as a
// langgraphgo state graph. The exported graph is compiled to prove it is
// well formed; it is never run here.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/smallnest/langgraphgo/graph"

	"github.com/hb-chen/flowdesign/internal/branch"
	"github.com/hb-chen/flowdesign/internal/flow"
)

var (
	ErrNoEntry         = errors.New("graph has no input node")
	ErrMultipleEntries = errors.New("graph has more than one input node")
)

// IssueCode is the closed set of structural problems
type IssueCode string

const (
	IssueNoInput           IssueCode = "NO_INPUT"
	IssueMultipleInputs    IssueCode = "MULTIPLE_INPUTS"
	IssueNoOutput          IssueCode = "NO_OUTPUT"
	IssueDanglingEdge      IssueCode = "DANGLING_EDGE"
	IssueUnreachableOutput IssueCode = "UNREACHABLE_OUTPUT"
)

// TraceKey is the state key each exported node appends its id to
const TraceKey = "trace"

// Issue is one structural problem
type Issue struct {
	Code    IssueCode `json:"code"`
	NodeID  string    `json:"nodeId,omitempty"`
	EdgeID  string    `json:"edgeId,omitempty"`
	Message string    `json:"message"`
}

// Report is the result of Check
type Report struct {
	Valid  bool    `json:"isValid"`
	Entry  string  `json:"entry,omitempty"`
	Issues []Issue `json:"issues"`
}

// Check lints the graph: exactly one input node, edges between existing
// nodes and every output node reachable from the input.
func Check(nodes []flow.Node, edges []flow.Edge) Report {
	r := Report{Issues: []Issue{}}

	byID := make(map[string]flow.Node, len(nodes))
	var inputs, outputs []string
	for _, n := range nodes {
		byID[n.ID] = n
		switch {
		case n.Type == flow.NodeTypeInput:
			inputs = append(inputs, n.ID)
		case n.Type.IsOutput():
			outputs = append(outputs, n.ID)
		}
	}

	switch len(inputs) {
	case 0:
		r.Issues = append(r.Issues, Issue{Code: IssueNoInput, Message: ErrNoEntry.Error()})
	case 1:
		r.Entry = inputs[0]
	default:
		for _, id := range inputs[1:] {
			r.Issues = append(r.Issues, Issue{Code: IssueMultipleInputs, NodeID: id, Message: ErrMultipleEntries.Error()})
		}
	}
	if len(outputs) == 0 {
		r.Issues = append(r.Issues, Issue{Code: IssueNoOutput, Message: "graph has no output node"})
	}

	for _, e := range edges {
		_, src := byID[e.Source]
		_, dst := byID[e.Target]
		if !src || !dst {
			r.Issues = append(r.Issues, Issue{
				Code:    IssueDanglingEdge,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge %s connects a missing node", e.ID),
			})
		}
	}

	if r.Entry != "" {
		seen := reachable(r.Entry, edges)
		for _, id := range outputs {
			if !seen[id] {
				r.Issues = append(r.Issues, Issue{
					Code:    IssueUnreachableOutput,
					NodeID:  id,
					Message: fmt.Sprintf("output %s is not reachable from the input", byID[id].Name()),
				})
			}
		}
	}

	r.Valid = len(r.Issues) == 0
	return r
}

func reachable(from string, edges []flow.Edge) map[string]bool {
	next := make(map[string][]string)
	for _, e := range edges {
		next[e.Source] = append(next[e.Source], e.Target)
	}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, to := range next[id] {
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}
	return seen
}

// RouteKey is the state key a branch node's router reads its branch id from
func RouteKey(nodeID string) string {
	return nodeID + ".branch"
}

// Build exports the graph as a state graph. Nodes pass the state through
// and record themselves under TraceKey; branch nodes route by the branch id
// found under RouteKey; nodes without outgoing edges end the run.
func Build(nodes []flow.Node, edges []flow.Edge) (*graph.StateGraph[map[string]any], error) {
	entry, err := entryOf(nodes)
	if err != nil {
		return nil, err
	}

	g := graph.NewStateGraph[map[string]any]()
	schema := graph.NewMapSchema()
	schema.RegisterReducer(TraceKey, graph.AppendReducer)
	g.SetSchema(schema)

	byID := make(map[string]flow.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		g.AddNode(n.ID, n.Name(), passthrough(n.ID))
	}

	out := make(map[string][]flow.Edge)
	for _, e := range edges {
		if _, ok := byID[e.Source]; !ok {
			continue
		}
		if _, ok := byID[e.Target]; !ok {
			continue
		}
		out[e.Source] = append(out[e.Source], e)
	}

	for _, n := range nodes {
		targets := out[n.ID]
		kind, branches := branch.Branches(n)
		switch {
		case len(targets) == 0:
			g.AddEdge(n.ID, graph.END)
		case kind != "":
			g.AddConditionalEdge(n.ID, router(n, kind, branches, targets))
		default:
			for _, to := range uniqueTargets(targets) {
				g.AddEdge(n.ID, to)
			}
		}
	}
	g.SetEntryPoint(entry)
	return g, nil
}

// Compile builds and compiles the graph
func Compile(nodes []flow.Node, edges []flow.Edge) (*graph.StateRunnable[map[string]any], error) {
	g, err := Build(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	return runnable, nil
}

func entryOf(nodes []flow.Node) (string, error) {
	entry := ""
	for _, n := range nodes {
		if n.Type != flow.NodeTypeInput {
			continue
		}
		if entry != "" {
			return "", ErrMultipleEntries
		}
		entry = n.ID
	}
	if entry == "" {
		return "", ErrNoEntry
	}
	return entry, nil
}

func passthrough(nodeID string) func(context.Context, map[string]any) (map[string]any, error) {
	return func(ctx context.Context, state map[string]any) (map[string]any, error) {
		return map[string]any{TraceKey: []any{nodeID}}, nil
	}
}

// router picks the edge of the branch named in state, falling back to the
// first connected branch in branch order
func router(n flow.Node, kind flow.BranchKind, branches []branch.Branch, targets []flow.Edge) func(context.Context, map[string]any) string {
	routes := make(map[string]string)
	var order []string
	for _, b := range append(branches, branch.Branch{ID: branch.ElseID, Index: -1}) {
		for _, e := range targets {
			if branch.Matches(e, n.ID, kind, b.ID) || e.SourceHandle == flow.PositionalHandleID(n.ID, kind, b.Index) {
				if _, ok := routes[b.ID]; !ok {
					routes[b.ID] = e.Target
					order = append(order, b.ID)
				}
			}
		}
	}
	fallback := graph.END
	if len(order) > 0 {
		fallback = routes[order[0]]
	} else if len(targets) > 0 {
		fallback = targets[0].Target
	}

	return func(ctx context.Context, state map[string]any) string {
		if id, ok := state[RouteKey(n.ID)].(string); ok {
			if to, ok := routes[id]; ok {
				return to
			}
		}
		return fallback
	}
}

func uniqueTargets(edges []flow.Edge) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	sort.Strings(out)
	return out
}
