package flow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is a JSON snapshot of a graph used to initialize a session
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// DecodeDocument reads a document and checks its node types and ids
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	seen := make(map[string]bool, len(doc.Nodes))
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, err := ParseNodeType(string(n.Type)); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: missing id", i)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = true
		if n.Data == nil {
			n.Data = &NodeData{}
		}
	}
	for i, e := range doc.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, fmt.Errorf("%w: edge %d", ErrInvalidEdge, i)
		}
	}

	return &doc, nil
}

// LoadDocument reads a document from a JSON file
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	return DecodeDocument(f)
}
