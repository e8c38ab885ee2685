package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/flowdesign/internal/flow"
)

func writeDoc(t *testing.T, doc *flow.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCheckFile(t *testing.T) {
	doc := &flow.Document{
		Nodes: []flow.Node{
			{ID: "in", Type: flow.NodeTypeInput, Data: &flow.NodeData{
				Name:       "Input 1",
				OutputKeys: []flow.OutputKeyItem{{Name: "query"}},
			}},
			{ID: "gen", Type: flow.NodeTypeGenerator, Data: &flow.NodeData{
				Name:      "Generator 1",
				InputKeys: []flow.InputKeyItem{{Name: "query", Required: true}},
			}},
		},
		Edges: []flow.Edge{{ID: "e1", Source: "in", Target: "gen"}},
	}

	t.Run("invalid", func(t *testing.T) {
		res, err := checkFile(writeDoc(t, doc), "")
		require.NoError(t, err)
		assert.False(t, res.Valid)
		require.Len(t, res.Nodes, 1)
		assert.Equal(t, "gen", res.Nodes[0].NodeID)

		var out bytes.Buffer
		require.NoError(t, writeCheckResult(&out, "text", res))
		assert.Contains(t, out.String(), "MISSING_REQUIRED_BINDING")
		assert.Contains(t, out.String(), "NO_OUTPUT")

		out.Reset()
		require.NoError(t, writeCheckResult(&out, "yaml", res))
		assert.Contains(t, out.String(), "isValid: false")

		assert.Error(t, writeCheckResult(&out, "xml", res))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := checkFile(filepath.Join(t.TempDir(), "nope.json"), "")
		assert.Error(t, err)
	})
}
