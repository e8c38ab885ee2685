// Package nodedefaults holds the static table of default field values for
// new nodes, keyed by node type.
package nodedefaults

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hb-chen/flowdesign/internal/flow"
)

//go:embed defaults.yaml
var builtin []byte

// KeySpec is the default shape of an input or output key
type KeySpec struct {
	Name       string `yaml:"name"`
	Required   bool   `yaml:"required"`
	Global     bool   `yaml:"global"`
	ObjectType string `yaml:"object_type"`
}

// ConditionSpec is the default shape of a condition branch
type ConditionSpec struct {
	Label    string `yaml:"label"`
	Operator string `yaml:"operator"`
}

// CategorySpec is the default shape of a category branch
type CategorySpec struct {
	Category string `yaml:"category"`
}

// Spec holds the defaults of one node type
type Spec struct {
	Prefix      string          `yaml:"prefix"`
	Description string          `yaml:"description"`
	InputKeys   []KeySpec       `yaml:"input_keys"`
	OutputKeys  []KeySpec       `yaml:"output_keys"`
	Conditions  []ConditionSpec `yaml:"conditions"`
	Categories  []CategorySpec  `yaml:"categories"`
}

// Table maps node types to their defaults
type Table struct {
	specs map[flow.NodeType]Spec
}

// Builtin returns the embedded defaults table
func Builtin() (*Table, error) {
	return Parse(builtin)
}

// Parse decodes a YAML defaults table
func Parse(data []byte) (*Table, error) {
	var raw map[string]Spec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse node defaults: %w", err)
	}

	t := &Table{specs: make(map[flow.NodeType]Spec, len(raw))}
	for name, spec := range raw {
		nt, err := flow.ParseNodeType(name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse node defaults: %w", err)
		}
		t.specs[nt] = spec
	}
	return t, nil
}

// Load returns the builtin table with the entries of the file at path laid
// over it. An empty path returns the builtin table.
func Load(path string) (*Table, error) {
	t, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node defaults: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for nt, spec := range override.specs {
		t.specs[nt] = spec
	}
	return t, nil
}

// Spec returns the defaults of a node type
func (t *Table) Spec(nt flow.NodeType) (Spec, bool) {
	s, ok := t.specs[nt]
	return s, ok
}

// Prefix returns the default name prefix of a node type
func (t *Table) Prefix(nt flow.NodeType) string {
	if s, ok := t.specs[nt]; ok && s.Prefix != "" {
		return s.Prefix
	}
	return string(nt)
}

// NewData builds the initial data of a node of type nt. Branch ids are
// freshly generated so two nodes never share one.
func (t *Table) NewData(nt flow.NodeType, name string) *flow.NodeData {
	s := t.specs[nt]
	d := &flow.NodeData{
		Name:        name,
		Description: s.Description,
		InputKeys:   []flow.InputKeyItem{},
		OutputKeys:  []flow.OutputKeyItem{},
	}
	for _, k := range s.InputKeys {
		d.InputKeys = append(d.InputKeys, flow.InputKeyItem{Name: k.Name, Required: k.Required, ObjectType: k.ObjectType})
	}
	for _, k := range s.OutputKeys {
		d.OutputKeys = append(d.OutputKeys, flow.OutputKeyItem{Name: k.Name, Global: k.Global})
	}
	for _, c := range s.Conditions {
		d.Conditions = append(d.Conditions, flow.Condition{ID: uuid.NewString(), Label: c.Label, Operator: c.Operator})
	}
	for _, c := range s.Categories {
		d.Categories = append(d.Categories, flow.Category{ID: uuid.NewString(), Category: c.Category})
	}
	return d
}

// UniqueName returns the first "<prefix> <n>" not used by a node of type nt
func (t *Table) UniqueName(nt flow.NodeType, nodes []flow.Node) string {
	taken := make(map[string]bool)
	for _, n := range nodes {
		if n.Type == nt {
			taken[strings.TrimSpace(n.Name())] = true
		}
	}
	prefix := t.Prefix(nt)
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s %d", prefix, i)
		if !taken[name] {
			return name
		}
	}
}
