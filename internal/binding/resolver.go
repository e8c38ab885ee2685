// Package binding resolves node input bindings against the key table.
package binding

import (
	"github.com/hb-chen/flowdesign/internal/flow"
	"github.com/hb-chen/flowdesign/internal/keytable"
)

// Kind is the effective value source of an input binding
type Kind string

const (
	KindRegistry Kind = "registry"
	KindLiteral  Kind = "literal"
	KindUnbound  Kind = "unbound"
)

// Resolution is the outcome of resolving one input binding
type Resolution struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
	// Entry is set for registry bindings
	Entry *keytable.Entry `json:"entry,omitempty"`
	// Dangling marks a keytable_id whose entry no longer exists
	Dangling bool `json:"dangling,omitempty"`
}

// Resolve determines where item takes its value from. A keytable_id that is
// not in reg resolves to unbound; the stale id is reported, never cleared.
func Resolve(item flow.InputKeyItem, reg *keytable.Registry) Resolution {
	if item.KeyTableID != "" {
		e, ok := reg.Lookup(item.KeyTableID)
		if !ok {
			return Resolution{Kind: KindUnbound, Dangling: true}
		}
		return Resolution{Kind: KindRegistry, Value: e.Display(), Entry: &e}
	}
	if item.FixedValue != nil {
		return Resolution{Kind: KindLiteral, Value: *item.FixedValue}
	}
	return Resolution{Kind: KindUnbound}
}

// ResolveAll resolves every item in order
func ResolveAll(items []flow.InputKeyItem, reg *keytable.Registry) []Resolution {
	out := make([]Resolution, len(items))
	for i, item := range items {
		out[i] = Resolve(item, reg)
	}
	return out
}

// Bound reports whether the resolution yields a value
func (r Resolution) Bound() bool {
	return r.Kind != KindUnbound
}
