// Package lattice holds the abstract domains shared by the dataflow rules.
package lattice

import "maps"

// Ownership models whether a linear value is still owned by a binding.
type Ownership int

const (
	Bottom   Ownership = iota // unreachable
	Released                  // moved out, returned, stored or destroyed
	Held                      // still owned on every path
	MaybeHeld                 // owned on some paths
)

func (v Ownership) String() string {
	switch v {
	case Bottom:
		return "Bottom"
	case Released:
		return "Released"
	case Held:
		return "Held"
	case MaybeHeld:
		return "MaybeHeld"
	default:
		return "Unknown"
	}
}

// Join returns the least upper bound in the lattice.
func Join(a, b Ownership) Ownership {
	if a == Bottom {
		return b
	}
	if b == Bottom {
		return a
	}
	if a == b {
		return a
	}
	return MaybeHeld
}

// Meet returns the greatest lower bound in the lattice.
func Meet(a, b Ownership) Ownership {
	if a == Bottom || b == Bottom {
		return Bottom
	}
	if a == MaybeHeld {
		return b
	}
	if b == MaybeHeld {
		return a
	}
	if a == b {
		return a
	}
	return Bottom
}

// AbstractState maps binding names to their ownership.
// Missing entries are interpreted as Released.
type AbstractState map[string]Ownership

// GetValue returns the stored value or Released when absent.
// A nil state represents Bottom (unreachable).
func GetValue(state AbstractState, name string) Ownership {
	if state == nil {
		return Bottom
	}
	if val, ok := state[name]; ok {
		return val
	}
	return Released
}

// SetValue sets the entry or removes it when value is Released.
func SetValue(state AbstractState, name string, value Ownership) {
	if state == nil {
		return
	}
	if value == Released {
		delete(state, name)
		return
	}
	state[name] = value
}

// CloneState returns a shallow copy of the abstract state.
func CloneState(state AbstractState) AbstractState {
	if state == nil {
		return nil
	}
	return maps.Clone(state)
}

// JoinStates merges two abstract states using Join on each binding.
func JoinStates(a, b AbstractState) AbstractState {
	if a == nil {
		return CloneState(b)
	}
	if b == nil {
		return CloneState(a)
	}
	out := make(AbstractState)
	for name := range a {
		SetValue(out, name, Join(GetValue(a, name), GetValue(b, name)))
	}
	for name := range b {
		if _, ok := a[name]; ok {
			continue
		}
		SetValue(out, name, Join(GetValue(a, name), GetValue(b, name)))
	}
	return out
}

// StateEqual reports whether two abstract states are identical.
func StateEqual(a, b AbstractState) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return maps.Equal(a, b)
}

// GuardSet is the set of bindings known to be bounds checked. It is a must
// domain: a binding is guarded only if every path checks it. A nil set is
// Bottom (unreachable) and acts as the identity of Intersect.
type GuardSet map[string]bool

// Intersect joins two guard sets.
func Intersect(a, b GuardSet) GuardSet {
	if a == nil {
		return CloneGuards(b)
	}
	if b == nil {
		return CloneGuards(a)
	}
	out := make(GuardSet)
	for name := range a {
		if b[name] {
			out[name] = true
		}
	}
	return out
}

// CloneGuards returns a copy of the guard set.
func CloneGuards(g GuardSet) GuardSet {
	if g == nil {
		return nil
	}
	return maps.Clone(g)
}

// With returns a copy of g that also holds names.
func (g GuardSet) With(names ...string) GuardSet {
	out := make(GuardSet, len(g)+len(names))
	maps.Copy(out, g)
	for _, n := range names {
		out[n] = true
	}
	return out
}

// GuardsEqual reports whether two guard sets are identical.
func GuardsEqual(a, b GuardSet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return maps.Equal(a, b)
}
