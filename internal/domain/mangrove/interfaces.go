package mangrove

import "iter"

// Reader defines read-only access to a registry. It lets callers that only
// consume values (serializers, displays, transfer planners) depend on an
// interface rather than the concrete Registry.
type Reader interface {
	// Get returns the current value of name, nil when unassigned.
	Get(name string) (any, error)

	// Lookup returns the value of name and whether it has been assigned.
	Lookup(name string) (any, bool, error)

	// VariablesMatching yields names matching q in registration order.
	VariablesMatching(q Query) iter.Seq[string]

	// ValuesMatching returns name to value for variables matching q.
	ValuesMatching(q Query) map[string]any

	// Summary partitions variables into configured and unconfigured groups.
	Summary() Summary

	// Binding returns the tuples stored under name.
	Binding(name string) ([]Tuple, error)
}

// Compile-time check that Registry implements Reader.
var _ Reader = (*Registry)(nil)
