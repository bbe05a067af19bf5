package mangrove

import "iter"

// Query constrains variables by depth and/or type. The zero value matches every
// variable.
type Query struct {
	depth    int
	hasDepth bool
	typ      TypeTag
	hasType  bool
}

// AtDepth returns a copy of q constrained to depth.
func (q Query) AtDepth(depth int) Query {
	q.depth = depth
	q.hasDepth = true
	return q
}

// OfType returns a copy of q constrained to tag.
func (q Query) OfType(tag TypeTag) Query {
	q.typ = tag
	q.hasType = true
	return q
}

// Depth returns the depth constraint, if any.
func (q Query) Depth() (int, bool) {
	return q.depth, q.hasDepth
}

// Type returns the type constraint, if any.
func (q Query) Type() (TypeTag, bool) {
	return q.typ, q.hasType
}

func (q Query) matches(v *variable) bool {
	if q.hasDepth && v.depth != q.depth {
		return false
	}
	if q.hasType && v.typ != q.typ {
		return false
	}
	return true
}

// VariablesMatching yields matching names in registration order. The sequence
// reads the registry when iterated, so ranging over it twice reflects any change
// made in between.
func (r *Registry) VariablesMatching(q Query) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range r.order {
			if !q.matches(r.vars[name]) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// ValuesMatching returns the current values of matching variables. Absent values
// appear as nil.
func (r *Registry) ValuesMatching(q Query) map[string]any {
	result := make(map[string]any)
	for name := range r.VariablesMatching(q) {
		result[name] = r.vars[name].value
	}
	return result
}

// Transferable lists matching variables whose value reports it can be moved to
// target.
func (r *Registry) Transferable(q Query, target string) []string {
	names := make([]string, 0)
	for name := range r.VariablesMatching(q) {
		v := r.vars[name]
		if !v.present {
			continue
		}
		if tr, ok := v.value.(Transferable); ok && tr.CanTransfer(target) {
			names = append(names, name)
		}
	}
	return names
}

// candidates collects names at (depth, type) in registration order.
func (r *Registry) candidates(s Selector) []string {
	names := make([]string, 0)
	for name := range r.VariablesMatching(Query{}.AtDepth(s.Depth).OfType(s.Type)) {
		names = append(names, name)
	}
	return names
}
