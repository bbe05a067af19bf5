package mangrove

import (
	"fmt"
)

// Variable is a snapshot of one registered cell.
type Variable struct {
	Name    string
	Type    TypeTag
	Depth   int
	Value   any
	Present bool
}

// variable is the stored record. Value is meaningful only when present is true.
type variable struct {
	typ     TypeTag
	depth   int
	value   any
	present bool
}

// Registry is the name-keyed store of typed, depth-owned variables.
type Registry struct {
	catalog  *Catalog
	vars     map[string]*variable
	order    []string
	bindings map[string][]Tuple
	bindSeq  []string
	groups   map[GroupKey][]Selector
	revision uint64
}

// NewRegistry creates an empty registry with only depth 0 configured.
func NewRegistry() *Registry {
	return &Registry{
		catalog:  NewCatalog(),
		vars:     make(map[string]*variable),
		order:    make([]string, 0),
		bindings: make(map[string][]Tuple),
		bindSeq:  make([]string, 0),
		groups:   make(map[GroupKey][]Selector),
	}
}

// Catalog returns the registry's depth catalog.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// ConfigureDepth configures depth on the registry's catalog.
func (r *Registry) ConfigureDepth(depth int, types ...TypeTag) error {
	if err := r.catalog.ConfigureDepth(depth, types...); err != nil {
		return err
	}
	r.revision++
	return nil
}

// Register declares names at depth with the given tag. values may be nil, in
// which case every variable starts absent; otherwise it must have one entry per
// name, and a nil entry leaves that variable absent. The whole batch is validated
// before anything is stored.
func (r *Registry) Register(depth int, tag TypeTag, names []string, values []any) error {
	if err := r.catalog.check(depth, tag); err != nil {
		return err
	}
	if values != nil && len(values) != len(names) {
		return fmt.Errorf("%w: %d names, %d values", ErrArityMismatch, len(names), len(values))
	}

	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return ErrEmptyName
		}
		if _, exists := r.vars[name]; exists {
			return fmt.Errorf("%w: %s", ErrNameInUse, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", ErrNameInUse, name)
		}
		seen[name] = struct{}{}

		if values != nil && values[i] != nil {
			if err := conforms(tag, values[i]); err != nil {
				return fmt.Errorf("variable %s: %w", name, err)
			}
		}
	}

	for i, name := range names {
		v := &variable{typ: tag, depth: depth}
		if values != nil && values[i] != nil {
			v.value = values[i]
			v.present = true
		}
		r.vars[name] = v
		r.order = append(r.order, name)
	}
	r.revision++
	return nil
}

// Get returns the current value of name, or nil when the variable has not been
// assigned yet. Use Lookup to tell the two apart.
func (r *Registry) Get(name string) (any, error) {
	v, ok := r.vars[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v.value, nil
}

// Lookup returns the value of name and whether it has been assigned.
func (r *Registry) Lookup(name string) (any, bool, error) {
	v, ok := r.vars[name]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v.value, v.present, nil
}

// Describe returns a snapshot of the variable record.
func (r *Registry) Describe(name string) (Variable, error) {
	v, ok := r.vars[name]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return Variable{Name: name, Type: v.typ, Depth: v.depth, Value: v.value, Present: v.present}, nil
}

// Set assigns value to an existing variable. The value's tag must equal the
// declared tag; on failure the stored value is unchanged.
func (r *Registry) Set(name string, value any) error {
	v, ok := r.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if err := conforms(v.typ, value); err != nil {
		return fmt.Errorf("variable %s: %w", name, err)
	}
	v.value = value
	v.present = true
	r.revision++
	return nil
}

// VarInfo is the (depth, type) pair reported by Summary.
type VarInfo struct {
	Depth int     `json:"depth"`
	Type  TypeTag `json:"type"`
}

// Summary partitions variables into configured (depth >= 1) and unconfigured
// (depth 0) groups.
type Summary struct {
	Configured   map[string]VarInfo `json:"configured"`
	Unconfigured map[string]TypeTag `json:"unconfigured"`
}

// Summary reports the (depth, type) of every registered variable.
func (r *Registry) Summary() Summary {
	s := Summary{
		Configured:   make(map[string]VarInfo),
		Unconfigured: make(map[string]TypeTag),
	}
	for _, name := range r.order {
		v := r.vars[name]
		if v.depth == OriginDepth {
			s.Unconfigured[name] = v.typ
			continue
		}
		s.Configured[name] = VarInfo{Depth: v.depth, Type: v.typ}
	}
	return s
}

// Names returns all variable names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered variables.
func (r *Registry) Len() int {
	return len(r.order)
}

// Revision is bumped by every successful mutation.
func (r *Registry) Revision() uint64 {
	return r.revision
}
