package mangrove

import (
	"fmt"
	"strconv"
	"strings"
)

// Selector picks the variables at one (depth, type) pair.
type Selector struct {
	Depth int     `json:"depth" yaml:"depth"`
	Type  TypeTag `json:"type" yaml:"type"`
}

// String formats the selector as "depth:type".
func (s Selector) String() string {
	return fmt.Sprintf("%d:%s", s.Depth, s.Type)
}

// ParseSelector parses "depth:type", e.g. "1:int" or "2:torch.Tensor".
func ParseSelector(s string) (Selector, error) {
	depthPart, typePart, ok := strings.Cut(s, ":")
	if !ok {
		return Selector{}, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
	}
	depth, err := strconv.Atoi(strings.TrimSpace(depthPart))
	if err != nil {
		return Selector{}, fmt.Errorf("%w: %q: %w", ErrInvalidSelector, s, err)
	}
	tag, err := ParseTypeTag(typePart)
	if err != nil {
		return Selector{}, fmt.Errorf("%w: %q: %w", ErrInvalidSelector, s, err)
	}
	return Selector{Depth: depth, Type: tag}, nil
}

// Entry is one variable inside a tuple.
type Entry struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Tuple holds one entry per selector, in selector order.
type Tuple []Entry

// Names returns the variable names of the tuple.
func (t Tuple) Names() []string {
	names := make([]string, len(t))
	for i, e := range t {
		names[i] = e.Name
	}
	return names
}

// Bind zips the first cardinality candidates of every selector into cardinality
// tuples and stores them under name. Tuple i holds the i-th earliest-registered
// variable of each selector. The stored tuples are a snapshot: later changes to
// the registry do not update them.
func (r *Registry) Bind(name string, selectors []Selector, cardinality int) ([]Tuple, error) {
	if _, exists := r.bindings[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrBindingNameInUse, name)
	}
	if len(selectors) == 0 {
		return nil, ErrEmptySelectors
	}
	if cardinality < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCardinality, cardinality)
	}

	columns := make([][]string, len(selectors))
	for i, s := range selectors {
		names := r.candidates(s)
		if len(names) < cardinality {
			return nil, fmt.Errorf("%w: selector %s has %d variables, need %d",
				ErrInsufficientCardinality, s, len(names), cardinality)
		}
		columns[i] = names[:cardinality]
	}

	tuples := make([]Tuple, cardinality)
	for row := 0; row < cardinality; row++ {
		tuple := make(Tuple, len(selectors))
		for col := range selectors {
			varName := columns[col][row]
			tuple[col] = Entry{Name: varName, Value: r.vars[varName].value}
		}
		tuples[row] = tuple
	}

	r.bindings[name] = tuples
	r.bindSeq = append(r.bindSeq, name)
	r.revision++
	return cloneTuples(tuples), nil
}

// Binding returns the tuples stored under name.
func (r *Registry) Binding(name string) ([]Tuple, error) {
	tuples, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBinding, name)
	}
	return cloneTuples(tuples), nil
}

// BindingNames returns binding names in creation order.
func (r *Registry) BindingNames() []string {
	names := make([]string, len(r.bindSeq))
	copy(names, r.bindSeq)
	return names
}

func cloneTuples(tuples []Tuple) []Tuple {
	out := make([]Tuple, len(tuples))
	for i, t := range tuples {
		out[i] = append(Tuple(nil), t...)
	}
	return out
}
