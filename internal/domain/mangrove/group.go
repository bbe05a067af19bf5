package mangrove

import (
	"fmt"
	"strings"
)

// GroupKey identifies a validated selector group. It is derived from the ordered
// selector list, so grouping the same list twice yields the same key.
type GroupKey string

func groupKeyOf(selectors []Selector) GroupKey {
	parts := make([]string, len(selectors))
	for i, s := range selectors {
		parts[i] = s.String()
	}
	return GroupKey(strings.Join(parts, "|"))
}

// GroupSelectors validates a selector group and remembers it. Every selector must
// be legal per the catalog and all selectors must currently yield the same number
// of variables.
func (r *Registry) GroupSelectors(selectors []Selector) (GroupKey, error) {
	if len(selectors) == 0 {
		return "", ErrEmptySelectors
	}

	count := -1
	for _, s := range selectors {
		if err := r.catalog.check(s.Depth, s.Type); err != nil {
			return "", fmt.Errorf("selector %s: %w", s, err)
		}
		n := len(r.candidates(s))
		if count >= 0 && n != count {
			return "", fmt.Errorf("%w: selector %s has %d variables, expected %d",
				ErrCardinalityMismatch, s, n, count)
		}
		count = n
	}

	key := groupKeyOf(selectors)
	if _, exists := r.groups[key]; !exists {
		r.groups[key] = append([]Selector(nil), selectors...)
		r.revision++
	}
	return key, nil
}

// Group returns the selectors of a validated group.
func (r *Registry) Group(key GroupKey) ([]Selector, error) {
	selectors, ok := r.groups[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, key)
	}
	return append([]Selector(nil), selectors...), nil
}

// ExpandGroup returns the full cross product of the group's candidates, one tuple
// per combination, with the first selector varying slowest. Unlike Bind this is
// not truncated or position-aligned, and it is recomputed from the registry's
// current contents on every call.
func (r *Registry) ExpandGroup(key GroupKey) ([]Tuple, error) {
	selectors, ok := r.groups[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, key)
	}

	columns := make([][]string, len(selectors))
	total := 1
	for i, s := range selectors {
		columns[i] = r.candidates(s)
		total *= len(columns[i])
	}

	tuples := make([]Tuple, 0, total)
	if total == 0 {
		return tuples, nil
	}

	idx := make([]int, len(columns))
	for {
		tuple := make(Tuple, len(columns))
		for col, row := range idx {
			name := columns[col][row]
			tuple[col] = Entry{Name: name, Value: r.vars[name].value}
		}
		tuples = append(tuples, tuple)

		// advance the odometer from the last column
		col := len(idx) - 1
		for col >= 0 {
			idx[col]++
			if idx[col] < len(columns[col]) {
				break
			}
			idx[col] = 0
			col--
		}
		if col < 0 {
			return tuples, nil
		}
	}
}
