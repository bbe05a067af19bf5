package mangrove

import "fmt"

// Push moves a variable from depth 0 to toDepth. The destination must be
// configured and allow the variable's type.
func (r *Registry) Push(toDepth int, name string) error {
	v, ok := r.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if v.depth != OriginDepth {
		return fmt.Errorf("%w: %s is at depth %d", ErrNotAtOriginDepth, name, v.depth)
	}
	return r.move(v, toDepth)
}

// Shift moves a variable to any depth whose allowed set contains its type.
// Depth 0 accepts every variable.
func (r *Registry) Shift(toDepth int, name string) error {
	v, ok := r.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return r.move(v, toDepth)
}

// Detach returns a variable currently at fromDepth to depth 0.
func (r *Registry) Detach(fromDepth int, name string) error {
	v, ok := r.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if v.depth == OriginDepth {
		return fmt.Errorf("%w: %s", ErrAlreadyAtOrigin, name)
	}
	if v.depth != fromDepth {
		return fmt.Errorf("%w: %s is at depth %d, not %d", ErrNotAtDepth, name, v.depth, fromDepth)
	}
	return r.move(v, OriginDepth)
}

func (r *Registry) move(v *variable, toDepth int) error {
	if toDepth != OriginDepth {
		// an unconfigured depth allows no types, so report both sentinels
		if !r.catalog.IsConfigured(toDepth) {
			return fmt.Errorf("%w: type %s at depth %d: %w", ErrTypeNotAllowed, v.typ, toDepth, ErrDepthNotConfigured)
		}
		if err := r.catalog.check(toDepth, v.typ); err != nil {
			return err
		}
	}
	v.depth = toDepth
	r.revision++
	return nil
}
