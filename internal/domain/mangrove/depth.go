package mangrove

import (
	"fmt"
	"slices"
)

// OriginDepth is the reserved, pre-configured depth for unconfigured variables.
const OriginDepth = 0

// originTypes is the fixed set allowed at depth 0.
var originTypes = []TypeTag{TypeInt, TypeFloat, TypeString, TypeBool, TypeTensor, TypeOpaque}

// Catalog holds the allowed type tags for every configured depth.
type Catalog struct {
	depths map[int][]TypeTag
}

// NewCatalog creates a catalog with only depth 0 configured.
func NewCatalog() *Catalog {
	return &Catalog{
		depths: map[int][]TypeTag{
			OriginDepth: slices.Clone(originTypes),
		},
	}
}

// ConfigureDepth (re)assigns the allowed types of depth. Depth 0 is reserved and
// depth d > 1 requires d-1 to exist. Variables already registered at depth are not
// re-validated.
func (c *Catalog) ConfigureDepth(depth int, types ...TypeTag) error {
	if depth == OriginDepth {
		return ErrReservedDepth
	}
	if depth < 0 {
		return fmt.Errorf("%w: negative depth %d", ErrDepthOrder, depth)
	}
	if depth > 1 {
		if _, ok := c.depths[depth-1]; !ok {
			return fmt.Errorf("%w: depth %d must be configured before depth %d", ErrDepthOrder, depth-1, depth)
		}
	}

	allowed := make([]TypeTag, 0, len(types))
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownType, int(t))
		}
		if !slices.Contains(allowed, t) {
			allowed = append(allowed, t)
		}
	}
	c.depths[depth] = allowed
	return nil
}

// IsConfigured reports whether depth exists.
func (c *Catalog) IsConfigured(depth int) bool {
	_, ok := c.depths[depth]
	return ok
}

// IsTypeAllowed reports whether t may live at depth.
func (c *Catalog) IsTypeAllowed(depth int, t TypeTag) bool {
	return slices.Contains(c.depths[depth], t)
}

// AllowedTypes returns a copy of the allowed tags for depth.
func (c *Catalog) AllowedTypes(depth int) ([]TypeTag, bool) {
	types, ok := c.depths[depth]
	if !ok {
		return nil, false
	}
	return slices.Clone(types), true
}

// Depths returns all configured depths in ascending order, including 0.
func (c *Catalog) Depths() []int {
	depths := make([]int, 0, len(c.depths))
	for d := range c.depths {
		depths = append(depths, d)
	}
	slices.Sort(depths)
	return depths
}

// check validates that t may be placed at depth.
func (c *Catalog) check(depth int, t TypeTag) error {
	if !c.IsConfigured(depth) {
		return fmt.Errorf("%w: depth %d", ErrDepthNotConfigured, depth)
	}
	if !c.IsTypeAllowed(depth, t) {
		return fmt.Errorf("%w: type %s at depth %d", ErrTypeNotAllowed, t, depth)
	}
	return nil
}

// OriginTypes returns the fixed set of tags allowed at depth 0.
func OriginTypes() []TypeTag {
	return slices.Clone(originTypes)
}
