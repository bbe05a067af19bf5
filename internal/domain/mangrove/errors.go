package mangrove

import "errors"

// Catalog errors
var (
	ErrDepthOrder    = errors.New("depth must be configured after its predecessor")
	ErrReservedDepth = errors.New("depth 0 is pre-configured and cannot be modified")
)

// Registration and migration errors
var (
	ErrDepthNotConfigured = errors.New("depth not configured")
	ErrTypeNotAllowed     = errors.New("type not allowed at depth")
	ErrArityMismatch      = errors.New("length of variable names and values must match")
	ErrNameInUse          = errors.New("variable name already in use")
	ErrEmptyName          = errors.New("variable name cannot be empty")
	ErrUnknownVariable    = errors.New("variable does not exist")
	ErrTypeMismatch       = errors.New("value does not match declared type")
	ErrUnsupportedValue   = errors.New("unsupported value type")
	ErrUnknownType        = errors.New("unknown type tag")
)

// Migration errors
var (
	ErrNotAtOriginDepth = errors.New("variable is not at depth 0")
	ErrAlreadyAtOrigin  = errors.New("variable is already at depth 0")
	ErrNotAtDepth       = errors.New("variable is not at the given depth")
)

// Binding and grouping errors
var (
	ErrBindingNameInUse        = errors.New("binding name already in use")
	ErrUnknownBinding          = errors.New("binding does not exist")
	ErrInsufficientCardinality = errors.New("not enough variables for cardinality")
	ErrInvalidCardinality      = errors.New("cardinality must be at least 1")
	ErrCardinalityMismatch     = errors.New("selectors yield different variable counts")
	ErrEmptySelectors          = errors.New("at least one selector is required")
	ErrInvalidSelector         = errors.New("invalid selector format")
	ErrUnknownGroup            = errors.New("group does not exist")
)
