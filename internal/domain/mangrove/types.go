package mangrove

import (
	"fmt"
	"strings"
)

// TypeTag identifies the value type a variable is declared with.
type TypeTag int

const (
	TypeInt TypeTag = iota + 1
	TypeFloat
	TypeString
	TypeBool
	TypeList
	TypeDict
	TypeTensor
	TypeOpaque
)

var typeNames = map[TypeTag]string{
	TypeInt:    "int",
	TypeFloat:  "float",
	TypeString: "str",
	TypeBool:   "bool",
	TypeList:   "list",
	TypeDict:   "dict",
	TypeTensor: "tensor",
	TypeOpaque: "opaque",
}

// typeAliases maps accepted spellings to tags. Keys are lower-case.
var typeAliases = map[string]TypeTag{
	"int":          TypeInt,
	"integer":      TypeInt,
	"float":        TypeFloat,
	"double":       TypeFloat,
	"str":          TypeString,
	"string":       TypeString,
	"text":         TypeString,
	"bool":         TypeBool,
	"boolean":      TypeBool,
	"list":         TypeList,
	"dict":         TypeDict,
	"map":          TypeDict,
	"tensor":       TypeTensor,
	"torch.tensor": TypeTensor,
	"opaque":       TypeOpaque,
}

// String returns the canonical tag name.
func (t TypeTag) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// Valid reports whether t is one of the declared tags.
func (t TypeTag) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// AllTypes returns every tag in declaration order.
func AllTypes() []TypeTag {
	return []TypeTag{TypeInt, TypeFloat, TypeString, TypeBool, TypeList, TypeDict, TypeTensor, TypeOpaque}
}

// ParseTypeTag resolves a tag name (case-insensitive, aliases allowed).
func ParseTypeTag(name string) (TypeTag, error) {
	tag, ok := typeAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return tag, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t TypeTag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TypeTag) UnmarshalText(text []byte) error {
	tag, err := ParseTypeTag(string(text))
	if err != nil {
		return err
	}
	*t = tag
	return nil
}

// Tensor is implemented by tensor-like values supplied by external producers.
type Tensor interface {
	Shape() []int
	DType() string
}

// Transferable is an optional capability of a value: whether it can be moved to a
// different execution context (e.g. an accelerator). The registry only asks; it
// never moves anything.
type Transferable interface {
	CanTransfer(target string) bool
}

// Opaque wraps a payload the registry does not interpret, such as an image buffer
// or a detection result.
type Opaque struct {
	Kind  string
	Value any
}

// CanTransfer delegates to the wrapped payload when it is Transferable.
func (o Opaque) CanTransfer(target string) bool {
	if tr, ok := o.Value.(Transferable); ok {
		return tr.CanTransfer(target)
	}
	return false
}

// TypeOf resolves the tag of v. Untyped nil and types outside the closed set
// return ErrUnsupportedValue.
func TypeOf(v any) (TypeTag, error) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt, nil
	case float32, float64:
		return TypeFloat, nil
	case string:
		return TypeString, nil
	case bool:
		return TypeBool, nil
	case []any:
		return TypeList, nil
	case map[string]any:
		return TypeDict, nil
	case Opaque, *Opaque:
		return TypeOpaque, nil
	case Tensor:
		return TypeTensor, nil
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrUnsupportedValue)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// conforms checks v against the declared tag.
func conforms(tag TypeTag, v any) error {
	got, err := TypeOf(v)
	if err != nil {
		return fmt.Errorf("%w: expected %s: %w", ErrTypeMismatch, tag, err)
	}
	if got != tag {
		return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, tag, got)
	}
	return nil
}
