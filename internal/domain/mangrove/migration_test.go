package mangrove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func depthOf(t *testing.T, reg *Registry, name string) int {
	t.Helper()
	v, err := reg.Describe(name)
	require.NoError(t, err)
	return v.Depth
}

func TestRegistry_Push(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt, TypeTensor})
	require.NoError(t, reg.Register(0, TypeInt, []string{"z"}, []any{5}))

	require.NoError(t, reg.Push(1, "z"))

	require.Equal(t, 1, depthOf(t, reg, "z"))
	require.Equal(t, map[string]VarInfo{"z": {Depth: 1, Type: TypeInt}}, reg.Summary().Configured)
}

func TestRegistry_Push_Unknown(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt})

	err := reg.Push(1, "non_existent_var")

	require.ErrorIs(t, err, ErrUnknownVariable)
}

func TestRegistry_Push_NotAtOrigin(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt})
	require.NoError(t, reg.Register(1, TypeInt, []string{"x"}, []any{1}))

	err := reg.Push(1, "x")

	require.ErrorIs(t, err, ErrNotAtOriginDepth)
	require.Equal(t, 1, depthOf(t, reg, "x"))
}

func TestRegistry_Push_RevalidatesDestination(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeTensor})
	require.NoError(t, reg.Register(0, TypeString, []string{"s"}, []any{"hi"}))

	err := reg.Push(1, "s")
	require.ErrorIs(t, err, ErrTypeNotAllowed)

	err = reg.Push(4, "s")
	require.ErrorIs(t, err, ErrTypeNotAllowed)
	require.ErrorIs(t, err, ErrDepthNotConfigured)

	require.Equal(t, 0, depthOf(t, reg, "s"))
}

func TestRegistry_Shift(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt, TypeTensor})
	require.NoError(t, reg.Register(1, TypeInt, []string{"x"}, []any{1}))

	require.NoError(t, reg.Shift(0, "x"))
	require.Equal(t, 0, depthOf(t, reg, "x"))

	err := reg.Shift(2, "x")
	require.ErrorIs(t, err, ErrTypeNotAllowed)
	require.Contains(t, err.Error(), "type int at depth 2")
	require.Equal(t, 0, depthOf(t, reg, "x"))
}

func TestRegistry_Shift_BetweenConfiguredDepths(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt}, []TypeTag{TypeFloat}, []TypeTag{TypeInt})
	require.NoError(t, reg.Register(1, TypeInt, []string{"x"}, []any{1}))

	err := reg.Shift(2, "x")
	require.ErrorIs(t, err, ErrTypeNotAllowed)
	require.Equal(t, 1, depthOf(t, reg, "x"))

	require.NoError(t, reg.Shift(3, "x"))
	require.Equal(t, 3, depthOf(t, reg, "x"))
}

func TestRegistry_Shift_OriginAcceptsAnyType(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeDict})
	require.NoError(t, reg.Register(1, TypeDict, []string{"d"}, nil))

	require.NoError(t, reg.Shift(0, "d"))

	require.Equal(t, map[string]TypeTag{"d": TypeDict}, reg.Summary().Unconfigured)
}

func TestRegistry_Shift_Unknown(t *testing.T) {
	reg := NewRegistry()

	err := reg.Shift(0, "ghost")

	require.ErrorIs(t, err, ErrUnknownVariable)
}

func TestRegistry_Detach(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt})
	require.NoError(t, reg.Register(1, TypeInt, []string{"x"}, []any{1}))

	require.NoError(t, reg.Detach(1, "x"))

	require.Equal(t, 0, depthOf(t, reg, "x"))
}

func TestRegistry_Detach_Errors(t *testing.T) {
	reg := newTestRegistry(t, []TypeTag{TypeInt}, []TypeTag{TypeFloat})
	require.NoError(t, reg.Register(0, TypeInt, []string{"z"}, []any{5}))
	require.NoError(t, reg.Register(2, TypeFloat, []string{"y"}, []any{3.14}))

	err := reg.Detach(1, "non_existent_var")
	require.ErrorIs(t, err, ErrUnknownVariable)

	err = reg.Detach(1, "z")
	require.ErrorIs(t, err, ErrAlreadyAtOrigin)

	err = reg.Detach(1, "y")
	require.ErrorIs(t, err, ErrNotAtDepth)
	require.Equal(t, 2, depthOf(t, reg, "y"))
}
