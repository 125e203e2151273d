package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/tensorir/types/shapes"
)

func f32(dims ...int) shapes.Shape { return shapes.Make(shapes.Float32, dims...) }

func TestBuilderWiresUsers(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))

	allocInstr := b.AllocActivation(a)
	m.Append(allocInstr)
	require.Len(t, a.Users(), 1)

	splat := b.Splat(a, 1.0)
	m.Append(splat)
	require.Len(t, a.Users(), 2)

	dealloc := b.DeallocActivation(a)
	m.Append(dealloc)
	require.Len(t, a.Users(), 3)

	require.NoError(t, m.Verify())
}

func TestTensorViewHasNoOperandsAndNoSelfUser(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(2, 3))
	m.Append(b.AllocActivation(a))

	viewInstr := b.TensorView("a.view", a, f32(6))
	m.Append(viewInstr)
	require.Empty(t, viewInstr.Operands)
	require.Equal(t, 0, len(viewInstr.View.Users()))

	m.Append(b.DeallocActivation(a))
	require.NoError(t, m.Verify())
}

func TestSetOperandRewiresUsers(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))
	c := NewAllocActivation("c", f32(4))
	m.Append(b.AllocActivation(a))
	m.Append(b.AllocActivation(c))

	splat := b.Splat(a, 1.0)
	m.Append(splat)
	require.Len(t, a.Users(), 2)
	require.Len(t, c.Users(), 1)

	splat.SetOperand(0, c)
	require.Len(t, a.Users(), 1)
	require.Len(t, c.Users(), 2)
}
