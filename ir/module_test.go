package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleInsertOrder(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))

	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	dealloc := b.DeallocActivation(a)

	m.Append(allocInstr)
	m.Append(dealloc)
	m.InsertBefore(dealloc, splat)

	var names []string
	for instr := range m.Instructions() {
		names = append(names, instr.Name)
	}
	require.Equal(t, []string{allocInstr.Name, splat.Name, dealloc.Name}, names)
}

func TestModuleMovePanicsOnSelfPosition(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))
	allocInstr := b.AllocActivation(a)
	m.Append(allocInstr)

	require.Panics(t, func() { m.Move(allocInstr, allocInstr) })
}

func TestModuleEraseUnwiresUsers(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))
	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	m.Append(allocInstr)
	m.Append(splat)
	require.Len(t, a.Users(), 2)

	m.Erase(splat)
	require.Len(t, a.Users(), 1)
	require.Equal(t, 1, m.Len())
}

func TestModuleRemoveWithoutDestroyPreservesIdentity(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))
	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	dealloc := b.DeallocActivation(a)
	m.Append(allocInstr)
	m.Append(splat)
	m.Append(dealloc)

	m.RemoveWithoutDestroy(allocInstr)
	require.Len(t, a.Users(), 3)
	require.Equal(t, 2, m.Len())

	m.InsertBefore(splat, allocInstr)
	require.Equal(t, 3, m.Len())
	require.NoError(t, m.Verify())
}

func TestReverseInstructions(t *testing.T) {
	m := NewModule()
	b := NewBuilder()
	a := NewAllocActivation("a", f32(4))
	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	dealloc := b.DeallocActivation(a)
	m.Append(allocInstr)
	m.Append(splat)
	m.Append(dealloc)

	var names []string
	for instr := range m.ReverseInstructions() {
		names = append(names, instr.Name)
	}
	require.Equal(t, []string{dealloc.Name, splat.Name, allocInstr.Name}, names)
}
