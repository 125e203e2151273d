package ir

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Module holds a single straight-line instruction stream plus the weights it
// references. The stream is a doubly-linked list so passes can insert, erase and
// move instructions in O(1) given a position, the way §3 requires.
//
// Grounded on backends/simplego's Builder (which owns all Nodes in a slice); here
// identity is a pointer and position is a linked-list slot instead of a slice index,
// since passes reorder instructions in place rather than only ever appending.
type Module struct {
	first, last *Instruction
	length      int
	weights     []*WeightVar
}

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{}
}

// AddWeight registers a weight as belonging to this module. Weights must be
// registered before any instruction referencing them is inserted.
func (m *Module) AddWeight(w *WeightVar) {
	m.weights = append(m.weights, w)
}

// Weights returns a snapshot of the registered weights.
func (m *Module) Weights() []*WeightVar {
	return append([]*WeightVar(nil), m.weights...)
}

// Len returns the number of instructions currently in the stream.
func (m *Module) Len() int { return m.length }

// First returns the first instruction in stream order, or nil if empty.
func (m *Module) First() *Instruction { return m.first }

// Last returns the last instruction in stream order, or nil if empty.
func (m *Module) Last() *Instruction { return m.last }

// Instructions iterates the stream forward. The current instruction may be erased
// from within the loop body; the next one to visit is captured before the body runs
// (§9, "capture next before current").
func (m *Module) Instructions() iter.Seq[*Instruction] {
	return func(yield func(*Instruction) bool) {
		for i := m.first; i != nil; {
			next := i.next
			if !yield(i) {
				return
			}
			i = next
		}
	}
}

// ReverseInstructions iterates the stream backward, with the same erase-current
// safety as Instructions.
func (m *Module) ReverseInstructions() iter.Seq[*Instruction] {
	return func(yield func(*Instruction) bool) {
		for i := m.last; i != nil; {
			prev := i.prev
			if !yield(i) {
				return
			}
			i = prev
		}
	}
}

// InstructionSlice snapshots the stream forward. Use this (instead of Instructions)
// when a pass needs to erase instructions other than the one currently visited, or
// moves instructions around while scanning (§9, "collect candidates, erase in a
// second pass").
func (m *Module) InstructionSlice() []*Instruction {
	out := make([]*Instruction, 0, m.length)
	for i := m.first; i != nil; i = i.next {
		out = append(out, i)
	}
	return out
}

// ReverseInstructionSlice snapshots the stream backward.
func (m *Module) ReverseInstructionSlice() []*Instruction {
	out := make([]*Instruction, 0, m.length)
	for i := m.last; i != nil; i = i.prev {
		out = append(out, i)
	}
	return out
}

// InsertBefore inserts instr immediately before at. If at is nil, instr is appended
// at the tail.
func (m *Module) InsertBefore(at, instr *Instruction) {
	m.checkDetached(instr)
	instr.module = m
	if at == nil {
		instr.prev = m.last
		instr.next = nil
		if m.last != nil {
			m.last.next = instr
		} else {
			m.first = instr
		}
		m.last = instr
	} else {
		m.checkOwned(at)
		instr.prev = at.prev
		instr.next = at
		if at.prev != nil {
			at.prev.next = instr
		} else {
			m.first = instr
		}
		at.prev = instr
	}
	m.length++
}

// InsertAfter inserts instr immediately after at. If at is nil, instr is prepended
// at the head.
func (m *Module) InsertAfter(at, instr *Instruction) {
	m.checkDetached(instr)
	instr.module = m
	if at == nil {
		instr.next = m.first
		instr.prev = nil
		if m.first != nil {
			m.first.prev = instr
		} else {
			m.last = instr
		}
		m.first = instr
	} else {
		m.checkOwned(at)
		instr.next = at.next
		instr.prev = at
		if at.next != nil {
			at.next.prev = instr
		} else {
			m.last = instr
		}
		at.next = instr
	}
	m.length++
}

// Append inserts instr at the tail of the stream.
func (m *Module) Append(instr *Instruction) { m.InsertBefore(nil, instr) }

// Prepend inserts instr at the head of the stream.
func (m *Module) Prepend(instr *Instruction) { m.InsertAfter(nil, instr) }

// Erase removes instr from the stream and unwires every user edge its operands hold,
// per §3's "Erasure goes through Module.erase, which unwires users first."
func (m *Module) Erase(instr *Instruction) {
	m.checkOwned(instr)
	for idx, op := range instr.Operands {
		if op.Value != nil {
			op.Value.removeUser(instr, idx)
		}
	}
	m.unlink(instr)
}

// RemoveWithoutDestroy detaches instr from the stream without unwiring its operand
// users: the instruction keeps its identity and can be reinserted later with
// InsertBefore/InsertAfter. Used by sink-alloca (§4.3), which relocates an
// AllocActivation instruction rather than recreating it.
func (m *Module) RemoveWithoutDestroy(instr *Instruction) {
	m.checkOwned(instr)
	m.unlink(instr)
}

// Move relocates an already-linked instr to immediately before at. Moving an
// instruction to its own current position is a programmer error (§7) and panics.
func (m *Module) Move(at, instr *Instruction) {
	if at == instr {
		exceptions.Panicf("Module.Move: cannot move instruction %q to its own position", instr.Name)
	}
	m.checkOwned(instr)
	alreadyThere := instr.next == at || (at == nil && instr == m.last)
	if alreadyThere {
		exceptions.Panicf("Module.Move: instruction %q is already at the requested position", instr.Name)
	}
	m.unlink(instr)
	m.InsertBefore(at, instr)
}

// MoveAfter relocates an already-linked instr to immediately after at.
func (m *Module) MoveAfter(at, instr *Instruction) {
	if at == instr {
		exceptions.Panicf("Module.MoveAfter: cannot move instruction %q to its own position", instr.Name)
	}
	m.checkOwned(instr)
	alreadyThere := instr.prev == at || (at == nil && instr == m.first)
	if alreadyThere {
		return
	}
	m.unlink(instr)
	m.InsertAfter(at, instr)
}

func (m *Module) unlink(instr *Instruction) {
	if instr.prev != nil {
		instr.prev.next = instr.next
	} else {
		m.first = instr.next
	}
	if instr.next != nil {
		instr.next.prev = instr.prev
	} else {
		m.last = instr.prev
	}
	instr.prev, instr.next, instr.module = nil, nil, nil
	m.length--
}

func (m *Module) checkDetached(instr *Instruction) {
	if instr.module != nil {
		exceptions.Panicf("Module: instruction %q is already part of a module, cannot insert it again", instr.Name)
	}
}

func (m *Module) checkOwned(instr *Instruction) {
	if instr.module != m {
		exceptions.Panicf("Module: instruction %q does not belong to this module", instr.Name)
	}
}
