package ir

import "github.com/gomlx/exceptions"

// Operand is one operand slot of an Instruction: a Value together with the access
// mode the instruction uses it with.
type Operand struct {
	Value Value
	Kind  OperandKind
}

// PoolParams is kind-specific metadata for the pooling kinds.
type PoolParams struct {
	KernelH, KernelW int
	StrideH, StrideW int
	PadH, PadW       int
}

// Instruction is an ordered node in a Module's instruction stream.
type Instruction struct {
	module     *Module
	prev, next *Instruction

	Kind     Kind
	Name     string
	Operands []Operand

	// View holds the declared value for Kind == KindTensorView. It is nil for every
	// other kind. Kept off Operands so a view with no further readers carries zero
	// users (§4.4 step 1) instead of inflating its own user count.
	View *TensorView

	// Pool is only meaningful for the pooling kinds.
	Pool PoolParams
	// SplatValue is only meaningful for Kind == Splat.
	SplatValue float64
}

// newInstruction allocates a detached instruction (not yet part of any Module's
// stream) and wires its operands' user lists. Mirrors backends/simplego's
// Builder.newNode, generalized from "append to a DAG" to "wire users of an
// out-of-stream node the caller will position explicitly".
func newInstruction(kind Kind, name string, operands []Operand) *Instruction {
	instr := &Instruction{Kind: kind, Name: name, Operands: operands}
	for idx, op := range operands {
		if op.Value == nil {
			exceptions.Panicf("newInstruction(%s %q): operand #%d is nil", kind, name, idx)
		}
		op.Value.addUser(Use{Instr: instr, OperandIndex: idx})
	}
	return instr
}

// SetOperand rewires operand slot idx to reference v, unwiring the previous value's
// user edge and wiring v's, atomically from the caller's point of view. This is the
// only sanctioned way to change an operand in place (§9, "Cyclic user graph").
func (instr *Instruction) SetOperand(idx int, v Value) {
	old := instr.Operands[idx].Value
	if old == v {
		return
	}
	if old != nil {
		old.removeUser(instr, idx)
	}
	instr.Operands[idx].Value = v
	if v != nil {
		v.addUser(Use{Instr: instr, OperandIndex: idx})
	}
}

// Prev returns the previous instruction in stream order, or nil at the head.
func (instr *Instruction) Prev() *Instruction { return instr.prev }

// Next returns the next instruction in stream order, or nil at the tail.
func (instr *Instruction) Next() *Instruction { return instr.next }

// Module returns the Module this instruction currently belongs to, or nil if detached.
func (instr *Instruction) Module() *Module { return instr.module }

// OperandValue is a convenience accessor for Operands[idx].Value.
func (instr *Instruction) OperandValue(idx int) Value { return instr.Operands[idx].Value }

// Uses reports whether any operand of instr references v's allocation origin.
func (instr *Instruction) Uses(v Value) bool {
	target := OriginOf(v)
	for _, op := range instr.Operands {
		if OriginOf(op.Value) == target {
			return true
		}
	}
	return false
}
