package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/types/shapes"
)

// Use is a back-edge from a Value to one of the operand slots that references it.
type Use struct {
	Instr        *Instruction
	OperandIndex int
}

// Kind returns the OperandKind of the referencing slot.
func (u Use) Kind() OperandKind {
	return u.Instr.Operands[u.OperandIndex].Kind
}

// Value is the abstract base of anything addressable by an Instruction operand: a
// WeightVar, an AllocActivation, or a TensorView over one of those.
type Value interface {
	Name() string
	Shape() shapes.Shape
	// Users returns a snapshot copy of the current user list, so callers may mutate
	// operands while iterating it (see ReplaceAllNonDeallocUsersWith).
	Users() []Use

	addUser(u Use)
	removeUser(instr *Instruction, operandIndex int)
}

// valueBase is embedded by every concrete Value to provide the user-list bookkeeping
// and shape/name storage. Grounded on backends/simplego's Node, which keeps a single
// place (Builder.nodes) owning identity while every reference to it is by pointer.
type valueBase struct {
	name  string
	shape shapes.Shape
	users []Use
}

func (b *valueBase) Name() string    { return b.name }
func (b *valueBase) Shape() shapes.Shape { return b.shape }

func (b *valueBase) Users() []Use {
	return append([]Use(nil), b.users...)
}

func (b *valueBase) addUser(u Use) {
	b.users = append(b.users, u)
}

func (b *valueBase) removeUser(instr *Instruction, operandIndex int) {
	for i, u := range b.users {
		if u.Instr == instr && u.OperandIndex == operandIndex {
			b.users = append(b.users[:i], b.users[i+1:]...)
			return
		}
	}
	exceptions.Panicf("removeUser: no matching use of %q in instruction %q operand #%d", b.name, instr.Name, operandIndex)
}

// Mutability classifies a WeightVar after the weight-mutability-inference pass (§4.6).
type Mutability int

const (
	// Unknown is the mutability of a WeightVar before inference has run.
	Unknown Mutability = iota
	Constant
	Mutable
)

func (m Mutability) String() string {
	switch m {
	case Constant:
		return "Constant"
	case Mutable:
		return "Mutable"
	}
	return "Unknown"
}

// WeightVar is a named, externally visible tensor location whose lifetime spans the
// whole program.
type WeightVar struct {
	valueBase
	Mutability Mutability

	// Public marks a weight whose observable writes the optimizer must preserve
	// bit-for-bit (§8, semantic preservation). It is never read by any pass; it exists
	// so tests can check that no rewrite touches a Public weight's final value.
	Public bool
}

// NewWeightVar creates a new weight location. It starts with Mutability Unknown;
// the optimize package's weight-mutability pass classifies it.
func NewWeightVar(name string, shape shapes.Shape) *WeightVar {
	return &WeightVar{valueBase: valueBase{name: name, shape: shape}}
}

// AllocActivation is a compiler-introduced activation buffer, delimited by a matching
// DeallocActivation instruction.
type AllocActivation struct {
	valueBase
}

// NewAllocActivation creates a new activation location. It is not yet live in any
// Module until an AllocActivation instruction referencing it is inserted.
func NewAllocActivation(name string, shape shapes.Shape) *AllocActivation {
	return &AllocActivation{valueBase: valueBase{name: name, shape: shape}}
}

// TensorView is a zero-copy reinterpretation of another Value under a (possibly
// different) Shape. It reads and writes no buffer content: any use of a TensorView
// counts as a use of its Source's origin (see OriginOf/AllocationOrigin).
type TensorView struct {
	valueBase
	Source Value
}

// NewTensorView creates a view of source under the given shape. It is not wired into
// any instruction stream until used as an operand.
func NewTensorView(name string, source Value, shape shapes.Shape) *TensorView {
	if source == nil {
		exceptions.Panicf("NewTensorView(%q): source is nil", name)
	}
	return &TensorView{valueBase: valueBase{name: name, shape: shape}, Source: source}
}

// OriginOf follows the chain of TensorView.Source until it reaches a non-view Value.
func OriginOf(v Value) Value {
	for {
		view, ok := v.(*TensorView)
		if !ok {
			return v
		}
		v = view.Source
	}
}

// AllocationOrigin returns the AllocActivation that v is ultimately a view of, if any.
// It looks through TensorView chains; if the terminal origin is a WeightVar (or v is
// nil), ok is false.
func AllocationOrigin(v Value) (alloc *AllocActivation, ok bool) {
	if v == nil {
		return nil, false
	}
	alloc, ok = OriginOf(v).(*AllocActivation)
	return alloc, ok
}
