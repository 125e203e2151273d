package ir

import (
	"strconv"

	"github.com/gomlx/tensorir/types/shapes"
)

// Builder creates kind-tagged instructions and wires their operands' user lists.
// It never positions an instruction in a stream -- that's Module's job (InsertBefore,
// InsertAfter, Append, Move). This mirrors backends/simplego's Builder, generalized
// from "always append to the end of the DAG" to "hand back a detached instruction the
// caller places explicitly", since passes rewrite a linear stream in place rather
// than only ever growing one.
type Builder struct {
	counter int
}

// NewBuilder returns a Builder that wires instructions' users. It holds no reference
// to a Module: callers place the result with one of Module's insertion methods.
func NewBuilder() *Builder {
	return &Builder{}
}

// NextTemp returns a fresh name of the form "<prefix>.<n>", unique within this
// Builder's lifetime. Used by passes (peephole, debug instrumentation) that
// synthesize new values and don't have a more descriptive name on hand.
func (b *Builder) NextTemp(prefix string) string {
	b.counter++
	return prefix + "." + strconv.Itoa(b.counter)
}

func operand(v Value, kind OperandKind) Operand { return Operand{Value: v, Kind: kind} }

// AllocActivation returns an instruction that introduces alloc. Operands[0] is
// (alloc, Out).
func (b *Builder) AllocActivation(alloc *AllocActivation) *Instruction {
	return newInstruction(KindAllocActivation, alloc.Name()+".alloc", []Operand{operand(alloc, Out)})
}

// DeallocActivation returns an instruction that ends alloc's lifetime. Operands[0]
// is (alloc, Out): ending a lifetime clobbers the slot symmetrically with the Out
// that began it, so buffer sharing's reverse walk (§4.5) treats the dealloc as the
// point past which nothing needs the allocation's value, rather than as a reader
// that would keep it artificially live.
func (b *Builder) DeallocActivation(alloc *AllocActivation) *Instruction {
	return newInstruction(KindDeallocActivation, alloc.Name()+".dealloc", []Operand{operand(alloc, Out)})
}

// TensorView returns an instruction declaring a new TensorView of source under
// shape. Per I4 the instruction has no buffer-affecting operands: the view value it
// produces is reachable via the returned instruction's View field, not via Operands,
// so a view with no further readers has zero users (§4.4 step 1) rather than the
// self-referencing count alloc/dealloc pairs need (§9 open question).
func (b *Builder) TensorView(name string, source Value, shape shapes.Shape) *Instruction {
	view := NewTensorView(name, source, shape)
	instr := newInstruction(KindTensorView, name, nil)
	instr.View = view
	return instr
}

// Copy returns an instruction copying src into dest.
func (b *Builder) Copy(dest, src Value) *Instruction {
	return newInstruction(KindCopy, dest.Name()+".copy", []Operand{operand(dest, Out), operand(src, In)})
}

// DebugPrint returns an instruction that reads (never mutates) v for diagnostics.
func (b *Builder) DebugPrint(name string, v Value) *Instruction {
	return newInstruction(KindDebugPrint, name, []Operand{operand(v, In)})
}

// Splat returns an instruction that fills dest with value.
func (b *Builder) Splat(dest Value, value float64) *Instruction {
	instr := newInstruction(KindSplat, dest.Name()+".splat", []Operand{operand(dest, Out)})
	instr.SplatValue = value
	return instr
}

// Reshape returns an instruction that materializes src under dest's shape.
func (b *Builder) Reshape(dest, src Value) *Instruction {
	return newInstruction(KindReshape, dest.Name()+".reshape", []Operand{operand(dest, Out), operand(src, In)})
}

// Transpose returns an instruction that permutes src's axes into dest.
func (b *Builder) Transpose(dest, src Value) *Instruction {
	return newInstruction(KindTranspose, dest.Name()+".transpose", []Operand{operand(dest, Out), operand(src, In)})
}

// ElementAdd returns dest = lhs + rhs, elementwise.
func (b *Builder) ElementAdd(dest, lhs, rhs Value) *Instruction {
	return newInstruction(KindElementAdd, dest.Name()+".add", []Operand{operand(dest, Out), operand(lhs, In), operand(rhs, In)})
}

// ElementMul returns dest = lhs * rhs, elementwise.
func (b *Builder) ElementMul(dest, lhs, rhs Value) *Instruction {
	return newInstruction(KindElementMul, dest.Name()+".mul", []Operand{operand(dest, Out), operand(lhs, In), operand(rhs, In)})
}

// ElementMax returns dest = max(lhs, rhs), elementwise.
func (b *Builder) ElementMax(dest, lhs, rhs Value) *Instruction {
	return newInstruction(KindElementMax, dest.Name()+".max", []Operand{operand(dest, Out), operand(lhs, In), operand(rhs, In)})
}

// PoolMaxWithXY returns a max-pool of src into dest that also records argmax
// coordinates into the xyScratch buffer.
func (b *Builder) PoolMaxWithXY(dest, src, xyScratch Value, params PoolParams) *Instruction {
	instr := newInstruction(KindPoolMaxWithXY, dest.Name()+".poolmaxxy",
		[]Operand{operand(dest, Out), operand(src, In), operand(xyScratch, Out)})
	instr.Pool = params
	return instr
}

// PoolMax returns an inference-only max-pool of src into dest.
func (b *Builder) PoolMax(dest, src Value, params PoolParams) *Instruction {
	instr := newInstruction(KindPoolMax, dest.Name()+".poolmax", []Operand{operand(dest, Out), operand(src, In)})
	instr.Pool = params
	return instr
}

// SoftMaxWithE returns a softmax of src (selected by sel) into dest that also keeps
// the exponentiated intermediate in eScratch.
func (b *Builder) SoftMaxWithE(dest, src, sel, eScratch Value) *Instruction {
	return newInstruction(KindSoftMaxWithE, dest.Name()+".softmaxe",
		[]Operand{operand(dest, Out), operand(src, In), operand(sel, In), operand(eScratch, Out)})
}

// SoftMax returns an inference-only softmax of src (selected by sel) into dest.
func (b *Builder) SoftMax(dest, src, sel Value) *Instruction {
	return newInstruction(KindSoftMax, dest.Name()+".softmax", []Operand{operand(dest, Out), operand(src, In), operand(sel, In)})
}

// Conv2D returns dest = conv2d(src, kernel).
func (b *Builder) Conv2D(dest, src, kernel Value, params PoolParams) *Instruction {
	instr := newInstruction(KindConv2D, dest.Name()+".conv2d",
		[]Operand{operand(dest, Out), operand(src, In), operand(kernel, In)})
	instr.Pool = params
	return instr
}
