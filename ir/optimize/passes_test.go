package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gomlx/tensorir/ir"
)

// TestRunOnEmptyModule covers spec §8's empty-stream boundary: verify passes
// trivially both sides and no pass panics on an empty instruction list.
func TestRunOnEmptyModule(t *testing.T) {
	m := ir.NewModule()
	stats, err := Run(m, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total())
}

// TestRunOnMinimalAllocOpDealloc covers spec §8's single alloc/op/dealloc
// triple: there is nothing to hoist, sink, share, or propagate, so the
// pipeline is a structural no-op on the instructions that matter.
func TestRunOnMinimalAllocOpDealloc(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	a := ir.NewAllocActivation("A", f32(4))
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)

	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	copyInstr := b.Copy(w, a)
	dealloc := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocInstr, splat, copyInstr, dealloc} {
		m.Append(instr)
	}

	_, err := Run(m, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Verify())
	require.Equal(t, 4, m.Len())
}

// TestHoistDeallocMovesToLastUse covers spec §4.2: a dealloc placed right after
// the allocation, with real uses following it, is moved to immediately after
// the last of those uses.
func TestHoistDeallocMovesToLastUse(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	a := ir.NewAllocActivation("A", f32(4))
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)

	allocInstr := b.AllocActivation(a)
	dealloc := b.DeallocActivation(a)
	splat := b.Splat(a, 1.0)
	use1 := b.Copy(w, a)
	use2 := b.Copy(w, a)
	for _, instr := range []*ir.Instruction{allocInstr, dealloc, splat, use1, use2} {
		m.Append(instr)
	}

	moved := hoistDealloc(m)
	require.Equal(t, 1, moved)
	require.Equal(t, dealloc, use2.Next())
	require.Equal(t, use2, dealloc.Prev())
}

// TestHoistDeallocNoOpWhenAlreadyTight covers the case where the dealloc is
// already positioned right after the allocation's last use.
func TestHoistDeallocNoOpWhenAlreadyTight(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	a := ir.NewAllocActivation("A", f32(4))
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)

	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	use := b.Copy(w, a)
	dealloc := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocInstr, splat, use, dealloc} {
		m.Append(instr)
	}

	moved := hoistDealloc(m)
	require.Equal(t, 0, moved)
}

// TestSinkAllocasMovesToFirstUse covers spec §4.3: an allocation declared at
// the top of the stream, with its first real use several instructions later,
// is sunk to sit immediately before that first use.
func TestSinkAllocasMovesToFirstUse(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	a := ir.NewAllocActivation("A", f32(4))
	other := ir.NewAllocActivation("Other", f32(4))
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)

	allocA := b.AllocActivation(a)
	allocOther := b.AllocActivation(other)
	unrelatedSplat := b.Splat(other, 0.0)
	firstUse := b.Splat(a, 1.0)
	use := b.Copy(w, a)
	deallocOther := b.DeallocActivation(other)
	deallocA := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{
		allocA, allocOther, unrelatedSplat, firstUse, use, deallocOther, deallocA,
	} {
		m.Append(instr)
	}

	moved := sinkAllocas(m)
	require.Equal(t, 2, moved)
	require.Equal(t, allocA, firstUse.Prev())
}

// TestInferWeightMutabilityReadOnlyIsConstant covers spec §4.6: a weight read
// only via In operands is classified Constant.
func TestInferWeightMutabilityReadOnlyIsConstant(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)
	a := ir.NewAllocActivation("A", f32(4))

	allocInstr := b.AllocActivation(a)
	use := b.Copy(a, w)
	dealloc := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocInstr, use, dealloc} {
		m.Append(instr)
	}

	inferWeightMutability(m)
	require.Equal(t, ir.Constant, w.Mutability)
}

// TestInferWeightMutabilityWrittenIsMutable covers spec §4.6: a weight that is
// the dest of a write is classified Mutable.
func TestInferWeightMutabilityWrittenIsMutable(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)
	a := ir.NewAllocActivation("A", f32(4))

	allocInstr := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	write := b.Copy(w, a)
	dealloc := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocInstr, splat, write, dealloc} {
		m.Append(instr)
	}

	inferWeightMutability(m)
	require.Equal(t, ir.Mutable, w.Mutability)
}

// TestInferWeightMutabilityUnusedIsConstant covers spec §4.6's edge case: a
// weight with no users at all is vacuously Constant.
func TestInferWeightMutabilityUnusedIsConstant(t *testing.T) {
	m := ir.NewModule()
	w := ir.NewWeightVar("W", f32(4))
	m.AddWeight(w)

	inferWeightMutability(m)
	require.Equal(t, ir.Constant, w.Mutability)
}

// TestDebugInstrumentDoublesTapsAroundOneInstruction covers spec §4.11: an
// elementwise op with two In operands and one Out operand gets two "before"
// taps and one "after" tap; Splat, not being alloc/dealloc/DebugPrint itself,
// also gets its one "after" tap (its sole operand is Out).
func TestDebugInstrumentDoublesTapsAroundOneInstruction(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	a := ir.NewAllocActivation("A", f32(4))
	dst := ir.NewAllocActivation("Dst", f32(4))

	allocA := b.AllocActivation(a)
	allocDst := b.AllocActivation(dst)
	splat := b.Splat(a, 1.0)
	add := b.ElementAdd(dst, a, a)
	deallocDst := b.DeallocActivation(dst)
	deallocA := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocA, allocDst, splat, add, deallocDst, deallocA} {
		m.Append(instr)
	}

	inserted := debugInstrument(m)
	require.Equal(t, 4, inserted)
	require.NoError(t, m.Verify())

	var debugPrints int
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindDebugPrint {
			debugPrints++
		}
	}
	require.Equal(t, 4, debugPrints)
}

// TestReshapeThenDeadAllocSweepConverges covers spec §8's two-pass cleanup: a
// Reshape lowers to a TensorView retype plus a Copy (peephole), after which
// the identity-view rule and a dead-alloc sweep together erase the now-unused
// intermediate view.
func TestReshapeThenDeadAllocSweepConverges(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	src := ir.NewAllocActivation("src", f32(6))
	dst := ir.NewAllocActivation("dst", f32(6))

	allocSrc := b.AllocActivation(src)
	allocDst := b.AllocActivation(dst)
	splat := b.Splat(src, 1.0)
	reshape := b.Reshape(dst, src)
	deallocDst := b.DeallocActivation(dst)
	deallocSrc := b.DeallocActivation(src)
	for _, instr := range []*ir.Instruction{allocSrc, allocDst, splat, reshape, deallocDst, deallocSrc} {
		m.Append(instr)
	}

	_, err := Run(m, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, m.Verify())

	for _, instr := range m.InstructionSlice() {
		require.NotEqual(t, ir.KindTensorView, instr.Kind)
		require.NotEqual(t, ir.KindReshape, instr.Kind)
	}
}

// TestSoftMaxWithEFiresWhenEScratchNeverRead covers spec §4.10's SoftMaxWithE
// rule: eScratch's only other user overwrites it (Out), never reads it, so
// eScratch's definition here is safe to drop.
func TestSoftMaxWithEFiresWhenEScratchNeverRead(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	dest := ir.NewAllocActivation("dest", f32(4))
	src := ir.NewAllocActivation("src", f32(4))
	sel := ir.NewAllocActivation("sel", f32(4))
	eScratch := ir.NewAllocActivation("eScratch", f32(4))

	allocDest := b.AllocActivation(dest)
	allocSrc := b.AllocActivation(src)
	allocSel := b.AllocActivation(sel)
	allocE := b.AllocActivation(eScratch)
	softMaxE := b.SoftMaxWithE(dest, src, sel, eScratch)
	overwriteE := b.Splat(eScratch, 0.0)
	deallocDest := b.DeallocActivation(dest)
	deallocSrc := b.DeallocActivation(src)
	deallocSel := b.DeallocActivation(sel)
	deallocE := b.DeallocActivation(eScratch)
	for _, instr := range []*ir.Instruction{
		allocDest, allocSrc, allocSel, allocE, softMaxE, overwriteE,
		deallocDest, deallocSrc, deallocSel, deallocE,
	} {
		m.Append(instr)
	}

	require.True(t, rewriteSoftMaxWithE(m, ir.NewBuilder(), softMaxE))
	require.NoError(t, m.Verify())

	var sawSoftMax, sawSoftMaxWithE bool
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindSoftMax {
			sawSoftMax = true
		}
		if instr.Kind == ir.KindSoftMaxWithE {
			sawSoftMaxWithE = true
		}
	}
	require.True(t, sawSoftMax)
	require.False(t, sawSoftMaxWithE)
}

// TestSoftMaxWithENoFireWhenEScratchIsRead covers the converse: a downstream
// reader of eScratch (e.g. a training backward pass) blocks the rewrite, since
// dropping eScratch's definition would leave that read referencing an undefined
// buffer.
func TestSoftMaxWithENoFireWhenEScratchIsRead(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	dest := ir.NewAllocActivation("dest", f32(4))
	src := ir.NewAllocActivation("src", f32(4))
	sel := ir.NewAllocActivation("sel", f32(4))
	eScratch := ir.NewAllocActivation("eScratch", f32(4))
	w := ir.NewWeightVar("w", f32(4))
	m.AddWeight(w)

	allocDest := b.AllocActivation(dest)
	allocSrc := b.AllocActivation(src)
	allocSel := b.AllocActivation(sel)
	allocE := b.AllocActivation(eScratch)
	softMaxE := b.SoftMaxWithE(dest, src, sel, eScratch)
	readE := b.Copy(w, eScratch)
	deallocDest := b.DeallocActivation(dest)
	deallocSrc := b.DeallocActivation(src)
	deallocSel := b.DeallocActivation(sel)
	deallocE := b.DeallocActivation(eScratch)
	for _, instr := range []*ir.Instruction{
		allocDest, allocSrc, allocSel, allocE, softMaxE, readE,
		deallocDest, deallocSrc, deallocSel, deallocE,
	} {
		m.Append(instr)
	}

	require.False(t, rewriteSoftMaxWithE(m, ir.NewBuilder(), softMaxE))
	require.Equal(t, ir.KindSoftMaxWithE, softMaxE.Kind)
	require.NoError(t, m.Verify())
}

// TestPoolMaxWithXYFiresWhenXYScratchUnused covers spec §4.10's PoolMaxWithXY
// rule: xyScratch's only users are its own alloc, the pool op and its dealloc, so
// it is unread downstream and the rewrite to PoolMax fires.
func TestPoolMaxWithXYFiresWhenXYScratchUnused(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	dest := ir.NewAllocActivation("dest", f32(4))
	src := ir.NewAllocActivation("src", f32(4))
	xyScratch := ir.NewAllocActivation("xyScratch", f32(4))

	allocDest := b.AllocActivation(dest)
	allocSrc := b.AllocActivation(src)
	allocXY := b.AllocActivation(xyScratch)
	poolXY := b.PoolMaxWithXY(dest, src, xyScratch, ir.PoolParams{KernelH: 2, KernelW: 2, StrideH: 2, StrideW: 2})
	deallocDest := b.DeallocActivation(dest)
	deallocSrc := b.DeallocActivation(src)
	deallocXY := b.DeallocActivation(xyScratch)
	for _, instr := range []*ir.Instruction{
		allocDest, allocSrc, allocXY, poolXY, deallocDest, deallocSrc, deallocXY,
	} {
		m.Append(instr)
	}

	require.True(t, rewritePoolMaxWithXY(m, ir.NewBuilder(), poolXY))
	require.NoError(t, m.Verify())

	var sawPoolMax, sawPoolMaxWithXY bool
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindPoolMax {
			sawPoolMax = true
		}
		if instr.Kind == ir.KindPoolMaxWithXY {
			sawPoolMaxWithXY = true
		}
	}
	require.True(t, sawPoolMax)
	require.False(t, sawPoolMaxWithXY)
}

// TestPoolMaxWithXYNoFireWhenXYScratchIsRead covers the converse: a downstream
// reader of xyScratch (e.g. a backward pass consuming the argmax coordinates)
// blocks the rewrite.
func TestPoolMaxWithXYNoFireWhenXYScratchIsRead(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	dest := ir.NewAllocActivation("dest", f32(4))
	src := ir.NewAllocActivation("src", f32(4))
	xyScratch := ir.NewAllocActivation("xyScratch", f32(4))
	w := ir.NewWeightVar("w", f32(4))
	m.AddWeight(w)

	allocDest := b.AllocActivation(dest)
	allocSrc := b.AllocActivation(src)
	allocXY := b.AllocActivation(xyScratch)
	poolXY := b.PoolMaxWithXY(dest, src, xyScratch, ir.PoolParams{KernelH: 2, KernelW: 2, StrideH: 2, StrideW: 2})
	readXY := b.Copy(w, xyScratch)
	deallocDest := b.DeallocActivation(dest)
	deallocSrc := b.DeallocActivation(src)
	deallocXY := b.DeallocActivation(xyScratch)
	for _, instr := range []*ir.Instruction{
		allocDest, allocSrc, allocXY, poolXY, readXY, deallocDest, deallocSrc, deallocXY,
	} {
		m.Append(instr)
	}

	require.False(t, rewritePoolMaxWithXY(m, ir.NewBuilder(), poolXY))
	require.Equal(t, ir.KindPoolMaxWithXY, poolXY.Kind)
	require.NoError(t, m.Verify())
}

// TestBufferSharingDoesNotRenameLiveWeight covers the correction to spec §4.5
// steps 1 and 3: a mutable weight W written by an in-place-eligible instruction
// and read afterward must never be buffer-shared away, since allocationOrigin
// skips WeightVar origins in the live-set bookkeeping and W was seeded live at
// the start of the reverse walk.
func TestBufferSharingDoesNotRenameLiveWeight(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder()
	w := ir.NewWeightVar("W", f32(4))
	w.Mutability = ir.Mutable
	m.AddWeight(w)
	a := ir.NewAllocActivation("A", f32(4))
	out := ir.NewWeightVar("out", f32(4))
	m.AddWeight(out)

	allocA := b.AllocActivation(a)
	splat := b.Splat(a, 1.0)
	add := b.ElementAdd(w, a, a)
	readW := b.Copy(out, w)
	deallocA := b.DeallocActivation(a)
	for _, instr := range []*ir.Instruction{allocA, splat, add, readW, deallocA} {
		m.Append(instr)
	}

	bufferSharing(m)
	require.NoError(t, m.Verify())
	require.Equal(t, "W", add.OperandValue(0).Name())
	require.Equal(t, "W", readW.OperandValue(1).Name())
}
