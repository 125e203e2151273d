package optimize

import "github.com/gomlx/tensorir/ir"

// soleWriter returns the instruction that is v's only real writer (operand kind
// Out or InOut), and whether exactly one such writer exists. The AllocActivation
// and DeallocActivation instructions that bookend v's lifetime are lifecycle
// bookkeeping, not writes of its content, and are excluded from the count even
// though they register as Out users structurally.
func soleWriter(v ir.Value) (*ir.Instruction, bool) {
	var writer *ir.Instruction
	count := 0
	for _, u := range v.Users() {
		if u.Instr.Kind == ir.KindAllocActivation || u.Instr.Kind == ir.KindDeallocActivation {
			continue
		}
		if u.Kind() == ir.Out || u.Kind() == ir.InOut {
			count++
			writer = u.Instr
		}
	}
	if count != 1 {
		return nil, false
	}
	return writer, true
}

// peephole repeatedly applies the rewrites of spec §4.10 to a fixpoint, using a
// builder that wires users as it creates replacement instructions.
func peephole(m *ir.Module) int {
	b := ir.NewBuilder()
	total := 0
	for {
		changed := false
		for _, instr := range m.InstructionSlice() {
			if instr.Module() == nil {
				continue
			}
			if peepholeStep(m, b, instr) {
				changed = true
				total++
			}
		}
		if !changed {
			break
		}
	}
	return total
}

func peepholeStep(m *ir.Module, b *ir.Builder, instr *ir.Instruction) bool {
	switch instr.Kind {
	case ir.KindPoolMaxWithXY:
		return rewritePoolMaxWithXY(m, b, instr)
	case ir.KindSoftMaxWithE:
		return rewriteSoftMaxWithE(m, b, instr)
	case ir.KindReshape:
		return rewriteReshape(m, b, instr)
	case ir.KindTranspose:
		return rewriteTransposeOfSplat(m, b, instr)
	case ir.KindElementMax:
		return rewriteCanonicalizeSplatOperand(instr)
	case ir.KindTensorView:
		return rewriteIdentityView(instr)
	case ir.KindCopy:
		return rewriteSelfCopy(m, instr)
	}
	return false
}

// scratchOnlyUsedHere reports whether v (a scratch AllocActivation) has no users
// besides its own declaration, the given instruction, and optionally its dealloc
// -- i.e. nothing downstream actually reads the scratch contents.
func scratchOnlyUsedHere(v ir.Value, instr *ir.Instruction) bool {
	for _, u := range v.Users() {
		if u.Instr == instr || u.Instr.Kind == ir.KindAllocActivation || u.Instr.Kind == ir.KindDeallocActivation {
			continue
		}
		return false
	}
	return true
}

// PoolMaxWithXY(dest, src, xyScratch) -> PoolMax(dest, src), when xyScratch is an
// AllocActivation used by nothing besides its own declaration, this op and its dealloc.
func rewritePoolMaxWithXY(m *ir.Module, b *ir.Builder, instr *ir.Instruction) bool {
	xyScratch, ok := instr.OperandValue(2).(*ir.AllocActivation)
	if !ok || !scratchOnlyUsedHere(xyScratch, instr) {
		return false
	}
	dest, src := instr.OperandValue(0), instr.OperandValue(1)
	replacement := b.PoolMax(dest, src, instr.Pool)
	m.InsertBefore(instr, replacement)
	m.Erase(instr)
	return true
}

// SoftMaxWithE(dest, src, sel, eScratch) -> SoftMax(dest, src, sel), when eScratch
// is used only as Out anywhere except by this instruction -- i.e. nothing
// downstream ever reads it, so dropping its definition here is safe.
func rewriteSoftMaxWithE(m *ir.Module, b *ir.Builder, instr *ir.Instruction) bool {
	eScratch := instr.OperandValue(3)
	for _, u := range eScratch.Users() {
		if u.Instr == instr || u.Instr.Kind == ir.KindAllocActivation || u.Instr.Kind == ir.KindDeallocActivation {
			continue
		}
		if u.Kind() != ir.Out {
			return false
		}
	}
	dest, src, sel := instr.OperandValue(0), instr.OperandValue(1), instr.OperandValue(2)
	replacement := b.SoftMax(dest, src, sel)
	m.InsertBefore(instr, replacement)
	m.Erase(instr)
	return true
}

// Reshape(dest, src) -> TensorView v = src as dest.type; Copy(dest <- v). Always fires.
func rewriteReshape(m *ir.Module, b *ir.Builder, instr *ir.Instruction) bool {
	dest, src := instr.OperandValue(0), instr.OperandValue(1)
	viewName := b.NextTemp(instr.Name + ".view")
	viewInstr := b.TensorView(viewName, src, dest.Shape())
	copyInstr := b.Copy(dest, viewInstr.View)
	m.InsertBefore(instr, viewInstr)
	m.InsertBefore(instr, copyInstr)
	m.Erase(instr)
	return true
}

// Transpose(dest, src) where the sole writer of src is a Splat -> Copy(dest <-
// src), with a TensorView retype inserted if the shapes differ: a transpose of a
// uniform fill is still a uniform fill.
func rewriteTransposeOfSplat(m *ir.Module, b *ir.Builder, instr *ir.Instruction) bool {
	dest, src := instr.OperandValue(0), instr.OperandValue(1)
	writer, ok := soleWriter(src)
	if !ok || writer.Kind != ir.KindSplat {
		return false
	}

	var copySrc ir.Value = src
	if !dest.Shape().Equal(src.Shape()) {
		viewName := b.NextTemp(instr.Name + ".view")
		viewInstr := b.TensorView(viewName, src, dest.Shape())
		m.InsertBefore(instr, viewInstr)
		copySrc = viewInstr.View
	}
	copyInstr := b.Copy(dest, copySrc)
	m.InsertBefore(instr, copyInstr)
	m.Erase(instr)
	return true
}

// ElementMax(dest, L, R) where the sole writer of L is Splat and the sole writer
// of R is not -> ElementMax(dest, R, L): canonical form keeps the splat on the right.
func rewriteCanonicalizeSplatOperand(instr *ir.Instruction) bool {
	l, r := instr.OperandValue(1), instr.OperandValue(2)
	lWriter, lIsSplat := soleWriter(l)
	if !lIsSplat || lWriter.Kind != ir.KindSplat {
		return false
	}
	if rWriter, rIsSplat := soleWriter(r); rIsSplat && rWriter.Kind == ir.KindSplat {
		return false
	}
	instr.SetOperand(1, r)
	instr.SetOperand(2, l)
	return true
}

// TensorView(v) where v's shape equals the view's shape is an identity view:
// replace every non-dealloc use of the view with v directly.
func rewriteIdentityView(instr *ir.Instruction) bool {
	view := instr.View
	if view == nil || !view.Source.Shape().Equal(view.Shape()) {
		return false
	}
	if len(view.Users()) == 0 {
		return false
	}
	ir.ReplaceAllNonDeallocUsersWith(view, view.Source)
	return true
}

// Copy(d <- s) where d and s share an allocation origin through views -> erase.
func rewriteSelfCopy(m *ir.Module, instr *ir.Instruction) bool {
	dest, src := instr.OperandValue(0), instr.OperandValue(1)
	if ir.OriginOf(dest) != ir.OriginOf(src) {
		return false
	}
	m.Erase(instr)
	return true
}
