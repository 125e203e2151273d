package optimize

import "github.com/gomlx/tensorir/ir"

// copyPropagation implements spec §4.8. It computes a fresh interval map once
// at the start and does not repair it mid-pass after a rewrite (§9's third open
// question: the source relies on a rewrite either erasing the copy or leaving it
// in a state the next guard rejects, so incremental interval repair is
// deliberately not attempted here either).
func copyPropagation(m *ir.Module) int {
	intervals := ComputeLiveIntervals(m)
	positions := NonDeallocPositions(m)

	propagated := 0
	for _, instr := range m.InstructionSlice() {
		if instr.Kind != ir.KindCopy {
			continue
		}
		i, ok := positions[instr]
		if !ok {
			continue
		}
		destValue := instr.OperandValue(0)
		srcValue := instr.OperandValue(1)
		destOrigin := ir.OriginOf(destValue)
		srcOrigin := ir.OriginOf(srcValue)

		if srcWeight, ok := srcOrigin.(*ir.WeightVar); ok {
			if copyPropCaseA(m, instr, destOrigin, srcWeight, srcValue) {
				propagated++
			}
			continue
		}

		destAlloc, destOk := destOrigin.(*ir.AllocActivation)
		srcAlloc, srcOk := srcOrigin.(*ir.AllocActivation)
		if destOk && srcOk {
			if copyPropCaseB(m, instr, destAlloc, srcAlloc, intervals, positions, i) {
				propagated++
			}
		}
	}
	return propagated
}

// copyPropCaseA handles "dest is written only by this copy": any later reader of
// dest can read src (a Constant weight) directly.
func copyPropCaseA(m *ir.Module, copyInstr *ir.Instruction, destOrigin ir.Value, srcWeight *ir.WeightVar, srcValue ir.Value) bool {
	if srcWeight.Mutability != ir.Constant {
		return false
	}
	if _, destIsWeight := destOrigin.(*ir.WeightVar); destIsWeight {
		return false
	}
	writer, ok := soleWriter(destOrigin)
	if !ok || writer != copyInstr {
		return false
	}
	ir.ReplaceAllNonDeallocUsersWith(destOrigin, srcValue)
	m.Erase(copyInstr)
	return true
}

// copyPropCaseB handles "src holds dest's value for dest's whole remaining
// lifetime" (src is dead right after the copy, or dest's entire live interval
// sits inside src's): rename dest to src throughout dest's enclosing interval
// and fold the copy away. This mirrors Case A's direction -- a copy's dest is
// eliminated in favor of reading its source directly, never the reverse.
func copyPropCaseB(m *ir.Module, copyInstr *ir.Instruction, dest, src *ir.AllocActivation, intervals IntervalMap, positions map[*ir.Instruction]int, i int) bool {
	si, ok := intervals.Enclosing(src, i)
	if !ok {
		return false
	}
	di, ok := intervals.Enclosing(dest, i)
	if !ok {
		return false
	}

	srcDiesAtCopy := si.End <= di.Begin
	containedInSrc := si.Begin <= di.Begin && di.End <= si.End
	if !srcDiesAtCopy && !containedInSrc {
		return false
	}

	for _, u := range dest.Users() {
		if u.Instr.Kind == ir.KindAllocActivation {
			continue
		}
		idx, ok := positions[u.Instr]
		if !ok {
			continue
		}
		if idx < di.Begin || idx > di.End {
			continue
		}
		if idx == di.Begin && u.Kind() != ir.Out {
			continue
		}
		u.Instr.SetOperand(u.OperandIndex, src)
	}

	m.Erase(copyInstr)
	return true
}
