package optimize

import "github.com/gomlx/tensorir/ir"

// deadStoreElimination reverse-walks the stream tracking, per location, the
// last instruction that read it (spec §4.9). A mutating instruction all of
// whose mutated locations have no recorded later read is a dead store and is
// erased. Weights are seeded with a synthetic terminal read so a final store
// to a weight -- the program's externally observable result -- is never
// eliminated.
func deadStoreElimination(m *ir.Module) int {
	programEnd := &ir.Instruction{}

	lastRead := map[ir.Value]*ir.Instruction{}
	for _, w := range m.Weights() {
		lastRead[w] = programEnd
	}

	marked := map[*ir.Instruction]bool{}

	for _, instr := range m.ReverseInstructionSlice() {
		if instr.Kind == ir.KindAllocActivation || instr.Kind == ir.KindDeallocActivation || instr.Kind == ir.KindTensorView {
			continue
		}

		mutated, mutatedNotRead := 0, 0
		for _, op := range instr.Operands {
			if op.Kind == ir.In {
				continue
			}
			mutated++
			if lastRead[ir.OriginOf(op.Value)] == nil {
				mutatedNotRead++
			}
		}

		for _, op := range instr.Operands {
			if op.Kind == ir.In {
				continue
			}
			lastRead[ir.OriginOf(op.Value)] = nil
		}

		if mutated > 0 && mutated == mutatedNotRead {
			marked[instr] = true
			continue
		}

		for _, op := range instr.Operands {
			if op.Kind == ir.Out {
				continue
			}
			lastRead[ir.OriginOf(op.Value)] = instr
		}
	}

	erased := 0
	for _, instr := range m.InstructionSlice() {
		if marked[instr] {
			m.Erase(instr)
			erased++
		}
	}
	return erased
}
