package optimize

import "github.com/gomlx/tensorir/ir"

// hoistDealloc moves each DeallocActivation to immediately after the last
// non-dealloc use of its allocation (spec §4.2), pulling the lifetime's end
// earlier without changing I2. A use through a TensorView counts as a use of the
// underlying allocation, via Instruction.Uses.
func hoistDealloc(m *ir.Module) int {
	instrs := m.InstructionSlice()

	allocInstr := map[*ir.AllocActivation]*ir.Instruction{}
	deallocInstr := map[*ir.AllocActivation]*ir.Instruction{}
	for _, instr := range instrs {
		switch instr.Kind {
		case ir.KindAllocActivation:
			allocInstr[instr.OperandValue(0).(*ir.AllocActivation)] = instr
		case ir.KindDeallocActivation:
			deallocInstr[instr.OperandValue(0).(*ir.AllocActivation)] = instr
		}
	}

	moved := 0
	for alloc, dealloc := range deallocInstr {
		last := allocInstr[alloc]
		for _, instr := range instrs {
			if instr == last || instr == dealloc {
				continue
			}
			if instr.Uses(alloc) {
				last = instr
			}
		}
		if dealloc.Prev() != last {
			m.MoveAfter(last, dealloc)
			moved++
		}
	}
	return moved
}
