package optimize

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/ir"
)

// sinkAllocas removes every AllocActivation from its current position, then
// reinserts each immediately before the first instruction (in forward order)
// that references it (spec §4.3). Pushes the lifetime's start later. By the
// time this runs (after dead-alloc sweep and hoist-dealloc in the pipeline),
// every surviving alloc has at least its dealloc as a use, so the sink queue is
// guaranteed to drain; a non-empty remainder is an invariant violation, not an
// input the pass can silently tolerate.
func sinkAllocas(m *ir.Module) int {
	var pending []*ir.Instruction
	allocOf := map[*ir.Instruction]*ir.AllocActivation{}
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindAllocActivation {
			alloc := instr.OperandValue(0).(*ir.AllocActivation)
			allocOf[instr] = alloc
			pending = append(pending, instr)
		}
	}
	for _, instr := range pending {
		m.RemoveWithoutDestroy(instr)
	}

	remaining := make(map[*ir.Instruction]*ir.AllocActivation, len(pending))
	for _, instr := range pending {
		remaining[instr] = allocOf[instr]
	}

	for _, instr := range m.InstructionSlice() {
		if len(remaining) == 0 {
			break
		}
		for allocInstr, alloc := range remaining {
			if instr.Uses(alloc) {
				m.InsertBefore(instr, allocInstr)
				delete(remaining, allocInstr)
			}
		}
	}

	if len(remaining) != 0 {
		exceptions.Panicf("sinkAllocas: %d allocation(s) have no use to sink before", len(remaining))
	}
	return len(pending)
}
