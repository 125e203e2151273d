package optimize

import "github.com/gomlx/tensorir/ir"

// deadAllocThreshold is the user count at or below which an allocation counts as
// dead: the alloc-declaring instruction and its dealloc each register as a user
// of the allocation (§9's open question), so "nothing else references it" is
// users <= 2, not users < 2 as a literal reading of spec §4.4 would suggest. The
// spec calls this accounting out as something "implementations must replicate
// ... or adapt the threshold"; adapting it is what makes the pair itself not
// count as a reason to keep a buffer alive.
const deadAllocThreshold = 2

// deadAllocSweep runs the three-pass cleanup of spec §4.4, in order:
//  1. erase every TensorView with zero users,
//  2. erase every DeallocActivation whose alloc is at or below deadAllocThreshold,
//  3. erase every AllocActivation at or below deadAllocThreshold.
func deadAllocSweep(m *ir.Module) int {
	erased := 0

	for _, instr := range m.InstructionSlice() {
		if instr.Kind != ir.KindTensorView {
			continue
		}
		if len(instr.View.Users()) == 0 {
			m.Erase(instr)
			erased++
		}
	}

	for _, instr := range m.InstructionSlice() {
		if instr.Kind != ir.KindDeallocActivation {
			continue
		}
		alloc := instr.OperandValue(0).(*ir.AllocActivation)
		if len(alloc.Users()) <= deadAllocThreshold {
			m.Erase(instr)
			erased++
		}
	}

	for _, instr := range m.InstructionSlice() {
		if instr.Kind != ir.KindAllocActivation {
			continue
		}
		alloc := instr.OperandValue(0).(*ir.AllocActivation)
		if len(alloc.Users()) <= deadAllocThreshold {
			m.Erase(instr)
			erased++
		}
	}

	return erased
}
