package optimize

import "github.com/gomlx/tensorir/ir"

// debugInstrument inserts DebugPrint taps around every instruction that isn't
// itself an alloc, dealloc, or DebugPrint (spec §4.11): one before it per
// non-Out operand (the value as it stood on entry), one after it per non-In
// operand (the value as it stood on exit).
func debugInstrument(m *ir.Module) int {
	b := ir.NewBuilder()
	inserted := 0
	for _, instr := range m.InstructionSlice() {
		switch instr.Kind {
		case ir.KindAllocActivation, ir.KindDeallocActivation, ir.KindDebugPrint:
			continue
		}

		for _, op := range instr.Operands {
			if op.Kind == ir.Out {
				continue
			}
			name := "debug_print.before." + op.Value.Name() + "." + instr.Name
			dp := b.DebugPrint(name, op.Value)
			m.InsertBefore(instr, dp)
			inserted++
		}

		anchor := instr
		for _, op := range instr.Operands {
			if op.Kind == ir.In {
				continue
			}
			name := "debug_print.after." + op.Value.Name() + "." + instr.Name
			dp := b.DebugPrint(name, op.Value)
			m.InsertAfter(anchor, dp)
			anchor = dp
			inserted++
		}
	}
	return inserted
}
