package optimize

import "github.com/gomlx/tensorir/ir"

// isInplaceOp is the static table of which operand-slot pairs of a given
// instruction kind may alias the same buffer (spec §4.5, §6). Elementwise binary
// arithmetic permits reusing the destination's slot for either input; Copy and
// Conv2D permit none, as called out explicitly in the spec, and every kind not
// named here defaults to no aliasing rather than guessing at a permission the
// spec never states.
func isInplaceOp(kind ir.Kind, first, second int) bool {
	switch kind {
	case ir.KindElementAdd, ir.KindElementMul, ir.KindElementMax:
		return first == 0 && (second == 1 || second == 2)
	default:
		return false
	}
}

// bufferSharing reverse-walks the stream, maintaining a live-set of allocation
// origins whose current contents are still needed by a later reader, and rewrites
// operand pairs in place where isInplaceOp permits it and both slots are
// currently dead (spec §4.5). Weights start live since they're externally
// observable at program end, and stay live: steps 1 and 3 key their live-set
// updates off allocationOrigin, which is none (skipped) for an operand whose
// origin terminates at a WeightVar, so a weight is never removed from or
// spuriously re-added to the live-set by a later instruction's Out/InOut/In
// bookkeeping.
func bufferSharing(m *ir.Module) int {
	live := map[ir.Value]bool{}
	for _, w := range m.Weights() {
		live[w] = true
	}

	rewrites := 0
	for _, instr := range m.ReverseInstructionSlice() {
		outBuffers := map[ir.Value]bool{}

		for _, op := range instr.Operands {
			a, ok := ir.AllocationOrigin(op.Value)
			if !ok {
				continue
			}
			switch op.Kind {
			case ir.Out:
				delete(live, a)
				outBuffers[a] = true
			case ir.InOut:
				live[a] = true
			case ir.In:
				if outBuffers[a] {
					live[a] = true
				}
			}
		}

		for first := 0; first < len(instr.Operands); first++ {
			rewrote := false
			for second := first + 1; second < len(instr.Operands); second++ {
				dest := ir.OriginOf(instr.Operands[first].Value)
				src := ir.OriginOf(instr.Operands[second].Value)
				if dest == src {
					continue
				}
				if !dest.Shape().Equal(src.Shape()) {
					continue
				}
				if !isInplaceOp(instr.Kind, first, second) {
					continue
				}
				if live[dest] || live[src] {
					continue
				}
				ir.ReplaceAllNonDeallocUsersWith(dest, src)
				rewrites++
				rewrote = true
				break
			}
			if rewrote {
				break
			}
		}

		for _, op := range instr.Operands {
			if op.Kind == ir.Out {
				continue
			}
			a, ok := ir.AllocationOrigin(op.Value)
			if !ok {
				continue
			}
			live[a] = true
		}
	}
	return rewrites
}
