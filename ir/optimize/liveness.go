package optimize

import (
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/ir"
)

// Interval is an inclusive range [Begin, End] of instruction indices during which a location
// holds a value some later instruction reads (spec §4.7).
type Interval struct {
	Begin, End int
}

func (iv *Interval) degenerate() bool { return iv.End == iv.Begin }

// IntervalMap holds every live interval of every tracked location, in the order
// they were opened.
type IntervalMap map[ir.Value][]*Interval

// Enclosing returns the interval of loc containing index i, and whether one exists.
func (m IntervalMap) Enclosing(loc ir.Value, i int) (*Interval, bool) {
	for _, iv := range m[loc] {
		if i >= iv.Begin && i <= iv.End {
			return iv, true
		}
	}
	return nil, false
}

// livenessLocation resolves v's origin to the location liveness tracks: an
// AllocActivation, or a WeightVar not inferred Constant. Constant weights are
// excluded -- they're read-only everywhere, so no interval bookkeeping applies.
func livenessLocation(v ir.Value) ir.Value {
	switch origin := ir.OriginOf(v).(type) {
	case *ir.AllocActivation:
		return origin
	case *ir.WeightVar:
		if origin.Mutability != ir.Constant {
			return origin
		}
	}
	return nil
}

// ComputeLiveIntervals runs the forward walk of spec §4.7: instruction indices
// are assigned only to non-dealloc instructions, and within one instruction
// operands are processed read-before-write (In < InOut < Out) so a self
// read-modify-write extends the current interval instead of opening a spurious
// new one.
func ComputeLiveIntervals(m *ir.Module) IntervalMap {
	intervals := IntervalMap{}
	i := 0
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindDeallocActivation {
			continue
		}

		ops := append([]ir.Operand(nil), instr.Operands...)
		sort.SliceStable(ops, func(a, b int) bool {
			return ir.LivenessOrder(ops[a].Kind) < ir.LivenessOrder(ops[b].Kind)
		})

		for _, op := range ops {
			loc := livenessLocation(op.Value)
			if loc == nil {
				continue
			}
			existing := intervals[loc]
			if len(existing) == 0 {
				_, isView := op.Value.(*ir.TensorView)
				_, isWeight := loc.(*ir.WeightVar)
				if op.Kind == ir.In && !isView && !isWeight {
					exceptions.Panicf("ComputeLiveIntervals: first reference to %q at index %d is a bare In read", loc.Name(), i)
				}
				intervals[loc] = append(existing, &Interval{Begin: i, End: i})
				continue
			}
			last := existing[len(existing)-1]
			if op.Kind != ir.Out || !last.degenerate() {
				last.End = i
			} else {
				intervals[loc] = append(existing, &Interval{Begin: i, End: i})
			}
		}

		i++
	}

	for _, w := range m.Weights() {
		if w.Mutability == ir.Constant {
			continue
		}
		ivs := intervals[w]
		if len(ivs) == 0 {
			continue
		}
		ivs[len(ivs)-1].End = i
	}

	return intervals
}

// NonDeallocPositions assigns each non-dealloc instruction the same index
// ComputeLiveIntervals uses internally, so copy propagation can relate an
// instruction to the live-interval index space without recomputing intervals.
func NonDeallocPositions(m *ir.Module) map[*ir.Instruction]int {
	positions := map[*ir.Instruction]int{}
	i := 0
	for _, instr := range m.InstructionSlice() {
		if instr.Kind == ir.KindDeallocActivation {
			continue
		}
		positions[instr] = i
		i++
	}
	return positions
}
