package ir

import (
	"github.com/pkg/errors"
)

// Verify checks invariants I1-I5 of the module and returns the first violation
// found, wrapped with the instruction index and predicate that failed. A nil
// result means the module is well-formed. Grounded on backends/simplego's
// Executable sanity checks, generalized from "panic on the first bad node" to
// "return a positioned error", per SPEC_FULL.md §12: callers that hand the
// optimizer an already-broken module get a diagnostic, not a crash.
func (m *Module) Verify() error {
	instrs := m.InstructionSlice()

	position := make(map[*Instruction]int, len(instrs))
	for i, instr := range instrs {
		position[instr] = i
	}

	registeredAllocs := make(map[*AllocActivation]bool)
	allocInstr := make(map[*AllocActivation]*Instruction)
	deallocInstr := make(map[*AllocActivation]*Instruction)
	weightSet := make(map[*WeightVar]bool)
	for _, w := range m.Weights() {
		weightSet[w] = true
	}

	for i, instr := range instrs {
		switch instr.Kind {
		case KindAllocActivation:
			alloc, ok := instr.OperandValue(0).(*AllocActivation)
			if !ok {
				return errors.Errorf("verify: instruction #%d %q: AllocActivation operand is not an *AllocActivation", i, instr.Name)
			}
			if registeredAllocs[alloc] {
				return errors.Errorf("verify: instruction #%d %q: allocation %q introduced more than once", i, instr.Name, alloc.Name())
			}
			registeredAllocs[alloc] = true
			allocInstr[alloc] = instr
		case KindDeallocActivation:
			alloc, ok := instr.OperandValue(0).(*AllocActivation)
			if !ok {
				return errors.Errorf("verify: instruction #%d %q: DeallocActivation operand is not an *AllocActivation", i, instr.Name)
			}
			if existing, ok := deallocInstr[alloc]; ok {
				return errors.Errorf("verify: instruction #%d %q: allocation %q already deallocated at #%d (I2)",
					i, instr.Name, alloc.Name(), position[existing])
			}
			deallocInstr[alloc] = instr
		case KindTensorView:
			if len(instr.Operands) != 0 {
				return errors.Errorf("verify: instruction #%d %q: TensorView must carry no operands (I4)", i, instr.Name)
			}
			if instr.View == nil {
				return errors.Errorf("verify: instruction #%d %q: TensorView instruction has no declared View (I4)", i, instr.Name)
			}
		}
		if instr.Kind != KindTensorView && instr.View != nil {
			return errors.Errorf("verify: instruction #%d %q: non-TensorView instruction carries a View (I4)", i, instr.Name)
		}
	}

	// I2: alloc precedes its dealloc, and every non-dealloc use lies within [alloc, dealloc].
	for alloc, aInstr := range allocInstr {
		aPos := position[aInstr]
		dInstr, hasDealloc := deallocInstr[alloc]
		var dPos int
		if hasDealloc {
			dPos = position[dInstr]
			if dPos <= aPos {
				return errors.Errorf("verify: allocation %q deallocated at #%d before its alloc at #%d (I2)", alloc.Name(), dPos, aPos)
			}
		}
		for i, instr := range instrs {
			if instr == aInstr || instr == dInstr {
				continue
			}
			if !instr.Uses(alloc) {
				continue
			}
			if i < aPos || (hasDealloc && i > dPos) {
				return errors.Errorf("verify: instruction #%d %q uses allocation %q outside its [%d,%d] lifetime (I2)",
					i, instr.Name, alloc.Name(), aPos, dPos)
			}
		}
	}

	// I1: every operand origin terminates at a registered WeightVar or AllocActivation.
	for i, instr := range instrs {
		for idx, op := range instr.Operands {
			origin := OriginOf(op.Value)
			switch v := origin.(type) {
			case *WeightVar:
				if !weightSet[v] {
					return errors.Errorf("verify: instruction #%d %q operand #%d references unregistered weight %q (I1)", i, instr.Name, idx, v.Name())
				}
			case *AllocActivation:
				if !registeredAllocs[v] {
					return errors.Errorf("verify: instruction #%d %q operand #%d references unregistered allocation %q (I1)", i, instr.Name, idx, v.Name())
				}
			default:
				return errors.Errorf("verify: instruction #%d %q operand #%d has an origin of unrecognized type (I1)", i, instr.Name, idx)
			}
		}
	}

	// I3: a Constant WeightVar appears only in In operands.
	for _, w := range m.Weights() {
		if w.Mutability != Constant {
			continue
		}
		for _, u := range w.Users() {
			if u.Kind() != In {
				return errors.Errorf("verify: constant weight %q used as %s by instruction %q (I3)", w.Name(), u.Kind(), u.Instr.Name)
			}
		}
	}

	// I5: every value's recorded user list matches the operand references actually present.
	expected := make(map[Value]map[Use]bool)
	record := func(v Value, u Use) {
		if v == nil {
			return
		}
		set, ok := expected[v]
		if !ok {
			set = make(map[Use]bool)
			expected[v] = set
		}
		set[u] = true
	}
	for _, instr := range instrs {
		for idx, op := range instr.Operands {
			record(op.Value, Use{Instr: instr, OperandIndex: idx})
		}
	}

	allValues := make(map[Value]bool)
	for v := range expected {
		allValues[v] = true
	}
	for _, w := range m.Weights() {
		allValues[w] = true
	}
	for alloc := range registeredAllocs {
		allValues[alloc] = true
	}

	for v := range allValues {
		want := expected[v]
		got := v.Users()
		if len(got) != len(want) {
			return errors.Errorf("verify: value %q has %d recorded users but %d operand references exist (I5)", v.Name(), len(got), len(want))
		}
		for _, u := range got {
			if !want[u] {
				return errors.Errorf("verify: value %q records a stale use of instruction %q operand #%d (I5)", v.Name(), u.Instr.Name, u.OperandIndex)
			}
		}
	}

	return nil
}
