package ir

import "github.com/gomlx/exceptions"

// ReplaceAllNonDeallocUsersWith rewires every real use of v to reference w
// instead, via SetOperand. Excluded are v's own DeallocActivation (§4.12) and,
// when v is an allocation, its own AllocActivation declare instruction: that
// instruction's self-reference is v's registration, not a use of its content,
// and retargeting it would redeclare w under v's identity instead of leaving v
// as an orphaned pair for the next dead-alloc sweep to collect. The user list of
// v is snapshotted first, since SetOperand mutates it as it runs (§9 "Iterator
// invalidation under mutation").
func ReplaceAllNonDeallocUsersWith(v, w Value) {
	if v == w {
		exceptions.Panicf("ReplaceAllNonDeallocUsersWith: v and w are the same value %q", v.Name())
	}
	for _, u := range v.Users() {
		if u.Instr.Kind == KindDeallocActivation || u.Instr.Kind == KindAllocActivation {
			continue
		}
		u.Instr.SetOperand(u.OperandIndex, w)
	}
}
