package optimize

import "github.com/gomlx/tensorir/ir"

// inferWeightMutability classifies every weight as Constant if every one of its
// users references it only through an In operand, or Mutable otherwise (spec
// §4.6). A weight with no users at all is vacuously Constant.
func inferWeightMutability(m *ir.Module) {
	for _, w := range m.Weights() {
		mutability := ir.Constant
		for _, u := range w.Users() {
			if u.Kind() != ir.In {
				mutability = ir.Mutable
				break
			}
		}
		w.Mutability = mutability
	}
}
