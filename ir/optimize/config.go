// Package optimize runs the fixed IR optimization pipeline of spec §2 over an
// ir.Module: verify, peephole, buffer sharing, dead-alloc sweep, hoist/sink of
// allocation lifetimes, weight mutability inference, copy propagation, a second
// peephole/dead-alloc/dead-store round, and optional debug instrumentation.
package optimize

// CompilationMode is carried through Run but does not alter the pass set this
// package runs (spec §6): it exists so a caller's choice of Train vs Infer is
// visible to whatever produced the module, without the optimizer branching on it.
type CompilationMode int

const (
	Infer CompilationMode = iota
	Train
)

func (m CompilationMode) String() string {
	if m == Train {
		return "Train"
	}
	return "Infer"
}

// Config carries the three knobs of spec §6 explicitly into Run, rather than as
// ambient globals (§9 "Global state").
type Config struct {
	// OptimizeIR, when false, makes Run verify and return without running any
	// rewrite pass. Defaults to true.
	OptimizeIR bool
	// InstrumentDebug, when true, runs the §4.11 debug-tap insertion pass as the
	// pipeline's last rewrite step. Defaults to false.
	InstrumentDebug bool
	// Mode is carried through for the caller's bookkeeping; it does not change
	// which passes run.
	Mode CompilationMode
}

// DefaultConfig returns the spec's default configuration: optimize, don't
// instrument, infer mode.
func DefaultConfig() Config {
	return Config{OptimizeIR: true, Mode: Infer}
}

// PassStats reports what one pass invocation changed, for diagnostics and tests.
type PassStats struct {
	Name    string
	Changed int
}

// Stats reports, per pass, how many instructions were erased, moved, or
// rewritten -- additive to spec.md per SPEC_FULL.md §12, mirroring how the
// original optimizer is invoked from tooling.
type Stats struct {
	Passes []PassStats
}

func (s *Stats) record(name string, changed int) {
	s.Passes = append(s.Passes, PassStats{Name: name, Changed: changed})
}

// Total sums the Changed count across every recorded pass.
func (s *Stats) Total() int {
	total := 0
	for _, p := range s.Passes {
		total += p.Changed
	}
	return total
}
