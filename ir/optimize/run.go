package optimize

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/tensorir/internal/irfmt"
	"github.com/gomlx/tensorir/ir"
)

// Run executes the fixed pipeline of spec §2 over m and returns per-pass
// statistics. It verifies both before and after rewriting; a verify failure is
// returned as an error rather than a panic, since it means the caller handed
// over (or produced) a malformed module rather than the optimizer having
// violated its own invariants mid-pass.
func Run(m *ir.Module, config Config) (Stats, error) {
	var stats Stats

	if err := m.Verify(); err != nil {
		klog.Errorf("optimize.Run: precondition verify failed:\n%s", irfmt.Dump(m, -1))
		return stats, errors.Wrap(err, "optimize.Run: precondition verify failed")
	}

	if !config.OptimizeIR {
		klog.V(2).Infof("optimize.Run: optimize_ir=false, mode=%s, skipping all rewrite passes", config.Mode)
		return stats, nil
	}

	run := func(name string, pass func(*ir.Module) int) {
		changed := pass(m)
		stats.record(name, changed)
		if changed > 0 {
			klog.V(2).Infof("optimize.Run: pass %s changed %s instruction(s)", name, humanize.Comma(int64(changed)))
		}
	}

	run("peephole#1", peephole)
	run("buffer-sharing", bufferSharing)
	run("dead-alloc-sweep#1", deadAllocSweep)
	run("hoist-dealloc", hoistDealloc)
	run("sink-alloca", sinkAllocas)
	run("weight-mutability", func(m *ir.Module) int {
		inferWeightMutability(m)
		return 0
	})
	run("copy-propagation", copyPropagation)
	run("peephole#2", peephole)
	run("dead-alloc-sweep#2", deadAllocSweep)
	run("dead-store-elimination", deadStoreElimination)
	run("dead-alloc-sweep#3", deadAllocSweep)

	if config.InstrumentDebug {
		run("debug-instrumentation", debugInstrument)
	}

	if err := m.Verify(); err != nil {
		klog.Errorf("optimize.Run: postcondition verify failed:\n%s", irfmt.Dump(m, -1))
		return stats, errors.Wrap(err, "optimize.Run: postcondition verify failed")
	}

	klog.V(2).Infof("optimize.Run: completed, %s total change(s) across %d passes",
		humanize.Comma(int64(stats.Total())), len(stats.Passes))
	return stats, nil
}
