// Package harden implements the IR hardening transformation engine: it
// walks each function's control-flow graph, classifies instructions by risk
// category, and rewrites the CFG in place to insert redundant computation,
// voting, bounds checks, and calls into the verification runtime.
package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/Prajwal-kp-18/llvm-fihardening/config"
	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// Pass is one hardening pass invocation over a module.  A Pass must not be
// reused across modules: location interning and statistics are per
// invocation.
type Pass struct {
	cfg   *config.Config
	stats *TransformStats

	m  *ir.Module
	rt *runtimeFuncs

	// Interned location string constants, keyed by "function:category".
	locs map[string]value.Value

	// Counter backing unique local names.
	nameCounter int

	// Instructions this pass inserted.  Later phases must never instrument
	// the engine's own instrumentation.
	inserted map[ir.Instruction]struct{}

	// Oracle supplies the expected target for indirect call CFI checks.
	Oracle TargetOracle

	// Sizes supplies the region size for address-computation bounds checks.
	Sizes SizeSource
}

// New creates a hardening pass with the given configuration.
func New(cfg *config.Config) *Pass {
	return &Pass{
		cfg:      cfg,
		stats:    &TransformStats{},
		locs:     make(map[string]value.Value),
		inserted: make(map[ir.Instruction]struct{}),
		Oracle:   IdentityOracle{},
		Sizes:    FixedSize(1024),
	}
}

// Stats returns the statistics accumulated so far.
func (p *Pass) Stats() *TransformStats {
	return p.stats
}

// Run hardens every defined function in the module and returns the
// accumulated statistics.
func (p *Pass) Run(m *ir.Module) *TransformStats {
	p.m = m
	p.rt = declareRuntimeFuncs(m)

	report.ReportHeader("FI hardening: level %d", p.cfg.Level)

	for _, f := range m.Funcs {
		// Skip declarations and the runtime's own functions.
		if len(f.Blocks) == 0 || isRuntimeFunc(f.Name()) {
			continue
		}

		p.runFunc(f)
	}

	if p.cfg.ShowStats {
		report.ReportStats(p.stats.String())
	}

	return p.stats
}

// worklists holds the candidate instructions collected before any mutation.
// Mutation invalidates live iteration, so selection and application are two
// separate phases.
type worklists struct {
	branches      []*ir.Block
	loads         []*ir.InstLoad
	stores        []*ir.InstStore
	arithmetic    []ir.Instruction
	indirectCalls []*ir.InstCall
	allocas       []*ir.InstAlloca
	addresses     []*ir.InstGetElementPtr
	landingPads   []*ir.InstLandingPad
	volatileLoads []*ir.InstLoad
}

func (w *worklists) total() int {
	return len(w.branches) + len(w.loads) + len(w.stores) + len(w.arithmetic) +
		len(w.indirectCalls) + len(w.allocas) + len(w.addresses) +
		len(w.landingPads) + len(w.volatileLoads)
}

// runFunc hardens a single function.
func (p *Pass) runFunc(f *ir.Func) {
	report.ReportTransform("processing function '%s'", f.Name())

	// Function-level protection runs first so per-instruction strategies see
	// the final block structure around returns.
	if p.cfg.Stack {
		p.protectFunctionEntry(f)
	}

	if p.cfg.Timing {
		p.addTimingMitigation(f)
	}

	w := p.collect(f)

	for _, b := range w.branches {
		p.hardenBranch(f, b)
	}
	for _, load := range w.loads {
		p.hardenLoad(f, load)
	}
	for _, store := range w.stores {
		p.hardenStore(f, store)
	}
	for _, bo := range w.arithmetic {
		p.hardenArithmetic(f, bo)
	}
	for _, call := range w.indirectCalls {
		p.hardenIndirectCall(f, call)
	}
	for _, alloca := range w.allocas {
		p.hardenCriticalVariable(f, alloca)
	}
	for _, gep := range w.addresses {
		p.hardenMemoryAccess(f, gep)
	}
	for _, lp := range w.landingPads {
		p.hardenExceptionPath(f, lp)
	}
	for _, load := range w.volatileLoads {
		p.hardenVolatileLoad(f, load)
	}

	if p.cfg.Level >= 2 {
		p.comprehensiveSweep(f)
	}

	if total := w.total(); total > 0 {
		report.ReportTransform("applied %d transformations to '%s'", total, f.Name())
	} else {
		report.ReportTransform("no transformations needed in '%s'", f.Name())
	}

	if p.cfg.VerifyAfter {
		// Structural failures are reported but the mutation is not rolled
		// back: there is no recovery path.
		for _, err := range VerifyFunc(f) {
			report.ReportWarning("post-transform verification of '%s': %v", f.Name(), err)
		}
	}
}

// collect builds the candidate worklists for one function.  The CFG is
// read-only during this phase.
func (p *Pass) collect(f *ir.Func) *worklists {
	w := &worklists{}

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			// Landing pads are exempt from generic instrumentation but still
			// anchor the exception logging strategy, so they are matched
			// before the skip filter.
			if lp, ok := inst.(*ir.InstLandingPad); ok {
				if p.cfg.Exceptions {
					w.landingPads = append(w.landingPads, lp)
				}
				continue
			}
			if shouldSkip(inst) {
				continue
			}
			// Function-level protection runs before collection and must not
			// have its own instructions re-instrumented.
			if _, ours := p.inserted[inst]; ours {
				continue
			}

			switch cur := inst.(type) {
			case *ir.InstLoad:
				if p.cfg.Memory {
					w.loads = append(w.loads, cur)
				}
				if p.cfg.HardwareIO && cur.Volatile {
					w.volatileLoads = append(w.volatileLoads, cur)
				}
			case *ir.InstStore:
				if p.cfg.Memory {
					w.stores = append(w.stores, cur)
				}
			case *ir.InstCall:
				if p.cfg.CFI {
					if _, direct := cur.Callee.(*ir.Func); !direct {
						w.indirectCalls = append(w.indirectCalls, cur)
					}
				}
			case *ir.InstAlloca:
				if p.cfg.DataRedundancy {
					w.allocas = append(w.allocas, cur)
				}
			case *ir.InstGetElementPtr:
				if p.cfg.MemorySafety {
					w.addresses = append(w.addresses, cur)
				}
			default:
				if p.cfg.Arithmetic && isDivRem(inst) {
					w.arithmetic = append(w.arithmetic, inst)
				}
			}
		}

		if p.cfg.Branches {
			if term, ok := b.Term.(*ir.TermCondBr); ok {
				if cmp, isCmp := term.Cond.(*ir.InstICmp); isCmp {
					if _, ours := p.inserted[cmp]; !ours {
						w.branches = append(w.branches, b)
					}
				}
			}
		}
	}

	return w
}

// blockOf locates the block currently containing inst.  Rewrites split
// blocks as they go, so positions recorded at collection time go stale and
// are re-resolved at application time.
func blockOf(f *ir.Func, inst ir.Instruction) *ir.Block {
	for _, b := range f.Blocks {
		if indexOf(b, inst) >= 0 {
			return b
		}
	}
	return nil
}

// isDivRem reports whether inst is an integer division or remainder.
func isDivRem(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstSDiv, *ir.InstUDiv, *ir.InstSRem, *ir.InstURem:
		return true
	}
	return false
}

// isTMRCandidate reports whether inst is arithmetic critical enough for
// triple modular redundancy: multiplication, division, or remainder,
// including the floating point forms.
func isTMRCandidate(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstMul, *ir.InstSDiv, *ir.InstUDiv, *ir.InstSRem, *ir.InstURem,
		*ir.InstFMul, *ir.InstFDiv:
		return true
	}
	return false
}
