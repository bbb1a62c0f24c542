package harden

import (
	"github.com/llir/llvm/ir"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// addTimingMitigation appends a timing-noise call before every conditional
// branch in the function, making it harder to line a fault injection up
// with a specific branch decision.  Only meaningful at the higher levels.
func (p *Pass) addTimingMitigation(f *ir.Func) {
	if p.cfg.Level < 2 {
		return
	}

	applied := false
	for _, b := range f.Blocks {
		if _, ok := b.Term.(*ir.TermCondBr); !ok {
			continue
		}

		p.insertInsts(b, len(b.Insts), ir.NewCall(p.rt.addTimingNoise))
		p.stats.TimingMitigationsAdded++
		p.stats.VerificationCallsAdded++
		applied = true
	}

	if applied {
		report.ReportTransform("added timing mitigation in '%s'", f.Name())
	}
}
