package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenIndirectCall inserts a control-flow-integrity check before an
// indirect call: the observed target is compared against the target the
// oracle expects.  The default oracle compares the target against itself,
// which establishes the check point without constraining the target; a real
// target-set analysis is supplied by replacing the oracle.
func (p *Pass) hardenIndirectCall(f *ir.Func, ci *ir.InstCall) {
	b := blockOf(f, ci)
	if b == nil {
		return
	}

	if p.cfg.Level == 0 && !onCriticalPath(f, ci) {
		return
	}

	target, casts := p.castToI8Ptr(ci.Callee)
	expected := p.Oracle.ExpectedTarget(target)

	loc := p.location(f.Name(), "indirect_call")
	insts := append(casts, ir.NewCall(p.rt.verifyCFI, target, expected, loc))
	p.stats.VerificationCallsAdded++

	if p.cfg.Logging {
		msg := p.internString("CFI check passed")
		insts = append(insts, ir.NewCall(p.rt.logFault, msg, constant.NewInt(types.I32, 0)))
		p.stats.FaultLogsAdded++
	}

	p.insertInsts(b, indexOf(b, ci), insts...)
	p.stats.IndirectCallsHardened++

	report.ReportTransform("hardened indirect call in function '%s'", f.Name())
}
