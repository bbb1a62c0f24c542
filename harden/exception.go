package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenExceptionPath logs entry into an exception handler.  A fault that
// spuriously raises an exception shows up in the fault log even when the
// handler itself recovers.
func (p *Pass) hardenExceptionPath(f *ir.Func, lp *ir.InstLandingPad) {
	b := blockOf(f, lp)
	if b == nil {
		return
	}

	if p.cfg.Logging {
		msg := p.internString("Exception handler entered")
		p.insertAfter(b, lp, ir.NewCall(p.rt.logFault, msg, constant.NewInt(types.I32, 1)))
		p.stats.FaultLogsAdded++
	}

	p.stats.ExceptionPathsHardened++
	report.ReportTransform("hardened exception path in '%s'", f.Name())
}
