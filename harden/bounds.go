package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenMemoryAccess bounds-checks a computed address before it can be
// used.  The computed pointer and its base are handed to the runtime along
// with the region size, and control only reaches the original address's
// users if the check passes; otherwise a critical fault is logged and the
// path ends as unreachable.  Region sizes come from the injectable size
// source; the default is a coarse fixed bound.
func (p *Pass) hardenMemoryAccess(f *ir.Func, gep *ir.InstGetElementPtr) {
	b := blockOf(f, gep)
	if b == nil {
		return
	}

	if p.cfg.Level == 0 && !onCriticalPath(f, gep) {
		return
	}

	ptr, ptrCasts := p.castToI8Ptr(gep)
	base, baseCasts := p.castToI8Ptr(gep.Src)
	size := p.Sizes.RegionSize(gep.Src)

	check := ir.NewCall(p.rt.checkBounds, ptr, base, constant.NewInt(types.I64, int64(size)))
	check.SetName(p.name("bounds.check"))

	ok := ir.NewICmp(enum.IPredNE, check, constant.NewInt(types.I32, 0))
	ok.SetName(p.name("bounds.ok"))

	insts := append(ptrCasts, baseCasts...)
	insts = append(insts, check, ok)

	idx := indexOf(b, gep)
	p.insertInsts(b, idx+1, insts...)

	safeBlock := p.splitAfter(b, idx+len(insts), "bounds_safe")
	errBlock := p.insertBlockAfter(safeBlock, "bounds_error")

	msg := p.internString("Bounds check failed!")
	errBlock.Insts = append(errBlock.Insts, ir.NewCall(p.rt.logFault, msg, constant.NewInt(types.I32, 2)))
	errBlock.Term = ir.NewUnreachable()

	b.Term = ir.NewCondBr(ok, safeBlock, errBlock)

	p.stats.BoundsChecksAdded++
	p.stats.VerificationCallsAdded++

	report.ReportTransform("added bounds check in function '%s'", f.Name())
}
