package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// protectFunctionEntry guards a function's return address with the runtime's
// shadow stack.  On entry a slot is allocated and registered with the
// runtime, which records the slot's contents; every return first asks the
// runtime to verify the recorded value still matches, and a mismatch routes
// to an error block that logs a critical fault and ends as unreachable.
//
// This runs before the per-instruction strategies so they operate on the
// final block structure around returns.
func (p *Pass) protectFunctionEntry(f *ir.Func) {
	if p.cfg.Level == 0 {
		return
	}

	entry := f.Blocks[0]

	slot := ir.NewAlloca(types.I8Ptr)
	slot.SetName(p.name("return_addr_storage"))
	p.insertInsts(entry, 0, slot, ir.NewCall(p.rt.protectReturnAddr, slot))
	p.stats.VerificationCallsAdded++

	// Snapshot the return blocks: verification splits them as it goes.
	var retBlocks []*ir.Block
	for _, b := range f.Blocks {
		if _, ok := b.Term.(*ir.TermRet); ok {
			retBlocks = append(retBlocks, b)
		}
	}

	for _, b := range retBlocks {
		check := ir.NewCall(p.rt.verifyReturnAddr, slot)
		check.SetName(p.name("ret.check"))

		ok := ir.NewICmp(enum.IPredNE, check, constant.NewInt(types.I32, 0))
		ok.SetName(p.name("ret.ok"))

		p.insertInsts(b, len(b.Insts), check, ok)
		p.stats.VerificationCallsAdded++

		safeBlock := p.splitAfter(b, len(b.Insts)-1, "safe_return")
		errBlock := p.insertBlockAfter(safeBlock, "return_corrupted")

		msg := p.internString("Return address corrupted!")
		errBlock.Insts = append(errBlock.Insts, ir.NewCall(p.rt.logFault, msg, constant.NewInt(types.I32, 3)))
		errBlock.Term = ir.NewUnreachable()

		b.Term = ir.NewCondBr(ok, safeBlock, errBlock)
	}

	p.stats.ReturnAddressesProtected++
	report.ReportTransform("protected return address in function '%s'", f.Name())
}
