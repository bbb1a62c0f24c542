package harden

import (
	"github.com/llir/llvm/ir"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenBranch rewrites a conditional branch whose condition is an integer
// comparison: the comparison is re-evaluated from the same operands, both
// evaluations are reported to the runtime, and the branch fires only when
// both agree.  A single flipped evaluation can therefore no longer silently
// redirect control flow.
func (p *Pass) hardenBranch(f *ir.Func, b *ir.Block) {
	term, ok := b.Term.(*ir.TermCondBr)
	if !ok {
		return
	}

	cond, ok := term.Cond.(*ir.InstICmp)
	if !ok {
		return
	}

	if p.cfg.Level == 0 && !termOnCriticalPath(f, b) {
		return
	}

	// Duplicate the condition evaluation.
	dup := ir.NewICmp(cond.Pred, cond.X, cond.Y)
	dup.SetName(p.name("cond.dup"))
	p.stats.InstructionsDuplicated++

	// Report both evaluations before the branch executes.
	ext1, e1 := p.zextToI32(cond)
	ext2, e2 := p.zextToI32(dup)
	loc := p.location(f.Name(), "branch")
	call := ir.NewCall(p.rt.verifyBranch, ext1, ext2, loc)
	p.stats.VerificationCallsAdded++

	// The branch takes the conjunction of both evaluations.
	redundant := ir.NewAnd(cond, dup)
	redundant.SetName(p.name("cond.redundant"))

	insts := []ir.Instruction{dup}
	insts = append(insts, e1...)
	insts = append(insts, e2...)
	insts = append(insts, call, redundant)
	p.insertInsts(b, len(b.Insts), insts...)

	term.Cond = redundant
	p.stats.BranchesHardened++

	report.ReportTransform("hardened branch in function '%s'", f.Name())
}
