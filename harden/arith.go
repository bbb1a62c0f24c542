package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenArithmetic recomputes a division or remainder from the same operands
// and verifies the results agree.  The verification is advisory: the
// original result stays in use regardless.  Division and remainder are the
// focus because they are the most fault-sensitive operations that cannot be
// cheaply re-verified from their output.
func (p *Pass) hardenArithmetic(f *ir.Func, inst ir.Instruction) {
	if !p.cfg.Arithmetic || p.cfg.Level < 2 {
		return
	}

	if !isDivRem(inst) {
		return
	}

	b := blockOf(f, inst)
	if b == nil {
		return
	}

	dup := cloneInst(inst)
	if dup == nil {
		return
	}
	if named, ok := dup.(value.Named); ok {
		named.SetName(p.name("arith.dup"))
	}
	p.stats.InstructionsDuplicated++

	orig := inst.(value.Value)
	loc := p.location(f.Name(), "arithmetic")
	after := append([]ir.Instruction{dup}, p.verifyPair(orig, dup.(value.Value), loc)...)

	p.insertAfter(b, inst, after...)
	p.stats.ArithmeticHardened++

	report.ReportTransform("hardened arithmetic in function '%s'", f.Name())
}

// applyTMR computes two additional independent copies of a critical
// arithmetic operation and accepts the result only if at least two of the
// three agree.  When no two agree, control routes to an error block that
// logs a critical fault and terminates the path as unreachable.  The engine
// does not select the majority value and substitute it: if the continue
// block is reached, the original value is guaranteed to match at least one
// clone.
func (p *Pass) applyTMR(f *ir.Func, inst ir.Instruction) {
	if p.cfg.Level < 3 {
		return
	}

	b := blockOf(f, inst)
	if b == nil {
		return
	}

	orig, ok := inst.(value.Value)
	if !ok {
		return
	}

	isFloat := types.IsFloat(orig.Type())
	if !types.IsInt(orig.Type()) && !isFloat {
		return
	}

	clone1 := cloneInst(inst)
	clone2 := cloneInst(inst)
	if clone1 == nil || clone2 == nil {
		return
	}
	clone1.(value.Named).SetName(p.name("tmr1"))
	clone2.(value.Named).SetName(p.name("tmr2"))
	p.stats.InstructionsDuplicated += 2

	// Majority voting: at least 2 of the 3 results must match.
	cmp := func(x, y value.Value, name string) ir.Instruction {
		var c ir.Instruction
		if isFloat {
			c = ir.NewFCmp(enum.FPredOEQ, x, y)
		} else {
			c = ir.NewICmp(enum.IPredEQ, x, y)
		}
		c.(value.Named).SetName(p.name(name))
		return c
	}

	match12 := cmp(orig, clone1.(value.Value), "tmr.match12")
	match13 := cmp(orig, clone2.(value.Value), "tmr.match13")
	match23 := cmp(clone1.(value.Value), clone2.(value.Value), "tmr.match23")

	or1 := ir.NewOr(match12.(value.Value), match13.(value.Value))
	or1.SetName(p.name("tmr.or"))
	valid := ir.NewOr(or1, match23.(value.Value))
	valid.SetName(p.name("tmr.valid"))

	voting := []ir.Instruction{clone1, clone2, match12, match13, match23, or1, valid}
	idx := indexOf(b, inst)
	p.insertInsts(b, idx+1, voting...)

	// Split after the voting comparisons: continue on agreement, trap
	// otherwise.
	contBlock := p.splitAfter(b, idx+len(voting), "tmr.continue")
	errBlock := p.insertBlockAfter(contBlock, "tmr.error")

	msg := p.internString("TMR voting failed in " + f.Name())
	errBlock.Insts = append(errBlock.Insts, ir.NewCall(p.rt.logFault, msg, constant.NewInt(types.I32, 2)))
	errBlock.Term = ir.NewUnreachable()

	b.Term = ir.NewCondBr(valid, contBlock, errBlock)

	p.stats.ArithmeticHardened++
	p.stats.VerificationCallsAdded++
	p.stats.TMRApplications++

	report.ReportTransform("applied TMR with majority voting in '%s'", f.Name())
}
