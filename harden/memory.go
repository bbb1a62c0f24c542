package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// hardenLoad re-issues an independent load from the same address immediately
// before the original and verifies the two results agree.  At level 3 a
// third load is issued and cross-checked against the second, approximating
// majority evidence.  The originally loaded value stays in use even when the
// cross-check diverges; no 2-of-3 select is performed.
func (p *Pass) hardenLoad(f *ir.Func, li *ir.InstLoad) {
	b := blockOf(f, li)
	if b == nil {
		return
	}

	if p.cfg.Level == 0 && !onCriticalPath(f, li) {
		return
	}

	// Independent duplicate load, placed before the original.
	dup := ir.NewLoad(li.ElemType, li.Src)
	dup.Align = li.Align
	dup.Volatile = li.Volatile
	dup.SetName(p.name("load.dup"))
	p.insertInsts(b, indexOf(b, li), dup)
	p.stats.InstructionsDuplicated++

	loc := p.location(f.Name(), "load")
	after := p.verifyPair(li, dup, loc)

	// Third load with a cross-check of the two duplicates.
	if p.cfg.Level >= 3 {
		dup2 := ir.NewLoad(li.ElemType, li.Src)
		dup2.Align = li.Align
		dup2.SetName(p.name("load.dup2"))
		after = append(after, dup2)
		p.stats.InstructionsDuplicated++

		if isIntWidth(li.ElemType, 32) {
			after = append(after, ir.NewCall(p.rt.verifyInt32, dup, dup2, loc))
			p.stats.VerificationCallsAdded++
		}
	}

	p.insertAfter(b, li, after...)
	p.stats.LoadsHardened++

	if p.cfg.Level >= 2 {
		report.ReportTransform("hardened load in function '%s'", f.Name())
	}
}

// hardenStore reads the stored address back immediately after the write and
// verifies the read-back equals the written value.  At level 2 and above the
// store additionally refreshes the runtime checksum for its address range so
// later unrelated checksum verifications can discover corruption.
func (p *Pass) hardenStore(f *ir.Func, si *ir.InstStore) {
	b := blockOf(f, si)
	if b == nil {
		return
	}

	if p.cfg.Level == 0 && !onCriticalPath(f, si) {
		return
	}

	readBack := ir.NewLoad(si.Src.Type(), si.Dst)
	readBack.Align = si.Align
	readBack.SetName(p.name("store.verify"))

	loc := p.location(f.Name(), "store")
	after := append([]ir.Instruction{readBack}, p.verifyPair(readBack, si.Src, loc)...)

	if p.cfg.Level >= 2 {
		if size := storeSize(si.Src.Type()); size > 0 {
			ptr, casts := p.castToI8Ptr(si.Dst)
			after = append(after, casts...)
			after = append(after, ir.NewCall(p.rt.checksumUpdate, ptr, constant.NewInt(types.I64, int64(size))))
			p.stats.VerificationCallsAdded++
		}
	}

	p.insertAfter(b, si, after...)
	p.stats.StoresHardened++

	if p.cfg.Level >= 2 {
		report.ReportTransform("hardened store in function '%s'", f.Name())
	}
}

// verifyPair builds the instruction sequence calling the verification
// primitive matching the pair's width and kind.  Types without a primitive
// produce no call.
func (p *Pass) verifyPair(got, want value.Value, loc value.Value) []ir.Instruction {
	t := got.Type()

	switch {
	case isIntWidth(t, 32):
		p.stats.VerificationCallsAdded++
		return []ir.Instruction{ir.NewCall(p.rt.verifyInt32, got, want, loc)}

	case isIntWidth(t, 64):
		p.stats.VerificationCallsAdded++
		return []ir.Instruction{ir.NewCall(p.rt.verifyInt64, got, want, loc)}

	case types.IsPointer(t):
		ptr1, c1 := p.castToI8Ptr(got)
		ptr2, c2 := p.castToI8Ptr(want)
		insts := append(c1, c2...)
		insts = append(insts, ir.NewCall(p.rt.verifyPointer, ptr1, ptr2, loc))
		p.stats.VerificationCallsAdded++
		return insts
	}

	return nil
}

// hardenVolatileLoad validates a volatile load's 32-bit value against the
// runtime's expected pattern.  Volatile loads are treated as hardware
// register reads: mismatches log, they never abort.
func (p *Pass) hardenVolatileLoad(f *ir.Func, li *ir.InstLoad) {
	b := blockOf(f, li)
	if b == nil || !li.Volatile {
		return
	}

	if isIntWidth(li.ElemType, 32) {
		ptr, casts := p.castToI8Ptr(li.Src)
		insts := append(casts, ir.NewCall(p.rt.validateHardwareIO, ptr, li))
		p.insertAfter(b, li, insts...)
		p.stats.VerificationCallsAdded++
	}

	p.stats.HardwareIOValidated++
	report.ReportTransform("validated hardware I/O operation in '%s'", f.Name())
}
