package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

// comprehensiveSweep widens coverage beyond the per-category strategies:
// every phi node is re-merged and verified, critical arithmetic gets triple
// modular redundancy at level 3, and a sampled fraction of remaining
// temporaries is recomputed and verified.  Sampling keeps the code-size
// blowup proportional to the level: half the temporaries at level 2, all of
// them at level 3.
func (p *Pass) comprehensiveSweep(f *ir.Func) {
	var (
		phis        []*ir.InstPhi
		tmr         []ir.Instruction
		temporaries []ir.Instruction
	)

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if shouldSkip(inst) {
				continue
			}
			if _, ours := p.inserted[inst]; ours {
				continue
			}

			switch cur := inst.(type) {
			case *ir.InstPhi:
				phis = append(phis, cur)
				continue
			case *ir.InstAlloca, *ir.InstLoad, *ir.InstStore, *ir.InstCall:
				continue
			}

			if p.cfg.Level >= 3 && isTMRCandidate(inst) {
				tmr = append(tmr, inst)
				continue
			}

			v, ok := inst.(value.Value)
			if !ok || !hasUses(f, v) {
				continue
			}
			if !types.IsInt(v.Type()) && !types.IsPointer(v.Type()) {
				continue
			}

			temporaries = append(temporaries, inst)
		}
	}

	applied := false

	for _, phi := range phis {
		p.verifyPhiNode(f, phi)
		applied = true
	}

	for _, inst := range tmr {
		p.applyTMR(f, inst)
		applied = true
	}

	// Protection rate in percent, by level.
	rate := 50
	if p.cfg.Level >= 3 {
		rate = 100
	}

	for i, inst := range temporaries {
		if i%(100/rate) != 0 {
			continue
		}
		if p.protectTemporary(f, inst) {
			applied = true
		}
	}

	if applied {
		p.stats.SweepHardenedFunctions++
		report.ReportTransform("sweep-hardened function '%s'", f.Name())
	}
}

// verifyPhiNode duplicates a phi with the same incoming edges and verifies
// the two merge to the same value.  The duplicate stays inside the block's
// leading phi group; the verification call goes after the last phi.
func (p *Pass) verifyPhiNode(f *ir.Func, phi *ir.InstPhi) {
	b := blockOf(f, phi)
	if b == nil {
		return
	}

	incs := make([]*ir.Incoming, len(phi.Incs))
	for i, inc := range phi.Incs {
		incs[i] = ir.NewIncoming(inc.X, inc.Pred.(*ir.Block))
	}
	dup := ir.NewPhi(incs...)
	dup.Typ = phi.Typ
	dup.SetName(p.name("phi.dup"))
	p.insertAfter(b, phi, dup)
	p.stats.InstructionsDuplicated++

	// Find the end of the phi group.
	end := 0
	for end < len(b.Insts) {
		if _, ok := b.Insts[end].(*ir.InstPhi); !ok {
			break
		}
		end++
	}

	loc := p.location(f.Name(), "phi")
	if insts := p.verifyPair(phi, dup, loc); insts != nil {
		p.insertInsts(b, end, insts...)
	}

	p.stats.PhiNodesVerified++
}

// protectTemporary recomputes an intermediate value from its operands and
// verifies the two results agree.  Integers outside the native verification
// widths are widened or narrowed to 32 bits for the comparison.
func (p *Pass) protectTemporary(f *ir.Func, inst ir.Instruction) bool {
	b := blockOf(f, inst)
	if b == nil {
		return false
	}

	dup := cloneInst(inst)
	if dup == nil {
		return false
	}
	dup.(value.Named).SetName(p.name("temp.dup"))
	p.stats.InstructionsDuplicated++

	orig := inst.(value.Value)
	loc := p.location(f.Name(), "temp")

	var after []ir.Instruction
	after = append(after, dup)

	t := orig.Type()
	switch {
	case isIntWidth(t, 32), isIntWidth(t, 64), types.IsPointer(t):
		after = append(after, p.verifyPair(orig, dup.(value.Value), loc)...)

	case types.IsInt(t):
		a1, c1 := p.adjustToI32(orig)
		a2, c2 := p.adjustToI32(dup.(value.Value))
		after = append(after, c1...)
		after = append(after, c2...)
		after = append(after, ir.NewCall(p.rt.verifyInt32, a1, a2, loc))
		p.stats.VerificationCallsAdded++

	default:
		return false
	}

	p.insertAfter(b, inst, after...)
	p.stats.TemporariesProtected++
	return true
}
