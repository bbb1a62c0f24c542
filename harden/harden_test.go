package harden

import (
	"os"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/Prajwal-kp-18/llvm-fihardening/config"
	"github.com/Prajwal-kp-18/llvm-fihardening/report"
)

func TestMain(m *testing.M) {
	report.InitReporter(report.LogLevelSilent)
	os.Exit(m.Run())
}

// baseConfig returns a configuration with every strategy disabled so tests
// can enable exactly one.
func baseConfig(level int) *config.Config {
	return &config.Config{Level: level, VerifyAfter: true}
}

// countCalls counts calls to the named function across f.
func countCalls(f *ir.Func, name string) int {
	n := 0
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			if callee, ok := call.Callee.(*ir.Func); ok && callee.Name() == name {
				n++
			}
		}
	}
	return n
}

// mustVerify fails the test if f violates a structural invariant.
func mustVerify(t *testing.T, f *ir.Func) {
	t.Helper()
	for _, err := range VerifyFunc(f) {
		t.Errorf("structural verification: %s", err)
	}
}

// buildMaxFunc builds: max(a, b) { return a > b ? a : b } using a branch.
func buildMaxFunc(m *ir.Module) *ir.Func {
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	f := m.NewFunc("max", types.I32, a, b)

	entry := f.NewBlock("entry")
	retA := f.NewBlock("ret_a")
	retB := f.NewBlock("ret_b")

	cond := entry.NewICmp(enum.IPredSGT, a, b)
	cond.SetName("cond")
	entry.NewCondBr(cond, retA, retB)
	retA.NewRet(a)
	retB.NewRet(b)

	return f
}

func TestBranchHardening(t *testing.T) {
	m := ir.NewModule()
	f := buildMaxFunc(m)

	cfg := baseConfig(1)
	cfg.Branches = true

	pass := New(cfg)
	stats := pass.Run(m)

	if stats.BranchesHardened != 1 {
		t.Fatalf("expected 1 hardened branch, got %d", stats.BranchesHardened)
	}
	if n := countCalls(f, FnVerifyBranch); n != 1 {
		t.Errorf("expected 1 branch verification call, got %d", n)
	}

	// The branch must now take the conjunction of both evaluations.
	term := f.Blocks[0].Term.(*ir.TermCondBr)
	if _, ok := term.Cond.(*ir.InstAnd); !ok {
		t.Errorf("branch condition should be an and, got %T", term.Cond)
	}

	mustVerify(t, f)
}

func TestBranchLevelZeroSkipsNonEntry(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	f := m.NewFunc("f", types.I32, a)

	entry := f.NewBlock("entry")
	check := f.NewBlock("check")
	retA := f.NewBlock("ret_a")
	retZ := f.NewBlock("ret_z")

	entry.NewBr(check)
	cond := check.NewICmp(enum.IPredSGT, a, constant.NewInt(types.I32, 0))
	check.NewCondBr(cond, retA, retZ)
	retA.NewRet(a)
	retZ.NewRet(constant.NewInt(types.I32, 0))

	cfg := baseConfig(0)
	cfg.Branches = true

	stats := New(cfg).Run(m)

	if stats.BranchesHardened != 0 {
		t.Errorf("level 0 should skip a non-entry branch, hardened %d", stats.BranchesHardened)
	}
	if n := countCalls(f, FnVerifyBranch); n != 0 {
		t.Errorf("expected no verification calls, got %d", n)
	}
}

func TestLoadHardening(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	f := m.NewFunc("read", types.I32, ptr)

	entry := f.NewBlock("entry")
	load := entry.NewLoad(types.I32, ptr)
	load.SetName("val")
	entry.NewRet(load)

	cfg := baseConfig(1)
	cfg.Memory = true

	stats := New(cfg).Run(m)

	if stats.LoadsHardened != 1 {
		t.Fatalf("expected 1 hardened load, got %d", stats.LoadsHardened)
	}

	// The duplicate load sits before the original.
	var loads []int
	for i, inst := range f.Blocks[0].Insts {
		if _, ok := inst.(*ir.InstLoad); ok {
			loads = append(loads, i)
		}
	}
	if len(loads) != 2 {
		t.Fatalf("expected 2 loads, got %d", len(loads))
	}
	if n := countCalls(f, FnVerifyInt32); n != 1 {
		t.Errorf("expected 1 verification call, got %d", n)
	}

	mustVerify(t, f)
}

func TestLoadHardeningTripleAtLevel3(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	f := m.NewFunc("read", types.I32, ptr)

	entry := f.NewBlock("entry")
	load := entry.NewLoad(types.I32, ptr)
	entry.NewRet(load)

	cfg := baseConfig(3)
	cfg.Memory = true

	New(cfg).Run(m)

	n := 0
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if _, ok := inst.(*ir.InstLoad); ok {
				n++
			}
		}
	}
	if n != 3 {
		t.Errorf("expected 3 loads at level 3, got %d", n)
	}
	if c := countCalls(f, FnVerifyInt32); c != 2 {
		t.Errorf("expected 2 verification calls, got %d", c)
	}

	mustVerify(t, f)
}

func TestStoreReadBack(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	v := ir.NewParam("v", types.I32)
	f := m.NewFunc("write", types.Void, ptr, v)

	entry := f.NewBlock("entry")
	entry.NewStore(v, ptr)
	entry.NewRet(nil)

	cfg := baseConfig(1)
	cfg.Memory = true

	stats := New(cfg).Run(m)

	if stats.StoresHardened != 1 {
		t.Fatalf("expected 1 hardened store, got %d", stats.StoresHardened)
	}
	if n := countCalls(f, FnVerifyInt32); n != 1 {
		t.Errorf("expected a read-back verification call, got %d", n)
	}
	if n := countCalls(f, FnChecksumUpdate); n != 0 {
		t.Errorf("level 1 should not add checksum updates, got %d", n)
	}

	mustVerify(t, f)
}

func TestStoreChecksumAtLevel2(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	v := ir.NewParam("v", types.I32)
	f := m.NewFunc("write", types.Void, ptr, v)

	entry := f.NewBlock("entry")
	entry.NewStore(v, ptr)
	entry.NewRet(nil)

	cfg := baseConfig(2)
	cfg.Memory = true

	New(cfg).Run(m)

	if n := countCalls(f, FnChecksumUpdate); n != 1 {
		t.Errorf("expected 1 checksum update at level 2, got %d", n)
	}

	mustVerify(t, f)
}

func TestTMRAtLevel3(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	f := m.NewFunc("scale", types.I32, a, b)

	entry := f.NewBlock("entry")
	prod := entry.NewMul(a, b)
	prod.SetName("prod")
	entry.NewRet(prod)

	stats := New(baseConfig(3)).Run(m)

	if stats.TMRApplications != 1 {
		t.Fatalf("expected 1 TMR application, got %d", stats.TMRApplications)
	}
	if stats.InstructionsDuplicated != 2 {
		t.Errorf("expected 2 duplicated instructions, got %d", stats.InstructionsDuplicated)
	}

	// Entry now branches between the continue block and an error block that
	// logs and traps.
	if len(f.Blocks) != 3 {
		t.Fatalf("expected 3 blocks after the split, got %d", len(f.Blocks))
	}

	term, ok := f.Blocks[0].Term.(*ir.TermCondBr)
	if !ok {
		t.Fatalf("entry should end in a conditional branch, got %T", f.Blocks[0].Term)
	}

	errBlock := term.TargetFalse.(*ir.Block)
	if _, ok := errBlock.Term.(*ir.TermUnreachable); !ok {
		t.Errorf("error block should be unreachable, got %T", errBlock.Term)
	}
	if n := countCalls(f, FnLogFault); n != 1 {
		t.Errorf("expected 1 fault log in the error block, got %d", n)
	}

	mustVerify(t, f)
}

func TestTemporaryProtectionAtLevel2(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	f := m.NewFunc("sum", types.I32, a, b)

	entry := f.NewBlock("entry")
	sum := entry.NewAdd(a, b)
	sum.SetName("sum")
	entry.NewRet(sum)

	stats := New(baseConfig(2)).Run(m)

	if stats.TemporariesProtected != 1 {
		t.Fatalf("expected 1 protected temporary, got %d", stats.TemporariesProtected)
	}
	if stats.TMRApplications != 0 {
		t.Errorf("level 2 should not apply TMR, got %d", stats.TMRApplications)
	}
	if n := countCalls(f, FnVerifyInt32); n != 1 {
		t.Errorf("expected 1 verification call, got %d", n)
	}

	mustVerify(t, f)
}

func TestReturnAddressProtection(t *testing.T) {
	m := ir.NewModule()
	f := buildMaxFunc(m)

	cfg := baseConfig(1)
	cfg.Stack = true

	stats := New(cfg).Run(m)

	if stats.ReturnAddressesProtected != 1 {
		t.Fatalf("expected 1 protected function, got %d", stats.ReturnAddressesProtected)
	}

	// Entry starts with the slot allocation and registration.
	entry := f.Blocks[0]
	if _, ok := entry.Insts[0].(*ir.InstAlloca); !ok {
		t.Errorf("entry should start with the slot alloca, got %T", entry.Insts[0])
	}
	if n := countCalls(f, FnProtectReturnAddr); n != 1 {
		t.Errorf("expected 1 protect call, got %d", n)
	}

	// Both returns are verified and each gained a safe block and an error
	// block.
	if n := countCalls(f, FnVerifyReturnAddr); n != 2 {
		t.Errorf("expected 2 verify calls, got %d", n)
	}
	if len(f.Blocks) != 7 {
		t.Errorf("expected 7 blocks after splitting both returns, got %d", len(f.Blocks))
	}
	if stats.BasicBlocksSplit != 2 {
		t.Errorf("expected 2 block splits, got %d", stats.BasicBlocksSplit)
	}

	mustVerify(t, f)
}

func TestLevelZeroNothingCritical(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	f := m.NewFunc("touch", types.Void, ptr)

	// Everything lives outside the entry block and nothing feeds a return
	// or a branch condition.
	entry := f.NewBlock("entry")
	body := f.NewBlock("body")
	entry.NewBr(body)
	v := body.NewLoad(types.I32, ptr)
	inc := body.NewAdd(v, constant.NewInt(types.I32, 1))
	body.NewStore(inc, ptr)
	body.NewRet(nil)

	cfg := config.Default()
	cfg.Level = 0

	stats := New(cfg).Run(m)

	if total := stats.Total(); total != 0 {
		t.Errorf("level 0 with nothing critical applied %d transforms", total)
	}
	if stats.VerificationCallsAdded != 0 {
		t.Errorf("expected no verification calls, got %d", stats.VerificationCallsAdded)
	}

	mustVerify(t, f)
}

func TestCriticalVariableShadow(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	f := m.NewFunc("f", types.I32, a)

	entry := f.NewBlock("entry")
	slot := entry.NewAlloca(types.I32)
	slot.SetName("x")
	entry.NewStore(a, slot)
	load := entry.NewLoad(types.I32, slot)
	entry.NewRet(load)

	cfg := baseConfig(2)
	cfg.DataRedundancy = true

	stats := New(cfg).Run(m)

	if stats.CriticalVariablesProtected != 1 {
		t.Fatalf("expected 1 protected variable, got %d", stats.CriticalVariablesProtected)
	}

	allocas, stores := 0, 0
	for _, inst := range entry.Insts {
		switch inst.(type) {
		case *ir.InstAlloca:
			allocas++
		case *ir.InstStore:
			stores++
		}
	}
	if allocas != 2 {
		t.Errorf("expected the shadow alloca, got %d allocas", allocas)
	}
	if stores != 2 {
		t.Errorf("expected the mirrored store, got %d stores", stores)
	}

	mustVerify(t, f)
}

func TestBoundsCheck(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	idx := ir.NewParam("idx", types.I64)
	f := m.NewFunc("index", types.I32, ptr, idx)

	entry := f.NewBlock("entry")
	gep := entry.NewGetElementPtr(types.I32, ptr, idx)
	gep.SetName("slot")
	load := entry.NewLoad(types.I32, gep)
	entry.NewRet(load)

	cfg := baseConfig(1)
	cfg.MemorySafety = true

	stats := New(cfg).Run(m)

	if stats.BoundsChecksAdded != 1 {
		t.Fatalf("expected 1 bounds check, got %d", stats.BoundsChecksAdded)
	}
	if n := countCalls(f, FnCheckBounds); n != 1 {
		t.Errorf("expected 1 bounds call, got %d", n)
	}

	// The load must have moved past the check into the safe block.
	if len(f.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(f.Blocks))
	}
	safe := f.Blocks[0].Term.(*ir.TermCondBr).TargetTrue.(*ir.Block)
	if !strings.HasPrefix(safe.Name(), "bounds_safe") {
		t.Errorf("true edge should enter the safe block, got %q", safe.Name())
	}
	if _, ok := safe.Insts[0].(*ir.InstLoad); !ok {
		t.Errorf("load should live in the safe block, got %T", safe.Insts[0])
	}

	mustVerify(t, f)
}

func TestPhiVerification(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	f := m.NewFunc("abs", types.I32, a)

	entry := f.NewBlock("entry")
	neg := f.NewBlock("neg")
	done := f.NewBlock("done")

	cond := entry.NewICmp(enum.IPredSLT, a, constant.NewInt(types.I32, 0))
	entry.NewCondBr(cond, neg, done)
	negVal := neg.NewSub(constant.NewInt(types.I32, 0), a)
	neg.NewBr(done)
	phi := done.NewPhi(ir.NewIncoming(negVal, neg), ir.NewIncoming(a, entry))
	phi.SetName("res")
	done.NewRet(phi)

	stats := New(baseConfig(2)).Run(m)

	if stats.PhiNodesVerified != 1 {
		t.Fatalf("expected 1 verified phi, got %d", stats.PhiNodesVerified)
	}

	phis := 0
	for _, inst := range done.Insts {
		if _, ok := inst.(*ir.InstPhi); ok {
			phis++
		}
	}
	if phis != 2 {
		t.Errorf("expected the duplicate phi, got %d phis", phis)
	}

	mustVerify(t, f)
}

func TestIndirectCallCFI(t *testing.T) {
	m := ir.NewModule()
	fp := ir.NewParam("fp", types.NewPointer(types.NewFunc(types.I32, types.I32)))
	x := ir.NewParam("x", types.I32)
	f := m.NewFunc("apply", types.I32, fp, x)

	entry := f.NewBlock("entry")
	call := entry.NewCall(fp, x)
	call.SetName("res")
	entry.NewRet(call)

	cfg := baseConfig(1)
	cfg.CFI = true
	cfg.Logging = true

	stats := New(cfg).Run(m)

	if stats.IndirectCallsHardened != 1 {
		t.Fatalf("expected 1 hardened indirect call, got %d", stats.IndirectCallsHardened)
	}
	if n := countCalls(f, FnVerifyCFI); n != 1 {
		t.Errorf("expected 1 CFI verification call, got %d", n)
	}
	if n := countCalls(f, FnLogFault); n != 1 {
		t.Errorf("expected 1 pass log call, got %d", n)
	}

	// The check must run before the call it guards.
	check, indirect := -1, -1
	for i, inst := range entry.Insts {
		ci, ok := inst.(*ir.InstCall)
		if !ok {
			continue
		}
		if callee, ok := ci.Callee.(*ir.Func); ok && callee.Name() == FnVerifyCFI {
			check = i
		}
		if ci == call {
			indirect = i
		}
	}
	if check < 0 || indirect < 0 || check >= indirect {
		t.Errorf("CFI check at %d should precede the call at %d", check, indirect)
	}

	// The diagnostic location carries the indirect_call category.
	found := false
	for _, g := range m.Globals {
		if arr, ok := g.Init.(*constant.CharArray); ok &&
			strings.Contains(string(arr.X), "apply:indirect_call") {
			found = true
		}
	}
	if !found {
		t.Error("expected an interned apply:indirect_call location string")
	}

	mustVerify(t, f)
}

func TestExceptionPathLogging(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("handler", types.Void)

	entry := f.NewBlock("entry")
	lpad := f.NewBlock("lpad")
	entry.NewBr(lpad)
	lp := lpad.NewLandingPad(types.NewStruct(types.I8Ptr, types.I32))
	lp.Cleanup = true
	lpad.NewRet(nil)

	cfg := baseConfig(1)
	cfg.Exceptions = true
	cfg.Logging = true

	stats := New(cfg).Run(m)

	if stats.ExceptionPathsHardened != 1 {
		t.Fatalf("expected 1 hardened exception path, got %d", stats.ExceptionPathsHardened)
	}
	if stats.FaultLogsAdded != 1 {
		t.Errorf("expected 1 fault log, got %d", stats.FaultLogsAdded)
	}
	if n := countCalls(f, FnLogFault); n != 1 {
		t.Errorf("expected 1 log call, got %d", n)
	}

	// The log call sits directly after the landing pad.
	if len(lpad.Insts) < 2 {
		t.Fatalf("expected the log call in the landing pad block, got %d instructions", len(lpad.Insts))
	}
	if _, ok := lpad.Insts[0].(*ir.InstLandingPad); !ok {
		t.Errorf("landing pad must stay first, got %T", lpad.Insts[0])
	}
	if _, ok := lpad.Insts[1].(*ir.InstCall); !ok {
		t.Errorf("log call should follow the landing pad, got %T", lpad.Insts[1])
	}

	mustVerify(t, f)
}

func TestVolatileLoadValidation(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("reg", types.NewPointer(types.I32))
	f := m.NewFunc("read_reg", types.I32, ptr)

	entry := f.NewBlock("entry")
	load := entry.NewLoad(types.I32, ptr)
	load.Volatile = true
	load.SetName("mmio")
	entry.NewRet(load)

	cfg := baseConfig(1)
	cfg.HardwareIO = true

	stats := New(cfg).Run(m)

	if stats.HardwareIOValidated != 1 {
		t.Fatalf("expected 1 validated volatile load, got %d", stats.HardwareIOValidated)
	}
	if n := countCalls(f, FnValidateHardwareIO); n != 1 {
		t.Errorf("expected 1 validation call, got %d", n)
	}
	if stats.LoadsHardened != 0 {
		t.Errorf("volatile validation must not duplicate the load, hardened %d", stats.LoadsHardened)
	}

	mustVerify(t, f)
}

func TestVolatileValidationSkipsPlainLoads(t *testing.T) {
	m := ir.NewModule()
	ptr := ir.NewParam("ptr", types.NewPointer(types.I32))
	f := m.NewFunc("read", types.I32, ptr)

	entry := f.NewBlock("entry")
	load := entry.NewLoad(types.I32, ptr)
	entry.NewRet(load)

	cfg := baseConfig(1)
	cfg.HardwareIO = true

	stats := New(cfg).Run(m)

	if stats.HardwareIOValidated != 0 {
		t.Errorf("non-volatile load should not be validated, got %d", stats.HardwareIOValidated)
	}
	if n := countCalls(f, FnValidateHardwareIO); n != 0 {
		t.Errorf("expected no validation calls, got %d", n)
	}
}

func TestTimingNoiseBeforeBranches(t *testing.T) {
	m := ir.NewModule()
	f := buildMaxFunc(m)

	cfg := baseConfig(2)
	cfg.Timing = true

	stats := New(cfg).Run(m)

	if stats.TimingMitigationsAdded != 1 {
		t.Fatalf("expected 1 timing mitigation, got %d", stats.TimingMitigationsAdded)
	}
	if n := countCalls(f, FnAddTimingNoise); n != 1 {
		t.Errorf("expected 1 noise call, got %d", n)
	}

	mustVerify(t, f)
}

func TestTimingNoiseInactiveBelowLevel2(t *testing.T) {
	m := ir.NewModule()
	f := buildMaxFunc(m)

	cfg := baseConfig(1)
	cfg.Timing = true

	stats := New(cfg).Run(m)

	if stats.TimingMitigationsAdded != 0 {
		t.Errorf("level 1 should add no timing noise, got %d", stats.TimingMitigationsAdded)
	}
	if n := countCalls(f, FnAddTimingNoise); n != 0 {
		t.Errorf("expected no noise calls, got %d", n)
	}
}

func TestSelectProtectedBySweep(t *testing.T) {
	m := ir.NewModule()
	c := ir.NewParam("c", types.I32)
	a := ir.NewParam("a", types.I32)
	b := ir.NewParam("b", types.I32)
	f := m.NewFunc("pick", types.I32, c, a, b)

	entry := f.NewBlock("entry")
	cond := entry.NewICmp(enum.IPredNE, c, constant.NewInt(types.I32, 0))
	cond.SetName("cond")
	sel := entry.NewSelect(cond, a, b)
	sel.SetName("sel")
	entry.NewRet(sel)

	stats := New(baseConfig(3)).Run(m)

	if stats.TemporariesProtected != 2 {
		t.Fatalf("expected the compare and the select protected, got %d", stats.TemporariesProtected)
	}

	selects := 0
	for _, inst := range entry.Insts {
		if dup, ok := inst.(*ir.InstSelect); ok {
			selects++
			if dup.Cond != cond || dup.ValueTrue != a || dup.ValueFalse != b {
				t.Error("duplicated select must recompute from the original operands")
			}
		}
	}
	if selects != 2 {
		t.Errorf("expected the duplicate select, got %d selects", selects)
	}
	if n := countCalls(f, FnVerifyInt32); n != 2 {
		t.Errorf("expected 2 verification calls, got %d", n)
	}

	mustVerify(t, f)
}

func TestRuntimeCallsNeverInstrumented(t *testing.T) {
	m := ir.NewModule()
	rt := declareRuntimeFuncs(m)

	f := m.NewFunc("f", types.Void)
	entry := f.NewBlock("entry")
	loc := m.NewGlobalDef("loc", constant.NewCharArrayFromString("x\x00"))
	entry.NewCall(rt.verifyInt32,
		constant.NewInt(types.I32, 1), constant.NewInt(types.I32, 1),
		constant.NewBitCast(loc, types.I8Ptr))
	entry.NewRet(nil)

	cfg := baseConfig(3)
	cfg.CFI = true
	cfg.Logging = true

	stats := New(cfg).Run(m)

	if stats.Total() != 0 {
		t.Errorf("runtime calls must not be instrumented, applied %d transforms", stats.Total())
	}
}

func TestLocationInterning(t *testing.T) {
	p := New(baseConfig(1))
	p.m = ir.NewModule()

	l1 := p.location("f", "load")
	l2 := p.location("f", "load")
	l3 := p.location("f", "store")

	if l1 != l2 {
		t.Error("identical locations should intern to the same constant")
	}
	if l1 == l3 {
		t.Error("distinct locations should not share a constant")
	}
	if len(p.m.Globals) != 2 {
		t.Errorf("expected 2 location globals, got %d", len(p.m.Globals))
	}
}

func TestVerifyFuncDetectsBrokenCFG(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("broken", types.Void)
	f.NewBlock("entry")

	if len(VerifyFunc(f)) == 0 {
		t.Error("a block without a terminator should fail verification")
	}
}

func TestVerifyFuncDetectsBadPhi(t *testing.T) {
	m := ir.NewModule()
	a := ir.NewParam("a", types.I32)
	f := m.NewFunc("f", types.I32, a)

	entry := f.NewBlock("entry")
	other := f.NewBlock("other")
	done := f.NewBlock("done")

	entry.NewBr(done)
	other.NewBr(done)

	// One incoming for two predecessors.
	phi := done.NewPhi(ir.NewIncoming(a, entry))
	done.NewRet(phi)

	if len(VerifyFunc(f)) == 0 {
		t.Error("a phi missing an incoming edge should fail verification")
	}
}
