package harden

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// This file classifies instructions into hardening categories and implements
// the critical-path heuristic used at level 0.

// shouldSkip reports whether an instruction must never be instrumented:
// debug and other llvm. intrinsics, exception unwinding control, and calls
// into the verification runtime itself (instrumenting those would recurse).
func shouldSkip(inst ir.Instruction) bool {
	switch cur := inst.(type) {
	case *ir.InstLandingPad:
		return true
	case *ir.InstCall:
		callee, ok := cur.Callee.(*ir.Func)
		if !ok {
			return false
		}
		name := callee.Name()
		return strings.HasPrefix(name, "llvm.") || strings.HasPrefix(name, "fi_")
	}

	return false
}

// isRuntimeFunc reports whether the named function is part of the
// verification runtime and must not be transformed.
func isRuntimeFunc(name string) bool {
	return strings.HasPrefix(name, "fi_verify") || strings.HasPrefix(name, "fi_checksum") ||
		strings.HasPrefix(name, "fi_check") || strings.HasPrefix(name, "fi_log") ||
		strings.HasPrefix(name, "fi_protect") || strings.HasPrefix(name, "fi_validate") ||
		strings.HasPrefix(name, "fi_add")
}

// onCriticalPath is the level-0 selection heuristic: an instruction is
// critical if it sits in the entry block or if a direct consumer is a return
// or a conditional branch.  The heuristic deliberately does not follow
// def-use chains beyond one hop, so causally critical instructions further
// up a chain are missed at level 0.
func onCriticalPath(f *ir.Func, inst ir.Instruction) bool {
	v, isValue := inst.(value.Value)

	for i, b := range f.Blocks {
		if i == 0 {
			if indexOf(b, inst) >= 0 {
				return true
			}
		}

		if !isValue {
			continue
		}

		switch term := b.Term.(type) {
		case *ir.TermRet:
			if term.X == v {
				return true
			}
		case *ir.TermCondBr:
			if term.Cond == v {
				return true
			}
		}
	}

	return false
}

// termOnCriticalPath is the heuristic specialized for terminators, which are
// never consumed by other instructions: only entry-block membership applies.
func termOnCriticalPath(f *ir.Func, b *ir.Block) bool {
	return len(f.Blocks) > 0 && f.Blocks[0] == b
}

// instOperands returns the value operands of the instruction kinds the pass
// reasons about.  Unsupported kinds return nil, which conservatively reads
// as "no uses found".
func instOperands(inst ir.Instruction) []value.Value {
	switch cur := inst.(type) {
	case *ir.InstAdd:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstSub:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstMul:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstUDiv:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstSDiv:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstURem:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstSRem:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFAdd:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFSub:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFMul:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFDiv:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFRem:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstShl:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstLShr:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstAShr:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstAnd:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstOr:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstXor:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstICmp:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstFCmp:
		return []value.Value{cur.X, cur.Y}
	case *ir.InstLoad:
		return []value.Value{cur.Src}
	case *ir.InstStore:
		return []value.Value{cur.Src, cur.Dst}
	case *ir.InstGetElementPtr:
		return append([]value.Value{cur.Src}, cur.Indices...)
	case *ir.InstTrunc:
		return []value.Value{cur.From}
	case *ir.InstZExt:
		return []value.Value{cur.From}
	case *ir.InstSExt:
		return []value.Value{cur.From}
	case *ir.InstPtrToInt:
		return []value.Value{cur.From}
	case *ir.InstIntToPtr:
		return []value.Value{cur.From}
	case *ir.InstBitCast:
		return []value.Value{cur.From}
	case *ir.InstSelect:
		return []value.Value{cur.Cond, cur.ValueTrue, cur.ValueFalse}
	case *ir.InstCall:
		return append([]value.Value{cur.Callee}, cur.Args...)
	case *ir.InstPhi:
		operands := make([]value.Value, 0, len(cur.Incs))
		for _, inc := range cur.Incs {
			operands = append(operands, inc.X)
		}
		return operands
	}

	return nil
}

// hasUses reports whether any instruction or terminator in f consumes v.
func hasUses(f *ir.Func, v value.Value) bool {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			for _, op := range instOperands(inst) {
				if op == v {
					return true
				}
			}
		}

		switch term := b.Term.(type) {
		case *ir.TermRet:
			if term.X == v {
				return true
			}
		case *ir.TermCondBr:
			if term.Cond == v {
				return true
			}
		}
	}

	return false
}

// loadsOf returns every load whose address operand is the given alloca.
func loadsOf(f *ir.Func, alloca *ir.InstAlloca) []*ir.InstLoad {
	var loads []*ir.InstLoad
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if load, ok := inst.(*ir.InstLoad); ok && load.Src == alloca {
				loads = append(loads, load)
			}
		}
	}
	return loads
}

// storesTo returns every store whose address operand is the given alloca,
// paired with its enclosing block.
func storesTo(f *ir.Func, alloca *ir.InstAlloca) []storeSite {
	var stores []storeSite
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if store, ok := inst.(*ir.InstStore); ok && store.Dst == alloca {
				stores = append(stores, storeSite{block: b, store: store})
			}
		}
	}
	return stores
}

type storeSite struct {
	block *ir.Block
	store *ir.InstStore
}

// feedsCmpOrRet reports whether v is consumed by a comparison or a return.
func feedsCmpOrRet(f *ir.Func, v value.Value) bool {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if cmp, ok := inst.(*ir.InstICmp); ok && (cmp.X == v || cmp.Y == v) {
				return true
			}
		}
		if term, ok := b.Term.(*ir.TermRet); ok && term.X == v {
			return true
		}
	}
	return false
}
