package harden

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// This file contains the CFG edit primitives shared by all rewrite
// strategies: block splitting with edge rewiring, instruction cloning and
// splicing, location string interning, and unique local naming.

// name produces a unique local name from a base.  llir does not uniquify
// names the way LLVM's IRBuilder does, so every inserted value gets a
// counter suffix.
func (p *Pass) name(base string) string {
	p.nameCounter++
	return fmt.Sprintf("%s.%d", base, p.nameCounter)
}

// indexOf returns the position of inst within its block, or -1.
func indexOf(b *ir.Block, inst ir.Instruction) int {
	for i, cur := range b.Insts {
		if cur == inst {
			return i
		}
	}
	return -1
}

// insertInsts splices insts into b at position pos.  Position len(b.Insts)
// appends directly before the terminator.  Every spliced instruction is
// recorded as engine-inserted so later phases never instrument it again.
func (p *Pass) insertInsts(b *ir.Block, pos int, insts ...ir.Instruction) {
	for _, inst := range insts {
		p.inserted[inst] = struct{}{}
	}

	tail := make([]ir.Instruction, len(b.Insts[pos:]))
	copy(tail, b.Insts[pos:])
	b.Insts = append(b.Insts[:pos], insts...)
	b.Insts = append(b.Insts, tail...)
}

// insertAfter splices insts into b immediately after inst.  If inst is not
// found the instructions are appended at the end of the block body.
func (p *Pass) insertAfter(b *ir.Block, inst ir.Instruction, insts ...ir.Instruction) {
	if i := indexOf(b, inst); i >= 0 {
		p.insertInsts(b, i+1, insts...)
	} else {
		p.insertInsts(b, len(b.Insts), insts...)
	}
}

// insertBlockAfter creates a new block named name and places it immediately
// after the given block in the function's block order.
func (p *Pass) insertBlockAfter(after *ir.Block, name string) *ir.Block {
	f := after.Parent
	nb := ir.NewBlock(p.name(name))
	nb.Parent = f

	for i, b := range f.Blocks {
		if b == after {
			f.Blocks = append(f.Blocks, nil)
			copy(f.Blocks[i+2:], f.Blocks[i+1:])
			f.Blocks[i+1] = nb
			return nb
		}
	}

	f.Blocks = append(f.Blocks, nb)
	return nb
}

// splitAfter cuts b after the instruction at index idx.  All following
// instructions and the terminator move into a new block placed right after b
// in block order; phi incomings in the moved terminator's successors are
// rewired from b to the new block.  b is left without a terminator: the
// caller installs the branch that chooses between the new block and any
// error path.
func (p *Pass) splitAfter(b *ir.Block, idx int, name string) *ir.Block {
	nb := p.insertBlockAfter(b, name)

	nb.Insts = append(nb.Insts, b.Insts[idx+1:]...)
	nb.Term = b.Term
	b.Insts = b.Insts[:idx+1]
	b.Term = nil

	// Edges that crossed the split point now originate from the new block.
	for _, succ := range nb.Term.Succs() {
		rewirePhiPred(succ, b, nb)
	}

	p.stats.BasicBlocksSplit++
	return nb
}

// rewirePhiPred redirects phi incomings in b from oldPred to newPred.
func rewirePhiPred(b *ir.Block, oldPred, newPred *ir.Block) {
	for _, inst := range b.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			// Phi instructions are grouped at the top of the block.
			break
		}
		for _, inc := range phi.Incs {
			if inc.Pred == oldPred {
				inc.Pred = newPred
			}
		}
	}
}

// location returns the interned i8* location string constant
// "functionName:category" for diagnostics emitted from fnName.
func (p *Pass) location(fnName, category string) value.Value {
	return p.internString(fnName + ":" + category)
}

// internString returns an interned i8* constant for an arbitrary diagnostic
// message.
func (p *Pass) internString(s string) value.Value {
	if loc, ok := p.locs[s]; ok {
		return loc
	}

	g := p.m.NewGlobalDef(fmt.Sprintf(".fi.loc.%d", len(p.locs)), constant.NewCharArrayFromString(s+"\x00"))
	g.Immutable = true

	loc := constant.NewBitCast(g, types.I8Ptr)
	p.locs[s] = loc
	return loc
}

// castToI8Ptr produces an i8* view of v.  The returned instruction slice is
// empty when v already has type i8*.
func (p *Pass) castToI8Ptr(v value.Value) (value.Value, []ir.Instruction) {
	if ptr, ok := v.Type().(*types.PointerType); ok {
		if it, ok := ptr.ElemType.(*types.IntType); ok && it.BitSize == 8 {
			return v, nil
		}
	}

	cast := ir.NewBitCast(v, types.I8Ptr)
	cast.SetName(p.name("cast"))
	return cast, []ir.Instruction{cast}
}

// zextToI32 widens a boolean or narrow integer to i32 for the verification
// call ABI.
func (p *Pass) zextToI32(v value.Value) (value.Value, []ir.Instruction) {
	if isIntWidth(v.Type(), 32) {
		return v, nil
	}

	ext := ir.NewZExt(v, types.I32)
	ext.SetName(p.name("ext"))
	return ext, []ir.Instruction{ext}
}

// adjustToI32 widens or narrows an arbitrary integer to i32.
func (p *Pass) adjustToI32(v value.Value) (value.Value, []ir.Instruction) {
	it, ok := v.Type().(*types.IntType)
	if !ok || it.BitSize == 32 {
		return v, nil
	}

	if it.BitSize < 32 {
		return p.zextToI32(v)
	}

	trunc := ir.NewTrunc(v, types.I32)
	trunc.SetName(p.name("trunc"))
	return trunc, []ir.Instruction{trunc}
}

// isIntWidth reports whether t is an integer type of the given bit width.
func isIntWidth(t types.Type, bits uint64) bool {
	it, ok := t.(*types.IntType)
	return ok && it.BitSize == bits
}

// storeSize returns the in-memory size of a stored value of type t in bytes,
// or 0 for types the pass does not track.
func storeSize(t types.Type) uint64 {
	switch tt := t.(type) {
	case *types.IntType:
		return (tt.BitSize + 7) / 8
	case *types.PointerType:
		return 8
	case *types.FloatType:
		switch tt.Kind {
		case types.FloatKindFloat:
			return 4
		case types.FloatKindDouble:
			return 8
		}
	}
	return 0
}

// cloneInst creates an independent copy of inst computing the same operation
// from the same operands.  Instruction kinds the rewriters never duplicate
// return nil.
func cloneInst(inst ir.Instruction) ir.Instruction {
	switch cur := inst.(type) {
	case *ir.InstAdd:
		return ir.NewAdd(cur.X, cur.Y)
	case *ir.InstSub:
		return ir.NewSub(cur.X, cur.Y)
	case *ir.InstMul:
		return ir.NewMul(cur.X, cur.Y)
	case *ir.InstUDiv:
		return ir.NewUDiv(cur.X, cur.Y)
	case *ir.InstSDiv:
		return ir.NewSDiv(cur.X, cur.Y)
	case *ir.InstURem:
		return ir.NewURem(cur.X, cur.Y)
	case *ir.InstSRem:
		return ir.NewSRem(cur.X, cur.Y)
	case *ir.InstFAdd:
		return ir.NewFAdd(cur.X, cur.Y)
	case *ir.InstFSub:
		return ir.NewFSub(cur.X, cur.Y)
	case *ir.InstFMul:
		return ir.NewFMul(cur.X, cur.Y)
	case *ir.InstFDiv:
		return ir.NewFDiv(cur.X, cur.Y)
	case *ir.InstFRem:
		return ir.NewFRem(cur.X, cur.Y)
	case *ir.InstShl:
		return ir.NewShl(cur.X, cur.Y)
	case *ir.InstLShr:
		return ir.NewLShr(cur.X, cur.Y)
	case *ir.InstAShr:
		return ir.NewAShr(cur.X, cur.Y)
	case *ir.InstAnd:
		return ir.NewAnd(cur.X, cur.Y)
	case *ir.InstOr:
		return ir.NewOr(cur.X, cur.Y)
	case *ir.InstXor:
		return ir.NewXor(cur.X, cur.Y)
	case *ir.InstICmp:
		return ir.NewICmp(cur.Pred, cur.X, cur.Y)
	case *ir.InstFCmp:
		return ir.NewFCmp(cur.Pred, cur.X, cur.Y)
	case *ir.InstLoad:
		dup := ir.NewLoad(cur.ElemType, cur.Src)
		dup.Align = cur.Align
		dup.Volatile = cur.Volatile
		return dup
	case *ir.InstGetElementPtr:
		return ir.NewGetElementPtr(cur.ElemType, cur.Src, cur.Indices...)
	case *ir.InstTrunc:
		return ir.NewTrunc(cur.From, cur.To)
	case *ir.InstZExt:
		return ir.NewZExt(cur.From, cur.To)
	case *ir.InstSExt:
		return ir.NewSExt(cur.From, cur.To)
	case *ir.InstPtrToInt:
		return ir.NewPtrToInt(cur.From, cur.To)
	case *ir.InstIntToPtr:
		return ir.NewIntToPtr(cur.From, cur.To)
	case *ir.InstBitCast:
		return ir.NewBitCast(cur.From, cur.To)
	case *ir.InstSelect:
		return ir.NewSelect(cur.Cond, cur.ValueTrue, cur.ValueFalse)
	default:
		return nil
	}
}
