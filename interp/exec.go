package interp

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/pkg/errors"
)

// stepLimit bounds the number of executed blocks per call, so a corrupted
// branch cannot loop an interpreter test forever.
const stepLimit = 1 << 20

// execFunc runs f's CFG from the entry block until a return.
func (m *Machine) execFunc(f *ir.Func, fr *frame) (uint64, error) {
	var prev *ir.Block
	b := f.Blocks[0]

	for steps := 0; ; steps++ {
		if steps >= stepLimit {
			return 0, errors.Errorf("step limit exceeded in %q", f.Name())
		}

		if err := m.execPhis(b, prev, fr); err != nil {
			return 0, errors.Wrapf(err, "block %q", b.Name())
		}

		for _, inst := range b.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				continue
			}
			if err := m.execInst(inst, fr); err != nil {
				return 0, errors.Wrapf(err, "block %q", b.Name())
			}
		}

		switch term := b.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}
			return m.eval(term.X, fr)

		case *ir.TermBr:
			prev, b = b, term.Target.(*ir.Block)

		case *ir.TermCondBr:
			cond, err := m.eval(term.Cond, fr)
			if err != nil {
				return 0, err
			}
			if cond != 0 {
				prev, b = b, term.TargetTrue.(*ir.Block)
			} else {
				prev, b = b, term.TargetFalse.(*ir.Block)
			}

		case *ir.TermUnreachable:
			return 0, errors.Errorf("unreachable executed in %q (block %q)", f.Name(), b.Name())

		default:
			return 0, errors.Errorf("unsupported terminator %T", b.Term)
		}
	}
}

// execPhis evaluates the block's leading phi group against the edge just
// taken.  All incomings are read before any phi is bound, so phis that
// reference each other see the previous iteration's values.
func (m *Machine) execPhis(b *ir.Block, prev *ir.Block, fr *frame) error {
	var (
		phis []*ir.InstPhi
		vals []uint64
	)

	for _, inst := range b.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}
		if prev == nil {
			return errors.Errorf("phi %q in entry path", phi.Name())
		}

		var (
			v     uint64
			found bool
			err   error
		)
		for _, inc := range phi.Incs {
			if inc.Pred == prev {
				v, err = m.eval(inc.X, fr)
				if err != nil {
					return err
				}
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("phi %q has no incoming for %q", phi.Name(), prev.Name())
		}

		phis = append(phis, phi)
		vals = append(vals, v)
	}

	for i, phi := range phis {
		m.bind(phi, vals[i], fr)
	}
	return nil
}

// bind records an instruction result, running it through the fault hook.
func (m *Machine) bind(inst value.Named, v uint64, fr *frame) {
	if m.Hook != nil && inst.Name() != "" {
		v = m.Hook(inst.Name(), v)
	}
	fr.values[inst] = v
}

// execInst executes a single non-phi instruction.
func (m *Machine) execInst(inst ir.Instruction, fr *frame) error {
	switch cur := inst.(type) {
	case *ir.InstAlloca:
		size, err := typeSize(cur.ElemType)
		if err != nil {
			return err
		}
		n := uint64(1)
		if cur.NElems != nil {
			if n, err = m.eval(cur.NElems, fr); err != nil {
				return err
			}
		}
		addr, err := m.alloc(size * n)
		if err != nil {
			return err
		}
		m.bind(cur, addr, fr)
		return nil

	case *ir.InstLoad:
		addr, err := m.eval(cur.Src, fr)
		if err != nil {
			return err
		}
		size, err := typeSize(cur.ElemType)
		if err != nil {
			return err
		}
		v, err := m.load(addr, size)
		if err != nil {
			return err
		}
		m.bind(cur, v, fr)
		return nil

	case *ir.InstStore:
		v, err := m.eval(cur.Src, fr)
		if err != nil {
			return err
		}
		addr, err := m.eval(cur.Dst, fr)
		if err != nil {
			return err
		}
		size, err := typeSize(cur.Src.Type())
		if err != nil {
			return err
		}
		return m.store(addr, size, v)

	case *ir.InstGetElementPtr:
		return m.execGEP(cur, fr)

	case *ir.InstICmp:
		return m.execICmp(cur, fr)

	case *ir.InstCall:
		return m.execCall(cur, fr)

	case *ir.InstSelect:
		cond, err := m.eval(cur.Cond, fr)
		if err != nil {
			return err
		}
		pick := cur.ValueTrue
		if cond == 0 {
			pick = cur.ValueFalse
		}
		v, err := m.eval(pick, fr)
		if err != nil {
			return err
		}
		m.bind(cur, v, fr)
		return nil

	case *ir.InstZExt:
		return m.execCast(cur, cur.From, cur.To, fr, false)
	case *ir.InstSExt:
		return m.execCast(cur, cur.From, cur.To, fr, true)
	case *ir.InstTrunc:
		return m.execCast(cur, cur.From, cur.To, fr, false)
	case *ir.InstBitCast:
		v, err := m.eval(cur.From, fr)
		if err != nil {
			return err
		}
		m.bind(cur, v, fr)
		return nil
	case *ir.InstPtrToInt:
		v, err := m.eval(cur.From, fr)
		if err != nil {
			return err
		}
		m.bind(cur, v, fr)
		return nil
	case *ir.InstIntToPtr:
		v, err := m.eval(cur.From, fr)
		if err != nil {
			return err
		}
		m.bind(cur, v, fr)
		return nil
	}

	return m.execBinOp(inst, fr)
}

// execCast widens or narrows an integer, then masks to the target width.
func (m *Machine) execCast(inst value.Named, from value.Value, to types.Type, fr *frame, signed bool) error {
	v, err := m.eval(from, fr)
	if err != nil {
		return err
	}

	if signed {
		v = uint64(signExt(v, intWidth(from.Type())))
	}
	m.bind(inst, maskTo(v, intWidth(to)), fr)
	return nil
}

// execGEP computes an address from a base pointer and index list.  The first
// index scales by the pointee size; further indices descend into array
// element types.  Structs are not supported.
func (m *Machine) execGEP(gep *ir.InstGetElementPtr, fr *frame) error {
	addr, err := m.eval(gep.Src, fr)
	if err != nil {
		return err
	}

	elem := gep.ElemType
	for i, idx := range gep.Indices {
		iv, err := m.eval(idx, fr)
		if err != nil {
			return err
		}
		n := signExt(iv, intWidth(idx.Type()))

		if i > 0 {
			at, ok := elem.(*types.ArrayType)
			if !ok {
				return errors.Errorf("gep into non-array type %v", elem)
			}
			elem = at.ElemType
		}

		size, err := typeSize(elem)
		if err != nil {
			return err
		}
		addr = uint64(int64(addr) + n*int64(size))
	}

	m.bind(gep, addr, fr)
	return nil
}

// execICmp evaluates an integer comparison to 0 or 1.
func (m *Machine) execICmp(cmp *ir.InstICmp, fr *frame) error {
	x, err := m.eval(cmp.X, fr)
	if err != nil {
		return err
	}
	y, err := m.eval(cmp.Y, fr)
	if err != nil {
		return err
	}

	bits := intWidth(cmp.X.Type())
	ux, uy := maskTo(x, bits), maskTo(y, bits)
	sx, sy := signExt(x, bits), signExt(y, bits)

	var r bool
	switch cmp.Pred {
	case enum.IPredEQ:
		r = ux == uy
	case enum.IPredNE:
		r = ux != uy
	case enum.IPredULT:
		r = ux < uy
	case enum.IPredULE:
		r = ux <= uy
	case enum.IPredUGT:
		r = ux > uy
	case enum.IPredUGE:
		r = ux >= uy
	case enum.IPredSLT:
		r = sx < sy
	case enum.IPredSLE:
		r = sx <= sy
	case enum.IPredSGT:
		r = sx > sy
	case enum.IPredSGE:
		r = sx >= sy
	default:
		return errors.Errorf("unsupported icmp predicate %v", cmp.Pred)
	}

	v := uint64(0)
	if r {
		v = 1
	}
	m.bind(cmp, v, fr)
	return nil
}

// execBinOp evaluates the integer binary operations.
func (m *Machine) execBinOp(inst ir.Instruction, fr *frame) error {
	named, ok := inst.(value.Named)
	if !ok {
		return errors.Errorf("unsupported instruction %T", inst)
	}

	type binop struct {
		x, y value.Value
	}
	var op binop
	switch cur := inst.(type) {
	case *ir.InstAdd:
		op = binop{cur.X, cur.Y}
	case *ir.InstSub:
		op = binop{cur.X, cur.Y}
	case *ir.InstMul:
		op = binop{cur.X, cur.Y}
	case *ir.InstUDiv:
		op = binop{cur.X, cur.Y}
	case *ir.InstSDiv:
		op = binop{cur.X, cur.Y}
	case *ir.InstURem:
		op = binop{cur.X, cur.Y}
	case *ir.InstSRem:
		op = binop{cur.X, cur.Y}
	case *ir.InstAnd:
		op = binop{cur.X, cur.Y}
	case *ir.InstOr:
		op = binop{cur.X, cur.Y}
	case *ir.InstXor:
		op = binop{cur.X, cur.Y}
	case *ir.InstShl:
		op = binop{cur.X, cur.Y}
	case *ir.InstLShr:
		op = binop{cur.X, cur.Y}
	case *ir.InstAShr:
		op = binop{cur.X, cur.Y}
	default:
		return errors.Errorf("unsupported instruction %T", inst)
	}

	x, err := m.eval(op.x, fr)
	if err != nil {
		return err
	}
	y, err := m.eval(op.y, fr)
	if err != nil {
		return err
	}

	bits := intWidth(op.x.Type())
	ux, uy := maskTo(x, bits), maskTo(y, bits)
	sx, sy := signExt(x, bits), signExt(y, bits)

	var v uint64
	switch inst.(type) {
	case *ir.InstAdd:
		v = ux + uy
	case *ir.InstSub:
		v = ux - uy
	case *ir.InstMul:
		v = ux * uy
	case *ir.InstUDiv:
		if uy == 0 {
			return errors.New("unsigned division by zero")
		}
		v = ux / uy
	case *ir.InstSDiv:
		if sy == 0 {
			return errors.New("signed division by zero")
		}
		v = uint64(sx / sy)
	case *ir.InstURem:
		if uy == 0 {
			return errors.New("unsigned remainder by zero")
		}
		v = ux % uy
	case *ir.InstSRem:
		if sy == 0 {
			return errors.New("signed remainder by zero")
		}
		v = uint64(sx % sy)
	case *ir.InstAnd:
		v = ux & uy
	case *ir.InstOr:
		v = ux | uy
	case *ir.InstXor:
		v = ux ^ uy
	case *ir.InstShl:
		v = ux << (uy % bits)
	case *ir.InstLShr:
		v = ux >> (uy % bits)
	case *ir.InstAShr:
		v = uint64(sx >> (uy % bits))
	}

	m.bind(named, maskTo(v, bits), fr)
	return nil
}

// intWidth returns the bit width of an integer type, treating pointers as 64
// bits wide.
func intWidth(t types.Type) uint64 {
	if it, ok := t.(*types.IntType); ok {
		return it.BitSize
	}
	return 64
}

// maskTo truncates v to the low bits.
func maskTo(v, bits uint64) uint64 {
	if bits >= 64 {
		return v
	}
	return v & ((1 << bits) - 1)
}

// signExt interprets the low bits of v as a signed integer.
func signExt(v, bits uint64) int64 {
	if bits >= 64 {
		return int64(v)
	}
	v = maskTo(v, bits)
	if v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}
