// Package interp executes LLVM IR modules directly, without lowering to
// machine code.  It exists to run hardened modules against the verification
// runtime: memory is a flat byte arena the runtime can read through, and a
// fault hook lets callers corrupt individual SSA values to model transient
// faults.
//
// The interpreter covers the integer and pointer subset of IR the hardening
// engine emits.  Floating point, vectors, and structs are out of scope and
// surface as errors.
package interp

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/pkg/errors"

	"github.com/Prajwal-kp-18/llvm-fihardening/fir"
)

// arenaSize is the size of a machine's memory arena in bytes.
const arenaSize = 1 << 16

// funcAddrBase is where function pseudo-addresses start.  They live far
// outside the arena so an arena access through one always fails loudly.
const funcAddrBase = uint64(1) << 32

// FaultHook is called after every named instruction produces its value and
// may return a corrupted replacement.  It is the test seam for modelling
// single-event upsets.
type FaultHook func(name string, v uint64) uint64

// Machine executes functions of a single module.  All values are carried as
// uint64; narrower integers occupy the low bits.
type Machine struct {
	mod *ir.Module
	rt  *fir.Runtime

	// mem is the flat memory arena.  Address 0 is never handed out.
	mem []byte
	brk uint64

	globals     map[*ir.Global]uint64
	funcAddrs   map[*ir.Func]uint64
	funcsByAddr map[uint64]*ir.Func

	// Hook receives every named instruction result.  Nil means no faults.
	Hook FaultHook
}

// New creates a machine for mod whose verification calls dispatch into rt.
// The machine installs itself as rt's memory view so checksum and shadow
// stack primitives read the arena.
func New(mod *ir.Module, rt *fir.Runtime) (*Machine, error) {
	m := &Machine{
		mod:         mod,
		rt:          rt,
		mem:         make([]byte, arenaSize),
		brk:         8,
		globals:     make(map[*ir.Global]uint64),
		funcAddrs:   make(map[*ir.Func]uint64),
		funcsByAddr: make(map[uint64]*ir.Func),
	}

	if err := m.layoutGlobals(); err != nil {
		return nil, err
	}

	for i, f := range mod.Funcs {
		addr := funcAddrBase + uint64(i)*16
		m.funcAddrs[f] = addr
		m.funcsByAddr[addr] = f
	}

	if rt != nil {
		rt.SetMemory(m)
	}

	return m, nil
}

// ReadBytes implements fir.Memory over the arena.
func (m *Machine) ReadBytes(addr, size uint64) ([]byte, error) {
	if addr+size > uint64(len(m.mem)) {
		return nil, errors.Errorf("read of [%#x, %#x) outside arena", addr, addr+size)
	}
	return m.mem[addr : addr+size], nil
}

// alloc carves size bytes out of the arena, 8-byte aligned.
func (m *Machine) alloc(size uint64) (uint64, error) {
	addr := (m.brk + 7) &^ 7
	if addr+size > uint64(len(m.mem)) {
		return 0, errors.Errorf("arena exhausted allocating %d bytes", size)
	}
	m.brk = addr + size
	return addr, nil
}

// layoutGlobals materializes the module's global initializers into the
// arena so i8* constants resolve to readable addresses.
func (m *Machine) layoutGlobals() error {
	for _, g := range m.mod.Globals {
		size, err := m.globalSize(g)
		if err != nil {
			return errors.Wrapf(err, "global %q", g.Name())
		}

		addr, err := m.alloc(size)
		if err != nil {
			return err
		}
		m.globals[g] = addr

		if ca, ok := g.Init.(*constant.CharArray); ok {
			copy(m.mem[addr:], ca.X)
		}
	}
	return nil
}

func (m *Machine) globalSize(g *ir.Global) (uint64, error) {
	if ca, ok := g.Init.(*constant.CharArray); ok {
		return uint64(len(ca.X)), nil
	}
	return typeSize(g.ContentType)
}

// typeSize returns the in-memory size of t in bytes.
func typeSize(t types.Type) (uint64, error) {
	switch tt := t.(type) {
	case *types.IntType:
		if tt.BitSize == 1 {
			return 1, nil
		}
		return (tt.BitSize + 7) / 8, nil
	case *types.PointerType:
		return 8, nil
	case *types.ArrayType:
		elem, err := typeSize(tt.ElemType)
		if err != nil {
			return 0, err
		}
		return tt.Len * elem, nil
	case *types.FloatType:
		switch tt.Kind {
		case types.FloatKindFloat:
			return 4, nil
		case types.FloatKindDouble:
			return 8, nil
		}
	}
	return 0, errors.Errorf("unsized type %v", t)
}

// readString reads a NUL-terminated string from the arena.
func (m *Machine) readString(addr uint64) string {
	end := addr
	for end < uint64(len(m.mem)) && m.mem[end] != 0 {
		end++
	}
	return string(m.mem[addr:end])
}

// load reads size bytes at addr, little endian.
func (m *Machine) load(addr, size uint64) (uint64, error) {
	buff, err := m.ReadBytes(addr, size)
	if err != nil {
		return 0, err
	}

	var v uint64
	for i := uint64(0); i < size; i++ {
		v |= uint64(buff[i]) << (8 * i)
	}
	return v, nil
}

// store writes the low size bytes of v at addr, little endian.
func (m *Machine) store(addr, size, v uint64) error {
	if addr+size > uint64(len(m.mem)) {
		return errors.Errorf("store of [%#x, %#x) outside arena", addr, addr+size)
	}

	for i := uint64(0); i < size; i++ {
		m.mem[addr+i] = byte(v >> (8 * i))
	}
	return nil
}

// frame is one function activation: SSA values bound so far.
type frame struct {
	values map[value.Value]uint64
}

// Run executes the named function with the given arguments and returns its
// result.  Void functions return 0.
func (m *Machine) Run(name string, args ...uint64) (uint64, error) {
	for _, f := range m.mod.Funcs {
		if f.Name() == name {
			return m.call(f, args)
		}
	}
	return 0, errors.Errorf("no function named %q", name)
}

// call executes f with the given argument values.
func (m *Machine) call(f *ir.Func, args []uint64) (uint64, error) {
	if len(f.Blocks) == 0 {
		return 0, errors.Errorf("call to declaration %q", f.Name())
	}
	if len(args) != len(f.Params) {
		return 0, errors.Errorf("%q called with %d args, want %d", f.Name(), len(args), len(f.Params))
	}

	fr := &frame{values: make(map[value.Value]uint64)}
	for i, p := range f.Params {
		fr.values[p] = args[i]
	}

	return m.execFunc(f, fr)
}

// eval resolves a value in the current frame: an SSA binding, a constant, a
// global's address, or a function's pseudo-address.
func (m *Machine) eval(v value.Value, fr *frame) (uint64, error) {
	if bound, ok := fr.values[v]; ok {
		return bound, nil
	}

	switch cur := v.(type) {
	case *constant.Int:
		return uint64(cur.X.Int64()), nil
	case *constant.Null:
		return 0, nil
	case *constant.ExprBitCast:
		return m.eval(cur.From, fr)
	case *constant.ExprPtrToInt:
		return m.eval(cur.From, fr)
	case *ir.Global:
		if addr, ok := m.globals[cur]; ok {
			return addr, nil
		}
		return 0, errors.Errorf("global %q has no arena address", cur.Name())
	case *ir.Func:
		return m.funcAddrs[cur], nil
	}

	return 0, errors.Errorf("cannot evaluate %v", v)
}
