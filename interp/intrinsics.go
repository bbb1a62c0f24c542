package interp

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/pkg/errors"

	"github.com/Prajwal-kp-18/llvm-fihardening/harden"
)

// execCall dispatches a call: verification runtime entry points go to the
// machine's fir.Runtime, defined functions are executed recursively, and an
// indirect callee is resolved through its pseudo-address first.
func (m *Machine) execCall(call *ir.InstCall, fr *frame) error {
	callee, err := m.resolveCallee(call, fr)
	if err != nil {
		return err
	}

	args := make([]uint64, len(call.Args))
	for i, arg := range call.Args {
		if args[i], err = m.eval(arg, fr); err != nil {
			return err
		}
	}

	var ret uint64
	if len(callee.Blocks) == 0 {
		ret, err = m.execIntrinsic(callee.Name(), args)
	} else {
		ret, err = m.call(callee, args)
	}
	if err != nil {
		return err
	}

	if !call.Type().Equal(types.Void) {
		m.bind(call, ret, fr)
	}
	return nil
}

// resolveCallee returns the function a call invokes.
func (m *Machine) resolveCallee(call *ir.InstCall, fr *frame) (*ir.Func, error) {
	if f, ok := call.Callee.(*ir.Func); ok {
		return f, nil
	}

	addr, err := m.eval(call.Callee, fr)
	if err != nil {
		return nil, err
	}
	f, ok := m.funcsByAddr[addr]
	if !ok {
		return nil, errors.Errorf("indirect call to unknown address %#x", addr)
	}
	return f, nil
}

// execIntrinsic executes a declared-only function.  Only the verification
// runtime entry points are known; any other external call is an error.
func (m *Machine) execIntrinsic(name string, args []uint64) (uint64, error) {
	switch name {
	case harden.FnVerifyInt32:
		m.rt.VerifyInt32(int32(args[0]), int32(args[1]), m.readString(args[2]))
		return 0, nil

	case harden.FnVerifyInt64:
		m.rt.VerifyInt64(int64(args[0]), int64(args[1]), m.readString(args[2]))
		return 0, nil

	case harden.FnVerifyPointer:
		m.rt.VerifyPointer(args[0], args[1], m.readString(args[2]))
		return 0, nil

	case harden.FnVerifyBranch:
		m.rt.VerifyBranch(int32(args[0]), int32(args[1]), m.readString(args[2]))
		return 0, nil

	case harden.FnChecksumUpdate:
		m.rt.ChecksumUpdate(args[0], args[1])
		return 0, nil

	case harden.FnChecksumVerify:
		return boolVal(m.rt.ChecksumVerify(args[0], args[1])), nil

	case harden.FnVerifyCFI:
		m.rt.VerifyCFI(args[0], args[1], m.readString(args[2]))
		return 0, nil

	case harden.FnLogFault:
		m.rt.LogFault(m.readString(args[0]), int(int32(args[1])))
		return 0, nil

	case harden.FnCheckBounds:
		return boolVal(m.rt.CheckBounds(args[0], args[1], args[2])), nil

	case harden.FnProtectReturnAddr:
		m.rt.ProtectReturnAddr(args[0])
		return 0, nil

	case harden.FnVerifyReturnAddr:
		return boolVal(m.rt.VerifyReturnAddr(args[0])), nil

	case harden.FnValidateHardwareIO:
		m.rt.ValidateHardwareIO(args[0], int32(args[1]))
		return 0, nil

	case harden.FnAddTimingNoise:
		m.rt.AddTimingNoise()
		return 0, nil
	}

	return 0, errors.Errorf("call to undefined external function %q", name)
}

func boolVal(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
