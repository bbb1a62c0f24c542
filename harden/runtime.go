package harden

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Names of the runtime entry points emitted by the pass.  Functions with
// these names (and the llvm. intrinsics) are never themselves instrumented.
const (
	FnVerifyInt32        = "fi_verify_int32"
	FnVerifyInt64        = "fi_verify_int64"
	FnVerifyPointer      = "fi_verify_pointer"
	FnVerifyBranch       = "fi_verify_branch"
	FnChecksumUpdate     = "fi_checksum_update"
	FnChecksumVerify     = "fi_checksum_verify"
	FnVerifyCFI          = "fi_verify_cfi"
	FnLogFault           = "fi_log_fault"
	FnCheckBounds        = "fi_check_bounds"
	FnProtectReturnAddr  = "fi_protect_return_addr"
	FnVerifyReturnAddr   = "fi_verify_return_addr"
	FnValidateHardwareIO = "fi_validate_hardware_io"
	FnAddTimingNoise     = "fi_add_timing_noise"
)

// runtimeFuncs holds the resolved runtime entry points for the module being
// transformed.
type runtimeFuncs struct {
	verifyInt32        *ir.Func
	verifyInt64        *ir.Func
	verifyPointer      *ir.Func
	verifyBranch       *ir.Func
	checksumUpdate     *ir.Func
	checksumVerify     *ir.Func
	verifyCFI          *ir.Func
	logFault           *ir.Func
	checkBounds        *ir.Func
	protectReturnAddr  *ir.Func
	verifyReturnAddr   *ir.Func
	validateHardwareIO *ir.Func
	addTimingNoise     *ir.Func
}

// getOrInsertFunc returns the module's declaration of name, creating it with
// the given signature if the module has none.
func getOrInsertFunc(m *ir.Module, name string, retType types.Type, paramTypes ...types.Type) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}

	params := make([]*ir.Param, len(paramTypes))
	for i, pt := range paramTypes {
		params[i] = ir.NewParam("", pt)
	}

	return m.NewFunc(name, retType, params...)
}

// declareRuntimeFuncs declares all runtime entry points in the module.  The
// declarations are linked against the verification runtime library.
func declareRuntimeFuncs(m *ir.Module) *runtimeFuncs {
	i8Ptr := types.I8Ptr
	i8PtrPtr := types.NewPointer(types.I8Ptr)

	return &runtimeFuncs{
		verifyInt32:        getOrInsertFunc(m, FnVerifyInt32, types.Void, types.I32, types.I32, i8Ptr),
		verifyInt64:        getOrInsertFunc(m, FnVerifyInt64, types.Void, types.I64, types.I64, i8Ptr),
		verifyPointer:      getOrInsertFunc(m, FnVerifyPointer, types.Void, i8Ptr, i8Ptr, i8Ptr),
		verifyBranch:       getOrInsertFunc(m, FnVerifyBranch, types.Void, types.I32, types.I32, i8Ptr),
		checksumUpdate:     getOrInsertFunc(m, FnChecksumUpdate, types.Void, i8Ptr, types.I64),
		checksumVerify:     getOrInsertFunc(m, FnChecksumVerify, types.I32, i8Ptr, types.I64),
		verifyCFI:          getOrInsertFunc(m, FnVerifyCFI, types.Void, i8Ptr, i8Ptr, i8Ptr),
		logFault:           getOrInsertFunc(m, FnLogFault, types.Void, i8Ptr, types.I32),
		checkBounds:        getOrInsertFunc(m, FnCheckBounds, types.I32, i8Ptr, i8Ptr, types.I64),
		protectReturnAddr:  getOrInsertFunc(m, FnProtectReturnAddr, types.Void, i8PtrPtr),
		verifyReturnAddr:   getOrInsertFunc(m, FnVerifyReturnAddr, types.I32, i8PtrPtr),
		validateHardwareIO: getOrInsertFunc(m, FnValidateHardwareIO, types.Void, i8Ptr, types.I32),
		addTimingNoise:     getOrInsertFunc(m, FnAddTimingNoise, types.Void),
	}
}
