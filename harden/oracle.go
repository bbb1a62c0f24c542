package harden

import "github.com/llir/llvm/ir/value"

// TargetOracle supplies the expected target for an indirect call's CFI
// check.  A real policy needs an external target-set oracle (for example a
// type-based call graph); that analysis is outside this engine's scope, so
// the oracle is injectable and the default is a structural placeholder.
type TargetOracle interface {
	// ExpectedTarget returns the value to compare the observed call target
	// against.
	ExpectedTarget(observed value.Value) value.Value
}

// IdentityOracle expects whatever target is observed.  The check it produces
// establishes the control-flow point where a richer oracle plugs in; it does
// not constrain the target on its own.
type IdentityOracle struct{}

func (IdentityOracle) ExpectedTarget(observed value.Value) value.Value {
	return observed
}

// SizeSource supplies the region size for an address-computation bounds
// check.  Real deployments must supply allocation-size tracking; the default
// is a coarse placeholder constant.
type SizeSource interface {
	// RegionSize returns the byte size of the region the address is expected
	// to stay within.
	RegionSize(address value.Value) uint64
}

// FixedSize is a SizeSource returning the same size for every region.
type FixedSize uint64

func (fs FixedSize) RegionSize(value.Value) uint64 {
	return uint64(fs)
}
