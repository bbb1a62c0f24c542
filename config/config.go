package config

import "fmt"

// Config is the hardening configuration for one pass invocation.  It is a
// snapshot: the driver builds it once from the command line and an optional
// profile file, and the engine never mutates it.
type Config struct {
	// Branches enables branch hardening with redundant condition checks.
	Branches bool

	// Memory enables load/store duplicate-and-compare hardening.
	Memory bool

	// Arithmetic enables duplicate-compare hardening of division and
	// remainder operations.  Off by default due to overhead.
	Arithmetic bool

	// CFI enables control-flow integrity checks on indirect calls.
	CFI bool

	// DataRedundancy enables critical variable shadow copies.
	DataRedundancy bool

	// MemorySafety enables bounds checking of address computations.
	MemorySafety bool

	// Stack enables return address protection.
	Stack bool

	// Exceptions enables exception path hardening.  Off by default.
	Exceptions bool

	// HardwareIO enables validation of volatile loads.  Off by default.
	HardwareIO bool

	// Logging enables runtime fault detection logging.
	Logging bool

	// Timing enables timing side-channel mitigations.  Off by default.
	Timing bool

	// Level is the hardening aggressiveness level: 0 hardens only
	// instructions on the critical-path heuristic, 2 enables checksums, TMR
	// candidates, and temporary protection, 3 is full coverage.
	Level int

	// ShowStats prints transformation statistics after the pass runs.
	ShowStats bool

	// VerifyAfter runs the structural verifier over each function after it
	// has been transformed.
	VerifyAfter bool
}

// Default returns the default configuration.  The defaults mirror the
// documented option surface: everything on except arithmetic, exceptions,
// hardware-io, and timing, at full aggressiveness.
func Default() *Config {
	return &Config{
		Branches:       true,
		Memory:         true,
		Arithmetic:     false,
		CFI:            true,
		DataRedundancy: true,
		MemorySafety:   true,
		Stack:          true,
		Exceptions:     false,
		HardwareIO:     false,
		Logging:        true,
		Timing:         false,
		Level:          3,
		ShowStats:      false,
		VerifyAfter:    true,
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Level < 0 || c.Level > 3 {
		return fmt.Errorf("hardening level must be between 0 and 3: got %d", c.Level)
	}

	return nil
}
