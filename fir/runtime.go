// Package fir implements the fault-injection verification runtime: the
// comparison and validation primitives that hardened code calls into, a
// bounded checksum table, a bounded return-address shadow stack, and the
// error-response policy shared by every mismatch handler.
//
// All state lives in an explicit Runtime object guarded by a mutex so the
// library stays safe inside multi-threaded targets.  A process-wide Default
// instance is offered for convenience.
package fir

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrorMode selects how the runtime responds to a detected mismatch.
type ErrorMode int

const (
	// ErrorAbort terminates the process on the first mismatch (default).
	ErrorAbort ErrorMode = iota

	// ErrorLog reports the mismatch and continues execution.
	ErrorLog

	// ErrorCorrect attempts correction.  Correction is not implemented: the
	// mode exists as a named extension point and currently only logs.
	ErrorCorrect
)

// Memory abstracts the hardened program's memory so that checksum and
// return-address primitives can read address ranges without raw pointer
// access.
type Memory interface {
	// ReadBytes reads size bytes starting at addr.
	ReadBytes(addr, size uint64) ([]byte, error)
}

// SliceMemory is a Memory backed by a byte slice with addresses starting at
// zero.  It is primarily useful in tests.
type SliceMemory []byte

func (sm SliceMemory) ReadBytes(addr, size uint64) ([]byte, error) {
	if addr+size > uint64(len(sm)) {
		return nil, fmt.Errorf("read of [%d, %d) outside memory of size %d", addr, addr+size, len(sm))
	}

	return sm[addr : addr+size], nil
}

// Capacities of the runtime's bounded structures.
const (
	MaxChecksumEntries = 1024
	MaxReturnAddrs     = 1024
)

// checksumEntry associates an address range with its last known checksum.
// Entries are deduplicated by (addr, size).
type checksumEntry struct {
	addr     uint64
	size     uint64
	checksum uint32
}

// Runtime holds all verification state for one hardened program.
type Runtime struct {
	m sync.Mutex

	mode  ErrorMode
	mem   Memory
	out   io.Writer
	stats Stats

	checksums []checksumEntry
	retAddrs  []uint64

	// StrictShadowStack makes VerifyReturnAddr fail closed when the shadow
	// stack is empty instead of assuming the return address is intact.
	StrictShadowStack bool

	// exit is called on an abort-mode mismatch.  Overridable for tests.
	exit func(code int)
}

// New creates a runtime reading target memory through mem.  mem may be nil,
// in which case checksum and return-address primitives degrade to warnings.
func New(mem Memory) *Runtime {
	return &Runtime{
		mode: ErrorAbort,
		mem:  mem,
		out:  os.Stderr,
		exit: os.Exit,
	}
}

// Default is the process-wide runtime instance.
var Default = New(nil)

// SetMemory installs the target memory view used by checksum and
// return-address primitives.
func (r *Runtime) SetMemory(mem Memory) {
	r.m.Lock()
	defer r.m.Unlock()

	r.mem = mem
}

// SetOutput redirects the runtime's diagnostic output.
func (r *Runtime) SetOutput(w io.Writer) {
	r.m.Lock()
	defer r.m.Unlock()

	r.out = w
}

// SetErrorMode sets the mismatch response mode.
func (r *Runtime) SetErrorMode(mode ErrorMode) {
	r.m.Lock()
	defer r.m.Unlock()

	r.mode = mode
}

// ErrorMode returns the current mismatch response mode.
func (r *Runtime) ErrorMode() ErrorMode {
	r.m.Lock()
	defer r.m.Unlock()

	return r.mode
}

// severityNames maps LogFault severities to their display names.
var severityNames = [...]string{"INFO", "WARNING", "ERROR", "CRITICAL"}

// LogFault logs a fault detection message at the given severity (0..3).
// Severities at or above 2 count as detected mismatches.
func (r *Runtime) LogFault(message string, severity int) {
	r.m.Lock()
	defer r.m.Unlock()

	if severity < 0 || severity > 3 {
		severity = 1
	}

	fmt.Fprintf(r.out, "[FI-Runtime] [%s] %s\n", severityNames[severity], message)

	if severity >= 2 {
		r.stats.MismatchesDetected++
	}
}

// handleMismatch reports a detected mismatch and dispatches on the error
// mode.  The caller must hold r.m.
func (r *Runtime) handleMismatch(kind, location, details string) {
	r.stats.MismatchesDetected++

	if location == "" {
		location = "unknown"
	}

	fmt.Fprintf(r.out, "\n[FI MISMATCH DETECTED]\n")
	fmt.Fprintf(r.out, "Type:     %s\n", kind)
	fmt.Fprintf(r.out, "Location: %s\n", location)
	fmt.Fprintf(r.out, "Details:  %s\n\n", details)

	switch r.mode {
	case ErrorAbort:
		fmt.Fprintln(r.out, "Aborting due to fault injection detection!")
		r.exit(134)
	case ErrorLog:
		fmt.Fprintln(r.out, "Continuing execution (log mode)")
	case ErrorCorrect:
		fmt.Fprintln(r.out, "Attempting correction (not implemented)")
	}
}

// warn emits a non-fatal resource warning.  The caller must hold r.m.
func (r *Runtime) warn(msg string, args ...interface{}) {
	fmt.Fprintf(r.out, "Warning: "+msg+"\n", args...)
}

// Shutdown prints the statistics report if any verification occurred.  It is
// intended to run at normal program shutdown.
func (r *Runtime) Shutdown() {
	if r.Stats().VerificationsPerformed > 0 {
		r.PrintStats()
	}
}
