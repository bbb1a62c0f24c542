package fir

import (
	"encoding/binary"
	"fmt"
)

// VerifyInt32 checks a duplicated 32-bit computation against its original.
func (r *Runtime) VerifyInt32(value, expected int32, location string) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++
	r.stats.Int32Verifications++

	if value != expected {
		details := fmt.Sprintf("int32 mismatch: got %d, expected %d", value, expected)
		r.handleMismatch("int32", location, details)
	}
}

// VerifyInt64 checks a duplicated 64-bit computation against its original.
func (r *Runtime) VerifyInt64(value, expected int64, location string) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++
	r.stats.Int64Verifications++

	if value != expected {
		details := fmt.Sprintf("int64 mismatch: got %d, expected %d", value, expected)
		r.handleMismatch("int64", location, details)
	}
}

// VerifyPointer checks a duplicated pointer computation against its original.
func (r *Runtime) VerifyPointer(ptr, expected uint64, location string) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++
	r.stats.PointerVerifications++

	if ptr != expected {
		details := fmt.Sprintf("pointer mismatch: got %#x, expected %#x", ptr, expected)
		r.handleMismatch("pointer", location, details)
	}
}

// VerifyBranch checks that both evaluations of a branch condition agree.
func (r *Runtime) VerifyBranch(condition, expected int32, location string) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++
	r.stats.BranchVerifications++

	if condition != expected {
		details := fmt.Sprintf("branch condition mismatch: got %d, expected %d", condition, expected)
		r.handleMismatch("branch", location, details)
	}
}

// VerifyCFI checks an indirect call target against its expected target.
func (r *Runtime) VerifyCFI(target, expected uint64, location string) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++

	if target != expected {
		details := fmt.Sprintf("CFI violation: target %#x, expected %#x at %s", target, expected, location)
		r.handleMismatch("cfi", "indirect_call", details)
	}
}

// CheckBounds reports whether ptr lies inside [base, base+size).
func (r *Runtime) CheckBounds(ptr, base, size uint64) bool {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++

	if ptr < base || ptr >= base+size {
		details := fmt.Sprintf("bounds check failed: ptr %#x outside [%#x, %#x)", ptr, base, base+size)
		r.handleMismatch("bounds", "memory_access", details)
		return false
	}

	return true
}

// ProtectReturnAddr pushes the value stored in the given slot onto the
// return-address shadow stack.  An exhausted stack is a warning, not a
// failure.
func (r *Runtime) ProtectReturnAddr(slot uint64) {
	r.m.Lock()
	defer r.m.Unlock()

	if len(r.retAddrs) >= MaxReturnAddrs {
		r.warn("return address protection table full")
		return
	}

	saved, err := r.readSlot(slot)
	if err != nil {
		r.warn("cannot read return address slot: %v", err)
		return
	}

	r.retAddrs = append(r.retAddrs, saved)
}

// VerifyReturnAddr pops the most recently protected return address and
// checks it against the slot's current value.  An empty shadow stack is
// assumed intact unless StrictShadowStack is set.
func (r *Runtime) VerifyReturnAddr(slot uint64) bool {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++

	if len(r.retAddrs) == 0 {
		r.warn("no saved return address to verify")
		if r.StrictShadowStack {
			r.handleMismatch("return_addr", "stack", "shadow stack empty at return")
			return false
		}
		return true
	}

	saved := r.retAddrs[len(r.retAddrs)-1]
	r.retAddrs = r.retAddrs[:len(r.retAddrs)-1]

	current, err := r.readSlot(slot)
	if err != nil {
		r.warn("cannot read return address slot: %v", err)
		return true
	}

	if current != saved {
		details := fmt.Sprintf("return address corrupted: current %#x, expected %#x", current, saved)
		r.handleMismatch("return_addr", "stack", details)
		return false
	}

	return true
}

// ValidateHardwareIO checks a volatile load's value against an expected
// pattern.  I/O noise is expected: mismatches only log a warning and an
// expected pattern of zero disables the comparison.
func (r *Runtime) ValidateHardwareIO(addr uint64, expected int32) {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++

	if r.mem == nil {
		return
	}

	buff, err := r.mem.ReadBytes(addr, 4)
	if err != nil {
		r.warn("cannot read hardware register at %#x: %v", addr, err)
		return
	}

	actual := int32(binary.LittleEndian.Uint32(buff))
	if actual != expected && expected != 0 {
		msg := fmt.Sprintf("hardware I/O unexpected: addr %#x, value %d, expected %d", addr, actual, expected)
		fmt.Fprintf(r.out, "[FI-Runtime] [%s] %s\n", severityNames[1], msg)
	}
}

// AddTimingNoise burns a small, variable amount of work to blur the timing
// of the surrounding code.
func (r *Runtime) AddTimingNoise() {
	r.m.Lock()
	n := int(r.stats.VerificationsPerformed % 10)
	r.m.Unlock()

	dummy := 0
	for i := 0; i < n; i++ {
		dummy += i
	}
	_ = dummy
}

// readSlot reads a 64-bit slot from target memory.  The caller must hold
// r.m.
func (r *Runtime) readSlot(slot uint64) (uint64, error) {
	if r.mem == nil {
		return 0, fmt.Errorf("no memory view installed")
	}

	buff, err := r.mem.ReadBytes(slot, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buff), nil
}
