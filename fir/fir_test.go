package fir

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"
)

// newTestRuntime returns a log-mode runtime over mem that never exits and
// writes diagnostics to the returned buffer.
func newTestRuntime(mem Memory) (*Runtime, *bytes.Buffer) {
	out := &bytes.Buffer{}

	rt := New(mem)
	rt.SetErrorMode(ErrorLog)
	rt.SetOutput(out)
	rt.exit = func(int) { panic("exit called") }

	return rt, out
}

func TestVerifyPrimitivesAgree(t *testing.T) {
	rt, _ := newTestRuntime(nil)

	rt.VerifyInt32(42, 42, "f:load")
	rt.VerifyInt64(-7, -7, "f:load")
	rt.VerifyPointer(0x1000, 0x1000, "f:store")
	rt.VerifyBranch(1, 1, "f:branch")

	stats := rt.Stats()
	if stats.VerificationsPerformed != 4 {
		t.Errorf("expected 4 verifications, got %d", stats.VerificationsPerformed)
	}
	if stats.MismatchesDetected != 0 {
		t.Errorf("expected no mismatches, got %d", stats.MismatchesDetected)
	}
}

func TestVerifyPrimitivesMismatch(t *testing.T) {
	rt, out := newTestRuntime(nil)

	rt.VerifyInt32(42, 41, "f:load")
	rt.VerifyBranch(1, 0, "f:branch")

	stats := rt.Stats()
	if stats.MismatchesDetected != 2 {
		t.Errorf("expected 2 mismatches, got %d", stats.MismatchesDetected)
	}

	text := out.String()
	if !strings.Contains(text, "[FI MISMATCH DETECTED]") {
		t.Error("mismatch report missing from output")
	}
	if !strings.Contains(text, "f:branch") {
		t.Error("mismatch location missing from output")
	}
}

func TestAbortModeExits(t *testing.T) {
	rt := New(nil)
	rt.SetOutput(io.Discard)

	var code int
	rt.exit = func(c int) { code = c }

	rt.VerifyInt32(1, 2, "f:load")

	if code != 134 {
		t.Errorf("expected exit code 134, got %d", code)
	}
}

func TestChecksumRoundTrip(t *testing.T) {
	mem := make(SliceMemory, 64)
	copy(mem[8:], []byte{1, 2, 3, 4})

	rt, _ := newTestRuntime(mem)

	rt.ChecksumUpdate(8, 4)
	if !rt.ChecksumVerify(8, 4) {
		t.Fatal("checksum verification failed on untouched memory")
	}

	mem[9] ^= 0x40
	if rt.ChecksumVerify(8, 4) {
		t.Fatal("checksum verification passed on corrupted memory")
	}

	stats := rt.Stats()
	if stats.ChecksumFailures != 1 {
		t.Errorf("expected 1 checksum failure, got %d", stats.ChecksumFailures)
	}

	// An update after corruption re-baselines the range.
	rt.ChecksumUpdate(8, 4)
	if !rt.ChecksumVerify(8, 4) {
		t.Error("checksum verification failed after re-update")
	}
}

func TestChecksumMissingEntryPasses(t *testing.T) {
	rt, out := newTestRuntime(make(SliceMemory, 64))

	if !rt.ChecksumVerify(16, 4) {
		t.Error("verification of an untracked range should pass")
	}
	if !strings.Contains(out.String(), "no checksum entry") {
		t.Error("expected a warning about the missing entry")
	}
}

func TestChecksumTableFull(t *testing.T) {
	rt, out := newTestRuntime(make(SliceMemory, 1<<14))

	for i := 0; i < MaxChecksumEntries; i++ {
		rt.ChecksumUpdate(uint64(i), 1)
	}

	rt.ChecksumUpdate(0, 8)
	if !strings.Contains(out.String(), "checksum table full") {
		t.Error("expected a table-full warning")
	}

	// Updates to existing entries still work at capacity.
	if !rt.ChecksumVerify(5, 1) {
		t.Error("existing entry should still verify")
	}
}

func writeSlot(mem SliceMemory, slot, val uint64) {
	binary.LittleEndian.PutUint64(mem[slot:slot+8], val)
}

func TestReturnAddrRoundTrip(t *testing.T) {
	mem := make(SliceMemory, 64)
	writeSlot(mem, 8, 0xdeadbeef)

	rt, _ := newTestRuntime(mem)

	rt.ProtectReturnAddr(8)
	if !rt.VerifyReturnAddr(8) {
		t.Fatal("intact return address reported corrupted")
	}
	if rt.Stats().MismatchesDetected != 0 {
		t.Error("unexpected mismatch recorded")
	}
}

func TestReturnAddrCorruption(t *testing.T) {
	mem := make(SliceMemory, 64)
	writeSlot(mem, 8, 0xdeadbeef)

	rt, _ := newTestRuntime(mem)

	rt.ProtectReturnAddr(8)
	writeSlot(mem, 8, 0x41414141)

	if rt.VerifyReturnAddr(8) {
		t.Fatal("corrupted return address reported intact")
	}
	if rt.Stats().MismatchesDetected != 1 {
		t.Errorf("expected 1 mismatch, got %d", rt.Stats().MismatchesDetected)
	}
}

func TestReturnAddrLIFO(t *testing.T) {
	mem := make(SliceMemory, 64)
	rt, _ := newTestRuntime(mem)

	writeSlot(mem, 8, 0x1111)
	rt.ProtectReturnAddr(8)
	writeSlot(mem, 16, 0x2222)
	rt.ProtectReturnAddr(16)

	// Inner frame returns first.
	if !rt.VerifyReturnAddr(16) {
		t.Error("inner frame verification failed")
	}
	if !rt.VerifyReturnAddr(8) {
		t.Error("outer frame verification failed")
	}
}

func TestReturnAddrEmptyStack(t *testing.T) {
	rt, out := newTestRuntime(make(SliceMemory, 64))

	if !rt.VerifyReturnAddr(8) {
		t.Error("empty shadow stack should pass by default")
	}
	if !strings.Contains(out.String(), "no saved return address") {
		t.Error("expected an empty-stack warning")
	}

	rt.StrictShadowStack = true
	if rt.VerifyReturnAddr(8) {
		t.Error("strict mode should fail on an empty shadow stack")
	}
}

func TestCheckBounds(t *testing.T) {
	rt, _ := newTestRuntime(nil)

	if !rt.CheckBounds(0x100, 0x100, 16) {
		t.Error("base address should be in bounds")
	}
	if !rt.CheckBounds(0x10f, 0x100, 16) {
		t.Error("last byte should be in bounds")
	}
	if rt.CheckBounds(0x110, 0x100, 16) {
		t.Error("one-past-the-end should be out of bounds")
	}
	if rt.CheckBounds(0xff, 0x100, 16) {
		t.Error("address below base should be out of bounds")
	}

	if rt.Stats().MismatchesDetected != 2 {
		t.Errorf("expected 2 mismatches, got %d", rt.Stats().MismatchesDetected)
	}
}

func TestLogFaultSeverities(t *testing.T) {
	rt, out := newTestRuntime(nil)

	rt.LogFault("CFI check passed", 0)
	rt.LogFault("Exception handler entered", 1)
	rt.LogFault("TMR voting failed", 2)
	rt.LogFault("Return address corrupted!", 3)

	text := out.String()
	for _, want := range []string{"[INFO]", "[WARNING]", "[ERROR]", "[CRITICAL]"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing severity tag %s", want)
		}
	}

	// Only severities 2 and up count as detected faults.
	if rt.Stats().MismatchesDetected != 2 {
		t.Errorf("expected 2 mismatches, got %d", rt.Stats().MismatchesDetected)
	}
}

func TestValidateHardwareIO(t *testing.T) {
	mem := make(SliceMemory, 64)
	binary.LittleEndian.PutUint32(mem[8:], 0x5a5a)

	rt, out := newTestRuntime(mem)

	// Zero expected pattern disables the comparison entirely.
	rt.ValidateHardwareIO(8, 0)
	if strings.Contains(out.String(), "unexpected") {
		t.Error("zero pattern should not warn")
	}

	// Mismatches warn, they never escalate.
	rt.ValidateHardwareIO(8, 0x1234)
	if !strings.Contains(out.String(), "hardware I/O unexpected") {
		t.Error("expected a hardware I/O warning")
	}
	if rt.Stats().MismatchesDetected != 0 {
		t.Error("hardware I/O mismatch must not count as a fault")
	}
}

func TestStatsSnapshot(t *testing.T) {
	rt, _ := newTestRuntime(nil)

	rt.VerifyInt32(1, 1, "a")
	snap := rt.Stats()
	rt.VerifyInt32(2, 2, "b")

	if snap.Int32Verifications != 1 {
		t.Error("snapshot should not track later verifications")
	}
	if rt.Stats().Int32Verifications != 2 {
		t.Error("runtime should have recorded both verifications")
	}
}
