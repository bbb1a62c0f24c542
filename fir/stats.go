package fir

import "fmt"

// Stats counts the verifications performed by a runtime instance.
type Stats struct {
	VerificationsPerformed uint64
	MismatchesDetected     uint64
	Int32Verifications     uint64
	Int64Verifications     uint64
	PointerVerifications   uint64
	BranchVerifications    uint64
	ChecksumVerifications  uint64
	ChecksumFailures       uint64
}

// Stats returns a snapshot of the runtime's statistics.
func (r *Runtime) Stats() Stats {
	r.m.Lock()
	defer r.m.Unlock()

	return r.stats
}

// PrintStats writes the statistics report to the runtime's output.
func (r *Runtime) PrintStats() {
	r.m.Lock()
	defer r.m.Unlock()

	s := r.stats

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "========================================")
	fmt.Fprintln(r.out, "FI Hardening Runtime Statistics")
	fmt.Fprintln(r.out, "========================================")
	fmt.Fprintf(r.out, "Total verifications:     %d\n", s.VerificationsPerformed)
	fmt.Fprintf(r.out, "Mismatches detected:     %d\n", s.MismatchesDetected)
	fmt.Fprintf(r.out, "  Int32 verifications:   %d\n", s.Int32Verifications)
	fmt.Fprintf(r.out, "  Int64 verifications:   %d\n", s.Int64Verifications)
	fmt.Fprintf(r.out, "  Pointer verifications: %d\n", s.PointerVerifications)
	fmt.Fprintf(r.out, "  Branch verifications:  %d\n", s.BranchVerifications)
	fmt.Fprintf(r.out, "  Checksum verifications:%d\n", s.ChecksumVerifications)
	fmt.Fprintf(r.out, "  Checksum failures:     %d\n", s.ChecksumFailures)

	if s.VerificationsPerformed > 0 {
		rate := float64(s.MismatchesDetected) / float64(s.VerificationsPerformed) * 100.0
		fmt.Fprintf(r.out, "Mismatch rate:           %.4f%%\n", rate)
	}

	fmt.Fprintln(r.out, "========================================")
	fmt.Fprintln(r.out)
}
