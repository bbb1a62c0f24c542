package fir

import "fmt"

// calculateChecksum computes an order-sensitive rolling checksum over a byte
// range.  It is a corruption detector, not a cryptographic digest.
func calculateChecksum(buff []byte) uint32 {
	var sum uint32
	for _, b := range buff {
		sum = (sum << 1) ^ uint32(b)
	}
	return sum
}

// findChecksumEntry locates the entry for (addr, size), or returns -1.  The
// caller must hold r.m.
func (r *Runtime) findChecksumEntry(addr, size uint64) int {
	for i := range r.checksums {
		if r.checksums[i].addr == addr && r.checksums[i].size == size {
			return i
		}
	}
	return -1
}

// ChecksumUpdate records the current checksum of [addr, addr+size).  When
// the table is full, the update is dropped with a warning: checksum
// protection degrades, the program does not fail.
func (r *Runtime) ChecksumUpdate(addr, size uint64) {
	r.m.Lock()
	defer r.m.Unlock()

	if r.mem == nil {
		r.warn("checksum update without a memory view, ignoring")
		return
	}

	buff, err := r.mem.ReadBytes(addr, size)
	if err != nil {
		r.warn("checksum update cannot read [%#x, %#x): %v", addr, addr+size, err)
		return
	}

	i := r.findChecksumEntry(addr, size)
	if i < 0 {
		if len(r.checksums) >= MaxChecksumEntries {
			r.warn("checksum table full, ignoring update")
			return
		}
		r.checksums = append(r.checksums, checksumEntry{addr: addr, size: size})
		i = len(r.checksums) - 1
	}

	r.checksums[i].checksum = calculateChecksum(buff)
}

// ChecksumVerify recomputes the checksum of [addr, addr+size) and compares
// it against the stored entry.  A missing entry passes by default: ranges
// touched before their first ChecksumUpdate are unprotected.
func (r *Runtime) ChecksumVerify(addr, size uint64) bool {
	r.m.Lock()
	defer r.m.Unlock()

	r.stats.VerificationsPerformed++
	r.stats.ChecksumVerifications++

	i := r.findChecksumEntry(addr, size)
	if i < 0 {
		r.warn("no checksum entry found for %#x (size %d)", addr, size)
		return true
	}

	if r.mem == nil {
		r.warn("checksum verify without a memory view, assuming OK")
		return true
	}

	buff, err := r.mem.ReadBytes(addr, size)
	if err != nil {
		r.warn("checksum verify cannot read [%#x, %#x): %v", addr, addr+size, err)
		return true
	}

	current := calculateChecksum(buff)
	if current != r.checksums[i].checksum {
		r.stats.ChecksumFailures++
		details := fmt.Sprintf("memory corruption at %#x: checksum %08x, expected %08x",
			addr, current, r.checksums[i].checksum)
		r.handleMismatch("checksum", "memory_region", details)
		return false
	}

	return true
}
