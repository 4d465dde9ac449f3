package isa

import (
	"fmt"
)

// IP_STOPPED is the instruction pointer sentinel for "not inside the
// code buffer". A worker parked here has nothing to execute.
const IP_STOPPED = ^uint64(0)

// Regs is the full general-purpose register file of the architecture,
// plus the instruction pointer. Copies of this record are what callers
// see when they inspect a stopped worker.
type Regs struct {
	R  [REG_COUNT]uint64 // General purpose registers r0-r7.
	Ip uint64            // Byte offset into the code buffer, or IP_STOPPED.
}

// Reset returns every register to the known-zero baseline and parks the
// instruction pointer.
func (regs *Regs) Reset() {
	clear(regs.R[:])
	regs.Ip = IP_STOPPED
}

// String returns the register file as a multi-line listing.
func (regs *Regs) String() (text string) {
	if regs.Ip == IP_STOPPED {
		text = "   ip: ----_----\n"
	} else {
		text = fmt.Sprintf("   ip: %04x_%04x\n", regs.Ip>>16, regs.Ip&0xffff)
	}
	for n, val := range regs.R {
		text += fmt.Sprintf("   r%d: %08x_%08x\n", n, val>>32, val&0xffffffff)
	}

	return
}
