package exec

import (
	"sync/atomic"

	"github.com/patchvm/patchvm/isa"
)

// StopReason reports why the worker stopped.
type StopReason int

//go:generate go tool stringer -linecomment -type=StopReason
const (
	STOP_START     = StopReason(0) // start
	STOP_TRAP      = StopReason(1) // trap
	STOP_INTERRUPT = StopReason(2) // interrupt
	STOP_FAULT     = StopReason(3) // fault
)

// machine is the execution state of the worker: the register file and
// the fetch-decode-execute loop over the code buffer. Registers are
// touched by the control goroutine only while the worker is stopped.
type machine struct {
	buf  *Buffer
	regs isa.Regs

	interrupt atomic.Bool // Out-of-band stop request from the controller.
}

// run executes from the current instruction pointer until something
// stops it: a trap byte (exit point), a pending interrupt, or a fault.
// On a trap the instruction pointer has advanced past the trap byte.
// On a fault it still addresses the faulting location.
func (m *machine) run() (reason StopReason, fault error) {
	code := m.buf.Bytes()

	for {
		if m.interrupt.CompareAndSwap(true, false) {
			reason = STOP_INTERRUPT
			return
		}

		ip := m.regs.Ip
		if ip >= uint64(len(code)) {
			reason = STOP_FAULT
			fault = ErrAddressFault(ip)
			return
		}

		d, err := isa.Decode(code[ip:])
		if err != nil {
			reason = STOP_FAULT
			fault = &ErrCodeFault{Ip: ip, Err: err}
			return
		}

		next := ip + uint64(d.Size)

		switch d.Op {
		case isa.OP_TRAP:
			// The trap faults after advancing past itself.
			m.regs.Ip = next
			reason = STOP_TRAP
			return
		case isa.OP_NOP:
			// pass
		case isa.OP_CONST:
			m.regs.R[d.Dst] = uint64(int64(d.Imm))
		case isa.OP_ADDI:
			m.regs.R[d.Dst] += uint64(int64(d.Imm))
		case isa.OP_MOVE:
			m.regs.R[d.Dst] = m.regs.R[d.Src]
		case isa.OP_ADD:
			m.regs.R[d.Dst] += m.regs.R[d.Src]
		case isa.OP_SUB:
			m.regs.R[d.Dst] -= m.regs.R[d.Src]
		case isa.OP_AND:
			m.regs.R[d.Dst] &= m.regs.R[d.Src]
		case isa.OP_OR:
			m.regs.R[d.Dst] |= m.regs.R[d.Src]
		case isa.OP_XOR:
			m.regs.R[d.Dst] ^= m.regs.R[d.Src]
		case isa.OP_SHL:
			m.regs.R[d.Dst] <<= m.regs.R[d.Src] & 0x3f
		case isa.OP_SHR:
			m.regs.R[d.Dst] >>= m.regs.R[d.Src] & 0x3f
		case isa.OP_JUMP, isa.OP_JUMPS:
			next = uint64(int64(next) + int64(d.Rel))
		case isa.OP_BRZ:
			if m.regs.R[d.Src] == 0 {
				next = uint64(int64(next) + int64(d.Rel))
			}
		case isa.OP_BRNZ:
			if m.regs.R[d.Src] != 0 {
				next = uint64(int64(next) + int64(d.Rel))
			}
		}

		m.regs.Ip = next
	}
}
