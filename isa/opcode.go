package isa

import (
	"fmt"
	"iter"
	"maps"
	"sync/atomic"
)

// Op is an abstract operation selector.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_TRAP  = Op(0)  // trap
	OP_NOP   = Op(1)  // nop
	OP_CONST = Op(2)  // const
	OP_MOVE  = Op(3)  // move
	OP_ADD   = Op(4)  // add
	OP_SUB   = Op(5)  // sub
	OP_AND   = Op(6)  // and
	OP_OR    = Op(7)  // or
	OP_XOR   = Op(8)  // xor
	OP_SHL   = Op(9)  // shl
	OP_SHR   = Op(10) // shr
	OP_ADDI  = Op(11) // addi
	OP_JUMP  = Op(12) // jump
	OP_JUMPS = Op(13) // jumps
	OP_BRZ   = Op(14) // brz
	OP_BRNZ  = Op(15) // brnz
)

// Reg is a general-purpose register index.
type Reg int

//go:generate go tool stringer -linecomment -type=Reg
const (
	REG_R0 = Reg(0) // r0
	REG_R1 = Reg(1) // r1
	REG_R2 = Reg(2) // r2
	REG_R3 = Reg(3) // r3
	REG_R4 = Reg(4) // r4
	REG_R5 = Reg(5) // r5
	REG_R6 = Reg(6) // r6
	REG_R7 = Reg(7) // r7
)

const REG_COUNT = 8 // Number of general-purpose registers.

// Single-byte codes reserved for the linker.
const (
	TRAP_BYTE = byte(0x00) // Exit point; stops the worker when executed.
	NOP_BYTE  = byte(0x90) // Padding; never part of a mapped instruction.
)

var _isa_defines = map[string]string{
	"REG_COUNT": fmt.Sprintf("%v", REG_COUNT),
}

// Defines for the architecture.
func Defines() iter.Seq2[string, string] {
	return maps.All(_isa_defines)
}

var _seq atomic.Uint64

// Instruction is one abstract operation composed by the caller.
//
// Identity is the *Instruction pointer. Seq is a process-wide creation
// sequence; it supplies the total order that Programs are sorted by, and
// never repeats within a process.
type Instruction struct {
	Seq uint64 // Creation sequence, assigned by Make.
	Op  Op     // Operation selector.
	Dst Reg    // Destination register, when the Op takes one.
	Src Reg    // Source register, when the Op takes one.
	Imm int32  // Immediate value, when the Op takes one.
}

// Make creates a new Instruction with a fresh identity.
func Make(op Op, dst, src Reg, imm int32) *Instruction {
	return &Instruction{
		Seq: _seq.Add(1),
		Op:  op,
		Dst: dst,
		Src: src,
		Imm: imm,
	}
}

// Terminator returns true if control flow never falls through this
// instruction to a successor.
func (ins *Instruction) Terminator() bool {
	return ins.Op == OP_JUMP || ins.Op == OP_JUMPS
}

// Branches returns true if the instruction consumes a jump edge.
func (ins *Instruction) Branches() bool {
	switch ins.Op {
	case OP_JUMP, OP_JUMPS, OP_BRZ, OP_BRNZ:
		return true
	}
	return false
}

// String returns the assembly language representation of the instruction.
func (ins *Instruction) String() (out string) {
	switch ins.Op {
	case OP_TRAP, OP_NOP, OP_JUMP, OP_JUMPS:
		out = ins.Op.String()
	case OP_CONST, OP_ADDI:
		out = fmt.Sprintf("%v %v %#x", ins.Op, ins.Dst, ins.Imm)
	case OP_BRZ, OP_BRNZ:
		out = fmt.Sprintf("%v %v", ins.Op, ins.Src)
	default:
		out = fmt.Sprintf("%v %v %v", ins.Op, ins.Dst, ins.Src)
	}

	return
}
