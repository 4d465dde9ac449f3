package isa

import (
	"encoding/binary"
)

// RelocKind identifies the width of a PC-relative fixup field.
type RelocKind int

//go:generate go tool stringer -linecomment -type=RelocKind
const (
	RELOC_NONE  = RelocKind(0) // none
	RELOC_REL8  = RelocKind(1) // rel8
	RELOC_REL32 = RelocKind(2) // rel32
)

// Width returns the fixup field width in bytes.
func (kind RelocKind) Width() int {
	switch kind {
	case RELOC_REL8:
		return 1
	case RELOC_REL32:
		return 4
	}
	return 0
}

// Reloc is a fixup requested by the encoder. Offset is the position of
// the fixup field within the encoded bytes; the displacement written
// there is relative to the end of the instruction.
type Reloc struct {
	Kind   RelocKind
	Offset int
}

// Byte opcodes of the encoded form.
const (
	_BYTE_CONST = byte(0x10)
	_BYTE_MOVE  = byte(0x11)
	_BYTE_ADD   = byte(0x20)
	_BYTE_SUB   = byte(0x21)
	_BYTE_AND   = byte(0x22)
	_BYTE_OR    = byte(0x23)
	_BYTE_XOR   = byte(0x24)
	_BYTE_SHL   = byte(0x25)
	_BYTE_SHR   = byte(0x26)
	_BYTE_ADDI  = byte(0x28)
	_BYTE_JUMP  = byte(0x40)
	_BYTE_JUMPS = byte(0x41)
	_BYTE_BRZ   = byte(0x42)
	_BYTE_BRNZ  = byte(0x43)
)

var _alu_bytes = map[Op]byte{
	OP_ADD: _BYTE_ADD,
	OP_SUB: _BYTE_SUB,
	OP_AND: _BYTE_AND,
	OP_OR:  _BYTE_OR,
	OP_XOR: _BYTE_XOR,
	OP_SHL: _BYTE_SHL,
	OP_SHR: _BYTE_SHR,
}

// Encode encodes a single instruction into raw bytes, plus at most one
// relocation for the branch displacement. The displacement field is
// emitted as zero; the linker patches it with Patch().
func Encode(ins *Instruction) (code []byte, reloc Reloc, err error) {
	if ins.Dst < 0 || int(ins.Dst) >= REG_COUNT || ins.Src < 0 || int(ins.Src) >= REG_COUNT {
		err = ErrEncodeReg(ins.Op)
		return
	}

	switch ins.Op {
	case OP_TRAP:
		code = []byte{TRAP_BYTE}
	case OP_NOP:
		code = []byte{NOP_BYTE}
	case OP_CONST:
		code = immCode(_BYTE_CONST, ins.Dst, ins.Imm)
	case OP_ADDI:
		code = immCode(_BYTE_ADDI, ins.Dst, ins.Imm)
	case OP_MOVE:
		code = []byte{_BYTE_MOVE, byte(ins.Dst), byte(ins.Src)}
	case OP_ADD, OP_SUB, OP_AND, OP_OR, OP_XOR, OP_SHL, OP_SHR:
		code = []byte{_alu_bytes[ins.Op], byte(ins.Dst), byte(ins.Src)}
	case OP_JUMP:
		code = []byte{_BYTE_JUMP, 0, 0, 0, 0}
		reloc = Reloc{Kind: RELOC_REL32, Offset: 1}
	case OP_JUMPS:
		code = []byte{_BYTE_JUMPS, 0}
		reloc = Reloc{Kind: RELOC_REL8, Offset: 1}
	case OP_BRZ:
		code = []byte{_BYTE_BRZ, byte(ins.Src), 0, 0, 0, 0}
		reloc = Reloc{Kind: RELOC_REL32, Offset: 2}
	case OP_BRNZ:
		code = []byte{_BYTE_BRNZ, byte(ins.Src), 0, 0, 0, 0}
		reloc = Reloc{Kind: RELOC_REL32, Offset: 2}
	default:
		err = ErrEncodeOp(ins.Op)
	}

	return
}

// JumpCode returns a synthesized unconditional jump and its relocation.
// The linker uses it to close emitted blocks whose successor is already
// placed elsewhere in the buffer.
func JumpCode() (code []byte, reloc Reloc) {
	code = []byte{_BYTE_JUMP, 0, 0, 0, 0}
	reloc = Reloc{Kind: RELOC_REL32, Offset: 1}

	return
}

// Patch writes a PC-relative displacement into the fixup field of an
// encoded instruction. disp is relative to the end of the instruction.
func Patch(code []byte, reloc Reloc, disp int) (err error) {
	switch reloc.Kind {
	case RELOC_REL8:
		if disp < -0x80 || disp > 0x7f {
			err = ErrRelocRange(disp)
			return
		}
		code[reloc.Offset] = byte(int8(disp))
	case RELOC_REL32:
		if disp < -0x80000000 || disp > 0x7fffffff {
			err = ErrRelocRange(disp)
			return
		}
		binary.LittleEndian.PutUint32(code[reloc.Offset:], uint32(int32(disp)))
	default:
		err = ErrRelocKind(reloc.Kind)
	}

	return
}

// immCode packs an opcode byte, register, and little-endian 32-bit
// immediate.
func immCode(op byte, dst Reg, imm int32) (code []byte) {
	code = []byte{op, byte(dst), 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(code[2:], uint32(imm))

	return
}
