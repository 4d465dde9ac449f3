package isa

import (
	"encoding/binary"
)

// Decoded is one machine instruction decoded from the code buffer.
type Decoded struct {
	Op   Op    // Operation.
	Dst  Reg   // Destination register, when the Op takes one.
	Src  Reg   // Source register, when the Op takes one.
	Imm  int32 // Immediate value, when the Op takes one.
	Rel  int32 // Branch displacement, relative to the end of the instruction.
	Size int   // Encoded size in bytes.
}

var _decode_ops = map[byte]Op{
	_BYTE_ADD: OP_ADD,
	_BYTE_SUB: OP_SUB,
	_BYTE_AND: OP_AND,
	_BYTE_OR:  OP_OR,
	_BYTE_XOR: OP_XOR,
	_BYTE_SHL: OP_SHL,
	_BYTE_SHR: OP_SHR,
}

// Decode decodes the instruction starting at code[0]. The slice may
// extend past the instruction; Decoded.Size reports how many bytes were
// consumed.
func Decode(code []byte) (d Decoded, err error) {
	if len(code) == 0 {
		err = ErrDecodeShort
		return
	}

	op := code[0]

	switch op {
	case TRAP_BYTE:
		d = Decoded{Op: OP_TRAP, Size: 1}
	case NOP_BYTE:
		d = Decoded{Op: OP_NOP, Size: 1}
	case _BYTE_CONST, _BYTE_ADDI:
		if len(code) < 6 {
			err = ErrDecodeShort
			return
		}
		d = Decoded{
			Op:   OP_CONST,
			Dst:  Reg(code[1]),
			Imm:  int32(binary.LittleEndian.Uint32(code[2:])),
			Size: 6,
		}
		if op == _BYTE_ADDI {
			d.Op = OP_ADDI
		}
	case _BYTE_MOVE, _BYTE_ADD, _BYTE_SUB, _BYTE_AND, _BYTE_OR, _BYTE_XOR, _BYTE_SHL, _BYTE_SHR:
		if len(code) < 3 {
			err = ErrDecodeShort
			return
		}
		d = Decoded{Op: OP_MOVE, Dst: Reg(code[1]), Src: Reg(code[2]), Size: 3}
		if op != _BYTE_MOVE {
			d.Op = _decode_ops[op]
		}
	case _BYTE_JUMP:
		if len(code) < 5 {
			err = ErrDecodeShort
			return
		}
		d = Decoded{
			Op:   OP_JUMP,
			Rel:  int32(binary.LittleEndian.Uint32(code[1:])),
			Size: 5,
		}
	case _BYTE_JUMPS:
		if len(code) < 2 {
			err = ErrDecodeShort
			return
		}
		d = Decoded{Op: OP_JUMPS, Rel: int32(int8(code[1])), Size: 2}
	case _BYTE_BRZ, _BYTE_BRNZ:
		if len(code) < 6 {
			err = ErrDecodeShort
			return
		}
		d = Decoded{
			Op:   OP_BRZ,
			Src:  Reg(code[1]),
			Rel:  int32(binary.LittleEndian.Uint32(code[2:])),
			Size: 6,
		}
		if op == _BYTE_BRNZ {
			d.Op = OP_BRNZ
		}
	default:
		err = ErrDecodeByte(op)
		return
	}

	if int(d.Dst) >= REG_COUNT || int(d.Src) >= REG_COUNT {
		err = ErrDecodeReg
		return
	}

	return
}
