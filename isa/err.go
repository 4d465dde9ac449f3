package isa

import (
	"errors"

	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

var (
	ErrDecodeShort = errors.New(f("truncated instruction"))
	ErrDecodeReg   = errors.New(f("register out of range"))
)

type ErrEncodeOp Op

func (err ErrEncodeOp) Error() string {
	return f("op %v not encodable", Op(err))
}

type ErrEncodeReg Op

func (err ErrEncodeReg) Error() string {
	return f("op %v register out of range", Op(err))
}

type ErrDecodeByte byte

func (err ErrDecodeByte) Error() string {
	return f("illegal code byte %#02x", byte(err))
}

type ErrRelocRange int

func (err ErrRelocRange) Error() string {
	return f("displacement %v out of relocation range", int(err))
}

type ErrRelocKind RelocKind

func (err ErrRelocKind) Error() string {
	return f("relocation kind %v not patchable", RelocKind(err))
}
