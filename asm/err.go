package asm

import (
	"errors"

	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

var (
	ErrEquateSyntax       = errors.New(f("equate syntax is '.equ NAME VALUE'"))
	ErrEquateDuplicate    = errors.New(f("equate is already defined"))
	ErrLabelDuplicate     = errors.New(f("label is already defined"))
	ErrInstructionInvalid = errors.New(f("invalid instruction"))
	ErrOpcodeExtraArgs    = errors.New(f("extra arguments"))
	ErrOpcodeValueMissing = errors.New(f("missing arguments"))
	ErrTargetInvalid      = errors.New(f("invalid register"))
	ErrJumpMissing        = errors.New(f("'@' needs a label"))
	ErrJumpUnused         = errors.New(f("instruction has no jump edge"))
	ErrNextUnused         = errors.New(f("instruction never falls through"))
)

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("cannot parse '%v' as a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("cannot evaluate expression '%v'", string(err))
}

type ErrLabelMissing string

func (err ErrLabelMissing) Error() string {
	return f("label '%v' is not defined", string(err))
}

// ErrSyntax wraps any parse failure with its source location.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %v: '%v': %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}
