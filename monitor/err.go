package monitor

import (
	"errors"

	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

var (
	ErrArgMissing = errors.New(f("command needs an argument"))
	ErrNoProgram  = errors.New(f("no program loaded"))
)

type ErrUnknownCommand string

func (err ErrUnknownCommand) Error() string {
	return f("unknown command '%v', try 'help'", string(err))
}

type ErrUnknownLabel string

func (err ErrUnknownLabel) Error() string {
	return f("no label or node '%v'", string(err))
}
