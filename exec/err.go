package exec

import (
	"errors"

	"github.com/patchvm/patchvm/isa"
	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

var (
	ErrShutdown = errors.New(f("controller shut down"))
)

// ErrStartup indicates the worker did not reach its initial self-stop.
type ErrStartup StopReason

func (err ErrStartup) Error() string {
	return f("worker failed to start: stopped with %v", StopReason(err))
}

// ErrStale indicates an Execute target not present in the installed
// program.
type ErrStale struct {
	Ins *isa.Instruction
}

func (err *ErrStale) Error() string {
	return f("instruction '%v' not in the installed program", err.Ins)
}

// ErrBufferFull indicates an install larger than the mapping. The
// linker checks capacity first, so reaching this means the caller
// bypassed it.
type ErrBufferFull int

func (err ErrBufferFull) Error() string {
	return f("%v code bytes exceed the buffer", int(err))
}

// ErrAddressFault is the worker fetching outside the code buffer.
type ErrAddressFault uint64

func (err ErrAddressFault) Error() string {
	return f("address %#x outside code", uint64(err))
}

// ErrCodeFault wraps an undecodable fetch with its location.
type ErrCodeFault struct {
	Ip  uint64
	Err error
}

func (err *ErrCodeFault) Error() string {
	return f("at %#x: %v", err.Ip, err.Err)
}

func (err *ErrCodeFault) Unwrap() error {
	return err.Err
}

// ErrOs wraps an OS primitive failure with the primitive's name.
type ErrOs struct {
	Op  string
	Err error
}

func (err *ErrOs) Error() string {
	return f("%v: %v", err.Op, err.Err)
}

func (err *ErrOs) Unwrap() error {
	return err.Err
}
