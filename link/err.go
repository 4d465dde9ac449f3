package link

import (
	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

// ErrOverflow indicates the linked code would not fit the buffer.
// There is no growth policy; the caller sees the previous code intact.
type ErrOverflow struct {
	Need     int
	Capacity int
}

func (err *ErrOverflow) Error() string {
	return f("code needs %v bytes, buffer holds %v", err.Need, err.Capacity)
}

// ErrEncode wraps an encoder failure with the node that caused it.
type ErrEncode struct {
	Node int
	Err  error
}

func (err *ErrEncode) Error() string {
	return f("node %v: %v", err.Node, err.Err)
}

func (err *ErrEncode) Unwrap() error {
	return err.Err
}
