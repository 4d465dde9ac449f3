package snapshot

import (
	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

type ErrVersion int

func (err ErrVersion) Error() string {
	return f("unsupported snapshot version %v", int(err))
}

type ErrDecode struct {
	Err error
}

func (err *ErrDecode) Error() string {
	return f("snapshot decode: %v", err.Err)
}

func (err *ErrDecode) Unwrap() error {
	return err.Err
}

// ErrNode indicates an out-of-range instruction field in a snapshot.
type ErrNode struct {
	Node  int
	Field string
}

func (err *ErrNode) Error() string {
	return f("node %v has an invalid %v field", err.Node, err.Field)
}
