package graph

import (
	"github.com/patchvm/patchvm/translate"
)

var f = translate.From

type ErrNodeEmpty int

func (err ErrNodeEmpty) Error() string {
	return f("node %v has no instruction", int(err))
}

type ErrOrder int

func (err ErrOrder) Error() string {
	return f("node %v out of identity order", int(err))
}

type ErrJumpEdge int

func (err ErrJumpEdge) Error() string {
	return f("node %v has a jump edge on a non-branching instruction", int(err))
}

type ErrEdge struct {
	Node int
	Edge int
}

func (err *ErrEdge) Error() string {
	return f("node %v edge %v outside program", err.Node, err.Edge)
}
