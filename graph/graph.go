// Package graph holds the instruction graph a caller composes: a flat,
// identity-ordered vector of nodes whose control-flow edges are plain
// integer indexes. Cycles and unbounded fan-in are allowed; the flat
// representation keeps relinking trivial.
package graph

import (
	"github.com/patchvm/patchvm/isa"
)

// NO_EDGE marks an unconnected Next or Jump edge.
const NO_EDGE = -1

// Node is one placed instruction with its control-flow edges. Next is
// the fallthrough successor, Jump the explicit branch target; both are
// indexes into the same Program, or NO_EDGE.
type Node struct {
	Instr *isa.Instruction
	Next  int
	Jump  int
}

// Program is an ordered sequence of nodes, sorted by instruction
// creation sequence.
type Program []Node

// Validate checks the Program invariants: every node carries an
// instruction, the sequence is strictly increasing in identity order,
// and every present edge indexes into the Program.
func (prog Program) Validate() (err error) {
	var last uint64
	for n, node := range prog {
		if node.Instr == nil {
			err = ErrNodeEmpty(n)
			return
		}
		if node.Instr.Seq <= last && n > 0 {
			err = ErrOrder(n)
			return
		}
		last = node.Instr.Seq

		for _, edge := range []int{node.Next, node.Jump} {
			if edge == NO_EDGE {
				continue
			}
			if edge < 0 || edge >= len(prog) {
				err = &ErrEdge{Node: n, Edge: edge}
				return
			}
		}

		// Only branching instructions consume a jump edge; anywhere
		// else the edge would be dead weight that still skews the
		// in-degree scan.
		if node.Jump != NO_EDGE && !node.Instr.Branches() {
			err = ErrJumpEdge(n)
			return
		}
	}

	return
}

// InDegree counts incoming Next and Jump edges per node. Zero-in-degree
// nodes are natural block starts.
func (prog Program) InDegree() (degree []int) {
	degree = make([]int, len(prog))
	for _, node := range prog {
		if node.Next != NO_EDGE {
			degree[node.Next]++
		}
		if node.Jump != NO_EDGE {
			degree[node.Jump]++
		}
	}

	return
}

// Find returns the index of the node holding ins, by identity, or
// NO_EDGE when the instruction is not part of the Program.
func (prog Program) Find(ins *isa.Instruction) int {
	for n, node := range prog {
		if node.Instr == ins {
			return n
		}
	}

	return NO_EDGE
}

// Chain builds the simplest well-formed Program from a list of
// instructions: each node falls through to the one after it.
func Chain(instructions ...*isa.Instruction) (prog Program) {
	prog = make(Program, len(instructions))
	for n, ins := range instructions {
		next := n + 1
		if next == len(instructions) {
			next = NO_EDGE
		}
		prog[n] = Node{Instr: ins, Next: next, Jump: NO_EDGE}
	}

	return
}
