package link

import (
	"slices"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
)

// pending is a relocation recorded during emission, resolved once every
// node has been placed.
type pending struct {
	node  int       // Node whose Jump edge the relocation serves.
	at    int       // Start offset of the encoded instruction.
	size  int       // Encoded size of the instruction.
	reloc isa.Reloc // Fixup requested by the encoder.
}

// linker is the single-use emission state of one Link call.
type linker struct {
	prog     graph.Program
	capacity int

	code    []byte
	entries Map
	offset  []int // Per-node start offset; NO_EDGE until emitted.
	relocs  []pending
}

// Link links a Program into an Image that fits capacity bytes.
//
// Emission is depth-first along Next edges, starting from every
// zero-in-degree node and then from any node left unplaced (cycles,
// unreachable subgraphs), so every node is emitted exactly once. Blocks
// whose successor is already placed are closed with a synthesized
// unconditional jump; a non-terminator without a successor gets a
// Next-kind trap byte. Jump edges become PC-relative relocations,
// resolved to the target's offset, or to a fresh Jump-kind trap byte
// when the edge is unconnected.
//
// A failure of any phase returns an error and no Image.
func Link(prog graph.Program, capacity int) (img *Image, err error) {
	if err = prog.Validate(); err != nil {
		return
	}

	lk := &linker{
		prog:     prog,
		capacity: capacity,
		offset:   make([]int, len(prog)),
	}
	for n := range lk.offset {
		lk.offset[n] = graph.NO_EDGE
	}

	degree := prog.InDegree()
	for n := range prog {
		if degree[n] == 0 {
			if err = lk.emitBlock(n); err != nil {
				return
			}
		}
	}
	for n := range prog {
		if lk.offset[n] == graph.NO_EDGE {
			if err = lk.emitBlock(n); err != nil {
				return
			}
		}
	}

	if err = lk.resolve(); err != nil {
		return
	}

	img = &Image{
		Code: lk.code,
		Map:  lk.entries,
		Prog: slices.Clone(prog),
	}

	return
}

// emit appends code bytes under one map entry, checking capacity.
func (lk *linker) emit(code []byte, kind Kind, node int) (at int, err error) {
	at = len(lk.code)
	if at+len(code) > lk.capacity {
		err = &ErrOverflow{Need: at + len(code), Capacity: lk.capacity}
		return
	}

	lk.code = append(lk.code, code...)
	lk.entries = append(lk.entries, Entry{
		Start: at,
		End:   at + len(code),
		Kind:  kind,
		Node:  node,
	})

	return
}

// emitBlock emits the fallthrough chain starting at node n.
func (lk *linker) emitBlock(n int) (err error) {
	for n != graph.NO_EDGE && lk.offset[n] == graph.NO_EDGE {
		node := &lk.prog[n]

		code, reloc, err := isa.Encode(node.Instr)
		if err != nil {
			return &ErrEncode{Node: n, Err: err}
		}

		at, err := lk.emit(code, KIND_BODY, n)
		if err != nil {
			return err
		}
		lk.offset[n] = at

		if reloc.Kind != isa.RELOC_NONE {
			lk.relocs = append(lk.relocs, pending{node: n, at: at, size: len(code), reloc: reloc})
		}

		if node.Instr.Terminator() {
			// Control never falls through; the block is closed
			// by the instruction's own relocation.
			return nil
		}

		next := node.Next
		if next == graph.NO_EDGE {
			// Dangling fallthrough: exit point.
			_, err = lk.emit([]byte{isa.TRAP_BYTE}, KIND_NEXT, n)
			return err
		}

		if lk.offset[next] != graph.NO_EDGE {
			// Successor already placed: close the block with a
			// jump back to it.
			jump, jumpReloc := isa.JumpCode()
			at, err = lk.emit(jump, KIND_NEXT, n)
			if err != nil {
				return err
			}
			disp := lk.offset[next] - (at + len(jump))
			return isa.Patch(lk.code[at:], jumpReloc, disp)
		}

		n = next
	}

	return
}

// resolve patches every pending relocation. Connected Jump edges point
// at the target's emitted offset; unconnected ones get a fresh
// Jump-kind trap byte as their exit point.
func (lk *linker) resolve() (err error) {
	for _, p := range lk.relocs {
		target := lk.prog[p.node].Jump

		var to int
		if target != graph.NO_EDGE {
			to = lk.offset[target]
		} else {
			to, err = lk.emit([]byte{isa.TRAP_BYTE}, KIND_JUMP, p.node)
			if err != nil {
				return
			}
		}

		disp := to - (p.at + p.size)
		if err = isa.Patch(lk.code[p.at:p.at+p.size], p.reloc, disp); err != nil {
			err = &ErrEncode{Node: p.node, Err: err}
			return
		}
	}

	return
}
