// Package link turns an instruction graph into one contiguous block of
// executable code with resolved control-flow edges.
//
// Linking is a pure function of the Program: no shared state, callable
// from any goroutine. The output Image pairs the code bytes with an
// ordered Map from byte ranges back to the nodes that produced them,
// which is what makes the buffer relinkable and the worker inspectable.
package link

import (
	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
)

// Kind classifies a mapped byte range.
type Kind int

//go:generate go tool stringer -linecomment -type=Kind
const (
	KIND_BODY = Kind(0) // body
	KIND_NEXT = Kind(1) // next
	KIND_JUMP = Kind(2) // jump
)

// Entry maps one byte range of the code. Ranges are ordered and
// non-overlapping, and together cover exactly the written bytes.
//
// A KIND_BODY entry covers the encoded instruction of a node. KIND_NEXT
// and KIND_JUMP entries cover the flow leaving a node: either a
// synthesized in-buffer jump, or a single trap byte marking an exit
// point.
type Entry struct {
	Start int  // First byte offset.
	End   int  // One past the last byte offset.
	Kind  Kind // What the range holds.
	Node  int  // Program node responsible for the range.
}

// Map is the ordered byte-range map of a linked Image.
type Map []Entry

// Locate returns the entry covering offset.
func (m Map) Locate(offset int) (entry Entry, ok bool) {
	for _, entry = range m {
		if offset >= entry.Start && offset < entry.End {
			ok = true
			return
		}
	}

	return
}

// LocateTrap returns the entry ending exactly at offset. A trap faults
// after advancing past itself, so a trap-stopped worker's instruction
// pointer is the end of the responsible entry.
func (m Map) LocateTrap(offset int) (entry Entry, ok bool) {
	for _, entry = range m {
		if offset == entry.End && entry.Kind != KIND_BODY {
			ok = true
			return
		}
	}

	return
}

// Point is the decoded meaning of an address inside the code buffer.
// A nil Instr means prologue, padding, or otherwise unmapped bytes.
type Point struct {
	Instr *isa.Instruction
	Kind  Kind
}

// Image is the result of linking a Program: the code bytes, the Map
// covering them, and the Program they came from.
type Image struct {
	Code []byte
	Map  Map
	Prog graph.Program
}

// PointAt decodes an address. With trap set, trap stop semantics are
// used: the address is taken as the end of the responsible range.
func (img *Image) PointAt(offset int, trap bool) (pt Point, ok bool) {
	var entry Entry
	if trap {
		entry, ok = img.Map.LocateTrap(offset)
	} else {
		entry, ok = img.Map.Locate(offset)
	}
	if !ok {
		return
	}

	pt = Point{Instr: img.Prog[entry.Node].Instr, Kind: entry.Kind}

	return
}

// OffsetOf returns the code offset of an instruction's body, found by
// identity, or NO_EDGE when the instruction is not part of the Image.
func (img *Image) OffsetOf(ins *isa.Instruction) int {
	node := img.Prog.Find(ins)
	if node == graph.NO_EDGE {
		return graph.NO_EDGE
	}

	for _, entry := range img.Map {
		if entry.Node == node && entry.Kind == KIND_BODY {
			return entry.Start
		}
	}

	return graph.NO_EDGE
}
