// Package snapshot serializes a linked image and the stopped worker's
// registers for offline inspection and later restore.
package snapshot

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
	"github.com/patchvm/patchvm/link"
)

// VERSION is the snapshot format version.
const VERSION = 1

// Canonical mode keeps the encoding deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Node is one program node in portable form: the instruction fields by
// value instead of by identity.
type Node struct {
	Op   uint8 `cbor:"op"`
	Dst  uint8 `cbor:"dst"`
	Src  uint8 `cbor:"src"`
	Imm  int32 `cbor:"imm"`
	Next int   `cbor:"next"`
	Jump int   `cbor:"jump"`
}

// Entry is one buffer map entry in portable form.
type Entry struct {
	Start int   `cbor:"start"`
	End   int   `cbor:"end"`
	Kind  uint8 `cbor:"kind"`
	Node  int   `cbor:"node"`
}

// Snapshot is everything needed to inspect or restore a stopped
// session: the exact buffer bytes, the map describing them, the
// program shape, and the register file.
type Snapshot struct {
	Version int      `cbor:"version"`
	Code    []byte   `cbor:"code"`
	Map     []Entry  `cbor:"map"`
	Nodes   []Node   `cbor:"nodes"`
	Regs    isa.Regs `cbor:"regs"`
}

// Take captures an image and register file into a Snapshot.
func Take(img *link.Image, regs isa.Regs) (snap *Snapshot) {
	snap = &Snapshot{
		Version: VERSION,
		Code:    append([]byte(nil), img.Code...),
		Regs:    regs,
	}

	for _, entry := range img.Map {
		snap.Map = append(snap.Map, Entry{
			Start: entry.Start,
			End:   entry.End,
			Kind:  uint8(entry.Kind),
			Node:  entry.Node,
		})
	}

	for _, node := range img.Prog {
		snap.Nodes = append(snap.Nodes, Node{
			Op:   uint8(node.Instr.Op),
			Dst:  uint8(node.Instr.Dst),
			Src:  uint8(node.Instr.Src),
			Imm:  node.Instr.Imm,
			Next: node.Next,
			Jump: node.Jump,
		})
	}

	return
}

// Program rebuilds a live Program from the snapshot. The instructions
// are fresh identities, created in node order so the identity-order
// invariant holds; relinking them reproduces the snapshot's code
// bytes.
func (snap *Snapshot) Program() (prog graph.Program, err error) {
	prog = make(graph.Program, len(snap.Nodes))
	for n, node := range snap.Nodes {
		if node.Op > uint8(isa.OP_BRNZ) {
			prog = nil
			err = &ErrNode{Node: n, Field: "op"}
			return
		}
		if node.Dst >= uint8(isa.REG_COUNT) || node.Src >= uint8(isa.REG_COUNT) {
			prog = nil
			err = &ErrNode{Node: n, Field: "reg"}
			return
		}

		ins := isa.Make(isa.Op(node.Op), isa.Reg(node.Dst), isa.Reg(node.Src), node.Imm)
		prog[n] = graph.Node{Instr: ins, Next: node.Next, Jump: node.Jump}
	}

	if err = prog.Validate(); err != nil {
		prog = nil
	}

	return
}

// Marshal serializes a Snapshot to CBOR bytes.
func Marshal(snap *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snap)
}

// Unmarshal deserializes a Snapshot from CBOR bytes.
func Unmarshal(data []byte) (snap *Snapshot, err error) {
	var s Snapshot
	if err = cbor.Unmarshal(data, &s); err != nil {
		err = &ErrDecode{Err: err}
		return
	}
	if s.Version != VERSION {
		err = ErrVersion(s.Version)
		return
	}

	snap = &s

	return
}

// Save writes a snapshot file.
func Save(path string, img *link.Image, regs isa.Regs) (err error) {
	data, err := Marshal(Take(img, regs))
	if err != nil {
		return
	}

	return os.WriteFile(path, data, 0644)
}

// Load reads a snapshot file.
func Load(path string) (snap *Snapshot, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	return Unmarshal(data)
}
