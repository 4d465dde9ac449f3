package link

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
)

const _TEST_CAPACITY = 4096

func aluChain(count int) (prog graph.Program) {
	instructions := make([]*isa.Instruction, count)
	for n := range instructions {
		instructions[n] = isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, int32(n))
	}

	return graph.Chain(instructions...)
}

func TestLink_ChainShape(t *testing.T) {
	assert := assert.New(t)

	for _, count := range []int{1, 2, 5, 17} {
		prog := aluChain(count)

		img, err := Link(prog, _TEST_CAPACITY)
		assert.NoError(err)

		bodies := 0
		nexts := 0
		for _, entry := range img.Map {
			switch entry.Kind {
			case KIND_BODY:
				bodies++
			case KIND_NEXT:
				nexts++
				assert.Equal(1, entry.End-entry.Start)
			}
		}
		assert.Equal(count, bodies)
		assert.Equal(1, nexts)
	}
}

func TestLink_TwoNodeExample(t *testing.T) {
	assert := assert.New(t)

	a := isa.Make(isa.OP_CONST, isa.REG_R0, isa.REG_R0, 7)
	b := isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 1)
	prog := graph.Chain(a, b)

	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	codeA, _, _ := isa.Encode(a)
	codeB, _, _ := isa.Encode(b)

	expect := append(append([]byte{}, codeA...), codeB...)
	expect = append(expect, isa.TRAP_BYTE)
	assert.Equal(expect, img.Code)

	assert.Equal(Map{
		{Start: 0, End: len(codeA), Kind: KIND_BODY, Node: 0},
		{Start: len(codeA), End: len(codeA) + len(codeB), Kind: KIND_BODY, Node: 1},
		{Start: len(codeA) + len(codeB), End: len(codeA) + len(codeB) + 1, Kind: KIND_NEXT, Node: 1},
	}, img.Map)
}

func TestLink_Idempotent(t *testing.T) {
	assert := assert.New(t)

	prog := graph.Chain(
		isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 0),
		isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 1),
		isa.Make(isa.OP_BRZ, isa.REG_R0, isa.REG_R1, 0),
		isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 3),
		isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 4),
		isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 5),
	)
	prog[2].Jump = 0

	one, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)
	two, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	assert.Equal(one.Code, two.Code)
	assert.Equal(one.Map, two.Map)
}

func TestLink_JumpResolution(t *testing.T) {
	assert := assert.New(t)

	a := isa.Make(isa.OP_JUMP, isa.REG_R0, isa.REG_R0, 0)
	b := isa.Make(isa.OP_ADDI, isa.REG_R1, isa.REG_R0, 1)

	prog := graph.Program{
		{Instr: a, Next: graph.NO_EDGE, Jump: 1},
		{Instr: b, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
	}

	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	// Executing A must transfer control to B's offset.
	offA := img.OffsetOf(a)
	offB := img.OffsetOf(b)
	assert.NotEqual(graph.NO_EDGE, offA)
	assert.NotEqual(graph.NO_EDGE, offB)

	d, err := isa.Decode(img.Code[offA:])
	assert.NoError(err)
	assert.Equal(isa.OP_JUMP, d.Op)
	assert.Equal(offB, offA+d.Size+int(d.Rel))
}

func TestLink_DanglingJumpGetsExitPoint(t *testing.T) {
	assert := assert.New(t)

	a := isa.Make(isa.OP_JUMP, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{{Instr: a, Next: graph.NO_EDGE, Jump: graph.NO_EDGE}}

	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	var exit *Entry
	for n, entry := range img.Map {
		if entry.Kind == KIND_JUMP {
			exit = &img.Map[n]
		}
	}
	assert.NotNil(exit)
	assert.Equal(0, exit.Node)
	assert.Equal(isa.TRAP_BYTE, img.Code[exit.Start])

	// The jump must land on the trap byte.
	d, err := isa.Decode(img.Code)
	assert.NoError(err)
	assert.Equal(exit.Start, d.Size+int(d.Rel))
}

func TestLink_CycleNeedsNoExitPoints(t *testing.T) {
	assert := assert.New(t)

	prog := aluChain(3)
	prog[2].Next = 0 // 0 -> 1 -> 2 -> 0

	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	for _, entry := range img.Map {
		if entry.Kind == KIND_BODY {
			continue
		}
		// The cycle is closed by an in-buffer jump, never a trap.
		assert.Equal(KIND_NEXT, entry.Kind)
		assert.NotEqual(1, entry.End-entry.Start)

		d, err := isa.Decode(img.Code[entry.Start:])
		assert.NoError(err)
		assert.Equal(isa.OP_JUMP, d.Op)
		assert.Equal(0, entry.End+int(d.Rel))
	}
}

func TestLink_BranchFallthroughAndJump(t *testing.T) {
	assert := assert.New(t)

	br := isa.Make(isa.OP_BRNZ, isa.REG_R0, isa.REG_R0, 0)
	thenIns := isa.Make(isa.OP_ADDI, isa.REG_R1, isa.REG_R0, 1)
	elseIns := isa.Make(isa.OP_ADDI, isa.REG_R2, isa.REG_R0, 2)

	prog := graph.Program{
		{Instr: br, Next: 1, Jump: 2},
		{Instr: thenIns, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: elseIns, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
	}

	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	offBr := img.OffsetOf(br)
	offElse := img.OffsetOf(elseIns)

	d, err := isa.Decode(img.Code[offBr:])
	assert.NoError(err)
	assert.Equal(isa.OP_BRNZ, d.Op)
	assert.Equal(offElse, offBr+d.Size+int(d.Rel))

	// Fallthrough block directly follows the branch.
	assert.Equal(offBr+d.Size, img.OffsetOf(thenIns))
}

func TestLink_Overflow(t *testing.T) {
	assert := assert.New(t)

	prog := aluChain(10)

	_, err := Link(prog, 16)
	assert.Error(err)

	var overflow *ErrOverflow
	assert.ErrorAs(err, &overflow)
	assert.Equal(16, overflow.Capacity)
}

func TestLink_RejectsBadOrder(t *testing.T) {
	assert := assert.New(t)

	a := isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0)
	b := isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{
		{Instr: b, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: a, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
	}

	_, err := Link(prog, _TEST_CAPACITY)
	assert.ErrorIs(err, graph.ErrOrder(1))
}

func TestMap_Locate(t *testing.T) {
	assert := assert.New(t)

	prog := aluChain(2)
	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	entry, ok := img.Map.Locate(0)
	assert.True(ok)
	assert.Equal(KIND_BODY, entry.Kind)
	assert.Equal(0, entry.Node)

	_, ok = img.Map.Locate(len(img.Code))
	assert.False(ok)
}

func TestMap_LocateTrap(t *testing.T) {
	assert := assert.New(t)

	prog := aluChain(2)
	img, err := Link(prog, _TEST_CAPACITY)
	assert.NoError(err)

	// The trap stop address is one past the trap byte.
	entry, ok := img.Map.LocateTrap(len(img.Code))
	assert.True(ok)
	assert.Equal(KIND_NEXT, entry.Kind)
	assert.Equal(1, entry.Node)

	pt, ok := img.PointAt(len(img.Code), true)
	assert.True(ok)
	assert.Equal(prog[1].Instr, pt.Instr)
	assert.Equal(KIND_NEXT, pt.Kind)
}
