package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
	"github.com/patchvm/patchvm/link"
)

func testImage(t *testing.T) *link.Image {
	t.Helper()

	loop := isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, -1)
	br := isa.Make(isa.OP_BRNZ, isa.REG_R0, isa.REG_R0, 0)

	prog := graph.Program{
		{Instr: loop, Next: 1, Jump: graph.NO_EDGE},
		{Instr: br, Next: graph.NO_EDGE, Jump: 0},
	}

	img, err := link.Link(prog, 4096)
	assert.NoError(t, err)

	return img
}

func TestSnapshotRoundTrip(t *testing.T) {
	assert := assert.New(t)

	img := testImage(t)

	var regs isa.Regs
	regs.Reset()
	regs.R[0] = 17
	regs.Ip = 6

	data, err := Marshal(Take(img, regs))
	assert.NoError(err)

	snap, err := Unmarshal(data)
	assert.NoError(err)
	assert.Equal(img.Code, snap.Code)
	assert.Equal(regs, snap.Regs)
	assert.Len(snap.Map, len(img.Map))
	assert.Len(snap.Nodes, len(img.Prog))
}

func TestSnapshotRelink(t *testing.T) {
	assert := assert.New(t)

	img := testImage(t)

	var regs isa.Regs
	regs.Reset()

	snap, err := Unmarshal(mustMarshal(t, Take(img, regs)))
	assert.NoError(err)

	prog, err := snap.Program()
	assert.NoError(err)

	relinked, err := link.Link(prog, 4096)
	assert.NoError(err)
	assert.Equal(img.Code, relinked.Code)
	assert.Equal(img.Map, relinked.Map)
}

func mustMarshal(t *testing.T, snap *Snapshot) (data []byte) {
	t.Helper()

	data, err := Marshal(snap)
	assert.NoError(t, err)

	return
}

func TestSnapshotFile(t *testing.T) {
	assert := assert.New(t)

	img := testImage(t)

	var regs isa.Regs
	regs.Reset()
	regs.R[3] = 9

	path := filepath.Join(t.TempDir(), "worker.snap")
	assert.NoError(Save(path, img, regs))

	snap, err := Load(path)
	assert.NoError(err)
	assert.Equal(img.Code, snap.Code)
	assert.Equal(uint64(9), snap.Regs.R[3])
}

func TestSnapshotVersion(t *testing.T) {
	assert := assert.New(t)

	img := testImage(t)

	var regs isa.Regs
	snap := Take(img, regs)
	snap.Version = 99

	_, err := Unmarshal(mustMarshal(t, snap))
	assert.ErrorIs(err, ErrVersion(99))
}

func TestSnapshotBadNode(t *testing.T) {
	assert := assert.New(t)

	img := testImage(t)

	var regs isa.Regs
	snap := Take(img, regs)
	snap.Nodes[0].Op = 0xff

	loaded, err := Unmarshal(mustMarshal(t, snap))
	assert.NoError(err)

	_, err = loaded.Program()
	var bad *ErrNode
	assert.ErrorAs(err, &bad)
	assert.Equal("op", bad.Field)
}

func TestSnapshotGarbage(t *testing.T) {
	assert := assert.New(t)

	_, err := Unmarshal([]byte{0xde, 0xad})
	var decode *ErrDecode
	assert.ErrorAs(err, &decode)
}
