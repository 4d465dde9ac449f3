package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
	"github.com/patchvm/patchvm/link"
)

const _TEST_CAPACITY = 4096

// newTestController wires a controller to a buffered exit channel.
func newTestController(t *testing.T) (ctl *Controller, exits chan link.Point) {
	t.Helper()

	exits = make(chan link.Point, 16)
	ctl, err := NewController(_TEST_CAPACITY, func(pt link.Point) {
		exits <- pt
	})
	require.NoError(t, err)
	t.Cleanup(func() { ctl.Close() })

	return
}

// awaitExit fails the test rather than hanging it.
func awaitExit(t *testing.T, exits chan link.Point) (pt link.Point) {
	t.Helper()

	select {
	case pt = <-exits:
	case <-time.After(5 * time.Second):
		t.Fatal("no exit point reported")
	}

	return
}

func TestController_InitialState(t *testing.T) {
	assert := assert.New(t)

	ctl, _ := newTestController(t)

	state, err := ctl.GetState()
	assert.NoError(err)
	assert.Nil(state.Point.Instr)
	assert.Equal(isa.IP_STOPPED, state.Regs.Ip)
	for _, val := range state.Regs.R {
		assert.Zero(val)
	}
}

func TestController_ExecuteChain(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	a := isa.Make(isa.OP_CONST, isa.REG_R0, isa.REG_R0, 7)
	b := isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 3)
	prog := graph.Chain(a, b)

	assert.NoError(ctl.UpdateCode(prog))
	assert.NoError(ctl.Execute(a))

	pt := awaitExit(t, exits)
	assert.Equal(b, pt.Instr)
	assert.Equal(link.KIND_NEXT, pt.Kind)

	state, err := ctl.GetState()
	assert.NoError(err)
	assert.Equal(uint64(10), state.Regs.R[0])
	assert.Equal(isa.IP_STOPPED, state.Regs.Ip)
}

func TestController_ExecuteMidChain(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	a := isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 1)
	b := isa.Make(isa.OP_ADDI, isa.REG_R0, isa.REG_R0, 2)
	prog := graph.Chain(a, b)

	assert.NoError(ctl.UpdateCode(prog))

	// Starting at b skips a entirely.
	assert.NoError(ctl.Execute(b))
	awaitExit(t, exits)

	state, err := ctl.GetState()
	assert.NoError(err)
	assert.Equal(uint64(2), state.Regs.R[0])
}

func TestController_ExecuteStale(t *testing.T) {
	assert := assert.New(t)

	ctl, _ := newTestController(t)

	orphan := isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0)

	// No program installed at all.
	err := ctl.Execute(orphan)
	var stale *ErrStale
	assert.ErrorAs(err, &stale)

	// Installed program that does not contain the instruction.
	assert.NoError(ctl.UpdateCode(graph.Chain(
		isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0),
	)))
	err = ctl.Execute(orphan)
	assert.ErrorAs(err, &stale)
	assert.Equal(orphan, stale.Ins)
}

func TestController_DanglingJumpExit(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	// An unconditional jump with no connected edge exits via a
	// synthesized jump-kind exit point.
	jmp := isa.Make(isa.OP_JUMP, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{{Instr: jmp, Next: graph.NO_EDGE, Jump: graph.NO_EDGE}}

	assert.NoError(ctl.UpdateCode(prog))
	assert.NoError(ctl.Execute(jmp))

	pt := awaitExit(t, exits)
	assert.Equal(jmp, pt.Instr)
	assert.Equal(link.KIND_JUMP, pt.Kind)
}

func TestController_PauseInspectResume(t *testing.T) {
	assert := assert.New(t)

	ctl, _ := newTestController(t)

	// spin branches to itself while r0 == 0: a well-formed infinite
	// loop, interruptible but never exiting.
	spin := isa.Make(isa.OP_BRZ, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{{Instr: spin, Next: graph.NO_EDGE, Jump: 0}}

	assert.NoError(ctl.UpdateCode(prog))
	assert.NoError(ctl.Execute(spin))

	// GetState interrupts the worker at a safe point and resumes it.
	for range 3 {
		state, err := ctl.GetState()
		assert.NoError(err)
		assert.Equal(spin, state.Point.Instr)
		assert.Equal(link.KIND_BODY, state.Point.Kind)
	}
}

func TestController_HotSwapPreservesPosition(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	// Identity order is creation order, so every instruction that may
	// ever appear is created up front.
	pad := isa.Make(isa.OP_CONST, isa.REG_R7, isa.REG_R0, 1)
	pad2 := isa.Make(isa.OP_CONST, isa.REG_R6, isa.REG_R0, 2)
	spin := isa.Make(isa.OP_BRZ, isa.REG_R0, isa.REG_R0, 0)

	// Version one: pad, then the spin loop.
	one := graph.Program{
		{Instr: pad, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: spin, Next: graph.NO_EDGE, Jump: 1},
	}
	assert.NoError(ctl.UpdateCode(one))
	assert.NoError(ctl.Execute(spin))

	state, err := ctl.GetState()
	assert.NoError(err)
	assert.Equal(spin, state.Point.Instr)
	oldIp := state.Regs.Ip

	// Version two inserts pad2, shifting spin to a new offset. The
	// worker must keep spinning at spin's body, by identity.
	two := graph.Program{
		{Instr: pad, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: pad2, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: spin, Next: graph.NO_EDGE, Jump: 2},
	}
	assert.NoError(ctl.UpdateCode(two))

	state, err = ctl.GetState()
	assert.NoError(err)
	assert.Equal(spin, state.Point.Instr)
	assert.NotEqual(oldIp, state.Regs.Ip)

	// Version three disconnects the spin's jump edge: the branch now
	// lands on a jump-kind exit point and the loop finally exits.
	three := graph.Program{
		{Instr: pad, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: pad2, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: spin, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
	}
	assert.NoError(ctl.UpdateCode(three))

	pt := awaitExit(t, exits)
	assert.Equal(spin, pt.Instr)
	assert.Equal(link.KIND_JUMP, pt.Kind)
}

func TestController_UpdateFailureKeepsOldCode(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	a := isa.Make(isa.OP_CONST, isa.REG_R0, isa.REG_R0, 5)
	assert.NoError(ctl.UpdateCode(graph.Chain(a)))

	// A program too large for the buffer must not disturb the old one.
	instructions := make([]*isa.Instruction, _TEST_CAPACITY)
	for n := range instructions {
		instructions[n] = isa.Make(isa.OP_CONST, isa.REG_R1, isa.REG_R0, int32(n))
	}
	err := ctl.UpdateCode(graph.Chain(instructions...))
	var overflow *link.ErrOverflow
	assert.ErrorAs(err, &overflow)

	assert.NoError(ctl.Execute(a))
	pt := awaitExit(t, exits)
	assert.Equal(a, pt.Instr)
}

func TestController_UpdateRejectsBadProgram(t *testing.T) {
	assert := assert.New(t)

	ctl, _ := newTestController(t)

	a := isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0)
	b := isa.Make(isa.OP_NOP, isa.REG_R0, isa.REG_R0, 0)

	prog := graph.Program{
		{Instr: b, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
		{Instr: a, Next: graph.NO_EDGE, Jump: graph.NO_EDGE},
	}
	assert.ErrorIs(ctl.UpdateCode(prog), graph.ErrOrder(1))
}

func TestController_RelinkUnchangedKeepsPosition(t *testing.T) {
	assert := assert.New(t)

	ctl, _ := newTestController(t)

	spin := isa.Make(isa.OP_BRZ, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{{Instr: spin, Next: graph.NO_EDGE, Jump: 0}}

	assert.NoError(ctl.UpdateCode(prog))
	assert.NoError(ctl.Execute(spin))

	state, err := ctl.GetState()
	assert.NoError(err)
	oldIp := state.Regs.Ip

	// Relinking the unchanged program moves nothing.
	assert.NoError(ctl.UpdateCode(prog))

	state, err = ctl.GetState()
	assert.NoError(err)
	assert.Equal(spin, state.Point.Instr)
	assert.Equal(oldIp, state.Regs.Ip)
}

func TestController_CloseWhileRunning(t *testing.T) {
	assert := assert.New(t)

	exits := make(chan link.Point, 16)
	ctl, err := NewController(_TEST_CAPACITY, func(pt link.Point) { exits <- pt })
	assert.NoError(err)

	spin := isa.Make(isa.OP_BRZ, isa.REG_R0, isa.REG_R0, 0)
	prog := graph.Program{{Instr: spin, Next: graph.NO_EDGE, Jump: 0}}

	assert.NoError(ctl.UpdateCode(prog))
	assert.NoError(ctl.Execute(spin))

	// Destruction force-kills the spinning worker.
	assert.NoError(ctl.Close())

	_, err = ctl.GetState()
	assert.ErrorIs(err, ErrShutdown)
}

func TestController_CloseTwice(t *testing.T) {
	assert := assert.New(t)

	ctl, err := NewController(_TEST_CAPACITY, nil)
	assert.NoError(err)

	assert.NoError(ctl.Close())
	assert.NoError(ctl.Close())
}

func TestController_RegistersSurviveExit(t *testing.T) {
	assert := assert.New(t)

	ctl, exits := newTestController(t)

	a := isa.Make(isa.OP_CONST, isa.REG_R3, isa.REG_R0, 9)
	assert.NoError(ctl.UpdateCode(graph.Chain(a)))
	assert.NoError(ctl.Execute(a))
	awaitExit(t, exits)

	state, err := ctl.GetState()
	assert.NoError(err)
	assert.Equal(isa.IP_STOPPED, state.Regs.Ip)
	assert.Equal(uint64(9), state.Regs.R[3])
}
