package exec

import (
	"log"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
	"github.com/patchvm/patchvm/link"
)

// State is the inspectable condition of a stopped worker: where it is
// (nil Instr when parked outside the program) and a copy of its
// registers.
type State struct {
	Point link.Point
	Regs  isa.Regs
}

// ExitFunc is invoked on the control goroutine whenever the worker
// reaches an exit point, carrying the resolved point: "instruction X
// finished via edge-kind Y".
type ExitFunc func(pt link.Point)

// command kinds funneled through the queue.
type cmdKind int

const (
	_CMD_UPDATE   = cmdKind(0)
	_CMD_EXECUTE  = cmdKind(1)
	_CMD_STATE    = cmdKind(2)
	_CMD_SHUTDOWN = cmdKind(3)
)

// command is one queued request from a caller goroutine.
type command struct {
	kind  cmdKind
	img   *link.Image      // _CMD_UPDATE
	ins   *isa.Instruction // _CMD_EXECUTE
	reply chan result
}

// result answers a command.
type result struct {
	state State
	err   error
}

// Controller runs linked code in a supervised worker context. All
// mutable state (buffer, image, worker registers) is owned by the
// control goroutine; callers only ever see copies.
type Controller struct {
	Verbose bool // Set to log every worker stop.

	buf  *Buffer
	w    *worker
	img  *link.Image // Currently installed image; nil before the first UpdateCode.
	exit ExitFunc

	cmds chan command
	done chan struct{}
}

// NewController allocates the code buffer, spawns the worker, waits for
// its initial self-stop, normalizes the registers to the known-zero
// baseline, and starts the control goroutine. A failure here leaves
// nothing running.
func NewController(capacity int, exit ExitFunc) (ctl *Controller, err error) {
	buf, err := NewBuffer(capacity)
	if err != nil {
		return
	}

	w := startWorker(buf)
	ev := <-w.stopped
	if ev.reason != STOP_START {
		w.Kill()
		buf.Close()
		err = ErrStartup(ev.reason)
		return
	}

	var regs isa.Regs
	regs.Reset()
	w.WriteRegs(regs)

	ctl = &Controller{
		buf:  buf,
		w:    w,
		exit: exit,
		cmds: make(chan command, 16),
		done: make(chan struct{}),
	}

	go ctl.loop()

	return
}

// Close force-kills the worker and joins the control goroutine. Safe
// to call twice.
func (ctl *Controller) Close() (err error) {
	ctl.send(command{kind: _CMD_SHUTDOWN})
	ctl.w.Kill()

	return ctl.buf.Close()
}

// UpdateCode links prog and installs the result. The link phase is pure
// and runs on the caller's goroutine; installation happens on the
// control goroutine at the next safe point. A failure at either phase
// leaves the previous code untouched.
func (ctl *Controller) UpdateCode(prog graph.Program) (err error) {
	img, err := link.Link(prog, ctl.buf.Capacity())
	if err != nil {
		return
	}

	_, err = ctl.send(command{kind: _CMD_UPDATE, img: img})

	return
}

// Execute points the worker at an instruction and resumes it. The call
// returns once the resume is issued; completion is observable through
// the exit callback or GetState.
func (ctl *Controller) Execute(ins *isa.Instruction) (err error) {
	_, err = ctl.send(command{kind: _CMD_EXECUTE, ins: ins})

	return
}

// GetState returns the worker's position and registers, as of the next
// safe point.
func (ctl *Controller) GetState() (state State, err error) {
	res, err := ctl.send(command{kind: _CMD_STATE})
	if err != nil {
		return
	}

	state = res.state

	return
}

// send queues a command and waits for the answer, failing cleanly when
// the controller has shut down.
func (ctl *Controller) send(cmd command) (res result, err error) {
	cmd.reply = make(chan result, 1)

	select {
	case ctl.cmds <- cmd:
	case <-ctl.done:
		err = ErrShutdown
		return
	}

	select {
	case res = <-cmd.reply:
		err = res.err
	case <-ctl.done:
		err = ErrShutdown
	}

	return
}

// loop is the control goroutine. Stopped: block on the queue. Running:
// block on the worker's stop, but interrupt it the moment a command
// arrives, so commands only ever apply at the safe point "worker
// stopped".
func (ctl *Controller) loop() {
	defer close(ctl.done)

	running := false

	for {
		resume := false
		var cmd command

		if running {
			select {
			case ev := <-ctl.w.stopped:
				running = false
				ctl.onStop(ev)
				continue
			case cmd = <-ctl.cmds:
				ctl.w.Interrupt()
				ev := <-ctl.w.stopped
				running = false
				if ev.reason == STOP_INTERRUPT {
					// Mid-flight pause; resume after the
					// queue drains unless told otherwise.
					resume = true
				} else {
					ctl.onStop(ev)
				}
			}
		} else {
			cmd = <-ctl.cmds
		}

		if ctl.apply(cmd, &resume) {
			return
		}

		// Drain the queue before resuming.
		for more := true; more; {
			select {
			case next := <-ctl.cmds:
				if ctl.apply(next, &resume) {
					return
				}
			default:
				more = false
			}
		}

		if resume {
			// An interrupt left over from a raced stop must not
			// cancel this run.
			ctl.w.clearInterrupt()
			ctl.w.Resume()
			running = true
		}
	}
}

// apply performs one command at the safe point. resume carries the
// desired run state across the command; quit ends the loop.
func (ctl *Controller) apply(cmd command, resume *bool) (quit bool) {
	switch cmd.kind {
	case _CMD_SHUTDOWN:
		quit = true
		cmd.reply <- result{}
	case _CMD_UPDATE:
		err := ctl.install(cmd.img)
		if err == nil && ctl.w.ReadRegs().Ip == isa.IP_STOPPED {
			*resume = false
		}
		cmd.reply <- result{err: err}
	case _CMD_EXECUTE:
		err := ctl.retarget(cmd.ins)
		if err == nil {
			*resume = true
		}
		cmd.reply <- result{err: err}
	case _CMD_STATE:
		cmd.reply <- result{state: ctl.state()}
	}

	return
}

// install swaps in a freshly linked image, relocating the worker's
// instruction pointer by instruction identity so a paused program
// continues equivalently under the new layout.
func (ctl *Controller) install(img *link.Image) (err error) {
	regs := ctl.w.ReadRegs()

	ip := isa.IP_STOPPED
	if ctl.img != nil && regs.Ip != isa.IP_STOPPED {
		if pt, ok := ctl.img.PointAt(int(regs.Ip), false); ok && pt.Instr != nil {
			if off := img.OffsetOf(pt.Instr); off != graph.NO_EDGE {
				ip = uint64(off)
			}
		}
	}

	if err = ctl.buf.Install(img.Code); err != nil {
		return
	}

	ctl.img = img
	regs.Ip = ip
	ctl.w.WriteRegs(regs)

	return
}

// retarget points the worker at the body of ins in the current image.
func (ctl *Controller) retarget(ins *isa.Instruction) (err error) {
	if ctl.img == nil {
		err = &ErrStale{Ins: ins}
		return
	}

	off := ctl.img.OffsetOf(ins)
	if off == graph.NO_EDGE {
		err = &ErrStale{Ins: ins}
		return
	}

	regs := ctl.w.ReadRegs()
	regs.Ip = uint64(off)
	ctl.w.WriteRegs(regs)

	return
}

// state captures the stopped worker for a caller.
func (ctl *Controller) state() (state State) {
	state.Regs = ctl.w.ReadRegs()

	if ctl.img != nil && state.Regs.Ip != isa.IP_STOPPED {
		if pt, ok := ctl.img.PointAt(int(state.Regs.Ip), false); ok {
			state.Point = pt
		}
	}

	return
}

// onStop handles a worker-initiated stop: exit points fire the
// callback, faults are logged and left inspectable. Either way the
// worker stays stopped.
func (ctl *Controller) onStop(ev stopEvent) {
	if ctl.Verbose {
		logStop(ev)
	}

	switch ev.reason {
	case STOP_TRAP:
		regs := ctl.w.ReadRegs()

		var pt link.Point
		if ctl.img != nil {
			pt, _ = ctl.img.PointAt(int(regs.Ip), true)
		}

		// The program is done; park the worker.
		regs.Ip = isa.IP_STOPPED
		ctl.w.WriteRegs(regs)

		if ctl.exit != nil {
			ctl.exit(pt)
		}
	case STOP_FAULT:
		// Not a caller-visible failure: just another stop reason,
		// left for inspection through GetState.
		log.Printf("exec: worker fault: %v", ev.fault)
	}
}
