package exec

import (
	"log"
	"sync"

	"github.com/patchvm/patchvm/isa"
)

// stopEvent is one worker stop: why, and the fault when reason is
// STOP_FAULT.
type stopEvent struct {
	reason StopReason
	fault  error
}

// worker supervises the bare execution context running inside the code
// buffer. It owns nothing but its machine state; all communication is
// resume/stop events plus the interrupt flag. This is the only
// OS-flavored seam: a port to native threads replaces this file and
// machine.go, keeping the same stop/resume contract.
type worker struct {
	m *machine

	resume  chan struct{}
	stopped chan stopEvent
	quit    chan struct{}
	done    chan struct{}

	quitOnce sync.Once
}

// startWorker spawns the worker. It self-stops immediately; the caller
// must consume the STOP_START event before using it.
func startWorker(buf *Buffer) (w *worker) {
	w = &worker{
		m:       &machine{buf: buf},
		resume:  make(chan struct{}),
		stopped: make(chan stopEvent, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.loop()

	return
}

// loop parks until resumed, runs the machine, and reports each stop.
func (w *worker) loop() {
	defer close(w.done)

	w.stopped <- stopEvent{reason: STOP_START}

	for {
		select {
		case <-w.quit:
			return
		case <-w.resume:
			reason, fault := w.m.run()
			w.stopped <- stopEvent{reason: reason, fault: fault}
		}
	}
}

// Resume lets the worker continue from its current registers. Only
// valid while the worker is stopped and its stop event consumed.
func (w *worker) Resume() {
	w.resume <- struct{}{}
}

// Interrupt requests an out-of-band stop. Its only effect is to force
// the running machine to stop with STOP_INTERRUPT. An interrupt posted
// while the worker is stopped stops the next run immediately; it stays
// pending until clearInterrupt.
func (w *worker) Interrupt() {
	w.m.interrupt.Store(true)
}

// clearInterrupt discards a pending interrupt. Only valid while the
// worker is stopped: the machine never clears the flag itself, so all
// set/clear during the stopped window is sequenced on the caller.
func (w *worker) clearInterrupt() {
	w.m.interrupt.Store(false)
}

// Kill force-terminates the worker, interrupting it if it runs. Safe
// to call twice.
func (w *worker) Kill() {
	w.m.interrupt.Store(true)
	w.quitOnce.Do(func() { close(w.quit) })
	<-w.done
}

// ReadRegs copies out the register file. Worker must be stopped.
func (w *worker) ReadRegs() (regs isa.Regs) {
	return w.m.regs
}

// WriteRegs replaces the register file. Worker must be stopped.
func (w *worker) WriteRegs(regs isa.Regs) {
	w.m.regs = regs
}

// logStop records a stop for the curious.
func logStop(ev stopEvent) {
	if ev.fault != nil {
		log.Printf("exec: worker stopped: %v: %v", ev.reason, ev.fault)
	} else {
		log.Printf("exec: worker stopped: %v", ev.reason)
	}
}
