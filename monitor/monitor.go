// Package monitor is the interactive console: a small command loop for
// loading graph source, starting execution, inspecting the stopped
// worker, and saving or restoring snapshots.
package monitor

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/patchvm/patchvm/asm"
	"github.com/patchvm/patchvm/exec"
	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/link"
	"github.com/patchvm/patchvm/snapshot"
)

const prompt = "\033[32mpatchvm>\033[0m "

// Session holds the console state between commands: the controller,
// the loaded program, and its labels.
type Session struct {
	Out io.Writer

	ctl      *exec.Controller
	capacity int
	prog     graph.Program
	labels   map[string]int
}

// NewSession wraps a controller for console use. capacity must match
// the controller's buffer.
func NewSession(ctl *exec.Controller, capacity int) *Session {
	return &Session{
		Out:      os.Stdout,
		ctl:      ctl,
		capacity: capacity,
	}
}

// Load assembles a source file and installs the result.
func (ses *Session) Load(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	a := &asm.Assembler{}
	prog, err := a.Parse(in)
	if err != nil {
		return
	}

	if err = ses.ctl.UpdateCode(prog); err != nil {
		return
	}

	ses.prog = prog
	ses.labels = a.Label

	return
}

// Start resumes execution at a label or node index.
func (ses *Session) Start(name string) (err error) {
	n, ok := ses.labels[name]
	if !ok {
		if n, err = strconv.Atoi(name); err != nil {
			err = ErrUnknownLabel(name)
			return
		}
	}
	if n < 0 || n >= len(ses.prog) {
		err = ErrUnknownLabel(name)
		return
	}

	return ses.ctl.Execute(ses.prog[n].Instr)
}

// Save writes the current program and registers to a snapshot file.
func (ses *Session) Save(path string) (err error) {
	if ses.prog == nil {
		err = ErrNoProgram
		return
	}

	state, err := ses.ctl.GetState()
	if err != nil {
		return
	}

	img, err := link.Link(ses.prog, ses.capacity)
	if err != nil {
		return
	}

	return snapshot.Save(path, img, state.Regs)
}

// Restore loads a snapshot file and installs its program. Labels are
// not part of a snapshot; Start takes node indexes afterwards.
func (ses *Session) Restore(path string) (err error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return
	}

	prog, err := snap.Program()
	if err != nil {
		return
	}

	if err = ses.ctl.UpdateCode(prog); err != nil {
		return
	}

	ses.prog = prog
	ses.labels = nil

	return
}

// show prints the worker's position and registers.
func (ses *Session) show() (err error) {
	state, err := ses.ctl.GetState()
	if err != nil {
		return
	}

	if state.Point.Instr == nil {
		fmt.Fprintf(ses.Out, "stopped outside the program\n")
	} else {
		fmt.Fprintf(ses.Out, "at %v (%v)\n", state.Point.Instr, state.Point.Kind)
	}
	fmt.Fprint(ses.Out, state.Regs.String())

	return
}

// list prints the loaded program with labels and indexes.
func (ses *Session) list() {
	byIndex := make(map[int]string, len(ses.labels))
	for label, n := range ses.labels {
		byIndex[n] = label
	}

	for n, node := range ses.prog {
		label := byIndex[n]
		if label != "" {
			label += ":"
		}
		edges := ""
		if node.Next != graph.NO_EDGE {
			edges += fmt.Sprintf(" -> %v", node.Next)
		}
		if node.Jump != graph.NO_EDGE {
			edges += fmt.Sprintf(" @ %v", node.Jump)
		}
		fmt.Fprintf(ses.Out, "%3d %-8s %v%v\n", n, label, node.Instr, edges)
	}
}

func (ses *Session) help() {
	fmt.Fprint(ses.Out, ""+
		"load FILE     assemble FILE and install it\n"+
		"run LABEL     start execution at LABEL (or node index)\n"+
		"pause         stop the worker and show its state\n"+
		"state         show position and registers\n"+
		"list          show the loaded program\n"+
		"save FILE     write a snapshot\n"+
		"restore FILE  install a snapshot\n"+
		"exit          leave the console\n")
}

// Eval runs one console command. quit reports the exit command.
func (ses *Session) Eval(line string) (quit bool, err error) {
	words := strings.Fields(line)
	if len(words) == 0 {
		return
	}

	arg := ""
	if len(words) > 1 {
		arg = words[1]
	}

	switch words[0] {
	case "exit", "quit":
		quit = true
	case "help", "?":
		ses.help()
	case "load":
		if arg == "" {
			err = ErrArgMissing
			return
		}
		err = ses.Load(arg)
	case "run":
		if arg == "" {
			err = ErrArgMissing
			return
		}
		err = ses.Start(arg)
	case "pause", "state", "regs":
		// GetState stops a running worker at a safe point either way.
		err = ses.show()
	case "list":
		ses.list()
	case "save":
		if arg == "" {
			err = ErrArgMissing
			return
		}
		err = ses.Save(arg)
	case "restore":
		if arg == "" {
			err = ErrArgMissing
			return
		}
		err = ses.Restore(arg)
	default:
		err = ErrUnknownCommand(words[0])
	}

	return
}

// Repl runs the interactive loop until exit or EOF.
func (ses *Session) Repl() (err error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       ".patchvm-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return err
		}

		quit, err := ses.Eval(line)
		if err != nil {
			fmt.Fprintf(ses.Out, "error: %v\n", err)
		}
		if quit {
			break
		}
	}

	return nil
}

// PrintExit is an exec.ExitFunc that reports exit points on the
// console.
func (ses *Session) PrintExit(pt link.Point) {
	if pt.Instr == nil {
		fmt.Fprintf(ses.Out, "worker exited at an unmapped address\n")
		return
	}

	fmt.Fprintf(ses.Out, "worker exited after %v (%v edge)\n", pt.Instr, pt.Kind)
}
