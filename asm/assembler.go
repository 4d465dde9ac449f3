// Package asm is the textual front end for composing instruction
// graphs: one node per line, with labels for edges, equates for
// constants, and compile-time $( ... ) expression evaluation.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/patchvm/patchvm/graph"
	"github.com/patchvm/patchvm/isa"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// node is one parsed line before edge resolution. Edges hold label
// names until every label is known.
type node struct {
	lineNo int
	instr  *isa.Instruction
	next   string // Label, "" for fallthrough, _EDGE_NONE for dangling.
	jump   string // Label, or "" when the line has no '@' clause.
}

// _EDGE_NONE marks an explicitly dangling fallthrough ("->" with no
// label). It cannot collide with a label since labels never start
// with '-'.
const _EDGE_NONE = "-"

// Assembler parses graph source text into a Program. A line looks
// like:
//
//	label: op args -> next @ jump
//
// where "label:", "-> next" and "@ jump" are each optional. Without an
// arrow clause a node falls through to the line below it; a bare "->"
// leaves the fallthrough dangling.
type Assembler struct {
	Verbose bool           // If set, verbosely logs the assembler actions.
	Label   map[string]int // Map of labels to node indexes.

	predefine map[string]string // Predefines
	equate    map[string]string // Map of equates.
	nodes     []node
}

// Predefine defines an equate before parsing, overriding any .equ of
// the same name.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap maps register names.
var regMap = map[string]isa.Reg{
	"r0": isa.REG_R0,
	"r1": isa.REG_R1,
	"r2": isa.REG_R2,
	"r3": isa.REG_R3,
	"r4": isa.REG_R4,
	"r5": isa.REG_R5,
	"r6": isa.REG_R6,
	"r7": isa.REG_R7,
}

// opMap maps mnemonics to operations and their operand shapes.
var opMap = map[string]struct {
	op    isa.Op
	shape string // "" none, "di" dst+imm, "ds" dst+src, "s" src only
}{
	"trap":  {isa.OP_TRAP, ""},
	"nop":   {isa.OP_NOP, ""},
	"const": {isa.OP_CONST, "di"},
	"move":  {isa.OP_MOVE, "ds"},
	"add":   {isa.OP_ADD, "ds"},
	"sub":   {isa.OP_SUB, "ds"},
	"and":   {isa.OP_AND, "ds"},
	"or":    {isa.OP_OR, "ds"},
	"xor":   {isa.OP_XOR, "ds"},
	"shl":   {isa.OP_SHL, "ds"},
	"shr":   {isa.OP_SHR, "ds"},
	"addi":  {isa.OP_ADDI, "di"},
	"jump":  {isa.OP_JUMP, ""},
	"jumps": {isa.OP_JUMPS, ""},
	"brz":   {isa.OP_BRZ, "s"},
	"brnz":  {isa.OP_BRNZ, "s"},
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int32, err error) {
	invert := false
	if word[0] == '~' {
		invert = true
		word = word[1:]
	}
	v64, err := strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}
	if v64 > 0xffffffff || v64 < -int64(0x80000000) {
		err = ErrParseNumber(word)
		return
	}

	value = int32(v64)
	if invert {
		value = ^value
	}

	return
}

// parenEval does compile-time $(...) evaluations.
func (asm *Assembler) parenEval(expr string) (value int32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.equate {
		value32, bad := asm.valueOf(str)
		if bad != nil {
			// Ignore non-integer equates. They may be registers
			// or labels.
			continue
		}
		pred[key] = starlark.MakeInt(int(value32))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int32(st_int64)
	return
}

var parenRe = regexp.MustCompile(`\$\([^\$]*\)`)

// parseLine splits a source line into words: expands $() expressions,
// handles .equ, substitutes equates, and peels off labels.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	asm.equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do $() evaluations
	line = parenRe.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(line)
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		equate, ok := asm.equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = len(asm.nodes)
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// parseWords evaluates the words of one line into a node.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	if len(words) == 0 {
		return
	}

	nd := node{lineNo: lineno}

	// Split off the edge clauses first.
	for n := 0; n < len(words); n++ {
		switch words[n] {
		case "->":
			nd.next = _EDGE_NONE
			if n+1 < len(words) && words[n+1] != "@" {
				nd.next = words[n+1]
				words = append(words[:n], words[n+2:]...)
			} else {
				words = append(words[:n], words[n+1:]...)
			}
			n--
		case "@":
			if n+1 >= len(words) {
				err = ErrJumpMissing
				return
			}
			nd.jump = words[n+1]
			words = append(words[:n], words[n+2:]...)
			n--
		}
	}

	def, ok := opMap[words[0]]
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	args := words[1:]
	var dst, src isa.Reg
	var imm int32

	switch def.shape {
	case "":
		if len(args) != 0 {
			err = ErrOpcodeExtraArgs
			return
		}
	case "di":
		if len(args) != 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if dst, ok = regMap[args[0]]; !ok {
			err = ErrTargetInvalid
			return
		}
		if imm, err = asm.valueOf(args[1]); err != nil {
			return
		}
	case "ds":
		if len(args) != 2 {
			err = ErrOpcodeValueMissing
			return
		}
		if dst, ok = regMap[args[0]]; !ok {
			err = ErrTargetInvalid
			return
		}
		if src, ok = regMap[args[1]]; !ok {
			err = ErrTargetInvalid
			return
		}
	case "s":
		if len(args) != 1 {
			err = ErrOpcodeValueMissing
			return
		}
		if src, ok = regMap[args[0]]; !ok {
			err = ErrTargetInvalid
			return
		}
	}

	ins := isa.Make(def.op, dst, src, imm)

	if nd.jump != "" && !ins.Branches() {
		err = ErrJumpUnused
		return
	}
	if ins.Terminator() && nd.next != "" && nd.next != _EDGE_NONE {
		// An unconditional jump never falls through.
		err = ErrNextUnused
		return
	}

	nd.instr = ins
	asm.nodes = append(asm.nodes, nd)

	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog graph.Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.nodes = asm.nodes[:0]
	asm.equate = maps.Clone(sysEquate)
	for attr, val := range isa.Defines() {
		asm.equate[attr] = val
	}
	for attr, val := range asm.predefine {
		asm.equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}

	// Final linking of edge labels.
	prog = make(graph.Program, len(asm.nodes))
	for n, nd := range asm.nodes {
		lineno, line = nd.lineNo, ""

		next := graph.NO_EDGE
		switch nd.next {
		case _EDGE_NONE:
		case "":
			if !nd.instr.Terminator() && n+1 < len(asm.nodes) {
				next = n + 1
			}
		default:
			if next, err = asm.resolve(nd.next); err != nil {
				return
			}
		}

		jump := graph.NO_EDGE
		if nd.jump != "" {
			if jump, err = asm.resolve(nd.jump); err != nil {
				return
			}
		}

		prog[n] = graph.Node{Instr: nd.instr, Next: next, Jump: jump}
	}

	err = prog.Validate()

	return
}

// resolve looks up an edge label.
func (asm *Assembler) resolve(label string) (n int, err error) {
	n, ok := asm.Label[label]
	if !ok {
		err = ErrLabelMissing(label)
	}

	return
}
