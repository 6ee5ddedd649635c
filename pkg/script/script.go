// Package script parses and executes rule scripts.
//
// A rule script is line oriented. Every line is trimmed; blank lines and
// lines starting with "#" are skipped.
//
//	# comment
//	cl <path>          delete a file, or every file below a directory
//	system <command>   run a command with a fixed timeout
//
// Any other line is reported as unrecognized and counts as a failed line.
package script

import (
	"bufio"
	"strings"
)

// Op is the operation of an [Instruction].
type Op int

const (
	// OpUnknown is an unrecognized line.
	OpUnknown Op = iota
	// OpClean cleans a path.
	OpClean
	// OpSystem runs a command.
	OpSystem
)

const (
	cleanPrefix  = "cl "
	systemPrefix = "system "
)

func (o Op) String() string {
	switch o {
	case OpClean:
		return "cl"
	case OpSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Instruction is one executable line of a script.
type Instruction struct {
	// Text is the trimmed line.
	Text string
	// Arg is the path or command, trimmed. Empty for [OpUnknown].
	Arg string
	// Line is the 1-based line number.
	Line int
	Op   Op
}

// Parse splits text into instructions. It never fails; lines that are not
// understood become [OpUnknown] instructions.
func Parse(text string) []Instruction {
	var out []Instruction

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	n := 0
	for sc.Scan() {
		n++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ins := Instruction{Text: line, Line: n, Op: OpUnknown}

		switch {
		case strings.HasPrefix(line, cleanPrefix):
			ins.Op = OpClean
			ins.Arg = strings.TrimSpace(line[len(cleanPrefix):])
		case strings.HasPrefix(line, systemPrefix):
			ins.Op = OpSystem
			ins.Arg = strings.TrimSpace(line[len(systemPrefix):])
		}

		out = append(out, ins)
	}

	return out
}
