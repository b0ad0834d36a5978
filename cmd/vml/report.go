package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ezrec/vml/compiler"
	"github.com/ezrec/vml/cpu"
	"github.com/ezrec/vml/emulator"
	"github.com/ezrec/vml/internal"
)

const (
	ansiReset    = "\x1b[0m"
	ansiError    = "\x1b[31m\x1b[4m"
	ansiHere     = "\x1b[93m\x1b[1m"
	ansiHereMark = "\x1b[22m\x1b[94m"
)

// reporter writes fatal errors in a human readable form, with the
// offending source line underlined where the error carries one.
type reporter struct {
	out   io.Writer
	color bool
	lines []string
}

func newReporter(out io.Writer, mode string) *reporter {
	color := false
	switch mode {
	case "always":
		color = true
	case "auto":
		if file, ok := out.(*os.File); ok {
			color = isTerminal(int(file.Fd()))
		}
	}

	return &reporter{out: out, color: color}
}

// Source sets the text that line numbers refer to.
func (r *reporter) Source(text string) {
	r.lines = strings.Split(text, "\n")
}

func (r *reporter) sourceLine(lineNo int) (line string, ok bool) {
	if lineNo < 1 || lineNo > len(r.lines) {
		return
	}
	return r.lines[lineNo-1], true
}

// locate finds the line number, source line and bare message of err.
// The full source line is preferred over the excerpt an error carries.
func (r *reporter) locate(err error) (lineNo int, line string, msg error) {
	var syntax *cpu.ErrSyntax
	var semantic *cpu.ErrSemantic
	var source *compiler.ErrSource
	var include *internal.ErrInclude
	var runtime *emulator.ErrRuntime

	switch {
	case errors.As(err, &include):
		// Include lines may come from a nested file.
		return include.LineNo, include.Line, include.Err
	case errors.As(err, &syntax):
		lineNo, line, msg = syntax.LineNo, syntax.Line, syntax.Err
	case errors.As(err, &source):
		lineNo, line, msg = source.LineNo, source.Line, source.Err
	case errors.As(err, &semantic):
		lineNo, msg = semantic.LineNo, semantic.Err
	case errors.As(err, &runtime) && runtime.LineNo != 0:
		lineNo, msg = runtime.LineNo, runtime.Err
	default:
		return 0, "", err
	}

	if full, ok := r.sourceLine(lineNo); ok {
		line = full
	}
	return
}

func (r *reporter) paint(code string, text string) string {
	if !r.color {
		return text
	}
	return code + text + ansiReset
}

// Report writes err.
func (r *reporter) Report(err error) {
	lineNo, line, msg := r.locate(err)
	if lineNo == 0 {
		fmt.Fprintln(r.out, r.paint(ansiError, f("Error: %v", msg)))
		return
	}

	fmt.Fprintln(r.out, r.paint(ansiError, f("Error on line %d: %v", lineNo, msg)))

	excerpt := strings.TrimRight(line, " \t\r")
	if len(strings.TrimSpace(excerpt)) == 0 {
		return
	}
	fmt.Fprintf(r.out, "\t%s\n", excerpt)

	marks := strings.Repeat("~", len(excerpt)-1) + "^"
	if r.color {
		fmt.Fprintf(r.out, "%sHere ->\t%s%s%s\n", ansiHere, ansiHereMark, marks, ansiReset)
	} else {
		fmt.Fprintf(r.out, "Here ->\t%s\n", marks)
	}
}
