package cpu

import (
	"cmp"
	"io"
	"iter"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Line maps an instruction offset in the image to its source line.
type Line struct {
	Offset int
	LineNo int
}

// Program is an assembled image, with its debug information.
type Program struct {
	Image  []byte            // Executable image.
	Labels map[string]uint32 // Label offsets.
	Lines  []Line            // Instruction offsets, ascending.
}

// Debug is the source position of an image offset.
type Debug struct {
	*Line
	Index int // Byte index into the instruction.
}

// Debug returns the source line of the instruction containing pc.
// The embedded Line is nil if pc is not within an instruction.
func (prog *Program) Debug(pc int) (dbg Debug) {
	n := sort.Search(len(prog.Lines), func(i int) bool {
		return prog.Lines[i].Offset > pc
	}) - 1
	if n < 0 || pc >= len(prog.Image) {
		return
	}

	line := &prog.Lines[n]
	op := Opcode(prog.Image[line.Offset])
	if pc >= line.Offset+op.Width() {
		return
	}

	dbg = Debug{
		Line:  line,
		Index: pc - line.Offset,
	}
	return
}

// Symbols returns the labels in order of their offsets.
func (prog *Program) Symbols() iter.Seq2[string, uint32] {
	return func(yield func(string, uint32) bool) {
		names := slices.SortedFunc(maps.Keys(prog.Labels), func(a, b string) int {
			return cmp.Or(cmp.Compare(prog.Labels[a], prog.Labels[b]), strings.Compare(a, b))
		})
		for _, name := range names {
			if !yield(name, prog.Labels[name]) {
				return
			}
		}
	}
}

// WriteTo writes the raw image. The image has no header; its length is
// the file size.
func (prog *Program) WriteTo(w io.Writer) (n int64, err error) {
	count, err := w.Write(prog.Image)
	n = int64(count)
	return
}
