// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"

	"github.com/ezrec/vml/internal"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO":         "0",
	"REGISTER_COUNT": strconv.Itoa(REGISTER_COUNT),
}

// Relocation is a 4 byte placeholder to be filled with a label offset.
type Relocation struct {
	Offset int    // Offset of the placeholder in the image.
	Label  string // Label to resolve.
	LineNo int    // Source line of the label use.
}

// Relocatable is the output of the first assembler pass: image bytes with
// unresolved label placeholders.
type Relocatable struct {
	Bytes       []byte
	Relocations []Relocation
	Labels      map[string]uint32
	Lines       []Line
}

// Assembler is a two pass assembler for the vml instruction set.
type Assembler struct {
	Verbose  bool               // If set, verbosely logs the assembler actions.
	Logger   *zap.Logger        // Logger to use. If nil, the global logger is used.
	Includes *internal.Includer // If set, `include "path"` lines are expanded before lexing.

	predefine map[string]string // Predefines
	Equate    map[string]string // Map of equates visible to $(...) expressions.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

func (asm *Assembler) logger() *zap.Logger {
	if asm.Logger == nil {
		return zap.L().Named("asm")
	}
	return asm.Logger
}

func (asm *Assembler) log(format string, args ...any) {
	if asm.Verbose {
		asm.logger().Info(fmt.Sprintf(format, args...))
	} else {
		asm.logger().Debug(fmt.Sprintf(format, args...))
	}
}

func (asm *Assembler) reset() {
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
}

// evaluate computes a parenthesised $(...) expression, returning the
// hex text of its value.
func (asm *Assembler) evaluate(expr string, narrow bool) (text string, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		value, err := strconv.ParseInt(str, 0, 64)
		if err != nil {
			// Non-integer equates are not visible to expressions.
			continue
		}
		pred[key] = starlark.MakeInt64(value)
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrExpression(expr)
		return
	}
	st_int, ok := dict["rc"].(starlark.Int)
	if !ok {
		err = ErrExpression(expr)
		return
	}

	var value uint64
	if st_int64, ok := st_int.Int64(); ok {
		value = uint64(st_int64)
	} else if st_uint64, ok := st_int.Uint64(); ok {
		value = st_uint64
	} else {
		err = ErrExpression(expr)
		return
	}

	if narrow {
		value &= 0xffffffff
	}

	text = fmt.Sprintf("0x%x", value)
	return
}

// Lower is the first assembler pass. It encodes the token stream into
// image bytes, records label definitions, and leaves 4 byte placeholders
// for label uses.
func (asm *Assembler) Lower(tokens []Token) (rel *Relocatable, err error) {
	rel = &Relocatable{
		Labels: map[string]uint32{},
	}

	fail := func(tok Token, e error) (*Relocatable, error) {
		return nil, &ErrSyntax{LineNo: tok.LineNo, Line: tok.Text, Err: e}
	}

	for n := 0; n < len(tokens); n++ {
		tok := tokens[n]
		switch tok.Kind {
		case KIND_INSTRUCTION:
			op, ok := LookupMnemonic(tok.Text)
			if !ok {
				return fail(tok, ErrWordUnknown(tok.Text))
			}
			rel.Lines = append(rel.Lines, Line{Offset: len(rel.Bytes), LineNo: tok.LineNo})
			rel.Bytes = append(rel.Bytes, byte(op))
			if op.Registers() == 0 {
				rel.Bytes = append(rel.Bytes, 0)
			}
		case KIND_REGISTER:
			lo, err := tok.Register()
			if err != nil {
				return fail(tok, err)
			}
			desc := byte(lo)
			if n+1 < len(tokens) && tokens[n+1].Kind == KIND_REGISTER {
				n++
				hi, err := tokens[n].Register()
				if err != nil {
					return fail(tokens[n], err)
				}
				desc |= byte(hi) << 4
			}
			rel.Bytes = append(rel.Bytes, desc)
		case KIND_INT32, KIND_CHAR:
			value, err := tok.Value()
			if err != nil {
				return fail(tok, err)
			}
			rel.Bytes = binary.LittleEndian.AppendUint32(rel.Bytes, uint32(value))
		case KIND_INT64:
			value, err := tok.Value()
			if err != nil {
				return fail(tok, err)
			}
			rel.Bytes = binary.LittleEndian.AppendUint64(rel.Bytes, value)
		case KIND_STRING:
			data, err := Unescape(tok.Text)
			if err != nil {
				return fail(tok, err)
			}
			rel.Bytes = append(rel.Bytes, data...)
			rel.Bytes = append(rel.Bytes, 0)
		case KIND_LABEL_DEF:
			if _, ok := rel.Labels[tok.Text]; ok {
				return nil, &ErrSemantic{LineNo: tok.LineNo, Err: fmt.Errorf("%w: %v", ErrLabelDuplicate, tok.Text)}
			}
			rel.Labels[tok.Text] = uint32(len(rel.Bytes))
		case KIND_LABEL_USE:
			rel.Relocations = append(rel.Relocations, Relocation{
				Offset: len(rel.Bytes),
				Label:  tok.Text,
				LineNo: tok.LineNo,
			})
			rel.Bytes = append(rel.Bytes, 0, 0, 0, 0)
		default:
			return fail(tok, ErrOperandKind)
		}
	}

	asm.log("lowered %d bytes, %d labels, %d relocations", len(rel.Bytes), len(rel.Labels), len(rel.Relocations))

	return
}

// Resolve is the second assembler pass. It fills every placeholder with
// the little endian offset of its label. No image is produced if any
// label is undefined.
func (rel *Relocatable) Resolve() (image []byte, err error) {
	image = slices.Clone(rel.Bytes)
	for _, reloc := range rel.Relocations {
		offset, ok := rel.Labels[reloc.Label]
		if !ok {
			return nil, &ErrSemantic{LineNo: reloc.LineNo, Err: ErrLabelMissing(reloc.Label)}
		}
		binary.LittleEndian.PutUint32(image[reloc.Offset:], offset)
	}
	return
}

// Assemble runs both assembler passes over a token stream.
func (asm *Assembler) Assemble(tokens []Token) (prog *Program, err error) {
	rel, err := asm.Lower(tokens)
	if err != nil {
		return
	}

	image, err := rel.Resolve()
	if err != nil {
		return
	}

	prog = &Program{
		Image:  image,
		Labels: rel.Labels,
		Lines:  rel.Lines,
	}

	return
}

// Parse lexes and assembles an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	asm.reset()

	tokens, err := asm.Lex(input)
	if err != nil {
		return
	}

	return asm.Assemble(tokens)
}

// ParseString is a convenience wrapper around Parse.
func (asm *Assembler) ParseString(text string) (prog *Program, err error) {
	return asm.Parse(bytes.NewBufferString(text))
}
