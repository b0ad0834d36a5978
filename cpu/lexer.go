package cpu

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Scan states of the line lexer. Exactly one is active at a time.
type (
	scanState interface{ scanning() }

	scanIdle     struct{}
	scanComment  struct{}
	scanWord     struct{ buf []byte }
	scanRegister struct{ buf []byte }
	scanLabel    struct{ buf []byte }
	scanString   struct {
		buf    []byte
		escape bool
	}
	scanChar struct {
		buf    []byte
		escape bool
	}
	scanNumber struct {
		kind  Kind
		buf   []byte
		depth int // Parenthesis depth of a $(...) expression.
	}
)

func (scanIdle) scanning()      {}
func (scanComment) scanning()   {}
func (*scanWord) scanning()     {}
func (*scanRegister) scanning() {}
func (*scanLabel) scanning()    {}
func (*scanString) scanning()   {}
func (*scanChar) scanning()     {}
func (*scanNumber) scanning()   {}

func isSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == ',' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSeparator(c) || c == ';' || c == '"' || c == '\''
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdent(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lineLexer tokenizes a single line, tracking the operand budget of the
// current instruction.
type lineLexer struct {
	asm    *Assembler
	lineNo int
	state  scanState
	tokens []Token

	slots  []Operand // Operand slots still expected.
	budget int       // Operand budget still expected.
}

// alternate switches the pending instruction to its alternate form, if
// that form takes an operand of kind first. `sys rN` assembles as `call rN`.
func (lx *lineLexer) alternate(kind Operand) bool {
	if len(lx.tokens) == 0 {
		return false
	}
	last := &lx.tokens[len(lx.tokens)-1]
	if last.Kind != KIND_INSTRUCTION {
		return false
	}
	op, _ := LookupMnemonic(last.Text)
	alt, ok := alternates[op]
	if !ok {
		return false
	}
	info, _ := alt.Info()
	if len(info.Operands) == 0 || info.Operands[0] != kind {
		return false
	}
	last.Text = info.Mnemonic
	lx.slots = info.Operands
	lx.budget = alt.Budget()
	return true
}

func (lx *lineLexer) emit(kind Kind, text string) (err error) {
	tok := Token{Kind: kind, Text: text, LineNo: lx.lineNo}

	switch kind {
	case KIND_INSTRUCTION:
		if lx.budget != 0 {
			return ErrOperandCount
		}
		op, _ := LookupMnemonic(text)
		info, _ := op.Info()
		lx.slots = info.Operands
		lx.budget = op.Budget()
	case KIND_LABEL_DEF:
		if lx.budget != 0 {
			return ErrOperandCount
		}
	case KIND_STRING:
		if lx.budget != 0 {
			return ErrOperandKind
		}
	default:
		kind, _ := tok.Operand()
		if len(lx.slots) == 0 {
			return ErrOperandCount
		}
		if lx.slots[0] != kind && !lx.alternate(kind) {
			return ErrOperandKind
		}
		lx.slots = lx.slots[1:]
		lx.budget -= kind.Cost()
	}

	lx.tokens = append(lx.tokens, tok)
	return
}

// finish completes the active scan state, and returns to idle.
func (lx *lineLexer) finish() (err error) {
	state := lx.state
	lx.state = scanIdle{}

	switch st := state.(type) {
	case *scanWord:
		word := string(st.buf)
		if _, ok := LookupMnemonic(word); !ok {
			return ErrWordUnknown(word)
		}
		return lx.emit(KIND_INSTRUCTION, word)
	case *scanRegister:
		tok := Token{Kind: KIND_REGISTER, Text: string(st.buf)}
		if _, err = tok.Register(); err != nil {
			return
		}
		return lx.emit(KIND_REGISTER, tok.Text)
	case *scanLabel:
		if len(st.buf) == 0 {
			return ErrLabelEmpty
		}
		return lx.emit(KIND_LABEL_USE, string(st.buf))
	case *scanNumber:
		text := string(st.buf)
		if strings.HasPrefix(text, "(") {
			if st.depth != 0 {
				return ErrExpression(text)
			}
			text, err = lx.asm.evaluate(text, st.kind == KIND_INT32)
			if err != nil {
				return
			}
		}
		tok := Token{Kind: st.kind, Text: text}
		if _, err = tok.Value(); err != nil {
			return
		}
		return lx.emit(st.kind, text)
	case *scanString:
		return ErrStringUnterminated
	case *scanChar:
		return ErrCharUnterminated
	}

	return
}

// step advances the lexer by one character.
func (lx *lineLexer) step(c byte) (err error) {
	switch st := lx.state.(type) {
	case scanIdle:
		switch {
		case isSeparator(c):
		case c == ';':
			lx.state = scanComment{}
		case c == '"':
			lx.state = &scanString{}
		case c == '\'':
			lx.state = &scanChar{}
		case c == '.':
			lx.state = &scanLabel{}
		case c == '$':
			lx.state = &scanNumber{kind: KIND_INT64}
		default:
			lx.state = &scanWord{buf: []byte{c}}
		}
	case scanComment:
	case *scanWord:
		word := string(st.buf)
		switch {
		case isDelimiter(c):
			if err = lx.finish(); err != nil {
				return
			}
			return lx.step(c)
		case c == '$' && word == "U":
			lx.state = &scanNumber{kind: KIND_INT32}
		case c == '$':
			return ErrWordUnknown(word + "$")
		case isDigit(c) && word == "r":
			lx.state = &scanRegister{buf: []byte{c}}
		case (c == 'x' || c == 'X') && (word == "0" || word == "-0"):
			lx.state = &scanNumber{kind: KIND_INT32, buf: append(st.buf, c)}
		default:
			st.buf = append(st.buf, c)
		}
	case *scanRegister:
		switch {
		case isDigit(c):
			st.buf = append(st.buf, c)
		case isDelimiter(c):
			if err = lx.finish(); err != nil {
				return
			}
			return lx.step(c)
		default:
			return ErrRegisterInvalid
		}
	case *scanLabel:
		switch {
		case isIdent(c):
			st.buf = append(st.buf, c)
		case c == ':':
			lx.state = scanIdle{}
			if len(st.buf) == 0 {
				return ErrLabelEmpty
			}
			return lx.emit(KIND_LABEL_DEF, string(st.buf))
		default:
			if err = lx.finish(); err != nil {
				return
			}
			return lx.step(c)
		}
	case *scanNumber:
		if len(st.buf) == 0 && c == '(' {
			st.buf = append(st.buf, c)
			st.depth = 1
			return
		}
		if st.depth > 0 {
			st.buf = append(st.buf, c)
			switch c {
			case '(':
				st.depth++
			case ')':
				st.depth--
				if st.depth == 0 {
					return lx.finish()
				}
			}
			return
		}
		if isDelimiter(c) {
			if err = lx.finish(); err != nil {
				return
			}
			return lx.step(c)
		}
		st.buf = append(st.buf, c)
	case *scanString:
		switch {
		case st.escape:
			if _, ok := escapeTable[c]; !ok {
				return ErrEscapeUnknown
			}
			st.buf = append(st.buf, '\\', c)
			st.escape = false
		case c == '\\':
			st.escape = true
		case c == '"':
			lx.state = scanIdle{}
			return lx.emit(KIND_STRING, string(st.buf))
		default:
			st.buf = append(st.buf, c)
		}
	case *scanChar:
		switch {
		case st.escape:
			if _, ok := escapeTable[c]; !ok {
				return ErrEscapeUnknown
			}
			st.buf = append(st.buf, '\\', c)
			st.escape = false
		case c == '\\':
			st.escape = true
		case c == '\'':
			lx.state = scanIdle{}
			tok := Token{Kind: KIND_CHAR, Text: string(st.buf)}
			if _, err = tok.Value(); err != nil {
				return
			}
			return lx.emit(KIND_CHAR, tok.Text)
		default:
			st.buf = append(st.buf, c)
		}
	}

	return
}

// lexLine tokenizes one line of assembly text.
func (asm *Assembler) lexLine(line string, lineNo int) (tokens []Token, err error) {
	lx := &lineLexer{
		asm:    asm,
		lineNo: lineNo,
		state:  scanIdle{},
	}

	for n := 0; n < len(line); n++ {
		err = lx.step(line[n])
		if err != nil {
			break
		}
	}

	if err == nil {
		err = lx.finish()
	}

	if err == nil && lx.budget != 0 {
		err = ErrOperandCount
	}

	if err != nil {
		err = &ErrSyntax{LineNo: lineNo, Line: line, Err: err}
		return
	}

	tokens = lx.tokens
	return
}

// Lex tokenizes assembly text. Line numbers in the tokens are 1-based.
func (asm *Assembler) Lex(input io.Reader) (tokens []Token, err error) {
	if asm.Equate == nil {
		asm.reset()
	}

	text, err := io.ReadAll(input)
	if err != nil {
		return
	}

	if asm.Includes != nil {
		text, err = asm.Includes.Expand(text)
		if err != nil {
			return
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 4096), max(len(text)+1, bufio.MaxScanTokenSize))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		asm.Equate["LINENO"] = strconv.Itoa(lineNo)

		var line_tokens []Token
		line_tokens, err = asm.lexLine(scanner.Text(), lineNo)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, line_tokens...)
	}
	err = scanner.Err()
	if err != nil {
		return nil, err
	}

	asm.log("lexed %d tokens from %d lines", len(tokens), lineNo)

	return
}
