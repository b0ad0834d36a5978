package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the kind of a Token.
type Kind int

const (
	KIND_INSTRUCTION = Kind(0) // instruction
	KIND_LABEL_DEF   = Kind(1) // label definition
	KIND_LABEL_USE   = Kind(2) // label use
	KIND_INT32       = Kind(3) // int32
	KIND_INT64       = Kind(4) // int64
	KIND_STRING      = Kind(5) // string
	KIND_REGISTER    = Kind(6) // register
	KIND_CHAR        = Kind(7) // char
)

var kindNames = []string{
	"instruction",
	"label definition",
	"label use",
	"int32",
	"int64",
	"string",
	"register",
	"char",
}

func (kind Kind) String() string {
	if kind < 0 || int(kind) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
	return kindNames[kind]
}

// Token is a single lexical item of assembly text.
//
// The Text payload is the mnemonic for instructions, the bare label name for
// labels, the hex literal (with optional leading '-') for integers, the
// decimal register index for registers, and the raw text between the quotes
// for strings and characters.
type Token struct {
	Kind   Kind
	Text   string
	LineNo int
}

func (tok Token) String() string {
	return fmt.Sprintf("%v(%v)", tok.Kind, tok.Text)
}

// Operand returns the operand slot kind filled by the token.
func (tok Token) Operand() (kind Operand, ok bool) {
	switch tok.Kind {
	case KIND_REGISTER:
		return OPERAND_REG, true
	case KIND_INT32, KIND_LABEL_USE, KIND_CHAR:
		return OPERAND_IMM32, true
	case KIND_INT64:
		return OPERAND_IMM64, true
	}
	return
}

// Register returns the register index of a register token.
func (tok Token) Register() (index int, err error) {
	index, err = strconv.Atoi(tok.Text)
	if err != nil || index < 0 || index >= REGISTER_COUNT {
		err = ErrRegisterInvalid
	}
	return
}

// Value returns the numeric value of an integer or character token.
// Negative integers are returned in two's complement of the token width.
func (tok Token) Value() (value uint64, err error) {
	switch tok.Kind {
	case KIND_INT32:
		return parseHex(tok.Text, 32)
	case KIND_INT64:
		return parseHex(tok.Text, 64)
	case KIND_CHAR:
		var data []byte
		data, err = Unescape(tok.Text)
		if err != nil {
			return
		}
		if len(data) != 1 {
			err = ErrCharLength
			return
		}
		value = uint64(data[0])
		return
	}
	err = ErrOperandKind
	return
}

func parseHex(text string, bits int) (value uint64, err error) {
	neg := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")
	if !strings.HasPrefix(digits, "0x") && !strings.HasPrefix(digits, "0X") {
		err = ErrNumberInvalid
		return
	}
	value, err = strconv.ParseUint(digits[2:], 16, bits)
	if err != nil {
		err = ErrNumberInvalid
		return
	}
	if neg {
		value = -value
		if bits == 32 {
			value &= 0xffffffff
		}
	}
	return
}

var escapeTable = map[byte]byte{
	'n':  0x0a,
	't':  0x09,
	'v':  0x0b,
	'"':  0x22,
	'r':  0x0d,
	'f':  0x0c,
	'b':  0x08,
	'a':  0x07,
	'e':  0x1b,
	'\'': 0x27,
	'\\': 0x5c,
}

// Unescape decodes backslash escapes in raw string or character text.
func Unescape(text string) (data []byte, err error) {
	data = make([]byte, 0, len(text))
	for n := 0; n < len(text); n++ {
		c := text[n]
		if c != '\\' {
			data = append(data, c)
			continue
		}
		n++
		if n >= len(text) {
			err = ErrEscapeUnknown
			return
		}
		b, ok := escapeTable[text[n]]
		if !ok {
			err = ErrEscapeUnknown
			return
		}
		data = append(data, b)
	}
	return
}

// Escape encodes data as raw string text, the inverse of Unescape.
func Escape(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		escaped := false
		for key, b := range escapeTable {
			if b == c {
				sb.WriteByte('\\')
				sb.WriteByte(key)
				escaped = true
				break
			}
		}
		if !escaped {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
