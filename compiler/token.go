package compiler

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ezrec/vml/cpu"
)

// Kind is the kind of a source token.
type Kind int

const (
	KIND_WORD    = Kind(0) // word
	KIND_INTEGER = Kind(1) // integer
	KIND_DOUBLE  = Kind(2) // double
	KIND_STRING  = Kind(3) // string
	KIND_CHAR    = Kind(4) // char
)

func (kind Kind) String() string {
	switch kind {
	case KIND_WORD:
		return "word"
	case KIND_INTEGER:
		return "integer"
	case KIND_DOUBLE:
		return "double"
	case KIND_STRING:
		return "string"
	case KIND_CHAR:
		return "char"
	}
	return fmt.Sprintf("Kind(%d)", int(kind))
}

// Token is a single item of source text.
type Token struct {
	Kind   Kind
	Text   string // Raw text. Strings and chars exclude their quotes.
	Value  uint64 // Bit pattern of integers, doubles, and chars.
	LineNo int
	Line   string // Source line, for diagnostics.
}

var (
	reInteger = regexp.MustCompile(`^-?[0-9]+$`)
	reDouble  = regexp.MustCompile(`^-?[0-9]*\.[0-9]+$|^-?[0-9]+\.[0-9]*$`)
)

// number classifies a bare word that starts like a number.
func number(word string) (tok Token, ok bool, err error) {
	digits := strings.TrimPrefix(word, "-")
	if len(digits) == 0 || !(digits[0] == '.' || (digits[0] >= '0' && digits[0] <= '9')) {
		return
	}
	ok = true

	switch {
	case reInteger.MatchString(word):
		tok.Kind = KIND_INTEGER
		if word[0] == '-' {
			var value int64
			value, err = strconv.ParseInt(word, 10, 64)
			tok.Value = uint64(value)
		} else {
			tok.Value, err = strconv.ParseUint(word, 10, 64)
		}
	case reDouble.MatchString(word):
		tok.Kind = KIND_DOUBLE
		var value float64
		value, err = strconv.ParseFloat(word, 64)
		tok.Value = math.Float64bits(value)
	default:
		if digits == "." {
			ok = false
			return
		}
		err = ErrNumberInvalid
	}
	if err != nil {
		err = ErrNumberInvalid
	}
	tok.Text = word
	return
}

// quoted scans a quoted literal starting at line[0], returning its raw
// contents and the remainder of the line.
func quoted(line string, quote byte) (raw string, rest string, ok bool) {
	escape := false
	for n := 1; n < len(line); n++ {
		c := line[n]
		switch {
		case escape:
			escape = false
		case c == '\\':
			escape = true
		case c == quote:
			return line[1:n], line[n+1:], true
		}
	}
	return
}

func lexLine(line string, lineNo int) (tokens []Token, err error) {
	rest := line
	for {
		rest = strings.TrimLeft(rest, " \t\r")
		if len(rest) == 0 || strings.HasPrefix(rest, "//") {
			return
		}

		tok := Token{LineNo: lineNo, Line: line}
		switch rest[0] {
		case '"':
			var ok bool
			tok.Kind = KIND_STRING
			tok.Text, rest, ok = quoted(rest, '"')
			if !ok {
				return nil, ErrStringUnterminated
			}
			if _, err = cpu.Unescape(tok.Text); err != nil {
				return
			}
		case '\'':
			var ok bool
			tok.Kind = KIND_CHAR
			tok.Text, rest, ok = quoted(rest, '\'')
			if !ok {
				return nil, ErrCharUnterminated
			}
			var data []byte
			data, err = cpu.Unescape(tok.Text)
			if err != nil {
				return
			}
			if len(data) != 1 {
				return nil, ErrCharLength
			}
			tok.Value = uint64(data[0])
		default:
			end := strings.IndexAny(rest, " \t\r")
			if end < 0 {
				end = len(rest)
			}
			word := rest[:end]
			rest = rest[end:]

			num, ok, num_err := number(word)
			if num_err != nil {
				return nil, num_err
			}
			if ok {
				num.LineNo = lineNo
				num.Line = line
				tok = num
			} else {
				tok.Kind = KIND_WORD
				tok.Text = word
			}
		}

		tokens = append(tokens, tok)
	}
}

// Lex splits source text into tokens.
func Lex(text []byte) (tokens []Token, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 4096), max(len(text)+1, bufio.MaxScanTokenSize))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		var line_tokens []Token
		line_tokens, err = lexLine(line, lineNo)
		if err != nil {
			return nil, &ErrSource{LineNo: lineNo, Line: line, Err: err}
		}
		tokens = append(tokens, line_tokens...)
	}

	err = scanner.Err()
	if err != nil {
		return nil, err
	}
	return
}
