package compiler

import (
	"errors"

	"github.com/ezrec/vml/translate"
)

var f = translate.From

var (
	// Lexical errors
	ErrStringUnterminated = errors.New(f("unexpected end of line while parsing string literal"))
	ErrCharUnterminated   = errors.New(f("unexpected end of line while parsing character"))
	ErrCharLength         = errors.New(f("type `char` must contain exactly one character"))
	ErrNumberInvalid      = errors.New(f("unexpected character while parsing number"))

	// Structural errors
	ErrMainMissing       = errors.New(f("source does not contain a `main` method"))
	ErrBraceUnbalanced   = errors.New(f("imbalanced braces"))
	ErrMethodNested      = errors.New(f("nested methods are not supported; place methods in the global scope"))
	ErrMethodName        = errors.New(f("`method` without name; methods are defined with `method <name> {...}`"))
	ErrLetMalformed      = errors.New(f("`let` declarations must take the form `let <value> const <name>`"))
	ErrMemoryMalformed   = errors.New(f("`memory` declarations must take the form `memory <size> const <name>`"))
	ErrOutsideMethod     = errors.New(f("statement outside of a method"))
	ErrConditionMissing  = errors.New(f("`if` or `while` without a `{` block"))
	ErrArguments         = errors.New(f("operator expects more prior arguments"))
	ErrNameInvalid       = errors.New(f("invalid name"))
	ErrDefinitionMissing = errors.New(f("undefined word"))
)

// ErrDefinitionDuplicate is a name defined more than once.
type ErrDefinitionDuplicate string

func (err ErrDefinitionDuplicate) Error() string {
	return f("multiple definitions of '%v'", string(err))
}

// ErrSource locates a compile error in the source text.
type ErrSource struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSource) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSource) Unwrap() error {
	return err.Err
}
