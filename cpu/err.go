package cpu

import (
	"errors"

	"github.com/ezrec/vml/translate"
)

var f = translate.From

var (
	// Assembler syntax errors
	ErrOperandCount       = errors.New(f("invalid operands for instruction"))
	ErrOperandKind        = errors.New(f("operand kind mismatch"))
	ErrEscapeUnknown      = errors.New(f("unknown escape sequence"))
	ErrStringUnterminated = errors.New(f("unclosed delimiter (did you forget a \"?)"))
	ErrCharUnterminated   = errors.New(f("unclosed character literal"))
	ErrCharLength         = errors.New(f("character literal must hold exactly one character"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrLabelEmpty         = errors.New(f("label name missing"))
	ErrNumberInvalid      = errors.New(f("number invalid"))

	// Assembler semantic errors
	ErrLabelDuplicate = errors.New(f("label duplicated"))

	// Cpu state
	ErrHalted = errors.New(f("halted"))

	// Cpu fault classes
	ErrDecode       = errors.New(f("decode fault"))
	ErrBounds       = errors.New(f("bounds fault"))
	ErrStackEmpty   = errors.New(f("stack empty"))
	ErrStackFull    = errors.New(f("stack full"))
	ErrDivideByZero = errors.New(f("divide by zero"))
	ErrHostIO       = errors.New(f("host i/o"))
)

// ErrWordUnknown is an unrecognized bare word in assembly text.
type ErrWordUnknown string

func (err ErrWordUnknown) Error() string {
	return f("'%v' is not an instruction or operand", string(err))
}

// ErrExpression is a $(...) expression that did not evaluate to an integer.
type ErrExpression string

func (err ErrExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrLabelMissing is a label use without a definition.
type ErrLabelMissing string

func (err ErrLabelMissing) Error() string {
	return f("label '%v' does not exist", string(err))
}

// ErrSyntax locates a malformed token stream.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}

// ErrSemantic locates a well formed but meaningless program, such as a
// reference to an undefined label.
type ErrSemantic struct {
	LineNo int
	Err    error
}

func (err *ErrSemantic) Error() string {
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrSemantic) Unwrap() error {
	return err.Err
}

// ErrOpcodeUnknown is an opcode byte with no instruction assigned.
type ErrOpcodeUnknown byte

func (err ErrOpcodeUnknown) Error() string {
	return f("unrecognized opcode 0x%02x", byte(err))
}

func (err ErrOpcodeUnknown) Is(target error) bool {
	return target == ErrDecode
}

// ErrSyscallUnknown is a syscall number with no host operation assigned.
type ErrSyscallUnknown uint64

func (err ErrSyscallUnknown) Error() string {
	return f("unrecognized syscall 0x%x", uint64(err))
}

func (err ErrSyscallUnknown) Is(target error) bool {
	return target == ErrDecode
}

// ErrTruncated is an instruction running past the end of the image.
type ErrTruncated struct {
	Pc     int
	Opcode Opcode
	Need   int
	Have   int
}

func (err ErrTruncated) Error() string {
	return f("%v at 0x%08x needs %d bytes, %d remain", err.Opcode, err.Pc, err.Need, err.Have)
}

func (err ErrTruncated) Is(target error) bool {
	return target == ErrDecode
}

// ErrAddress is an access outside of memory or the loaded image.
type ErrAddress struct {
	Image   bool   // Set if the access was to the program image.
	Address uint64 // First byte accessed.
	Size    int    // Bytes accessed.
	Limit   int    // Size of the addressed region.
}

func (err ErrAddress) Error() string {
	region := "memory"
	if err.Image {
		region = "image"
	}
	return f("%v access of %d bytes at 0x%x exceeds 0x%x", region, err.Size, err.Address, err.Limit)
}

func (err ErrAddress) Is(target error) bool {
	return target == ErrBounds
}

// ErrFault is a runtime fault that stopped execution.
type ErrFault struct {
	Pc     int
	Opcode Opcode
	Err    error
}

func (err *ErrFault) Error() string {
	return f("fault at 0x%08x (%v): %v", err.Pc, err.Opcode, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}
