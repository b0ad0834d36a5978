package cpu

import (
	"fmt"
)

// Opcode is the first byte of every encoded instruction.
type Opcode byte

const (
	OP_MOV  = Opcode(0x00) // mov
	OP_LDR  = Opcode(0x01) // ldr
	OP_INDL = Opcode(0x02) // indl
	OP_CPY  = Opcode(0x03) // cpy
	OP_STR  = Opcode(0x04) // str
	OP_INDS = Opcode(0x05) // inds
	OP_PUSH = Opcode(0x06) // push
	OP_POP  = Opcode(0x07) // pop
	OP_IADD = Opcode(0x08) // iadd
	OP_ISUB = Opcode(0x09) // isub
	OP_IMUL = Opcode(0x0a) // imul
	OP_IDIV = Opcode(0x0b) // idiv
	OP_DADD = Opcode(0x0c) // dadd
	OP_DSUB = Opcode(0x0d) // dsub
	OP_DMUL = Opcode(0x0e) // dmul
	OP_DDIV = Opcode(0x0f) // ddiv
	OP_ICST = Opcode(0x10) // icst
	OP_DCST = Opcode(0x11) // dcst
	OP_SHL  = Opcode(0x12) // shl
	OP_SHR  = Opcode(0x13) // shr
	OP_AND  = Opcode(0x14) // and
	OP_OR   = Opcode(0x15) // or
	OP_NEG  = Opcode(0x16) // neg
	OP_ICMP = Opcode(0x17) // icmp
	OP_DCMP = Opcode(0x18) // dcmp
	OP_JMP  = Opcode(0x19) // jmp
	OP_BEQ  = Opcode(0x1a) // beq
	OP_BNE  = Opcode(0x1b) // bne
	OP_BGT  = Opcode(0x1c) // bgt
	OP_BLT  = Opcode(0x1d) // blt
	OP_JSR  = Opcode(0x1e) // jsr
	OP_RET  = Opcode(0x1f) // ret
	OP_SYS  = Opcode(0x20) // sys
	OP_HALT = Opcode(0x22) // halt
	OP_ADR  = Opcode(0x23) // adr
	OP_LEI  = Opcode(0x24) // lei
	OP_LST  = Opcode(0x25) // lst
	OP_LTT  = Opcode(0x26) // ltt
	OP_LSF  = Opcode(0x27) // lsf
	OP_SEI  = Opcode(0x28) // sei
	OP_SST  = Opcode(0x29) // sst
	OP_STT  = Opcode(0x2a) // stt
	OP_SSF  = Opcode(0x2b) // ssf
	OP_BUFC = Opcode(0x2c) // bufc
	OP_BSEQ = Opcode(0x2d) // bseq
	OP_LSEQ = Opcode(0x2e) // lseq
	OP_POW  = Opcode(0x2f) // pow
	OP_ROOT = Opcode(0x30) // root
	OP_CALL = Opcode(0x31) // call
)

// Operand is the kind of an instruction operand slot.
type Operand int

const (
	OPERAND_REG   = Operand(0) // register
	OPERAND_IMM32 = Operand(1) // imm32
	OPERAND_IMM64 = Operand(2) // imm64
)

func (op Operand) String() string {
	switch op {
	case OPERAND_REG:
		return "register"
	case OPERAND_IMM32:
		return "imm32"
	case OPERAND_IMM64:
		return "imm64"
	}
	return fmt.Sprintf("Operand(%d)", int(op))
}

// Cost returns the operand budget consumed by the operand kind.
// Immediate kinds cost their encoded width in bytes.
func (op Operand) Cost() int {
	switch op {
	case OPERAND_REG:
		return 1
	case OPERAND_IMM32:
		return 4
	case OPERAND_IMM64:
		return 8
	}
	return 0
}

// Info describes the assembly form of an opcode.
type Info struct {
	Mnemonic string
	Operands []Operand
}

var (
	sigNone     = []Operand{}
	sigReg      = []Operand{OPERAND_REG}
	sigRegReg   = []Operand{OPERAND_REG, OPERAND_REG}
	sigRegImm   = []Operand{OPERAND_REG, OPERAND_IMM32}
	sigRegRegIm = []Operand{OPERAND_REG, OPERAND_REG, OPERAND_IMM32}
	sigImm      = []Operand{OPERAND_IMM32}
)

var isa = map[Opcode]Info{
	OP_MOV:  {"mov", []Operand{OPERAND_REG, OPERAND_IMM64}},
	OP_LDR:  {"ldr", sigRegImm},
	OP_INDL: {"indl", sigRegRegIm},
	OP_CPY:  {"cpy", sigRegReg},
	OP_STR:  {"str", sigRegImm},
	OP_INDS: {"inds", sigRegRegIm},
	OP_PUSH: {"push", sigReg},
	OP_POP:  {"pop", sigReg},
	OP_IADD: {"iadd", sigRegReg},
	OP_ISUB: {"isub", sigRegReg},
	OP_IMUL: {"imul", sigRegReg},
	OP_IDIV: {"idiv", sigRegReg},
	OP_DADD: {"dadd", sigRegReg},
	OP_DSUB: {"dsub", sigRegReg},
	OP_DMUL: {"dmul", sigRegReg},
	OP_DDIV: {"ddiv", sigRegReg},
	OP_ICST: {"icst", sigReg},
	OP_DCST: {"dcst", sigReg},
	OP_SHL:  {"shl", sigRegReg},
	OP_SHR:  {"shr", sigRegReg},
	OP_AND:  {"and", sigRegReg},
	OP_OR:   {"or", sigRegReg},
	OP_NEG:  {"neg", sigReg},
	OP_ICMP: {"icmp", sigRegReg},
	OP_DCMP: {"dcmp", sigRegReg},
	OP_JMP:  {"jmp", sigImm},
	OP_BEQ:  {"beq", sigImm},
	OP_BNE:  {"bne", sigImm},
	OP_BGT:  {"bgt", sigImm},
	OP_BLT:  {"blt", sigImm},
	OP_JSR:  {"jsr", sigImm},
	OP_RET:  {"ret", sigNone},
	OP_SYS:  {"sys", sigImm},
	OP_HALT: {"halt", sigNone},
	OP_ADR:  {"adr", sigRegImm},
	OP_LEI:  {"lei", sigRegReg},
	OP_LST:  {"lst", sigRegReg},
	OP_LTT:  {"ltt", sigRegReg},
	OP_LSF:  {"lsf", sigRegReg},
	OP_SEI:  {"sei", sigRegReg},
	OP_SST:  {"sst", sigRegReg},
	OP_STT:  {"stt", sigRegReg},
	OP_SSF:  {"ssf", sigRegReg},
	OP_BUFC: {"bufc", sigRegReg},
	OP_BSEQ: {"bseq", sigRegReg},
	OP_LSEQ: {"lseq", sigRegReg},
	OP_POW:  {"pow", sigRegReg},
	OP_ROOT: {"root", sigRegReg},
	OP_CALL: {"call", sigReg},
}

// alternates maps an opcode to the opcode assembled when its mnemonic is
// given operands of another kind.
var alternates = map[Opcode]Opcode{
	OP_SYS: OP_CALL,
}

var mnemonics = map[string]Opcode{}

func init() {
	for op, info := range isa {
		mnemonics[info.Mnemonic] = op
	}
}

// LookupMnemonic returns the opcode for an assembly mnemonic.
func LookupMnemonic(word string) (op Opcode, ok bool) {
	op, ok = mnemonics[word]
	return
}

// Opcodes returns all assigned opcodes, in ascending order.
func Opcodes() (ops []Opcode) {
	for n := 0; n < 256; n++ {
		if _, ok := isa[Opcode(n)]; ok {
			ops = append(ops, Opcode(n))
		}
	}
	return
}

// Info returns the assembly form of the opcode.
func (op Opcode) Info() (info Info, ok bool) {
	info, ok = isa[op]
	return
}

func (op Opcode) String() string {
	info, ok := isa[op]
	if !ok {
		return fmt.Sprintf("Opcode(0x%02x)", byte(op))
	}
	return info.Mnemonic
}

// Registers returns the number of register operands.
func (op Opcode) Registers() (count int) {
	for _, kind := range isa[op].Operands {
		if kind == OPERAND_REG {
			count++
		}
	}
	return
}

// Immediate returns the immediate operand kind, if any.
func (op Opcode) Immediate() (kind Operand, ok bool) {
	for _, kind = range isa[op].Operands {
		if kind != OPERAND_REG {
			return kind, true
		}
	}
	return
}

// Budget returns the operand budget of the opcode.
func (op Opcode) Budget() (budget int) {
	for _, kind := range isa[op].Operands {
		budget += kind.Cost()
	}
	return
}

// Width returns the encoded size in bytes of the instruction: the opcode,
// the register descriptor, and any immediate.
func (op Opcode) Width() int {
	width := 2
	if kind, ok := op.Immediate(); ok {
		width += kind.Cost()
	}
	return width
}
