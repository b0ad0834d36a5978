package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInstruction(op Opcode) (inst Instruction) {
	inst.Opcode = op
	switch op.Registers() {
	case 2:
		inst.Src = 7
		fallthrough
	case 1:
		inst.Dst = 3
	}
	if kind, ok := op.Immediate(); ok {
		switch kind {
		case OPERAND_IMM32:
			inst.Immediate = 0x12345678
		case OPERAND_IMM64:
			inst.Immediate = 0x1122334455667788
		}
	}
	return
}

func TestOpcodeTable(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op       Opcode
		mnemonic string
		width    int
		budget   int
	}){
		{OP_MOV, "mov", 10, 9},
		{OP_LDR, "ldr", 6, 5},
		{OP_INDL, "indl", 6, 6},
		{OP_CPY, "cpy", 2, 2},
		{OP_PUSH, "push", 2, 1},
		{OP_JMP, "jmp", 6, 4},
		{OP_RET, "ret", 2, 0},
		{OP_SYS, "sys", 6, 4},
		{OP_HALT, "halt", 2, 0},
		{OP_ADR, "adr", 6, 5},
		{OP_BSEQ, "bseq", 2, 2},
		{OP_LSEQ, "lseq", 2, 2},
		{OP_CALL, "call", 2, 1},
	}

	for _, entry := range table {
		assert.Equal(entry.mnemonic, entry.op.String())
		assert.Equal(entry.width, entry.op.Width(), entry.mnemonic)
		assert.Equal(entry.budget, entry.op.Budget(), entry.mnemonic)
		op, ok := LookupMnemonic(entry.mnemonic)
		assert.True(ok, entry.mnemonic)
		assert.Equal(entry.op, op)
	}

	// bseq compares data memory strings, lseq compares image strings.
	assert.Equal(Opcode(0x2d), OP_BSEQ)
	assert.Equal(Opcode(0x2e), OP_LSEQ)
	assert.Equal(Opcode(0x20), OP_SYS)
	assert.Equal(Opcode(0x31), OP_CALL)

	assert.Len(Opcodes(), 49)
	assert.Equal("Opcode(0x21)", Opcode(0x21).String())
	_, ok := LookupMnemonic("nop")
	assert.False(ok)
}

func TestOpcodeRoundTrip(t *testing.T) {
	for _, op := range Opcodes() {
		t.Run(op.String(), func(t *testing.T) {
			assert := assert.New(t)

			inst := sampleInstruction(op)
			code := inst.Encode()
			assert.Len(code, op.Width())

			decoded, err := Decode(code, 0)
			require.NoError(t, err)
			assert.Equal(inst, decoded)

			asm := &Assembler{}
			prog, err := asm.ParseString(inst.String())
			require.NoError(t, err, inst.String())
			assert.Equal(code, prog.Image, inst.String())
		})
	}
}

func TestOpcodeBudget(t *testing.T) {
	for _, op := range Opcodes() {
		t.Run(op.String(), func(t *testing.T) {
			assert := assert.New(t)

			text := sampleInstruction(op).String()
			words := strings.SplitN(text, " ", 2)

			var bad string
			if len(words) == 1 {
				bad = text + " r0"
			} else {
				args := strings.Split(words[1], ", ")
				bad = words[0] + " " + strings.Join(args[:len(args)-1], ", ")
			}

			asm := &Assembler{}
			prog, err := asm.ParseString(bad)
			assert.Nil(prog)
			var syntax *ErrSyntax
			assert.ErrorAs(err, &syntax, bad)
			assert.ErrorIs(err, ErrOperandCount, bad)
		})
	}
}

func TestDecodeFaults(t *testing.T) {
	assert := assert.New(t)

	_, err := Decode([]byte{0x21, 0x00}, 0)
	assert.ErrorIs(err, ErrDecode)
	assert.ErrorIs(err, ErrOpcodeUnknown(0x21))

	_, err = Decode([]byte{byte(OP_MOV), 0x00, 0x01}, 0)
	assert.ErrorIs(err, ErrDecode)
	var trunc ErrTruncated
	assert.ErrorAs(err, &trunc)
	assert.Equal(10, trunc.Need)
	assert.Equal(3, trunc.Have)

	_, err = Decode([]byte{byte(OP_HALT)}, 0)
	assert.ErrorIs(err, ErrDecode)

	_, err = Decode([]byte{byte(OP_HALT), 0}, 2)
	assert.ErrorIs(err, ErrBounds)
}

func TestDisassemble(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.ParseString("mov r1, $0x2a\ncpy r2, r1\njmp .end\n.end:\nhalt\n")
	require.NoError(t, err)

	insts, pcs, err := Disassemble(prog.Image)
	assert.NoError(err)
	assert.Equal([]int{0, 10, 12, 18}, pcs)

	var text []string
	for _, inst := range insts {
		text = append(text, inst.String())
	}
	assert.Equal([]string{"mov r1, $0x2a", "cpy r2, r1", "jmp U$0x12", "halt"}, text)
}
