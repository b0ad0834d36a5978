package cpu

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyscallPrint(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		call   Syscall
		value  string
		output string
	}){
		{SYS_PRINT_INT, "$0x2a", "42"},
		{SYS_PRINT_INT, "$-0x1", "18446744073709551615"},
		{SYS_PRINT_SIGNED, "$-0x1", "-1"},
		{SYS_PRINT_BIN, "$0x5", "0b" + fmt.Sprintf("%062b", 5)},
		{SYS_PRINT_HEX, "$0xbeef", "0x000000000000beef"},
		{SYS_PRINT_FLOAT, float(1.5), "1.5"},
		{SYS_PRINT_FLOAT, float(-0.25), "-0.25"},
	}

	for _, entry := range table {
		rig := newTestRig(t, "")
		source := fmt.Sprintf("mov r0, %s\npush r0\nsys U$0x%x\nhalt\n", entry.value, uint64(entry.call))
		assert.NoError(rig.run(t, source), entry.call.String())
		assert.Equal(entry.output, rig.output.String(), entry.call.String())
		assert.True(rig.cpu.Stack.Empty())
	}
}

func TestSyscallPrintString(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	err := rig.run(t, `
	adr r0, .msg
	push r0
	sys U$0x01
	halt
.msg: "Hi\tthere\n\"quoted\"\\"
`)
	assert.NoError(err)
	assert.Equal("Hi\tthere\n\"quoted\"\\", rig.output.String())
}

func TestSyscallReadLine(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "hello world\nsecond\n")
	err := rig.run(t, `
	mov r0, $0x10
	push r0
	sys U$0x05
	push r0
	sys U$0x04
	push r0
	mov r1, $0x5
	call r1
	push r0
	mov r1, $0x4
	call r1
	halt
`)
	assert.NoError(err)
	assert.Equal("hello worldsecond", rig.output.String())

	rig = newTestRig(t, "")
	err = rig.run(t, "mov r0, $0x10\npush r0\nsys U$0x05\n")
	assert.ErrorIs(err, ErrHostIO)
}

func TestSyscallFiles(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	rig.files.Files = map[string][]byte{"in.txt": []byte("data")}
	err := rig.run(t, `
	mov r0, $0x0
	push r0
	mov r0, $0x100
	push r0
	adr r0, .in
	push r0
	sys U$0x08
	; copy the output name to memory, and use it from there
	adr r0, .out
	mov r1, $0x200
	bufc r0, r1
	mov r0, $0x1
	push r0
	mov r0, $0x100
	push r0
	mov r0, $0x200
	push r0
	sys U$0x09
	halt
.in: "in.txt"
.out: "out.txt"
`)
	assert.NoError(err)
	assert.Equal([]byte("data"), rig.files.Files["out.txt"])

	rig = newTestRig(t, "")
	err = rig.run(t, `
	mov r0, $0x0
	push r0
	push r0
	adr r0, .in
	push r0
	sys U$0x08
.in: "missing.txt"
`)
	assert.ErrorIs(err, ErrHostIO)
}
