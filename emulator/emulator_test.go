package emulator

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ezrec/vml/cpu"
	"github.com/ezrec/vml/io"
)

func newTestEmulator(t *testing.T, input string) (emu *Emulator, output *bytes.Buffer) {
	emu = NewEmulator(
		WithLogger(zaptest.NewLogger(t)),
		WithFileSystem(&io.MemoryFS{}),
		WithCpuOptions(cpu.WithMemorySize(1<<16)),
	)
	output = &bytes.Buffer{}
	emu.Console.Input = strings.NewReader(input)
	emu.Console.Output = output
	return
}

func doRun(t *testing.T, emu *Emulator, program []string) (err error) {
	asm := emu.Assembler()
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)
	emu.Program = prog
	emu.Reset()
	return emu.Run()
}

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.Equal(cpu.MEMORY_SIZE, emu.Cpu.Memory.Len())
}

func TestEmulatorLineNo(t *testing.T) {
	assert := assert.New(t)

	emu, _ := newTestEmulator(t, "")
	program := []string{
		"mov r0, $0x1",
		"; comment",
		"push r0",
		"halt",
	}
	prog, err := emu.Assembler().Parse(strings.NewReader(strings.Join(program, "\n")))
	require.NoError(t, err)
	emu.Program = prog
	emu.Reset()

	var lines []int
	for {
		lines = append(lines, emu.LineNo())
		done, err := emu.Tick()
		assert.NoError(err)
		if done {
			break
		}
	}
	assert.Equal([]int{1, 3, 4, 0}, lines)
	assert.Equal(3, emu.Ticks())
}

func TestEmulatorDefines(t *testing.T) {
	assert := assert.New(t)

	emu, output := newTestEmulator(t, "")
	err := doRun(t, emu, []string{
		"adr r0, .msg",
		"push r0",
		"sys U$(SYS_PRINT_STR)",
		"mov r0, $(MEMORY_SIZE - 1)",
		"push r0",
		"sys U$(SYS_PRINT_HEX)",
		"halt",
		`.msg: "size "`,
	})
	assert.NoError(err)
	assert.Equal("size 0x000000000000ffff", output.String())
}

func TestEmulatorFault(t *testing.T) {
	assert := assert.New(t)

	emu, output := newTestEmulator(t, "")
	err := doRun(t, emu, []string{
		"mov r0, $0x2a",
		"push r0",
		"sys U$0x00",
		"",
		"pop r1",
		"halt",
	})

	var runtime *ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(5, runtime.LineNo)
		assert.Equal(18, runtime.Pc)
	}
	assert.ErrorIs(err, cpu.ErrStackEmpty)
	assert.Equal("42", output.String())

	// Raw images carry no line information.
	emu.Load([]byte{byte(cpu.OP_POP), 0x00})
	emu.Reset()
	err = emu.Run()
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(0, runtime.LineNo)
		assert.Contains(runtime.Error(), "0x00000000")
	}
}

func TestEmulatorReadLine(t *testing.T) {
	assert := assert.New(t)

	emu, output := newTestEmulator(t, "vml\n")
	err := doRun(t, emu, []string{
		"adr r0, .prompt",
		"push r0",
		"sys U$0x01",
		"mov r0, $0x40",
		"push r0",
		"sys U$0x05",
		"push r0",
		"sys U$0x04",
		"halt",
		`.prompt: "name? "`,
	})
	assert.NoError(err)
	assert.Equal("name? vml", output.String())
}
