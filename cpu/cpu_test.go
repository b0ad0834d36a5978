package cpu

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ezrec/vml/io"
)

type testRig struct {
	cpu    *Cpu
	output *bytes.Buffer
	files  *io.MemoryFS
}

func newTestRig(t *testing.T, input string, opts ...Option) (rig *testRig) {
	rig = &testRig{
		output: &bytes.Buffer{},
		files:  &io.MemoryFS{},
	}
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithMemorySize(1 << 16),
		WithStackLimit(64, 16),
		WithConsole(&io.Console{Input: strings.NewReader(input), Output: rig.output}),
		WithFileSystem(rig.files),
	}, opts...)
	rig.cpu = NewCpu(opts...)
	return
}

func (rig *testRig) run(t *testing.T, source string) (err error) {
	asm := &Assembler{Logger: zaptest.NewLogger(t)}
	prog, err := asm.ParseString(source)
	require.NoError(t, err, source)
	rig.cpu.Load(prog.Image)
	return rig.cpu.Run()
}

func float(value float64) string {
	return fmt.Sprintf("$0x%x", math.Float64bits(value))
}

func TestCpuIntegerOps(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op     string
		a, b   uint64
		result uint64
	}){
		{"iadd", 5, 3, 8},
		{"isub", 5, 3, 2},
		{"isub", 3, 5, 0xfffffffffffffffe},
		{"imul", 6, 7, 42},
		{"idiv", 42, 5, 8},
		{"shl", 1, 4, 16},
		{"shr", 0x80, 3, 0x10},
		{"and", 0b1100, 0b1010, 0b1000},
		{"or", 0b1100, 0b1010, 0b1110},
	}

	for _, entry := range table {
		rig := newTestRig(t, "")
		source := fmt.Sprintf("mov r0, $0x%x\nmov r1, $0x%x\n%s r0, r1\nhalt\n", entry.a, entry.b, entry.op)
		assert.NoError(rig.run(t, source), entry.op)
		assert.Equal(entry.result, rig.cpu.Register[0], entry.op)
		assert.Equal(entry.b, rig.cpu.Register[1], entry.op)
	}
}

func TestCpuSubtractPush(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	err := rig.run(t, "mov r0, $0x05\nmov r1, $0x03\nisub r0, r1\npush r0\nhalt\n")
	assert.NoError(err)

	top, ok := rig.cpu.Stack.Peek()
	assert.True(ok)
	assert.Equal(uint64(2), top)
	assert.Equal(1, rig.cpu.Stack.Len())
	assert.NotZero(rig.cpu.Flags & FLAG_HALT)
	assert.Equal(5, rig.cpu.Ticks)
}

func TestCpuFloatOps(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op     string
		a, b   float64
		result float64
	}){
		{"dadd", 1.5, 2.5, 4.0},
		{"dsub", 1.5, 2.5, -1.0},
		{"dmul", 1.5, 2.5, 3.75},
		{"ddiv", 1.0, 4.0, 0.25},
		{"pow", 2.0, 10.0, 1024.0},
		{"root", 27.0, 3.0, 3.0},
	}

	for _, entry := range table {
		rig := newTestRig(t, "")
		source := fmt.Sprintf("mov r0, %s\nmov r1, %s\n%s r0, r1\nhalt\n", float(entry.a), float(entry.b), entry.op)
		assert.NoError(rig.run(t, source), entry.op)
		assert.InDelta(entry.result, math.Float64frombits(rig.cpu.Register[0]), 1e-12, entry.op)
	}
}

func TestCpuConvert(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	source := fmt.Sprintf("mov r0, %s\nmov r1, %s\ndadd r0, r1\ndcst r0\nmov r2, $-0x7\nicst r2\nhalt\n", float(1.5), float(2.5))
	assert.NoError(rig.run(t, source))
	assert.Equal(uint64(4), rig.cpu.Register[0])
	assert.Equal(math.Float64bits(-7.0), rig.cpu.Register[2])
}

func TestCpuCompare(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op    string
		a, b  string
		flags uint8
	}){
		{"icmp", "$0x1", "$0x1", FLAG_EQUAL},
		{"icmp", "$0x2", "$0x1", FLAG_GREATER},
		{"icmp", "$0x1", "$0x2", FLAG_LESS},
		{"dcmp", float(-1), float(0.5), FLAG_LESS},
		{"dcmp", float(2), float(0.5), FLAG_GREATER},
		{"dcmp", float(math.NaN()), float(0.5), 0},
	}

	for _, entry := range table {
		rig := newTestRig(t, "")
		source := fmt.Sprintf("mov r0, %s\nmov r1, %s\n%s r0, r1\n", entry.a, entry.b, entry.op)
		assert.NoError(rig.run(t, source), entry.op)
		assert.Equal(entry.flags, rig.cpu.Flags, entry.op)
	}
}

func TestCpuBranches(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	err := rig.run(t, `
	mov r0, $0x00
	jmp .skip
	mov r0, $0x01
.skip:
	halt
`)
	assert.NoError(err)
	assert.Equal(uint64(0), rig.cpu.Register[0])

	// Count r0 down from 5, accumulating in r1.
	rig = newTestRig(t, "")
	err = rig.run(t, `
	mov r0, $0x05
	mov r1, $0x00
	mov r2, $0x01
	mov r3, $0x00
.loop:
	iadd r1, r0
	isub r0, r2
	icmp r0, r3
	bne .loop
	icmp r1, r3
	bgt .done
	halt
.done:
	mov r4, $0x2a
	halt
`)
	assert.NoError(err)
	assert.Equal(uint64(15), rig.cpu.Register[1])
	assert.Equal(uint64(0x2a), rig.cpu.Register[4])
}

func TestCpuSubroutine(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	err := rig.run(t, `
	jsr .sub
	jsr .sub
	halt
.sub:
	mov r1, $0x01
	iadd r0, r1
	ret
`)
	assert.NoError(err)
	assert.Equal(uint64(2), rig.cpu.Register[0])
	assert.True(rig.cpu.Return.Empty())
	assert.Equal(14, rig.cpu.Pc)
}

func TestCpuMemory(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	err := rig.run(t, `
	mov r0, $0x1122334455667788
	mov r1, $0x40
	ssf r0, r1
	lei r2, r1
	lst r3, r1
	ltt r4, r1
	lsf r5, r1
	mov r6, $0xab
	str r6, U$0x80
	ldr r7, U$0x80
	mov r8, $0x3
	inds r6, r8, U$0x100
	indl r9, r8, U$0x100
	ldr r10, U$0x103
	sei r0, r1
	sst r0, r1
	stt r0, r1
	halt
`)
	assert.NoError(err)
	r := rig.cpu.Register
	assert.Equal(uint64(0x88), r[2])
	assert.Equal(uint64(0x7788), r[3])
	assert.Equal(uint64(0x55667788), r[4])
	assert.Equal(uint64(0x1122334455667788), r[5])
	assert.Equal(uint64(0xab), r[7])
	assert.Equal(uint64(0xab), r[9])
	assert.Equal(uint64(0xab), r[10])

	value, err := rig.cpu.Memory.Load(0x40, 8)
	assert.NoError(err)
	assert.Equal(uint64(0x1122334455667788), value)
}

func TestCpuStrings(t *testing.T) {
	assert := assert.New(t)

	source := `
	adr r0, .a
	mov r1, $0x100
	bufc r0, r1
	adr r0, .%s
	mov r1, $0x200
	bufc r0, r1
	mov r2, $0x100
	mov r3, $0x200
	bseq r2, r3
	halt
.a: "abc"
.b: "abc"
.c: "abd"
`
	rig := newTestRig(t, "")
	assert.NoError(rig.run(t, fmt.Sprintf(source, "b")))
	assert.Equal(FLAG_EQUAL|FLAG_HALT, rig.cpu.Flags)
	str, err := rig.cpu.Memory.String(0x200)
	assert.NoError(err)
	assert.Equal("abc", string(str))

	rig = newTestRig(t, "")
	assert.NoError(rig.run(t, fmt.Sprintf(source, "c")))
	assert.Equal(FLAG_HALT, rig.cpu.Flags)

	source = `
	adr r0, .a
	adr r1, .%s
	lseq r0, r1
	halt
.a: "abc"
.b: "abc"
.c: "ab"
`
	rig = newTestRig(t, "")
	assert.NoError(rig.run(t, fmt.Sprintf(source, "b")))
	assert.Equal(FLAG_EQUAL|FLAG_HALT, rig.cpu.Flags)

	rig = newTestRig(t, "")
	assert.NoError(rig.run(t, fmt.Sprintf(source, "c")))
	assert.Equal(FLAG_HALT, rig.cpu.Flags)
}

func TestCpuFaults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		source string
		pc     int
		err    error
	}){
		{"pop-empty", "pop r0", 0, ErrStackEmpty},
		{"ret-underflow", "ret", 0, ErrStackEmpty},
		{"push-full", ".l: push r0\njmp .l", 0, ErrStackFull},
		{"load-bounds", "ldr r0, U$0xffffff00", 0, ErrBounds},
		{"store-bounds", "mov r1, $0xfffffffffffffffc\nssf r0, r1", 10, ErrBounds},
		{"print-bounds", "mov r0, $0x1000\npush r0\nsys U$0x01", 12, ErrBounds},
		{"syscall", "sys U$0x63", 0, ErrSyscallUnknown(0x63)},
		{"syscall-reg", "mov r3, $0x0a\ncall r3", 10, ErrDecode},
		{"divide", "idiv r0, r1", 0, ErrDivideByZero},
		{"truncated", "jmp .end\n.end: \"\"", 6, ErrDecode},
	}

	for _, entry := range table {
		rig := newTestRig(t, "")
		err := rig.run(t, entry.source)
		assert.ErrorIs(err, entry.err, entry.name)
		var fault *ErrFault
		if assert.ErrorAs(err, &fault, entry.name) {
			assert.Equal(entry.pc, fault.Pc, entry.name)
		}
		assert.Equal(entry.pc, rig.cpu.Pc, entry.name)
	}
}

func TestCpuUnknownOpcode(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zapcore.WarnLevel)
	rig := newTestRig(t, "", WithLogger(zap.New(core)))

	rig.cpu.Load([]byte{byte(OP_HALT), 0x00, 0x21, 0x00})
	rig.cpu.Pc = 2
	err := rig.cpu.Run()
	assert.ErrorIs(err, ErrDecode)
	assert.ErrorIs(err, ErrOpcodeUnknown(0x21))

	var fault *ErrFault
	if assert.ErrorAs(err, &fault) {
		assert.Equal(Opcode(0x21), fault.Opcode)
	}

	entries := logs.FilterMessage("fault").All()
	if assert.Len(entries, 1) {
		assert.Equal(int64(2), entries[0].ContextMap()["pc"])
	}

	// Ticking a halted cpu does nothing.
	rig.cpu.Load([]byte{byte(OP_HALT), 0x00, 0x21, 0x00})
	assert.NoError(rig.cpu.Run())
	assert.ErrorIs(rig.cpu.Tick(), ErrHalted)
	assert.Equal(2, rig.cpu.Pc)
}

func TestCpuEmptyImage(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	rig.cpu.Load(nil)
	assert.True(rig.cpu.Halted())
	assert.NoError(rig.cpu.Run())
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	assert.NoError(rig.run(t, "mov r0, $0x7\npush r0\nstr r0, U$0x10\nhalt"))
	rig.cpu.Reset()

	assert.Equal(0, rig.cpu.Pc)
	assert.Equal(uint8(0), rig.cpu.Flags)
	assert.Equal(uint64(0), rig.cpu.Register[0])
	assert.True(rig.cpu.Stack.Empty())
	value, err := rig.cpu.Memory.Load(0x10, 1)
	assert.NoError(err)
	assert.Equal(uint64(0), value)
	assert.Contains(rig.cpu.String(), "pc: 00000000")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	rig := newTestRig(t, "")
	defines := map[string]string{}
	for key, value := range rig.cpu.Defines() {
		defines[key] = value
	}

	assert.Equal("0x10000", defines["MEMORY_SIZE"])
	assert.Equal("1", defines["SYS_PRINT_STR"])
	assert.Equal("0x80", defines["FLAG_HALT"])
}
