package cpu

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ezrec/vml/io"
)

const (
	REGISTER_COUNT = 16 // General purpose registers
)

// Flag bits
const (
	FLAG_EQUAL   = uint8(1 << 2) // Last compare was equal.
	FLAG_LESS    = uint8(1 << 5) // Last compare was less than.
	FLAG_GREATER = uint8(1 << 6) // Last compare was greater than.
	FLAG_HALT    = uint8(1 << 7) // Cpu has halted.
)

var _cpu_defines = map[string]string{
	"FLAG_EQUAL":     fmt.Sprintf("0x%x", FLAG_EQUAL),
	"FLAG_LESS":      fmt.Sprintf("0x%x", FLAG_LESS),
	"FLAG_GREATER":   fmt.Sprintf("0x%x", FLAG_GREATER),
	"FLAG_HALT":      fmt.Sprintf("0x%x", FLAG_HALT),
	"REGISTER_COUNT": fmt.Sprintf("%d", REGISTER_COUNT),
}

// Cpu is the simulation context of the vml virtual machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Pc       int                    // Program counter, a byte offset into Image.
	Flags    uint8                  // Condition and halt flags.
	Register [REGISTER_COUNT]uint64 // Register file.
	Stack    Stack[uint64]          // Operand stack.
	Return   Stack[uint32]          // Return address stack.
	Memory   *Memory                // Data memory.
	Image    []byte                 // Loaded program image, read only.

	Ticks int // Instructions executed.

	Console *io.Console   // Console for syscalls.
	Files   io.FileSystem // File access for syscalls.

	logger *zap.Logger
}

// Option configures a Cpu.
type Option func(cpu *Cpu)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cpu *Cpu) {
		cpu.logger = logger.Named("cpu")
	}
}

// WithMemorySize sets the data memory size in bytes.
func WithMemorySize(size int) Option {
	return func(cpu *Cpu) {
		cpu.Memory = NewMemory(size)
	}
}

// WithStackLimit sets the operand and return stack depth limits.
func WithStackLimit(operand int, ret int) Option {
	return func(cpu *Cpu) {
		cpu.Stack.Limit = operand
		cpu.Return.Limit = ret
	}
}

// WithConsole sets the console used by syscalls.
func WithConsole(console *io.Console) Option {
	return func(cpu *Cpu) {
		cpu.Console = console
	}
}

// WithFileSystem sets the file access used by syscalls.
func WithFileSystem(files io.FileSystem) Option {
	return func(cpu *Cpu) {
		cpu.Files = files
	}
}

// WithVerbose enables the per-instruction trace.
func WithVerbose(verbose bool) Option {
	return func(cpu *Cpu) {
		cpu.Verbose = verbose
	}
}

// NewCpu creates a new CPU.
func NewCpu(opts ...Option) (cpu *Cpu) {
	cpu = &Cpu{
		Stack:  Stack[uint64]{Limit: STACK_LIMIT},
		Return: Stack[uint32]{Limit: RETURN_LIMIT},
	}

	for _, opt := range opts {
		opt(cpu)
	}

	if cpu.logger == nil {
		cpu.logger = zap.L().Named("cpu")
	}
	if cpu.Memory == nil {
		cpu.Memory = NewMemory(MEMORY_SIZE)
	}
	if cpu.Console == nil {
		cpu.Console = &io.Console{Input: os.Stdin, Output: os.Stdout}
	}
	if cpu.Files == nil {
		cpu.Files = io.Dir("")
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	defines := maps.Clone(_cpu_defines)
	defines["MEMORY_SIZE"] = fmt.Sprintf("0x%x", cpu.Memory.Len())
	for call, name := range syscallNames {
		defines[name] = fmt.Sprintf("%d", call)
	}
	return maps.All(defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "   pc: %08x\n", cpu.Pc)
	fmt.Fprintf(&sb, "flags: %08b\n", cpu.Flags)
	for n, val := range cpu.Register {
		fmt.Fprintf(&sb, "% 5s: %08X_%08X\n", fmt.Sprintf("r%d", n), val>>32, val&0xffffffff)
	}
	if val, ok := cpu.Stack.Peek(); ok {
		fmt.Fprintf(&sb, "stack: %08X_%08X (%d)\n", val>>32, val&0xffffffff, cpu.Stack.Len())
	} else {
		fmt.Fprintf(&sb, "stack: --------_--------\n")
	}
	return sb.String()
}

// Load an image, and reset the CPU.
func (cpu *Cpu) Load(image []byte) {
	cpu.Image = image
	cpu.Reset()
}

// Reset the CPU state.
// - Clears the registers, flags, stacks, and data memory.
// - Zeros statistics counters.
// - Rewinds the console.
// - Sets the program counter to the start of the image.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		cpu.logger.Info("reset")
	}

	cpu.Pc = 0
	cpu.Flags = 0
	clear(cpu.Register[:])
	cpu.Stack.Reset()
	cpu.Return.Reset()
	cpu.Memory.Reset()
	cpu.Ticks = 0
	cpu.Console.Rewind()
}

// Halted returns true if the halt flag is set, or the program counter has
// run off the end of the image.
func (cpu *Cpu) Halted() bool {
	return (cpu.Flags&FLAG_HALT) != 0 || cpu.Pc >= len(cpu.Image)
}

// Fetch decodes the instruction at the program counter.
func (cpu *Cpu) Fetch() (inst Instruction, err error) {
	return Decode(cpu.Image, cpu.Pc)
}

// Tick executes a single instruction. ErrHalted is returned once the
// CPU has halted; any other error is an *ErrFault.
func (cpu *Cpu) Tick() (err error) {
	if cpu.Halted() {
		return ErrHalted
	}

	pc := cpu.Pc
	var inst Instruction
	defer func() {
		if err != nil {
			err = &ErrFault{Pc: pc, Opcode: inst.Opcode, Err: err}
			cpu.logger.Warn("fault",
				zap.Int("pc", pc),
				zap.Stringer("opcode", inst.Opcode),
				zap.Error(err))
		}
	}()

	inst, err = cpu.Fetch()
	if err != nil {
		if pc < len(cpu.Image) {
			inst.Opcode = Opcode(cpu.Image[pc])
		}
		return
	}

	err = cpu.Execute(inst)
	if err != nil {
		return
	}

	cpu.Ticks++
	return
}

// Run executes until the CPU halts or faults.
func (cpu *Cpu) Run() (err error) {
	for {
		err = cpu.Tick()
		if errors.Is(err, ErrHalted) {
			return nil
		}
		if err != nil {
			return
		}
	}
}

func toFloat(value uint64) float64 {
	return math.Float64frombits(value)
}

func fromFloat(value float64) uint64 {
	return math.Float64bits(value)
}

// compare sets the flags from an ordered comparison.
func compare[T int64 | uint64 | float64](cpu *Cpu, a, b T) {
	cpu.Flags &= FLAG_HALT
	switch {
	case a == b:
		cpu.Flags |= FLAG_EQUAL
	case a > b:
		cpu.Flags |= FLAG_GREATER
	case a < b:
		cpu.Flags |= FLAG_LESS
	}
}

var accessSize = map[Opcode]int{
	OP_LEI: 1, OP_LST: 2, OP_LTT: 4, OP_LSF: 8,
	OP_SEI: 1, OP_SST: 2, OP_STT: 4, OP_SSF: 8,
}

// Execute executes a single decoded instruction at the program counter.
func (cpu *Cpu) Execute(inst Instruction) (err error) {
	if cpu.Verbose {
		cpu.logger.Info("exec", zap.Int("pc", cpu.Pc), zap.Stringer("inst", inst))
	} else if ce := cpu.logger.Check(zapcore.DebugLevel, "exec"); ce != nil {
		ce.Write(zap.Int("pc", cpu.Pc), zap.Stringer("inst", inst))
	}

	r := &cpu.Register
	dst := inst.Dst
	src := inst.Src
	imm := inst.Immediate
	next := cpu.Pc + inst.Opcode.Width()

	switch inst.Opcode {
	case OP_MOV, OP_ADR:
		r[dst] = imm
	case OP_LDR:
		r[dst], err = cpu.Memory.Load(imm, 1)
	case OP_INDL:
		r[dst], err = cpu.Memory.Load(imm+r[src], 1)
	case OP_CPY:
		r[dst] = r[src]
	case OP_STR:
		err = cpu.Memory.Store(imm, 1, r[dst])
	case OP_INDS:
		err = cpu.Memory.Store(imm+r[src], 1, r[dst])
	case OP_PUSH:
		err = cpu.Stack.Push(r[dst])
	case OP_POP:
		var value uint64
		value, err = cpu.Stack.Pop()
		if err == nil {
			r[dst] = value
		}
	case OP_IADD:
		r[dst] += r[src]
	case OP_ISUB:
		r[dst] -= r[src]
	case OP_IMUL:
		r[dst] *= r[src]
	case OP_IDIV:
		if r[src] == 0 {
			err = ErrDivideByZero
			break
		}
		r[dst] /= r[src]
	case OP_DADD:
		r[dst] = fromFloat(toFloat(r[dst]) + toFloat(r[src]))
	case OP_DSUB:
		r[dst] = fromFloat(toFloat(r[dst]) - toFloat(r[src]))
	case OP_DMUL:
		r[dst] = fromFloat(toFloat(r[dst]) * toFloat(r[src]))
	case OP_DDIV:
		r[dst] = fromFloat(toFloat(r[dst]) / toFloat(r[src]))
	case OP_ICST:
		r[dst] = fromFloat(float64(int64(r[dst])))
	case OP_DCST:
		r[dst] = uint64(int64(toFloat(r[dst])))
	case OP_SHL:
		r[dst] <<= r[src]
	case OP_SHR:
		r[dst] >>= r[src]
	case OP_AND:
		r[dst] &= r[src]
	case OP_OR:
		r[dst] |= r[src]
	case OP_NEG:
		r[dst] = ^r[dst]
	case OP_ICMP:
		compare(cpu, r[dst], r[src])
	case OP_DCMP:
		compare(cpu, toFloat(r[dst]), toFloat(r[src]))
	case OP_JMP:
		next = int(imm)
	case OP_BEQ:
		if cpu.Flags&FLAG_EQUAL != 0 {
			next = int(imm)
		}
	case OP_BNE:
		if cpu.Flags&FLAG_EQUAL == 0 {
			next = int(imm)
		}
	case OP_BGT:
		if cpu.Flags&FLAG_GREATER != 0 {
			next = int(imm)
		}
	case OP_BLT:
		if cpu.Flags&FLAG_LESS != 0 {
			next = int(imm)
		}
	case OP_JSR:
		err = cpu.Return.Push(uint32(next))
		next = int(imm)
	case OP_RET:
		var addr uint32
		addr, err = cpu.Return.Pop()
		next = int(addr)
	case OP_SYS:
		err = cpu.Syscall(Syscall(imm))
	case OP_CALL:
		err = cpu.Syscall(Syscall(r[dst]))
	case OP_HALT:
		cpu.Flags |= FLAG_HALT
	case OP_LEI, OP_LST, OP_LTT, OP_LSF:
		r[dst], err = cpu.Memory.Load(r[src], accessSize[inst.Opcode])
	case OP_SEI, OP_SST, OP_STT, OP_SSF:
		err = cpu.Memory.Store(r[src], accessSize[inst.Opcode], r[dst])
	case OP_BUFC:
		var str []byte
		str, err = cstring(cpu.Image, true, r[dst])
		if err == nil {
			err = cpu.Memory.Write(r[src], append(str, 0))
		}
	case OP_BSEQ, OP_LSEQ:
		err = cpu.stringEqual(inst.Opcode == OP_LSEQ, r[dst], r[src])
	case OP_POW:
		r[dst] = fromFloat(math.Pow(toFloat(r[dst]), toFloat(r[src])))
	case OP_ROOT:
		r[dst] = fromFloat(math.Pow(toFloat(r[dst]), 1/toFloat(r[src])))
	default:
		err = ErrOpcodeUnknown(inst.Opcode)
	}

	if err != nil {
		return
	}

	cpu.Pc = next
	return
}

// stringEqual compares two zero terminated strings, in the image or in
// data memory, setting FLAG_EQUAL if they match.
func (cpu *Cpu) stringEqual(image bool, a, b uint64) (err error) {
	var str_a, str_b []byte
	if image {
		str_a, err = cstring(cpu.Image, true, a)
		if err == nil {
			str_b, err = cstring(cpu.Image, true, b)
		}
	} else {
		str_a, err = cpu.Memory.String(a)
		if err == nil {
			str_b, err = cpu.Memory.String(b)
		}
	}
	if err != nil {
		return
	}

	cpu.Flags &= FLAG_HALT
	if string(str_a) == string(str_b) {
		cpu.Flags |= FLAG_EQUAL
	}
	return
}
