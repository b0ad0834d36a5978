// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"

	"go.uber.org/zap"

	"github.com/ezrec/vml/cpu"
	"github.com/ezrec/vml/internal"
	"github.com/ezrec/vml/io"
)

var _emulator_defines = map[string]string{
	"STACK_LIMIT":  fmt.Sprintf("%v", cpu.STACK_LIMIT),
	"RETURN_LIMIT": fmt.Sprintf("%v", cpu.RETURN_LIMIT),
}

// Emulator state. CPU + console + file access.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.

	Console io.Console    // Console for the running program.
	Files   io.FileSystem // File access for the running program.

	logger  *zap.Logger
	cpuOpts []cpu.Option
}

// Option configures an Emulator.
type Option func(emu *Emulator)

// WithLogger sets the logger of the emulator and its CPU.
func WithLogger(logger *zap.Logger) Option {
	return func(emu *Emulator) {
		emu.logger = logger
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(emu *Emulator) {
		emu.Verbose = verbose
	}
}

// WithFileSystem sets the file access of the running program.
func WithFileSystem(files io.FileSystem) Option {
	return func(emu *Emulator) {
		emu.Files = files
	}
}

// WithCpuOptions passes options through to the CPU.
func WithCpuOptions(opts ...cpu.Option) Option {
	return func(emu *Emulator) {
		emu.cpuOpts = append(emu.cpuOpts, opts...)
	}
}

// NewEmulator creates a new emulator, with the console attached to the
// process standard input and output.
func NewEmulator(opts ...Option) (emu *Emulator) {
	emu = &Emulator{
		Program: &cpu.Program{},
		Console: io.Console{Input: os.Stdin, Output: os.Stdout},
		Files:   io.Dir(""),
		logger:  zap.L(),
	}

	for _, opt := range opts {
		opt(emu)
	}

	cpuOpts := append([]cpu.Option{
		cpu.WithLogger(emu.logger),
		cpu.WithConsole(&emu.Console),
		cpu.WithFileSystem(emu.Files),
		cpu.WithVerbose(emu.Verbose),
	}, emu.cpuOpts...)
	emu.Cpu = cpu.NewCpu(cpuOpts...)
	emu.logger = emu.logger.Named("emulator")

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Assembler returns an assembler with the emulator defines predefined.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{
		Verbose: emu.Verbose,
		Logger:  emu.logger.Named("asm"),
	}
	for key, value := range emu.Defines() {
		asm.Predefine(key, value)
	}
	return
}

// Load a raw image, without debug information.
func (emu *Emulator) Load(image []byte) {
	emu.Program = &cpu.Program{Image: image}
}

// Close the emulator, flushing console output.
func (emu *Emulator) Close() (err error) {
	return emu.Console.Flush()
}

// Reset the emulator, and load the program into the CPU.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Load(emu.Program.Image)

	if emu.Verbose {
		emu.logger.Info("reset", zap.Int("image", len(emu.Program.Image)))
	}
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// LineNo returns the current line number for the executing instruction.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Line == nil {
		return 0
	}
	return dbg.LineNo
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if errors.Is(err, cpu.ErrHalted) {
		err = nil
		done = true
		return
	}

	return
}

// Run ticks the emulator until the program halts or faults.
func (emu *Emulator) Run() (err error) {
	defer func() {
		flush_err := emu.Console.Flush()
		if err == nil {
			err = flush_err
		}
	}()

	for {
		var done bool
		done, err = emu.Tick()
		if err != nil || done {
			return
		}
	}
}
