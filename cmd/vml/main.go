// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"bufio"
	"bytes"
	"cmp"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ezrec/vml/compiler"
	"github.com/ezrec/vml/cpu"
	"github.com/ezrec/vml/emulator"
	"github.com/ezrec/vml/internal"
	"github.com/ezrec/vml/translate"
)

var f = translate.From

var (
	ErrUsage  = errors.New(f("exactly one of -c, -a, -r or -d is required"))
	ErrDefine = errors.New(f("define must be NAME=VALUE with an integer VALUE"))
	ErrColor  = errors.New(f("color must be one of auto, always or never"))
)

// defines collects repeated -D NAME=VALUE flags.
type defines map[string]string

func (d defines) String() string {
	var list []string
	for name, value := range d {
		list = append(list, name+"="+value)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}

func (d defines) Set(text string) error {
	name, value, ok := strings.Cut(text, "=")
	if !ok || len(name) == 0 {
		return ErrDefine
	}
	if _, err := strconv.ParseInt(value, 0, 64); err != nil {
		return ErrDefine
	}
	d[name] = value
	return nil
}

// options is the parsed command line.
type options struct {
	compile     string
	assemble    string
	run         string
	disassemble string
	output      string
	listing     string
	color       string
	lang        string
	verbose     bool
	defines     defines

	usage func()
}

// input returns the file named by the selected mode.
func (opt *options) input() string {
	return cmp.Or(opt.compile, opt.assemble, opt.run, opt.disassemble)
}

func parseArgs(args []string, stderr io.Writer) (opt *options, err error) {
	opt = &options{defines: defines{}}

	flags := flag.NewFlagSet("vml", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opt.compile, "c", "", ".vml source file to compile")
	flags.StringVar(&opt.assemble, "a", "", ".asm file to assemble")
	flags.StringVar(&opt.run, "r", "", "image file to run")
	flags.StringVar(&opt.disassemble, "d", "", "image file to disassemble")
	flags.StringVar(&opt.output, "o", "out.bin", "Image output")
	flags.StringVar(&opt.listing, "S", "", "Save generated assembly (with -c)")
	flags.StringVar(&opt.color, "color", "auto", "Colorize errors: auto, always or never")
	flags.StringVar(&opt.lang, "lang", "", "Message language, overriding the host locale")
	flags.BoolVar(&opt.verbose, "v", false, "Verbose mode")
	flags.Var(opt.defines, "D", "Predefine NAME=VALUE for $(...) expressions (repeatable)")
	opt.usage = flags.Usage

	err = flags.Parse(args)
	if err != nil {
		return
	}

	if flags.NArg() != 0 {
		err = errors.New(f("unknown arguments: %v", flags.Args()))
		flags.Usage()
		return
	}

	modes := 0
	for _, mode := range []string{opt.compile, opt.assemble, opt.run, opt.disassemble} {
		if len(mode) != 0 {
			modes++
		}
	}
	if modes != 1 {
		err = ErrUsage
		flags.Usage()
		return
	}

	switch opt.color {
	case "auto", "always", "never":
	default:
		err = ErrColor
		flags.Usage()
		return
	}

	if len(opt.lang) != 0 {
		err = translate.SetLanguage(opt.lang)
		if err != nil {
			flags.Usage()
			return
		}
	}

	return
}

func newLogger(verbose bool) (logger *zap.Logger, err error) {
	if verbose {
		return zap.NewDevelopment()
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return config.Build()
}

// cli is one invocation of the tool.
type cli struct {
	*options
	stdin  io.Reader
	stdout io.Writer
	report *reporter
	logger *zap.Logger
}

func (c *cli) emulator() *emulator.Emulator {
	return emulator.NewEmulator(
		emulator.WithLogger(c.logger),
		emulator.WithVerbose(c.verbose),
	)
}

func (c *cli) assembler() *cpu.Assembler {
	asm := c.emulator().Assembler()
	for name, value := range c.defines {
		asm.Predefine(name, value)
	}
	return asm
}

func (c *cli) writeImage(prog *cpu.Program) (err error) {
	ouf, err := os.Create(c.output)
	if err != nil {
		return
	}
	defer func() {
		close_err := ouf.Close()
		if err == nil {
			err = close_err
		}
	}()

	_, err = prog.WriteTo(ouf)
	if err != nil {
		return
	}

	fmt.Fprintln(c.stdout, f("Finished compilation: %.2fKB (ALL OK).", float64(len(prog.Image))/1024.0))
	return
}

// expand resolves include directives up front, so that reported line
// numbers match the text the reporter was given.
func (c *cli) expand(text []byte) (out []byte, err error) {
	inc := &internal.Includer{}
	out, err = inc.Expand(text)
	if err != nil {
		return
	}
	c.report.Source(string(out))
	return
}

func (c *cli) doAssemble(text []byte) (err error) {
	text, err = c.expand(text)
	if err != nil {
		return
	}

	prog, err := c.assembler().ParseString(string(text))
	if err != nil {
		return
	}

	return c.writeImage(prog)
}

func (c *cli) doCompile() (err error) {
	source, err := os.ReadFile(c.compile)
	if err != nil {
		return
	}
	source, err = c.expand(source)
	if err != nil {
		return
	}

	cc := &compiler.Compiler{
		Verbose: c.verbose,
		Logger:  c.logger.Named("compiler"),
	}
	text, err := cc.Compile(bytes.NewReader(source))
	if err != nil {
		return
	}

	if len(c.listing) != 0 {
		err = os.WriteFile(c.listing, []byte(text), 0o644)
		if err != nil {
			return
		}
	}

	return c.doAssemble([]byte(text))
}

func (c *cli) doRun() (err error) {
	image, err := os.ReadFile(c.run)
	if err != nil {
		return
	}

	emu := c.emulator()
	emu.Console.Input = c.stdin
	emu.Console.Output = c.stdout
	emu.Load(image)
	emu.Reset()

	return emu.Run()
}

func (c *cli) doDisassemble() (err error) {
	image, err := os.ReadFile(c.disassemble)
	if err != nil {
		return
	}

	// Undecodable bytes are listed as data, one at a time.
	for pc := 0; pc < len(image); {
		inst, derr := cpu.Decode(image, pc)
		if derr != nil {
			if ch := image[pc]; ch >= ' ' && ch < 0x7f {
				fmt.Fprintf(c.stdout, "%08x: ; 0x%02x '%s'\n", pc, ch, cpu.Escape(image[pc:pc+1]))
			} else {
				fmt.Fprintf(c.stdout, "%08x: ; 0x%02x\n", pc, ch)
			}
			pc++
			continue
		}
		fmt.Fprintf(c.stdout, "%08x: %v\n", pc, inst)
		pc += inst.Opcode.Width()
	}

	return
}

func (c *cli) Run() (err error) {
	switch {
	case len(c.compile) != 0:
		err = c.doCompile()
	case len(c.assemble) != 0:
		var text []byte
		text, err = os.ReadFile(c.assemble)
		if err == nil {
			err = c.doAssemble(text)
		}
	case len(c.run) != 0:
		err = c.doRun()
	case len(c.disassemble) != 0:
		err = c.doDisassemble()
	}
	return
}

// run executes the command line, returning the process exit status.
func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	opt, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "vml: %v\n", err)
		return 2
	}

	logger, err := newLogger(opt.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "vml: %v\n", err)
		return 1
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	c := &cli{
		options: opt,
		stdin:   stdin,
		stdout:  out,
		report:  newReporter(stderr, opt.color),
		logger:  logger,
	}

	err = c.Run()
	if err != nil {
		out.Flush()
		c.report.Report(err)
		var path_err *fs.PathError
		if errors.As(err, &path_err) && path_err.Path == opt.input() {
			opt.usage()
		}
		return 1
	}

	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
