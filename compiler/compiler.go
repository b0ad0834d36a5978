package compiler

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ezrec/vml/internal"
)

// snippet is a fixed instruction sequence for a stack operator.
type snippet struct {
	args int
	code []string
}

var snippets = map[string]snippet{
	"+":       {2, []string{"pop r0", "pop r1", "iadd r0, r1", "push r0"}},
	"-":       {2, []string{"pop r1", "pop r0", "isub r0, r1", "push r0"}},
	"*":       {2, []string{"pop r0", "pop r1", "imul r0, r1", "push r0"}},
	"/":       {2, []string{"pop r1", "pop r0", "idiv r0, r1", "push r0"}},
	"d+":      {2, []string{"pop r0", "pop r1", "dadd r0, r1", "push r0"}},
	"d-":      {2, []string{"pop r1", "pop r0", "dsub r0, r1", "push r0"}},
	"d*":      {2, []string{"pop r0", "pop r1", "dmul r0, r1", "push r0"}},
	"d/":      {2, []string{"pop r1", "pop r0", "ddiv r0, r1", "push r0"}},
	"and":     {2, []string{"pop r1", "pop r0", "and r0, r1", "push r0"}},
	"or":      {2, []string{"pop r1", "pop r0", "or r0, r1", "push r0"}},
	"pow":     {2, []string{"pop r1", "pop r0", "pow r0, r1", "push r0"}},
	"root":    {2, []string{"pop r1", "pop r0", "root r0, r1", "push r0"}},
	"(int)":   {1, []string{"pop r0", "dcst r0", "push r0"}},
	"(float)": {1, []string{"pop r0", "icst r0", "push r0"}},
	"dup":     {1, []string{"pop r0", "push r0", "push r0"}},
	"swap":    {2, []string{"pop r0", "pop r1", "push r0", "push r1"}},
	"drop":    {1, []string{"pop r0"}},
	"rot":     {3, []string{"pop r0", "pop r1", "pop r2", "push r1", "push r0", "push r2"}},
	"@8":      {1, []string{"pop r1", "lei r0, r1", "push r0"}},
	"@16":     {1, []string{"pop r1", "lst r0, r1", "push r0"}},
	"@32":     {1, []string{"pop r1", "ltt r0, r1", "push r0"}},
	"@64":     {1, []string{"pop r1", "lsf r0, r1", "push r0"}},
	"!8":      {2, []string{"pop r0", "pop r1", "sei r0, r1"}},
	"!16":     {2, []string{"pop r0", "pop r1", "sst r0, r1"}},
	"!32":     {2, []string{"pop r0", "pop r1", "stt r0, r1"}},
	"!64":     {2, []string{"pop r0", "pop r1", "ssf r0, r1"}},
	"copy":    {2, []string{"pop r0", "pop r1", "bufc r0, r1"}},
	"syscall": {1, []string{"pop r0", "call r0"}},
	"return":  {0, []string{"ret"}},
}

// comparison pops two values and pushes 1 if the branch is taken, else 0.
type comparison struct {
	compare string
	branch  string
}

var comparisons = map[string]comparison{
	">":     {"icmp", "blt"},
	"<":     {"icmp", "bgt"},
	"=":     {"icmp", "beq"},
	"!=":    {"icmp", "bne"},
	"d>":    {"dcmp", "blt"},
	"d<":    {"dcmp", "bgt"},
	"d=":    {"dcmp", "beq"},
	"d!=":   {"dcmp", "bne"},
	"str=":  {"lseq", "beq"},
	"str!=": {"lseq", "bne"},
}

var keywords = map[string]bool{
	"not": true, "if": true, "while": true, "{": true, "}": true,
	"method": true, "let": true, "memory": true, "const": true,
	"start": true, "end": true,
}

var reName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func isReserved(name string) bool {
	_, snip := snippets[name]
	_, cmp := comparisons[name]
	return snip || cmp || keywords[name]
}

// constant is a named value declared with `let` or `memory`.
type constant struct {
	kind    Kind
	value   uint64
	text    string // Raw string contents.
	address bool   // Set for `memory` allocations.
}

// block is an open `if` or `while`.
type block struct {
	loop   bool
	label  string
	opened bool
}

// Compiler translates vml source into assembly text.
type Compiler struct {
	Verbose  bool               // If set, verbosely logs the compiler actions.
	Logger   *zap.Logger        // Logger to use. If nil, the global logger is used.
	Includes *internal.Includer // If set, `include "path"` lines are expanded before lexing.
}

func (cc *Compiler) logger() *zap.Logger {
	if cc.Logger == nil {
		return zap.L().Named("compiler")
	}
	return cc.Logger
}

// Compile reads source text and returns the assembly text.
func (cc *Compiler) Compile(input io.Reader) (text string, err error) {
	source, err := io.ReadAll(input)
	if err != nil {
		return
	}

	if cc.Includes != nil {
		source, err = cc.Includes.Expand(source)
		if err != nil {
			return
		}
	}

	tokens, err := Lex(source)
	if err != nil {
		return
	}

	return cc.Generate(tokens)
}

// generator holds the state of a single Generate call.
type generator struct {
	out     strings.Builder
	methods map[string]bool
	consts  map[string]*constant
	order   []string // Declaration order of string constants.
	strs    []string // String literals, by index.
	blocks  []block
	method  string // Current method, empty at global scope.
	depth   int    // Known operand stack depth, or -1 if unknown.
	loops   int
	labels  int
	memory  uint64
}

func (g *generator) emit(format string, args ...any) {
	g.out.WriteString("\t\t")
	fmt.Fprintf(&g.out, format, args...)
	g.out.WriteByte('\n')
}

// produce records a value pushed onto the operand stack.
func (g *generator) produce() {
	if g.depth >= 0 {
		g.depth++
	}
}

// consume checks that args values are on the operand stack, and replaces
// them with results. Nothing is checked while the depth is unknown.
func (g *generator) consume(args int, results int) error {
	if g.depth < 0 {
		return nil
	}
	if g.depth < args {
		return ErrArguments
	}
	g.depth += results - args
	return nil
}

// net is the change in operand stack depth made by a snippet.
func (snip snippet) net() (n int) {
	for _, line := range snip.code {
		switch {
		case strings.HasPrefix(line, "push "):
			n++
		case strings.HasPrefix(line, "pop "):
			n--
		}
	}
	return
}

func (g *generator) label(name string) {
	fmt.Fprintf(&g.out, ".%s:\n", name)
}

// declare collects method names and constants, so they may be used
// before their definitions.
func (g *generator) declare(tokens []Token) (err error) {
	define := func(tok Token) (name string, err error) {
		name = tok.Text
		if tok.Kind != KIND_WORD || !reName.MatchString(name) || isReserved(name) {
			return "", ErrNameInvalid
		}
		if g.methods[name] || g.consts[name] != nil {
			return "", ErrDefinitionDuplicate(name)
		}
		return
	}

	for n := 0; n < len(tokens); n++ {
		tok := tokens[n]
		if tok.Kind != KIND_WORD {
			continue
		}
		fail := func(e error) error {
			return &ErrSource{LineNo: tok.LineNo, Line: tok.Line, Err: e}
		}

		switch tok.Text {
		case "method":
			if n+1 >= len(tokens) || tokens[n+1].Text == "{" {
				return fail(ErrMethodName)
			}
			name, err := define(tokens[n+1])
			if err != nil {
				return fail(err)
			}
			g.methods[name] = true
			n++
		case "let", "memory":
			if n+3 >= len(tokens) || tokens[n+2].Kind != KIND_WORD || tokens[n+2].Text != "const" {
				if tok.Text == "let" {
					return fail(ErrLetMalformed)
				}
				return fail(ErrMemoryMalformed)
			}
			value := tokens[n+1]
			name, err := define(tokens[n+3])
			if err != nil {
				return fail(err)
			}
			c := &constant{kind: value.Kind, value: value.Value, text: value.Text}
			if tok.Text == "memory" {
				if value.Kind != KIND_INTEGER {
					return fail(ErrMemoryMalformed)
				}
				c.address = true
				c.value = g.memory
				g.memory += value.Value
			} else if value.Kind == KIND_WORD {
				return fail(ErrLetMalformed)
			} else if value.Kind == KIND_STRING {
				g.order = append(g.order, name)
			}
			g.consts[name] = c
			n += 3
		}
	}

	if !g.methods["main"] {
		return ErrMainMissing
	}

	return
}

// push emits code pushing a constant value.
func (g *generator) push(c *constant, name string) {
	switch {
	case c.address:
		g.emit("adr r0, 0x%x", c.value)
	case c.kind == KIND_STRING:
		g.emit("adr r0, ._var_%s", name)
	case c.kind == KIND_CHAR:
		g.emit("adr r0, 0x%x", c.value)
	default:
		g.emit("mov r0, $0x%x", c.value)
	}
	g.emit("push r0")
}

func (g *generator) compare(cmp comparison) {
	n := g.labels
	g.labels++
	g.emit("pop r0")
	g.emit("pop r1")
	g.emit("%s r0, r1", cmp.compare)
	g.emit("%s ._cmp%d", cmp.branch, n)
	g.emit("mov r0, $0x00")
	g.emit("jmp ._cmp%d_join", n)
	g.label(fmt.Sprintf("_cmp%d", n))
	g.emit("mov r0, $0x01")
	g.label(fmt.Sprintf("_cmp%d_join", n))
	g.emit("push r0")
}

// statement emits the code for a single token inside a method body.
func (g *generator) statement(tokens []Token, n int) (skip int, err error) {
	tok := tokens[n]

	switch tok.Kind {
	case KIND_INTEGER, KIND_DOUBLE:
		g.emit("mov r0, $0x%x", tok.Value)
		g.emit("push r0")
		g.produce()
		return
	case KIND_CHAR:
		g.emit("adr r0, 0x%x", tok.Value)
		g.emit("push r0")
		g.produce()
		return
	case KIND_STRING:
		g.emit("adr r0, ._str%d", len(g.strs))
		g.emit("push r0")
		g.produce()
		g.strs = append(g.strs, tok.Text)
		return
	}

	word := tok.Text
	if snip, ok := snippets[word]; ok {
		if err = g.consume(snip.args, snip.args+snip.net()); err != nil {
			return
		}
		for _, line := range snip.code {
			g.emit("%s", line)
		}
		if word == "syscall" {
			// Each syscall pops its own arguments.
			g.depth = -1
		}
		return
	}
	if cmp, ok := comparisons[word]; ok {
		if err = g.consume(2, 1); err != nil {
			return
		}
		g.compare(cmp)
		return
	}

	switch word {
	case "not":
		if err = g.consume(1, 1); err != nil {
			return
		}
		g.emit("mov r0, $0x00")
		g.emit("push r0")
		g.compare(comparisons["="])
	case "if", "while":
		b := block{loop: word == "while", label: fmt.Sprintf("_loop%d", g.loops)}
		g.loops++
		if b.loop {
			g.label(b.label)
		}
		g.blocks = append(g.blocks, b)
	case "{":
		if len(g.blocks) == 0 || g.blocks[len(g.blocks)-1].opened {
			return 0, ErrBraceUnbalanced
		}
		if err = g.consume(1, 0); err != nil {
			return
		}
		// The depth at the end of a block body depends on the branch taken.
		g.depth = -1
		b := &g.blocks[len(g.blocks)-1]
		b.opened = true
		g.emit("pop r0")
		g.emit("mov r1, $0x01")
		g.emit("icmp r0, r1")
		g.emit("bne .%s_end", b.label)
	case "}":
		if len(g.blocks) == 0 {
			g.emit("ret")
			g.method = ""
			return
		}
		b := g.blocks[len(g.blocks)-1]
		if !b.opened {
			return 0, ErrConditionMissing
		}
		if b.loop {
			g.emit("jmp .%s", b.label)
		}
		g.label(b.label + "_end")
		g.blocks = g.blocks[:len(g.blocks)-1]
	case "method":
		return 0, ErrMethodNested
	case "let", "memory":
		skip = 3
	default:
		if c, ok := g.consts[word]; ok {
			g.push(c, word)
			g.produce()
		} else if g.methods[word] {
			g.emit("jsr .%s", word)
			g.depth = -1
		} else {
			return 0, ErrDefinitionMissing
		}
	}

	return
}

// Generate translates source tokens into assembly text.
//
// The image starts with a jump to a trailer that calls `main`, then
// halts. Every method ends with `ret`. String data follows the methods.
func (cc *Compiler) Generate(tokens []Token) (text string, err error) {
	g := &generator{
		methods: map[string]bool{},
		consts:  map[string]*constant{},
	}

	err = g.declare(tokens)
	if err != nil {
		return
	}

	g.out.WriteString("; generated by the vml compiler\n\n")
	g.label("start")
	g.emit("jmp .end")

	for n := 0; n < len(tokens); n++ {
		tok := tokens[n]
		fail := func(e error) (string, error) {
			return "", &ErrSource{LineNo: tok.LineNo, Line: tok.Line, Err: e}
		}

		if len(g.method) == 0 {
			switch {
			case tok.Kind == KIND_WORD && tok.Text == "method":
				if n+2 >= len(tokens) || tokens[n+2].Text != "{" {
					return fail(ErrMethodName)
				}
				g.method = tokens[n+1].Text
				// Only main starts on a known, empty, operand stack.
				g.depth = -1
				if g.method == "main" {
					g.depth = 0
				}
				g.out.WriteByte('\n')
				g.label(g.method)
				n += 2
			case tok.Kind == KIND_WORD && (tok.Text == "let" || tok.Text == "memory"):
				n += 3
			case tok.Kind == KIND_WORD && tok.Text == "}":
				return fail(ErrBraceUnbalanced)
			default:
				return fail(ErrOutsideMethod)
			}
			continue
		}

		skip, err := g.statement(tokens, n)
		if err != nil {
			return fail(err)
		}
		n += skip
	}

	if len(g.method) != 0 {
		return "", &ErrSource{LineNo: tokens[len(tokens)-1].LineNo, Line: tokens[len(tokens)-1].Line, Err: ErrBraceUnbalanced}
	}

	g.out.WriteByte('\n')
	for n, str := range g.strs {
		fmt.Fprintf(&g.out, "._str%d: \"%s\"\n", n, str)
	}
	for _, name := range g.order {
		fmt.Fprintf(&g.out, "._var_%s: \"%s\"\n", name, g.consts[name].text)
	}

	g.label("end")
	g.emit("jsr .main")
	g.emit("halt")

	cc.log("generated %d methods, %d strings, %d bytes of memory", len(g.methods), len(g.strs)+len(g.order), g.memory)

	text = g.out.String()
	return
}

func (cc *Compiler) log(format string, args ...any) {
	if cc.Verbose {
		cc.logger().Info(fmt.Sprintf(format, args...))
	} else {
		cc.logger().Debug(fmt.Sprintf(format, args...))
	}
}
