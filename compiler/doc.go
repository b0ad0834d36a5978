// Package compiler translates vml source, a small stack language, into
// assembly text for the cpu package assembler.
//
// Source is a sequence of whitespace separated words. Literals push a
// value; operators pop their arguments and push their result. Methods are
// declared with `method name { ... }` and called by name. Control flow is
// `if cond { ... }` and `while cond { ... }`, where cond leaves 1 (true) or
// any other value (false) on the stack. Constants are declared with
// `let <value> const <name>`, and data memory with `memory <size> const <name>`.
package compiler
