// Package cpu implements the virtual machine and assembler for the vml system.
//
// The CPU has sixteen 64-bit general-purpose registers (r0-r15), a flags
// byte set by compares, an operand stack, a return address stack, and a
// flat byte addressed data memory. Programs execute from a read only image
// of variable width instructions: an opcode byte, a register descriptor
// byte, and an optional 4 or 8 byte little endian immediate.
//
// The assembler is two pass. The first pass lowers tokens to image bytes,
// leaving placeholders for label uses; the second fills them in. Immediate
// operands may be computed at assembly time with $(...) expressions.
// `sys rN` assembles as `call rN`, the register form of `sys`.
//
// The string compares are named for where their operands live: bseq (0x2d)
// compares zero terminated strings in data memory, and lseq (0x2e) compares
// strings in the image. Some opcode listings pair 0x2d/0x2e with the names
// lseq/bseq; the byte semantics are the same either way.
package cpu
