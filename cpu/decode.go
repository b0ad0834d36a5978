package cpu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instruction is a decoded instruction.
type Instruction struct {
	Opcode    Opcode
	Dst       int    // Low nibble of the register descriptor.
	Src       int    // High nibble of the register descriptor.
	Immediate uint64 // Immediate operand, zero extended.
}

// Decode the instruction at pc in the image.
func Decode(image []byte, pc int) (inst Instruction, err error) {
	if pc < 0 || pc >= len(image) {
		err = ErrAddress{Image: true, Address: uint64(pc), Size: 1, Limit: len(image)}
		return
	}

	op := Opcode(image[pc])
	if _, ok := op.Info(); !ok {
		err = ErrOpcodeUnknown(op)
		return
	}

	width := op.Width()
	if pc+width > len(image) {
		err = ErrTruncated{Pc: pc, Opcode: op, Need: width, Have: len(image) - pc}
		return
	}

	desc := image[pc+1]
	inst = Instruction{
		Opcode: op,
		Dst:    int(desc & 0xf),
		Src:    int(desc >> 4),
	}

	switch width - 2 {
	case 4:
		inst.Immediate = uint64(binary.LittleEndian.Uint32(image[pc+2:]))
	case 8:
		inst.Immediate = binary.LittleEndian.Uint64(image[pc+2:])
	}

	return
}

// Encode the instruction to its byte form.
func (inst Instruction) Encode() (code []byte) {
	code = []byte{byte(inst.Opcode), 0}
	switch inst.Opcode.Registers() {
	case 1:
		code[1] = byte(inst.Dst & 0xf)
	case 2:
		code[1] = byte(inst.Dst&0xf) | byte(inst.Src&0xf)<<4
	}

	if kind, ok := inst.Opcode.Immediate(); ok {
		switch kind {
		case OPERAND_IMM32:
			code = binary.LittleEndian.AppendUint32(code, uint32(inst.Immediate))
		case OPERAND_IMM64:
			code = binary.LittleEndian.AppendUint64(code, inst.Immediate)
		}
	}

	return
}

// String returns the instruction as assembly text.
func (inst Instruction) String() string {
	info, ok := inst.Opcode.Info()
	if !ok {
		return inst.Opcode.String()
	}

	var args []string
	regs := 0
	for _, kind := range info.Operands {
		switch kind {
		case OPERAND_REG:
			reg := inst.Dst
			if regs > 0 {
				reg = inst.Src
			}
			regs++
			args = append(args, fmt.Sprintf("r%d", reg))
		case OPERAND_IMM32:
			args = append(args, fmt.Sprintf("U$0x%x", uint32(inst.Immediate)))
		case OPERAND_IMM64:
			args = append(args, fmt.Sprintf("$0x%x", inst.Immediate))
		}
	}

	if len(args) == 0 {
		return info.Mnemonic
	}

	return info.Mnemonic + " " + strings.Join(args, ", ")
}

// Disassemble an image into a sequence of instructions, stopping at the
// first undecodable byte.
func Disassemble(image []byte) (insts []Instruction, pcs []int, err error) {
	for pc := 0; pc < len(image); {
		var inst Instruction
		inst, err = Decode(image, pc)
		if err != nil {
			return
		}
		insts = append(insts, inst)
		pcs = append(pcs, pc)
		pc += inst.Opcode.Width()
	}
	return
}
