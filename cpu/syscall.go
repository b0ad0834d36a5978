package cpu

import (
	"errors"
	"fmt"
	"strconv"
)

// Syscall is a host operation number.
type Syscall uint64

const (
	SYS_PRINT_INT    = Syscall(0) // Print unsigned integer.
	SYS_PRINT_STR    = Syscall(1) // Print image string.
	SYS_PRINT_BIN    = Syscall(2) // Print binary.
	SYS_PRINT_HEX    = Syscall(3) // Print hexadecimal.
	SYS_PRINT_BUF    = Syscall(4) // Print memory string.
	SYS_READ_LINE    = Syscall(5) // Read a line into memory.
	SYS_PRINT_FLOAT  = Syscall(6) // Print double.
	SYS_PRINT_SIGNED = Syscall(7) // Print signed integer.
	SYS_FILE_READ    = Syscall(8) // Read a file into memory.
	SYS_FILE_WRITE   = Syscall(9) // Write a memory string to a file.
)

var syscallNames = map[Syscall]string{
	SYS_PRINT_INT:    "SYS_PRINT_INT",
	SYS_PRINT_STR:    "SYS_PRINT_STR",
	SYS_PRINT_BIN:    "SYS_PRINT_BIN",
	SYS_PRINT_HEX:    "SYS_PRINT_HEX",
	SYS_PRINT_BUF:    "SYS_PRINT_BUF",
	SYS_READ_LINE:    "SYS_READ_LINE",
	SYS_PRINT_FLOAT:  "SYS_PRINT_FLOAT",
	SYS_PRINT_SIGNED: "SYS_PRINT_SIGNED",
	SYS_FILE_READ:    "SYS_FILE_READ",
	SYS_FILE_WRITE:   "SYS_FILE_WRITE",
}

func (call Syscall) String() string {
	name, ok := syscallNames[call]
	if !ok {
		return fmt.Sprintf("Syscall(%d)", uint64(call))
	}
	return name
}

// File name contexts for SYS_FILE_READ and SYS_FILE_WRITE.
const (
	CONTEXT_IMAGE  = 0 // File name is an image string.
	CONTEXT_MEMORY = 1 // File name is a memory string.
)

func (cpu *Cpu) print(text string) (err error) {
	_, err = cpu.Console.Write([]byte(text))
	if err != nil {
		err = errors.Join(ErrHostIO, err)
	}
	return
}

// Syscall performs a host operation. Arguments are popped from the
// operand stack.
func (cpu *Cpu) Syscall(call Syscall) (err error) {
	switch call {
	case SYS_PRINT_INT, SYS_PRINT_BIN, SYS_PRINT_HEX, SYS_PRINT_FLOAT, SYS_PRINT_SIGNED:
		var value uint64
		value, err = cpu.Stack.Pop()
		if err != nil {
			return
		}
		var text string
		switch call {
		case SYS_PRINT_INT:
			text = strconv.FormatUint(value, 10)
		case SYS_PRINT_BIN:
			text = fmt.Sprintf("0b%062b", value)
		case SYS_PRINT_HEX:
			text = fmt.Sprintf("0x%016x", value)
		case SYS_PRINT_FLOAT:
			text = strconv.FormatFloat(toFloat(value), 'f', -1, 64)
		case SYS_PRINT_SIGNED:
			text = strconv.FormatInt(int64(value), 10)
		}
		err = cpu.print(text)
	case SYS_PRINT_STR, SYS_PRINT_BUF:
		var addr uint64
		addr, err = cpu.Stack.Pop()
		if err != nil {
			return
		}
		var str []byte
		if call == SYS_PRINT_STR {
			str, err = cstring(cpu.Image, true, addr)
		} else {
			str, err = cpu.Memory.String(addr)
		}
		if err != nil {
			return
		}
		err = cpu.print(string(str))
	case SYS_READ_LINE:
		var buffer uint64
		buffer, err = cpu.Stack.Pop()
		if err != nil {
			return
		}
		var line []byte
		line, err = cpu.Console.ReadLine()
		if err != nil {
			err = errors.Join(ErrHostIO, err)
			return
		}
		err = cpu.Memory.Write(buffer, append(line, 0))
	case SYS_FILE_READ, SYS_FILE_WRITE:
		err = cpu.fileSyscall(call)
	default:
		err = ErrSyscallUnknown(call)
	}

	return
}

// fileSyscall pops the file name address, the buffer address, and the
// file name context, in that order.
func (cpu *Cpu) fileSyscall(call Syscall) (err error) {
	var args [3]uint64
	for n := range args {
		args[n], err = cpu.Stack.Pop()
		if err != nil {
			return
		}
	}
	name_addr, buffer, context := args[0], args[1], args[2]

	var name []byte
	switch context {
	case CONTEXT_IMAGE:
		name, err = cstring(cpu.Image, true, name_addr)
	case CONTEXT_MEMORY:
		name, err = cpu.Memory.String(name_addr)
	default:
		err = ErrSyscallUnknown(call)
	}
	if err != nil {
		return
	}

	switch call {
	case SYS_FILE_READ:
		var data []byte
		data, err = cpu.Files.ReadFile(string(name))
		if err != nil {
			err = errors.Join(ErrHostIO, err)
			return
		}
		err = cpu.Memory.Write(buffer, append(data, 0))
	case SYS_FILE_WRITE:
		var data []byte
		data, err = cpu.Memory.String(buffer)
		if err != nil {
			return
		}
		err = cpu.Files.WriteFile(string(name), data)
		if err != nil {
			err = errors.Join(ErrHostIO, err)
		}
	}

	return
}
