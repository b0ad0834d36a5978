package cpu

import (
	"bytes"
)

const (
	MEMORY_SIZE = 128 << 20 // Default data memory size in bytes
)

// Memory is a flat, byte addressed, bounds checked data memory.
// Storage is allocated on first access.
type Memory struct {
	size int
	data []byte
}

// NewMemory creates a zeroed memory of size bytes.
func NewMemory(size int) (mem *Memory) {
	mem = &Memory{
		size: size,
	}
	return
}

func (mem *Memory) bytes() []byte {
	if mem.data == nil && mem.size > 0 {
		mem.data = make([]byte, mem.size)
	}
	return mem.data
}

// Len returns the size of the memory in bytes.
func (mem *Memory) Len() int {
	return mem.size
}

// Reset zeros the memory.
func (mem *Memory) Reset() {
	clear(mem.data)
}

func checkRange(data []byte, image bool, addr uint64, size int) (err error) {
	if addr > uint64(len(data)) || uint64(size) > uint64(len(data))-addr {
		err = ErrAddress{Image: image, Address: addr, Size: size, Limit: len(data)}
	}
	return
}

// Load a little endian value of size bytes.
func (mem *Memory) Load(addr uint64, size int) (value uint64, err error) {
	data := mem.bytes()
	err = checkRange(data, false, addr, size)
	if err != nil {
		return
	}
	for n := size - 1; n >= 0; n-- {
		value = (value << 8) | uint64(data[addr+uint64(n)])
	}
	return
}

// Store a little endian value of size bytes.
func (mem *Memory) Store(addr uint64, size int, value uint64) (err error) {
	data := mem.bytes()
	err = checkRange(data, false, addr, size)
	if err != nil {
		return
	}
	for n := 0; n < size; n++ {
		data[addr+uint64(n)] = byte(value)
		value >>= 8
	}
	return
}

// Write a block of bytes.
func (mem *Memory) Write(addr uint64, data []byte) (err error) {
	mem_data := mem.bytes()
	err = checkRange(mem_data, false, addr, len(data))
	if err != nil {
		return
	}
	copy(mem_data[addr:], data)
	return
}

// String returns the zero terminated string at addr, without the terminator.
func (mem *Memory) String(addr uint64) (str []byte, err error) {
	return cstring(mem.bytes(), false, addr)
}

// cstring returns the zero terminated string at addr. A string that runs
// off the end of data is a bounds fault.
func cstring(data []byte, image bool, addr uint64) (str []byte, err error) {
	err = checkRange(data, image, addr, 1)
	if err != nil {
		return
	}
	end := bytes.IndexByte(data[addr:], 0)
	if end < 0 {
		err = ErrAddress{Image: image, Address: addr, Size: len(data) - int(addr) + 1, Limit: len(data)}
		return
	}
	str = data[addr : addr+uint64(end)]
	return
}
