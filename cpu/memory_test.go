package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	assert := assert.New(t)

	mem := NewMemory(16)
	assert.Equal(16, mem.Len())

	assert.NoError(mem.Store(8, 8, 0x0102030405060708))
	value, err := mem.Load(8, 2)
	assert.NoError(err)
	assert.Equal(uint64(0x0708), value)

	err = mem.Store(9, 8, 0)
	assert.ErrorIs(err, ErrBounds)
	var addr ErrAddress
	if assert.ErrorAs(err, &addr) {
		assert.False(addr.Image)
		assert.Equal(uint64(9), addr.Address)
		assert.Equal(8, addr.Size)
	}

	_, err = mem.Load(0xffffffffffffffff, 2)
	assert.ErrorIs(err, ErrBounds)

	assert.NoError(mem.Write(0, []byte("hi\x00")))
	str, err := mem.String(0)
	assert.NoError(err)
	assert.Equal("hi", string(str))

	// No terminator before the end of memory.
	assert.NoError(mem.Write(12, []byte("abcd")))
	_, err = mem.String(12)
	assert.ErrorIs(err, ErrBounds)

	mem.Reset()
	value, err = mem.Load(8, 8)
	assert.NoError(err)
	assert.Zero(value)
}

func TestEscape(t *testing.T) {
	assert := assert.New(t)

	data, err := Unescape(`a\n\t\v\"\r\f\b\a\e\'\\z`)
	assert.NoError(err)
	assert.Equal([]byte{'a', 0x0a, 0x09, 0x0b, 0x22, 0x0d, 0x0c, 0x08, 0x07, 0x1b, 0x27, 0x5c, 'z'}, data)

	assert.Equal(`a\n\"\\`, Escape([]byte("a\n\"\\")))

	_, err = Unescape(`\x`)
	assert.ErrorIs(err, ErrEscapeUnknown)
	_, err = Unescape(`trailing\`)
	assert.ErrorIs(err, ErrEscapeUnknown)
}

func TestMemoryAllocation(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.Equal(MEMORY_SIZE, cpu.Memory.Len())
	for range cpu.Defines() {
	}
	assert.Nil(cpu.Memory.data)

	mem := NewMemory(32)
	mem.Reset()
	assert.Nil(mem.data)
	value, err := mem.Load(24, 8)
	assert.NoError(err)
	assert.Zero(value)
	assert.Len(mem.data, 32)
}
