package io

import (
	"bufio"
	"bytes"
	"io"
)

// Console is the line oriented terminal of a running program.
type Console struct {
	Input  io.Reader
	Output io.Writer

	reader *bufio.Reader
}

// Write to the console output. Console output is unbuffered unless
// Output itself buffers.
func (con *Console) Write(data []byte) (n int, err error) {
	if con.Output == nil {
		return len(data), nil
	}
	return con.Output.Write(data)
}

// Flush any pending output, if Output supports it.
func (con *Console) Flush() (err error) {
	if flusher, ok := con.Output.(interface{ Flush() error }); ok {
		err = flusher.Flush()
	}
	return
}

// ReadLine reads a line of input, without the line terminator.
// Output is flushed first, so prompts are visible.
func (con *Console) ReadLine() (line []byte, err error) {
	err = con.Flush()
	if err != nil {
		return
	}

	if con.Input == nil {
		err = ErrInputClosed
		return
	}

	if con.reader == nil {
		con.reader = bufio.NewReader(con.Input)
	}

	line, err = con.reader.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		err = nil
	} else if err == io.EOF {
		err = ErrInputClosed
		return
	}
	if err != nil {
		return
	}

	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return
}

// Rewind discards any buffered input.
func (con *Console) Rewind() {
	con.reader = nil
}
