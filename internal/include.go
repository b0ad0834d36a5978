package internal

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/ezrec/vml/translate"
)

var f = translate.From

var ErrIncludeSyntax = errors.New(f("include must take the form: include \"<filename>\""))

// ErrInclude locates a failed include directive.
type ErrInclude struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrInclude) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrInclude) Unwrap() error {
	return err.Err
}

// Includer textually expands `include "path"` lines.
// Each path is expanded at most once per Expand call; later includes of
// the same path expand to nothing.
type Includer struct {
	FS fs.FS // Filesystem for included files. If nil, the host filesystem is used.
}

func (inc *Includer) readFile(name string) ([]byte, error) {
	if inc.FS == nil {
		return os.ReadFile(name)
	}
	return fs.ReadFile(inc.FS, name)
}

// Directive parses an include line, returning the path named.
// ok is false if the line is not an include directive at all.
func Directive(line string) (path string, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "include" {
		return
	}
	ok = true

	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "include"))
	if !strings.HasPrefix(rest, `"`) {
		err = ErrIncludeSyntax
		return
	}
	end := strings.Index(rest[1:], `"`)
	if end < 0 {
		err = ErrIncludeSyntax
		return
	}
	path = rest[1 : end+1]
	trailer := strings.TrimSpace(rest[end+2:])
	if len(path) == 0 || !(len(trailer) == 0 || strings.HasPrefix(trailer, ";") || strings.HasPrefix(trailer, "//")) {
		err = ErrIncludeSyntax
	}
	return
}

// Expand returns text with every include directive replaced by the
// (recursively expanded) contents of the named file.
func (inc *Includer) Expand(text []byte) (out []byte, err error) {
	seen := map[string]bool{}
	return inc.expand(text, seen)
}

func (inc *Includer) expand(text []byte, seen map[string]bool) (out []byte, err error) {
	var buf bytes.Buffer

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 4096), max(len(text)+1, bufio.MaxScanTokenSize))

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		path, ok, err := Directive(line)
		if err != nil {
			return nil, &ErrInclude{LineNo: lineNo, Line: line, Err: err}
		}
		if !ok {
			buf.WriteString(line)
			buf.WriteByte('\n')
			continue
		}

		if seen[path] {
			continue
		}
		seen[path] = true

		data, err := inc.readFile(path)
		if err != nil {
			return nil, &ErrInclude{LineNo: lineNo, Line: line, Err: err}
		}

		data, err = inc.expand(data, seen)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	out = buf.Bytes()
	return
}
