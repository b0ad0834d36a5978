package io

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSystem is the host file access available to syscalls.
type FileSystem interface {
	// ReadFile returns the whole contents of a file.
	ReadFile(name string) (data []byte, err error)
	// WriteFile replaces the contents of a file.
	WriteFile(name string, data []byte) (err error)
}

// Dir is a FileSystem rooted at a host directory. Relative names resolve
// against it; the empty Dir is the working directory.
type Dir string

func (dir Dir) path(name string) string {
	if len(dir) == 0 || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(string(dir), name)
}

func (dir Dir) ReadFile(name string) (data []byte, err error) {
	data, err = os.ReadFile(dir.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		err = errors.Join(ErrFileMissing, err)
	}
	return
}

func (dir Dir) WriteFile(name string, data []byte) (err error) {
	return os.WriteFile(dir.path(name), data, 0o644)
}

// MemoryFS is an in-memory FileSystem.
type MemoryFS struct {
	mutex sync.Mutex
	Files map[string][]byte
}

func (mfs *MemoryFS) ReadFile(name string) (data []byte, err error) {
	mfs.mutex.Lock()
	defer mfs.mutex.Unlock()

	content, ok := mfs.Files[name]
	if !ok {
		err = ErrFileMissing
		return
	}
	data = append([]byte(nil), content...)
	return
}

func (mfs *MemoryFS) WriteFile(name string, data []byte) (err error) {
	mfs.mutex.Lock()
	defer mfs.mutex.Unlock()

	if mfs.Files == nil {
		mfs.Files = map[string][]byte{}
	}
	mfs.Files[name] = append([]byte(nil), data...)
	return
}
