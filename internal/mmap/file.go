package mmap

import (
	"errors"
	"fmt"
	"os"
)

// File is a read-write shared mapping of a file that can grow.
//
// Writes to Bytes go straight to the page cache and reach the file on Sync
// or when the kernel writes the pages back.
type File struct {
	f     *os.File
	data  []byte
	unmap func([]byte) error
}

// CreateFile creates (or truncates) the file at path, sizes it to size bytes
// and maps it read-write.
func CreateFile(path string, size int) (*File, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	mf := &File{f: f}
	if err := mf.resize(size); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return mf, nil
}

// Bytes returns the mapped bytes. The slice is invalidated by Grow, Truncate
// and Close.
func (m *File) Bytes() []byte {
	return m.data
}

// Size returns the current mapped size.
func (m *File) Size() int {
	return len(m.data)
}

// Name returns the path of the underlying file.
func (m *File) Name() string {
	if m.f == nil {
		return ""
	}
	return m.f.Name()
}

// Grow extends the file and remaps it. Existing contents are preserved.
func (m *File) Grow(size int) error {
	if m.f == nil {
		return ErrClosed
	}
	if size <= len(m.data) {
		return nil
	}
	return m.resize(size)
}

// Truncate shrinks or extends the file to exactly size bytes and remaps it.
func (m *File) Truncate(size int) error {
	if m.f == nil {
		return ErrClosed
	}
	if size <= 0 {
		return ErrInvalidSize
	}
	if size == len(m.data) {
		return nil
	}
	return m.resize(size)
}

// Sync flushes dirty pages to the file.
func (m *File) Sync() error {
	if m.f == nil {
		return ErrClosed
	}
	if len(m.data) > 0 {
		if err := osSync(m.data); err != nil {
			return fmt.Errorf("mmap: sync: %w", err)
		}
	}
	return m.f.Sync()
}

// Close unmaps the memory and closes the file. It is idempotent.
func (m *File) Close() error {
	if m.f == nil {
		return nil
	}
	var errs []error
	if err := m.release(); err != nil {
		errs = append(errs, err)
	}
	if err := m.f.Close(); err != nil {
		errs = append(errs, err)
	}
	m.f = nil
	return errors.Join(errs...)
}

func (m *File) release() error {
	if m.data == nil {
		return nil
	}
	err := m.unmap(m.data)
	m.data = nil
	m.unmap = nil
	return err
}

func (m *File) resize(size int) error {
	if err := m.release(); err != nil {
		return fmt.Errorf("mmap: unmap: %w", err)
	}
	if err := m.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("mmap: truncate to %d bytes: %w", size, err)
	}
	data, unmap, err := osMapRW(m.f, size)
	if err != nil {
		return fmt.Errorf("mmap: map %d bytes: %w", size, err)
	}
	m.data = data
	m.unmap = unmap
	return nil
}
