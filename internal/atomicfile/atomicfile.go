// Package atomicfile writes files through a temporary sibling that is renamed
// into place on commit, so readers never see a partial file.
package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDone is returned by writes after Commit or Abort.
var ErrDone = errors.New("atomicfile: file already committed or aborted")

// File is a pending replacement of path. Write to it, then Commit or Abort.
// Abort after a successful Commit is a no-op, so callers can defer it.
type File struct {
	path string
	tmp  *os.File
	done bool
}

// Create opens a temporary file next to path, creating the parent
// directories. perm applies to the final file; zero keeps the mode of an
// existing file and otherwise means 0644.
func Create(path string, perm os.FileMode) (*File, error) {
	if perm == 0 {
		perm = 0o644
		if st, err := os.Stat(path); err == nil {
			perm = st.Mode().Perm()
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	// Some filesystems refuse chmod.
	_ = tmp.Chmod(perm)
	return &File{path: path, tmp: tmp}, nil
}

// Name returns the final path.
func (f *File) Name() string { return f.path }

func (f *File) Write(p []byte) (int, error) {
	if f.done {
		return 0, ErrDone
	}
	return f.tmp.Write(p)
}

// WriteString implements io.StringWriter.
func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Commit flushes the temporary file and renames it over the final path.
func (f *File) Commit() error {
	if f.done {
		return ErrDone
	}
	f.done = true

	tmpPath := f.tmp.Name()
	if err := f.tmp.Sync(); err != nil {
		f.discard()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(f.path)
		if err2 := os.Rename(tmpPath, f.path); err2 != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("rename temp file: %w", err)
		}
	}
	return nil
}

// Abort drops the temporary file and leaves path untouched.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.discard()
}

func (f *File) discard() {
	_ = f.tmp.Close()
	_ = os.Remove(f.tmp.Name())
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := Create(path, perm)
	if err != nil {
		return err
	}
	defer f.Abort()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	return f.Commit()
}
