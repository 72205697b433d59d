package fs

import (
	"os"

	"github.com/natefinch/atomic"
)

// Real implements [FS] using the real filesystem.
//
// All methods are pure passthroughs to the [os] package with identical
// behavior and error semantics. The only exceptions are [Real.Exists] which
// wraps [os.Stat], [Real.NewFile] which reports invalid descriptors as
// errors, and [Real.Replace] which uses an atomic rename.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// --- File Operations ---

// A passthrough wrapper for [os.Open].
func (r *Real) Open(path string) (File, error) {
	return os.Open(path)
}

// A passthrough wrapper for [os.OpenFile].
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// NewFile wraps fd with [os.NewFile]. os.NewFile returns a nil *os.File for
// invalid descriptors, which must not leak out as a non-nil [File].
func (r *Real) NewFile(fd uintptr, name string) (File, error) {
	f := os.NewFile(fd, name)
	if f == nil {
		return nil, &os.PathError{Op: "newfile", Path: name, Err: os.ErrInvalid}
	}

	return f, nil
}

// A passthrough wrapper for [os.CreateTemp].
func (r *Real) CreateTemp(dir, pattern string) (File, error) {
	return os.CreateTemp(dir, pattern)
}

// --- Metadata ---

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists checks if a file exists using [os.Stat].
// Returns (true, nil) if the file exists, (false, nil) if it does not,
// or (false, err) for other errors.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

func (r *Real) Replace(src, dst string) error {
	return atomic.ReplaceFile(src, dst)
}

// Compile-time interface checks.
var _ FS = (*Real)(nil)
