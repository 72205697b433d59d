// Package fs provides the filesystem abstraction file streams are opened through.
//
// The main types are:
//   - [FS]: interface for the filesystem operations streams need
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random failures
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.Open("data.bin")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	n, err := f.Read(buf)
package fs

import (
	"io"
	"os"
)

// File represents an open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
type File interface {
	// Embedded interfaces from [io] package.
	// These provide Read, Write, Close, and Seek methods.
	io.ReadWriteCloser
	io.Seeker

	// Name returns the name the file was opened with. See [os.File.Name].
	Name() string

	// Fd returns the file descriptor. See [os.File.Fd].
	// Used for low-level operations like flock and FIONREAD.
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Truncate changes the size of the file. See [os.File.Truncate].
	Truncate(size int64) error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations used to open and publish streams.
//
// Two implementations are provided:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects random failures
type FS interface {
	// --- File Operations ---

	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	//
	// Common flags: [os.O_RDONLY], [os.O_WRONLY], [os.O_APPEND],
	// [os.O_CREATE], [os.O_TRUNC].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// NewFile wraps an existing descriptor. See [os.NewFile].
	// Returns [os.ErrInvalid] if fd is not a valid descriptor.
	NewFile(fd uintptr, name string) (File, error)

	// CreateTemp creates a new temporary file in dir. See [os.CreateTemp].
	CreateTemp(dir, pattern string) (File, error)

	// --- Metadata ---

	// Stat returns file info. See [os.Stat].
	// Returns [os.ErrNotExist] if file doesn't exist.
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// --- Mutations ---

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Replace atomically moves src over dst. Both must be on the same
	// filesystem.
	Replace(src, dst string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
