package stream

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Sentinel errors returned by stream operations.
//
// Callers should use [errors.Is] to check error categories. The underlying
// OS error stays in the chain, so errors.Is(err, os.ErrNotExist) also works:
//
//	in, err := stream.OpenInput(path, stream.Options{})
//	if errors.Is(err, stream.ErrNotFound) {
//	    // create it first
//	}
var (
	// ErrNotFound indicates the path does not exist (read) or cannot be
	// created or truncated (write).
	ErrNotFound = errors.New("stream: not found")

	// ErrInvalidArgument indicates a nil/invalid descriptor or handle, a
	// non-positive buffer size, or an unsupported option combination.
	//
	// This is a programming error.
	ErrInvalidArgument = errors.New("stream: invalid argument")

	// ErrOutOfBounds indicates offset/count do not fit the given slice.
	// No bytes are transferred when it is returned.
	ErrOutOfBounds = errors.New("stream: out of bounds")

	// ErrInvalidState indicates the handle cannot perform the operation in
	// its current state. See [ErrClosed] and [ErrMarkInvalid].
	ErrInvalidState = errors.New("stream: invalid state")

	// ErrClosed indicates the handle has already been closed.
	ErrClosed = fmt.Errorf("%w: closed", ErrInvalidState)

	// ErrMarkInvalid indicates Reset was called without a mark, or after
	// more than the mark's read limit was consumed.
	ErrMarkInvalid = fmt.Errorf("%w: mark invalid or not set", ErrInvalidState)

	// ErrIO indicates any other failure of the underlying file.
	ErrIO = errors.New("stream: i/o failure")

	// ErrBusy indicates [Options.Lock] could not acquire the advisory lock
	// because another handle holds it.
	//
	// Recovery: retry after the other holder closes.
	ErrBusy = errors.New("stream: busy")
)

// classifyOpen maps an error from opening path to a stream sentinel.
// Missing paths, directories, and permission failures are all reported as
// [ErrNotFound]: the file is not available in the requested mode.
func classifyOpen(op, path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %s %q: %w", ErrNotFound, op, path, err)
	case errors.Is(err, os.ErrInvalid):
		return fmt.Errorf("%w: %s %q: %w", ErrInvalidArgument, op, path, err)
	default:
		return fmt.Errorf("%w: %s %q: %w", ErrIO, op, path, err)
	}
}

// classifyIO maps an error from an operation on an open file.
// io.EOF must be filtered out by the caller before this is reached.
func classifyIO(op, name string, err error) error {
	if errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %s %q: %w", ErrClosed, op, name, err)
	}

	return fmt.Errorf("%w: %s %q: %w", ErrIO, op, name, err)
}

// checkBounds validates an (offset, count) window into a slice of length n.
func checkBounds(n, off, count int) error {
	if off < 0 || count < 0 || off > n || count > n-off {
		return fmt.Errorf("%w: offset=%d count=%d length=%d", ErrOutOfBounds, off, count, n)
	}

	return nil
}
