package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/calvinalkan/fstream/internal/fs"
)

// Input reads bytes sequentially from one open file.
//
// Every method forwards to the file and returns its result. Input is safe
// for concurrent use; operations are serialized.
type Input struct {
	mu     sync.Mutex
	file   fs.File
	name   string
	locked bool
	closed bool

	logger *slog.Logger
	probe  probe
}

// OpenInput opens path for reading.
//
// Returns [ErrInvalidArgument] for an empty path, [ErrNotFound] if path does
// not exist, is a directory, or is not readable, and [ErrIO] otherwise.
func OpenInput(path string, opts Options) (*Input, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	f, err := opts.filesystem().Open(path)
	if err != nil {
		opts.logger().Debug("open failed", "component", ComponentFileInput, "name", path, "error", err)

		return nil, classifyOpen("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, classifyIO("stat", path, err)
	}

	if info.IsDir() {
		_ = f.Close()

		return nil, fmt.Errorf("%w: open %q: is a directory", ErrNotFound, path)
	}

	return newInput(f, path, opts)
}

// NewInput wraps an already open file. The Input takes ownership of f:
// closing the Input closes f, and f is closed if NewInput fails.
//
// Returns [ErrInvalidArgument] if f is nil.
func NewInput(f fs.File, opts Options) (*Input, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidArgument)
	}

	return newInput(f, f.Name(), opts)
}

// InputFromFD wraps an open descriptor, taking ownership of it.
//
// Returns [ErrInvalidArgument] if fd is not a valid descriptor.
func InputFromFD(fd uintptr, name string, opts Options) (*Input, error) {
	f, err := opts.filesystem().NewFile(fd, name)
	if err != nil {
		return nil, classifyOpen("newfile", name, err)
	}

	return newInput(f, name, opts)
}

func newInput(f fs.File, name string, opts Options) (*Input, error) {
	in := &Input{
		file:   f,
		name:   name,
		logger: opts.logger(),
		probe:  probe{obs: opts.Observer, component: ComponentFileInput},
	}

	if opts.Lock {
		if err := lockFile(f, false, opts); err != nil {
			_ = f.Close()

			return nil, fmt.Errorf("lock %q: %w", name, err)
		}

		in.locked = true
	}

	return in, nil
}

// Name returns the name the file was opened with.
func (in *Input) Name() string {
	return in.name
}

// Fd returns the underlying descriptor.
func (in *Input) Fd() uintptr {
	return in.file.Fd()
}

// File returns the underlying file for callers that need raw access
// (seeking, stat). Reading from it directly bypasses the Input.
func (in *Input) File() fs.File {
	return in.file
}

// Read implements [io.Reader].
func (in *Input) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.read(p)
}

// ReadByte reads one byte. Returns [io.EOF] at end of stream, and [ErrIO]
// wrapping [io.ErrNoProgress] if the file keeps returning no bytes and no
// error.
func (in *Input) ReadByte() (byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	var b [1]byte

	for range maxEmptyReads {
		n, err := in.read(b[:])
		if n == 1 {
			return b[0], nil
		}

		if err != nil {
			return 0, err
		}
	}

	in.probe.failed("read")

	return 0, classifyIO("read", in.name, io.ErrNoProgress)
}

// ReadBlock reads at most count bytes into buf[off:off+count] and returns
// how many were read, which may be fewer than requested.
//
// Returns [ErrOutOfBounds] without reading if the window does not fit buf,
// (0, nil) if count is 0, and (0, [io.EOF]) only when no bytes remain.
func (in *Input) ReadBlock(buf []byte, off, count int) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, ErrClosed
	}

	if err := checkBounds(len(buf), off, count); err != nil {
		return 0, err
	}

	return in.read(buf[off : off+count])
}

func (in *Input) read(p []byte) (int, error) {
	if in.closed {
		return 0, ErrClosed
	}

	if len(p) == 0 {
		return 0, nil
	}

	n, err := in.file.Read(p)
	in.probe.bytes("read", n)

	if errors.Is(err, io.EOF) {
		if n > 0 {
			return n, nil
		}

		return 0, io.EOF
	}

	if err != nil {
		in.probe.failed("read")

		return n, classifyIO("read", in.name, err)
	}

	return n, nil
}

// Skip advances past up to n bytes and returns how many were skipped.
//
// Returns 0 without moving if n <= 0. Regular files are skipped by seeking,
// clamped at end of file; pipes and other non-seekable files are drained.
func (in *Input) Skip(n int64) (int64, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, ErrClosed
	}

	if n <= 0 {
		return 0, nil
	}

	if remaining, ok := in.remaining(); ok {
		skip := min(n, remaining)
		if skip <= 0 {
			return 0, nil
		}

		if _, err := in.file.Seek(skip, io.SeekCurrent); err != nil {
			in.probe.failed("skip")

			return 0, classifyIO("skip", in.name, err)
		}

		in.probe.bytes("skip", int(skip))

		return skip, nil
	}

	skipped, err := io.CopyN(io.Discard, in.file, n)
	in.probe.bytes("skip", int(skipped))

	if err != nil && !errors.Is(err, io.EOF) {
		in.probe.failed("skip")

		return skipped, classifyIO("skip", in.name, err)
	}

	return skipped, nil
}

// Available estimates how many bytes can be read without blocking: the
// unread part of a regular file, or the kernel's pending byte count for
// pipes and sockets. It is an estimate, not a size to allocate for.
func (in *Input) Available() (int64, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, ErrClosed
	}

	if remaining, ok := in.remaining(); ok {
		return max(remaining, 0), nil
	}

	n, err := pendingBytes(in.file.Fd())
	if err != nil {
		in.probe.failed("available")

		return 0, classifyIO("available", in.name, err)
	}

	return n, nil
}

// MarkSupported reports false: Input cannot rewind. Wrap it in a
// [BufferedInput] for mark/reset.
func (in *Input) MarkSupported() bool {
	return false
}

// remaining returns size-offset for seekable regular files.
func (in *Input) remaining() (int64, bool) {
	info, err := in.file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}

	cur, err := in.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}

	return info.Size() - cur, true
}

// Close releases the lock and the descriptor. Later calls return nil.
func (in *Input) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return nil
	}

	in.closed = true

	if in.locked {
		unlockFile(in.file)
	}

	err := in.file.Close()

	in.logger.Debug("instream closed", "component", ComponentFileInput, "name", in.name)
	in.probe.closed()

	if err != nil {
		in.probe.failed("close")

		return classifyIO("close", in.name, err)
	}

	return nil
}
