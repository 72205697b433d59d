package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/calvinalkan/fstream/internal/fs"
)

// Output writes bytes sequentially to one open file.
//
// Writes go straight to the file; Output keeps no buffer of its own, so
// [Output.Flush] is a no-op. Use [Output.Sync] for durability. Output is
// safe for concurrent use; operations are serialized.
type Output struct {
	mu         sync.Mutex
	fsys       fs.FS
	file       fs.File
	name       string
	tmpPath    string // set for atomic outputs
	appendMode bool
	locked     bool
	closed     bool

	logger *slog.Logger
	probe  probe
}

// CreateOutput opens path for writing, creating it if needed. The file is
// truncated unless appendMode is set.
//
// Returns [ErrInvalidArgument] for an empty path or for appendMode combined
// with [Options.Atomic], [ErrNotFound] if the file cannot be created
// (missing parent, directory, permission), and [ErrIO] otherwise.
func CreateOutput(path string, appendMode bool, opts Options) (*Output, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	if opts.Atomic && appendMode {
		return nil, fmt.Errorf("%w: atomic output cannot append", ErrInvalidArgument)
	}

	fsys := opts.filesystem()

	if opts.Atomic {
		return createAtomic(fsys, path, opts)
	}

	flag := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flag |= os.O_APPEND
	} else if !opts.Lock {
		// With Lock the truncate waits until the lock is held.
		flag |= os.O_TRUNC
	}

	f, err := fsys.OpenFile(path, flag, opts.perm())
	if err != nil {
		opts.logger().Debug("create failed", "component", ComponentFileOutput, "name", path, "error", err)

		return nil, classifyOpen("create", path, err)
	}

	out, err := newOutput(fsys, f, path, opts)
	if err != nil {
		return nil, err
	}

	out.appendMode = appendMode

	if opts.Lock && !appendMode {
		if err := f.Truncate(0); err != nil {
			_ = out.release(false)

			return nil, classifyIO("truncate", path, err)
		}
	}

	return out, nil
}

// createAtomic opens a temp file next to path that Close moves into place.
func createAtomic(fsys fs.FS, path string, opts Options) (*Output, error) {
	mode := opts.perm() &^ 0o022

	info, err := fsys.Stat(path)

	switch {
	case err == nil && info.IsDir():
		return nil, fmt.Errorf("%w: create %q: is a directory", ErrNotFound, path)
	case err == nil:
		mode = info.Mode().Perm()
	case !errors.Is(err, os.ErrNotExist):
		return nil, classifyOpen("create", path, err)
	}

	f, err := fsys.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, classifyOpen("create", path, err)
	}

	tmpPath := f.Name()

	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmpPath)

		return nil, classifyIO("chmod", tmpPath, err)
	}

	out, err := newOutput(fsys, f, path, opts)
	if err != nil {
		_ = fsys.Remove(tmpPath)

		return nil, err
	}

	out.tmpPath = tmpPath

	return out, nil
}

// NewOutput wraps an already open file. The Output takes ownership of f:
// closing the Output closes f, and f is closed if NewOutput fails.
//
// Returns [ErrInvalidArgument] if f is nil.
func NewOutput(f fs.File, opts Options) (*Output, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidArgument)
	}

	return newOutput(opts.filesystem(), f, f.Name(), opts)
}

// OutputFromFD wraps an open descriptor, taking ownership of it.
//
// Returns [ErrInvalidArgument] if fd is not a valid descriptor.
func OutputFromFD(fd uintptr, name string, opts Options) (*Output, error) {
	fsys := opts.filesystem()

	f, err := fsys.NewFile(fd, name)
	if err != nil {
		return nil, classifyOpen("newfile", name, err)
	}

	return newOutput(fsys, f, name, opts)
}

func newOutput(fsys fs.FS, f fs.File, name string, opts Options) (*Output, error) {
	out := &Output{
		fsys:   fsys,
		file:   f,
		name:   name,
		logger: opts.logger(),
		probe:  probe{obs: opts.Observer, component: ComponentFileOutput},
	}

	if opts.Lock {
		if err := lockFile(f, true, opts); err != nil {
			_ = f.Close()

			return nil, fmt.Errorf("lock %q: %w", name, err)
		}

		out.locked = true
	}

	return out, nil
}

// Name returns the target path (not the temp file for atomic outputs).
func (out *Output) Name() string {
	return out.name
}

// Appending reports whether writes go to the end of an existing file.
func (out *Output) Appending() bool {
	return out.appendMode
}

// Fd returns the underlying descriptor.
func (out *Output) Fd() uintptr {
	return out.file.Fd()
}

// File returns the underlying file. Writing to it directly bypasses the
// Output.
func (out *Output) File() fs.File {
	return out.file
}

// Write implements [io.Writer].
func (out *Output) Write(p []byte) (int, error) {
	out.mu.Lock()
	defer out.mu.Unlock()

	return out.write(p)
}

// WriteByte writes one byte.
func (out *Output) WriteByte(c byte) error {
	out.mu.Lock()
	defer out.mu.Unlock()

	_, err := out.write([]byte{c})

	return err
}

// WriteBlock writes buf[off:off+count].
//
// Returns [ErrOutOfBounds] without writing if the window does not fit buf.
func (out *Output) WriteBlock(buf []byte, off, count int) error {
	out.mu.Lock()
	defer out.mu.Unlock()

	if out.closed {
		return ErrClosed
	}

	if err := checkBounds(len(buf), off, count); err != nil {
		return err
	}

	_, err := out.write(buf[off : off+count])

	return err
}

func (out *Output) write(p []byte) (int, error) {
	if out.closed {
		return 0, ErrClosed
	}

	if len(p) == 0 {
		return 0, nil
	}

	n, err := out.file.Write(p)
	out.probe.bytes("write", n)

	if err != nil {
		out.probe.failed("write")

		return n, classifyIO("write", out.name, err)
	}

	return n, nil
}

// Flush is a no-op: Output has no buffer. It fails only after Close.
func (out *Output) Flush() error {
	out.mu.Lock()
	defer out.mu.Unlock()

	if out.closed {
		return ErrClosed
	}

	return nil
}

// Sync commits written bytes to stable storage.
func (out *Output) Sync() error {
	out.mu.Lock()
	defer out.mu.Unlock()

	if out.closed {
		return ErrClosed
	}

	if err := out.file.Sync(); err != nil {
		out.probe.failed("sync")

		return classifyIO("sync", out.name, err)
	}

	return nil
}

// Close releases the descriptor. Atomic outputs are synced and moved over
// the target; if that fails the temp file is removed and the target is left
// untouched. Later calls return nil.
func (out *Output) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()

	return out.release(true)
}

// Discard closes the Output without publishing: atomic outputs remove their
// temp file, leaving the target untouched. For other outputs it is the same
// as [Output.Close].
func (out *Output) Discard() error {
	out.mu.Lock()
	defer out.mu.Unlock()

	return out.release(false)
}

func (out *Output) release(publish bool) error {
	if out.closed {
		return nil
	}

	out.closed = true

	var errs []error

	if out.tmpPath != "" && publish {
		if err := out.file.Sync(); err != nil {
			errs = append(errs, classifyIO("sync", out.name, err))
		}
	}

	if out.locked {
		unlockFile(out.file)
	}

	if err := out.file.Close(); err != nil {
		errs = append(errs, classifyIO("close", out.name, err))
	}

	published := false

	if out.tmpPath != "" {
		if publish && len(errs) == 0 {
			if err := out.fsys.Replace(out.tmpPath, out.name); err != nil {
				errs = append(errs, classifyIO("replace", out.name, err))
			} else {
				published = true
			}
		}

		if !published {
			_ = out.fsys.Remove(out.tmpPath)
		}
	}

	out.logger.Debug("outstream closed",
		"component", ComponentFileOutput,
		"name", out.name,
		"discarded", out.tmpPath != "" && !published,
	)
	out.probe.closed()

	if len(errs) > 0 {
		out.probe.failed("close")
	}

	return errors.Join(errs...)
}
