package stream

import (
	"log/slog"
	"os"
	"time"

	"github.com/calvinalkan/fstream/internal/fs"
)

// DefaultBufferSize is the buffer capacity used when a buffered stream is
// created with [DefaultBufferSize] or from a zero [Options.BufferSize].
const DefaultBufferSize = 8192

// DefaultPerm is the permission used for newly created files (before umask).
const DefaultPerm os.FileMode = 0o666

// Component names attached to every trace record as the "component" attribute.
const (
	ComponentFileInput      = "FileInput"
	ComponentFileOutput     = "FileOutput"
	ComponentBufferedInput  = "BufferedInput"
	ComponentBufferedOutput = "BufferedOutput"
)

// Observer receives counters for stream activity. Implementations must be
// safe for concurrent use. See internal/metrics for the prometheus-backed one.
type Observer interface {
	// ObserveBytes records n bytes moved by op ("read", "write", "skip").
	ObserveBytes(component, op string, n int)
	// ObserveError records a failed op.
	ObserveError(component, op string)
	// ObserveClose records a released handle.
	ObserveClose(component string)
}

// Options configures opening and decorating streams.
//
// The zero value is valid: the real filesystem, [slog.Default], no observer,
// [DefaultPerm], no locking, no atomic publishing.
type Options struct {
	// FS is the filesystem files are opened through.
	//
	// Defaults to [fs.NewReal]. Tests pass an [fs.Chaos] to inject faults.
	FS fs.FS

	// Logger receives the close trace (at debug level) and open failures.
	//
	// Defaults to [slog.Default].
	Logger *slog.Logger

	// Observer receives byte and error counters. May be nil.
	Observer Observer

	// Perm is the permission for files created by [CreateOutput].
	//
	// Defaults to [DefaultPerm].
	Perm os.FileMode

	// BufferSize is the capacity used by the With*Buffered helpers.
	//
	// Defaults to [DefaultBufferSize].
	BufferSize int

	// Lock takes a non-blocking advisory flock on the descriptor: shared for
	// inputs, exclusive for outputs. Contention fails the open with [ErrBusy].
	// The lock is released on Close.
	Lock bool

	// LockTimeout makes a contended [Options.Lock] retry with backoff for up
	// to this long before failing with [ErrBusy]. Zero tries once.
	LockTimeout time.Duration

	// Atomic makes [CreateOutput] write to a temporary file next to the
	// target and move it into place on Close. Readers never observe a
	// partially written file. Cannot be combined with append.
	Atomic bool
}

func (o Options) filesystem() fs.FS {
	if o.FS == nil {
		return fs.NewReal()
	}

	return o.FS
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}

	return o.Logger
}

func (o Options) perm() os.FileMode {
	if o.Perm == 0 {
		return DefaultPerm
	}

	return o.Perm
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}

	return o.BufferSize
}

// probe wraps an optional Observer so call sites need no nil checks.
type probe struct {
	obs       Observer
	component string
}

func (p probe) bytes(op string, n int) {
	if p.obs != nil && n > 0 {
		p.obs.ObserveBytes(p.component, op, n)
	}
}

func (p probe) failed(op string) {
	if p.obs != nil {
		p.obs.ObserveError(p.component, op)
	}
}

func (p probe) closed() {
	if p.obs != nil {
		p.obs.ObserveClose(p.component)
	}
}
