package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Source is a byte source a [BufferedInput] can decorate.
// [*Input] and [*BufferedInput] implement it.
type Source interface {
	io.ReadCloser

	// Available estimates bytes readable without blocking.
	Available() (int64, error)

	// Skip advances past up to n bytes; n <= 0 is a no-op returning 0.
	Skip(n int64) (int64, error)
}

// maxEmptyReads bounds how often a fill retries a source that returns
// (0, nil) before giving up with [io.ErrNoProgress].
const maxEmptyReads = 100

// BufferedInput serves reads from a fixed-size buffer refilled from a
// [Source] in one call at a time, and supports [BufferedInput.Mark] and
// [BufferedInput.Reset].
//
// Buffer state: 0 <= pos <= count <= len(buf). markPos is -1 when no mark
// is set; the buffer may grow up to markLimit+1 bytes to keep a mark alive.
//
// BufferedInput is safe for concurrent use; operations are serialized.
type BufferedInput struct {
	mu        sync.Mutex
	src       Source
	buf       []byte
	count     int
	pos       int
	markPos   int
	markLimit int
	err       error // read error deferred until the buffered bytes are served
	closed    bool

	logger *slog.Logger
	probe  probe
}

// NewBufferedInput decorates src with a buffer of size bytes. The
// BufferedInput owns src from now on and closes it on Close.
//
// Returns [ErrInvalidArgument] if src is nil or size <= 0; src is left open
// in that case.
func NewBufferedInput(src Source, size int, opts Options) (*BufferedInput, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidArgument)
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrInvalidArgument, size)
	}

	return &BufferedInput{
		src:     src,
		buf:     make([]byte, size),
		markPos: -1,
		logger:  opts.logger(),
		probe:   probe{obs: opts.Observer, component: ComponentBufferedInput},
	}, nil
}

// fill reads more data into the buffer. It must only be called when the
// buffer is drained (pos >= count). On return, count > pos unless the
// source is at end of stream or failed.
func (b *BufferedInput) fill() error {
	if b.err != nil {
		err := b.err
		b.err = nil

		return err
	}

	switch {
	case b.markPos < 0:
		b.pos = 0
	case b.pos >= len(b.buf):
		switch {
		case b.markPos > 0:
			// Keep only the marked region.
			n := copy(b.buf, b.buf[b.markPos:b.pos])
			b.pos = n
			b.markPos = 0
		case len(b.buf) > b.markLimit:
			// More than markLimit bytes consumed since the mark.
			b.markPos = -1
			b.pos = 0
		default:
			grown := make([]byte, min(2*len(b.buf), b.markLimit+1))
			copy(grown, b.buf[:b.pos])
			b.buf = grown
		}
	}

	b.count = b.pos

	for range maxEmptyReads {
		n, err := b.src.Read(b.buf[b.pos:])
		if n > 0 {
			b.count = b.pos + n
			b.probe.bytes("fill", n)

			if err != nil && !errors.Is(err, io.EOF) {
				b.err = err
			}

			return nil
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			b.probe.failed("fill")

			return err
		}
	}

	return io.ErrNoProgress
}

// ReadByte returns the next byte, refilling the buffer if it is empty.
// Returns [io.EOF] at end of stream.
func (b *BufferedInput) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if b.pos >= b.count {
		if err := b.fill(); err != nil {
			return 0, err
		}

		if b.pos >= b.count {
			return 0, io.EOF
		}
	}

	c := b.buf[b.pos]
	b.pos++
	b.probe.bytes("read", 1)

	return c, nil
}

// Read implements [io.Reader]. It keeps reading while the source reports
// available bytes, so a single call may span several refills.
func (b *BufferedInput) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.read(p)
}

// ReadBlock reads at most count bytes into buf[off:off+count].
//
// Returns [ErrOutOfBounds] without reading if the window does not fit buf,
// (0, nil) if count is 0, and (0, [io.EOF]) only when no bytes remain.
// If the buffer is empty, no mark is set, and count is at least the buffer
// capacity, bytes are read straight into buf.
func (b *BufferedInput) ReadBlock(buf []byte, off, count int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if err := checkBounds(len(buf), off, count); err != nil {
		return 0, err
	}

	return b.read(buf[off : off+count])
}

func (b *BufferedInput) read(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}

	if len(p) == 0 {
		return 0, nil
	}

	n := 0

	for {
		nread, err := b.read1(p[n:])
		n += nread

		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				err = nil
			}

			b.probe.bytes("read", n)

			return n, err
		}

		if n >= len(p) || nread == 0 {
			break
		}

		avail, err := b.src.Available()
		if err != nil || avail <= 0 {
			break
		}
	}

	b.probe.bytes("read", n)

	return n, nil
}

// read1 reads from at most one refill.
func (b *BufferedInput) read1(p []byte) (int, error) {
	if b.pos >= b.count {
		if len(p) >= len(b.buf) && b.markPos < 0 && b.err == nil {
			n, err := b.src.Read(p)
			if n > 0 && errors.Is(err, io.EOF) {
				err = nil
			}

			return n, err
		}

		if err := b.fill(); err != nil {
			return 0, err
		}

		if b.pos >= b.count {
			return 0, io.EOF
		}
	}

	n := copy(p, b.buf[b.pos:b.count])
	b.pos += n

	return n, nil
}

// Skip advances past up to n bytes. Buffered bytes are skipped first; with
// an empty buffer and no mark the source skips directly.
// Returns 0 without moving if n <= 0.
func (b *BufferedInput) Skip(n int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if n <= 0 {
		return 0, nil
	}

	if b.pos >= b.count {
		if b.markPos < 0 && b.err == nil {
			return b.src.Skip(n)
		}

		// Go through the buffer so the mark keeps its bytes.
		if err := b.fill(); err != nil {
			return 0, err
		}

		if b.pos >= b.count {
			return 0, nil
		}
	}

	skipped := min(int64(b.count-b.pos), n)
	b.pos += int(skipped)
	b.probe.bytes("skip", int(skipped))

	return skipped, nil
}

// Available returns the buffered byte count plus the source's estimate.
func (b *BufferedInput) Available() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	n, err := b.src.Available()
	if err != nil {
		return 0, err
	}

	return int64(b.count-b.pos) + n, nil
}

// Buffered returns the number of bytes that can be read from the buffer
// without touching the source.
func (b *BufferedInput) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count - b.pos
}

// Mark remembers the current position. [BufferedInput.Reset] returns to it
// as long as no more than readLimit bytes have been consumed since.
// A negative readLimit is treated as 0. Mark on a closed stream does nothing.
func (b *BufferedInput) Mark(readLimit int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.markLimit = max(readLimit, 0)
	b.markPos = b.pos
}

// Reset moves back to the marked position.
//
// Returns [ErrMarkInvalid] if no mark is set or more than the mark's read
// limit has been consumed since it was set.
func (b *BufferedInput) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if b.markPos < 0 || b.pos-b.markPos > b.markLimit {
		b.markPos = -1

		return ErrMarkInvalid
	}

	b.pos = b.markPos

	return nil
}

// MarkSupported reports true.
func (b *BufferedInput) MarkSupported() bool {
	return true
}

// Close closes the source and drops the buffer. Later calls return nil.
func (b *BufferedInput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.buf = nil
	b.count, b.pos, b.markPos = 0, 0, -1

	err := b.src.Close()

	b.logger.Debug("buffered instream closed", "component", ComponentBufferedInput)
	b.probe.closed()

	return err
}
