package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Sink is a byte sink a [BufferedOutput] can decorate.
// [*Output] and [*BufferedOutput] implement it.
type Sink interface {
	io.WriteCloser

	// Flush pushes any bytes the sink itself buffers to its destination.
	Flush() error
}

// discarder is implemented by sinks that can be closed without publishing.
type discarder interface {
	Discard() error
}

// BufferedOutput collects writes in a fixed-size buffer and forwards them
// to a [Sink] when the buffer fills, on Flush, and on Close. Writes at least
// as large as the free buffer space go straight to the sink when the buffer
// is empty.
//
// BufferedOutput is safe for concurrent use; operations are serialized.
type BufferedOutput struct {
	mu     sync.Mutex
	sink   Sink
	w      *bufio.Writer
	closed bool

	logger *slog.Logger
	probe  probe
}

// NewBufferedOutput decorates sink with a buffer of size bytes. The
// BufferedOutput owns sink from now on and closes it on Close.
//
// Returns [ErrInvalidArgument] if sink is nil or size <= 0; sink is left
// open in that case.
func NewBufferedOutput(sink Sink, size int, opts Options) (*BufferedOutput, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrInvalidArgument)
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrInvalidArgument, size)
	}

	return &BufferedOutput{
		sink:   sink,
		w:      bufio.NewWriterSize(sink, size),
		logger: opts.logger(),
		probe:  probe{obs: opts.Observer, component: ComponentBufferedOutput},
	}, nil
}

// Write implements [io.Writer].
func (b *BufferedOutput) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.write(p)
}

// WriteByte buffers one byte.
func (b *BufferedOutput) WriteByte(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if err := b.w.WriteByte(c); err != nil {
		b.probe.failed("write")

		return err
	}

	b.probe.bytes("write", 1)

	return nil
}

// WriteBlock writes buf[off:off+count].
//
// Returns [ErrOutOfBounds] without writing if the window does not fit buf.
func (b *BufferedOutput) WriteBlock(buf []byte, off, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if err := checkBounds(len(buf), off, count); err != nil {
		return err
	}

	_, err := b.write(buf[off : off+count])

	return err
}

func (b *BufferedOutput) write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}

	n, err := b.w.Write(p)
	b.probe.bytes("write", n)

	if err != nil {
		b.probe.failed("write")
	}

	return n, err
}

// Buffered returns the number of bytes waiting in the buffer.
func (b *BufferedOutput) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	return b.w.Buffered()
}

// Flush writes buffered bytes to the sink, then flushes the sink.
func (b *BufferedOutput) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if err := b.w.Flush(); err != nil {
		b.probe.failed("flush")

		return err
	}

	return b.sink.Flush()
}

// Close flushes buffered bytes and closes the sink. The sink is released
// even if the flush fails; a sink that supports it (see [Output.Discard]) is
// discarded in that case so an incomplete atomic file is never published.
// Both errors are reported. Later calls return nil.
func (b *BufferedOutput) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true

	flushErr := b.w.Flush()
	if flushErr != nil {
		b.probe.failed("flush")
	}

	var closeErr error

	if d, ok := b.sink.(discarder); ok && flushErr != nil {
		closeErr = d.Discard()
	} else {
		closeErr = b.sink.Close()
	}

	b.logger.Debug("buffered outstream closed",
		"component", ComponentBufferedOutput,
		"discarded", flushErr != nil,
	)
	b.probe.closed()

	return errors.Join(flushErr, closeErr)
}

// Discard drops buffered bytes and closes the sink without publishing it,
// if the sink supports that (see [Output.Discard]). Later calls return nil.
func (b *BufferedOutput) Discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	dropped := b.w.Buffered()
	b.w.Reset(io.Discard)

	var err error
	if d, ok := b.sink.(discarder); ok {
		err = d.Discard()
	} else {
		err = b.sink.Close()
	}

	b.logger.Debug("buffered outstream closed",
		"component", ComponentBufferedOutput,
		"discarded", true,
		"dropped", dropped,
	)
	b.probe.closed()

	return err
}
