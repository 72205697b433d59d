package stream

import "errors"

// WithInput opens path, runs fn, and closes the Input on every exit path,
// including a panic in fn. The close error is joined with fn's error.
func WithInput(path string, opts Options, fn func(*Input) error) (err error) {
	in, err := OpenInput(path, opts)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, in.Close()) }()

	return fn(in)
}

// WithOutput creates path, runs fn, and closes the Output on every exit
// path. If fn fails or panics the Output is discarded instead, so an
// atomic output never replaces the target with partial data.
func WithOutput(path string, appendMode bool, opts Options, fn func(*Output) error) (err error) {
	out, err := CreateOutput(path, appendMode, opts)
	if err != nil {
		return err
	}

	ok := false

	defer func() {
		if ok {
			err = errors.Join(err, out.Close())
		} else {
			err = errors.Join(err, out.Discard())
		}
	}()

	err = fn(out)
	ok = err == nil

	return err
}

// WithBufferedInput is [WithInput] with the Input wrapped in a
// [BufferedInput] of [Options.BufferSize] bytes.
func WithBufferedInput(path string, opts Options, fn func(*BufferedInput) error) (err error) {
	in, err := OpenInput(path, opts)
	if err != nil {
		return err
	}

	bin, err := NewBufferedInput(in, opts.bufferSize(), opts)
	if err != nil {
		return errors.Join(err, in.Close())
	}

	defer func() { err = errors.Join(err, bin.Close()) }()

	return fn(bin)
}

// WithBufferedOutput is [WithOutput] with the Output wrapped in a
// [BufferedOutput] of [Options.BufferSize] bytes. Buffered bytes are
// flushed before the Output is closed, also when fn fails. Only an atomic
// output drops them on failure, leaving the target untouched.
func WithBufferedOutput(path string, appendMode bool, opts Options, fn func(*BufferedOutput) error) (err error) {
	out, err := CreateOutput(path, appendMode, opts)
	if err != nil {
		return err
	}

	bout, err := NewBufferedOutput(out, opts.bufferSize(), opts)
	if err != nil {
		return errors.Join(err, out.Discard())
	}

	ok := false

	defer func() {
		if ok || !opts.Atomic {
			err = errors.Join(err, bout.Close())
		} else {
			err = errors.Join(err, bout.Discard())
		}
	}()

	err = fn(bout)
	ok = err == nil

	return err
}
