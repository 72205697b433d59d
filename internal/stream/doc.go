// Package stream provides scoped byte streams over files.
//
// [Input] and [Output] are thin wrappers over one open file each: every
// operation forwards to the file and returns its result, adding bounds
// checks, a closed-state guard, and a debug trace on close. [BufferedInput]
// and [BufferedOutput] decorate any source or sink with a fixed-size buffer
// to cut down the number of underlying calls; [BufferedInput] also supports
// [BufferedInput.Mark] and [BufferedInput.Reset].
//
// # Basic Usage
//
//	err := stream.WithOutput("data.bin", false, stream.Options{}, func(out *stream.Output) error {
//	    return out.WriteBlock([]byte{222, 128}, 0, 2)
//	})
//
//	err = stream.WithInput("data.bin", stream.Options{}, func(in *stream.Input) error {
//	    for {
//	        b, err := in.ReadByte()
//	        if errors.Is(err, io.EOF) {
//	            return nil
//	        }
//	        if err != nil {
//	            return err
//	        }
//	        fmt.Println(b)
//	    }
//	})
//
// The With* helpers release the handle exactly once on every exit path,
// including panics. Callers that manage lifetimes themselves should
// `defer Close()` right after a successful open.
//
// # End of stream
//
// [io.EOF] is returned, unwrapped, when no more bytes are available. It is
// not an error condition and is never combined with a byte count > 0.
//
// # Concurrency
//
// Every handle serializes its own operations with a mutex, so concurrent
// calls never corrupt buffer state. Interleaving reads from several
// goroutines still yields an unspecified split of the data between them.
//
// # Close policy
//
// Close is idempotent: the first call releases the descriptor and emits the
// trace; later calls return nil and do nothing. Every other operation on a
// closed handle fails with [ErrClosed].
package stream
