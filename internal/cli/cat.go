package cli

import (
	"context"
	"errors"
	"io"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

// CatCmd returns the cat command.
func CatCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("cat", flag.ContinueOnError),
		Usage: "cat <path>...",
		Short: "Print files to stdout",
		Long: "Read each file through a buffered input and write it to stdout.\n" +
			"Missing files are reported as warnings and skipped.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execCat(ctx, io, a, args)
		},
	}
}

func execCat(ctx context.Context, o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return errPathRequired
	}

	opts := a.streamOptions()

	for _, path := range args {
		err := stream.WithBufferedInput(a.cfg.Resolve(path), opts, func(in *stream.BufferedInput) error {
			return pump(ctx, in, o.out, opts.BufferSize, nil)
		})
		if errors.Is(err, stream.ErrNotFound) {
			o.Warn("%s: not found", path)

			continue
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// blockReader is the part of Input and BufferedInput that pump needs.
type blockReader interface {
	ReadBlock(buf []byte, off, count int) (int, error)
}

// pump copies src to dst in blocks of size bytes until end of stream,
// checking ctx between blocks. progress, if set, is called with each
// block's length after it was written.
func pump(ctx context.Context, src blockReader, dst io.Writer, size int, progress func(int)) error {
	buf := make([]byte, size)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.ReadBlock(buf, 0, len(buf))
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}

			if progress != nil {
				progress(n)
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}
