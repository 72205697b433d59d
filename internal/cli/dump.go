package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

// DumpCmd returns the dump command.
func DumpCmd(a *app) *Command {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.Int64("skip", 0, "Skip `n` bytes before reading")
	fs.Int64("limit", -1, "Read at most `n` bytes (-1 for no limit)")

	return &Command{
		Flags: fs,
		Usage: "dump <path> [flags]",
		Short: "Print file bytes as decimal values",
		Long:  "Read path one byte at a time until end of stream and print the values, e.g. [222 128].",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execDump(ctx, io, a, fs, args)
		},
	}
}

func execDump(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errPathRequired
	}

	if len(args) > 1 {
		return fmt.Errorf("%w: %v", errTooManyArgs, args[1:])
	}

	skip, _ := fs.GetInt64("skip")
	limit, _ := fs.GetInt64("limit")

	values, err := readBytes(ctx, a.cfg.Resolve(args[0]), a.streamOptions(), skip, limit)
	if err != nil {
		return err
	}

	o.Println(fmt.Sprint(values))

	return nil
}

// readBytes reads path byte by byte after skipping skip bytes. A negative
// limit reads to end of stream.
func readBytes(ctx context.Context, path string, opts stream.Options, skip, limit int64) ([]byte, error) {
	var values []byte

	err := stream.WithInput(path, opts, func(in *stream.Input) error {
		if _, err := in.Skip(skip); err != nil {
			return err
		}

		for limit < 0 || int64(len(values)) < limit {
			if err := ctx.Err(); err != nil {
				return err
			}

			b, err := in.ReadByte()
			if errors.Is(err, io.EOF) {
				return nil
			}

			if err != nil {
				return err
			}

			values = append(values, b)
		}

		return nil
	})

	return values, err
}
