package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

var (
	errBytesRequired = errors.New("at least one byte value is required")
	errInvalidByte   = errors.New("invalid byte value")
)

// WriteCmd returns the write command.
func WriteCmd(a *app) *Command {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.Bool("append", false, "Append instead of truncating")
	fs.Bool("atomic", false, "Write to a temp file and rename into place on success")

	return &Command{
		Flags: fs,
		Usage: "write <path> <byte>... [flags]",
		Short: "Write byte values to a file",
		Long: "Write each decimal byte value (0-255) to path, one WriteByte call per value.\n" +
			"All values are parsed before the file is touched.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execWrite(io, a, fs, args)
		},
	}
}

func execWrite(o *IO, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errPathRequired
	}

	if len(args) == 1 {
		return errBytesRequired
	}

	values, err := parseBytes(args[1:])
	if err != nil {
		return err
	}

	appendMode, _ := fs.GetBool("append")
	atomic, _ := fs.GetBool("atomic")

	opts := a.streamOptions()
	opts.Atomic = (opts.Atomic && !appendMode) || atomic

	err = stream.WithOutput(a.cfg.Resolve(args[0]), appendMode, opts, func(out *stream.Output) error {
		for _, b := range values {
			if err := out.WriteByte(b); err != nil {
				return err
			}
		}

		return out.Sync()
	})
	if err != nil {
		return err
	}

	o.Printf("wrote %d bytes to %s\n", len(values), args[0])

	return nil
}

func parseBytes(args []string) ([]byte, error) {
	values := make([]byte, 0, len(args))

	for _, s := range args {
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q (want 0-255)", errInvalidByte, s)
		}

		values = append(values, byte(v))
	}

	return values, nil
}
