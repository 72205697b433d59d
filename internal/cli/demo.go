package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

const demoFile = "testfile.bin"

// demoBytes is the payload the demo round-trips: two values that do not fit
// a signed byte.
var demoBytes = []byte{222, 128}

// DemoCmd returns the demo command.
func DemoCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("demo", flag.ContinueOnError),
		Usage: "demo [path]",
		Short: "Write two bytes and read them back",
		Long: "Write the bytes 222 and 128 to path (default " + demoFile + ") through an output stream,\n" +
			"then read the file back byte by byte and print what was read.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execDemo(ctx, io, a, args)
		},
	}
}

func execDemo(ctx context.Context, o *IO, a *app, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: %v", errTooManyArgs, args[1:])
	}

	name := demoFile
	if len(args) == 1 {
		name = args[0]
	}

	path := a.cfg.Resolve(name)
	opts := a.streamOptions()

	err := stream.WithOutput(path, false, opts, func(out *stream.Output) error {
		for _, b := range demoBytes {
			if err := out.WriteByte(b); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	o.Printf("written to %s: %d %d\n", name, demoBytes[0], demoBytes[1])

	got, err := readBytes(ctx, path, opts, 0, -1)
	if err != nil {
		return err
	}

	o.Printf("read from %s: %v\n", name, got)

	return nil
}
