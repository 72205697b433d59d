package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

var errSameFile = errors.New("source and destination are the same file")

// CopyCmd returns the copy command.
func CopyCmd(a *app) *Command {
	fs := flag.NewFlagSet("copy", flag.ContinueOnError)
	fs.Bool("append", false, "Append to destination instead of truncating")
	fs.Bool("atomic", false, "Write to a temp file and rename into place on success")
	fs.Bool("lock", false, "Hold advisory locks on both files while copying")
	fs.Bool("progress", false, "Show a progress bar on stderr")

	return &Command{
		Flags: fs,
		Usage: "copy <src> <dst> [flags]",
		Short: "Copy a file through buffered streams",
		Long: "Copy src to dst with a buffered input and a buffered output.\n" +
			"With --atomic, dst is only replaced once every byte was written.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execCopy(ctx, io, a, fs, args)
		},
	}
}

func execCopy(ctx context.Context, o *IO, a *app, fs *flag.FlagSet, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: copy needs <src> and <dst>", errPathRequired)
	}

	if len(args) > 2 {
		return fmt.Errorf("%w: %v", errTooManyArgs, args[2:])
	}

	appendMode, _ := fs.GetBool("append")
	atomic, _ := fs.GetBool("atomic")
	lock, _ := fs.GetBool("lock")
	progress, _ := fs.GetBool("progress")

	src := a.cfg.Resolve(args[0])
	dst := a.cfg.Resolve(args[1])

	if src == dst {
		return fmt.Errorf("%w: %s", errSameFile, args[0])
	}

	inOpts := a.streamOptions()
	inOpts.Lock = inOpts.Lock || lock

	outOpts := a.streamOptions()
	outOpts.Lock = outOpts.Lock || lock
	outOpts.Atomic = (outOpts.Atomic && !appendMode) || atomic

	var onBlock func(int)

	if progress {
		info, err := a.fs.Stat(src)
		if err != nil {
			return fmt.Errorf("%w: stat %q: %w", stream.ErrNotFound, args[0], err)
		}

		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetWriter(o.errOut),
			progressbar.OptionSetDescription("copying "+args[0]),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
		)
		defer func() { _ = bar.Finish() }()

		onBlock = func(n int) { _ = bar.Add(n) }
	}

	var copied int64

	err := stream.WithBufferedInput(src, inOpts, func(in *stream.BufferedInput) error {
		return stream.WithBufferedOutput(dst, appendMode, outOpts, func(out *stream.BufferedOutput) error {
			return pump(ctx, in, out, inOpts.BufferSize, func(n int) {
				copied += int64(n)

				if onBlock != nil {
					onBlock(n)
				}
			})
		})
	})
	if err != nil {
		return err
	}

	a.logger.Debug("copy finished", "src", src, "dst", dst, "bytes", copied)

	return nil
}
