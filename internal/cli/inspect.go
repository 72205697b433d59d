package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/fstream/internal/stream"

	flag "github.com/spf13/pflag"
)

const defaultInspectRead = 16

var errInspectUsage = errors.New("bad arguments")

var inspectCommands = []string{"available", "buffered", "byte", "help", "mark", "quit", "read", "reset", "skip"}

// InspectCmd returns the inspect command.
func InspectCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("inspect", flag.ContinueOnError),
		Usage: "inspect <path>",
		Short: "Step through a file interactively",
		Long: "Open path as a buffered input and read commands from stdin.\n" +
			"Type 'help' at the prompt for the command list.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execInspect(ctx, io, a, args)
		},
	}
}

func execInspect(ctx context.Context, o *IO, a *app, args []string) error {
	if len(args) == 0 {
		return errPathRequired
	}

	if len(args) > 1 {
		return fmt.Errorf("%w: %v", errTooManyArgs, args[1:])
	}

	return stream.WithBufferedInput(a.cfg.Resolve(args[0]), a.streamOptions(), func(in *stream.BufferedInput) error {
		r := &inspector{in: in, o: o, readSize: defaultInspectRead}

		return r.run(ctx, newPrompter(o))
	})
}

// prompter reads one command line at a time. Prompt returns io.EOF when
// input ends.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

func newPrompter(o *IO) prompter {
	if o.in != nil && isTerminal(o.in) && isTerminal(o.out) {
		l := liner.NewLiner()
		l.SetCtrlCAborts(true)
		l.SetCompleter(completeInspect)

		return l
	}

	var in io.Reader = strings.NewReader("")
	if o.in != nil {
		in = o.in
	}

	return &scanPrompter{sc: bufio.NewScanner(in)}
}

// scanPrompter reads lines from a non-interactive reader. It prints no
// prompt so piped sessions produce only command output.
type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if p.sc.Scan() {
		return p.sc.Text(), nil
	}

	if err := p.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanPrompter) AppendHistory(string) {}

func (*scanPrompter) Close() error { return nil }

func completeInspect(line string) []string {
	var out []string

	for _, c := range inspectCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}

	return out
}

type inspector struct {
	in       *stream.BufferedInput
	o        *IO
	readSize int
}

func (r *inspector) run(ctx context.Context, p prompter) error {
	defer func() { _ = p.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := p.Prompt("inspect> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			return nil
		}

		if err := r.exec(cmd, parts[1:]); err != nil {
			r.o.Error(err)
		}
	}
}

func (r *inspector) exec(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		r.printHelp()

		return nil
	case "read":
		n, err := intArg(args, r.readSize)
		if err != nil {
			return err
		}

		return r.read(n)
	case "byte":
		b, err := r.in.ReadByte()
		if errors.Is(err, io.EOF) {
			r.o.Println("<eof>")

			return nil
		}

		if err != nil {
			return err
		}

		r.o.Println(b)

		return nil
	case "skip":
		if len(args) == 0 {
			return fmt.Errorf("%w: skip <n>", errInspectUsage)
		}

		n, err := intArg(args, 0)
		if err != nil {
			return err
		}

		skipped, err := r.in.Skip(int64(n))
		if err != nil {
			return err
		}

		r.o.Printf("skipped %d\n", skipped)

		return nil
	case "mark":
		limit, err := intArg(args, r.readSize)
		if err != nil {
			return err
		}

		r.in.Mark(limit)
		r.o.Printf("marked (limit %d)\n", limit)

		return nil
	case "reset":
		if err := r.in.Reset(); err != nil {
			return err
		}

		r.o.Println("reset")

		return nil
	case "available":
		n, err := r.in.Available()
		if err != nil {
			return err
		}

		r.o.Println(n)

		return nil
	case "buffered":
		r.o.Println(r.in.Buffered())

		return nil
	default:
		return fmt.Errorf("%w: unknown command %q (type 'help' for commands)", errInspectUsage, cmd)
	}
}

func (r *inspector) read(n int) error {
	buf := make([]byte, n)

	got, err := r.in.ReadBlock(buf, 0, n)
	if errors.Is(err, io.EOF) {
		r.o.Println("<eof>")

		return nil
	}

	if err != nil {
		return err
	}

	r.o.Println(fmt.Sprint(buf[:got]))

	return nil
}

func (r *inspector) printHelp() {
	r.o.Println("Commands:")
	r.o.Printf("  read [n]      read up to n bytes (default %d)\n", r.readSize)
	r.o.Println("  byte          read one byte")
	r.o.Println("  skip <n>      skip up to n bytes")
	r.o.Printf("  mark [limit]  remember the position for reset (default limit %d)\n", r.readSize)
	r.o.Println("  reset         return to the mark")
	r.o.Println("  available     bytes readable without blocking")
	r.o.Println("  buffered      bytes held in the buffer")
	r.o.Println("  quit          leave")
}

// intArg parses args[0] as a non-negative int, or returns def if args is
// empty.
func intArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}

	if len(args) > 1 {
		return 0, fmt.Errorf("%w: %v", errTooManyArgs, args[1:])
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative number", errInspectUsage, args[0])
	}

	return n, nil
}
