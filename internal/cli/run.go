package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fstream/internal/config"
	"github.com/calvinalkan/fstream/internal/fs"
	"github.com/calvinalkan/fstream/internal/metrics"
	"github.com/calvinalkan/fstream/internal/stream"
)

var (
	errUnknownCommand = errors.New("unknown command")
	errPathRequired   = errors.New("path is required")
	errTooManyArgs    = errors.New("too many arguments")
)

// app is what every command needs after global flags and config are
// resolved.
type app struct {
	cfg      config.Config
	fs       fs.FS
	logger   *slog.Logger
	observer stream.Observer
}

// streamOptions returns the stream options the config asks for.
func (a *app) streamOptions() stream.Options {
	return stream.Options{
		FS:          a.fs,
		Logger:      a.logger,
		Observer:    a.observer,
		Perm:        a.cfg.FileMode,
		BufferSize:  a.cfg.BufferSize,
		Lock:        a.cfg.Lock,
		LockTimeout: a.cfg.LockTimeout,
		Atomic:      a.cfg.Atomic,
	}
}

func (a *app) commands() []*Command {
	return []*Command{
		CatCmd(a),
		CopyCmd(a),
		WriteCmd(a),
		DumpCmd(a),
		DemoCmd(a),
		InspectCmd(a),
		PrintConfigCmd(a),
	}
}

type globalFlags struct {
	set         *flag.FlagSet
	workDir     *string
	configPath  *string
	bufferSize  *int
	logLevel    *string
	logFormat   *string
	lockTimeout *time.Duration
	metrics     *bool
	help        *bool
}

func newGlobalFlags() *globalFlags {
	set := flag.NewFlagSet("fstream", flag.ContinueOnError)
	set.SetInterspersed(false)
	set.SetOutput(io.Discard)

	return &globalFlags{
		set:         set,
		workDir:     set.StringP("cwd", "C", "", "Run as if started in `dir`"),
		configPath:  set.StringP("config", "c", "", "Also load config from `file`"),
		bufferSize:  set.Int("buffer-size", stream.DefaultBufferSize, "Buffer size in `bytes` for buffered streams"),
		logLevel:    set.String("log-level", "info", "Log `level`: debug, info, warn or error"),
		logFormat:   set.String("log-format", config.FormatText, "Log `format`: text or json"),
		lockTimeout: set.Duration("lock-timeout", 0, "Wait up to `duration` for a contended lock"),
		metrics:     set.Bool("metrics", false, "Print stream counters to stderr after the command"),
		help:        set.BoolP("help", "h", false, "Show help"),
	}
}

// overrides returns the flags that were set explicitly, so defaults on the
// command line never shadow config files.
func (g *globalFlags) overrides() config.Overrides {
	var o config.Overrides

	if g.set.Changed("buffer-size") {
		o.BufferSize = g.bufferSize
	}

	if g.set.Changed("log-level") {
		o.LogLevel = g.logLevel
	}

	if g.set.Changed("log-format") {
		o.LogFormat = g.logFormat
	}

	if g.set.Changed("lock-timeout") {
		o.LockTimeout = g.lockTimeout
	}

	return o
}

// Run is the main entry point. Returns exit code.
//
// The first signal received on sigCh cancels the running command; sigCh may
// be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(in, out, errOut, env)

	globals := newGlobalFlags()

	if len(args) > 0 {
		args = args[1:]
	}

	if err := globals.set.Parse(args); err != nil {
		o.Error(err)
		printUsage(errOut, globals.set, nil)

		return 1
	}

	rest := globals.set.Args()

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *globals.workDir,
		ConfigPath:      *globals.configPath,
		Overrides:       globals.overrides(),
		Env:             env,
	})
	if err != nil {
		o.Error(err)

		return 1
	}

	a := &app{
		cfg:    cfg,
		fs:     fs.NewReal(),
		logger: newLogger(errOut, cfg),
	}

	var reg *prometheus.Registry

	if *globals.metrics {
		reg = prometheus.NewRegistry()

		m, err := metrics.New(reg)
		if err != nil {
			o.Error(err)

			return 1
		}

		a.observer = m
	}

	commands := a.commands()

	if *globals.help || len(rest) == 0 {
		printUsage(out, globals.set, commands)

		return 0
	}

	var cmd *Command

	for _, c := range commands {
		if c.Name() == rest[0] {
			cmd = c

			break
		}
	}

	if cmd == nil {
		o.Error(fmt.Errorf("%w: %s", errUnknownCommand, rest[0]))
		printUsage(errOut, globals.set, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				a.logger.Debug("signal received, cancelling", "signal", sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, o, rest[1:])

	if reg != nil {
		if err := metrics.Write(errOut, reg); err != nil {
			o.Error(err)

			return 1
		}
	}

	return code
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogFormat == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	var b strings.Builder

	b.WriteString("fstream - scoped, buffered byte streams over files\n\n")
	b.WriteString("Usage: fstream [global flags] <command> [args]\n\n")

	if len(commands) > 0 {
		b.WriteString("Commands:\n")

		for _, c := range commands {
			b.WriteString(c.HelpLine())
			b.WriteByte('\n')
		}

		b.WriteByte('\n')
	}

	b.WriteString("Global flags:\n")
	b.WriteString(globals.FlagUsages())
	b.WriteString("\nRun 'fstream <command> --help' for command flags.\n")

	_, _ = io.WriteString(w, b.String())
}
