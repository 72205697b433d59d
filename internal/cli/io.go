package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IO handles command input and output.
//
// Warnings collected with Warn are printed to stderr when the command
// finishes and turn the exit code to 1, so a command can report a skipped
// file and still produce output for the rest.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string

	errPrefix  string
	warnPrefix string
}

// NewIO creates a new IO instance. The error and warning prefixes are
// colored when errOut is a terminal and NO_COLOR is not set in env.
func NewIO(in io.Reader, out, errOut io.Writer, env map[string]string) *IO {
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)

	if isTerminal(errOut) && env["NO_COLOR"] == "" {
		errColor.EnableColor()
		warnColor.EnableColor()
	} else {
		errColor.DisableColor()
		warnColor.DisableColor()
	}

	return &IO{
		in:         in,
		out:        out,
		errOut:     errOut,
		errPrefix:  errColor.Sprint("error:"),
		warnPrefix: warnColor.Sprint("warning:"),
	}
}

// isTerminal reports whether w is a character device such as a TTY.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Error prints err to stderr behind the error prefix.
func (o *IO) Error(err error) {
	_, _ = fmt.Fprintln(o.errOut, o.errPrefix, err)
}

// Warn records a problem that did not stop the command.
func (o *IO) Warn(format string, a ...any) {
	o.warnings = append(o.warnings, fmt.Sprintf(format, a...))
}

// Finish prints warnings to stderr and returns the exit code.
// Returns 1 if any warnings, 0 otherwise.
func (o *IO) Finish() int {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, o.warnPrefix, w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}
