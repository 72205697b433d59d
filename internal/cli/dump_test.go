package cli_test

import (
	"testing"

	"github.com/calvinalkan/fstream/internal/cli"
)

func TestDumpCommand(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name       string
		args       []string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{name: "whole file", args: []string{"dump", "data.bin"}, wantStdout: "[222 128 0 7 255]"},
		{name: "skip", args: []string{"dump", "--skip", "2", "data.bin"}, wantStdout: "[0 7 255]"},
		{name: "limit", args: []string{"dump", "--limit", "2", "data.bin"}, wantStdout: "[222 128]"},
		{name: "skip and limit", args: []string{"dump", "--skip", "1", "--limit", "3", "data.bin"}, wantStdout: "[128 0 7]"},
		{name: "skip past end", args: []string{"dump", "--skip", "100", "data.bin"}, wantStdout: "[]"},
		{name: "limit zero", args: []string{"dump", "--limit", "0", "data.bin"}, wantStdout: "[]"},
		{name: "empty file", args: []string{"dump", "empty.bin"}, wantStdout: "[]"},
		{name: "missing path", args: []string{"dump"}, wantExit: 1, wantStderr: "path is required"},
		{name: "missing file", args: []string{"dump", "nope.bin"}, wantExit: 1, wantStderr: "not found"},
		{name: "directory", args: []string{"dump", "."}, wantExit: 1, wantStderr: "not found"},
		{name: "extra args", args: []string{"dump", "data.bin", "x"}, wantExit: 1, wantStderr: "too many arguments"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.WriteFile("data.bin", []byte{222, 128, 0, 7, 255})
			c.WriteFile("empty.bin", nil)

			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, tt.wantExit; got != want {
				t.Errorf("exitCode=%d, want=%d (stderr=%q)", got, want, stderr)
			}

			if tt.wantExit == 0 {
				if got, want := stdout, tt.wantStdout+"\n"; got != want {
					t.Errorf("stdout=%q, want=%q", got, want)
				}
			}

			if tt.wantStderr != "" {
				cli.AssertContains(t, stderr, tt.wantStderr)
			}
		})
	}
}
