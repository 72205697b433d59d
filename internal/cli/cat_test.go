package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/fstream/internal/cli"
)

func TestCatCommand(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name       string
		files      map[string]string
		args       []string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "missing path returns error",
			args:       []string{"cat"},
			wantExit:   1,
			wantStderr: "path is required",
		},
		{
			name:       "single file is printed",
			files:      map[string]string{"a.txt": "alpha\n"},
			args:       []string{"cat", "a.txt"},
			wantStdout: "alpha\n",
		},
		{
			name:       "files are concatenated in order",
			files:      map[string]string{"a.txt": "alpha\n", "b.txt": "beta\n"},
			args:       []string{"cat", "b.txt", "a.txt"},
			wantStdout: "beta\nalpha\n",
		},
		{
			name:       "missing file is skipped with warning",
			files:      map[string]string{"a.txt": "alpha\n"},
			args:       []string{"cat", "nope.txt", "a.txt"},
			wantExit:   1,
			wantStdout: "alpha\n",
			wantStderr: "warning: nope.txt: not found",
		},
		{
			name:       "empty file prints nothing",
			files:      map[string]string{"empty": ""},
			args:       []string{"cat", "empty"},
			wantStdout: "",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			for name, content := range tt.files {
				c.WriteFile(name, []byte(content))
			}

			stdout, stderr, exitCode := c.Run(tt.args...)

			if got, want := exitCode, tt.wantExit; got != want {
				t.Errorf("exitCode=%d, want=%d (stderr=%q)", got, want, stderr)
			}

			if got, want := stdout, tt.wantStdout; got != want {
				t.Errorf("stdout=%q, want=%q", got, want)
			}

			if tt.wantStderr != "" {
				if got, want := stderr, tt.wantStderr; !strings.Contains(got, want) {
					t.Errorf("stderr=%q, want to contain %q", got, want)
				}
			}
		})
	}
}

func TestCatLargeFileWithSmallBuffer(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	content := strings.Repeat("0123456789", 1000)
	c.WriteFile("big.txt", []byte(content))

	stdout, stderr, exitCode := c.Run("--buffer-size", "7", "cat", "big.txt")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d (stderr=%q)", got, want, stderr)
	}

	if stdout != content {
		t.Errorf("stdout length=%d, want=%d", len(stdout), len(content))
	}
}
