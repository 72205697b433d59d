package cli_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/fstream/internal/cli"
)

func TestDemoWritesAndReadsBack(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("demo")

	want := "written to testfile.bin: 222 128\nread from testfile.bin: [222 128]"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]byte{222, 128}, c.ReadFile("testfile.bin")); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestDemoOverwritesGivenPath(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("custom.bin", []byte("stale bytes"))

	stdout := c.MustRun("demo", "custom.bin")

	cli.AssertContains(t, stdout, "read from custom.bin: [222 128]")

	if diff := cmp.Diff([]byte{222, 128}, c.ReadFile("custom.bin")); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestDemoFailsWhenPathUnwritable(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("demo", "missing/dir/out.bin")

	cli.AssertContains(t, stderr, "not found")
}
