package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func Test_StrictFS_Does_Not_Panic_When_The_Error_Is_Injected(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	chaos := NewChaos(NewReal(), 0, ChaosConfig{OpenFailRate: 1.0})
	chaos.SetMode(ChaosModeInject)
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})
	path := filepath.Join(t.TempDir(), "test.bin")

	_, err := strict.Open(path)
	if err == nil {
		t.Fatalf("Open(%q): want error, got nil", path)
	}

	if !IsInjected(err) {
		t.Errorf("IsInjected(err) for Open(%q): want true, got false", path)
	}

	if tb.failed {
		t.Errorf("tb.failed after injected Open(%q): want false, got true", path)
	}

	if got := strict.OpenFiles(); got != 0 {
		t.Errorf("OpenFiles after failed Open: want 0, got %d", got)
	}
}

func Test_StrictFS_Does_Not_Panic_When_The_Error_Is_EOF(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	stub := stubFS{
		open: func(string) (File, error) {
			return nil, io.EOF
		},
	}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: stub})

	_, err := strict.Open("any")
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Open(): want io.EOF, got %v", err)
	}

	if tb.failed {
		t.Fatalf("tb.failed after Open() returned io.EOF: want false, got true")
	}
}

func Test_StrictFS_Stat_Does_Not_Panic_When_Path_Does_Not_Exist(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	path := filepath.Join(t.TempDir(), "missing.bin")

	_, err := strict.Stat(path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Stat(%q): want os.ErrNotExist, got %v", path, err)
	}

	if tb.failed {
		t.Fatalf("tb.failed after Stat of missing path: want false, got true")
	}

	if !strings.Contains(strict.Trace(), "#1 stat") {
		t.Fatalf("Trace(): want stat entry, got %q", strict.Trace())
	}
}

func Test_StrictFS_OpenFiles_Counts_Files_Until_Closed(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	dir := t.TempDir()

	a, err := strict.OpenFile(filepath.Join(dir, "a.bin"), os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	b, err := strict.CreateTemp(dir, ".b.tmp-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}

	if got, want := strict.OpenFiles(), int64(2); got != want {
		t.Fatalf("OpenFiles: want %d, got %d", want, got)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close a: %v", err)
	}

	// A second Close fails in the OS but must not count twice.
	mustPanic(t, func() { _ = a.Close() })

	if got, want := strict.OpenFiles(), int64(1); got != want {
		t.Fatalf("OpenFiles after closing a: want %d, got %d", want, got)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close b: %v", err)
	}

	if got, want := strict.OpenFiles(), int64(0); got != want {
		t.Fatalf("OpenFiles after closing both: want %d, got %d", want, got)
	}
}

func Test_StrictFS_OpenFiles_Releases_File_When_Injected_Close_Fails(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	chaos := NewChaos(NewReal(), 0, ChaosConfig{CloseFailRate: 1.0})
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})

	f, err := strict.OpenFile(filepath.Join(t.TempDir(), "a.bin"), os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	chaos.SetMode(ChaosModeInject)

	if err := f.Close(); !IsInjected(err) {
		t.Fatalf("Close: want injected error, got %v", err)
	}

	if got := strict.OpenFiles(); got != 0 {
		t.Fatalf("OpenFiles: want 0, got %d", got)
	}
}

func Test_StrictFS_Trace_Is_Empty_Before_Any_Ops(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})

	if got := strict.Trace(); got != "" {
		t.Fatalf("Trace(): want empty string, got %q", got)
	}
}

func Test_StrictFS_Trace_Is_Empty_When_TraceCapacity_Is_Zero(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	capacity := 0
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal(), TraceCapacity: &capacity})

	path := filepath.Join(t.TempDir(), "file.bin")

	f, err := strict.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("OpenFile(%q): %v", path, err)
	}

	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close(%q): %v", path, err)
	}

	if got := strict.Trace(); got != "" {
		t.Fatalf("Trace() with TraceCapacity=0: want empty string, got %q", got)
	}

	tb.failed = true

	if tb.cleanup == nil {
		t.Fatal("expected StrictFS to register Cleanup")
	}

	tb.cleanup()

	if tb.logMsg != "" {
		t.Fatalf("cleanup log with TraceCapacity=0: want empty, got %q", tb.logMsg)
	}
}

func Test_StrictFS_Trace_Is_Bounded_To_TraceCapacity(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	capacity := 3
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal(), TraceCapacity: &capacity})
	dir := t.TempDir()

	paths := make([]string, 0, 5)
	for i := range 5 {
		paths = append(paths, filepath.Join(dir, fmt.Sprintf("missing-%d", i)))
	}

	for _, p := range paths {
		if _, err := strict.Exists(p); err != nil {
			t.Fatalf("Exists(%q): %v", p, err)
		}
	}

	trace := strict.Trace()

	lines := splitTraceLines(trace)
	if want, got := 3, len(lines); want != got {
		t.Fatalf("Trace() line count: want %d, got %d\ntrace:\n%s", want, got, trace)
	}

	for _, p := range paths[:2] {
		if strings.Contains(trace, fmt.Sprintf("path=%q", p)) {
			t.Fatalf("Trace() should not include %q\ntrace:\n%s", p, trace)
		}
	}

	for _, p := range paths[2:] {
		if !strings.Contains(trace, fmt.Sprintf("path=%q", p)) {
			t.Fatalf("Trace() should include %q\ntrace:\n%s", p, trace)
		}
	}
}

func Test_StrictFS_Trace_Records_Ops_In_Order(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	dir := t.TempDir()

	target := filepath.Join(dir, "data.bin")

	var tmp, in File

	steps := []struct {
		op  string
		run func() error
	}{
		{op: "exists", run: func() error { _, err := strict.Exists(target); return err }},
		{
			op: "createtemp",
			run: func() error {
				var err error
				tmp, err = strict.CreateTemp(dir, ".data.bin.tmp-*")

				return err
			},
		},
		{op: "file.write", run: func() error { _, err := tmp.Write([]byte("hello")); return err }},
		{op: "file.chmod", run: func() error { return tmp.Chmod(0o640) }},
		{op: "file.sync", run: func() error { return tmp.Sync() }},
		{op: "file.close", run: func() error { return tmp.Close() }},
		{op: "replace", run: func() error { return strict.Replace(tmp.Name(), target) }},
		{op: "stat", run: func() error { _, err := strict.Stat(target); return err }},
		{
			op: "open",
			run: func() error {
				var err error
				in, err = strict.Open(target)

				return err
			},
		},
		{op: "file.stat", run: func() error { _, err := in.Stat(); return err }},
		{
			op: "file.read",
			run: func() error {
				buf := make([]byte, 5)

				n, err := in.Read(buf)
				if err != nil {
					return err
				}

				if string(buf[:n]) != "hello" {
					return fmt.Errorf("read %q, want %q", buf[:n], "hello")
				}

				return nil
			},
		},
		{op: "file.seek", run: func() error { _, err := in.Seek(0, io.SeekStart); return err }},
		{op: "file.close", run: func() error { return in.Close() }},
		{op: "remove", run: func() error { return strict.Remove(target) }},
	}

	wantOps := make([]string, 0, len(steps))
	for _, s := range steps {
		wantOps = append(wantOps, s.op)
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.op, err)
		}
	}

	assertTraceOps(t, strict.Trace(), wantOps)
}

func Test_StrictFS_Panics_For_Each_Method_When_The_Underlying_FS_Errors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	base := alwaysErrFS{err: errBoom}

	tests := []struct {
		name    string
		traceOp string
		call    func(*StrictTestFS)
	}{
		{"Open", "open", func(s *StrictTestFS) { _, _ = s.Open("x") }},
		{"OpenFile", "openfile", func(s *StrictTestFS) { _, _ = s.OpenFile("x", os.O_RDONLY, 0o644) }},
		{"NewFile", "newfile", func(s *StrictTestFS) { _, _ = s.NewFile(3, "x") }},
		{"CreateTemp", "createtemp", func(s *StrictTestFS) { _, _ = s.CreateTemp("x", "*") }},
		{"Stat", "stat", func(s *StrictTestFS) { _, _ = s.Stat("x") }},
		{"Exists", "exists", func(s *StrictTestFS) { _, _ = s.Exists("x") }},
		{"Remove", "remove", func(s *StrictTestFS) { _ = s.Remove("x") }},
		{"Replace", "replace", func(s *StrictTestFS) { _ = s.Replace("x", "y") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: base})

			panicMsg := mustPanic(t, func() { tt.call(strict) })
			if !strings.Contains(panicMsg, errBoom.Error()) {
				t.Fatalf("panic message: want %q, got %q", errBoom.Error(), panicMsg)
			}

			if !strings.Contains(panicMsg, "#1 "+tt.traceOp) {
				t.Fatalf("panic message: want trace op %q, got %q", "#1 "+tt.traceOp, panicMsg)
			}

			if !tb.failed {
				t.Fatal("tb.failed after real error: want true, got false")
			}
		})
	}
}

func Test_StrictFile_Fd_Returns_The_Underlying_Fd(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	stubFile := &testFile{fd: 123}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{
		FS: stubFS{
			open: func(string) (File, error) { return stubFile, nil },
		},
	})

	f, err := strict.Open("ignored")
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}

	if got, want := f.Fd(), uintptr(123); got != want {
		t.Fatalf("Fd(): want %d, got %d", want, got)
	}
}

func Test_StrictFile_Panics_For_Each_Method_When_The_Underlying_File_Errors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		traceOp string
		file    *testFile
		call    func(File)
	}{
		{"Read", "file.read", &testFile{readErr: errBoom}, func(f File) { _, _ = f.Read(make([]byte, 1)) }},
		{"Write", "file.write", &testFile{writeErr: errBoom}, func(f File) { _, _ = f.Write([]byte("x")) }},
		{"Close", "file.close", &testFile{closeErr: errBoom}, func(f File) { _ = f.Close() }},
		{"Seek", "file.seek", &testFile{seekErr: errBoom}, func(f File) { _, _ = f.Seek(0, io.SeekStart) }},
		{"Stat", "file.stat", &testFile{statErr: errBoom}, func(f File) { _, _ = f.Stat() }},
		{"Sync", "file.sync", &testFile{syncErr: errBoom}, func(f File) { _ = f.Sync() }},
		{"Truncate", "file.truncate", &testFile{truncateErr: errBoom}, func(f File) { _ = f.Truncate(0) }},
		{"Chmod", "file.chmod", &testFile{chmodErr: errBoom}, func(f File) { _ = f.Chmod(0o600) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			strict := NewStrictTestFS(tb, StrictTestFSOptions{
				FS: stubFS{
					open: func(string) (File, error) { return tt.file, nil },
				},
			})

			f, err := strict.Open("ignored")
			if err != nil {
				t.Fatalf("Open(): %v", err)
			}

			panicMsg := mustPanic(t, func() { tt.call(f) })
			if !strings.Contains(panicMsg, errBoom.Error()) {
				t.Fatalf("panic message: want %q, got %q", errBoom.Error(), panicMsg)
			}

			if !strings.Contains(panicMsg, "#2 "+tt.traceOp) {
				t.Fatalf("panic message: want trace op %q, got %q", "#2 "+tt.traceOp, panicMsg)
			}

			if !tb.failed {
				t.Fatal("tb.failed after real file error: want true, got false")
			}
		})
	}
}

func Test_StrictFile_Does_Not_Panic_For_Injected_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config ChaosConfig
		call   func(File) error
	}{
		{
			name:   "Read",
			config: ChaosConfig{ReadFailRate: 1.0},
			call:   func(f File) error { _, err := f.Read(make([]byte, 1)); return err },
		},
		{
			name:   "Write",
			config: ChaosConfig{WriteFailRate: 1.0},
			call:   func(f File) error { _, err := f.Write([]byte("x")); return err },
		},
		{
			name:   "PartialWrite",
			config: ChaosConfig{PartialWriteRate: 1.0},
			call:   func(f File) error { _, err := f.Write([]byte("hello")); return err },
		},
		{
			name:   "Sync",
			config: ChaosConfig{SyncFailRate: 1.0},
			call:   func(f File) error { return f.Sync() },
		},
		{
			name:   "Close",
			config: ChaosConfig{CloseFailRate: 1.0},
			call:   func(f File) error { return f.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &fakeTB{}
			chaos := NewChaos(NewReal(), 0, tt.config)
			strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: chaos})
			path := filepath.Join(t.TempDir(), "test.bin")

			f, err := strict.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
			if err != nil {
				t.Fatalf("OpenFile(%q): %v", path, err)
			}

			if tt.name != "Close" {
				defer func() { _ = f.Close() }()
			}

			chaos.SetMode(ChaosModeInject)

			err = tt.call(f)
			if err == nil {
				t.Fatalf("%s(): want error, got nil", tt.name)
			}

			if !IsInjected(err) {
				t.Fatalf("IsInjected(err) after %s(): want true, got false (err=%v)", tt.name, err)
			}

			chaos.SetMode(ChaosModePassthrough)

			if tb.failed {
				t.Fatalf("tb.failed after injected %s(): want false, got true", tt.name)
			}
		})
	}
}

func Test_StrictFS_Cleanup_Logs_Trace_Only_When_The_Test_Fails(t *testing.T) {
	t.Parallel()

	tb := &fakeTB{}
	strict := NewStrictTestFS(tb, StrictTestFSOptions{FS: NewReal()})
	path := filepath.Join(t.TempDir(), "test.bin")

	f, _ := strict.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if f != nil {
		_, _ = f.Write([]byte("hello"))
		_ = f.Close()
	}

	if tb.cleanup == nil {
		t.Fatal("expected StrictFS to register Cleanup")
	}

	tb.cleanup()

	if tb.logMsg != "" {
		t.Fatalf("tb.logMsg after cleanup without failure: want empty string, got %q", tb.logMsg)
	}

	tb.failed = true
	tb.cleanup()

	if tb.logMsg == "" {
		t.Fatal("tb.logMsg after cleanup: want trace output, got empty string")
	}

	if !strings.Contains(tb.logMsg, "#1 openfile") {
		t.Errorf("tb.logMsg: want substring %q, got %q", "#1 openfile", tb.logMsg)
	}
}

// --- Test helpers ---

type fakeTB struct {
	failed  bool
	logMsg  string
	cleanup func()
}

func (f *fakeTB) Helper() {}

func (f *fakeTB) Cleanup(fn func()) {
	f.cleanup = fn
}

func (f *fakeTB) Failed() bool {
	return f.failed
}

func (f *fakeTB) Logf(format string, args ...any) {
	f.logMsg = fmt.Sprintf(format, args...)
}

func (f *fakeTB) Fatalf(format string, args ...any) {
	f.failed = true
	panic(fmt.Sprintf(format, args...))
}

type alwaysErrFS struct {
	err error
}

func (e alwaysErrFS) Open(string) (File, error)                       { return nil, e.err }
func (e alwaysErrFS) OpenFile(string, int, os.FileMode) (File, error) { return nil, e.err }
func (e alwaysErrFS) NewFile(uintptr, string) (File, error)           { return nil, e.err }
func (e alwaysErrFS) CreateTemp(string, string) (File, error)         { return nil, e.err }
func (e alwaysErrFS) Stat(string) (os.FileInfo, error)                { return nil, e.err }
func (e alwaysErrFS) Exists(string) (bool, error)                     { return false, e.err }
func (e alwaysErrFS) Remove(string) error                             { return e.err }
func (e alwaysErrFS) Replace(string, string) error                    { return e.err }

// stubFS returns files from open; every other method defers to the zero alwaysErrFS.
type stubFS struct {
	alwaysErrFS

	open func(path string) (File, error)
}

func (s stubFS) Open(path string) (File, error) {
	if s.open == nil {
		panic("stubFS.Open: not implemented")
	}

	return s.open(path)
}

type testFile struct {
	fd uintptr

	readErr     error
	writeErr    error
	closeErr    error
	seekErr     error
	statErr     error
	syncErr     error
	truncateErr error
	chmodErr    error
}

func (f *testFile) Read([]byte) (int, error)       { return 0, f.readErr }
func (f *testFile) Write([]byte) (int, error)      { return 0, f.writeErr }
func (f *testFile) Close() error                   { return f.closeErr }
func (f *testFile) Seek(int64, int) (int64, error) { return 0, f.seekErr }
func (f *testFile) Name() string                   { return "stub" }
func (f *testFile) Fd() uintptr                    { return f.fd }
func (f *testFile) Stat() (os.FileInfo, error)     { return nil, f.statErr }
func (f *testFile) Sync() error                    { return f.syncErr }
func (f *testFile) Truncate(int64) error           { return f.truncateErr }
func (f *testFile) Chmod(os.FileMode) error        { return f.chmodErr }

func mustPanic(t *testing.T, fn func()) (msg string) {
	t.Helper()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic, got none")
		}

		msg = fmt.Sprint(r)
	}()

	fn()

	return ""
}

func splitTraceLines(trace string) []string {
	if trace == "" {
		return nil
	}

	return strings.Split(trace, "\n")
}

func assertTraceOps(t *testing.T, trace string, wantOps []string) {
	t.Helper()

	if trace == "" {
		t.Fatal("Trace(): want non-empty trace, got empty string")
	}

	lines := splitTraceLines(trace)
	if want, got := len(wantOps), len(lines); want != got {
		t.Fatalf("Trace() line count: want %d, got %d\ntrace:\n%s", want, got, trace)
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			t.Fatalf("Trace()[%d]: invalid trace line %q\ntrace:\n%s", i, line, trace)
		}

		if !strings.Contains(line, "path=") {
			t.Fatalf("Trace()[%d]: missing path in line %q\ntrace:\n%s", i, line, trace)
		}

		if got, want := fields[1], wantOps[i]; got != want {
			t.Fatalf("Trace()[%d] op: want %q, got %q\nline: %q\ntrace:\n%s", i, want, got, line, trace)
		}
	}
}

var (
	_ TestBuilder = (*fakeTB)(nil)
	_ FS          = alwaysErrFS{}
	_ FS          = stubFS{}
	_ File        = (*testFile)(nil)
)
