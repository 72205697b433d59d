package fs

import (
	"io/fs"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	// Stream faults
	ReadFailRate     float64 // Fail Read entirely
	PartialReadRate  float64 // Return a short read
	WriteFailRate    float64 // Fail Write entirely
	PartialWriteRate float64 // Write partial data then fail (simulates crash)
	SyncFailRate     float64 // Fail Sync
	CloseFailRate    float64 // Close the descriptor but report EIO

	// Path faults
	OpenFailRate    float64 // Fail Open/OpenFile/CreateTemp
	StatFailRate    float64 // Fail Stat/Exists
	RemoveFailRate  float64 // Fail Remove
	ReplaceFailRate float64 // Fail Replace
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		ReadFailRate:     0.02,
		PartialReadRate:  0.05,
		WriteFailRate:    0.02,
		PartialWriteRate: 0.03,
		SyncFailRate:     0.02,
		CloseFailRate:    0.01,
		OpenFailRate:     0.02,
		StatFailRate:     0.01,
		RemoveFailRate:   0.02,
		ReplaceFailRate:  0.02,
	}
}

// PathState tracks the fault state of a path for consistent error injection.
type PathState int

const (
	// PathNormal means no persistent fault - errors are transient.
	// This is the zero value, so untracked paths are normal.
	PathNormal PathState = iota
	// PathIOError is sticky - the path has a "bad sector" and always returns EIO.
	PathIOError
	// PathReadOnly is sticky for writes - filesystem is read-only, returns EROFS.
	PathReadOnly
)

// ChaosMode controls how Chaos behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS.
	// It ignores fault rates and also ignores any sticky path state.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject enables fault-rate injection and sticky path state.
	ChaosModeInject

	// ChaosModeStickyOnly applies only sticky path state. Fault rates are disabled.
	ChaosModeStickyOnly
)

// Chaos wraps an [FS] and injects random failures for testing.
//
// Errors are state-aware: once a path gets EIO (bad sector), it stays broken.
// Errors are also reality-aware: ENOENT is only returned if the file really
// doesn't exist on the underlying filesystem.
//
// All injected errors are real OS errors (syscall.Errno wrapped in
// *fs.PathError) so errors.Is and os.IsNotExist keep working. Use
// [IsInjected] to tell them apart from genuine failures.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	mu         sync.RWMutex
	pathStates map[string]PathState

	openFails     atomic.Int64
	readFails     atomic.Int64
	writeFails    atomic.Int64
	partialReads  atomic.Int64
	partialWrites atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	statFails     atomic.Int64
	removeFails   atomic.Int64
	replaceFails  atomic.Int64
}

// NewChaos creates a new Chaos filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
func NewChaos(fs FS, seed int64, config ChaosConfig) *Chaos {
	return &Chaos{
		fs:         fs,
		rng:        rand.New(rand.NewSource(seed)),
		config:     config,
		pathStates: make(map[string]PathState),
	}
}

// SetMode updates Chaos behavior. Safe to call concurrently with file
// operations. Switching modes never clears sticky path state.
//
// The zero value (and default for a new [Chaos]) is [ChaosModePassthrough].
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	WriteFails    int64
	PartialReads  int64
	PartialWrites int64
	SyncFails     int64
	CloseFails    int64
	StatFails     int64
	RemoveFails   int64
	ReplaceFails  int64
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialReads:  c.partialReads.Load(),
		PartialWrites: c.partialWrites.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		StatFails:     c.statFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		ReplaceFails:  c.replaceFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.OpenFails + s.ReadFails + s.WriteFails + s.PartialReads +
		s.PartialWrites + s.SyncFails + s.CloseFails + s.StatFails +
		s.RemoveFails + s.ReplaceFails
}

// PathState returns the current fault state for a path (for testing).
func (c *Chaos) PathState(path string) PathState {
	return c.getState(path)
}

// MarkPath forces a sticky fault state on a path (for testing).
func (c *Chaos) MarkPath(path string, state PathState) {
	c.setState(path, state)
}

// ResetAllPathStates clears all fault states (for testing).
func (c *Chaos) ResetAllPathStates() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pathStates = make(map[string]PathState)
}

func (c *Chaos) currentMode() ChaosMode {
	return ChaosMode(c.mode.Load())
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(mode ChaosMode, rate float64) bool {
	if mode != ChaosModeInject || rate <= 0 {
		return false
	}

	return c.randFloat() < rate
}

// randFloat returns a random float64 in [0.0, 1.0) (thread-safe).
func (c *Chaos) randFloat() float64 {
	c.mu.Lock()
	result := c.rng.Float64()
	c.mu.Unlock()

	return result
}

// randIntn returns a random int in [0, n) (thread-safe).
func (c *Chaos) randIntn(n int) int {
	c.mu.Lock()
	result := c.rng.Intn(n)
	c.mu.Unlock()

	return result
}

func (c *Chaos) getState(path string) PathState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pathStates[path]
}

func (c *Chaos) setState(path string, state PathState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state == PathNormal {
		delete(c.pathStates, path)
	} else {
		c.pathStates[path] = state
	}
}

// errToState converts an error to a path state for tracking.
func errToState(err syscall.Errno) PathState {
	switch err {
	case syscall.EIO:
		return PathIOError
	case syscall.EROFS:
		return PathReadOnly
	default:
		return PathNormal
	}
}

// pathError creates an *fs.PathError with the given operation, path, and errno.
// This matches what the real OS returns, so errors.Is() works correctly.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}
	markInjectedPathError(pe)

	return pe
}

// pickError selects an error that is consistent with the path's sticky
// state and its real existence, and records the resulting state.
func (c *Chaos) pickError(op string, path string) (syscall.Errno, error) {
	var valid []syscall.Errno

	switch op {
	case "open", "stat", "remove", "replace":
		exists, err := c.fs.Exists(path)
		if err != nil {
			return 0, err
		}

		switch {
		case op == "remove" && !exists:
			valid = []syscall.Errno{syscall.ENOENT}
		case exists:
			valid = []syscall.Errno{syscall.EACCES, syscall.EIO}
		default:
			valid = []syscall.Errno{syscall.ENOENT, syscall.EACCES, syscall.EIO}
		}

	case "read", "close", "sync":
		valid = []syscall.Errno{syscall.EIO, syscall.EINTR}

	case "write", "create":
		valid = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}

	default:
		valid = []syscall.Errno{syscall.EIO}
	}

	errno := valid[c.randIntn(len(valid))]
	c.setState(path, errToState(errno))

	return errno, nil
}

// openFault decides whether an open-like call on path fails.
// Returns nil when the call should proceed.
func (c *Chaos) openFault(mode ChaosMode, op, path string, isWrite bool) error {
	switch c.getState(path) {
	case PathIOError:
		c.openFails.Add(1)

		return pathError(op, path, syscall.EIO)
	case PathReadOnly:
		if isWrite {
			c.openFails.Add(1)

			return pathError(op, path, syscall.EROFS)
		}
	}

	if !c.should(mode, c.config.OpenFailRate) {
		return nil
	}

	pick := "open"
	if isWrite {
		pick = "create"
	}

	errno, err := c.pickError(pick, path)
	if err != nil {
		return err
	}

	c.openFails.Add(1)

	return pathError(op, path, errno)
}

func (c *Chaos) wrap(f File, path string) File {
	return &chaosFile{f: f, chaos: c, path: path}
}

// --- File Operations ---

func (c *Chaos) Open(path string) (File, error) {
	mode := c.currentMode()
	if mode != ChaosModePassthrough {
		if err := c.openFault(mode, "open", path, false); err != nil {
			return nil, err
		}
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return c.wrap(f, path), nil
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	mode := c.currentMode()
	if mode != ChaosModePassthrough {
		isWrite := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0
		if err := c.openFault(mode, "open", path, isWrite); err != nil {
			return nil, err
		}
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return c.wrap(f, path), nil
}

// NewFile never injects: the descriptor is already open.
func (c *Chaos) NewFile(fd uintptr, name string) (File, error) {
	f, err := c.fs.NewFile(fd, name)
	if err != nil {
		return nil, err
	}

	return c.wrap(f, name), nil
}

func (c *Chaos) CreateTemp(dir, pattern string) (File, error) {
	mode := c.currentMode()
	if mode != ChaosModePassthrough {
		if err := c.openFault(mode, "createtemp", dir, true); err != nil {
			return nil, err
		}
	}

	f, err := c.fs.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}

	return c.wrap(f, f.Name()), nil
}

// --- Metadata ---

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	mode := c.currentMode()
	if mode == ChaosModePassthrough {
		return c.fs.Stat(path)
	}

	if c.getState(path) == PathIOError {
		c.statFails.Add(1)

		return nil, pathError("stat", path, syscall.EIO)
	}

	if c.should(mode, c.config.StatFailRate) {
		errno, err := c.pickError("stat", path)
		if err != nil {
			return nil, err
		}

		c.statFails.Add(1)

		return nil, pathError("stat", path, errno)
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	_, err := c.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

func (c *Chaos) Remove(path string) error {
	mode := c.currentMode()
	if mode == ChaosModePassthrough {
		return c.fs.Remove(path)
	}

	if c.should(mode, c.config.RemoveFailRate) {
		errno, err := c.pickError("remove", path)
		if err != nil {
			return err
		}

		c.removeFails.Add(1)

		return pathError("remove", path, errno)
	}

	return c.fs.Remove(path)
}

func (c *Chaos) Replace(src, dst string) error {
	mode := c.currentMode()
	if mode == ChaosModePassthrough {
		return c.fs.Replace(src, dst)
	}

	if c.getState(dst) == PathReadOnly {
		c.replaceFails.Add(1)

		return pathError("replace", dst, syscall.EROFS)
	}

	if c.should(mode, c.config.ReplaceFailRate) {
		errno, err := c.pickError("replace", src)
		if err != nil {
			return err
		}

		c.replaceFails.Add(1)

		return pathError("replace", dst, errno)
	}

	return c.fs.Replace(src, dst)
}

// --- chaosFile wraps a File and injects faults on Read/Write/Sync/Close ---

type chaosFile struct {
	f     File
	chaos *Chaos
	path  string
}

func (cf *chaosFile) Read(p []byte) (int, error) {
	mode := cf.chaos.currentMode()
	if mode == ChaosModePassthrough {
		return cf.f.Read(p)
	}

	if cf.chaos.getState(cf.path) == PathIOError {
		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, syscall.EIO)
	}

	if cf.chaos.should(mode, cf.chaos.config.ReadFailRate) {
		errno, err := cf.chaos.pickError("read", cf.path)
		if err != nil {
			return 0, err
		}

		cf.chaos.readFails.Add(1)

		return 0, pathError("read", cf.path, errno)
	}

	// Partial read: limit the underlying read so the offset only advances
	// by what is returned.
	if cf.chaos.should(mode, cf.chaos.config.PartialReadRate) && len(p) > 1 {
		cf.chaos.partialReads.Add(1)

		cutoff := cf.chaos.randIntn(len(p)-1) + 1 // [1, len(p)-1]

		return cf.f.Read(p[:cutoff])
	}

	return cf.f.Read(p)
}

func (cf *chaosFile) Write(p []byte) (int, error) {
	mode := cf.chaos.currentMode()
	if mode == ChaosModePassthrough {
		return cf.f.Write(p)
	}

	switch cf.chaos.getState(cf.path) {
	case PathIOError:
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, syscall.EIO)
	case PathReadOnly:
		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, syscall.EROFS)
	}

	if cf.chaos.should(mode, cf.chaos.config.WriteFailRate) {
		errno, err := cf.chaos.pickError("write", cf.path)
		if err != nil {
			return 0, err
		}

		cf.chaos.writeFails.Add(1)

		return 0, pathError("write", cf.path, errno)
	}

	if cf.chaos.should(mode, cf.chaos.config.PartialWriteRate) && len(p) > 1 {
		cf.chaos.partialWrites.Add(1)

		wrote, err := cf.f.Write(p[:len(p)/2])
		if err != nil {
			return wrote, err
		}

		errno, err := cf.chaos.pickError("write", cf.path)
		if err != nil {
			return wrote, err
		}

		return wrote, pathError("write", cf.path, errno)
	}

	return cf.f.Write(p)
}

func (cf *chaosFile) Sync() error {
	mode := cf.chaos.currentMode()
	if cf.chaos.should(mode, cf.chaos.config.SyncFailRate) {
		cf.chaos.syncFails.Add(1)

		return pathError("sync", cf.path, syscall.EIO)
	}

	return cf.f.Sync()
}

// Close always releases the descriptor, even when a failure is injected.
func (cf *chaosFile) Close() error {
	err := cf.f.Close()
	if err != nil {
		return err
	}

	if cf.chaos.should(cf.chaos.currentMode(), cf.chaos.config.CloseFailRate) {
		cf.chaos.closeFails.Add(1)

		return pathError("close", cf.path, syscall.EIO)
	}

	return nil
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	return cf.f.Seek(offset, whence)
}

func (cf *chaosFile) Name() string {
	return cf.f.Name()
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Stat() (os.FileInfo, error) {
	return cf.f.Stat()
}

func (cf *chaosFile) Truncate(size int64) error {
	return cf.f.Truncate(size)
}

func (cf *chaosFile) Chmod(mode os.FileMode) error {
	return cf.f.Chmod(mode)
}

// Compile-time interface checks.
var _ FS = (*Chaos)(nil)
var _ File = (*chaosFile)(nil)
