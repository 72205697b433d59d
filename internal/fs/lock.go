package fs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWouldBlock is returned when a lock cannot be acquired without waiting.
	//
	// It is returned by [Locker.TryLock] when another open file holds a
	// conflicting lock, and by [Locker.LockWithTimeout] when the timeout
	// expires.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned when a timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")
)

// LockMode selects a shared or exclusive advisory lock.
type LockMode int

const (
	// LockShared allows other shared holders and blocks exclusive ones.
	LockShared LockMode = iota + 1
	// LockExclusive blocks every other holder.
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}

// Locker takes advisory flock(2) locks on open files.
//
// flock applies to an open file description, not a pathname: two handles
// opened separately on the same file conflict even inside one process, and
// closing the descriptor releases its lock. All cooperating readers and
// writers must take the lock for it to have effect.
//
// Locks are only supported on Unix. Elsewhere every lock call fails with an
// error wrapping [errors.ErrUnsupported].
//
// Locker has no mutable state and is safe for concurrent use. The [File]
// must expose a real OS descriptor via [File.Fd].
type Locker struct {
	flock func(fd int, how int) error
}

// NewLocker creates a Locker backed by the flock system call.
func NewLocker() *Locker {
	return &Locker{flock: sysFlock}
}

// TryLock locks f without waiting.
//
// Returns [ErrWouldBlock] if a conflicting lock is held elsewhere.
func (l *Locker) TryLock(f File, mode LockMode) error {
	return l.lockPolling(f, mode, 0)
}

// LockWithTimeout locks f, retrying with exponential backoff (1ms to 25ms)
// until timeout expires. The timeout is best-effort and may overshoot
// slightly under scheduler delay.
//
// Returns an error satisfying [errors.Is] with [ErrWouldBlock] if the
// timeout expires, and [ErrInvalidTimeout] if timeout <= 0.
func (l *Locker) LockWithTimeout(f File, mode LockMode, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", ErrInvalidTimeout)
	}

	return l.lockPolling(f, mode, timeout)
}

// Unlock releases a lock taken on f. Unlocking a file that holds no lock is
// not an error.
func (l *Locker) Unlock(f File) error {
	if err := flockRetryEINTR(l.flock, int(f.Fd()), flockUnlock); err != nil {
		return fmt.Errorf("unlocking %s: %w", f.Name(), err)
	}

	return nil
}

// lockPolling attempts to acquire a lock using non-blocking flock with retries.
//
//   - timeout == 0: try once (TryLock behavior)
//   - timeout > 0: retry with backoff until timeout (LockWithTimeout behavior)
func (l *Locker) lockPolling(f File, mode LockMode, timeout time.Duration) error {
	how, err := flockHow(mode)
	if err != nil {
		return err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	fd := int(f.Fd())
	backoff := time.Millisecond

	for {
		err := flockRetryEINTR(l.flock, fd, how|flockNonBlock)
		if err == nil {
			return nil
		}

		if !isWouldBlock(err) {
			return fmt.Errorf("flock %s: %w", f.Name(), err)
		}

		if timeout == 0 {
			return ErrWouldBlock
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: timed out after %s", ErrWouldBlock, timeout)
		}

		time.Sleep(min(backoff, remaining))

		backoff = min(2*backoff, 25*time.Millisecond)
	}
}

func flockHow(mode LockMode) (int, error) {
	switch mode {
	case LockShared:
		return flockShared, nil
	case LockExclusive:
		return flockExclusive, nil
	default:
		return 0, fmt.Errorf("invalid lock mode %s", mode)
	}
}

// flockRetryEINTR wraps flock, retrying on EINTR.
//
// EINTR means the syscall was interrupted by a signal before it could
// complete (SIGWINCH, SIGCHLD, timers). The call did not fail; it needs to be
// retried. Retries are capped to avoid spinning forever under a pathological
// signal storm.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !isEINTR(err) {
			return err
		}
	}

	return err
}

