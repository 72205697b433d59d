package stream

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/fstream/internal/fs"
)

var locker = fs.NewLocker()

// lockFile takes the advisory lock requested by [Options.Lock]: shared for
// inputs, exclusive for outputs.
func lockFile(f fs.File, exclusive bool, opts Options) error {
	mode := fs.LockShared
	if exclusive {
		mode = fs.LockExclusive
	}

	var err error
	if opts.LockTimeout > 0 {
		err = locker.LockWithTimeout(f, mode, opts.LockTimeout)
	} else {
		err = locker.TryLock(f, mode)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrWouldBlock):
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case errors.Is(err, errors.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}

func unlockFile(f fs.File) {
	_ = locker.Unlock(f)
}
