package fs

import (
	"errors"
	iofs "io/fs"
	"sync"
)

// IsInjected reports whether err (or any error it wraps) was produced by
// [Chaos] rather than by the operating system. Returns false if err is nil.
//
// [Chaos] returns plain *fs.PathError values carrying a syscall.Errno so
// os.IsNotExist and errors.Is keep working on them; the injected instances
// are remembered by pointer so tests can still tell them apart.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var pathErr *iofs.PathError
	for errors.As(err, &pathErr) {
		if _, ok := injectedPathErrors.Load(pathErr); ok {
			return true
		}

		// Keep looking below this PathError in case an injected one is
		// wrapped deeper in the chain.
		err = pathErr.Err
		if err == nil {
			return false
		}
	}

	return false
}

var injectedPathErrors sync.Map // map[*fs.PathError]struct{}

// markInjectedPathError registers a PathError as injected. Panics if err is nil.
func markInjectedPathError(err *iofs.PathError) {
	injectedPathErrors.Store(err, struct{}{})
}
