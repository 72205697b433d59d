//go:build linux || darwin

package fs

import (
	"errors"

	"golang.org/x/sys/unix"
)

const (
	flockShared    = unix.LOCK_SH
	flockExclusive = unix.LOCK_EX
	flockUnlock    = unix.LOCK_UN
	flockNonBlock  = unix.LOCK_NB
)

func sysFlock(fd int, how int) error {
	return unix.Flock(fd, how)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

func isEINTR(err error) bool {
	return errors.Is(err, unix.EINTR)
}
