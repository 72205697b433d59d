package stream

import "golang.org/x/sys/unix"

// pendingBytes reports how many bytes can be read from a pipe, socket, or
// terminal without blocking.
func pendingBytes(fd uintptr) (int64, error) {
	n, err := unix.IoctlGetInt(int(fd), unix.FIONREAD)
	if err != nil {
		return 0, err
	}

	return int64(n), nil
}
