//go:build !(linux || darwin)

package fs

import (
	"errors"
	"fmt"
)

const (
	flockShared    = 1
	flockExclusive = 2
	flockNonBlock  = 4
	flockUnlock    = 8
)

func sysFlock(int, int) error {
	return fmt.Errorf("advisory locking: %w", errors.ErrUnsupported)
}

func isWouldBlock(error) bool { return false }

func isEINTR(error) bool { return false }
