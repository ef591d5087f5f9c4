package sequence

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrNoData is returned by Verify when the very first data file cannot be
// opened: there is nothing to check.
var ErrNoData = errors.New("no data files found")

// MismatchError reports the first word of a file that does not match the
// regenerated stream. It is fatal for the whole run.
type MismatchError struct {
	File   string
	Block  uint64
	Offset int64 // byte offset of the mismatching word within the block
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatch to random sequence in file %s block %d at offset %d",
		e.File, e.Block, e.Offset)
}

// TruncationError reports a file that is shorter than the write phase
// recorded. Unlike a disk-full short final file, this means data went missing.
type TruncationError struct {
	File     string
	Expected int64
	Actual   int64
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("unexpected short file %s: have %d bytes, expected %d",
		e.File, e.Actual, e.Expected)
}

// isNoSpace reports whether err is the expected end-of-fill condition: the
// filesystem has no room (or no quota) left.
func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}

// isRetryable reports whether a read or write should simply be reissued.
func isRetryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}
