// Package sequence owns the per-file write and verify lifecycle: deterministic
// file naming, block generation, the write-then-read comparison loop, and the
// registry of handles kept open under the immediate-unlink policy.
package sequence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	// BlockSize is the unit of generation, writing, and comparison.
	BlockSize = 1 << 20

	// filePrefix is the constant part of every generated file name. The write
	// and verify phases must agree on the format, so it is fixed here and
	// nowhere else.
	filePrefix = "random-"

	miB = 1 << 20
)

// FileName returns the name of the data file with the given sequence number.
func FileName(num uint64) string {
	return fmt.Sprintf("%s%08d", filePrefix, num)
}

// Config holds the parameters shared by the write and verify paths.
type Config struct {
	// Seed is the base seed. File number n is generated from a stream seeded
	// with Seed + n + 1.
	Seed uint64

	// FileSizeMiB is the nominal size of each file in MiB.
	FileSizeMiB uint64

	// FileLimit caps the number of files written. Zero means fill until the
	// disk reports no space.
	FileLimit uint64

	// ExpectedFiles, when non-zero, is the anticipated total file count used
	// for ETA reporting. It does not bound the run.
	ExpectedFiles uint64

	// UnlinkImmediate removes each file's directory entry right after
	// creation. The data stays reachable through the open handle, which is
	// retained in a Registry for the verify phase.
	UnlinkImmediate bool

	// Dir is the directory holding the data files.
	Dir string
}

// Sequencer writes and verifies a sequence of deterministically named,
// deterministically filled files. It is not safe for concurrent use; the
// parallel fill mode manages its own per-worker buffers.
type Sequencer struct {
	cfg    Config
	logger zerolog.Logger
	block  []byte

	// writeTo wraps a file's write side. Tests substitute a constrained
	// writer to simulate a disk filling up mid-block.
	writeTo func(*os.File) io.Writer
}

// New creates a Sequencer. The block buffer is allocated once and reused for
// every block of every file.
func New(cfg Config) *Sequencer {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	return &Sequencer{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		block:   make([]byte, BlockSize),
		writeTo: func(f *os.File) io.Writer { return f },
	}
}

// SetLogger sets the logger used for progress and error reporting.
func (s *Sequencer) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func (s *Sequencer) path(num uint64) string {
	return filepath.Join(s.cfg.Dir, FileName(num))
}

// fileSeed returns the stream seed for file number num. The index is
// incremented before first use, so file random-00000000 is seeded Seed+1.
func (s *Sequencer) fileSeed(num uint64) uint64 {
	return s.cfg.Seed + num + 1
}

// progress emits a per-file throughput line, with an ETA when the expected
// total file count is known.
func (s *Sequencer) progress(verb string, num uint64, total int64, elapsed time.Duration) {
	secs := elapsed.Seconds()
	mib := float64(total) / miB
	ev := s.logger.Info().
		Str("file", FileName(num)).
		Float64("mib", mib)
	if secs > 0 {
		rate := mib / secs
		ev = ev.Float64("mib_per_sec", rate)
		if s.cfg.ExpectedFiles > num+1 && rate > 0 {
			left := float64((s.cfg.ExpectedFiles-num-1)*s.cfg.FileSizeMiB) / rate
			ev = ev.Dur("eta", time.Duration(left*float64(time.Second)))
		}
	}
	ev.Msg(verb)
}
