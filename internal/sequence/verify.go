package sequence

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jotfs/diskfill/internal/log"
	"github.com/jotfs/diskfill/internal/stream"
)

// VerifyParams tells the verify pass what to expect. A zero Files count with
// nil Handles means the pass discovers the file count by probing names until
// an open fails.
type VerifyParams struct {
	// Files is the expected file count. Ignored when Handles is set.
	Files uint64

	// LastSize is the expected byte length of the final file, recorded by the
	// write phase when the disk filled up mid-file. Negative means every file
	// is expected at its nominal size.
	LastSize int64

	// Handles, when non-nil, supplies the still-open descriptors of an
	// immediate-unlink run. Verification rewinds and reads them in order;
	// no name lookups happen at all.
	Handles *Registry
}

// Verify re-reads the file sequence and compares every word against the
// regenerated stream. The first mismatch or unexpected short file aborts the
// pass with a fatal error.
func (s *Sequencer) Verify(p VerifyParams) error {
	count := p.Files
	if p.Handles != nil {
		count = uint64(p.Handles.Len())
	}

	s.logger.Info().
		Uint64("seed", s.cfg.Seed).
		Uint64("size_mib", s.cfg.FileSizeMiB).
		Msg("verifying files " + filePrefix + "########")

	for num := uint64(0); count == 0 || num < count; num++ {
		f, err := s.verifyTarget(num, count, p.Handles)
		if err != nil {
			return err
		}
		if f == nil {
			break // end of sequence
		}

		expected := int64(s.cfg.FileSizeMiB) * BlockSize
		if count > 0 && num == count-1 && p.LastSize >= 0 {
			expected = p.LastSize
		}

		err = s.verifyFile(f, num, expected)
		if p.Handles == nil {
			log.OnError(f.Close)
		}
		if err != nil {
			return err
		}
	}

	if p.Handles != nil {
		s.logger.Info().Msg("finished all opened file handles")
	}
	return nil
}

// verifyTarget obtains readable access to file number num: the retained
// handle rewound to the start, or a fresh name-based open. A nil file with
// nil error means the sequence has ended.
func (s *Sequencer) verifyTarget(num uint64, count uint64, handles *Registry) (*os.File, error) {
	if handles != nil {
		if num >= uint64(handles.Len()) {
			return nil, nil
		}
		f := handles.At(int(num))
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking in file %s: %w", FileName(num), err)
		}
		return f, nil
	}

	f, err := os.Open(s.path(num))
	if err != nil {
		if num == 0 {
			return nil, ErrNoData
		}
		if count == 0 {
			// Probing: a missing file past the first marks the end of the
			// sequence.
			return nil, nil
		}
		// A count was promised, so the file should exist.
		return nil, fmt.Errorf("opening file %s: %w", FileName(num), err)
	}
	return f, nil
}

// verifyFile streams one file in block units, comparing against the
// regenerated sequence, and checks the total length read against expected.
func (s *Sequencer) verifyFile(f *os.File, num uint64, expected int64) error {
	name := FileName(num)
	gen := stream.New(s.fileSeed(num))
	start := time.Now()

	var rtotal int64
	for blocknum := uint64(0); blocknum < s.cfg.FileSizeMiB; blocknum++ {
		n, err := readFull(f, s.block)
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading file %s: %w", name, err)
		}

		if off, ok := compareBlock(s.block[:n], gen); !ok {
			return &MismatchError{File: name, Block: blocknum, Offset: off}
		}
		rtotal += int64(n)

		if err == io.EOF {
			break
		}
	}

	if rtotal != expected {
		return &TruncationError{File: name, Expected: expected, Actual: rtotal}
	}

	s.progress("read file", num, rtotal, time.Since(start))
	return nil
}

// compareBlock checks block content against the next words of the stream.
// A trailing partial word is compared prefix-wise, since a write cut short by
// a full disk may end mid-word. Returns the byte offset of the first
// mismatching word and false on failure.
func compareBlock(block []byte, gen *stream.Stream) (int64, bool) {
	n := len(block)
	i := 0
	for ; i+stream.WordSize <= n; i += stream.WordSize {
		if binary.LittleEndian.Uint64(block[i:]) != gen.Next() {
			return int64(i), false
		}
	}
	if i < n {
		var tail [stream.WordSize]byte
		binary.LittleEndian.PutUint64(tail[:], gen.Next())
		for j := i; j < n; j++ {
			if block[j] != tail[j-i] {
				return int64(i), false
			}
		}
	}
	return 0, true
}

// readFull reads into p until it is full, EOF, or an unrecoverable error.
// Interrupted reads are reissued.
func readFull(f *os.File, p []byte) (int, error) {
	rp := 0
	stalls := 0
	for rp < len(p) {
		n, err := f.Read(p[rp:])
		rp += n
		if err == io.EOF {
			return rp, io.EOF
		}
		if err != nil && !isRetryable(err) {
			return rp, err
		}
		if n == 0 {
			if stalls++; stalls > 100 {
				return rp, io.ErrNoProgress
			}
		} else {
			stalls = 0
		}
	}
	return rp, nil
}
