package sequence

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jotfs/diskfill/internal/log"
	"github.com/jotfs/diskfill/internal/stream"
)

// FillResult records what a fill pass produced, for the verify phase and the
// run manifest.
type FillResult struct {
	// Files is the number of files written, including a possibly partial
	// final file.
	Files uint64

	// LastSize is the byte length of the most recently written file. The
	// final file of a run that exhausted the disk is shorter than nominal,
	// and the verify phase must expect exactly this many bytes.
	LastSize int64

	// BytesWritten is the total across all files.
	BytesWritten int64

	// Handles holds the still-open descriptors under the immediate-unlink
	// policy, nil otherwise. Ownership passes to the caller.
	Handles *Registry

	// Full is set when the pass ended because the disk reported no space.
	Full bool
}

// Fill writes deterministically named files of pseudo-random data until the
// configured file limit is reached or the disk is full. Running out of space
// is the expected way an unbounded fill ends and is not an error; any other
// I/O failure is.
func (s *Sequencer) Fill() (*FillResult, error) {
	limit := s.cfg.FileLimit
	if limit == 0 {
		limit = ^uint64(0)
	}

	res := &FillResult{}
	if s.cfg.UnlinkImmediate {
		res.Handles = &Registry{}
	}

	s.logger.Info().
		Uint64("seed", s.cfg.Seed).
		Uint64("size_mib", s.cfg.FileSizeMiB).
		Msg("writing files " + filePrefix + "########")

	for num := uint64(0); !res.Full && num < limit; num++ {
		wtotal, err := s.fillFile(num, res)
		if err != nil {
			if res.Handles != nil {
				log.OnError(res.Handles.Close)
			}
			return nil, err
		}
		if wtotal < 0 {
			// Could not create the next file: the disk is full.
			res.Full = true
			break
		}

		res.Files++
		res.LastSize = wtotal
		res.BytesWritten += wtotal
	}

	return res, nil
}

// fillFile writes file number num. It returns the number of bytes written, or
// -1 if the file could not even be created because the disk is full. A
// partial count with res.Full set means the disk filled up mid-file.
func (s *Sequencer) fillFile(num uint64, res *FillResult) (int64, error) {
	name := FileName(num)
	f, err := os.OpenFile(s.path(num), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		if isNoSpace(err) {
			return -1, nil
		}
		return 0, fmt.Errorf("creating next file %s: %w", name, err)
	}

	if s.cfg.UnlinkImmediate {
		// Drop the directory entry now; the data stays reachable through f.
		if err := os.Remove(s.path(num)); err != nil {
			s.logger.Warn().Msgf("unlinking opened file %s: %v", name, err)
		}
		res.Handles.Append(f)
	} else {
		defer log.OnError(f.Close)
	}

	w := s.writeTo(f)
	gen := stream.New(s.fileSeed(num))
	start := time.Now()

	var wtotal int64
	for blocknum := uint64(0); blocknum < s.cfg.FileSizeMiB; blocknum++ {
		gen.Fill(s.block)

		n, err := writeFull(w, s.block)
		wtotal += int64(n)
		if err != nil {
			if isNoSpace(err) {
				res.Full = true
				break
			}
			return 0, fmt.Errorf("writing file %s: %w", name, err)
		}
	}

	s.progress("wrote file", num, wtotal, time.Since(start))
	return wtotal, nil
}

// writeFull writes all of p to w, reissuing the write after interruptions or
// partial progress. It returns the number of bytes actually written.
func writeFull(w io.Writer, p []byte) (int, error) {
	wp := 0
	for wp < len(p) {
		n, err := w.Write(p[wp:])
		wp += n
		if err != nil && !isRetryable(err) {
			return wp, err
		}
	}
	return wp, nil
}
