package sequence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jotfs/diskfill/internal/log"
	"github.com/jotfs/diskfill/internal/stream"
	"golang.org/x/sync/errgroup"
)

// FillParallel writes the configured number of files using jobs concurrent
// workers, each with its own block buffer. It requires an explicit file limit
// and is incompatible with the immediate-unlink policy: without a fill order
// there is no meaningful handle registry. Because the workers race for the
// remaining space, running out of disk here is an error rather than a clean
// end; parallel runs are meant for explicitly sized workloads.
func (s *Sequencer) FillParallel(ctx context.Context, jobs uint) (*FillResult, error) {
	if s.cfg.FileLimit == 0 {
		return nil, errors.New("parallel fill requires an explicit file limit")
	}
	if s.cfg.UnlinkImmediate {
		return nil, errors.New("parallel fill cannot retain ordered file handles")
	}

	s.logger.Info().
		Uint64("seed", s.cfg.Seed).
		Uint64("size_mib", s.cfg.FileSizeMiB).
		Uint("jobs", jobs).
		Msg("writing files " + filePrefix + "######## in parallel")

	g, ctx := errgroup.WithContext(ctx)
	nums := make(chan uint64)

	g.Go(func() error {
		defer close(nums)
		for num := uint64(0); num < s.cfg.FileLimit; num++ {
			select {
			case nums <- num:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := uint(0); i < jobs; i++ {
		g.Go(func() error {
			block := make([]byte, BlockSize)
			for num := range nums {
				if err := s.fillFileWith(num, block); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	size := int64(s.cfg.FileSizeMiB) * BlockSize
	return &FillResult{
		Files:        s.cfg.FileLimit,
		LastSize:     size,
		BytesWritten: size * int64(s.cfg.FileLimit),
	}, nil
}

// fillFileWith writes one full file using the caller's block buffer. Unlike
// the sequential path, any write failure, including a full disk, is fatal.
func (s *Sequencer) fillFileWith(num uint64, block []byte) error {
	name := FileName(num)
	f, err := os.OpenFile(s.path(num), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating next file %s: %w", name, err)
	}
	defer log.OnError(f.Close)

	w := s.writeTo(f)
	gen := stream.New(s.fileSeed(num))
	start := time.Now()

	var wtotal int64
	for blocknum := uint64(0); blocknum < s.cfg.FileSizeMiB; blocknum++ {
		gen.Fill(block)
		n, err := writeFull(w, block)
		wtotal += int64(n)
		if err != nil {
			return fmt.Errorf("writing file %s: %w", name, err)
		}
	}

	s.progress("wrote file", num, wtotal, time.Since(start))
	return nil
}
