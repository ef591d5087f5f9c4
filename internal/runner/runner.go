// Package runner drives a full test cycle over the file sequence: remove
// stale files, fill the disk, verify by regeneration, then optionally remove
// the evidence. The cycle may repeat, or start directly at verification for
// an existing data set.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/jotfs/diskfill/internal/log"
	"github.com/jotfs/diskfill/internal/sequence"
	"github.com/jotfs/diskfill/internal/space"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	// Seed is the base seed for the deterministic stream.
	Seed uint64

	// FileSizeMiB is the nominal per-file size.
	FileSizeMiB uint64

	// FileLimit caps the number of files written, or read during a read-only
	// run. Zero means unbounded: the fill runs until the disk is full, and a
	// read-only run probes names until one is missing.
	FileLimit uint64

	// LastSize is the expected size of the final file in a read-only run,
	// usually recovered from the run manifest. Negative means nominal size.
	LastSize int64

	// ReadOnly skips the clean and fill phases and verifies existing files.
	ReadOnly bool

	// UnlinkImmediate removes each file right after creation and verifies
	// through retained handles.
	UnlinkImmediate bool

	// UnlinkAfter removes the files once the whole run, including
	// verification, has succeeded.
	UnlinkAfter bool

	// SkipVerify performs the fill only, for wipe-style runs.
	SkipVerify bool

	// Repeat is the number of full cycles to run. Zero means one.
	Repeat uint

	// Jobs is the number of concurrent fill workers. Values above one switch
	// the fill to parallel mode, which requires FileLimit to be set.
	Jobs uint

	// Dir is the directory holding the data files.
	Dir string
}

// Runner executes the configured cycle.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Repeat == 0 {
		cfg.Repeat = 1
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = 1
	}
	return &Runner{cfg: cfg, logger: zerolog.Nop()}
}

// SetLogger sets the logger used by the runner and the sequencers it creates.
func (r *Runner) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

// Run executes the configured number of cycles. The first fatal error aborts
// the whole run.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.FileSizeMiB == 0 {
		return errors.New("file size must be greater than zero")
	}
	for i := uint(0); i < r.cfg.Repeat; i++ {
		logger := r.logger.With().Str("run", xid.New().String()).Logger()
		if r.cfg.Repeat > 1 {
			logger.Info().Msgf("cycle %d of %d", i+1, r.cfg.Repeat)
		}
		if err := r.runOnce(ctx, logger); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runOnce(ctx context.Context, logger zerolog.Logger) error {
	if r.cfg.ReadOnly {
		return r.runReadOnly(logger)
	}

	r.cleanFiles(logger, "removing old files")

	cfg := sequence.Config{
		Seed:            r.cfg.Seed,
		FileSizeMiB:     r.cfg.FileSizeMiB,
		FileLimit:       r.cfg.FileLimit,
		ExpectedFiles:   r.expectedFiles(logger),
		UnlinkImmediate: r.cfg.UnlinkImmediate,
		Dir:             r.cfg.Dir,
	}
	seq := sequence.New(cfg)
	seq.SetLogger(logger)

	res, err := r.fill(ctx, seq)
	if err != nil {
		return err
	}
	if res.Handles != nil {
		defer log.OnError(res.Handles.Close)
	}

	if err := r.writeManifest(res, logger); err != nil {
		return err
	}

	if !r.cfg.SkipVerify {
		err := seq.Verify(sequence.VerifyParams{
			Files:    res.Files,
			LastSize: res.LastSize,
			Handles:  res.Handles,
		})
		if err != nil {
			// Suppress unlink-after so the corrupted files survive for
			// inspection.
			return err
		}
	}

	if r.cfg.UnlinkAfter {
		r.cleanFiles(logger, "removing files after successful run")
	}
	return nil
}

func (r *Runner) runReadOnly(logger zerolog.Logger) error {
	seq := sequence.New(sequence.Config{
		Seed:          r.cfg.Seed,
		FileSizeMiB:   r.cfg.FileSizeMiB,
		ExpectedFiles: r.cfg.FileLimit,
		Dir:           r.cfg.Dir,
	})
	seq.SetLogger(logger)

	err := seq.Verify(sequence.VerifyParams{
		Files:    r.cfg.FileLimit,
		LastSize: r.cfg.LastSize,
	})
	if err != nil {
		return err
	}

	if r.cfg.UnlinkAfter {
		r.cleanFiles(logger, "removing files after successful run")
	}
	return nil
}

func (r *Runner) fill(ctx context.Context, seq *sequence.Sequencer) (*sequence.FillResult, error) {
	if r.cfg.Jobs > 1 {
		return seq.FillParallel(ctx, r.cfg.Jobs)
	}
	return seq.Fill()
}

// expectedFiles estimates the total file count for progress reporting. With
// an explicit limit that is the answer; otherwise the free space on the
// target filesystem is divided into files, rounding up. Zero means no
// estimate is available.
func (r *Runner) expectedFiles(logger zerolog.Logger) uint64 {
	if r.cfg.FileLimit > 0 {
		return r.cfg.FileLimit
	}
	free, err := space.Free(r.cfg.Dir)
	if err != nil {
		logger.Warn().Msgf("querying free space: %v", err)
		return 0
	}
	fileBytes := r.cfg.FileSizeMiB * sequence.BlockSize
	return (free + fileBytes - 1) / fileBytes
}

func (r *Runner) writeManifest(res *sequence.FillResult, logger zerolog.Logger) error {
	if r.cfg.UnlinkImmediate {
		// Nothing on disk to come back to.
		return nil
	}
	m := Manifest{
		Seed:        r.cfg.Seed,
		FileSizeMiB: r.cfg.FileSizeMiB,
		Files:       res.Files,
		LastSize:    res.LastSize,
	}
	if err := WriteManifest(r.cfg.Dir, m); err != nil {
		return fmt.Errorf("writing run manifest: %w", err)
	}
	logger.Debug().
		Uint64("files", res.Files).
		Int64("last_size", res.LastSize).
		Msg("wrote run manifest")
	return nil
}
