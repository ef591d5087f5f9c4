package runner

import (
	"os"
	"path/filepath"

	"github.com/jotfs/diskfill/internal/sequence"
	"github.com/rs/zerolog"
)

// cleanFiles removes deterministically named files starting at number 0 until
// a delete fails, which marks the end of the sequence. The run manifest is
// swept along with the data files.
func (r *Runner) cleanFiles(logger zerolog.Logger, msg string) {
	var num uint64
	for {
		if err := os.Remove(filepath.Join(r.cfg.Dir, sequence.FileName(num))); err != nil {
			break
		}
		num++
	}
	os.Remove(filepath.Join(r.cfg.Dir, ManifestName))

	if num > 0 {
		logger.Info().Uint64("total", num).Msg(msg)
	}
}
