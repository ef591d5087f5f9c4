package runner

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the name of the run manifest written next to the data
// files. A later read-only run recovers the seed, file size, file count, and
// the size of a short final file from it instead of requiring them on the
// command line.
const ManifestName = ".diskfill-run.toml"

// Manifest records the parameters needed to verify a previously written
// data set.
type Manifest struct {
	Seed        uint64 `toml:"seed"`
	FileSizeMiB uint64 `toml:"file_size_mib"`
	Files       uint64 `toml:"files"`
	LastSize    int64  `toml:"last_size"`
}

// WriteManifest writes the manifest into dir, replacing any previous one.
func WriteManifest(dir string, m Manifest) error {
	f, err := os.Create(filepath.Join(dir, ManifestName))
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadManifest reads the manifest from dir. It returns nil if none exists.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
