package runner

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/jotfs/diskfill/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycleUnlinkAfter(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{
		Seed:        11,
		FileSizeMiB: 1,
		FileLimit:   2,
		LastSize:    -1,
		UnlinkAfter: true,
		Repeat:      2,
		Dir:         dir,
	})
	require.NoError(t, r.Run(context.Background()))

	// A successful run with unlink-after leaves nothing behind.
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunWritesManifest(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Seed: 5, FileSizeMiB: 1, FileLimit: 2, LastSize: -1, Dir: dir})
	require.NoError(t, r.Run(context.Background()))

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, uint64(5), m.Seed)
	assert.Equal(t, uint64(1), m.FileSizeMiB)
	assert.Equal(t, uint64(2), m.Files)
	assert.Equal(t, int64(sequence.BlockSize), m.LastSize)
}

func TestReadOnlyRunFromManifest(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Seed: 23, FileSizeMiB: 1, FileLimit: 2, LastSize: -1, Dir: dir})
	require.NoError(t, w.Run(context.Background()))

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, m)

	r := New(Config{
		Seed:        m.Seed,
		FileSizeMiB: m.FileSizeMiB,
		FileLimit:   m.Files,
		LastSize:    m.LastSize,
		ReadOnly:    true,
		Dir:         dir,
	})
	assert.NoError(t, r.Run(context.Background()))
}

func TestReadOnlyWrongSeedFails(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Seed: 23, FileSizeMiB: 1, FileLimit: 1, LastSize: -1, Dir: dir})
	require.NoError(t, w.Run(context.Background()))

	r := New(Config{Seed: 24, FileSizeMiB: 1, FileLimit: 1, LastSize: -1, ReadOnly: true, Dir: dir})
	err := r.Run(context.Background())
	var mismatch *sequence.MismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestMismatchPreservesFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Seed: 31, FileSizeMiB: 1, FileLimit: 2, LastSize: -1, SkipVerify: true, Dir: dir})
	require.NoError(t, w.Run(context.Background()))

	// Corrupt a byte in the first file.
	path := filepath.Join(dir, sequence.FileName(0))
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, 512)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	m, err := LoadManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, m)

	r := New(Config{
		Seed:        m.Seed,
		FileSizeMiB: m.FileSizeMiB,
		FileLimit:   m.Files,
		LastSize:    m.LastSize,
		ReadOnly:    true,
		UnlinkAfter: true,
		Dir:         dir,
	})
	err = r.Run(context.Background())
	var mismatch *sequence.MismatchError
	require.True(t, errors.As(err, &mismatch))

	// The corrupted evidence must survive: unlink-after is suppressed.
	for i := uint64(0); i < 2; i++ {
		_, err := os.Stat(filepath.Join(dir, sequence.FileName(i)))
		assert.NoError(t, err)
	}
}

func TestRunCleansStaleFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Seed: 1, FileSizeMiB: 1, FileLimit: 3, LastSize: -1, Dir: dir})
	require.NoError(t, w.Run(context.Background()))

	// A new run with a smaller limit must not leave file 2 from the previous
	// run lying around to confuse a later probe.
	w2 := New(Config{Seed: 2, FileSizeMiB: 1, FileLimit: 1, LastSize: -1, Dir: dir})
	require.NoError(t, w2.Run(context.Background()))

	_, err := os.Stat(filepath.Join(dir, sequence.FileName(1)))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, sequence.FileName(2)))
	assert.True(t, os.IsNotExist(err))
}

func TestUnlinkImmediateRun(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{
		Seed:            77,
		FileSizeMiB:     1,
		FileLimit:       2,
		LastSize:        -1,
		UnlinkImmediate: true,
		Dir:             dir,
	})
	require.NoError(t, r.Run(context.Background()))

	// Nothing remains on disk; everything ran through retained handles.
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParallelRun(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{
		Seed:        99,
		FileSizeMiB: 1,
		FileLimit:   4,
		LastSize:    -1,
		Jobs:        2,
		Dir:         dir,
	})
	assert.NoError(t, r.Run(context.Background()))
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := Manifest{Seed: 42, FileSizeMiB: 1024, Files: 17, LastSize: 123456}
	require.NoError(t, WriteManifest(dir, in))

	out, err := LoadManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, *out)
}

func TestLoadManifestMissing(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, m)
}
