package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFree(t *testing.T) {
	n, err := Free(t.TempDir())
	assert.NoError(t, err)
	assert.NotZero(t, n)
}

func TestFreeMissingPath(t *testing.T) {
	_, err := Free("/no/such/path/for/diskfill")
	assert.Error(t, err)
}
