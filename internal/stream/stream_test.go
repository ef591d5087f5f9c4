package stream

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminism(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 10000; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestSeedsDiverge(t *testing.T) {
	a := New(42)
	b := New(43)
	same := 0
	for i := 0; i < 1000; i++ {
		if a.Next() == b.Next() {
			same++
		}
	}
	assert.Zero(t, same)
}

func TestSeedNotEmitted(t *testing.T) {
	// The first word is already one step past the seed.
	s := New(0)
	assert.Equal(t, uint64(0xB504F32D), s.Next())
}

func TestFillMatchesNext(t *testing.T) {
	buf := make([]byte, 64*WordSize)
	New(7).Fill(buf)

	ref := New(7)
	for i := 0; i < len(buf); i += WordSize {
		assert.Equal(t, ref.Next(), binary.LittleEndian.Uint64(buf[i:]))
	}
}

func TestFillRestartable(t *testing.T) {
	one := make([]byte, 4096)
	New(99).Fill(one)

	// Two partial fills from a re-seeded stream cover the same sequence.
	two := make([]byte, 4096)
	s := New(99)
	s.Fill(two[:1024])
	s.Fill(two[1024:])
	assert.Equal(t, one, two)
}
