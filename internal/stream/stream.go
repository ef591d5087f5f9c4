// Package stream generates the deterministic pseudo-random sequence written to
// and verified against disk. A linear congruential generator is fast enough to
// keep up with raw device bandwidth, which is all the workload needs.
package stream

import "encoding/binary"

// WordSize is the byte-width of a single generated item.
const WordSize = 8

// LCG constants, chosen for full period over 64-bit words.
const (
	multiplier = 0x27BB2EE687B0B0FD
	increment  = 0xB504F32D
)

// Stream is a restartable deterministic sequence of 64-bit words. Two streams
// created with the same seed produce identical output.
type Stream struct {
	state uint64
}

// New returns a stream seeded with seed. The seed itself is never emitted; the
// first call to Next already advances the state.
func New(seed uint64) *Stream {
	return &Stream{state: seed}
}

// Next advances the stream and returns the next word.
func (s *Stream) Next() uint64 {
	s.state = s.state*multiplier + increment
	return s.state
}

// Fill fills p with consecutive words from the stream in little-endian byte
// order. len(p) must be a multiple of WordSize.
func (s *Stream) Fill(p []byte) {
	for i := 0; i < len(p); i += WordSize {
		binary.LittleEndian.PutUint64(p[i:], s.Next())
	}
}
