package random

import (
	"gonum.org/v1/gonum/mathext/prng"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// StandardMT is the reference 32-bit Mersenne Twister (MT19937), seeded with init_genrand
type StandardMT struct {
	mt   *prng.MT19937
	seed uint32
}

// NewStandardMT creates a seeded MT19937 generator
func NewStandardMT(seed uint32) *StandardMT {
	s := &StandardMT{mt: prng.NewMT19937()}
	s.SetSeed(seed)
	return s
}

// Name implements Source
func (s *StandardMT) Name() string { return StandardMTName }

// SetSeed implements Source
func (s *StandardMT) SetSeed(seed uint32) {
	s.seed = seed
	s.mt.Seed(uint64(seed))
}

// NextUInt implements Source
func (s *StandardMT) NextUInt() uint32 {
	return s.mt.Uint32()
}

// Next implements Source
func (s *StandardMT) Next() float64 {
	return ToUnit(s.mt.Uint32())
}

// NextVec2 implements Source
func (s *StandardMT) NextVec2() core.Vec2 {
	u1 := s.Next()
	u2 := s.Next()
	return core.NewVec2(u1, u2)
}

// Clone implements Source
func (s *StandardMT) Clone() Source {
	return NewStandardMT(s.seed)
}
