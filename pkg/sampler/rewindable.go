package sampler

import (
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/random"
)

// RewindableSampler counts underlying draws so a generator can be replayed to any earlier index
type RewindableSampler struct {
	rng         random.Source
	initialSeed uint32
	index       int
}

// NewRewindableSampler wraps rng and seeds it
func NewRewindableSampler(rng random.Source, seed uint32) *RewindableSampler {
	s := &RewindableSampler{rng: rng}
	s.SetSeed(seed)
	return s
}

func (s *RewindableSampler) Next() float64 {
	s.index++
	return s.rng.Next()
}

func (s *RewindableSampler) NextUInt() uint32 {
	s.index++
	return s.rng.NextUInt()
}

func (s *RewindableSampler) NextVec2() core.Vec2 {
	s.index += 2
	return s.rng.NextVec2()
}

func (s *RewindableSampler) NextDirection() core.Vec3 {
	return core.SampleOnUnitSphere(s.NextVec2())
}

func (s *RewindableSampler) SetSeed(seed uint32) {
	s.initialSeed = seed
	s.index = 0
	s.rng.SetSeed(seed)
}

// Clone returns a fresh rewindable sampler at index 0
func (s *RewindableSampler) Clone() Sampler {
	return NewRewindableSampler(s.rng.Clone(), s.initialSeed)
}

func (s *RewindableSampler) Rng() random.Source { return s.rng }

// SampleIndex is the number of underlying draws consumed since seeding
func (s *RewindableSampler) SampleIndex() int { return s.index }

// Rewind reseeds and discards draws until SampleIndex equals index
func (s *RewindableSampler) Rewind(index int) {
	s.SetSeed(s.initialSeed)
	for s.index < index {
		s.index++
		s.rng.NextUInt()
	}
}
