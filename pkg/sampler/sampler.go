// Package sampler turns raw generator output into the typed draws used for path construction.
//
// Draw costs, in underlying NextUInt calls:
//
//	Next           1
//	NextUInt       1
//	NextVec2       2 (X drawn before Y)
//	NextDirection  2 (one NextVec2 mapped to the unit sphere)
//
// Replaying a seed with the same sequence of draw types reproduces a path exactly.
package sampler

import (
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/random"
)

// Sampler provides random draws for rendering algorithms
type Sampler interface {
	Next() float64
	NextUInt() uint32
	NextVec2() core.Vec2
	NextDirection() core.Vec3
	SetSeed(seed uint32)
	Clone() Sampler
	Rng() random.Source
}

// RandomSampler draws directly from a random.Source it owns
type RandomSampler struct {
	rng         random.Source
	initialSeed uint32
}

// NewRandomSampler creates a sampler on a backend chosen by name
func NewRandomSampler(backend string, seed uint32) (*RandomSampler, error) {
	rng, err := random.New(backend, seed)
	if err != nil {
		return nil, err
	}
	return &RandomSampler{rng: rng, initialSeed: seed}, nil
}

// NewRandomSamplerFromSource wraps an already seeded source
func NewRandomSamplerFromSource(rng random.Source, seed uint32) *RandomSampler {
	return &RandomSampler{rng: rng, initialSeed: seed}
}

// Next returns a value in [0,1)
func (s *RandomSampler) Next() float64 { return s.rng.Next() }

// NextUInt returns a raw 32-bit draw
func (s *RandomSampler) NextUInt() uint32 { return s.rng.NextUInt() }

// NextVec2 returns a point in the unit square
func (s *RandomSampler) NextVec2() core.Vec2 { return s.rng.NextVec2() }

// NextDirection returns a uniformly distributed unit vector
func (s *RandomSampler) NextDirection() core.Vec3 {
	return core.SampleOnUnitSphere(s.rng.NextVec2())
}

// SetSeed reseeds the underlying generator
func (s *RandomSampler) SetSeed(seed uint32) {
	s.initialSeed = seed
	s.rng.SetSeed(seed)
}

// Clone returns a sampler of the same backend restarted from the initial seed
func (s *RandomSampler) Clone() Sampler {
	return &RandomSampler{rng: s.rng.Clone(), initialSeed: s.initialSeed}
}

// Rng exposes the owned source
func (s *RandomSampler) Rng() random.Source { return s.rng }

// Reseeded returns an independent sampler of the same backend with a new seed.
// Tile samplers are derived this way from a master sampler.
func Reseeded(s Sampler, seed uint32) Sampler {
	child := s.Clone()
	child.SetSeed(seed)
	return child
}
