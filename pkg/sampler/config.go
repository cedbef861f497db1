package sampler

import (
	"errors"
	"fmt"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/random"
)

const (
	RandomType     = "random"
	RewindableType = "rewindable"
)

// ErrUnknownSampler is returned for an unsupported sampler type
var ErrUnknownSampler = errors.New("unknown sampler")

// New creates a sampler of the given type on a backend chosen by name
func New(samplerType, backend string, seed uint32) (Sampler, error) {
	rng, err := random.New(backend, seed)
	if err != nil {
		return nil, err
	}
	switch samplerType {
	case RandomType:
		return NewRandomSamplerFromSource(rng, seed), nil
	case RewindableType:
		return NewRewindableSampler(rng, seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSampler, samplerType)
	}
}

// FromConfig creates the master sampler from a sampler element:
//
//	sampler:
//	  type: random      # required: random | rewindable
//	  rng: sfmt         # sfmt | standardmt
//	  seed: 42          # -1 selects a time based seed
func FromConfig(node config.Node) (Sampler, error) {
	if node.Empty() {
		return nil, fmt.Errorf("sampler: %w: %q", config.ErrMissing, "sampler")
	}
	samplerType, err := config.ChildValue[string](node, "type")
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	if samplerType != RandomType && samplerType != RewindableType {
		return nil, fmt.Errorf("sampler: %w: %q", ErrUnknownSampler, samplerType)
	}

	backend, err := config.ChildValueOrDefault(node, "rng", random.SFMTName)
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	rawSeed, err := config.ChildValueOrDefault(node, "seed", int64(-1))
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	seed, err := random.SeedFromInt(rawSeed)
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}

	return New(samplerType, backend, seed)
}
