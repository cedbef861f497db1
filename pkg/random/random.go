// Package random provides the pseudo-random number generators used by the samplers.
//
// Every backend produces 32-bit unsigned integers. Real-valued draws are derived from
// them in exactly one way so that swapping a backend changes values but never the
// number of draws a path consumes.
package random

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// Source is a stateful pseudo-random number generator.
// A Source is not safe for concurrent use; each sampler owns one exclusively.
type Source interface {
	// NextUInt returns a uniformly distributed value over the full 32-bit range
	NextUInt() uint32
	// Next returns a value in [0,1) derived from a single NextUInt draw
	Next() float64
	// NextVec2 returns a point in the unit square using two NextUInt draws, X first
	NextVec2() core.Vec2
	// SetSeed reinitializes the generator state
	SetSeed(seed uint32)
	// Clone returns a new generator of the same kind seeded with the initial seed
	Clone() Source
	// Name returns the registered backend name
	Name() string
}

const uint32ToUnit = 1.0 / 4294967296.0

// ToUnit maps a 32-bit draw into [0,1)
func ToUnit(u uint32) float64 {
	return float64(u) * uint32ToUnit
}

var (
	// ErrUnknownBackend is returned when a backend name is not registered
	ErrUnknownBackend = errors.New("unknown random backend")
	// ErrInvalidSeed is returned for seeds that cannot be represented as 32-bit values
	ErrInvalidSeed = errors.New("invalid seed")
)

// Backend names
const (
	SFMTName       = "sfmt"
	StandardMTName = "standardmt"
)

var backends = map[string]func(seed uint32) Source{
	SFMTName:       func(seed uint32) Source { return NewSFMT(seed) },
	StandardMTName: func(seed uint32) Source { return NewStandardMT(seed) },
}

// New creates a seeded generator by backend name
func New(name string, seed uint32) (Source, error) {
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Names())
	}
	return ctor(seed), nil
}

// Names returns the registered backend names in sorted order
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SeedFromInt validates a configured seed. -1 selects a time based seed.
func SeedFromInt(v int64) (uint32, error) {
	if v == -1 {
		return uint32(time.Now().UnixNano()), nil
	}
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d is outside [0, %d]", ErrInvalidSeed, v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
}

// ParseSeed parses a decimal seed string, accepting -1 for a time based seed
func ParseSeed(s string) (uint32, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidSeed, s)
	}
	return SeedFromInt(v)
}
