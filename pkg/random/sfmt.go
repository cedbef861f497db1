package random

import "github.com/df07/go-progressive-bpt/pkg/core"

// SFMT19937 parameters
const (
	sfmtMEXP = 19937
	sfmtN    = sfmtMEXP/128 + 1
	sfmtN32  = sfmtN * 4
	sfmtPOS1 = 122
	sfmtSL1  = 18
	sfmtSL2  = 1
	sfmtSR1  = 11
	sfmtSR2  = 1
	sfmtMSK1 = 0xdfffffef
	sfmtMSK2 = 0xddfecb7f
	sfmtMSK3 = 0xbffaffff
	sfmtMSK4 = 0xbffffff6
)

var sfmtParity = [4]uint32{0x00000001, 0x00000000, 0x00000000, 0x13c9e684}

// w128 is one 128-bit state word as four little-endian 32-bit lanes
type w128 [4]uint32

// SFMT is the SIMD-oriented Fast Mersenne Twister (period 2^19937-1).
// The 128-bit recursion is evaluated lane by lane in portable Go.
type SFMT struct {
	state [sfmtN]w128
	idx   int
	seed  uint32
}

// NewSFMT creates a seeded SFMT generator
func NewSFMT(seed uint32) *SFMT {
	s := &SFMT{}
	s.SetSeed(seed)
	return s
}

// Name implements Source
func (s *SFMT) Name() string { return SFMTName }

// SetSeed initializes the state with the MT linear congruential recurrence
// and certifies the period
func (s *SFMT) SetSeed(seed uint32) {
	s.seed = seed
	prev := seed
	s.set32(0, prev)
	for i := 1; i < sfmtN32; i++ {
		prev = 1812433253*(prev^(prev>>30)) + uint32(i)
		s.set32(i, prev)
	}
	s.idx = sfmtN32
	s.certifyPeriod()
}

// NextUInt implements Source
func (s *SFMT) NextUInt() uint32 {
	if s.idx >= sfmtN32 {
		s.generateAll()
		s.idx = 0
	}
	r := s.state[s.idx/4][s.idx%4]
	s.idx++
	return r
}

// Next implements Source
func (s *SFMT) Next() float64 {
	return ToUnit(s.NextUInt())
}

// NextVec2 implements Source
func (s *SFMT) NextVec2() core.Vec2 {
	u1 := s.Next()
	u2 := s.Next()
	return core.NewVec2(u1, u2)
}

// Clone implements Source
func (s *SFMT) Clone() Source {
	return NewSFMT(s.seed)
}

func (s *SFMT) set32(i int, v uint32) {
	s.state[i/4][i%4] = v
}

func (s *SFMT) certifyPeriod() {
	var inner uint32
	for i := 0; i < 4; i++ {
		inner ^= s.state[0][i] & sfmtParity[i]
	}
	for i := 16; i > 0; i >>= 1 {
		inner ^= inner >> uint(i)
	}
	if inner&1 == 1 {
		return
	}
	// Flip the lowest parity bit to leave the degenerate sub-period
	for i := 0; i < 4; i++ {
		work := uint32(1)
		for j := 0; j < 32; j++ {
			if work&sfmtParity[i] != 0 {
				s.state[0][i] ^= work
				return
			}
			work <<= 1
		}
	}
}

func (s *SFMT) generateAll() {
	r1 := s.state[sfmtN-2]
	r2 := s.state[sfmtN-1]
	i := 0
	for ; i < sfmtN-sfmtPOS1; i++ {
		s.state[i] = recursion(s.state[i], s.state[i+sfmtPOS1], r1, r2)
		r1, r2 = r2, s.state[i]
	}
	for ; i < sfmtN; i++ {
		s.state[i] = recursion(s.state[i], s.state[i+sfmtPOS1-sfmtN], r1, r2)
		r1, r2 = r2, s.state[i]
	}
}

func recursion(a, b, c, d w128) w128 {
	x := lshift128(a, sfmtSL2)
	y := rshift128(c, sfmtSR2)
	return w128{
		a[0] ^ x[0] ^ ((b[0] >> sfmtSR1) & sfmtMSK1) ^ y[0] ^ (d[0] << sfmtSL1),
		a[1] ^ x[1] ^ ((b[1] >> sfmtSR1) & sfmtMSK2) ^ y[1] ^ (d[1] << sfmtSL1),
		a[2] ^ x[2] ^ ((b[2] >> sfmtSR1) & sfmtMSK3) ^ y[2] ^ (d[2] << sfmtSL1),
		a[3] ^ x[3] ^ ((b[3] >> sfmtSR1) & sfmtMSK4) ^ y[3] ^ (d[3] << sfmtSL1),
	}
}

// rshift128 shifts the 128-bit word right by shift bytes
func rshift128(in w128, shift uint) w128 {
	th := uint64(in[3])<<32 | uint64(in[2])
	tl := uint64(in[1])<<32 | uint64(in[0])
	oh := th >> (shift * 8)
	ol := tl>>(shift*8) | th<<(64-shift*8)
	return w128{uint32(ol), uint32(ol >> 32), uint32(oh), uint32(oh >> 32)}
}

// lshift128 shifts the 128-bit word left by shift bytes
func lshift128(in w128, shift uint) w128 {
	th := uint64(in[3])<<32 | uint64(in[2])
	tl := uint64(in[1])<<32 | uint64(in[0])
	oh := th<<(shift*8) | tl>>(64-shift*8)
	ol := tl << (shift * 8)
	return w128{uint32(ol), uint32(ol >> 32), uint32(oh), uint32(oh >> 32)}
}
