package renderer

import (
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
)

// State is the render state of a single pixel
type State int

const (
	Idle         State = iota // waiting for the next sample request
	Sampling                  // building the camera and light subpaths
	Combining                 // evaluating the connection strategies
	Accumulating              // adding the weighted sum to the estimate
	Done                      // the final sample target is reached
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Sampling:
		return "Sampling"
	case Combining:
		return "Combining"
	case Accumulating:
		return "Accumulating"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// PixelProcess runs the samples of one pixel through the render states.
// Samples are strictly sequential: a request only starts from Idle.
type PixelProcess struct {
	X, Y int

	state        State
	target       int
	stats        PixelStats
	contribution core.Vec3
}

// NewPixelProcess creates the state of pixel (x, y) that finishes after target samples
func NewPixelProcess(x, y, target int) PixelProcess {
	p := PixelProcess{X: x, Y: y, target: target}
	if target <= 0 {
		p.state = Done
	}
	return p
}

// State returns the current state
func (p *PixelProcess) State() State { return p.state }

// NumSamples returns the number of accumulated samples
func (p *PixelProcess) NumSamples() int { return p.stats.SampleCount }

// Target returns the final sample count
func (p *PixelProcess) Target() int { return p.target }

// Estimate returns the average of the accumulated samples
func (p *PixelProcess) Estimate() core.Vec3 { return p.stats.GetColor() }

// Stats returns the accumulated samples
func (p *PixelProcess) Stats() PixelStats { return p.stats }

// RequestSample takes one complete sample, appending light tracing contributions to splats.
// It returns false without drawing from s when the pixel is not Idle.
func (p *PixelProcess) RequestSample(proc integrator.Process, s sampler.Sampler, splats *[]integrator.Splat) bool {
	if p.state != Idle {
		return false
	}
	p.state = Sampling
	for p.state != Idle && p.state != Done {
		p.transition(proc, s, splats)
	}
	return true
}

// transition performs the work of the current state and moves to the next one
func (p *PixelProcess) transition(proc integrator.Process, s sampler.Sampler, splats *[]integrator.Splat) {
	switch p.state {
	case Sampling:
		proc.SampleSubpaths(p.X, p.Y, s)
		p.state = Combining
	case Combining:
		p.contribution = proc.Combine(s, splats)
		p.state = Accumulating
	case Accumulating:
		p.stats.AddSample(p.contribution)
		p.contribution = core.Vec3{}
		if p.stats.SampleCount >= p.target {
			p.state = Done
		} else {
			p.state = Idle
		}
	}
}
