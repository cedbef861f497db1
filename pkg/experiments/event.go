// Package experiments observes a render through the events the scheduler emits.
package experiments

import (
	"time"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// EventType identifies a scheduler notification
type EventType int

const (
	RenderStarted EventType = iota
	SampleFinished
	TileFinished
	PassFinished
	ProgressUpdated
	RenderFinished
)

func (t EventType) String() string {
	switch t {
	case RenderStarted:
		return "RenderStarted"
	case SampleFinished:
		return "SampleFinished"
	case TileFinished:
		return "TileFinished"
	case PassFinished:
		return "PassFinished"
	case ProgressUpdated:
		return "ProgressUpdated"
	case RenderFinished:
		return "RenderFinished"
	default:
		return "Unknown"
	}
}

// Event is one scheduler notification. Fields not relevant to the type are zero.
type Event struct {
	Type EventType
	Time time.Time

	// SampleFinished: the pixel, the index of the finished sample and the pixel's
	// running estimate without splats
	X, Y        int
	SampleIndex int
	Estimate    core.Vec3

	// TileFinished and PassFinished
	Tile int
	Pass int

	// PassFinished and RenderFinished: a copy of the whole running image
	// in row-major order, splats included
	Width, Height int
	Image         []core.Vec3
	TotalSamples  int

	// ProgressUpdated
	Progress float64
	Done     bool
}

// Notifier receives scheduler events. Implementations must be safe for concurrent use
// since SampleFinished is sent from the render workers.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to a Notifier
type NotifierFunc func(ev Event)

// Notify implements Notifier
func (f NotifierFunc) Notify(ev Event) { f(ev) }
