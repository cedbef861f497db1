package renderer

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/experiments"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// Termination selects when a render stops
type Termination string

const (
	// TerminateSamples renders until every pixel has NumSamples samples
	TerminateSamples Termination = "samples"
	// TerminateTime renders until Time elapses, with NumSamples as a cap
	TerminateTime Termination = "time"
)

// ErrUnknownTermination is returned for an unsupported termination mode
var ErrUnknownTermination = errors.New("unknown termination")

// Config contains configuration for progressive rendering
type Config struct {
	NumSamples     int           // Samples per pixel reached by the final pass
	Termination    Termination   // When to stop
	Time           time.Duration // Time limit for TerminateTime
	NumThreads     int           // Parallel workers: 0 = CPU count, negative = CPU count minus n
	TileSize       int           // Size of each tile
	InitialSamples int           // Samples for first pass
	MaxPasses      int           // Maximum number of passes
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		NumSamples:     50,
		Termination:    TerminateSamples,
		TileSize:       64,
		InitialSamples: 1,
		MaxPasses:      7, // 1, then even steps up to NumSamples
	}
}

// Validate checks the configuration before any sampling starts
func (c Config) Validate() error {
	if c.NumSamples <= 0 {
		return fmt.Errorf("renderer: num_samples must be positive, got %d", c.NumSamples)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("renderer: tile_size must be positive, got %d", c.TileSize)
	}
	if c.InitialSamples <= 0 || c.InitialSamples > c.NumSamples {
		return fmt.Errorf("renderer: initial_samples must be in [1,%d], got %d", c.NumSamples, c.InitialSamples)
	}
	if c.MaxPasses <= 0 {
		return fmt.Errorf("renderer: max_passes must be positive, got %d", c.MaxPasses)
	}
	switch c.Termination {
	case TerminateSamples:
	case TerminateTime:
		if c.Time <= 0 {
			return fmt.Errorf("renderer: time termination needs a positive time, got %v", c.Time)
		}
	default:
		return fmt.Errorf("renderer: %w: %q", ErrUnknownTermination, c.Termination)
	}
	return nil
}

// Workers resolves NumThreads against the CPU count
func (c Config) Workers() int {
	return resolveThreads(c.NumThreads, runtime.NumCPU())
}

func resolveThreads(n, cpus int) int {
	switch {
	case n > 0:
		return n
	case n == 0:
		return cpus
	default:
		return max(1, cpus+n)
	}
}

// ConfigFromNode reads the scheduler settings of a renderer element
//
//	renderer:
//	  num_samples: 64       # required
//	  termination: samples  # samples | time
//	  time: 30              # seconds, for time termination
//	  num_threads: 0
//	  tile_size: 64
//	  initial_samples: 1
//	  max_passes: 7
func ConfigFromNode(node config.Node) (Config, error) {
	c := DefaultConfig()
	var err error

	if c.NumSamples, err = config.ChildValue[int](node, "num_samples"); err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	termination, err := config.ChildValueOrDefault(node, "termination", string(c.Termination))
	if err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	c.Termination = Termination(termination)

	seconds, err := config.ChildValueOrDefault(node, "time", 0.0)
	if err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return c, fmt.Errorf("renderer: invalid time %v", seconds)
	}
	c.Time = time.Duration(seconds * float64(time.Second))

	if c.NumThreads, err = config.ChildValueOrDefault(node, "num_threads", c.NumThreads); err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	if c.TileSize, err = config.ChildValueOrDefault(node, "tile_size", c.TileSize); err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	if c.InitialSamples, err = config.ChildValueOrDefault(node, "initial_samples", c.InitialSamples); err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	if c.MaxPasses, err = config.ChildValueOrDefault(node, "max_passes", c.MaxPasses); err != nil {
		return c, fmt.Errorf("renderer: %w", err)
	}
	return c, c.Validate()
}

// FromConfig creates a scheduler from a whole configuration document. Every
// configuration error is reported here, before any sampling.
func FromConfig(root config.Node, logger core.Logger, notifier experiments.Notifier) (*Scheduler, error) {
	renderNode := root.Child("renderer")
	if renderNode.Empty() {
		return nil, fmt.Errorf("renderer: %w: %q", config.ErrMissing, "renderer")
	}
	cfg, err := ConfigFromNode(renderNode)
	if err != nil {
		return nil, err
	}
	scn, err := scene.FromConfig(root.Child("scene"))
	if err != nil {
		return nil, err
	}
	integ, err := integrator.FromConfig(renderNode, scn)
	if err != nil {
		return nil, err
	}
	master, err := sampler.FromConfig(renderNode.Child("sampler"))
	if err != nil {
		return nil, err
	}
	return NewScheduler(scn, integ, master, cfg, logger, notifier)
}
