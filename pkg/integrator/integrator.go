package integrator

import (
	"errors"
	"fmt"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// Splat is a color contribution to a pixel other than the one being sampled
type Splat struct {
	X, Y  int
	Color core.Vec3
}

// Integrator defines the interface for light transport algorithms. An integrator is shared
// by all render workers and must be safe for concurrent use; per-worker state lives in a Process.
type Integrator interface {
	NewProcess() Process
	Name() string
}

// Process evaluates samples for one worker. Sampling and combining are split so the
// scheduler can drive each pixel sample through explicit states.
type Process interface {
	// SampleSubpaths builds the paths for one sample of pixel (x, y)
	SampleSubpaths(x, y int, s sampler.Sampler)
	// Combine evaluates the sampled paths, appending contributions to other pixels to splats,
	// and returns the contribution to the sampled pixel
	Combine(s sampler.Sampler, splats *[]Splat) core.Vec3
	// Discarded returns the number of contributions rejected as non-finite or negative
	Discarded() int
}

// Config controls path construction
type Config struct {
	RRDepth         int     // first vertex depth at which Russian roulette applies
	RRProb          float64 // continuation probability once roulette applies
	MaxPathVertices int     // maximum number of vertices in each subpath
}

// DefaultConfig returns the default path construction settings
func DefaultConfig() Config {
	return Config{
		RRDepth:         1,
		RRProb:          0.5,
		MaxPathVertices: 8,
	}
}

// Validate checks the path construction settings
func (c Config) Validate() error {
	if c.MaxPathVertices < 1 {
		return fmt.Errorf("integrator: max_path_vertices must be at least 1, got %d", c.MaxPathVertices)
	}
	if c.RRDepth < 0 {
		return fmt.Errorf("integrator: rr_depth must not be negative, got %d", c.RRDepth)
	}
	if !(c.RRProb > 0 && c.RRProb <= 1) {
		return fmt.Errorf("integrator: rr_prob must be in (0,1], got %v", c.RRProb)
	}
	return nil
}

// ErrUnknownIntegrator is returned for an unsupported renderer type
var ErrUnknownIntegrator = errors.New("unknown integrator")

// ConfigFromNode reads path construction settings from a renderer element
func ConfigFromNode(node config.Node) (Config, error) {
	def := DefaultConfig()
	var c Config
	var err error
	if c.RRDepth, err = config.ChildValueOrDefault(node, "rr_depth", def.RRDepth); err != nil {
		return c, err
	}
	if c.RRProb, err = config.ChildValueOrDefault(node, "rr_prob", def.RRProb); err != nil {
		return c, err
	}
	if c.MaxPathVertices, err = config.ChildValueOrDefault(node, "max_path_vertices", def.MaxPathVertices); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// FromConfig creates the integrator named by the renderer element's type
//
//	renderer:
//	  type: bpt            # bpt | pt
//	  rr_depth: 1
//	  rr_prob: 0.5
//	  max_path_vertices: 8
//	  mis_weight:
//	    type: power        # required: power | balance | simple
//	    beta: 2
func FromConfig(node config.Node, scn *scene.Scene) (Integrator, error) {
	name, err := config.ChildValueOrDefault(node, "type", "bpt")
	if err != nil {
		return nil, err
	}
	cfg, err := ConfigFromNode(node)
	if err != nil {
		return nil, err
	}
	mis, err := MISWeightFromConfig(node.Child("mis_weight"))
	if err != nil {
		return nil, err
	}
	return New(name, scn, cfg, mis)
}

// New creates an integrator by name
func New(name string, scn *scene.Scene, cfg Config, mis MISWeight) (Integrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch name {
	case "bpt":
		return NewBPT(scn, cfg, mis), nil
	case "pt":
		return NewPathTracer(scn, cfg, mis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
}
