package integrator

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-progressive-bpt/pkg/config"
)

// MISWeight turns the density ratios of the competing strategies into the weight of the
// strategy that produced a path. Each ratio is p_other/p_this for one alternative strategy
// that could have generated the same path.
type MISWeight interface {
	Evaluate(ratios []float64) float64
	Name() string
}

// PowerHeuristic weights by densities raised to Beta. Beta == 1 is the balance heuristic.
type PowerHeuristic struct {
	Beta float64
}

// Evaluate implements MISWeight
func (h PowerHeuristic) Evaluate(ratios []float64) float64 {
	sum := 1.0
	for _, r := range ratios {
		if r <= 0 {
			continue
		}
		if h.Beta == 2 {
			sum += r * r
		} else {
			sum += math.Pow(r, h.Beta)
		}
	}
	return 1 / sum
}

// Name implements MISWeight
func (h PowerHeuristic) Name() string {
	if h.Beta == 1 {
		return "balance"
	}
	return "power"
}

// SimpleWeight splits a path evenly between every strategy able to produce it
type SimpleWeight struct{}

// Evaluate implements MISWeight
func (SimpleWeight) Evaluate(ratios []float64) float64 {
	n := 1
	for _, r := range ratios {
		if r > 0 {
			n++
		}
	}
	return 1 / float64(n)
}

// Name implements MISWeight
func (SimpleWeight) Name() string { return "simple" }

// ErrUnknownMISWeight is returned for an unsupported mis_weight type
var ErrUnknownMISWeight = errors.New("unknown mis_weight")

// MISWeightFromConfig creates a weighting function from a mis_weight element
func MISWeightFromConfig(node config.Node) (MISWeight, error) {
	if node.Empty() {
		return nil, fmt.Errorf("mis_weight: %w: %q", config.ErrMissing, "mis_weight")
	}
	weightType, err := config.ChildValue[string](node, "type")
	if err != nil {
		return nil, fmt.Errorf("mis_weight: %w", err)
	}
	switch weightType {
	case "power":
		beta, err := config.ChildValueOrDefault(node, "beta", 2.0)
		if err != nil {
			return nil, fmt.Errorf("mis_weight: %w", err)
		}
		if !(beta > 0) || math.IsInf(beta, 0) {
			return nil, fmt.Errorf("mis_weight: beta must be positive, got %v", beta)
		}
		return PowerHeuristic{Beta: beta}, nil
	case "balance":
		return PowerHeuristic{Beta: 1}, nil
	case "simple":
		return SimpleWeight{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMISWeight, weightType)
	}
}
