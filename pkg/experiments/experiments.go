package experiments

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/log"
)

var logger = log.New("experiments")

var (
	// ErrUnknownExperiment is returned for an unregistered experiment type
	ErrUnknownExperiment = errors.New("unknown experiment")
	// ErrDuplicateExperiment is returned when a type is configured twice
	ErrDuplicateExperiment = errors.New("duplicate experiment")
)

// Experiment is a named observer of a render
type Experiment interface {
	Notifier
	Name() string
}

// Factory creates an experiment from its configuration element
type Factory func(node config.Node) (Experiment, error)

var registry = map[string]Factory{
	ProgressPlotName:  newProgressPlotFromConfig,
	RecordRMSEName:    newRecordRMSEFromConfig,
	SampleCounterName: newSampleCounterFromConfig,
}

// Names returns the registered experiment types in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Experiments dispatches scheduler events to a set of experiments in the order they were added
type Experiments struct {
	mu     sync.Mutex
	byName map[string]Experiment
	order  []Experiment
}

// New creates an empty experiment set
func New() *Experiments {
	return &Experiments{byName: make(map[string]Experiment)}
}

// FromConfig creates the experiments listed under the root's experiments element:
//
//	experiments:
//	  - type: progressplot
//	    frequency: 1
//	  - type: recordrmse
//	    frequency: 2
//	    reference: reference.png
//
// A missing experiments element yields an empty set.
func FromConfig(root config.Node) (*Experiments, error) {
	e := New()
	for node := root.Child("experiments").FirstChild(); !node.Empty(); node = node.NextChild() {
		name, err := config.ChildValue[string](node, "type")
		if err != nil {
			return nil, fmt.Errorf("experiments: %w", err)
		}
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("experiments: %w: %q", ErrUnknownExperiment, name)
		}
		exp, err := factory(node)
		if err != nil {
			return nil, fmt.Errorf("experiments: %s: %w", name, err)
		}
		if err := e.Add(exp); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Add registers an experiment. Each type may be added once.
func (e *Experiments) Add(exp Experiment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byName[exp.Name()]; ok {
		return fmt.Errorf("experiments: %w: %q", ErrDuplicateExperiment, exp.Name())
	}
	e.byName[exp.Name()] = exp
	e.order = append(e.order, exp)
	logger.Debugf("added experiment %q", exp.Name())
	return nil
}

// Get returns the experiment of the given type
func (e *Experiments) Get(name string) (Experiment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	exp, ok := e.byName[name]
	return exp, ok
}

// Len returns the number of experiments
func (e *Experiments) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// Notify implements Notifier. Events are delivered to one experiment at a time.
func (e *Experiments) Notify(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, exp := range e.order {
		exp.Notify(ev)
	}
}

// frequencyFromConfig reads the optional frequency child, which must be positive
func frequencyFromConfig(node config.Node) (int, error) {
	frequency, err := config.ChildValueOrDefault(node, "frequency", 1)
	if err != nil {
		return 0, err
	}
	if frequency < 1 {
		return 0, fmt.Errorf("frequency must be positive, got %d", frequency)
	}
	return frequency, nil
}
