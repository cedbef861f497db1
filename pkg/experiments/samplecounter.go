package experiments

import (
	"sync"

	"github.com/df07/go-progressive-bpt/pkg/config"
)

// SampleCounterName is the type name of the sample counter experiment
const SampleCounterName = "samplecounter"

type pixelKey struct{ x, y int }

// SampleCounter counts finished samples per pixel. A sample whose index is not the
// pixel's current count is recorded as out of order.
type SampleCounter struct {
	mu         sync.Mutex
	counts     map[pixelKey]int
	total      int
	outOfOrder int
}

// NewSampleCounter creates an empty counter
func NewSampleCounter() *SampleCounter {
	return &SampleCounter{counts: make(map[pixelKey]int)}
}

func newSampleCounterFromConfig(config.Node) (Experiment, error) {
	return NewSampleCounter(), nil
}

// Name implements Experiment
func (c *SampleCounter) Name() string { return SampleCounterName }

// Notify implements Notifier
func (c *SampleCounter) Notify(ev Event) {
	if ev.Type != SampleFinished {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pixelKey{ev.X, ev.Y}
	if ev.SampleIndex != c.counts[key] {
		c.outOfOrder++
	}
	c.counts[key]++
	c.total++
}

// Count returns the samples finished for a pixel
func (c *SampleCounter) Count(x, y int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[pixelKey{x, y}]
}

// Total returns the samples finished over all pixels
func (c *SampleCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// OutOfOrder returns the number of samples that did not follow their pixel's previous sample
func (c *SampleCounter) OutOfOrder() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outOfOrder
}
