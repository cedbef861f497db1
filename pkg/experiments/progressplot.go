package experiments

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/df07/go-progressive-bpt/pkg/config"
)

// ProgressPlotName is the type name of the progress plot experiment
const ProgressPlotName = "progressplot"

// ProgressPoint is one sample of the progress curve
type ProgressPoint struct {
	Elapsed  time.Duration
	Progress float64
}

// ProgressPlot records render progress against wall clock time every Frequency progress events
type ProgressPlot struct {
	Frequency int

	mu      sync.Mutex
	started time.Time
	seen    int
	points  []ProgressPoint
}

// NewProgressPlot creates a progress plot
func NewProgressPlot(frequency int) *ProgressPlot {
	return &ProgressPlot{Frequency: max(1, frequency)}
}

func newProgressPlotFromConfig(node config.Node) (Experiment, error) {
	frequency, err := frequencyFromConfig(node)
	if err != nil {
		return nil, err
	}
	return NewProgressPlot(frequency), nil
}

// Name implements Experiment
func (p *ProgressPlot) Name() string { return ProgressPlotName }

// Notify implements Notifier
func (p *ProgressPlot) Notify(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case RenderStarted:
		p.started = ev.Time
		p.seen = 0
		p.points = p.points[:0]
	case ProgressUpdated:
		p.seen++
		// The final update is always recorded so the curve ends at the finished render
		if p.seen%p.Frequency == 0 || ev.Done {
			p.points = append(p.points, ProgressPoint{Elapsed: ev.Time.Sub(p.started), Progress: ev.Progress})
		}
	}
}

// Points returns a copy of the recorded curve
func (p *ProgressPlot) Points() []ProgressPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProgressPoint(nil), p.points...)
}

// WriteTable renders the curve as a text table
func (p *ProgressPlot) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Elapsed", "Progress"})
	for _, pt := range p.Points() {
		table.Append([]string{pt.Elapsed.Round(time.Millisecond).String(), fmt.Sprintf("%.1f%%", pt.Progress*100)})
	}
	table.Render()
}
