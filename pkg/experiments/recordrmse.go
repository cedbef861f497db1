package experiments

import (
	"fmt"
	"image"
	_ "image/png"
	"io"
	"math"
	"os"
	"sync"

	"github.com/olekukonko/tablewriter"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
)

// RecordRMSEName is the type name of the RMSE experiment
const RecordRMSEName = "recordrmse"

// RMSEPoint is the error of the running image after a pass
type RMSEPoint struct {
	Pass         int
	TotalSamples int
	RMSE         float64
}

// RecordRMSE measures the running image against a reference every Frequency passes
type RecordRMSE struct {
	Frequency int

	mu            sync.Mutex
	reference     []float64
	width, height int
	warned        bool
	points        []RMSEPoint
}

// NewRecordRMSE creates an RMSE recorder without a reference
func NewRecordRMSE(frequency int) *RecordRMSE {
	return &RecordRMSE{Frequency: max(1, frequency)}
}

// newRecordRMSEFromConfig requires a reference image:
//
//	- type: recordrmse
//	  frequency: 1
//	  reference: reference.png   # png, bmp or tiff written by the render command
func newRecordRMSEFromConfig(node config.Node) (Experiment, error) {
	frequency, err := frequencyFromConfig(node)
	if err != nil {
		return nil, err
	}
	path, err := config.ChildValue[string](node, "reference")
	if err != nil {
		return nil, err
	}
	width, height, pixels, err := LoadReference(path)
	if err != nil {
		return nil, err
	}
	r := NewRecordRMSE(frequency)
	if err := r.SetReference(width, height, pixels); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadReference decodes a reference image in row-major order. Images are stored
// with gamma 2, which is undone so errors are measured on linear radiance.
func LoadReference(path string) (int, int, []core.Vec3, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("reference %s: %w", path, err)
	}

	bounds := img.Bounds()
	pixels := make([]core.Vec3, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pixels = append(pixels, core.NewVec3(linearChannel(r), linearChannel(g), linearChannel(b)))
		}
	}
	logger.Debugf("loaded %dx%d reference %s", bounds.Dx(), bounds.Dy(), path)
	return bounds.Dx(), bounds.Dy(), pixels, nil
}

func linearChannel(c uint32) float64 {
	v := float64(c) / 0xffff
	return v * v
}

// SetReference sets the image errors are measured against, in row-major order
func (r *RecordRMSE) SetReference(width, height int, pixels []core.Vec3) error {
	if width <= 0 || height <= 0 || len(pixels) != width*height {
		return fmt.Errorf("recordrmse: reference of %d pixels does not match %dx%d", len(pixels), width, height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reference = flatten(pixels)
	r.width, r.height = width, height
	r.warned = false
	return nil
}

// Name implements Experiment
func (r *RecordRMSE) Name() string { return RecordRMSEName }

// Notify implements Notifier
func (r *RecordRMSE) Notify(ev Event) {
	if ev.Type == RenderStarted {
		r.mu.Lock()
		r.points = nil
		r.mu.Unlock()
		return
	}
	if ev.Type != PassFinished || ev.Pass%r.Frequency != 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reference == nil || ev.Width != r.width || ev.Height != r.height || len(ev.Image) != r.width*r.height {
		if !r.warned {
			logger.Warningf("recordrmse: no reference matching the %dx%d image, skipping", ev.Width, ev.Height)
			r.warned = true
		}
		return
	}
	r.points = append(r.points, RMSEPoint{
		Pass:         ev.Pass,
		TotalSamples: ev.TotalSamples,
		RMSE:         rmse(flatten(ev.Image), r.reference),
	})
}

// Points returns a copy of the recorded errors
func (r *RecordRMSE) Points() []RMSEPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RMSEPoint(nil), r.points...)
}

// WriteTable renders the recorded errors as a text table
func (r *RecordRMSE) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pass", "Samples", "RMSE"})
	for _, pt := range r.Points() {
		table.Append([]string{fmt.Sprint(pt.Pass), fmt.Sprint(pt.TotalSamples), fmt.Sprintf("%.6g", pt.RMSE)})
	}
	table.Render()
}

// RMSE returns the root mean square error over all color channels of two images
// of the same size
func RMSE(a, b []core.Vec3) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.NaN()
	}
	return rmse(flatten(a), flatten(b))
}

func rmse(a, b []float64) float64 {
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}

func flatten(pixels []core.Vec3) []float64 {
	out := make([]float64, 0, 3*len(pixels))
	for _, p := range pixels {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}
