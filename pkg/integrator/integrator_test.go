package integrator

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

func parseNode(t *testing.T, doc string) config.Node {
	t.Helper()
	root, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return root
}

func TestMISWeightFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantName string
		wantErr  error
		anyErr   bool
	}{
		{name: "Power", doc: "mis_weight: {type: power}", wantName: "power"},
		{name: "PowerBeta", doc: "mis_weight: {type: power, beta: 3}", wantName: "power"},
		{name: "Balance", doc: "mis_weight: {type: balance}", wantName: "balance"},
		{name: "Simple", doc: "mis_weight: {type: simple}", wantName: "simple"},
		{name: "Missing", doc: "other: 1", wantErr: config.ErrMissing},
		{name: "MissingType", doc: "mis_weight: {beta: 2}", wantErr: config.ErrMissing},
		{name: "Unknown", doc: "mis_weight: {type: veach}", wantErr: ErrUnknownMISWeight},
		{name: "NegativeBeta", doc: "mis_weight: {type: power, beta: -1}", anyErr: true},
		{name: "MalformedBeta", doc: "mis_weight: {type: power, beta: high}", anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mis, err := MISWeightFromConfig(parseNode(t, tt.doc).Child("mis_weight"))
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Error("Expected an error")
				}
			default:
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if mis.Name() != tt.wantName {
					t.Errorf("Expected %s, got %s", tt.wantName, mis.Name())
				}
			}
		})
	}
}

func TestMISWeight_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		mis    MISWeight
		ratios []float64
		want   float64
	}{
		{"PowerNoAlternatives", PowerHeuristic{Beta: 2}, nil, 1},
		{"PowerEqual", PowerHeuristic{Beta: 2}, []float64{1}, 0.5},
		{"PowerTwo", PowerHeuristic{Beta: 2}, []float64{2}, 1.0 / 5.0},
		{"Balance", PowerHeuristic{Beta: 1}, []float64{2, 1}, 1.0 / 4.0},
		{"PowerIgnoresZero", PowerHeuristic{Beta: 2}, []float64{0, 1}, 0.5},
		{"Simple", SimpleWeight{}, []float64{3, 0, 0.1}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		if got := tt.mis.Evaluate(tt.ratios); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %f, got %f", tt.name, tt.want, got)
		}
	}
}

func TestConfigFromNode(t *testing.T) {
	cfg, err := ConfigFromNode(parseNode(t, "renderer: {}").Child("renderer"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}

	cfg, err = ConfigFromNode(parseNode(t, "renderer: {rr_depth: 3, rr_prob: 0.8, max_path_vertices: 5}").Child("renderer"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.RRDepth != 3 || cfg.RRProb != 0.8 || cfg.MaxPathVertices != 5 {
		t.Errorf("Unexpected config %+v", cfg)
	}

	invalid := []string{
		"renderer: {max_path_vertices: 0}",
		"renderer: {rr_prob: 0}",
		"renderer: {rr_prob: 1.5}",
		"renderer: {rr_depth: -1}",
		"renderer: {max_path_vertices: many}",
	}
	for _, doc := range invalid {
		if _, err := ConfigFromNode(parseNode(t, doc).Child("renderer")); err == nil {
			t.Errorf("%s: expected an error", doc)
		}
	}
}

func TestFromConfig(t *testing.T) {
	scn := scene.NewTriangleScene(4, 4)

	for _, name := range []string{"bpt", "pt"} {
		doc := "renderer: {type: " + name + ", mis_weight: {type: power}}"
		integ, err := FromConfig(parseNode(t, doc).Child("renderer"), scn)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if integ.Name() != name {
			t.Errorf("Expected %s, got %s", name, integ.Name())
		}
	}

	if _, err := FromConfig(parseNode(t, "renderer: {type: mlt, mis_weight: {type: power}}").Child("renderer"), scn); !errors.Is(err, ErrUnknownIntegrator) {
		t.Errorf("Expected ErrUnknownIntegrator, got %v", err)
	}
	if _, err := FromConfig(parseNode(t, "renderer: {type: bpt}").Child("renderer"), scn); !errors.Is(err, config.ErrMissing) {
		t.Errorf("Expected missing mis_weight error, got %v", err)
	}
}

// renderMean estimates the average image luminance with spp samples per pixel,
// folding splats in the same way as the film does
func renderMean(t *testing.T, integ Integrator, scn *scene.Scene, spp int, seed uint32) float64 {
	t.Helper()
	w, h := scn.Camera().Width(), scn.Camera().Height()
	accum := make([]float64, w*h)
	splat := make([]float64, w*h)

	proc := integ.NewProcess()
	s := newSampler(t, seed)
	var splats []Splat
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for i := 0; i < spp; i++ {
				proc.SampleSubpaths(x, y, s)
				accum[y*w+x] += proc.Combine(s, &splats).Luminance()
			}
		}
	}
	for _, sp := range splats {
		splat[sp.Y*w+sp.X] += sp.Color.Luminance()
	}

	pixels := make([]float64, w*h)
	for i := range pixels {
		pixels[i] = (accum[i] + splat[i]) / float64(spp)
	}
	return stat.Mean(pixels, nil)
}

func TestBPT_AgreesWithPathTracer(t *testing.T) {
	scn := scene.NewTriangleScene(8, 8)
	cfg := DefaultConfig()
	mis := PowerHeuristic{Beta: 2}

	bpt := renderMean(t, NewBPT(scn, cfg, mis), scn, 128, 11)
	pt := renderMean(t, NewPathTracer(scn, cfg, mis), scn, 128, 23)

	if pt <= 0 {
		t.Fatalf("Expected a lit image from the path tracer, got mean %f", pt)
	}
	if rel := math.Abs(bpt-pt) / pt; rel > 0.1 {
		t.Errorf("BPT mean %f differs from path tracer mean %f by %.1f%%", bpt, pt, rel*100)
	}
}

func TestPathTracer_NoDegenerateValues(t *testing.T) {
	scn := scene.NewCornellScene(16, 16)
	proc := NewPathTracer(scn, DefaultConfig(), PowerHeuristic{Beta: 2}).NewProcess()
	s := newSampler(t, 4)

	lit := 0
	var splats []Splat
	for i := 0; i < 16*16*2; i++ {
		proc.SampleSubpaths(i%16, (i/16)%16, s)
		L := proc.Combine(s, &splats)
		if !L.IsFinite() || L.HasNegative() {
			t.Fatalf("Degenerate value %v", L)
		}
		if !L.IsZero() {
			lit++
		}
	}
	if len(splats) != 0 {
		t.Errorf("Expected no splats from the path tracer, got %d", len(splats))
	}
	if lit == 0 {
		t.Error("Expected the Cornell box to receive light")
	}
}
