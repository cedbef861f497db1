package integrator

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// BPT implements bidirectional path tracing. Every connection strategy (s,t) joins the
// first s light subpath vertices to the first t camera subpath vertices:
//
//   - (s=0, t): the camera subpath hits an emitter
//   - (s=1, t): next event estimation, a fresh light sample for camera vertex t-1
//   - (s, t=1): light tracing, light vertex s-1 connects to the pinhole and splats
//   - otherwise: a shadow ray between the two subpath ends
//
// Strategies are combined with multiple importance sampling.
type BPT struct {
	scene  *scene.Scene
	config Config
	mis    MISWeight
}

// NewBPT creates a bidirectional path tracer
func NewBPT(scn *scene.Scene, cfg Config, mis MISWeight) *BPT {
	return &BPT{scene: scn, config: cfg, mis: mis}
}

// Name implements Integrator
func (b *BPT) Name() string { return "bpt" }

// NewProcess implements Integrator
func (b *BPT) NewProcess() Process {
	return &bptProcess{
		bpt:    b,
		camera: NewSubpath(b.config.MaxPathVertices),
		light:  NewSubpath(b.config.MaxPathVertices),
		ratios: make([]float64, 0, 2*b.config.MaxPathVertices),
	}
}

// bptProcess holds the subpath arenas of one worker
type bptProcess struct {
	bpt       *BPT
	camera    *Subpath
	light     *Subpath
	ratios    []float64
	discarded int
}

// SampleSubpaths implements Process. The camera subpath is drawn before the light subpath.
// Light subpaths stop one vertex short since every strategy keeps at least one camera vertex.
func (p *bptProcess) SampleSubpaths(x, y int, s sampler.Sampler) {
	cfg := p.bpt.config
	p.camera.SampleCamera(p.bpt.scene, x, y, s, cfg)
	cfg.MaxPathVertices--
	p.light.SampleLight(p.bpt.scene, s, cfg)
}

// Combine implements Process
func (p *bptProcess) Combine(smp sampler.Sampler, splats *[]Splat) core.Vec3 {
	var total core.Vec3
	nCamera := p.camera.NumVertices()
	nLight := p.light.NumVertices()

	// Next event estimation does not need the light subpath
	maxS := nLight
	if maxS == 0 && p.bpt.scene.NumLights() > 0 {
		maxS = 1
	}

	for t := 1; t <= nCamera; t++ {
		for s := 0; s <= maxS; s++ {
			// Paths longer than MaxPathVertices are not reachable by every strategy
			if s+t < 2 || s+t > p.bpt.config.MaxPathVertices || (s == 1 && t == 1) {
				continue
			}

			c := p.connect(s, t, smp)
			if c.L.IsZero() {
				continue
			}
			weight := 1.0
			if s+t > 2 {
				weight = p.misWeight(s, t, c.sampled)
			}
			L := c.L.Multiply(weight)
			if !L.IsFinite() || L.HasNegative() || math.IsNaN(weight) || math.IsInf(weight, 0) {
				p.discarded++
				continue
			}

			if t == 1 {
				*splats = append(*splats, Splat{X: c.rasterX, Y: c.rasterY, Color: L})
			} else {
				total = total.Add(L)
			}
		}
	}
	return total
}

// Discarded implements Process
func (p *bptProcess) Discarded() int { return p.discarded }

// connection is the unweighted result of one strategy
type connection struct {
	L                core.Vec3
	sampled          *Vertex // endpoint resampled by the s=1 and t=1 strategies
	rasterX, rasterY int
}

func (p *bptProcess) connect(s, t int, smp sampler.Sampler) connection {
	scn := p.bpt.scene
	var c connection

	switch {
	case s == 0:
		pt := p.camera.Vertex(t - 1)
		if pt.IsLight() {
			c.L = pt.Le(pt.Wi).MultiplyVec(pt.Beta)
		}

	case t == 1:
		qs := p.light.Vertex(s - 1)
		if !qs.IsConnectible() {
			return c
		}
		camera := scn.Camera()
		cs, ok := camera.SampleWi(qs.Point)
		if !ok || cs.Pdf <= 0 || cs.Importance <= 0 {
			return c
		}
		sampled := &Vertex{
			Type:   CameraVertex,
			Point:  camera.Origin(),
			Normal: camera.Forward(),
			Beta:   core.NewVec3(1, 1, 1).Multiply(cs.Importance / cs.Pdf),
			PdfFwd: 1,
			Camera: camera,
		}
		L := qs.Beta.MultiplyVec(qs.f(sampled)).MultiplyVec(sampled.Beta).Multiply(qs.Normal.AbsDot(cs.Wi))
		if L.IsZero() || !scn.Visible(qs.Point, camera.Origin()) {
			return c
		}
		c.L = L
		c.sampled = sampled
		c.rasterX = clampIndex(int(cs.RasterX), camera.Width())
		c.rasterY = clampIndex(int(cs.RasterY), camera.Height())

	case s == 1:
		pt := p.camera.Vertex(t - 1)
		// Draws are taken for every camera vertex so the sample sequence does not depend on geometry
		light, pdfSelect := scn.SampleLight(smp.Next())
		u := smp.NextVec2()
		if light == nil || !pt.IsConnectible() {
			return c
		}
		ls, ok := light.SampleLi(pt.Point, u)
		if !ok || ls.Pdf <= 0 || ls.Le.IsZero() {
			return c
		}
		sampled := &Vertex{
			Type:   LightVertex,
			Point:  ls.Point,
			Normal: ls.Normal,
			Beta:   ls.Le.Multiply(1 / (ls.Pdf * pdfSelect)),
			PdfFwd: light.PdfPosition() * pdfSelect,
			Light:  light,
		}
		L := pt.Beta.MultiplyVec(pt.f(sampled)).MultiplyVec(sampled.Beta).Multiply(pt.Normal.AbsDot(ls.Wi))
		if L.IsZero() || !scn.Visible(pt.Point, ls.Point) {
			return c
		}
		c.L = L
		c.sampled = sampled

	default:
		qs := p.light.Vertex(s - 1)
		pt := p.camera.Vertex(t - 1)
		if !qs.IsConnectible() || !pt.IsConnectible() {
			return c
		}
		L := qs.Beta.MultiplyVec(qs.f(pt)).MultiplyVec(pt.f(qs)).MultiplyVec(pt.Beta)
		if L.IsZero() {
			return c
		}
		c.L = L.Multiply(geometricTerm(scn, qs, pt))
	}
	return c
}

// misWeight computes the weight of strategy (s,t) from the ratios of the densities of every
// other strategy that generates the same path. The connection endpoints' reverse densities
// and delta flags are overridden for the duration of the call.
func (p *bptProcess) misWeight(s, t int, sampled *Vertex) float64 {
	scn := p.bpt.scene

	// Strategy view: the resampled endpoint replaces the subpath vertex it stands for
	cameraVertex := func(i int) *Vertex {
		if t == 1 && i == 0 && sampled != nil {
			return sampled
		}
		return p.camera.Vertex(i)
	}
	lightVertex := func(i int) *Vertex {
		if s == 1 && i == 0 && sampled != nil {
			return sampled
		}
		return p.light.Vertex(i)
	}

	var qs, pt, qsMinus, ptMinus *Vertex
	if s > 0 {
		qs = lightVertex(s - 1)
	}
	pt = cameraVertex(t - 1)
	if s > 1 {
		qsMinus = lightVertex(s - 2)
	}
	if t > 1 {
		ptMinus = cameraVertex(t - 2)
	}

	type saved struct {
		v      *Vertex
		pdfRev float64
		delta  bool
	}
	var restore [4]saved
	n := 0
	save := func(v *Vertex) {
		if v != nil {
			restore[n] = saved{v: v, pdfRev: v.PdfRev, delta: v.Delta}
			n++
		}
	}
	save(pt)
	save(ptMinus)
	save(qs)
	save(qsMinus)
	defer func() {
		for i := n - 1; i >= 0; i-- {
			restore[i].v.PdfRev = restore[i].pdfRev
			restore[i].v.Delta = restore[i].delta
		}
	}()

	pt.Delta = false
	if qs != nil {
		qs.Delta = false
	}

	if s > 0 {
		pt.PdfRev = qs.pdf(qsMinus, pt)
	} else {
		pt.PdfRev = pt.pdfLightOrigin(scn)
	}
	if ptMinus != nil {
		if s > 0 {
			ptMinus.PdfRev = pt.pdf(qs, ptMinus)
		} else {
			ptMinus.PdfRev = pt.pdfLight(ptMinus)
		}
	}
	if qs != nil {
		qs.PdfRev = pt.pdf(ptMinus, qs)
	}
	if qsMinus != nil {
		qsMinus.PdfRev = qs.pdf(pt, qsMinus)
	}

	p.ratios = p.ratios[:0]

	// Strategies with fewer camera vertices
	ri := 1.0
	for i := t - 1; i > 0; i-- {
		zi := cameraVertex(i)
		ri *= remap0(zi.PdfRev) / remap0(zi.PdfFwd)
		if !zi.Delta && !cameraVertex(i-1).Delta {
			p.ratios = append(p.ratios, ri)
		}
	}

	// Strategies with fewer light vertices; area lights are never delta
	ri = 1.0
	for i := s - 1; i >= 0; i-- {
		yi := lightVertex(i)
		ri *= remap0(yi.PdfRev) / remap0(yi.PdfFwd)
		deltaPrev := false
		if i > 0 {
			deltaPrev = lightVertex(i - 1).Delta
		}
		if !yi.Delta && !deltaPrev {
			p.ratios = append(p.ratios, ri)
		}
	}

	return p.bpt.mis.Evaluate(p.ratios)
}

// remap0 maps the zero density of delta interactions to 1 so ratios pass through them
func remap0(f float64) float64 {
	if f != 0 {
		return f
	}
	return 1
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
