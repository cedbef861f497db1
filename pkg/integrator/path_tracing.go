package integrator

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// PathTracer implements unidirectional path tracing with next event estimation. Light
// samples and BSDF samples that hit an emitter are combined with the configured MIS weight.
// It covers the same path space as BPT and serves as its reference.
type PathTracer struct {
	scene  *scene.Scene
	config Config
	mis    MISWeight
}

// NewPathTracer creates a path tracing integrator
func NewPathTracer(scn *scene.Scene, cfg Config, mis MISWeight) *PathTracer {
	return &PathTracer{scene: scn, config: cfg, mis: mis}
}

// Name implements Integrator
func (pt *PathTracer) Name() string { return "pt" }

// NewProcess implements Integrator
func (pt *PathTracer) NewProcess() Process {
	return &ptProcess{pt: pt, ratio: make([]float64, 1)}
}

type ptProcess struct {
	pt        *PathTracer
	radiance  core.Vec3
	ratio     []float64
	discarded int
}

// SampleSubpaths implements Process by tracing the whole path. Draws: NextVec2 for the
// jitter, then per vertex Next and NextVec2 for the light sample, Next for roulette
// (from vertex depth RRDepth on) and NextVec2 for the BSDF.
func (p *ptProcess) SampleSubpaths(x, y int, s sampler.Sampler) {
	p.radiance = p.rayColor(x, y, s)
}

// Combine implements Process
func (p *ptProcess) Combine(s sampler.Sampler, splats *[]Splat) core.Vec3 {
	return p.radiance
}

// Discarded implements Process
func (p *ptProcess) Discarded() int { return p.discarded }

// add accumulates a contribution unless it is degenerate
func (p *ptProcess) add(total *core.Vec3, c core.Vec3) {
	if !c.IsFinite() || c.HasNegative() {
		p.discarded++
		return
	}
	*total = total.Add(c)
}

func (p *ptProcess) weight(pdfThis, pdfOther float64) float64 {
	if pdfOther <= 0 {
		return 1
	}
	p.ratio[0] = pdfOther / pdfThis
	return p.pt.mis.Evaluate(p.ratio)
}

func (p *ptProcess) rayColor(x, y int, s sampler.Sampler) core.Vec3 {
	scn := p.pt.scene
	cfg := p.pt.config
	var total core.Vec3

	jitter := s.NextVec2()
	ray := scn.Camera().GenerateRay(float64(x)+jitter.X, float64(y)+jitter.Y)
	beta := core.NewVec3(1, 1, 1)

	// Solid angle density of the last BSDF sample; zero after delta bounces and for the camera ray
	pdfBSDF := 0.0
	var prevPoint core.Vec3

	// vertices counts the camera endpoint
	for vertices := 1; vertices < cfg.MaxPathVertices; vertices++ {
		hit, ok := scn.Intersect(ray, scene.RayEpsilon, math.Inf(1))
		if !ok {
			break
		}
		depth := vertices
		wi := ray.Direction.Negate()

		// Emission found by BSDF sampling
		if light := hit.Primitive.Light; light != nil {
			le := light.Le(hit.Normal, wi)
			if !le.IsZero() {
				w := 1.0
				if pdfBSDF > 0 {
					dist2 := hit.Point.Subtract(prevPoint).LengthSquared()
					cos := hit.Normal.AbsDot(wi)
					pdfLight := 0.0
					if cos > 0 {
						pdfLight = light.PdfPosition() * scn.LightSelectionPdf() * dist2 / cos
					}
					w = p.weight(pdfBSDF, pdfLight)
				}
				p.add(&total, beta.MultiplyVec(le).Multiply(w))
			}
		}

		if vertices+1 >= cfg.MaxPathVertices {
			break
		}

		bsdf := hit.Primitive.BSDF

		// Next event estimation
		if !bsdf.IsDelta() {
			light, pdfSelect := scn.SampleLight(s.Next())
			u := s.NextVec2()
			if light != nil {
				p.add(&total, p.directLight(hit, wi, light, pdfSelect, u, beta))
			}
		}

		// Russian roulette with a fixed continuation probability
		if depth >= cfg.RRDepth {
			if s.Next() >= cfg.RRProb {
				break
			}
			beta = beta.Multiply(1 / cfg.RRProb)
		}

		bs, ok := bsdf.Sample(wi, hit.Normal, s.NextVec2())
		if !ok {
			break
		}
		beta = beta.MultiplyVec(bs.Weight)
		if beta.IsZero() || !beta.IsFinite() {
			break
		}
		if bs.Delta {
			pdfBSDF = 0
		} else {
			pdfBSDF = bs.Pdf
		}
		prevPoint = hit.Point
		ray = core.NewRay(hit.Point, bs.Wo)
	}
	return total
}

// directLight samples a point on light and returns its weighted contribution at hit
func (p *ptProcess) directLight(hit scene.Hit, wi core.Vec3, light *scene.AreaLight, pdfSelect float64, u core.Vec2, beta core.Vec3) core.Vec3 {
	scn := p.pt.scene
	ls, ok := light.SampleLi(hit.Point, u)
	if !ok || ls.Pdf <= 0 || ls.Le.IsZero() {
		return core.Vec3{}
	}
	bsdf := hit.Primitive.BSDF
	f := bsdf.F(wi, ls.Wi, hit.Normal)
	if f.IsZero() || !scn.Visible(hit.Point, ls.Point) {
		return core.Vec3{}
	}
	pdfLight := ls.Pdf * pdfSelect
	w := p.weight(pdfLight, bsdf.Pdf(wi, ls.Wi, hit.Normal))
	return beta.MultiplyVec(f).MultiplyVec(ls.Le).Multiply(hit.Normal.AbsDot(ls.Wi) * w / pdfLight)
}
