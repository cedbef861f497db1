package integrator

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// Subpath is a reusable vertex arena for one camera or light subpath. Vertices are
// appended while sampling and read-only afterwards.
type Subpath struct {
	vertices []Vertex
}

// NewSubpath creates an arena sized for maxVertices
func NewSubpath(maxVertices int) *Subpath {
	return &Subpath{vertices: make([]Vertex, 0, maxVertices)}
}

// Clear empties the subpath, keeping its storage
func (p *Subpath) Clear() {
	p.vertices = p.vertices[:0]
}

// NumVertices returns the number of vertices
func (p *Subpath) NumVertices() int {
	return len(p.vertices)
}

// Vertex returns vertex i
func (p *Subpath) Vertex(i int) *Vertex {
	return &p.vertices[i]
}

// SampleCamera builds a camera subpath through a jittered position in pixel (x, y).
// Draws: NextVec2 for the jitter, then the random walk.
func (p *Subpath) SampleCamera(scn *scene.Scene, x, y int, s sampler.Sampler, cfg Config) {
	p.Clear()
	if cfg.MaxPathVertices < 1 {
		return
	}

	camera := scn.Camera()
	jitter := s.NextVec2()
	ray := camera.GenerateRay(float64(x)+jitter.X, float64(y)+jitter.Y)

	// The pinhole is a delta position; PdfFwd holds the remapped density 1
	p.vertices = append(p.vertices, Vertex{
		Type:   CameraVertex,
		Point:  camera.Origin(),
		Normal: camera.Forward(),
		Beta:   core.NewVec3(1, 1, 1),
		PdfFwd: 1,
		Camera: camera,
	})

	pdfDir := camera.PdfDirection(ray.Direction)
	if pdfDir <= 0 {
		return
	}
	p.randomWalk(scn, ray, core.NewVec3(1, 1, 1), pdfDir, s, cfg)
}

// SampleLight builds a light subpath from a uniformly selected emitter.
// Draws: Next for the light, NextVec2 for the position, NextVec2 for the direction,
// then the random walk. A scene without lights yields an empty subpath and no draws.
func (p *Subpath) SampleLight(scn *scene.Scene, s sampler.Sampler, cfg Config) {
	p.Clear()
	if cfg.MaxPathVertices < 1 || scn.NumLights() == 0 {
		return
	}

	light, pdfSelect := scn.SampleLight(s.Next())
	point, normal := light.SamplePosition(s.NextVec2())
	dir, pdfDir := light.SampleDirection(normal, s.NextVec2())
	pdfPos := light.PdfPosition()
	le := light.Le(normal, dir)
	if pdfSelect <= 0 || pdfPos <= 0 || pdfDir <= 0 || le.IsZero() {
		return
	}

	p.vertices = append(p.vertices, Vertex{
		Type:   LightVertex,
		Point:  point,
		Normal: normal,
		Beta:   le.Multiply(1 / (pdfPos * pdfSelect)),
		PdfFwd: pdfPos * pdfSelect,
		Light:  light,
	})

	beta := le.Multiply(normal.AbsDot(dir) / (pdfSelect * pdfPos * pdfDir))
	p.randomWalk(scn, core.NewRay(point, dir), beta, pdfDir, s, cfg)
}

// randomWalk extends the subpath from its last vertex along ray, where pdfDir is the solid
// angle density of having sampled ray's direction. Per bounce it draws Next for roulette
// (only from vertex depth cfg.RRDepth on) and NextVec2 for the BSDF.
func (p *Subpath) randomWalk(scn *scene.Scene, ray core.Ray, beta core.Vec3, pdfDir float64, s sampler.Sampler, cfg Config) {
	// Set after a delta bounce: the next vertex stores the remapped density 1
	deltaBounce := false

	for len(p.vertices) < cfg.MaxPathVertices {
		hit, ok := scn.Intersect(ray, scene.RayEpsilon, math.Inf(1))
		if !ok {
			break
		}

		prev := &p.vertices[len(p.vertices)-1]
		vertex := Vertex{
			Type:   SurfaceVertex,
			Point:  hit.Point,
			Normal: hit.Normal,
			Wi:     ray.Direction.Negate(),
			Beta:   beta,
			BSDF:   hit.Primitive.BSDF,
			Light:  hit.Primitive.Light,
		}
		if deltaBounce {
			vertex.PdfFwd = 1
		} else {
			vertex.PdfFwd = prev.convertDensity(pdfDir, &vertex)
		}
		if !(vertex.PdfFwd > 0) || math.IsInf(vertex.PdfFwd, 0) {
			break
		}
		p.vertices = append(p.vertices, vertex)
		depth := len(p.vertices) - 1
		if len(p.vertices) >= cfg.MaxPathVertices || vertex.BSDF == nil {
			break
		}

		// Russian roulette with a fixed continuation probability
		if depth >= cfg.RRDepth {
			if s.Next() >= cfg.RRProb {
				break
			}
			beta = beta.Multiply(1 / cfg.RRProb)
		}

		v := &p.vertices[depth]
		bs, ok := v.BSDF.Sample(v.Wi, v.Normal, s.NextVec2())
		if !ok {
			break
		}
		beta = beta.MultiplyVec(bs.Weight)

		prev = &p.vertices[depth-1]
		if bs.Delta {
			v.Delta = true
			prev.PdfRev = 1
			deltaBounce = true
		} else {
			pdfRev := v.BSDF.Pdf(bs.Wo, v.Wi, v.Normal)
			prev.PdfRev = v.convertDensity(pdfRev, prev)
			deltaBounce = false
		}
		pdfDir = bs.Pdf

		if beta.IsZero() || !beta.IsFinite() {
			break
		}
		ray = core.NewRay(v.Point, bs.Wo)
	}
}
