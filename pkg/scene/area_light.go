package scene

import (
	"math"
	"sort"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// AreaLight emits constant radiance from the front face of a triangle mesh
type AreaLight struct {
	Emission core.Vec3
	mesh     *TriangleMesh
	cdf      []float64 // cumulative face areas normalised to 1
}

// LightSample is a point sampled on a light as seen from a reference point
type LightSample struct {
	Point    core.Vec3
	Normal   core.Vec3
	Wi       core.Vec3 // unit direction from the reference point to Point
	Distance float64
	Le       core.Vec3 // radiance arriving along -Wi, zero if Point faces away
	Pdf      float64   // solid angle density at the reference point
}

// NewAreaLight attaches an emitter to a mesh
func NewAreaLight(mesh *TriangleMesh, emission core.Vec3) *AreaLight {
	l := &AreaLight{Emission: emission, mesh: mesh, cdf: make([]float64, mesh.NumFaces())}
	sum := 0.0
	for i := 0; i < mesh.NumFaces(); i++ {
		sum += mesh.FaceArea(i)
		l.cdf[i] = sum
	}
	if sum > 0 {
		for i := range l.cdf {
			l.cdf[i] /= sum
		}
	}
	return l
}

// Mesh returns the emitting geometry
func (l *AreaLight) Mesh() *TriangleMesh { return l.mesh }

// SamplePosition picks a point uniformly by area. u.X selects the triangle and is
// rescaled for reuse, so exactly one 2D draw is consumed.
func (l *AreaLight) SamplePosition(u core.Vec2) (core.Vec3, core.Vec3) {
	n := len(l.cdf)
	face := sort.Search(n, func(i int) bool { return l.cdf[i] > u.X })
	if face >= n {
		face = n - 1
	}
	lo := 0.0
	if face > 0 {
		lo = l.cdf[face-1]
	}
	ux := u.X
	if width := l.cdf[face] - lo; width > 0 {
		ux = math.Min((u.X-lo)/width, 1)
	}
	b0, b1 := core.SampleUniformTriangle(core.NewVec2(ux, u.Y))
	return l.mesh.PointOnFace(face, b0, b1), l.mesh.Normal(face)
}

// PdfPosition is the area density of SamplePosition
func (l *AreaLight) PdfPosition() float64 {
	if l.mesh.Area() <= 0 {
		return 0
	}
	return 1 / l.mesh.Area()
}

// Le returns the radiance leaving a point with normal n in direction w
func (l *AreaLight) Le(n, w core.Vec3) core.Vec3 {
	if n.Dot(w) <= 0 {
		return core.Vec3{}
	}
	return l.Emission
}

// SampleDirection draws a cosine-weighted emission direction about n
func (l *AreaLight) SampleDirection(n core.Vec3, u core.Vec2) (core.Vec3, float64) {
	w := core.SampleCosineHemisphere(n, u).Normalize()
	return w, core.CosineHemispherePDF(w.Dot(n))
}

// PdfDirection is the solid angle density of SampleDirection
func (l *AreaLight) PdfDirection(n, w core.Vec3) float64 {
	return core.CosineHemispherePDF(n.Dot(w))
}

// SampleLi samples a point on the light for illuminating ref
func (l *AreaLight) SampleLi(ref core.Vec3, u core.Vec2) (LightSample, bool) {
	p, n := l.SamplePosition(u)
	d := p.Subtract(ref)
	dist2 := d.LengthSquared()
	if dist2 == 0 {
		return LightSample{}, false
	}
	dist := math.Sqrt(dist2)
	wi := d.Multiply(1 / dist)
	cos := n.AbsDot(wi)
	if cos == 0 {
		return LightSample{}, false
	}
	return LightSample{
		Point:    p,
		Normal:   n,
		Wi:       wi,
		Distance: dist,
		Le:       l.Le(n, wi.Negate()),
		Pdf:      l.PdfPosition() * dist2 / cos,
	}, true
}
