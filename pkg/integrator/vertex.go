package integrator

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// VertexType classifies a path vertex
type VertexType int

const (
	CameraVertex VertexType = iota
	LightVertex
	SurfaceVertex
)

func (t VertexType) String() string {
	switch t {
	case CameraVertex:
		return "camera"
	case LightVertex:
		return "light"
	default:
		return "surface"
	}
}

// Vertex represents a single vertex in a light transport path
type Vertex struct {
	Type   VertexType
	Point  core.Vec3 // 3D position
	Normal core.Vec3 // geometric normal; the viewing direction for the camera endpoint
	Wi     core.Vec3 // unit direction toward the previous vertex, zero for endpoints

	Beta core.Vec3 // throughput from the subpath origin up to and including this vertex

	// Area-measure densities of generating this vertex from its predecessor (forward)
	// and from its successor (reverse)
	PdfFwd float64
	PdfRev float64

	Delta bool // scattered by a delta BSDF

	BSDF   scene.BSDF
	Light  *scene.AreaLight // emitter at this vertex, also set for surface hits on emitters
	Camera *scene.Camera
}

// IsOnSurface reports whether densities arriving at v carry a cosine term
func (v *Vertex) IsOnSurface() bool {
	return v.Type != CameraVertex
}

// IsConnectible reports whether a deterministic connection can end at v
func (v *Vertex) IsConnectible() bool {
	switch v.Type {
	case CameraVertex, LightVertex:
		return true
	default:
		return !v.Delta && v.BSDF != nil
	}
}

// IsLight reports whether v emits radiance
func (v *Vertex) IsLight() bool {
	return v.Light != nil
}

// Le returns the radiance v emits toward w
func (v *Vertex) Le(w core.Vec3) core.Vec3 {
	if v.Light == nil {
		return core.Vec3{}
	}
	return v.Light.Le(v.Normal, w)
}

// f evaluates the BSDF at a surface vertex for scattering toward next
func (v *Vertex) f(next *Vertex) core.Vec3 {
	if v.Type != SurfaceVertex || v.BSDF == nil {
		return core.Vec3{}
	}
	wo := next.Point.Subtract(v.Point)
	if wo.LengthSquared() == 0 {
		return core.Vec3{}
	}
	return v.BSDF.F(v.Wi, wo.Normalize(), v.Normal)
}

// convertDensity converts a solid angle density at v into an area density at next
func (v *Vertex) convertDensity(pdf float64, next *Vertex) float64 {
	w := next.Point.Subtract(v.Point)
	dist2 := w.LengthSquared()
	if dist2 == 0 {
		return 0
	}
	invDist2 := 1 / dist2
	if next.IsOnSurface() {
		pdf *= math.Abs(next.Normal.Dot(w.Multiply(math.Sqrt(invDist2))))
	}
	return pdf * invDist2
}

// pdf returns the area density at next of sampling it from v, which was reached from prev
func (v *Vertex) pdf(prev, next *Vertex) float64 {
	if v.Type == LightVertex {
		return v.pdfLight(next)
	}

	wn := next.Point.Subtract(v.Point)
	if wn.LengthSquared() == 0 {
		return 0
	}
	wn = wn.Normalize()

	var pdf float64
	switch v.Type {
	case CameraVertex:
		pdf = v.Camera.PdfDirection(wn)
	default:
		if prev == nil || v.BSDF == nil {
			return 0
		}
		wp := prev.Point.Subtract(v.Point)
		if wp.LengthSquared() == 0 {
			return 0
		}
		pdf = v.BSDF.Pdf(wp.Normalize(), wn, v.Normal)
	}
	return v.convertDensity(pdf, next)
}

// pdfLight returns the area density at to of emission from the light at v
func (v *Vertex) pdfLight(to *Vertex) float64 {
	if v.Light == nil {
		return 0
	}
	w := to.Point.Subtract(v.Point)
	dist2 := w.LengthSquared()
	if dist2 == 0 {
		return 0
	}
	w = w.Multiply(1 / math.Sqrt(dist2))
	pdf := v.Light.PdfDirection(v.Normal, w) / dist2
	if to.IsOnSurface() {
		pdf *= to.Normal.AbsDot(w)
	}
	return pdf
}

// pdfLightOrigin returns the area density of choosing v as the light subpath origin
func (v *Vertex) pdfLightOrigin(scn *scene.Scene) float64 {
	if v.Light == nil {
		return 0
	}
	return v.Light.PdfPosition() * scn.LightSelectionPdf()
}

// geometricTerm returns the geometric term between two vertices, or zero if they are occluded
func geometricTerm(scn *scene.Scene, a, b *Vertex) float64 {
	d := a.Point.Subtract(b.Point)
	dist2 := d.LengthSquared()
	if dist2 == 0 {
		return 0
	}
	g := 1 / dist2
	d = d.Multiply(math.Sqrt(g))
	if a.IsOnSurface() {
		g *= a.Normal.AbsDot(d)
	}
	if b.IsOnSurface() {
		g *= b.Normal.AbsDot(d)
	}
	if g == 0 || !scn.Visible(a.Point, b.Point) {
		return 0
	}
	return g
}
