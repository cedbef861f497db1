package scene

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// BSDFSample is the result of sampling an outgoing direction
type BSDFSample struct {
	Wo     core.Vec3 // sampled direction, unit length
	Weight core.Vec3 // f * |cos| / pdf
	Pdf    float64   // solid angle density; 1 for delta lobes
	Delta  bool
}

// BSDF describes scattering at a surface. All directions point away from the surface:
// wi toward the previous path vertex, wo toward the next. n is the geometric normal.
type BSDF interface {
	Sample(wi, n core.Vec3, u core.Vec2) (BSDFSample, bool)
	F(wi, wo, n core.Vec3) core.Vec3
	Pdf(wi, wo, n core.Vec3) float64
	IsDelta() bool
}

// Diffuse is a two-sided Lambertian reflector
type Diffuse struct {
	Albedo core.Vec3
}

// NewDiffuse creates a diffuse BSDF
func NewDiffuse(albedo core.Vec3) *Diffuse {
	return &Diffuse{Albedo: albedo}
}

// Sample draws a cosine-weighted direction on the side of wi
func (d *Diffuse) Sample(wi, n core.Vec3, u core.Vec2) (BSDFSample, bool) {
	ns := faceForward(n, wi)
	if ns.IsZero() {
		return BSDFSample{}, false
	}
	wo := core.SampleCosineHemisphere(ns, u).Normalize()
	pdf := core.CosineHemispherePDF(wo.Dot(ns))
	if pdf <= 0 {
		return BSDFSample{}, false
	}
	// f*cos/pdf reduces to the albedo for cosine sampling
	return BSDFSample{Wo: wo, Weight: d.Albedo, Pdf: pdf}, true
}

// F evaluates albedo/π for directions on the same side of the surface
func (d *Diffuse) F(wi, wo, n core.Vec3) core.Vec3 {
	if wi.Dot(n)*wo.Dot(n) <= 0 {
		return core.Vec3{}
	}
	return d.Albedo.Multiply(1.0 / math.Pi)
}

// Pdf is the solid angle density of Sample producing wo from wi
func (d *Diffuse) Pdf(wi, wo, n core.Vec3) float64 {
	if wi.Dot(n)*wo.Dot(n) <= 0 {
		return 0
	}
	return wo.AbsDot(n) / math.Pi
}

// IsDelta implements BSDF
func (d *Diffuse) IsDelta() bool { return false }

// Mirror is a perfect specular reflector
type Mirror struct {
	Reflectance core.Vec3
}

// NewMirror creates a mirror BSDF
func NewMirror(reflectance core.Vec3) *Mirror {
	return &Mirror{Reflectance: reflectance}
}

// Sample returns the mirror direction of wi
func (m *Mirror) Sample(wi, n core.Vec3, u core.Vec2) (BSDFSample, bool) {
	cos := wi.Dot(n)
	if cos == 0 {
		return BSDFSample{}, false
	}
	wo := n.Multiply(2 * cos).Subtract(wi).Normalize()
	return BSDFSample{Wo: wo, Weight: m.Reflectance, Pdf: 1, Delta: true}, true
}

// F is zero, the delta lobe is only reachable through Sample
func (m *Mirror) F(wi, wo, n core.Vec3) core.Vec3 { return core.Vec3{} }

// Pdf is zero for the same reason
func (m *Mirror) Pdf(wi, wo, n core.Vec3) float64 { return 0 }

// IsDelta implements BSDF
func (m *Mirror) IsDelta() bool { return true }

// faceForward returns n flipped to the side of w, or zero if w is tangent
func faceForward(n, w core.Vec3) core.Vec3 {
	c := n.Dot(w)
	switch {
	case c > 0:
		return n
	case c < 0:
		return n.Negate()
	default:
		return core.Vec3{}
	}
}
