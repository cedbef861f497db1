package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// RayEpsilon offsets ray origins and shadow ray ends away from surfaces
const RayEpsilon = 1e-4

// Primitive is a mesh with a BSDF and an optional area light
type Primitive struct {
	Mesh  *TriangleMesh
	BSDF  BSDF
	Light *AreaLight
}

// Hit is the nearest intersection along a ray
type Hit struct {
	T         float64
	Point     core.Vec3
	Normal    core.Vec3 // unit geometric normal of the face, not flipped toward the ray
	Primitive *Primitive
	Face      int
}

// Scene is the read-only query interface shared by all render workers
type Scene struct {
	camera     *Camera
	primitives []*Primitive
	lights     []*AreaLight
	bvh        *bvh
}

// New builds the acceleration structure and light list for the given primitives
func New(camera *Camera, primitives []*Primitive) *Scene {
	s := &Scene{camera: camera, primitives: primitives}
	for _, p := range primitives {
		if p.Light != nil {
			s.lights = append(s.lights, p.Light)
		}
	}
	s.bvh = newBVH(primitives)
	return s
}

// Camera returns the scene camera
func (s *Scene) Camera() *Camera { return s.camera }

// Primitives returns all primitives in the scene
func (s *Scene) Primitives() []*Primitive { return s.primitives }

// NumLights returns the number of emitters
func (s *Scene) NumLights() int { return len(s.lights) }

// Light returns emitter i
func (s *Scene) Light(i int) *AreaLight { return s.lights[i] }

// SampleLight selects an emitter uniformly and returns its selection probability
func (s *Scene) SampleLight(u float64) (*AreaLight, float64) {
	n := len(s.lights)
	if n == 0 {
		return nil, 0
	}
	i := int(u * float64(n))
	if i >= n {
		i = n - 1
	}
	return s.lights[i], 1 / float64(n)
}

// LightSelectionPdf returns the probability of SampleLight choosing any one emitter
func (s *Scene) LightSelectionPdf() float64 {
	if len(s.lights) == 0 {
		return 0
	}
	return 1 / float64(len(s.lights))
}

// Intersect returns the nearest hit in (tMin, tMax). Results that are not
// geometrically consistent are reported as misses.
func (s *Scene) Intersect(ray core.Ray, tMin, tMax float64) (Hit, bool) {
	ref, t, ok := s.bvh.intersect(ray, tMin, tMax)
	if !ok {
		return Hit{}, false
	}
	prim := s.primitives[ref.prim]
	normal := prim.Mesh.Normal(ref.face)
	point := ray.At(t)
	if math.IsInf(t, 0) || math.IsNaN(t) || math.Abs(normal.LengthSquared()-1) > 1e-6 || !point.IsFinite() {
		return Hit{}, false
	}
	return Hit{T: t, Point: point, Normal: normal, Primitive: prim, Face: ref.face}, true
}

// Visible reports whether the open segment between a and b is unoccluded
func (s *Scene) Visible(a, b core.Vec3) bool {
	d := b.Subtract(a)
	dist := d.Length()
	if dist <= 2*RayEpsilon {
		return true
	}
	ray := core.NewRay(a, d.Multiply(1/dist))
	_, _, blocked := s.bvh.intersect(ray, RayEpsilon, dist-RayEpsilon)
	return !blocked
}

// Stats describes scene complexity for logging
func (s *Scene) Stats() string {
	triangles := 0
	for _, p := range s.primitives {
		triangles += p.Mesh.NumFaces()
	}
	return fmt.Sprintf("%d primitives, %d triangles, %d lights", len(s.primitives), triangles, len(s.lights))
}
