package scene

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
)

func TestTriangleMesh_InvalidFaces(t *testing.T) {
	verts := []core.Vec3{core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0)}

	if _, err := NewTriangleMesh(verts, []int{0, 1}); err == nil {
		t.Error("Expected error for face list that is not a multiple of 3")
	}
	if _, err := NewTriangleMesh(verts, []int{0, 1, 3}); err == nil {
		t.Error("Expected error for out of bounds index")
	}

	mesh, err := NewTriangleMesh(verts, []int{0, 1, 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(mesh.Area()-0.5) > 1e-12 {
		t.Errorf("Expected area 0.5, got %f", mesh.Area())
	}
	if n := mesh.Normal(0); math.Abs(n.Z-1) > 1e-12 {
		t.Errorf("Expected normal +Z, got %v", n)
	}
}

func TestBoxMesh_OutwardNormals(t *testing.T) {
	min, max := core.NewVec3(-1, -2, -3), core.NewVec3(1, 2, 3)
	box := NewBoxMesh(min, max)
	center := core.NewVec3(0, 0, 0)

	if box.NumFaces() != 12 {
		t.Fatalf("Expected 12 faces, got %d", box.NumFaces())
	}
	for i := 0; i < box.NumFaces(); i++ {
		f := box.Face(i)
		centroid := box.Vertex(f[0]).Add(box.Vertex(f[1])).Add(box.Vertex(f[2])).Multiply(1.0 / 3.0)
		if centroid.Subtract(center).Dot(box.Normal(i)) <= 0 {
			t.Errorf("Face %d normal %v points inward", i, box.Normal(i))
		}
	}
	if want := 2 * (2*4 + 2*6 + 4*6); math.Abs(box.Area()-float64(want)) > 1e-9 {
		t.Errorf("Expected area %d, got %f", want, box.Area())
	}
}

func TestScene_IntersectTriangle(t *testing.T) {
	s := NewTriangleScene(32, 32)

	hit, ok := s.Intersect(core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0)), RayEpsilon, math.Inf(1))
	if !ok {
		t.Fatal("Expected ray straight down to hit the triangle")
	}
	if math.Abs(hit.T-1) > 1e-9 {
		t.Errorf("Expected t=1, got %f", hit.T)
	}
	if hit.Primitive.Light != nil {
		t.Error("Expected the triangle, got the light")
	}
	if math.Abs(hit.Normal.Y-1) > 1e-12 {
		t.Errorf("Expected +Y normal, got %v", hit.Normal)
	}

	// Straight up from the triangle reaches the light
	hit, ok = s.Intersect(core.NewRay(core.NewVec3(0.1, 0.5, 0.2), core.NewVec3(0, 1, 0)), RayEpsilon, math.Inf(1))
	if !ok || hit.Primitive.Light == nil {
		t.Fatal("Expected ray upward to hit the light")
	}

	if _, ok := s.Intersect(core.NewRay(core.NewVec3(0, 1, 0), core.NewVec3(1, 0, 0)), RayEpsilon, math.Inf(1)); ok {
		t.Error("Expected horizontal ray to miss")
	}
}

func TestScene_Visible(t *testing.T) {
	s := NewTriangleScene(32, 32)

	if !s.Visible(core.NewVec3(0, 0, 0), core.NewVec3(0, 2, 0)) {
		t.Error("Expected triangle center to see the light center")
	}
	if s.Visible(core.NewVec3(0, -1, 0), core.NewVec3(0, 1, 0)) {
		t.Error("Expected segment through the triangle to be blocked")
	}
	if !s.Visible(core.NewVec3(0, -1, 0), core.NewVec3(0, -0.5, 0)) {
		t.Error("Expected a segment ending before the triangle to be visible")
	}
}

// Compare BVH traversal against a linear scan over every face
func TestScene_BVHMatchesBruteForce(t *testing.T) {
	s := NewCornellScene(16, 16)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		origin := core.NewVec3(rng.Float64()*555, rng.Float64()*555, rng.Float64()*555)
		dir := core.SampleOnUnitSphere(core.NewVec2(rng.Float64(), rng.Float64()))
		ray := core.NewRay(origin, dir)

		bestT := math.Inf(1)
		for _, p := range s.Primitives() {
			for f := 0; f < p.Mesh.NumFaces(); f++ {
				if t, ok := p.Mesh.IntersectFace(f, ray, RayEpsilon, bestT); ok {
					bestT = t
				}
			}
		}

		hit, ok := s.Intersect(ray, RayEpsilon, math.Inf(1))
		if ok != !math.IsInf(bestT, 1) {
			t.Fatalf("Ray %d: BVH hit=%v, brute force t=%f", i, ok, bestT)
		}
		if ok && math.Abs(hit.T-bestT) > 1e-9 {
			t.Errorf("Ray %d: BVH t=%f, brute force t=%f", i, hit.T, bestT)
		}
	}
}

func TestScene_SampleLight(t *testing.T) {
	s := NewCornellScene(16, 16)
	if s.NumLights() != 1 {
		t.Fatalf("Expected 1 light, got %d", s.NumLights())
	}
	light, pdf := s.SampleLight(0.999999)
	if light != s.Light(0) || pdf != 1 {
		t.Errorf("Expected light 0 with pdf 1, got %v %f", light, pdf)
	}

	empty := New(s.Camera(), nil)
	if light, pdf := empty.SampleLight(0.5); light != nil || pdf != 0 {
		t.Error("Expected no light from an empty scene")
	}
	if _, ok := empty.Intersect(core.NewRay(core.Vec3{}, core.NewVec3(0, 0, 1)), 0, math.Inf(1)); ok {
		t.Error("Expected empty scene to never report a hit")
	}
}

func TestAreaLight_SampleLiPdf(t *testing.T) {
	mesh := NewQuadMesh(core.NewVec3(-0.5, 2, -0.5), core.NewVec3(1, 0, 0), core.NewVec3(0, 0, 1))
	light := NewAreaLight(mesh, core.NewVec3(4, 4, 4))

	if math.Abs(light.PdfPosition()-1) > 1e-12 {
		t.Errorf("Expected position pdf 1 for unit quad, got %f", light.PdfPosition())
	}

	ref := core.NewVec3(0, 0, 0)
	sample, ok := light.SampleLi(ref, core.NewVec2(0.5, 0.5))
	if !ok {
		t.Fatal("Expected a light sample")
	}
	if sample.Le.IsZero() {
		t.Error("Expected light facing the reference point to emit")
	}
	cos := sample.Normal.AbsDot(sample.Wi)
	want := sample.Distance * sample.Distance / cos
	if math.Abs(sample.Pdf-want) > 1e-9 {
		t.Errorf("Expected solid angle pdf %f, got %f", want, sample.Pdf)
	}

	// From above the light sees the back face
	back, ok := light.SampleLi(core.NewVec3(0, 4, 0), core.NewVec2(0.5, 0.5))
	if !ok || !back.Le.IsZero() {
		t.Error("Expected zero radiance from the back face")
	}
}

func TestAreaLight_SamplePositionOnMesh(t *testing.T) {
	mesh := NewBoxMesh(core.NewVec3(0, 0, 0), core.NewVec3(1, 2, 3))
	light := NewAreaLight(mesh, core.NewVec3(1, 1, 1))
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 1000; i++ {
		p, n := light.SamplePosition(core.NewVec2(rng.Float64(), rng.Float64()))
		if p.X < -1e-9 || p.X > 1+1e-9 || p.Y < -1e-9 || p.Y > 2+1e-9 || p.Z < -1e-9 || p.Z > 3+1e-9 {
			t.Fatalf("Sample %v outside the box", p)
		}
		if math.Abs(n.Length()-1) > 1e-9 {
			t.Fatalf("Expected unit normal, got %v", n)
		}
	}
}

func TestCamera_RasterRoundTrip(t *testing.T) {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 1, 3),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		Width:  64,
		Height: 48,
		VFov:   45,
	})

	tests := [][2]float64{{0.5, 0.5}, {32, 24}, {63.5, 47.5}, {10.25, 40.75}}
	for _, tt := range tests {
		ray := camera.GenerateRay(tt[0], tt[1])
		rx, ry, ok := camera.RasterPosition(ray.Direction)
		if !ok {
			t.Errorf("Raster (%f,%f): projection failed", tt[0], tt[1])
			continue
		}
		if math.Abs(rx-tt[0]) > 1e-9 || math.Abs(ry-tt[1]) > 1e-9 {
			t.Errorf("Raster (%f,%f): round trip gave (%f,%f)", tt[0], tt[1], rx, ry)
		}
	}

	if _, _, ok := camera.RasterPosition(camera.Forward().Negate()); ok {
		t.Error("Expected direction behind the camera to be rejected")
	}
}

// We integrates to one over the image in solid angle, and PdfDirection is its normalised density
func TestCamera_ImportanceNormalisation(t *testing.T) {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, -1),
		Up:     core.NewVec3(0, 1, 0),
		Width:  40,
		Height: 30,
		VFov:   60,
	})

	// Sum We*|cos| over a fine raster grid, converting pixel area to solid angle
	const n = 200
	sum := 0.0
	pdfSum := 0.0
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			rx := (float64(i) + 0.5) / n * 40
			ry := (float64(j) + 0.5) / n * 30
			dir := camera.GenerateRay(rx, ry).Direction
			cos := dir.Dot(camera.Forward())
			// Solid angle of one grid cell: film-plane area * cos^3
			dOmega := camera.filmArea / (n * n) * cos * cos * cos
			sum += camera.We(dir) * cos * dOmega
			pdfSum += camera.PdfDirection(dir) * dOmega
		}
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("Expected We*cos to integrate to 1, got %f", sum)
	}
	if math.Abs(pdfSum-1) > 1e-6 {
		t.Errorf("Expected PdfDirection to integrate to 1, got %f", pdfSum)
	}
}

func TestCamera_SampleWi(t *testing.T) {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, -1),
		Up:     core.NewVec3(0, 1, 0),
		Width:  16,
		Height: 16,
		VFov:   90,
	})

	sample, ok := camera.SampleWi(core.NewVec3(0, 0, -2))
	if !ok {
		t.Fatal("Expected point in front of the camera to connect")
	}
	if math.Abs(sample.RasterX-8) > 1e-9 || math.Abs(sample.RasterY-8) > 1e-9 {
		t.Errorf("Expected image center, got (%f,%f)", sample.RasterX, sample.RasterY)
	}
	if math.Abs(sample.Pdf-4) > 1e-9 {
		t.Errorf("Expected pdf d^2/cos = 4, got %f", sample.Pdf)
	}

	if _, ok := camera.SampleWi(core.NewVec3(0, 0, 2)); ok {
		t.Error("Expected point behind the camera to be rejected")
	}
}

func TestDiffuse_SampleAndEvaluate(t *testing.T) {
	d := NewDiffuse(core.NewVec3(0.5, 0.5, 0.5))
	n := core.NewVec3(0, 1, 0)
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 500; i++ {
		// Incoming from below: sampled directions stay below too
		wi := core.NewVec3(0.3, -1, 0.2).Normalize()
		s, ok := d.Sample(wi, n, core.NewVec2(rng.Float64(), rng.Float64()))
		if !ok {
			continue
		}
		if s.Wo.Dot(n) >= 0 {
			t.Fatalf("Sampled direction %v on the wrong side", s.Wo)
		}
		if pdf := d.Pdf(wi, s.Wo, n); math.Abs(pdf-s.Pdf) > 1e-9 {
			t.Fatalf("Pdf mismatch: sample %f, eval %f", s.Pdf, pdf)
		}
		f := d.F(wi, s.Wo, n)
		weight := f.Multiply(s.Wo.AbsDot(n) / s.Pdf)
		if math.Abs(weight.X-s.Weight.X) > 1e-9 {
			t.Fatalf("Weight mismatch: %v vs %v", weight, s.Weight)
		}
	}

	if !d.F(n, n.Negate(), n).IsZero() {
		t.Error("Expected zero for transmission through a diffuse surface")
	}
}

func TestMirror_Reflect(t *testing.T) {
	m := NewMirror(core.NewVec3(1, 1, 1))
	n := core.NewVec3(0, 1, 0)
	wi := core.NewVec3(1, 1, 0).Normalize()

	s, ok := m.Sample(wi, n, core.NewVec2(0.3, 0.7))
	if !ok || !s.Delta {
		t.Fatal("Expected a delta sample")
	}
	want := core.NewVec3(-1, 1, 0).Normalize()
	if s.Wo.Subtract(want).Length() > 1e-12 {
		t.Errorf("Expected %v, got %v", want, s.Wo)
	}
	if !m.F(wi, want, n).IsZero() || m.Pdf(wi, want, n) != 0 {
		t.Error("Expected delta lobe to evaluate to zero")
	}
}

func TestNewByName(t *testing.T) {
	for _, name := range Names() {
		s, err := NewByName(name, 8, 6)
		if err != nil {
			t.Errorf("Scene %s: %v", name, err)
			continue
		}
		if s.Camera().Width() != 8 || s.Camera().Height() != 6 {
			t.Errorf("Scene %s: wrong resolution", name)
		}
		if s.NumLights() == 0 {
			t.Errorf("Scene %s: expected a light", name)
		}
	}

	if _, err := NewByName("teapot", 8, 8); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("Expected ErrUnknownScene, got %v", err)
	}
	if _, err := NewByName("triangle", 0, 8); err == nil {
		t.Error("Expected error for zero width")
	}
}

func TestFromConfig(t *testing.T) {
	root, err := config.Parse([]byte("scene: {type: triangle, width: 12}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := FromConfig(root.Child("scene"))
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if s.Camera().Width() != 12 || s.Camera().Height() != 12 {
		t.Errorf("Expected height to default to width, got %dx%d", s.Camera().Width(), s.Camera().Height())
	}

	root, _ = config.Parse([]byte("scene: {type: teapot}"))
	if _, err := FromConfig(root.Child("scene")); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("Expected ErrUnknownScene, got %v", err)
	}
}
