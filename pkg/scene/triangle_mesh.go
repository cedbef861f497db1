package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// TriangleMesh is an indexed triangle list with per-face geometric normals and areas
type TriangleMesh struct {
	vertices []core.Vec3
	faces    [][3]int
	normals  []core.Vec3
	areas    []float64
	area     float64
}

// NewTriangleMesh creates a mesh from vertex positions and face indices
// (each group of 3 indices forms a triangle, counter-clockwise around the normal)
func NewTriangleMesh(vertices []core.Vec3, faces []int) (*TriangleMesh, error) {
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("triangle mesh: %d face indices is not a multiple of 3", len(faces))
	}

	numFaces := len(faces) / 3
	mesh := &TriangleMesh{
		vertices: append([]core.Vec3(nil), vertices...),
		faces:    make([][3]int, numFaces),
		normals:  make([]core.Vec3, numFaces),
		areas:    make([]float64, numFaces),
	}

	for i := 0; i < numFaces; i++ {
		face := [3]int{faces[i*3], faces[i*3+1], faces[i*3+2]}
		for _, idx := range face {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("triangle mesh: face %d index %d out of bounds", i, idx)
			}
		}
		mesh.faces[i] = face

		// Normal is the cross product of the two edges
		cross := mesh.vertices[face[1]].Subtract(mesh.vertices[face[0]]).
			Cross(mesh.vertices[face[2]].Subtract(mesh.vertices[face[0]]))
		mesh.normals[i] = cross.Normalize()
		mesh.areas[i] = 0.5 * cross.Length()
		mesh.area += mesh.areas[i]
	}

	return mesh, nil
}

// NewQuadMesh creates two triangles spanning corner, corner+u, corner+u+v, corner+v.
// The normal points along u×v.
func NewQuadMesh(corner, u, v core.Vec3) *TriangleMesh {
	vertices := []core.Vec3{corner, corner.Add(u), corner.Add(u).Add(v), corner.Add(v)}
	mesh, _ := NewTriangleMesh(vertices, []int{0, 1, 2, 0, 2, 3})
	return mesh
}

// NewBoxMesh creates an axis-aligned box with outward facing normals
func NewBoxMesh(min, max core.Vec3) *TriangleMesh {
	dx := core.NewVec3(max.X-min.X, 0, 0)
	dy := core.NewVec3(0, max.Y-min.Y, 0)
	dz := core.NewVec3(0, 0, max.Z-min.Z)

	sides := []*TriangleMesh{
		NewQuadMesh(min, dx, dz),         // bottom, -Y
		NewQuadMesh(min.Add(dy), dz, dx), // top, +Y
		NewQuadMesh(min, dy, dx),         // front, -Z
		NewQuadMesh(min.Add(dz), dx, dy), // back, +Z
		NewQuadMesh(min, dz, dy),         // left, -X
		NewQuadMesh(min.Add(dx), dy, dz), // right, +X
	}

	var vertices []core.Vec3
	var faces []int
	for _, side := range sides {
		base := len(vertices)
		vertices = append(vertices, side.vertices...)
		for _, f := range side.faces {
			faces = append(faces, base+f[0], base+f[1], base+f[2])
		}
	}
	mesh, _ := NewTriangleMesh(vertices, faces)
	return mesh
}

// Transformed returns a copy of the mesh scaled about the origin and then translated
func (m *TriangleMesh) Transformed(scale float64, offset core.Vec3) (*TriangleMesh, error) {
	vertices := make([]core.Vec3, len(m.vertices))
	for i, v := range m.vertices {
		vertices[i] = v.Multiply(scale).Add(offset)
	}
	faces := make([]int, 0, len(m.faces)*3)
	for _, f := range m.faces {
		faces = append(faces, f[0], f[1], f[2])
	}
	return NewTriangleMesh(vertices, faces)
}

// NumVertices returns the number of vertex positions
func (m *TriangleMesh) NumVertices() int { return len(m.vertices) }

// Vertex returns vertex position i
func (m *TriangleMesh) Vertex(i int) core.Vec3 { return m.vertices[i] }

// NumFaces returns the number of triangles
func (m *TriangleMesh) NumFaces() int { return len(m.faces) }

// Face returns the vertex indices of triangle i
func (m *TriangleMesh) Face(i int) [3]int { return m.faces[i] }

// Normal returns the unit geometric normal of triangle i, or zero for a degenerate triangle
func (m *TriangleMesh) Normal(i int) core.Vec3 { return m.normals[i] }

// FaceArea returns the area of triangle i
func (m *TriangleMesh) FaceArea(i int) float64 { return m.areas[i] }

// Area returns the total surface area
func (m *TriangleMesh) Area() float64 { return m.area }

// FaceBounds returns the bounding box of triangle i
func (m *TriangleMesh) FaceBounds(i int) core.AABB {
	f := m.faces[i]
	return core.NewAABBFromPoints(m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]])
}

// PointOnFace returns the point with barycentric coordinates (b0, b1) on triangle i
func (m *TriangleMesh) PointOnFace(i int, b0, b1 float64) core.Vec3 {
	f := m.faces[i]
	v0, v1, v2 := m.vertices[f[0]], m.vertices[f[1]], m.vertices[f[2]]
	return v0.Multiply(b0).Add(v1.Multiply(b1)).Add(v2.Multiply(1 - b0 - b1))
}

// IntersectFace tests triangle i using the Möller-Trumbore algorithm and returns the ray parameter
func (m *TriangleMesh) IntersectFace(i int, ray core.Ray, tMin, tMax float64) (float64, bool) {
	const epsilon = 1e-12

	f := m.faces[i]
	v0 := m.vertices[f[0]]
	edge1 := m.vertices[f[1]].Subtract(v0)
	edge2 := m.vertices[f[2]].Subtract(v0)

	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)
	// Ray lies in the plane of the triangle
	if a > -epsilon && a < epsilon {
		return 0, false
	}

	inv := 1.0 / a
	s := ray.Origin.Subtract(v0)
	u := inv * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := inv * ray.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return 0, false
	}

	t := inv * edge2.Dot(q)
	if t < tMin || t > tMax || math.IsNaN(t) {
		return 0, false
	}
	return t, true
}
