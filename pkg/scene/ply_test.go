package scene

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
)

const asciiSquarePLY = `ply
format ascii 1.0
comment unit square as a single quad
element vertex 4
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
1 1 0
0 1 0
4 0 1 2 3
`

// createBinaryPLY builds a square with normals and colors, in the given byte order
func createBinaryPLY(order binary.ByteOrder, format string) []byte {
	var buf bytes.Buffer
	buf.WriteString("ply\n")
	buf.WriteString("format " + format + " 1.0\n")
	buf.WriteString("element vertex 4\n")
	buf.WriteString("property double x\n")
	buf.WriteString("property double y\n")
	buf.WriteString("property double z\n")
	buf.WriteString("property float nx\n")
	buf.WriteString("property float ny\n")
	buf.WriteString("property float nz\n")
	buf.WriteString("property uchar red\n")
	buf.WriteString("element face 2\n")
	buf.WriteString("property list uchar uint vertex_indices\n")
	buf.WriteString("property uchar material\n")
	buf.WriteString("element edge 1\n")
	buf.WriteString("property int vertex1\n")
	buf.WriteString("property int vertex2\n")
	buf.WriteString("end_header\n")

	positions := [][3]float64{{0, 0, 0}, {2, 0, 0}, {2, 2, 0}, {0, 2, 0}}
	for _, p := range positions {
		binary.Write(&buf, order, p)
		binary.Write(&buf, order, [3]float32{0, 0, 1})
		binary.Write(&buf, order, uint8(255))
	}

	for _, face := range [][3]uint32{{0, 1, 2}, {0, 2, 3}} {
		binary.Write(&buf, order, uint8(3))
		binary.Write(&buf, order, face)
		binary.Write(&buf, order, uint8(7))
	}

	binary.Write(&buf, order, [2]int32{0, 1})
	return buf.Bytes()
}

func TestReadPLY_ASCII(t *testing.T) {
	mesh, err := ReadPLY(strings.NewReader(asciiSquarePLY))
	if err != nil {
		t.Fatalf("ReadPLY failed: %v", err)
	}
	if mesh.NumVertices() != 4 {
		t.Errorf("Expected 4 vertices, got %d", mesh.NumVertices())
	}
	if mesh.NumFaces() != 2 {
		t.Fatalf("Expected the quad to be split into 2 triangles, got %d", mesh.NumFaces())
	}
	if math.Abs(mesh.Area()-1) > 1e-12 {
		t.Errorf("Expected area 1, got %v", mesh.Area())
	}
	for i := 0; i < mesh.NumFaces(); i++ {
		if mesh.Normal(i) != core.NewVec3(0, 0, 1) {
			t.Errorf("Face %d: expected normal +Z, got %v", i, mesh.Normal(i))
		}
	}
}

func TestReadPLY_Binary(t *testing.T) {
	tests := []struct {
		format string
		order  binary.ByteOrder
	}{
		{"binary_little_endian", binary.LittleEndian},
		{"binary_big_endian", binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			mesh, err := ReadPLY(bytes.NewReader(createBinaryPLY(tt.order, tt.format)))
			if err != nil {
				t.Fatalf("ReadPLY failed: %v", err)
			}
			if mesh.NumFaces() != 2 {
				t.Fatalf("Expected 2 triangles, got %d", mesh.NumFaces())
			}
			if got := mesh.Vertex(2); got != core.NewVec3(2, 2, 0) {
				t.Errorf("Expected vertex 2 at (2,2,0), got %v", got)
			}
			if got := mesh.Face(1); got != [3]int{0, 2, 3} {
				t.Errorf("Expected face 1 to be [0 2 3], got %v", got)
			}
			if math.Abs(mesh.Area()-4) > 1e-12 {
				t.Errorf("Expected area 4, got %v", mesh.Area())
			}
		})
	}
}

func TestReadPLY_DropsDegenerateTriangles(t *testing.T) {
	doc := `ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
element face 2
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
2 0 0
0 1 0
3 0 1 2
3 0 1 3
`
	mesh, err := ReadPLY(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadPLY failed: %v", err)
	}
	if mesh.NumFaces() != 1 {
		t.Errorf("Expected the collinear face to be dropped, got %d faces", mesh.NumFaces())
	}
}

func TestReadPLY_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"MissingMagic", "format ascii 1.0\nend_header\n"},
		{"TruncatedHeader", "ply\nformat ascii 1.0\nelement vertex 1\n"},
		{"UnknownFormat", "ply\nformat binary_middle_endian 1.0\nend_header\n"},
		{"UnknownType", "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n"},
		{"MissingAxis", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n0 0\n"},
		{"IndexOutOfBounds", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "4 0 1 2 9", 1)},
		{"TruncatedBody", strings.Replace(asciiSquarePLY, "4 0 1 2 3\n", "4 0 1\n", 1)},
		{"HugeVertexCount", "ply\nformat ascii 1.0\nelement vertex 100000000000000\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n"},
		{"NaNListLength", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "nan 0 1 2 3", 1)},
		{"HugeListLength", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "1000000000 0 1 2 3", 1)},
		{"FractionalListLength", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "3.5 0 1 2 3", 1)},
		{"FractionalIndex", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "4 0 1 2 2.5", 1)},
		{"NaNIndex", strings.Replace(asciiSquarePLY, "4 0 1 2 3", "4 0 1 2 nan", 1)},
		{"NonFiniteVertex", strings.Replace(asciiSquarePLY, "1 1 0\n", "nan 1 0\n", 1)},
		{"NoFaces", "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 0\n"},
	}

	for _, tt := range tests {
		if _, err := ReadPLY(strings.NewReader(tt.doc)); !errors.Is(err, ErrInvalidPLY) {
			t.Errorf("%s: expected ErrInvalidPLY, got %v", tt.name, err)
		}
	}
}

func TestReadPLY_EmptyElementWithHugeCount(t *testing.T) {
	doc := strings.Replace(asciiSquarePLY, "element vertex 4", "element marker 100000000000000\nelement vertex 4", 1)
	mesh, err := ReadPLY(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadPLY failed: %v", err)
	}
	if mesh.NumFaces() != 2 {
		t.Errorf("Expected 2 triangles, got %d", mesh.NumFaces())
	}
}

func TestTriangleMesh_Transformed(t *testing.T) {
	mesh := NewQuadMesh(core.NewVec3(0, 0, 0), core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0))
	moved, err := mesh.Transformed(3, core.NewVec3(1, 2, 3))
	if err != nil {
		t.Fatalf("Transformed failed: %v", err)
	}
	if got := moved.Vertex(2); got != core.NewVec3(4, 5, 3) {
		t.Errorf("Expected vertex 2 at (4,5,3), got %v", got)
	}
	if math.Abs(moved.Area()-9) > 1e-12 {
		t.Errorf("Expected area 9, got %v", moved.Area())
	}
	if mesh.Vertex(2) != core.NewVec3(1, 1, 0) {
		t.Error("Transformed must not modify the source mesh")
	}
}

func TestFromConfig_Meshes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "square.ply")
	if err := os.WriteFile(path, []byte(asciiSquarePLY), 0644); err != nil {
		t.Fatal(err)
	}

	doc := fmt.Sprintf(`
scene:
  type: triangle
  width: 8
  meshes:
    - path: %q
      scale: 0.5
      translate: [0, 1, 0]
      mirror: true
`, path)
	root, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	s, err := FromConfig(root.Child("scene"))
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	base := NewTriangleScene(8, 8)
	if len(s.Primitives()) != len(base.Primitives())+1 {
		t.Fatalf("Expected one extra primitive, got %d", len(s.Primitives())-len(base.Primitives()))
	}
	added := s.Primitives()[len(s.Primitives())-1]
	if got := added.Mesh.Vertex(2); got != core.NewVec3(0.5, 1.5, 0) {
		t.Errorf("Expected transformed vertex (0.5,1.5,0), got %v", got)
	}
	if !added.BSDF.IsDelta() {
		t.Error("Expected a mirror BSDF")
	}
	if s.NumLights() != base.NumLights() {
		t.Errorf("Expected meshes to add no lights, got %d", s.NumLights())
	}

	root, _ = config.Parse([]byte(`scene: {type: triangle, meshes: [{scale: 1}]}`))
	if _, err := FromConfig(root.Child("scene")); !errors.Is(err, config.ErrMissing) {
		t.Errorf("Expected ErrMissing for a mesh without path, got %v", err)
	}
	root, _ = config.Parse([]byte(`scene: {type: triangle, meshes: [{path: missing.ply}]}`))
	if _, err := FromConfig(root.Child("scene")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected a not exist error, got %v", err)
	}
}
