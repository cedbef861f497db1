package scene

import (
	"errors"
	"fmt"
	"sort"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/core"
)

// ErrUnknownScene is returned by NewByName for names with no built-in scene
var ErrUnknownScene = errors.New("unknown scene")

var builtins = map[string]func(width, height int) *Scene{
	"triangle": NewTriangleScene,
	"cornell":  NewCornellScene,
}

// NewByName builds one of the built-in scenes at the given resolution
func NewByName(name string, width, height int) (*Scene, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("scene %q: invalid resolution %dx%d", name, width, height)
	}
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	return build(width, height), nil
}

// MeshConfig places a PLY mesh into a built-in scene
type MeshConfig struct {
	Path      string     `yaml:"path"`
	Scale     float64    `yaml:"scale"`
	Translate [3]float64 `yaml:"translate"`
	Albedo    [3]float64 `yaml:"albedo"`
	Mirror    bool       `yaml:"mirror"`
}

func (c MeshConfig) primitive() (*Primitive, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("mesh: %w: %q", config.ErrMissing, "path")
	}
	if c.Scale <= 0 {
		return nil, fmt.Errorf("mesh %s: scale must be positive, got %v", c.Path, c.Scale)
	}
	mesh, err := LoadPLY(c.Path)
	if err != nil {
		return nil, err
	}
	mesh, err = mesh.Transformed(c.Scale, core.NewVec3(c.Translate[0], c.Translate[1], c.Translate[2]))
	if err != nil {
		return nil, err
	}

	albedo := core.NewVec3(c.Albedo[0], c.Albedo[1], c.Albedo[2])
	var bsdf BSDF = NewDiffuse(albedo)
	if c.Mirror {
		bsdf = NewMirror(albedo)
	}
	return &Primitive{Mesh: mesh, BSDF: bsdf}, nil
}

// WithPrimitives returns a new scene with the same camera and the extra primitives added
func (s *Scene) WithPrimitives(extra ...*Primitive) *Scene {
	prims := append(append([]*Primitive(nil), s.primitives...), extra...)
	return New(s.camera, prims)
}

// FromConfig builds the scene described by a scene element
//
//	scene:
//	  type: cornell     # cornell | triangle
//	  width: 64
//	  height: 64
//	  meshes:           # optional PLY meshes added to the scene
//	    - path: bunny.ply
//	      scale: 100
//	      translate: [278, 0, 278]
//	      albedo: [0.7, 0.7, 0.7]
//	      mirror: false
func FromConfig(node config.Node) (*Scene, error) {
	name, err := config.ChildValueOrDefault(node, "type", "cornell")
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	width, err := config.ChildValueOrDefault(node, "width", 64)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	height, err := config.ChildValueOrDefault(node, "height", width)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	scn, err := NewByName(name, width, height)
	if err != nil {
		return nil, err
	}
	return WithMeshes(scn, node.Child("meshes"))
}

// WithMeshes returns the scene with every entry of a meshes sequence loaded into it
func WithMeshes(scn *Scene, meshes config.Node) (*Scene, error) {
	var extra []*Primitive
	for i, m := range meshes.Children() {
		cfg := MeshConfig{Scale: 1, Albedo: [3]float64{0.73, 0.73, 0.73}}
		if err := m.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("scene: mesh %d: %w", i, err)
		}
		prim, err := cfg.primitive()
		if err != nil {
			return nil, fmt.Errorf("scene: mesh %d: %w", i, err)
		}
		extra = append(extra, prim)
	}
	if len(extra) == 0 {
		return scn, nil
	}
	return scn.WithPrimitives(extra...), nil
}

// Names lists the built-in scenes
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTriangleScene creates a single diffuse triangle lit by a small quad light above it
func NewTriangleScene(width, height int) *Scene {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 1, 3),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		Width:  width,
		Height: height,
		VFov:   45.0,
	})

	triangle, err := NewTriangleMesh([]core.Vec3{
		core.NewVec3(-2, 0, -2),
		core.NewVec3(2, 0, -2),
		core.NewVec3(0, 0, 2),
	}, []int{0, 2, 1})
	if err != nil {
		// Fixed geometry, cannot fail
		panic(err)
	}

	lightMesh := NewQuadMesh(core.NewVec3(-0.5, 2, -0.5), core.NewVec3(1, 0, 0), core.NewVec3(0, 0, 1))

	return New(camera, []*Primitive{
		{Mesh: triangle, BSDF: NewDiffuse(core.NewVec3(0.8, 0.8, 0.8))},
		{Mesh: lightMesh, BSDF: NewDiffuse(core.Vec3{}), Light: NewAreaLight(lightMesh, core.NewVec3(4, 4, 4))},
	})
}
