package scene

import (
	"github.com/df07/go-progressive-bpt/pkg/core"
)

// NewCornellScene creates a classic Cornell box with a ceiling area light, a mirror block
// on the left and a diffuse block on the right
func NewCornellScene(width, height int) *Scene {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(278, 278, -800), // Position camera outside the box looking in
		LookAt: core.NewVec3(278, 278, 0),    // Look at the center of the box
		Up:     core.NewVec3(0, 1, 0),
		Width:  width,
		Height: height,
		VFov:   40.0,
	})

	white := NewDiffuse(core.NewVec3(0.73, 0.73, 0.73))
	red := NewDiffuse(core.NewVec3(0.65, 0.05, 0.05))
	green := NewDiffuse(core.NewVec3(0.12, 0.45, 0.15))
	mirror := NewMirror(core.NewVec3(0.9, 0.9, 0.9))

	// Cornell box dimensions (standard 555x555x555 units)
	boxSize := 555.0

	prims := []*Primitive{
		// Floor, normal +Y
		{Mesh: NewQuadMesh(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(boxSize, 0, 0)), BSDF: white},
		// Ceiling, normal -Y
		{Mesh: NewQuadMesh(core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize)), BSDF: white},
		// Back wall, normal -Z
		{Mesh: NewQuadMesh(core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0)), BSDF: white},
		// Left wall (red), normal +X
		{Mesh: NewQuadMesh(core.NewVec3(0, 0, 0), core.NewVec3(0, boxSize, 0), core.NewVec3(0, 0, boxSize)), BSDF: red},
		// Right wall (green), normal -X
		{Mesh: NewQuadMesh(core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0)), BSDF: green},
		// Tall mirror block
		{Mesh: NewBoxMesh(core.NewVec3(110, 0, 250), core.NewVec3(270, 330, 410)), BSDF: mirror},
		// Short diffuse block
		{Mesh: NewBoxMesh(core.NewVec3(300, 0, 90), core.NewVec3(460, 165, 250)), BSDF: white},
	}

	// Ceiling light, slightly below the ceiling and facing down
	lightSize := 130.0
	lightOffset := (boxSize - lightSize) / 2.0
	lightMesh := NewQuadMesh(
		core.NewVec3(lightOffset, boxSize-1, lightOffset),
		core.NewVec3(lightSize, 0, 0),
		core.NewVec3(0, 0, lightSize),
	)
	prims = append(prims, &Primitive{
		Mesh:  lightMesh,
		BSDF:  NewDiffuse(core.Vec3{}),
		Light: NewAreaLight(lightMesh, core.NewVec3(15.0, 15.0, 15.0)),
	})

	return New(camera, prims)
}
