package scene

import (
	"math"

	"github.com/df07/go-progressive-bpt/pkg/core"
)

// CameraConfig contains all camera configuration parameters
type CameraConfig struct {
	Center core.Vec3 // Camera position
	LookAt core.Vec3 // Point the camera is looking at
	Up     core.Vec3 // Up direction (usually (0,1,0))
	Width  int       // Image width in pixels
	Height int       // Image height in pixels
	VFov   float64   // Vertical field of view in degrees
}

// Camera is a pinhole camera. Importance is normalised over the image plane at unit distance,
// which has area filmArea.
type Camera struct {
	config              CameraConfig
	origin              core.Vec3
	right, up, forward  core.Vec3
	tanHalfW, tanHalfH  float64
	filmArea            float64
	widthF, heightF     float64
	invWidth, invHeight float64
}

// CameraSample is the result of connecting a reference point to the lens
type CameraSample struct {
	Wi         core.Vec3 // unit direction from the reference point toward the lens
	Distance   float64
	Importance float64 // We along -Wi
	Pdf        float64 // solid angle density at the reference point
	RasterX    float64
	RasterY    float64
}

// NewCamera creates a pinhole camera
func NewCamera(config CameraConfig) *Camera {
	forward := config.LookAt.Subtract(config.Center).Normalize()
	right := forward.Cross(config.Up).Normalize()
	up := right.Cross(forward)

	aspect := float64(config.Width) / float64(config.Height)
	tanHalfH := math.Tan(config.VFov * math.Pi / 360)
	tanHalfW := tanHalfH * aspect

	return &Camera{
		config:    config,
		origin:    config.Center,
		right:     right,
		up:        up,
		forward:   forward,
		tanHalfW:  tanHalfW,
		tanHalfH:  tanHalfH,
		filmArea:  4 * tanHalfW * tanHalfH,
		widthF:    float64(config.Width),
		heightF:   float64(config.Height),
		invWidth:  1 / float64(config.Width),
		invHeight: 1 / float64(config.Height),
	}
}

// Width returns the image width in pixels
func (c *Camera) Width() int { return c.config.Width }

// Height returns the image height in pixels
func (c *Camera) Height() int { return c.config.Height }

// Origin returns the pinhole position
func (c *Camera) Origin() core.Vec3 { return c.origin }

// Forward returns the viewing direction, which is also the lens normal
func (c *Camera) Forward() core.Vec3 { return c.forward }

// GenerateRay returns the primary ray through raster position (rx, ry),
// with (0,0) at the top-left corner of the image
func (c *Camera) GenerateRay(rx, ry float64) core.Ray {
	sx := 2*rx*c.invWidth - 1
	sy := 1 - 2*ry*c.invHeight
	dir := c.forward.
		Add(c.right.Multiply(sx * c.tanHalfW)).
		Add(c.up.Multiply(sy * c.tanHalfH))
	return core.NewRay(c.origin, dir.Normalize())
}

// RasterPosition projects a unit direction leaving the camera onto the image
func (c *Camera) RasterPosition(dir core.Vec3) (float64, float64, bool) {
	cos := dir.Dot(c.forward)
	if cos <= 0 {
		return 0, 0, false
	}
	x := dir.Dot(c.right) / (cos * c.tanHalfW)
	y := dir.Dot(c.up) / (cos * c.tanHalfH)
	rx := (x + 1) * 0.5 * c.widthF
	ry := (1 - y) * 0.5 * c.heightF
	if rx < 0 || rx >= c.widthF || ry < 0 || ry >= c.heightF {
		return 0, 0, false
	}
	return rx, ry, true
}

// We returns the importance emitted along unit direction dir
func (c *Camera) We(dir core.Vec3) float64 {
	if _, _, ok := c.RasterPosition(dir); !ok {
		return 0
	}
	cos := dir.Dot(c.forward)
	return 1 / (c.filmArea * cos * cos * cos * cos)
}

// PdfDirection is the solid angle density of primary rays along dir
func (c *Camera) PdfDirection(dir core.Vec3) float64 {
	if _, _, ok := c.RasterPosition(dir); !ok {
		return 0
	}
	cos := dir.Dot(c.forward)
	return 1 / (c.filmArea * cos * cos * cos)
}

// SampleWi connects ref to the pinhole
func (c *Camera) SampleWi(ref core.Vec3) (CameraSample, bool) {
	d := c.origin.Subtract(ref)
	dist2 := d.LengthSquared()
	if dist2 == 0 {
		return CameraSample{}, false
	}
	dist := math.Sqrt(dist2)
	wi := d.Multiply(1 / dist)
	dir := wi.Negate()

	rx, ry, ok := c.RasterPosition(dir)
	if !ok {
		return CameraSample{}, false
	}
	cos := dir.Dot(c.forward)
	return CameraSample{
		Wi:         wi,
		Distance:   dist,
		Importance: 1 / (c.filmArea * cos * cos * cos * cos),
		Pdf:        dist2 / cos,
		RasterX:    rx,
		RasterY:    ry,
	}, true
}
