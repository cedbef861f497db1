package renderer

import (
	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
)

// SplatFilm accumulates light tracing contributions for the whole image. It is only
// written between passes from a single goroutine.
type SplatFilm struct {
	width, height int
	pixels        []core.Vec3
	count         int
}

// NewSplatFilm creates an empty film
func NewSplatFilm(width, height int) *SplatFilm {
	return &SplatFilm{
		width:  width,
		height: height,
		pixels: make([]core.Vec3, width*height),
	}
}

// Merge adds splats one at a time in order. Splats outside the image are dropped.
func (f *SplatFilm) Merge(splats []integrator.Splat) {
	for _, s := range splats {
		if s.X < 0 || s.X >= f.width || s.Y < 0 || s.Y >= f.height {
			continue
		}
		i := s.Y*f.width + s.X
		f.pixels[i] = f.pixels[i].Add(s.Color)
		f.count++
	}
}

// At returns the summed splats of a pixel
func (f *SplatFilm) At(x, y int) core.Vec3 {
	return f.pixels[y*f.width+x]
}

// Count returns the number of merged splats
func (f *SplatFilm) Count() int { return f.count }
