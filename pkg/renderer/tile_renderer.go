package renderer

import (
	"context"
	"image"
	"time"

	"github.com/df07/go-progressive-bpt/pkg/experiments"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
)

// Tile represents a rectangular region of the image to be rendered. A tile is
// rendered by at most one worker at a time, so its pixels, sampler and splat
// buffer need no locking.
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile

	pixels  []PixelProcess     // row-major within Bounds
	sampler sampler.Sampler    // tile-specific sampler for deterministic results
	splats  []integrator.Splat // contributions of the current pass to any pixel
}

// NewTile creates a new tile with the specified bounds
func NewTile(id int, bounds image.Rectangle, targetSamples int, s sampler.Sampler) *Tile {
	pixels := make([]PixelProcess, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixels = append(pixels, NewPixelProcess(x, y, targetSamples))
		}
	}
	return &Tile{
		ID:      id,
		Bounds:  bounds,
		pixels:  pixels,
		sampler: s,
	}
}

// NewTileGrid creates a grid of tiles covering the entire image. Tile samplers are
// seeded from consecutive draws of master in tile order.
func NewTileGrid(width, height, tileSize, targetSamples int, master sampler.Sampler) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			s := sampler.Reseeded(master, master.NextUInt())
			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1), targetSamples, s))
			tileID++
		}
	}

	return tiles
}

// Pixel returns the state of pixel (x, y), which must lie inside the tile
func (t *Tile) Pixel(x, y int) *PixelProcess {
	return &t.pixels[(y-t.Bounds.Min.Y)*t.Bounds.Dx()+(x-t.Bounds.Min.X)]
}

// TileRenderer advances the pixels of a tile with one worker's integrator process
type TileRenderer struct {
	process  integrator.Process
	notifier experiments.Notifier
}

// NewTileRenderer creates a tile renderer around a worker's process
func NewTileRenderer(process integrator.Process, notifier experiments.Notifier) *TileRenderer {
	return &TileRenderer{process: process, notifier: notifier}
}

// RenderTile samples every pixel of the tile up to targetSamples, pixel by pixel in
// row order. The context is checked before each sample, so a cancelled render keeps
// exactly the samples that completed. It returns the number of samples taken.
func (tr *TileRenderer) RenderTile(ctx context.Context, tile *Tile, targetSamples int) (int, error) {
	taken := 0
	for i := range tile.pixels {
		px := &tile.pixels[i]
		for px.NumSamples() < targetSamples {
			if err := ctx.Err(); err != nil {
				return taken, err
			}
			if !px.RequestSample(tr.process, tile.sampler, &tile.splats) {
				break
			}
			taken++
			if tr.notifier != nil {
				tr.notifier.Notify(experiments.Event{
					Type:        experiments.SampleFinished,
					Time:        time.Now(),
					X:           px.X,
					Y:           px.Y,
					SampleIndex: px.NumSamples() - 1,
					Estimate:    px.Estimate(),
					Tile:        tile.ID,
				})
			}
		}
	}
	return taken, nil
}
