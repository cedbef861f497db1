package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/df07/go-progressive-bpt/pkg/core"
	"github.com/df07/go-progressive-bpt/pkg/experiments"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// ErrAlreadyStarted is returned when a scheduler is asked to render twice
var ErrAlreadyStarted = errors.New("render already started")

// Scheduler manages progressive rendering with multiple passes. Each pass raises the
// per-pixel sample target; tiles are rendered in parallel and light tracing splats are
// merged in tile order once a pass completes, so a fixed seed gives the same image for
// any number of workers.
type Scheduler struct {
	scene         *scene.Scene
	integrator    integrator.Integrator
	width, height int
	config        Config
	tiles         []*Tile     // Tile management
	tilesX        int         // Tiles per row
	currentPass   int         // Progressive state
	splats        *SplatFilm  // Light tracing contributions of completed passes
	workerPool    *WorkerPool // Worker pool for parallel processing
	logger        core.Logger // Logger for rendering output
	notifier      experiments.Notifier
	started       time.Time
	elapsed       time.Duration
	running       atomic.Bool
}

// NewScheduler creates a scheduler for scn. Tile samplers are derived from master,
// which is not used afterwards. A nil logger or notifier disables that output.
func NewScheduler(scn *scene.Scene, integ integrator.Integrator, master sampler.Sampler, cfg Config, logger core.Logger, notifier experiments.Notifier) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	width, height := scn.Camera().Width(), scn.Camera().Height()
	tiles := NewTileGrid(width, height, cfg.TileSize, cfg.NumSamples, master)

	return &Scheduler{
		scene:      scn,
		integrator: integ,
		width:      width,
		height:     height,
		config:     cfg,
		tiles:      tiles,
		tilesX:     (width + cfg.TileSize - 1) / cfg.TileSize,
		splats:     NewSplatFilm(width, height),
		workerPool: NewWorkerPool(integ, len(tiles), cfg.Workers(), notifier),
		logger:     logger,
		notifier:   notifier,
	}, nil
}

// Config returns the scheduler configuration
func (pr *Scheduler) Config() Config { return pr.config }

// NumWorkers returns the number of parallel workers
func (pr *Scheduler) NumWorkers() int { return pr.workerPool.GetNumWorkers() }

// getSamplesForPass calculates the target total samples for a given pass
func (pr *Scheduler) getSamplesForPass(passNumber int) int {
	// Special case: if only 1 pass, use all samples
	if pr.config.MaxPasses == 1 {
		return pr.config.NumSamples
	}

	// For multiple passes: first pass is quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.NumSamples - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	targetSamples := pr.config.InitialSamples + (passNumber-1)*samplesPerPass

	// For the final pass, use all remaining samples
	if passNumber == pr.config.MaxPasses {
		targetSamples = pr.config.NumSamples
	}

	return targetSamples
}

// RenderPass renders a single progressive pass using parallel processing. Tiles stop
// early when ctx is done; the splats of every completed sample are still merged.
func (pr *Scheduler) RenderPass(ctx context.Context, passNumber int, tileCallback func(TileCompletionResult)) (RenderStats, error) {
	pr.currentPass = passNumber
	targetSamples := pr.getSamplesForPass(passNumber)

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...\n",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	pr.workerPool.Start()

	for taskID, tile := range pr.tiles {
		pr.workerPool.SubmitTask(TileTask{
			Ctx:           ctx,
			Tile:          tile,
			PassNumber:    passNumber,
			TargetSamples: targetSamples,
			TaskID:        taskID,
		})
	}

	// Wait for all tiles so no worker still writes a splat buffer during the merge
	var passErr error
	for i := 0; i < len(pr.tiles); i++ {
		result, ok := pr.workerPool.GetResult()
		if !ok {
			return RenderStats{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			if passErr == nil {
				passErr = result.Error
			}
			continue
		}

		tile := pr.tiles[result.TaskID]
		tile.PassesCompleted++
		pr.notify(experiments.Event{Type: experiments.TileFinished, Time: time.Now(), Tile: tile.ID, Pass: passNumber})

		if tileCallback != nil {
			tileCallback(TileCompletionResult{
				TileX:      tile.Bounds.Min.X / pr.config.TileSize,
				TileY:      tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:  pr.extractTileImage(tile),
				PassNumber: passNumber,

				TileNumber:  i + 1,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
	}

	for _, tile := range pr.tiles {
		pr.splats.Merge(tile.splats)
		tile.splats = tile.splats[:0]
	}

	stats := pr.stats(targetSamples)
	if pr.notifier != nil {
		pr.notifier.Notify(experiments.Event{
			Type:         experiments.PassFinished,
			Time:         time.Now(),
			Pass:         passNumber,
			Width:        pr.width,
			Height:       pr.height,
			Image:        pr.Estimate(),
			TotalSamples: stats.TotalSamples,
		})
	}
	return stats, passErr
}

// extractTileImage converts the tile's pixel estimates, without splats, to an image
func (pr *Scheduler) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for i := range tile.pixels {
		px := &tile.pixels[i]
		if px.NumSamples() > 0 {
			tileImage.SetRGBA(px.X-bounds.Min.X, px.Y-bounds.Min.Y, vec3ToColor(px.Estimate()))
		}
	}
	return tileImage
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Current tile number in this pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering behavior
type RenderOptions struct {
	TileUpdates bool // Whether to generate tile completion events
}

// RenderProgressive renders with channel-based communication.
// The caller should read from these channels in separate goroutines.
// If options.TileUpdates is false, the tile channel will be closed immediately and no tile events will be generated.
// Cancelling ctx stops the render between samples and sends ctx.Err() on the error channel;
// the partial estimate remains available through Result.
func (pr *Scheduler) RenderProgressive(ctx context.Context, options RenderOptions) (<-chan PassResult, <-chan TileCompletionResult, <-chan error) {
	passChan := make(chan PassResult, 1)
	tileChan := make(chan TileCompletionResult, 100) // Buffer for tiles
	errChan := make(chan error, 1)

	if !pr.running.CompareAndSwap(false, true) {
		errChan <- ErrAlreadyStarted
		close(errChan)
		close(passChan)
		close(tileChan)
		return passChan, tileChan, errChan
	}

	// If tile updates are disabled, close the channel immediately
	if !options.TileUpdates {
		close(tileChan)
	}

	go func() {
		defer close(passChan)
		if options.TileUpdates {
			defer close(tileChan)
		}
		defer close(errChan)
		defer pr.workerPool.Stop()

		renderCtx := ctx
		if pr.config.Termination == TerminateTime {
			var cancel context.CancelFunc
			renderCtx, cancel = context.WithTimeout(ctx, pr.config.Time)
			defer cancel()
		}

		var tileCallback func(TileCompletionResult)
		if options.TileUpdates {
			tileCallback = func(result TileCompletionResult) {
				select {
				case tileChan <- result:
				case <-ctx.Done():
				default:
					// Channel full, drop the update
				}
			}
		}

		pr.started = time.Now()
		pr.notify(experiments.Event{Type: experiments.RenderStarted, Time: pr.started})
		pr.ReportProgress(0, false)
		pr.logger.Printf("Starting progressive rendering with %d passes...\n", pr.config.MaxPasses)

		err := pr.renderPasses(ctx, renderCtx, tileCallback, passChan)
		pr.elapsed = time.Since(pr.started)

		progress := 1.0
		if err != nil {
			progress = pr.progress()
			pr.logger.Printf("Rendering stopped after %v: %v\n", pr.elapsed, err)
		}
		pr.ReportProgress(progress, true)

		if pr.notifier != nil {
			stats := pr.stats(pr.getSamplesForPass(max(1, pr.currentPass)))
			pr.notifier.Notify(experiments.Event{
				Type:         experiments.RenderFinished,
				Time:         time.Now(),
				Pass:         pr.currentPass,
				Width:        pr.width,
				Height:       pr.height,
				Image:        pr.Estimate(),
				TotalSamples: stats.TotalSamples,
			})
		}
		if err != nil {
			errChan <- err
		}
	}()

	return passChan, tileChan, errChan
}

// renderPasses runs the pass schedule. Reaching the time limit of renderCtx ends the
// render normally; cancellation of ctx is returned as an error.
func (pr *Scheduler) renderPasses(ctx, renderCtx context.Context, tileCallback func(TileCompletionResult), passChan chan<- PassResult) error {
	for pass := 1; pass <= pr.config.MaxPasses; pass++ {
		if err := renderCtx.Err(); err != nil {
			return stopReason(ctx, err)
		}

		startTime := time.Now()
		stats, err := pr.RenderPass(renderCtx, pass, tileCallback)
		stopped := err != nil
		if stopped {
			if err := stopReason(ctx, err); err != nil {
				return err
			}
			pr.logger.Printf("Time limit reached during pass %d\n", pass)
		}

		pr.logger.Printf("Pass %d completed in %v (min: %d samples/pixel)\n",
			pass, time.Since(startTime), stats.MinSamples)

		done := stats.MinSamples >= pr.config.NumSamples
		isLast := stopped || done || pass == pr.config.MaxPasses
		result := PassResult{
			PassNumber: pass,
			Image:      ImageFromPixels(pr.width, pr.height, pr.Estimate()),
			Stats:      stats,
			IsLast:     isLast,
		}
		select {
		case passChan <- result:
		case <-ctx.Done():
			return ctx.Err()
		}

		if !isLast {
			pr.ReportProgress(pr.progress(), false)
		}
		if stopped {
			return nil
		}
		if done {
			pr.logger.Printf("Reached target samples per pixel (%d), stopping.\n", pr.config.NumSamples)
			return nil
		}
	}
	return nil
}

// stopReason maps a pass error to the render error; the expiry of the time limit is not an error
func stopReason(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Render runs the whole schedule and returns the final estimate. A cancelled render
// returns the estimate of the completed samples together with the context error.
func (pr *Scheduler) Render(ctx context.Context) (*Result, error) {
	passChan, _, errChan := pr.RenderProgressive(ctx, RenderOptions{})
	for range passChan {
	}
	err := <-errChan
	if errors.Is(err, ErrAlreadyStarted) {
		return nil, err
	}
	return pr.Result(), err
}

// ReportProgress logs the render progress and notifies ProgressUpdated
func (pr *Scheduler) ReportProgress(progress float64, done bool) {
	pr.logger.Printf("Progress: %.1f%%\n", progress*100)
	pr.notify(experiments.Event{Type: experiments.ProgressUpdated, Time: time.Now(), Progress: progress, Done: done})
}

// progress is the fraction of the sample target taken, or of the time limit used
func (pr *Scheduler) progress() float64 {
	total := 0
	for _, tile := range pr.tiles {
		for i := range tile.pixels {
			total += tile.pixels[i].NumSamples()
		}
	}
	progress := float64(total) / float64(pr.width*pr.height*pr.config.NumSamples)
	if pr.config.Termination == TerminateTime {
		progress = max(progress, float64(time.Since(pr.started))/float64(pr.config.Time))
	}
	return min(1, progress)
}

func (pr *Scheduler) notify(ev experiments.Event) {
	if pr.notifier != nil {
		pr.notifier.Notify(ev)
	}
}

// NumSamples returns the accumulated samples of pixel (x, y). It must not be called during a pass.
func (pr *Scheduler) NumSamples(x, y int) int {
	return pr.pixel(x, y).NumSamples()
}

// PixelState returns the state of pixel (x, y). It must not be called during a pass.
func (pr *Scheduler) PixelState(x, y int) State {
	return pr.pixel(x, y).State()
}

func (pr *Scheduler) pixel(x, y int) *PixelProcess {
	tile := pr.tiles[(y/pr.config.TileSize)*pr.tilesX+x/pr.config.TileSize]
	return tile.Pixel(x, y)
}

// Estimate returns the current linear image in row-major order:
// accum/n for each pixel plus the splat film scaled by pixels/total samples.
// It must not be called during a pass.
func (pr *Scheduler) Estimate() []core.Vec3 {
	totalSamples := 0
	for _, tile := range pr.tiles {
		for i := range tile.pixels {
			totalSamples += tile.pixels[i].NumSamples()
		}
	}
	splatScale := 0.0
	if totalSamples > 0 {
		splatScale = float64(pr.width*pr.height) / float64(totalSamples)
	}

	pixels := make([]core.Vec3, pr.width*pr.height)
	for _, tile := range pr.tiles {
		for i := range tile.pixels {
			px := &tile.pixels[i]
			pixels[px.Y*pr.width+px.X] = px.Estimate().Add(pr.splats.At(px.X, px.Y).Multiply(splatScale))
		}
	}
	return pixels
}

// stats calculates render statistics from the pixel states
func (pr *Scheduler) stats(targetSamples int) RenderStats {
	stats := RenderStats{
		TotalPixels: pr.width * pr.height,
		MaxSamples:  targetSamples,
		MinSamples:  pr.config.NumSamples, // Start high, will be reduced
		Splats:      pr.splats.Count(),
		Discarded:   pr.workerPool.Discarded(),
	}
	for _, tile := range pr.tiles {
		for i := range tile.pixels {
			n := tile.pixels[i].NumSamples()
			stats.TotalSamples += n
			stats.MinSamples = min(stats.MinSamples, n)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, n)
		}
	}
	stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	return stats
}

// Result is the estimate of a finished or stopped render
type Result struct {
	Width, Height int
	Pixels        []core.Vec3 // linear radiance in row-major order
	Stats         RenderStats
	Passes        int
	Elapsed       time.Duration
}

// Result returns the current estimate. It must not be called during a pass.
func (pr *Scheduler) Result() *Result {
	return &Result{
		Width:   pr.width,
		Height:  pr.height,
		Pixels:  pr.Estimate(),
		Stats:   pr.stats(pr.getSamplesForPass(max(1, pr.currentPass))),
		Passes:  pr.currentPass,
		Elapsed: pr.elapsed,
	}
}

// At returns the estimate of pixel (x, y)
func (r *Result) At(x, y int) core.Vec3 {
	return r.Pixels[y*r.Width+x]
}

// Image converts the estimate to a gamma corrected 8-bit image
func (r *Result) Image() *image.RGBA {
	return ImageFromPixels(r.Width, r.Height, r.Pixels)
}

// ImageFromPixels converts a row-major linear image to a gamma corrected 8-bit image
func ImageFromPixels(width, height int, pixels []core.Vec3) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, vec3ToColor(pixels[y*width+x]))
		}
	}
	return img
}

// vec3ToColor converts a Vec3 color to RGBA with proper clamping and gamma correction
func vec3ToColor(colorVec core.Vec3) color.RGBA {
	// Apply gamma correction (gamma = 2.0)
	colorVec = colorVec.GammaCorrect(2.0)

	// Clamp to valid color range
	colorVec = colorVec.Clamp(0.0, 1.0)

	return color.RGBA{
		R: uint8(255 * colorVec.X),
		G: uint8(255 * colorVec.Y),
		B: uint8(255 * colorVec.Z),
		A: 255,
	}
}
