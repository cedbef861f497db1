package renderer

import (
	"context"
	"sync"

	"github.com/df07/go-progressive-bpt/pkg/experiments"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
)

// TileTask represents a tile rendering task for the worker pool
type TileTask struct {
	Ctx           context.Context
	Tile          *Tile
	PassNumber    int
	TargetSamples int
	TaskID        int // For deterministic ordering
}

// TileResult contains the result from rendering a tile
type TileResult struct {
	TaskID  int
	Samples int
	Error   error
}

// WorkerPool manages parallel tile rendering
type WorkerPool struct {
	taskQueue   chan TileTask
	resultQueue chan TileResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
	startOnce   sync.Once
	stopOnce    sync.Once
}

// Worker handles individual tile rendering tasks. Each worker owns one integrator
// process and with it the subpath storage reused for every sample.
type Worker struct {
	ID          int
	process     integrator.Process
	renderer    *TileRenderer
	taskQueue   chan TileTask
	resultQueue chan TileResult
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// The queues hold every tile of a pass, so submitting never blocks.
func NewWorkerPool(integ integrator.Integrator, numTiles, numWorkers int, notifier experiments.Notifier) *WorkerPool {
	numWorkers = max(1, numWorkers)

	wp := &WorkerPool{
		taskQueue:   make(chan TileTask, numTiles),
		resultQueue: make(chan TileResult, numTiles),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		process := integ.NewProcess()
		worker := &Worker{
			ID:          i,
			process:     process,
			renderer:    NewTileRenderer(process, notifier),
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		}
		wp.workers = append(wp.workers, worker)
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		for _, worker := range wp.workers {
			wp.wg.Add(1)
			go worker.run(&wp.wg)
		}
	})
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.taskQueue) // No more tasks
		wp.wg.Wait()        // Wait for workers to finish
		close(wp.resultQueue)
	})
}

// SubmitTask submits a tile task to the worker pool
func (wp *WorkerPool) SubmitTask(task TileTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed tile result
func (wp *WorkerPool) GetResult() (TileResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// Discarded returns the contributions rejected by all workers. It must only be
// called while no tasks are in flight.
func (wp *WorkerPool) Discarded() int {
	n := 0
	for _, w := range wp.workers {
		n += w.process.Discarded()
	}
	return n
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Tiles have non-overlapping bounds and own their splat buffer, so this is thread-safe
		samples, err := w.renderer.RenderTile(task.Ctx, task.Tile, task.TargetSamples)
		w.resultQueue <- TileResult{
			TaskID:  task.TaskID,
			Samples: samples,
			Error:   err,
		}
	}
}
