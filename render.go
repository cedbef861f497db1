package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/df07/go-progressive-bpt/pkg/config"
	"github.com/df07/go-progressive-bpt/pkg/experiments"
	"github.com/df07/go-progressive-bpt/pkg/integrator"
	"github.com/df07/go-progressive-bpt/pkg/log"
	"github.com/df07/go-progressive-bpt/pkg/random"
	"github.com/df07/go-progressive-bpt/pkg/renderer"
	"github.com/df07/go-progressive-bpt/pkg/sampler"
	"github.com/df07/go-progressive-bpt/pkg/scene"
)

// defaultConfig is used when no configuration file is given
const defaultConfig = `
renderer:
  type: bpt
  num_samples: 16
  tile_size: 32
  max_path_vertices: 8
  sampler:
    type: random
    rng: sfmt
    seed: 42
  mis_weight:
    type: power
    beta: 2
scene:
  type: cornell
  width: 128
  height: 128
`

func loadConfig(path string) (config.Node, error) {
	data := []byte(defaultConfig)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return config.Node{}, err
		}
	}
	return config.Parse(data)
}

// Render a still frame.
func renderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	root, err := loadConfig(ctx.String("config"))
	if err != nil {
		return err
	}
	exps, err := experiments.FromConfig(root)
	if err != nil {
		return err
	}
	notifier, closeNotifier := notifierFor(exps)
	sched, err := buildScheduler(ctx, root, notifier)
	if err != nil {
		closeNotifier()
		return err
	}

	renderCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Noticef("rendering with %d workers", sched.NumWorkers())
	res, err := sched.Render(renderCtx)
	closeNotifier()
	if errors.Is(err, context.Canceled) {
		logger.Warning("render interrupted, writing partial image")
	} else if err != nil {
		return err
	}

	displayRenderStats(res)
	displayExperiments(exps)

	if err := writeImage(ctx.String("out"), res.Image()); err != nil {
		return err
	}
	logger.Noticef("wrote %s", ctx.String("out"))
	return nil
}

// notifierFor delivers events to the experiments from their own goroutine. With no
// experiments configured the notifier is nil, so workers skip building events. The
// returned func waits for every pending event.
func notifierFor(exps *experiments.Experiments) (experiments.Notifier, func()) {
	if exps.Len() == 0 {
		return nil, func() {}
	}
	async := experiments.Async(exps, 1024)
	return async, async.Close
}

// buildScheduler assembles the scheduler from the configuration with command line overrides applied
func buildScheduler(ctx *cli.Context, root config.Node, notifier experiments.Notifier) (*renderer.Scheduler, error) {
	renderNode := root.Child("renderer")
	if renderNode.Empty() {
		return nil, fmt.Errorf("renderer: %w: %q", config.ErrMissing, "renderer")
	}

	cfg, err := renderer.ConfigFromNode(renderNode)
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("samples") {
		cfg.NumSamples = ctx.Int("samples")
		cfg.InitialSamples = min(cfg.InitialSamples, max(1, cfg.NumSamples))
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	scn, err := sceneFromFlags(ctx, root.Child("scene"))
	if err != nil {
		return nil, err
	}
	logger.Infof("scene: %s", scn.Stats())

	integ, err := integrator.FromConfig(renderNode, scn)
	if err != nil {
		return nil, err
	}

	master, err := samplerFromFlags(ctx, renderNode.Child("sampler"))
	if err != nil {
		return nil, err
	}

	return renderer.NewScheduler(scn, integ, master, cfg, log.Printf{Logger: logger}, notifier)
}

func sceneFromFlags(ctx *cli.Context, node config.Node) (*scene.Scene, error) {
	name, err := config.ChildValueOrDefault(node, "type", "cornell")
	if err != nil {
		return nil, err
	}
	width, err := config.ChildValueOrDefault(node, "width", 64)
	if err != nil {
		return nil, err
	}
	height, err := config.ChildValueOrDefault(node, "height", width)
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("scene") {
		name = ctx.String("scene")
	}
	if ctx.IsSet("width") {
		width = ctx.Int("width")
	}
	if ctx.IsSet("height") {
		height = ctx.Int("height")
	}
	scn, err := scene.NewByName(name, width, height)
	if err != nil {
		return nil, err
	}
	return scene.WithMeshes(scn, node.Child("meshes"))
}

func samplerFromFlags(ctx *cli.Context, node config.Node) (sampler.Sampler, error) {
	// The configured sampler is validated even when flags replace its settings
	s, err := sampler.FromConfig(node)
	if err != nil {
		return nil, err
	}
	if !ctx.IsSet("rng") && !ctx.IsSet("seed") {
		return s, nil
	}

	samplerType, err := config.ChildValue[string](node, "type")
	if err != nil {
		return nil, err
	}
	backend := s.Rng().Name()
	if ctx.IsSet("rng") {
		backend = ctx.String("rng")
	}
	rawSeed, err := config.ChildValueOrDefault(node, "seed", int64(-1))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("seed") {
		rawSeed = ctx.Int64("seed")
	}
	seed, err := random.SeedFromInt(rawSeed)
	if err != nil {
		return nil, err
	}
	return sampler.New(samplerType, backend, seed)
}

func displayRenderStats(res *renderer.Result) {
	stats := res.Stats
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Pixels", "Samples", "Avg spp", "Min spp", "Max spp", "Splats", "Discarded", "Passes", "Render time"})
	table.Append([]string{
		fmt.Sprintf("%d", stats.TotalPixels),
		fmt.Sprintf("%d", stats.TotalSamples),
		fmt.Sprintf("%.1f", stats.AverageSamples),
		fmt.Sprintf("%d", stats.MinSamples),
		fmt.Sprintf("%d", stats.MaxSamplesUsed),
		fmt.Sprintf("%d", stats.Splats),
		fmt.Sprintf("%d", stats.Discarded),
		fmt.Sprintf("%d", res.Passes),
		res.Elapsed.String(),
	})
	table.Render()
	logger.Noticef("render statistics\n%s", buf.String())
}

func displayExperiments(exps *experiments.Experiments) {
	for _, name := range experiments.Names() {
		exp, ok := exps.Get(name)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		switch e := exp.(type) {
		case *experiments.ProgressPlot:
			e.WriteTable(&buf)
		case *experiments.RecordRMSE:
			e.WriteTable(&buf)
		case *experiments.SampleCounter:
			fmt.Fprintf(&buf, "%d samples\n", e.Total())
		}
		logger.Noticef("%s\n%s", name, buf.String())
	}
}

// ErrUnknownImageFormat is returned for an output extension with no encoder
var ErrUnknownImageFormat = errors.New("unknown image format")

// encoders maps output file extensions to image encoders
var encoders = map[string]func(w io.Writer, img image.Image) error{
	".png": png.Encode,
	".bmp": bmp.Encode,
	".tif": func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) },
	".tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// writeImage encodes img in the format given by the extension of path
func writeImage(path string, img image.Image) error {
	encode, ok := encoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownImageFormat, filepath.Ext(path))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List available random number generator backends.
func listRNGs(ctx *cli.Context) error {
	setupLogging(ctx)
	logger.Noticef("available rng backends: %s", strings.Join(random.Names(), ", "))
	return nil
}

// List built-in scenes.
func listScenes(ctx *cli.Context) error {
	setupLogging(ctx)
	logger.Noticef("available scenes: %s", strings.Join(scene.Names(), ", "))
	return nil
}
