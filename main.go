package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/df07/go-progressive-bpt/pkg/log"
)

var logger = log.New("bpt")

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	// The default version flag claims -v
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "go-progressive-bpt"
	app.Usage = "render scenes using progressive bidirectional path tracing"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a scene to an image file",
			Description: `
Render one of the built-in scenes progressively. Settings are read from a yaml
configuration file when one is given; the remaining flags override it.

Interrupting the render writes the image of the samples taken so far.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "yaml configuration file",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "render.png",
					Usage: "image filename for the rendered frame (.png, .bmp, .tif or .tiff)",
				},
				cli.IntFlag{
					Name:  "samples",
					Usage: "samples per pixel",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "master sampler seed, -1 for a time based seed",
				},
				cli.StringFlag{
					Name:  "rng",
					Usage: "random number generator backend",
				},
				cli.StringFlag{
					Name:  "scene",
					Usage: "built-in scene name",
				},
				cli.IntFlag{
					Name:  "width",
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Usage: "frame height",
				},
			},
			Action: renderFrame,
		},
		{
			Name:   "list-rngs",
			Usage:  "list available random number generator backends",
			Action: listRNGs,
		},
		{
			Name:   "list-scenes",
			Usage:  "list built-in scenes",
			Action: listScenes,
		},
	}
	return app
}

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
