// Package main provides the keyforge command-line tool.
//
// keyforge searches for keyboard layouts that minimize typing effort over a
// corpus of text files. The search command runs a batch of genetic
// optimizer groups locally; serve exposes the same batch over HTTP; anneal
// polishes a layout by simulated annealing; score and view are small
// inspection helpers.
package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kmertens/keyforge/internal/board"
	"github.com/kmertens/keyforge/internal/genetic"
	"github.com/kmertens/keyforge/internal/job"
	"github.com/kmertens/keyforge/internal/scorer"
	"github.com/kmertens/keyforge/internal/server"
	"github.com/kmertens/keyforge/internal/telemetry"
)

// appFlagsMap centralizes flag definitions so commands select only the
// flags they need.
var appFlagsMap = map[string]cli.Flag{
	"corpus": &cli.StringFlag{
		Name:    "corpus",
		Aliases: []string{"c"},
		Usage:   "corpus directory scanned for character pairs",
		Value:   "./pile",
	},
	"batch-size": &cli.IntFlag{
		Name:    "batch-size",
		Aliases: []string{"b"},
		Usage:   "number of independent optimizer groups",
		Value:   8,
		Action: func(c *cli.Context, value int) error {
			if value < 1 {
				return fmt.Errorf("--batch-size must be at least 1 (got %d)", value)
			}
			return nil
		},
	},
	"workers": &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "parallel evaluations per group (0 = one per CPU)",
		Value:   0,
	},
	"seed": &cli.Uint64Flag{
		Name:  "seed",
		Usage: "random seed for reproducibility (0 = time-based)",
		Value: 0,
	},
	"job-name": &cli.StringFlag{
		Name:    "job-name",
		Aliases: []string{"j"},
		Usage:   "telemetry measurement name for this run",
		Value:   "keyboard_gen",
	},
	"top": &cli.IntFlag{
		Name:  "top",
		Usage: "number of winning boards to render",
		Value: 3,
	},
	"addr": &cli.StringFlag{
		Name:  "addr",
		Usage: "listen address for the control surface",
		Value: ":8080",
	},
	"generations": &cli.UintFlag{
		Name:    "generations",
		Aliases: []string{"g"},
		Usage:   "annealing generations",
		Value:   2000,
	},
	"accept-worse": &cli.StringFlag{
		Name:  "accept-worse",
		Usage: "annealing acceptance policy: always, never, drop-slow, linear, drop-fast",
		Value: "drop-slow",
	},
	"random": &cli.BoolFlag{
		Name:  "random",
		Usage: "start from a random layout instead of the canonical one",
	},
}

// flagsSlice picks named flags from appFlagsMap.
func flagsSlice(names ...string) []cli.Flag {
	flags := make([]cli.Flag, 0, len(names))
	for _, name := range names {
		flag, ok := appFlagsMap[name]
		if !ok {
			panic(fmt.Sprintf("unknown flag: %s", name))
		}
		flags = append(flags, flag)
	}
	return flags
}

func main() {
	app := &cli.App{
		Name:  "keyforge",
		Usage: "evolve keyboard layouts that minimize typing effort",
		Commands: []*cli.Command{
			{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "run a batch of optimizer groups and rank their layouts",
				Flags:   flagsSlice("corpus", "batch-size", "workers", "seed", "job-name", "top"),
				Action:  searchAction,
			},
			{
				Name:   "serve",
				Usage:  "expose the search over HTTP (POST /new, GET /update)",
				Flags:  flagsSlice("addr", "corpus", "workers", "seed"),
				Action: serveAction,
			},
			{
				Name:   "anneal",
				Usage:  "polish a layout with simulated annealing",
				Flags:  flagsSlice("corpus", "generations", "accept-worse", "seed", "random"),
				Action: annealAction,
			},
			{
				Name:   "score",
				Usage:  "score a layout against a corpus",
				Flags:  flagsSlice("corpus", "seed", "random"),
				Action: scoreAction,
			},
			{
				Name:   "view",
				Usage:  "print the canonical board",
				Action: viewAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newEmitter builds a telemetry client from the environment, falling back
// to a no-op emitter when telemetry is not configured. The returned close
// function flushes pending records.
func newEmitter() (telemetry.Emitter, func()) {
	client, err := telemetry.NewFromEnv()
	if err != nil {
		if !errors.Is(err, telemetry.ErrMissingEnv) {
			log.Printf("telemetry unavailable: %v", err)
		}
		return telemetry.Nop{}, func() {}
	}
	return client, client.Close
}

func checkCorpus(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("corpus %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus %s is not a directory", path)
	}
	return nil
}

func searchAction(c *cli.Context) error {
	corpus := c.String("corpus")
	if err := checkCorpus(corpus); err != nil {
		return err
	}

	emitter, closeEmitter := newEmitter()
	defer closeEmitter()

	var state job.State
	batchSize := c.Int("batch-size")
	state.Begin(batchSize)

	log.Printf("searching with %d groups over %s", batchSize, corpus)
	started := time.Now()
	results, err := genetic.RunBatch(genetic.BatchConfig{
		Size:    batchSize,
		Workers: c.Int("workers"),
		Seed:    c.Uint64("seed"),
		JobName: c.String("job-name"),
	}, scorer.New(corpus), &state, emitter)
	if err != nil {
		return err
	}
	log.Printf("batch finished in %v", time.Since(started).Round(time.Second))

	renderResults(os.Stdout, results, c.Int("top"))
	return nil
}

func serveAction(c *cli.Context) error {
	corpus := c.String("corpus")
	if err := checkCorpus(corpus); err != nil {
		return err
	}

	emitter, closeEmitter := newEmitter()
	defer closeEmitter()

	eval := scorer.New(corpus)
	workers := c.Int("workers")
	seed := c.Uint64("seed")

	var state job.State
	launch := func(batchSize int, jobName string) {
		if jobName == "" {
			jobName = "keyboard_gen"
		}
		if _, err := genetic.RunBatch(genetic.BatchConfig{
			Size:    batchSize,
			Workers: workers,
			Seed:    seed,
			JobName: jobName,
		}, eval, &state, emitter); err != nil {
			log.Printf("batch %q failed: %v", jobName, err)
		}
	}

	addr := c.String("addr")
	log.Printf("control surface listening on %s", addr)
	return http.ListenAndServe(addr, server.New(&state, launch).Handler())
}

func annealAction(c *cli.Context) error {
	corpus := c.String("corpus")
	if err := checkCorpus(corpus); err != nil {
		return err
	}

	start := startingLayout(c)
	best, err := genetic.Anneal(start, scorer.New(corpus), c.Uint("generations"), c.String("accept-worse"), os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\nbest score: %.2f\n\n%s", best.Score, best.Layout)
	return nil
}

func scoreAction(c *cli.Context) error {
	corpus := c.String("corpus")
	if err := checkCorpus(corpus); err != nil {
		return err
	}

	layout := startingLayout(c)
	score, err := scorer.New(corpus).Score(layout)
	if err != nil {
		return err
	}

	fmt.Printf("score: %.2f\n\n%s", score, layout)
	return nil
}

func viewAction(c *cli.Context) error {
	fmt.Print(board.New())
	return nil
}

// startingLayout returns the canonical layout, or a seeded random one when
// --random is set.
func startingLayout(c *cli.Context) *board.Layout {
	if !c.Bool("random") {
		return board.New()
	}
	seed := c.Uint64("seed")
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return board.NewRandom(rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)))
}
