package genetic

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmertens/keyforge/internal/job"
	"github.com/kmertens/keyforge/internal/telemetry"
)

// BatchConfig parameterizes one batch of independent optimizer groups.
type BatchConfig struct {
	// Size is the number of groups run in parallel.
	Size int
	// Workers bounds parallel evaluations within each group; <=0 means one
	// per CPU.
	Workers int
	// Seed drives all group RNGs; 0 picks a time-based seed.
	Seed uint64
	// JobName is the telemetry measurement name.
	JobName string
}

// RunBatch runs cfg.Size independent groups, publishes progress through
// state and returns the groups' best layouts ranked by score.
//
// A group failure aborts the whole batch and resets the job cell so a later
// batch can start.
func RunBatch(cfg BatchConfig, eval Evaluator, state *job.State, emit telemetry.Emitter) ([]job.Result, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.Size)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if emit == nil {
		emit = telemetry.Nop{}
	}

	results := make([]job.Result, cfg.Size)
	g := new(errgroup.Group)
	for i := range cfg.Size {
		g.Go(func() error {
			group := fmt.Sprintf("%d", i)
			emit.Emit(cfg.JobName,
				[]telemetry.Pair{{Key: "keyboard", Value: group}},
				[]telemetry.Pair{{Key: "status", Value: "preparation"}})

			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			opt := NewOptimizer(eval, rng, cfg.Workers)
			opt.Notify = func(generation int, status string) {
				emit.Emit(cfg.JobName,
					[]telemetry.Pair{
						{Key: "keyboard", Value: group},
						{Key: "generation", Value: fmt.Sprintf("%d", generation)},
					},
					[]telemetry.Pair{{Key: "status", Value: status}})
			}

			emit.Emit(cfg.JobName,
				[]telemetry.Pair{{Key: "keyboard", Value: group}},
				[]telemetry.Pair{{Key: "status", Value: "start"}})

			best, err := opt.Run()
			if err != nil {
				return fmt.Errorf("group %d: %w", i, err)
			}
			state.AddCompleted()

			emit.Emit(cfg.JobName,
				[]telemetry.Pair{{Key: "keyboard", Value: group}},
				[]telemetry.Pair{{Key: "status", Value: "end"}})

			results[i] = job.Result{Score: best.Score, Layout: best.Layout}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		state.Fail()
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	state.Finish(results)
	return results, nil
}
