// Package genetic drives populations of layouts toward low typing effort.
//
// One Optimizer owns a single group: a 100-layout population evolved by
// elitist selection and a mutation ladder until the best score stagnates.
// RunBatch runs several independent groups in parallel and ranks their
// winners. Anneal offers a simulated-annealing polish over the same scorer.
package genetic

import (
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kmertens/keyforge/internal/board"
)

const (
	// PopulationSize is the number of layouts evolved per group.
	PopulationSize = 100
	// EliteSize is the number of survivors seeding the next generation.
	EliteSize = 50
	// StagnationWindow is how many consecutive generations the best score
	// must hold before a group stops.
	StagnationWindow = 100

	// scoreSentinel pre-fills the stagnation buffer so termination cannot
	// fire before the window has been genuinely overwritten.
	scoreSentinel = 1e10
)

// mutationLadder maps an elite's rank mod 6 to its child's swap count: half
// the children are near-copies, half aggressive scrambles.
var mutationLadder = [6]int{1, 2, 4, 8, 16, 32}

// Evaluator scores a layout against a corpus. Implementations must be safe
// for concurrent use and deterministic for a fixed corpus.
type Evaluator interface {
	Score(*board.Layout) (float64, error)
}

// Scored pairs a layout with its corpus score.
type Scored struct {
	Score  float64
	Layout *board.Layout
}

// Optimizer evolves one group. Not safe for concurrent use; run one
// goroutine per group.
type Optimizer struct {
	eval    Evaluator
	rng     *rand.Rand
	workers int

	// Notify, when set, observes each generation's start and end.
	Notify func(generation int, status string)

	population []*board.Layout
	scratch    []Scored // evaluation buffer, reused across generations
	elites     []Scored
	history    [StagnationWindow]float64
	generation int
}

// NewOptimizer seeds a group with a random population. workers bounds the
// parallel evaluations per generation; <=0 means one per CPU.
func NewOptimizer(eval Evaluator, rng *rand.Rand, workers int) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	o := &Optimizer{
		eval:       eval,
		rng:        rng,
		workers:    workers,
		population: make([]*board.Layout, PopulationSize),
		scratch:    make([]Scored, PopulationSize),
		elites:     make([]Scored, 0, EliteSize),
	}
	for i := range o.population {
		o.population[i] = board.NewRandom(rng)
	}
	for i := range o.history {
		o.history[i] = scoreSentinel
	}
	return o
}

// seedElites evaluates a fresh set of random layouts as the initial elite
// set, priming the memo for the first generation.
func (o *Optimizer) seedElites() error {
	seed := make([]*board.Layout, EliteSize)
	for i := range seed {
		seed[i] = board.NewRandom(o.rng)
	}
	initial := make([]Scored, EliteSize)
	if err := o.evaluate(seed, nil, initial); err != nil {
		return err
	}
	o.elites = append(o.elites[:0], initial...)
	return nil
}

// Run evolves the group until the best score has been unchanged for a full
// stagnation window, then returns the best layout found.
func (o *Optimizer) Run() (Scored, error) {
	if err := o.seedElites(); err != nil {
		return Scored{}, err
	}

	for {
		done, err := o.step()
		if err != nil {
			return Scored{}, err
		}
		if done {
			return o.elites[0], nil
		}
	}
}

// step runs one generation: evaluate, sort, split, breed, check stagnation.
// Reports done when the group has stagnated.
func (o *Optimizer) step() (bool, error) {
	o.notify("start")

	if err := o.evaluate(o.population, o.elites, o.scratch); err != nil {
		return false, err
	}
	sort.Slice(o.scratch, func(i, j int) bool {
		return o.scratch[i].Score < o.scratch[j].Score
	})

	o.elites = append(o.elites[:0], o.scratch[:EliteSize]...)
	for i, elite := range o.elites {
		o.population[i] = elite.Layout
		o.population[EliteSize+i] = elite.Layout.Reproduce(o.rng, mutationLadder[i%6])
	}

	o.notify("end")

	o.history[o.generation%StagnationWindow] = o.elites[0].Score
	o.generation++
	return o.stagnated(), nil
}

// evaluate scores layouts into out, reusing a cached elite score whenever a
// layout is key-identical to an elite from the previous generation.
func (o *Optimizer) evaluate(layouts []*board.Layout, memo []Scored, out []Scored) error {
	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, l := range layouts {
		g.Go(func() error {
			for _, cached := range memo {
				if cached.Layout.Equal(l) {
					out[i] = Scored{cached.Score, l}
					return nil
				}
			}
			score, err := o.eval.Score(l)
			if err != nil {
				return err
			}
			out[i] = Scored{score, l}
			return nil
		})
	}
	return g.Wait()
}

func (o *Optimizer) stagnated() bool {
	first := o.history[0]
	for _, s := range o.history[1:] {
		if s != first {
			return false
		}
	}
	return true
}

// Generation returns how many generations the group has completed.
func (o *Optimizer) Generation() int {
	return o.generation
}

func (o *Optimizer) notify(status string) {
	if o.Notify != nil {
		o.Notify(o.generation, status)
	}
}
