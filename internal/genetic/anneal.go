package genetic

import (
	"fmt"
	"io"
	"math"
	mathrand "math/rand"
	randv2 "math/rand/v2"

	"github.com/MaxHalford/eaopt"

	"github.com/kmertens/keyforge/internal/board"
)

// acceptFunc returns a simulated-annealing acceptance function for the
// chosen accept-worse policy.
func acceptFunc(acceptWorse string) (func(g, ng uint, e0, e1 float64) float64, error) {
	switch acceptWorse {
	case "always":
		return func(g, ng uint, e0, e1 float64) float64 { return 1.0 }, nil
	case "never":
		return func(g, ng uint, e0, e1 float64) float64 { return 0.0 }, nil
	case "drop-slow":
		return func(g, ng uint, e0, e1 float64) float64 {
			t := float64(g) / float64(ng)
			return (math.Cos(t*math.Pi) + 1.0) / 2.0
		}, nil
	case "linear":
		return func(g, ng uint, e0, e1 float64) float64 {
			return 1.0 - float64(g)/float64(ng)
		}, nil
	case "drop-fast":
		return func(g, ng uint, e0, e1 float64) float64 {
			t := 1.0 - float64(g)/float64(ng)
			return math.Exp(-3.0 * (1 - t))
		}, nil
	default:
		return nil, fmt.Errorf("unknown accept-worse policy %q", acceptWorse)
	}
}

// genome adapts a layout to eaopt's Genome so the annealer can drive it
// with the shared corpus evaluator.
type genome struct {
	layout *board.Layout
	eval   Evaluator
}

// Evaluate scores the genome's layout against the corpus.
func (g *genome) Evaluate() (float64, error) {
	return g.eval.Score(g.layout)
}

// Mutate applies one constraint-preserving swap. eaopt hands out math/rand
// sources; reseed a v2 generator from it so the swap rules share one
// implementation with Reproduce.
func (g *genome) Mutate(rng *mathrand.Rand) {
	r := randv2.New(randv2.NewPCG(rng.Uint64(), rng.Uint64()))
	g.layout = g.layout.Reproduce(r, 1)
}

// Crossover does nothing. It exists only to satisfy eaopt.Genome.
func (g *genome) Crossover(_ eaopt.Genome, _ *mathrand.Rand) {}

// Clone returns a copy of the genome.
func (g *genome) Clone() eaopt.Genome {
	return &genome{layout: g.layout.Clone(), eval: g.eval}
}

// Anneal refines a layout by simulated annealing over the corpus score and
// returns the best layout encountered. Improvements are reported to
// progress when it is non-nil.
func Anneal(start *board.Layout, eval Evaluator, generations uint, acceptWorse string, progress io.Writer) (Scored, error) {
	accept, err := acceptFunc(acceptWorse)
	if err != nil {
		return Scored{}, err
	}

	cfg := eaopt.NewDefaultGAConfig()
	cfg.NGenerations = generations
	cfg.Model = eaopt.ModSimulatedAnnealing{Accept: accept}

	minFit := math.MaxFloat64
	cfg.Callback = func(ga *eaopt.GA) {
		fit := ga.HallOfFame[0].Fitness
		if fit >= minFit || progress == nil {
			return
		}
		fmt.Fprintf(progress, "best score at generation %d: %.3f\n", ga.Generations, fit)
		minFit = fit
	}

	ga, err := cfg.NewGA()
	if err != nil {
		return Scored{}, err
	}
	err = ga.Minimize(func(rng *mathrand.Rand) eaopt.Genome {
		return &genome{layout: start.Clone(), eval: eval}
	})
	if err != nil {
		return Scored{}, err
	}

	hof := ga.HallOfFame[0]
	return Scored{Score: hof.Fitness, Layout: hof.Genome.(*genome).layout}, nil
}
