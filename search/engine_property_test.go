package search

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// 任意（包括越界的）父代经变异或交叉后，后代都满足搜索空间边界
func TestProperty_OffspringWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("mutate and crossover clamp every gene", prop.ForAll(
		func(layers, channels, kernel, act int, seed int64) bool {
			cfg := DefaultConfig()
			cfg.Seed = seed
			cfg.GeneMutationRate = 0.5
			eng := NewEngine(cfg, nil)

			activation := Activation("Unknown")
			if act < len(Activations) {
				activation = Activations[act]
			}
			parent := Candidate{ID: "p", Genome: Genome{Layers: layers, Channels: channels, KernelSize: kernel, Activation: activation}}
			other := eng.GenerateRandom()

			if m := eng.Mutate(parent); !m.Valid() {
				t.Logf("mutant out of bounds: %+v", m.Genome)
				return false
			}
			if x := eng.Crossover(parent, other); !x.Valid() {
				t.Logf("child out of bounds: %+v", x.Genome)
				return false
			}
			return true
		},
		gen.IntRange(-100, 200),
		gen.IntRange(-1000, 5000),
		gen.IntRange(-3, 15),
		gen.IntRange(0, len(Activations)),
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t)
}

// 演化前后种群大小不变
func TestProperty_EvolvePreservesSize(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("population size is constant across generations", prop.ForAll(
		func(size int, seed int64) bool {
			cfg := DefaultConfig()
			cfg.PopulationSize = size
			cfg.Seed = seed
			eng := NewEngine(cfg, nil)

			for i := 0; i < 3; i++ {
				pop, err := eng.Evolve(context.Background())
				if err != nil || len(pop) != size {
					t.Logf("generation %d: size %d, err %v", i, len(pop), err)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.Int64Range(1, 1<<40),
	))

	properties.TestingRun(t)
}
