package search

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config 进化引擎配置
type Config struct {
	PopulationSize   int
	SurvivorRatio    float64
	CrossoverRate    float64
	GeneMutationRate float64
	Workers          int
	// Seed 为 0 时使用当前时间
	Seed        int64
	NoiseStdDev float64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		PopulationSize:   20,
		SurvivorRatio:    0.5,
		CrossoverRate:    0.7,
		GeneMutationRate: 0.2,
		Workers:          4,
		NoiseStdDev:      1.0,
	}
}

// Option 引擎选项
type Option func(*Engine)

// WithEstimator 替换精度估计器
func WithEstimator(est Estimator) Option {
	return func(e *Engine) {
		if est != nil {
			e.estimator = est
		}
	}
}

// Engine 演化神经架构搜索引擎。
// 所有随机性来自一个带种子的 rng；每个后代的评估使用从中顺序派生的独立种子，
// 因此并行评估不影响结果的确定性。
type Engine struct {
	cfg        Config
	estimator  Estimator
	mu         sync.Mutex
	rng        *rand.Rand
	population []Candidate
	generation uint64
	logger     *zap.Logger
}

// NewEngine 创建进化引擎
func NewEngine(cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.PopulationSize < 1 {
		cfg.PopulationSize = def.PopulationSize
	}
	if cfg.SurvivorRatio <= 0 || cfg.SurvivorRatio > 1 {
		cfg.SurvivorRatio = def.SurvivorRatio
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		cfg.CrossoverRate = def.CrossoverRate
	}
	if cfg.GeneMutationRate < 0 || cfg.GeneMutationRate > 1 {
		cfg.GeneMutationRate = def.GeneMutationRate
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:       cfg,
		estimator: HeuristicEstimator{NoiseStdDev: cfg.NoiseStdDev},
		rng:       rand.New(rand.NewSource(seed)),
		logger:    logger.With(zap.String("component", "architecture_search")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config 返回生效的配置
func (e *Engine) Config() Config {
	return e.cfg
}

// Generation 返回已完成的代数
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Population 返回引擎持有种群的副本
func (e *Engine) Population() []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Candidate(nil), e.population...)
}

// Best 返回引擎种群中得分最高的候选
func (e *Engine) Best() (Candidate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Best(e.population)
}

// GenerateRandom 在搜索空间内均匀采样并评估一个候选
func (e *Engine) GenerateRandom() Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.planRandom()
	return e.evaluate(p, e.generation)
}

// Mutate 对候选做一次变异，结果总在边界内
func (e *Engine) Mutate(parent Candidate) Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := plan{genome: e.mutateGenome(parent.Genome), parents: []string{parent.ID}}
	e.finishPlan(&p)
	return e.evaluate(p, e.generation)
}

// Crossover 对两个候选做均匀交叉，结果总在边界内
func (e *Engine) Crossover(a, b Candidate) Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := plan{genome: e.crossoverGenome(a.Genome, b.Genome), parents: []string{a.ID, b.ID}}
	e.finishPlan(&p)
	return e.evaluate(p, e.generation)
}

// Evolve 对引擎持有的种群演化一代；种群为空时先随机播种。
func (e *Engine) Evolve(ctx context.Context) ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := e.evolveLocked(ctx, e.population, e.cfg.PopulationSize)
	if err != nil {
		return nil, err
	}
	e.population = next
	return append([]Candidate(nil), next...), nil
}

// EvolvePopulation 对给定种群演化一代并返回大小为 size 的新种群，不改变引擎持有的种群。
// size <= 0 时保持输入种群大小。
func (e *Engine) EvolvePopulation(ctx context.Context, population []Candidate, size int) ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if size <= 0 {
		size = len(population)
	}
	if size <= 0 {
		size = e.cfg.PopulationSize
	}
	return e.evolveLocked(ctx, population, size)
}

// plan 一个待评估的后代
type plan struct {
	id      string
	genome  Genome
	seed    int64
	parents []string
}

// evolveLocked 需持有 e.mu。
// 排序与选择顺序执行，后代适应度并行评估，成功后代数 +1。
func (e *Engine) evolveLocked(ctx context.Context, population []Candidate, size int) ([]Candidate, error) {
	gen := e.generation + 1

	if len(population) == 0 {
		plans := make([]plan, size)
		for i := range plans {
			plans[i] = e.planRandom()
		}
		seeded, err := e.evaluateAll(ctx, plans, gen)
		if err != nil {
			return nil, err
		}
		population = seeded
	}

	ranked := append([]Candidate(nil), population...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	keep := int(float64(len(ranked)) * e.cfg.SurvivorRatio)
	if keep < 1 {
		keep = 1
	}
	if keep > size {
		keep = size
	}
	survivors := ranked[:keep]

	plans := make([]plan, 0, size-keep)
	crossovers := 0
	for len(survivors)+len(plans) < size {
		var p plan
		if e.rng.Float64() < e.cfg.CrossoverRate {
			a := survivors[e.rng.Intn(len(survivors))]
			b := survivors[e.rng.Intn(len(survivors))]
			p = plan{genome: e.crossoverGenome(a.Genome, b.Genome), parents: []string{a.ID, b.ID}}
			crossovers++
		} else {
			parent := survivors[e.rng.Intn(len(survivors))]
			p = plan{genome: e.mutateGenome(parent.Genome), parents: []string{parent.ID}}
		}
		e.finishPlan(&p)
		plans = append(plans, p)
	}

	offspring, err := e.evaluateAll(ctx, plans, gen)
	if err != nil {
		return nil, err
	}

	next := make([]Candidate, 0, size)
	next = append(next, survivors...)
	next = append(next, offspring...)

	e.generation = gen

	if best, ok := Best(next); ok {
		e.logger.Info("generation evolved",
			zap.Uint64("generation", gen),
			zap.Int("population", len(next)),
			zap.Int("survivors", keep),
			zap.Int("crossovers", crossovers),
			zap.Int("mutations", len(plans)-crossovers),
			zap.Float64("best_score", best.Score),
			zap.String("best_id", best.ID))
	}
	return next, nil
}

// evaluateAll 按 worker 上限并行评估；结果顺序与 plans 一致
func (e *Engine) evaluateAll(ctx context.Context, plans []plan, gen uint64) ([]Candidate, error) {
	out := make([]Candidate, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.evaluate(plans[i], gen)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fitness evaluation: %w", err)
	}
	return out, nil
}

// evaluate 计算精度、参数量、计算量与得分；只使用 plan 自带的种子
func (e *Engine) evaluate(p plan, gen uint64) Candidate {
	g := p.genome.Clamp()
	rng := rand.New(rand.NewSource(p.seed))
	acc := clampFloat(e.estimator.EstimateAccuracy(g, rng), 0, 100)
	params := g.Params()
	flops := g.FLOPs()
	return Candidate{
		ID:         p.id,
		Genome:     g,
		Accuracy:   acc,
		Params:     params,
		FLOPs:      flops,
		Score:      Score(acc, params, flops),
		Generation: gen,
		Parents:    p.parents,
	}
}

// planRandom 需持有 e.mu
func (e *Engine) planRandom() plan {
	p := plan{genome: Genome{
		Layers:     MinLayers + e.rng.Intn(MaxLayers-MinLayers+1),
		Channels:   MinChannels + e.rng.Intn(MaxChannels-MinChannels+1),
		KernelSize: KernelSizes[e.rng.Intn(len(KernelSizes))],
		Activation: Activations[e.rng.Intn(len(Activations))],
	}}
	e.finishPlan(&p)
	return p
}

// finishPlan 顺序派生 ID 与评估种子，需持有 e.mu
func (e *Engine) finishPlan(p *plan) {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		id = uuid.New()
	}
	p.id = id.String()
	p.seed = e.rng.Int63()
	p.genome = p.genome.Clamp()
}

// mutateGenome 每个基因以 GeneMutationRate 独立扰动，结果夹回边界
func (e *Engine) mutateGenome(g Genome) Genome {
	rate := e.cfg.GeneMutationRate
	if e.rng.Float64() < rate {
		g.Layers += e.rng.Intn(9) - 4
	}
	if e.rng.Float64() < rate {
		g.Channels += e.rng.Intn(129) - 64
	}
	if e.rng.Float64() < rate {
		g.KernelSize = KernelSizes[e.rng.Intn(len(KernelSizes))]
	}
	if e.rng.Float64() < rate {
		g.Activation = Activations[e.rng.Intn(len(Activations))]
	}
	return g.Clamp()
}

// crossoverGenome 逐基因从两个父代中均匀选择
func (e *Engine) crossoverGenome(a, b Genome) Genome {
	child := a
	if e.rng.Intn(2) == 1 {
		child.Layers = b.Layers
	}
	if e.rng.Intn(2) == 1 {
		child.Channels = b.Channels
	}
	if e.rng.Intn(2) == 1 {
		child.KernelSize = b.KernelSize
	}
	if e.rng.Intn(2) == 1 {
		child.Activation = b.Activation
	}
	return child.Clamp()
}
