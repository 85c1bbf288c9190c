// Package modelmesh is the coordination core of a distributed model mesh:
// federated weight aggregation, evolutionary architecture search and
// mixture-of-experts query routing behind one owned value.
//
// Usage:
//
//	import "github.com/BaSui01/modelmesh"
//
//	core := modelmesh.New(*config.DefaultConfig(), logger,
//		modelmesh.WithMetrics(collector),
//		modelmesh.WithStore(store),
//	)
//	_ = core.SubmitContribution(ctx, contribution)
//	snap, err := core.CloseRound(ctx)
//	decision := core.RouteWithPool(ctx, "optimize this sql query")
//
// Core holds no package-level state; callers construct and own it.
package modelmesh

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/modelmesh/config"
	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/internal/metrics"
	"github.com/BaSui01/modelmesh/internal/telemetry"
	"github.com/BaSui01/modelmesh/router"
	"github.com/BaSui01/modelmesh/search"
	"github.com/BaSui01/modelmesh/types"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// =============================================================================
// 🔌 可选依赖
// =============================================================================

// SnapshotPublisher 发布快照与最优候选，供只读副本和看板读取
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, s *federation.Snapshot) error
	PublishBestCandidate(ctx context.Context, generation uint64, c search.Candidate) error
	PublishEvent(ctx context.Context, event any) error
}

// HistoryStore 持久化轮次与代际历史
type HistoryStore interface {
	SaveRound(ctx context.Context, s *federation.Snapshot, duration time.Duration) error
	SaveGeneration(ctx context.Context, generation uint64, population int, best search.Candidate, duration time.Duration) error
	LatestSnapshot(ctx context.Context) (*federation.Snapshot, error)
}

// Option 配置 Core
type Option func(*Core)

// WithMetrics 注入 Prometheus 指标收集器
func WithMetrics(c *metrics.Collector) Option {
	return func(core *Core) { core.metrics = c }
}

// WithPublisher 注入快照发布器
func WithPublisher(p SnapshotPublisher) Option {
	return func(core *Core) { core.publisher = p }
}

// WithStore 注入历史存储
func WithStore(s HistoryStore) Option {
	return func(core *Core) { core.store = s }
}

// WithClock 注入时钟，作用于注册表与专家池
func WithClock(now func() time.Time) Option {
	return func(core *Core) {
		if now != nil {
			core.now = now
		}
	}
}

// WithEstimator 替换架构精度估计器
func WithEstimator(est search.Estimator) Option {
	return func(core *Core) { core.estimator = est }
}

// WithKeywordTable 替换路由关键词表
func WithKeywordTable(t router.KeywordTable) Option {
	return func(core *Core) { core.keywords = t }
}

// WithEventHub 使用外部事件中心
func WithEventHub(h *EventHub) Option {
	return func(core *Core) {
		if h != nil {
			core.events = h
		}
	}
}

// =============================================================================
// 🧠 Core
// =============================================================================

// Core 组合聚合协调器、架构搜索引擎与专家路由器
type Core struct {
	registry    *federation.Registry
	coordinator *federation.Coordinator
	engine      *search.Engine
	router      *router.Router
	pool        *router.Pool
	events      *EventHub

	metrics   *metrics.Collector
	publisher SnapshotPublisher
	store     HistoryStore
	estimator search.Estimator
	keywords  router.KeywordTable
	now       func() time.Time
	logger    *zap.Logger
}

// New 按配置构造 Core
func New(cfg config.Config, logger *zap.Logger, opts ...Option) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Core{
		events: NewEventHub(64),
		now:    time.Now,
		logger: logger.With(zap.String("component", "core")),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry = federation.NewRegistry(cfg.Federation.StalenessThreshold, logger, federation.WithClock(c.now))
	c.coordinator = federation.NewCoordinator(c.registry, federation.CoordinatorConfig{
		Quorum: cfg.Federation.Quorum,
	}, logger)

	var searchOpts []search.Option
	if c.estimator != nil {
		searchOpts = append(searchOpts, search.WithEstimator(c.estimator))
	}
	c.engine = search.NewEngine(search.Config{
		PopulationSize:   cfg.Search.PopulationSize,
		SurvivorRatio:    cfg.Search.SurvivorRatio,
		CrossoverRate:    cfg.Search.CrossoverRate,
		GeneMutationRate: cfg.Search.GeneMutationRate,
		Workers:          cfg.Search.Workers,
		Seed:             cfg.Search.Seed,
		NoiseStdDev:      cfg.Search.NoiseStdDev,
	}, logger, searchOpts...)

	var routerOpts []router.Option
	if len(c.keywords) > 0 {
		routerOpts = append(routerOpts, router.WithKeywordTable(c.keywords))
	}
	c.router = router.New(router.Config{
		ScoreThreshold:     cfg.Router.ScoreThreshold,
		MaxExperts:         cfg.Router.MaxExperts,
		DefaultExpertID:    cfg.Router.DefaultExpertID,
		FallbackConfidence: cfg.Router.FallbackConfidence,
		FuzzyDistance:      cfg.Router.FuzzyDistance,
	}, logger, routerOpts...)
	c.pool = router.NewPool(logger, router.WithPoolClock(c.now))

	return c
}

// Registry 贡献注册表
func (c *Core) Registry() *federation.Registry { return c.registry }

// Coordinator 聚合协调器
func (c *Core) Coordinator() *federation.Coordinator { return c.coordinator }

// Engine 架构搜索引擎
func (c *Core) Engine() *search.Engine { return c.engine }

// Router 专家路由器
func (c *Core) Router() *router.Router { return c.router }

// Pool 专家池
func (c *Core) Pool() *router.Pool { return c.pool }

// Events 事件中心
func (c *Core) Events() *EventHub { return c.events }

// HasStore 是否配置了历史存储
func (c *Core) HasStore() bool { return c.store != nil }

// =============================================================================
// 🤝 联邦聚合
// =============================================================================

// SubmitContribution 登记一个节点的本地更新，同一节点后提交者覆盖先提交者
func (c *Core) SubmitContribution(ctx context.Context, contribution *federation.Contribution) error {
	nodeID := ""
	if contribution != nil {
		nodeID = contribution.NodeID
	}
	_, span := telemetry.StartSpan(ctx, "modelmesh.SubmitContribution",
		attribute.String("node_id", nodeID),
	)

	err := c.registry.Submit(contribution)
	telemetry.EndSpan(span, err)

	if c.metrics != nil {
		c.metrics.RecordContribution(err == nil)
		c.metrics.SetActiveNodes(c.registry.ActiveCount())
	}
	return err
}

// CloseRound 关闭当前轮次并发布新快照；失败时快照与轮次保持不变
func (c *Core) CloseRound(ctx context.Context) (*federation.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "modelmesh.CloseRound",
		attribute.Int64("round.current", int64(c.coordinator.Round())),
	)
	start := time.Now()

	snap, err := c.coordinator.CloseRound(ctx)
	duration := time.Since(start)
	telemetry.EndSpan(span, err)

	if err != nil {
		outcome := metrics.OutcomeAborted
		if types.IsErrorCode(err, types.ErrQuorumNotMet) {
			outcome = metrics.OutcomeQuorumNotMet
		}
		if c.metrics != nil {
			c.metrics.RecordRound(outcome, c.coordinator.Round(), 0, duration)
		}
		ev := newEvent(EventRoundSkipped, c.now())
		ev.Round = c.coordinator.Round()
		ev.Reason = string(types.GetErrorCode(err))
		c.emit(ctx, ev)
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordRound(metrics.OutcomeClosed, snap.Round, len(snap.Contributors), duration)
		c.metrics.SetActiveNodes(c.registry.ActiveCount())
	}

	if c.store != nil {
		if serr := c.store.SaveRound(ctx, snap, duration); serr != nil {
			c.logger.Warn("round history not saved", zap.Uint64("round", snap.Round), zap.Error(serr))
		}
	}
	if c.publisher != nil {
		if perr := c.publisher.PublishSnapshot(ctx, snap); perr != nil {
			c.logger.Warn("snapshot not published", zap.Uint64("round", snap.Round), zap.Error(perr))
		}
	}

	ev := newEvent(EventRoundClosed, c.now())
	ev.Round = snap.Round
	ev.SnapshotID = snap.ID
	ev.Participants = len(snap.Contributors)
	c.emit(ctx, ev)
	return snap, nil
}

// Snapshot 当前全局快照，尚未关闭过轮次时返回 SNAPSHOT_NOT_FOUND
func (c *Core) Snapshot() (*federation.Snapshot, error) {
	snap := c.coordinator.Current()
	if snap == nil {
		return nil, types.NewError(types.ErrSnapshotNotFound, "no round has been closed yet")
	}
	return snap, nil
}

// EvictStale 清理过期贡献
func (c *Core) EvictStale() []string {
	evicted := c.registry.EvictStale()
	if c.metrics != nil {
		c.metrics.RecordEvictions(len(evicted))
		c.metrics.SetActiveNodes(c.registry.ActiveCount())
	}
	return evicted
}

// Restore 从历史存储恢复最近的快照，没有存储或没有记录时不做任何事
func (c *Core) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	snap, err := c.store.LatestSnapshot(ctx)
	if types.IsErrorCode(err, types.ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	restored := c.coordinator.Restore(snap)
	if restored {
		c.logger.Info("snapshot restored", zap.Uint64("round", snap.Round), zap.String("snapshot_id", snap.ID))
	}
	return restored, nil
}

// =============================================================================
// 🧬 架构搜索
// =============================================================================

// Evolve 推进一代并返回新种群
func (c *Core) Evolve(ctx context.Context) ([]search.Candidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "modelmesh.Evolve",
		attribute.Int64("generation.current", int64(c.engine.Generation())),
	)
	start := time.Now()

	pop, err := c.engine.Evolve(ctx)
	duration := time.Since(start)
	telemetry.EndSpan(span, err)

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordGeneration(metrics.OutcomeError, 0, 0, duration)
		}
		return nil, err
	}

	best, _ := search.Best(pop)
	gen := c.engine.Generation()
	if c.metrics != nil {
		c.metrics.RecordGeneration(metrics.OutcomeOK, len(pop), best.Score, duration)
	}
	if c.store != nil {
		if serr := c.store.SaveGeneration(ctx, gen, len(pop), best, duration); serr != nil {
			c.logger.Warn("generation history not saved", zap.Uint64("generation", gen), zap.Error(serr))
		}
	}
	if c.publisher != nil {
		if perr := c.publisher.PublishBestCandidate(ctx, gen, best); perr != nil {
			c.logger.Warn("best candidate not published", zap.Uint64("generation", gen), zap.Error(perr))
		}
	}

	ev := newEvent(EventGenerationCompleted, c.now())
	ev.Generation = gen
	ev.CandidateID = best.ID
	ev.Score = best.Score
	c.emit(ctx, ev)
	return pop, nil
}

// Best 当前种群中得分最高的候选
func (c *Core) Best() (search.Candidate, bool) {
	return c.engine.Best()
}

// Status 协调核心的运行概况，供就绪探针与运维查看
type Status struct {
	Round          uint64  `json:"round"`
	ActiveNodes    int     `json:"active_nodes"`
	PendingNodes   int     `json:"pending_nodes"`
	Quorum         int     `json:"quorum"`
	QuorumReached  bool    `json:"quorum_reached"`
	Generation     uint64  `json:"generation"`
	BestScore      float64 `json:"best_score"`
	Experts        int     `json:"experts"`
	HistoryEnabled bool    `json:"history_enabled"`
}

// Status 汇总当前轮次、搜索代数与专家池规模
func (c *Core) Status() Status {
	active := c.registry.ActiveCount()
	st := Status{
		Round:          c.coordinator.Round(),
		ActiveNodes:    active,
		PendingNodes:   c.registry.Len(),
		Quorum:         c.coordinator.Quorum(),
		QuorumReached:  active >= c.coordinator.Quorum(),
		Generation:     c.engine.Generation(),
		Experts:        c.pool.Len(),
		HistoryEnabled: c.store != nil,
	}
	if best, ok := c.engine.Best(); ok {
		st.BestScore = best.Score
	}
	return st
}

// =============================================================================
// 🧭 专家路由
// =============================================================================

// Route 对给定专家集合做路由决策，无副作用
func (c *Core) Route(ctx context.Context, query string, experts []router.Expert) router.Decision {
	_, span := telemetry.StartSpan(ctx, "modelmesh.Route",
		attribute.Int("experts", len(experts)),
	)
	d := c.router.Route(query, experts)
	span.SetAttributes(
		attribute.Bool("fallback", d.Fallback),
		attribute.StringSlice("selected", d.SelectedExperts),
	)
	telemetry.EndSpan(span, nil)

	if c.metrics != nil {
		c.metrics.RecordRouting(d.Fallback, len(d.SelectedExperts), d.Confidence)
	}
	return d
}

// RouteWithPool 使用专家池的当前视图路由
func (c *Core) RouteWithPool(ctx context.Context, query string) router.Decision {
	return c.Route(ctx, query, c.pool.Snapshot())
}

// TransitionExpert 变更专家状态并广播事件
func (c *Core) TransitionExpert(ctx context.Context, id string, to router.Status) (router.Expert, error) {
	prev, ok := c.pool.Get(id)
	e, err := c.pool.Transition(id, to)
	if err != nil {
		return router.Expert{}, err
	}
	if ok && c.metrics != nil {
		c.metrics.RecordExpertTransition(string(prev.Status), string(e.Status))
	}

	ev := newEvent(EventExpertTransitioned, c.now())
	ev.ExpertID = e.ID
	ev.Status = string(e.Status)
	c.emit(ctx, ev)
	return e, nil
}

// =============================================================================
// 🔧 辅助
// =============================================================================

func (c *Core) emit(ctx context.Context, ev Event) {
	if dropped := c.events.Publish(ev); dropped > 0 {
		c.logger.Debug("slow event subscribers skipped", zap.String("type", string(ev.Type)), zap.Int("dropped", dropped))
	}
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishEvent(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("event not published", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// Close 释放事件订阅
func (c *Core) Close() {
	c.events.Close()
}
