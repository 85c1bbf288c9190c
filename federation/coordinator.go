package federation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/modelmesh/tensor"
	"github.com/BaSui01/modelmesh/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoordinatorConfig 聚合协调器配置
type CoordinatorConfig struct {
	// Quorum 关闭一轮所需的最少节点数，小于 1 时按 1 处理
	Quorum int
}

// Coordinator 运行联邦轮次并原子地发布全局快照。
// CloseRound 是快照唯一的写入点。
type Coordinator struct {
	registry *Registry
	quorum   int
	current  atomic.Pointer[Snapshot]
	roundMu  sync.Mutex
	now      func() time.Time
	logger   *zap.Logger
}

// NewCoordinator 创建协调器
func NewCoordinator(registry *Registry, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	quorum := cfg.Quorum
	if quorum < 1 {
		quorum = 1
	}
	return &Coordinator{
		registry: registry,
		quorum:   quorum,
		now:      registry.now,
		logger:   logger.With(zap.String("component", "aggregation_coordinator")),
	}
}

// Current 返回当前快照，尚无快照时为 nil
func (c *Coordinator) Current() *Snapshot {
	return c.current.Load()
}

// Round 返回当前轮次，尚无快照时为 0
func (c *Coordinator) Round() uint64 {
	if s := c.current.Load(); s != nil {
		return s.Round
	}
	return 0
}

// Quorum 返回法定节点数
func (c *Coordinator) Quorum() int {
	return c.quorum
}

// Restore 用持久化的快照恢复状态（例如重启后），只接受更新的轮次
func (c *Coordinator) Restore(s *Snapshot) bool {
	if s == nil {
		return false
	}
	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	if prev := c.current.Load(); prev != nil && prev.Round >= s.Round {
		return false
	}
	c.current.Store(s)
	c.registry.SetLayout(s.Layout())
	c.logger.Info("snapshot restored", zap.Uint64("round", s.Round))
	return true
}

// CloseRound 关闭一轮：收集活跃提交、剔除布局不一致者、FedAvg 聚合并发布新快照。
// 节点不足时返回 QUORUM_NOT_MET，ctx 取消时返回 ROUND_ABORTED；两种情况下快照与轮次均不变。
func (c *Coordinator) CloseRound(ctx context.Context) (*Snapshot, error) {
	c.roundMu.Lock()
	defer c.roundMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, c.aborted(err)
	}

	active := c.registry.Active()
	if len(active) < c.quorum {
		return nil, c.quorumNotMet(len(active), "active")
	}

	prev := c.current.Load()
	ref := c.referenceLayout(prev, active)

	included := make([]*Contribution, 0, len(active))
	var rejected []Rejection
	var dropped []*Contribution
	for _, contrib := range active {
		if err := ref.Matches(contrib.Weights); err != nil {
			c.logger.Warn("contribution excluded from round",
				zap.String("node_id", contrib.NodeID),
				zap.String("code", string(types.ErrInvalidContribution)),
				zap.Error(err))
			rejected = append(rejected, Rejection{NodeID: contrib.NodeID, Reason: err.Error()})
			dropped = append(dropped, contrib)
			continue
		}
		included = append(included, contrib)
	}

	if len(included) < c.quorum {
		return nil, c.quorumNotMet(len(included), "eligible")
	}

	layers, weights, err := aggregate(ctx, included, ref)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.aborted(err)
		}
		return nil, err
	}

	var round uint64 = 1
	if prev != nil {
		round = prev.Round + 1
	}
	_, total := FedAvgWeights(included)

	snap := &Snapshot{
		ID:            uuid.NewString(),
		Round:         round,
		Layers:        layers,
		Contributors:  weights,
		Rejected:      rejected,
		TotalDataSize: total,
		Weighted:      total > 0,
		CreatedAt:     c.now(),
	}
	c.current.Store(snap)

	c.registry.SetLayout(ref)
	absorbed := c.registry.Absorb(append(included, dropped...))

	c.logger.Info("round closed",
		zap.Uint64("round", round),
		zap.Int("participants", len(included)),
		zap.Int("rejected", len(rejected)),
		zap.Int("absorbed", absorbed),
		zap.Uint64("total_data_size", total))

	return snap, nil
}

// referenceLayout 选择本轮的参考布局：
// 上一快照 → 注册表期望布局 → 多数提交共享的布局（并列时取节点 ID 最小者所在组）
func (c *Coordinator) referenceLayout(prev *Snapshot, active []*Contribution) tensor.Layout {
	if prev != nil && len(prev.Layers) > 0 {
		return prev.Layout()
	}
	if l := c.registry.Layout(); len(l) > 0 {
		return l
	}

	type group struct {
		layout tensor.Layout
		count  int
		first  int
	}
	groups := make(map[string]*group)
	for i, contrib := range active {
		l := contrib.Layout()
		key := l.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{layout: l, first: i}
			groups[key] = g
		}
		g.count++
	}

	var best *group
	for _, g := range groups {
		if best == nil || g.count > best.count || (g.count == best.count && g.first < best.first) {
			best = g
		}
	}
	return best.layout
}

func (c *Coordinator) quorumNotMet(n int, kind string) error {
	c.logger.Warn("round skipped",
		zap.String("code", string(types.ErrQuorumNotMet)),
		zap.Int(kind, n),
		zap.Int("quorum", c.quorum),
		zap.Uint64("round", c.Round()))
	return types.Errorf(types.ErrQuorumNotMet, "%d %s contributions, quorum is %d", n, kind, c.quorum).
		WithRetryable(true)
}

func (c *Coordinator) aborted(cause error) error {
	c.logger.Warn("round aborted", zap.Error(cause), zap.Uint64("round", c.Round()))
	return types.NewError(types.ErrRoundAborted, "round aborted").
		WithCause(cause).
		WithRetryable(true)
}
