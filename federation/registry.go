package federation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/modelmesh/tensor"
	"go.uber.org/zap"
)

// DefaultStalenessThreshold 默认过期阈值
const DefaultStalenessThreshold = 5 * time.Minute

// Registry 每个节点最新提交的并发安全存储（last-write-wins）。
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Contribution
	layout    tensor.Layout
	staleness time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// RegistryOption 注册表选项
type RegistryOption func(*Registry)

// WithClock 注入时钟
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithExpectedLayout 预设期望的层布局，提交时即校验
func WithExpectedLayout(l tensor.Layout) RegistryOption {
	return func(r *Registry) {
		r.layout = l
	}
}

// NewRegistry 创建注册表。staleness <= 0 时使用默认 5 分钟。
func NewRegistry(staleness time.Duration, logger *zap.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if staleness <= 0 {
		staleness = DefaultStalenessThreshold
	}
	r := &Registry{
		entries:   make(map[string]*Contribution),
		staleness: staleness,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "contribution_registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit 接收节点的最新权重，替换该节点之前的提交。
// SubmittedAt 为零值时使用注册表时钟。
func (r *Registry) Submit(c *Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}

	entry := c.clone()
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.layout) > 0 {
		if err := r.layout.Matches(entry.Weights); err != nil {
			r.logger.Warn("contribution rejected",
				zap.String("node_id", entry.NodeID),
				zap.Error(err))
			return invalidLayout(entry.NodeID, err)
		}
	}

	_, replaced := r.entries[entry.NodeID]
	r.entries[entry.NodeID] = entry

	r.logger.Debug("contribution accepted",
		zap.String("node_id", entry.NodeID),
		zap.Uint64("data_size", entry.DataSize),
		zap.Bool("replaced", replaced))
	return nil
}

// SetLayout 设置期望布局（通常为最新快照的布局）
func (r *Registry) SetLayout(l tensor.Layout) {
	r.mu.Lock()
	r.layout = l
	r.mu.Unlock()
}

// Layout 返回期望布局，未设置时为 nil
func (r *Registry) Layout() tensor.Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layout
}

// StalenessThreshold 返回过期阈值
func (r *Registry) StalenessThreshold() time.Duration {
	return r.staleness
}

// IsActive 检查提交在 now 时刻是否仍然活跃
func (r *Registry) IsActive(c *Contribution, now time.Time) bool {
	return now.Sub(c.SubmittedAt) < r.staleness
}

// Active 返回所有活跃提交，按节点 ID 排序
func (r *Registry) Active() []*Contribution {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Contribution, 0, len(r.entries))
	for _, c := range r.entries {
		if r.IsActive(c, now) {
			out = append(out, c)
		}
	}
	sortByNode(out)
	return out
}

// All 返回全部提交（含过期），按节点 ID 排序
func (r *Registry) All() []*Contribution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Contribution, 0, len(r.entries))
	for _, c := range r.entries {
		out = append(out, c)
	}
	sortByNode(out)
	return out
}

// Get 返回某节点当前的提交
func (r *Registry) Get(nodeID string) (*Contribution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.entries[nodeID]
	return c, ok
}

// Len 返回注册表条目数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveCount 返回活跃节点数
func (r *Registry) ActiveCount() int {
	return len(r.Active())
}

// EvictStale 移除过期提交，返回被移除的节点 ID
func (r *Registry) EvictStale() []string {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, c := range r.entries {
		if !r.IsActive(c, now) {
			delete(r.entries, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)

	if len(evicted) > 0 {
		r.logger.Info("evicted stale contributions",
			zap.Int("count", len(evicted)),
			zap.Strings("node_ids", evicted))
	}
	return evicted
}

// Absorb 移除已被一轮聚合吸收的提交。
// 只有仍是同一份提交时才移除，轮次进行中被替换的新提交保留。
func (r *Registry) Absorb(absorbed []*Contribution) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range absorbed {
		if cur, ok := r.entries[c.NodeID]; ok && cur == c {
			delete(r.entries, c.NodeID)
			n++
		}
	}
	return n
}

// Run 按间隔清理过期提交，直到 ctx 取消
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.staleness / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("eviction loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("eviction loop stopped")
			return
		case <-ticker.C:
			r.EvictStale()
		}
	}
}

func sortByNode(cs []*Contribution) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].NodeID < cs[j].NodeID })
}
