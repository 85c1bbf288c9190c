package router

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/modelmesh/types"
	"go.uber.org/zap"
)

// Telemetry 一次遥测更新，nil 字段保持不变
type Telemetry struct {
	Accuracy       *float64 `json:"accuracy,omitempty"`
	Load           *float64 `json:"load,omitempty"`
	Expertise      *float64 `json:"expertise,omitempty"`
	ResponseTimeMs *float64 `json:"response_time_ms,omitempty"`
}

// Pool 并发安全的专家池，由遥测源维护。
// 路由时使用 Snapshot 返回的副本，路由器从不修改池。
type Pool struct {
	mu      sync.RWMutex
	experts map[string]*Expert
	now     func() time.Time
	logger  *zap.Logger
}

// PoolOption 专家池选项
type PoolOption func(*Pool)

// WithPoolClock 注入时钟
func WithPoolClock(now func() time.Time) PoolOption {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPool 创建专家池
func NewPool(logger *zap.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		experts: make(map[string]*Expert),
		now:     time.Now,
		logger:  logger.With(zap.String("component", "expert_pool")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register 注册或覆盖专家。状态为空时默认 idle，数值夹到合法范围。
func (p *Pool) Register(e Expert) error {
	if strings.TrimSpace(e.ID) == "" {
		return types.NewError(types.ErrInvalidRequest, "expert id is required")
	}
	if e.Status == "" {
		e.Status = StatusIdle
	}
	if !e.Status.Valid() {
		return types.Errorf(types.ErrInvalidRequest, "unknown expert status %q", e.Status)
	}
	e.Accuracy = clamp01(e.Accuracy)
	e.Load = clamp01(e.Load)
	if e.Expertise < 0 {
		e.Expertise = 0
	}
	if e.ResponseTimeMs < 0 {
		e.ResponseTimeMs = 0
	}
	e.UpdatedAt = p.now()

	p.mu.Lock()
	p.experts[e.ID] = &e
	p.mu.Unlock()

	p.logger.Info("expert registered",
		zap.String("expert_id", e.ID),
		zap.String("domain", string(e.Domain)),
		zap.String("status", string(e.Status)))
	return nil
}

// Remove 移除专家
func (p *Pool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.experts[id]
	delete(p.experts, id)
	return ok
}

// Get 返回专家副本
func (p *Pool) Get(id string) (Expert, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.experts[id]
	if !ok {
		return Expert{}, false
	}
	return *e, true
}

// Len 返回专家数
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.experts)
}

// Snapshot 返回全部专家的副本，按 ID 排序
func (p *Pool) Snapshot() []Expert {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Expert, 0, len(p.experts))
	for _, e := range p.experts {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateTelemetry 应用遥测更新
func (p *Pool) UpdateTelemetry(id string, t Telemetry) (Expert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.experts[id]
	if !ok {
		return Expert{}, notFound(id)
	}
	if t.Accuracy != nil {
		e.Accuracy = clamp01(*t.Accuracy)
	}
	if t.Load != nil {
		e.Load = clamp01(*t.Load)
	}
	if t.Expertise != nil {
		e.Expertise = math.Max(0, *t.Expertise)
	}
	if t.ResponseTimeMs != nil {
		e.ResponseTimeMs = math.Max(0, *t.ResponseTimeMs)
	}
	e.UpdatedAt = p.now()
	return *e, nil
}

// Transition 按状态机切换专家状态，非法切换返回 INVALID_TRANSITION
func (p *Pool) Transition(id string, to Status) (Expert, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.experts[id]
	if !ok {
		return Expert{}, notFound(id)
	}
	if !CanTransition(e.Status, to) {
		return Expert{}, types.Errorf(types.ErrInvalidTransition,
			"expert %s cannot move from %s to %s", id, e.Status, to)
	}

	from := e.Status
	e.Status = to
	e.UpdatedAt = p.now()

	p.logger.Info("expert status changed",
		zap.String("expert_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return *e, nil
}

// Acquire 分派请求后增加负载，结果封顶 1
func (p *Pool) Acquire(id string, delta float64) (float64, error) {
	return p.adjustLoad(id, math.Abs(delta))
}

// Release 请求完成后减少负载，结果不低于 0
func (p *Pool) Release(id string, delta float64) (float64, error) {
	return p.adjustLoad(id, -math.Abs(delta))
}

func (p *Pool) adjustLoad(id string, delta float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.experts[id]
	if !ok {
		return 0, notFound(id)
	}
	e.Load = clamp01(e.Load + delta)
	return e.Load, nil
}

func notFound(id string) error {
	return types.Errorf(types.ErrExpertNotFound, "expert %s not found", id)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
