package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/modelmesh/config"
	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/search"
	"github.com/BaSui01/modelmesh/types"
)

// =============================================================================
// ⏱️ 周期任务调度
// =============================================================================

// coordinator 调度器驱动的核心操作
type coordinator interface {
	CloseRound(ctx context.Context) (*federation.Snapshot, error)
	Evolve(ctx context.Context) ([]search.Candidate, error)
	EvictStale() []string
}

// Scheduler 按固定间隔关闭轮次、推进演化并清理过期贡献。间隔为 0 的任务不启动。
type Scheduler struct {
	core             coordinator
	roundInterval    time.Duration
	searchInterval   time.Duration
	evictionInterval time.Duration
	logger           *zap.Logger
	wg               sync.WaitGroup
}

// NewScheduler 由配置创建调度器
func NewScheduler(core coordinator, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		core:             core,
		roundInterval:    cfg.Federation.RoundInterval,
		searchInterval:   cfg.Search.Interval,
		evictionInterval: cfg.Federation.EvictionInterval,
		logger:           logger.With(zap.String("component", "scheduler")),
	}
}

// Start 启动所有已启用的任务，ctx 取消后任务退出
func (s *Scheduler) Start(ctx context.Context) {
	s.every(ctx, "round", s.roundInterval, s.closeRound)
	s.every(ctx, "search", s.searchInterval, s.evolve)
	s.every(ctx, "eviction", s.evictionInterval, s.evict)
}

// Wait 等待所有任务退出
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		s.logger.Info("periodic task disabled", zap.String("task", name))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	s.logger.Info("periodic task started", zap.String("task", name), zap.Duration("interval", interval))
}

func (s *Scheduler) closeRound(ctx context.Context) {
	snap, err := s.core.CloseRound(ctx)
	switch {
	case err == nil:
		s.logger.Info("round closed",
			zap.Uint64("round", snap.Round),
			zap.Int("contributors", len(snap.Contributors)),
		)
	case types.IsErrorCode(err, types.ErrQuorumNotMet):
		s.logger.Debug("round skipped", zap.Error(err))
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Warn("round failed", zap.Error(err))
	}
}

func (s *Scheduler) evolve(ctx context.Context) {
	if _, err := s.core.Evolve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("generation failed", zap.Error(err))
	}
}

func (s *Scheduler) evict(context.Context) {
	if evicted := s.core.EvictStale(); len(evicted) > 0 {
		s.logger.Info("stale contributions evicted", zap.Strings("nodes", evicted))
	}
}
