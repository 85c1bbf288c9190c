package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/search"
	"go.uber.org/zap"
)

// =============================================================================
// 📡 快照与最优候选发布
// =============================================================================

// EventsChannel 轮次与代际事件的广播频道名（不含前缀）
const EventsChannel = "events"

// PublishSnapshot 发布全局快照，同时写入 latest 与按轮次索引的键
func (m *Manager) PublishSnapshot(ctx context.Context, s *federation.Snapshot) error {
	if s == nil {
		return fmt.Errorf("nil snapshot")
	}

	if err := m.SetJSON(ctx, m.key("snapshot", "round", strconv.FormatUint(s.Round, 10)), s, 0); err != nil {
		return err
	}
	if err := m.SetJSON(ctx, m.key("snapshot", "latest"), s, 0); err != nil {
		return err
	}

	m.logger.Debug("snapshot published",
		zap.Uint64("round", s.Round),
		zap.String("snapshot_id", s.ID),
	)
	return nil
}

// LatestSnapshot 读取最近发布的快照
func (m *Manager) LatestSnapshot(ctx context.Context) (*federation.Snapshot, error) {
	var s federation.Snapshot
	if err := m.GetJSON(ctx, m.key("snapshot", "latest"), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SnapshotByRound 按轮次读取快照
func (m *Manager) SnapshotByRound(ctx context.Context, round uint64) (*federation.Snapshot, error) {
	var s federation.Snapshot
	if err := m.GetJSON(ctx, m.key("snapshot", "round", strconv.FormatUint(round, 10)), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// BestRecord 某一代结束时的最优候选
type BestRecord struct {
	Generation  uint64           `json:"generation"`
	Candidate   search.Candidate `json:"candidate"`
	PublishedAt time.Time        `json:"published_at"`
}

// PublishBestCandidate 发布当前最优候选架构
func (m *Manager) PublishBestCandidate(ctx context.Context, generation uint64, c search.Candidate) error {
	rec := BestRecord{Generation: generation, Candidate: c, PublishedAt: time.Now().UTC()}
	if err := m.SetJSON(ctx, m.key("search", "best"), rec, 0); err != nil {
		return err
	}

	m.logger.Debug("best candidate published",
		zap.Uint64("generation", generation),
		zap.String("candidate_id", c.ID),
		zap.Float64("score", c.Score),
	)
	return nil
}

// BestCandidate 读取最近发布的最优候选
func (m *Manager) BestCandidate(ctx context.Context) (*BestRecord, error) {
	var rec BestRecord
	if err := m.GetJSON(ctx, m.key("search", "best"), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PublishEvent 在事件频道上广播
func (m *Manager) PublishEvent(ctx context.Context, event any) error {
	return m.Publish(ctx, m.key(EventsChannel), event)
}

// EventsChannelName 返回带前缀的事件频道名
func (m *Manager) EventsChannelName() string {
	return m.key(EventsChannel)
}
