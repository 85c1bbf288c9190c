package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/search"
	"github.com/BaSui01/modelmesh/tensor"
	"github.com/BaSui01/modelmesh/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 📚 轮次与代际历史
// =============================================================================

// RoundRecord 一次成功关闭的聚合轮次
type RoundRecord struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SnapshotID    string    `gorm:"size:64;not null" json:"snapshot_id"`
	Round         uint64    `gorm:"not null;uniqueIndex:idx_round_records_round" json:"round"`
	Participants  int       `gorm:"not null" json:"participants"`
	Rejected      int       `gorm:"not null" json:"rejected"`
	TotalDataSize uint64    `gorm:"not null" json:"total_data_size"`
	Weighted      bool      `gorm:"not null" json:"weighted"`
	Contributors  string    `gorm:"type:text;not null" json:"-"`
	Layers        string    `gorm:"type:text;not null" json:"-"`
	DurationMs    int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt     time.Time `gorm:"not null;index:idx_round_records_created_at" json:"created_at"`
}

// TableName 表名
func (RoundRecord) TableName() string { return "round_records" }

// GenerationRecord 一代搜索结束时的摘要
type GenerationRecord struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Generation      uint64    `gorm:"not null;index:idx_generation_records_generation" json:"generation"`
	PopulationSize  int       `gorm:"not null" json:"population_size"`
	BestCandidateID string    `gorm:"size:64;not null" json:"best_candidate_id"`
	BestScore       float64   `gorm:"not null" json:"best_score"`
	BestAccuracy    float64   `gorm:"not null" json:"best_accuracy"`
	BestGenome      string    `gorm:"type:text;not null" json:"-"`
	DurationMs      int64     `gorm:"not null" json:"duration_ms"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

// TableName 表名
func (GenerationRecord) TableName() string { return "generation_records" }

// Genome 解析记录中的最优基因
func (r GenerationRecord) Genome() (search.Genome, error) {
	var g search.Genome
	if err := json.Unmarshal([]byte(r.BestGenome), &g); err != nil {
		return search.Genome{}, fmt.Errorf("decode genome: %w", err)
	}
	return g, nil
}

// QueryRecorder 记录查询耗时
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

// Store 历史记录存储
type Store struct {
	db       *gorm.DB
	logger   *zap.Logger
	recorder QueryRecorder
	name     string
}

// StoreOption Store 选项
type StoreOption func(*Store)

// WithQueryRecorder 注入查询耗时记录器
func WithQueryRecorder(name string, r QueryRecorder) StoreOption {
	return func(s *Store) {
		s.name = name
		s.recorder = r
	}
}

// NewStore 创建历史记录存储
func NewStore(db *gorm.DB, logger *zap.Logger, opts ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history_store")),
		name:   db.Dialector.Name(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AutoMigrate 按模型建表，仅用于测试与嵌入式 sqlite
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&RoundRecord{}, &GenerationRecord{})
}

// SaveRound 保存一次已发布的快照
func (s *Store) SaveRound(ctx context.Context, snap *federation.Snapshot, duration time.Duration) error {
	if snap == nil {
		return types.NewError(types.ErrInvalidRequest, "snapshot is nil")
	}

	contributors, err := json.Marshal(snap.Contributors)
	if err != nil {
		return fmt.Errorf("encode contributors: %w", err)
	}
	layers, err := json.Marshal(snap.Layers)
	if err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}

	rec := RoundRecord{
		SnapshotID:    snap.ID,
		Round:         snap.Round,
		Participants:  len(snap.Contributors),
		Rejected:      len(snap.Rejected),
		TotalDataSize: snap.TotalDataSize,
		Weighted:      snap.Weighted,
		Contributors:  string(contributors),
		Layers:        string(layers),
		DurationMs:    duration.Milliseconds(),
		CreatedAt:     snap.CreatedAt,
	}

	defer s.observe("insert_round", time.Now())
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Error("save round failed", zap.Uint64("round", snap.Round), zap.Error(err))
		return unavailable("save round", err)
	}
	return nil
}

// ListRounds 按轮次倒序分页列出历史
func (s *Store) ListRounds(ctx context.Context, limit, offset int) ([]RoundRecord, int64, error) {
	limit = normalizeLimit(limit)
	if offset < 0 {
		offset = 0
	}

	defer s.observe("list_rounds", time.Now())

	var total int64
	db := s.db.WithContext(ctx).Model(&RoundRecord{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, unavailable("count rounds", err)
	}

	var recs []RoundRecord
	err := s.db.WithContext(ctx).
		Omit("layers").
		Order("round DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, 0, unavailable("list rounds", err)
	}
	return recs, total, nil
}

// LatestSnapshot 还原最近一次保存的快照
func (s *Store) LatestSnapshot(ctx context.Context) (*federation.Snapshot, error) {
	defer s.observe("latest_round", time.Now())

	var rec RoundRecord
	err := s.db.WithContext(ctx).Order("round DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrSnapshotNotFound, "no snapshot recorded")
	}
	if err != nil {
		return nil, unavailable("load latest round", err)
	}
	return rec.Snapshot()
}

// Snapshot 由记录还原快照
func (r RoundRecord) Snapshot() (*federation.Snapshot, error) {
	snap := &federation.Snapshot{
		ID:            r.SnapshotID,
		Round:         r.Round,
		TotalDataSize: r.TotalDataSize,
		Weighted:      r.Weighted,
		CreatedAt:     r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.Contributors), &snap.Contributors); err != nil {
		return nil, fmt.Errorf("decode contributors: %w", err)
	}
	layers := make(map[string]*tensor.Tensor)
	if err := json.Unmarshal([]byte(r.Layers), &layers); err != nil {
		return nil, fmt.Errorf("decode layers: %w", err)
	}
	snap.Layers = layers
	return snap, nil
}

// SaveGeneration 保存一代搜索的摘要
func (s *Store) SaveGeneration(ctx context.Context, generation uint64, population int, best search.Candidate, duration time.Duration) error {
	genome, err := json.Marshal(best.Genome)
	if err != nil {
		return fmt.Errorf("encode genome: %w", err)
	}

	rec := GenerationRecord{
		Generation:      generation,
		PopulationSize:  population,
		BestCandidateID: best.ID,
		BestScore:       best.Score,
		BestAccuracy:    best.Accuracy,
		BestGenome:      string(genome),
		DurationMs:      duration.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}

	defer s.observe("insert_generation", time.Now())
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Error("save generation failed", zap.Uint64("generation", generation), zap.Error(err))
		return unavailable("save generation", err)
	}
	return nil
}

// ListGenerations 按代倒序列出搜索历史
func (s *Store) ListGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	defer s.observe("list_generations", time.Now())

	var recs []GenerationRecord
	err := s.db.WithContext(ctx).
		Order("generation DESC").
		Order("id DESC").
		Limit(normalizeLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, unavailable("list generations", err)
	}
	return recs, nil
}

// Ping 检查底层连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("get sql.DB", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) observe(op string, start time.Time) {
	if s.recorder != nil {
		s.recorder.RecordDBQuery(s.name, op, time.Since(start))
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func unavailable(op string, err error) error {
	return types.NewError(types.ErrStoreUnavailable, op+" failed").
		WithCause(err).
		WithRetryable(true)
}
