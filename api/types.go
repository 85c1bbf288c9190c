package api

import (
	"time"

	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/internal/database"
	"github.com/BaSui01/modelmesh/router"
	"github.com/BaSui01/modelmesh/search"
	"github.com/BaSui01/modelmesh/tensor"
)

// =============================================================================
// 联邦聚合类型
// =============================================================================

// ContributionRequest 节点提交本地权重的请求。
// @Description 节点本地更新
type ContributionRequest struct {
	// 节点 ID；通过 NodeAuth 认证时可省略，以令牌主体为准
	NodeID string `json:"node_id,omitempty" example:"node-a"`
	// 层名到二维张量的映射
	Weights map[string]*tensor.Tensor `json:"weights" binding:"required"`
	// 本地训练样本数（FedAvg 权重）
	DataSize uint64 `json:"data_size" example:"1000"`
	// 本地验证精度（0-1）
	Accuracy float64 `json:"accuracy" example:"0.91"`
}

// ContributionInfo 注册表中一份提交的摘要，不含权重数据。
// @Description 提交摘要
type ContributionInfo struct {
	NodeID      string            `json:"node_id"`
	DataSize    uint64            `json:"data_size"`
	Accuracy    float64           `json:"accuracy"`
	Layers      map[string]string `json:"layers"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Active      bool              `json:"active"`
}

// NewContributionInfo 从提交构造摘要
func NewContributionInfo(c *federation.Contribution, active bool) ContributionInfo {
	layers := make(map[string]string, len(c.Weights))
	for name, shape := range c.Layout() {
		layers[name] = shape.String()
	}
	return ContributionInfo{
		NodeID:      c.NodeID,
		DataSize:    c.DataSize,
		Accuracy:    c.Accuracy,
		Layers:      layers,
		SubmittedAt: c.SubmittedAt,
		Active:      active,
	}
}

// RoundSummary 一轮聚合结果的摘要，不含层数据。
// @Description 轮次摘要
type RoundSummary struct {
	SnapshotID    string                         `json:"snapshot_id"`
	Round         uint64                         `json:"round"`
	Contributors  []federation.ContributorWeight `json:"contributors"`
	Rejected      []federation.Rejection         `json:"rejected,omitempty"`
	TotalDataSize uint64                         `json:"total_data_size"`
	Weighted      bool                           `json:"weighted"`
	DurationMs    int64                          `json:"duration_ms,omitempty"`
	CreatedAt     time.Time                      `json:"created_at"`
}

// NewRoundSummary 从快照构造摘要
func NewRoundSummary(s *federation.Snapshot) RoundSummary {
	return RoundSummary{
		SnapshotID:    s.ID,
		Round:         s.Round,
		Contributors:  s.Contributors,
		Rejected:      s.Rejected,
		TotalDataSize: s.TotalDataSize,
		Weighted:      s.Weighted,
		CreatedAt:     s.CreatedAt,
	}
}

// RoundHistory 分页的轮次历史。
// @Description 轮次历史
type RoundHistory struct {
	Rounds []database.RoundRecord `json:"rounds"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// =============================================================================
// 架构搜索类型
// =============================================================================

// EvolveRequest 推进若干代。
// @Description 演化请求
type EvolveRequest struct {
	// 连续演化的代数，默认 1，最多 100
	Generations int `json:"generations,omitempty" example:"1"`
}

// EvolveResponse 演化结果。
// @Description 演化结果
type EvolveResponse struct {
	Generation     uint64           `json:"generation"`
	PopulationSize int              `json:"population_size"`
	Best           search.Candidate `json:"best"`
}

// GenerationHistory 最近若干代的记录。
// @Description 代历史
type GenerationHistory struct {
	Generations []database.GenerationRecord `json:"generations"`
	Limit       int                         `json:"limit"`
}

// PopulationResponse 当前种群。
// @Description 当前种群
type PopulationResponse struct {
	Generation uint64             `json:"generation"`
	Candidates []search.Candidate `json:"candidates"`
}

// =============================================================================
// 专家路由类型
// =============================================================================

// RouteRequest 路由请求；Experts 为空时使用专家池。
// @Description 路由请求
type RouteRequest struct {
	Query   string          `json:"query" binding:"required" example:"fix this sql bug"`
	Experts []router.Expert `json:"experts,omitempty"`
}

// ExpertRequest 注册或覆盖一个专家。
// @Description 专家注册
type ExpertRequest struct {
	Domain         router.Domain `json:"domain" example:"code"`
	Accuracy       float64       `json:"accuracy" example:"0.9"`
	Load           float64       `json:"load" example:"0.1"`
	Status         router.Status `json:"status,omitempty" example:"active"`
	Specialization string        `json:"specialization,omitempty"`
	Expertise      float64       `json:"expertise,omitempty"`
	ResponseTimeMs float64       `json:"response_time_ms,omitempty"`
}

// Expert 转换为带 ID 的专家
func (r ExpertRequest) Expert(id string) router.Expert {
	return router.Expert{
		ID:             id,
		Domain:         r.Domain,
		Accuracy:       r.Accuracy,
		Load:           r.Load,
		Status:         r.Status,
		Specialization: r.Specialization,
		Expertise:      r.Expertise,
		ResponseTimeMs: r.ResponseTimeMs,
	}
}

// StatusRequest 专家状态迁移请求。
// @Description 状态迁移
type StatusRequest struct {
	Status router.Status `json:"status" binding:"required" example:"training"`
}
