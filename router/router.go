package router

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Config 路由配置
type Config struct {
	// ScoreThreshold 入选阈值（严格大于）
	ScoreThreshold float64
	// MaxExperts 最多选择的专家数
	MaxExperts int
	// DefaultExpertID 无专家达标时的兜底专家
	DefaultExpertID string
	// FallbackConfidence 兜底置信度，上限 0.5
	FallbackConfidence float64
	// FuzzyDistance 关键词模糊匹配的最大编辑距离，0 表示只做精确匹配
	FuzzyDistance int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:     0.1,
		MaxExperts:         3,
		DefaultExpertID:    "general",
		FallbackConfidence: 0.3,
		FuzzyDistance:      0,
	}
}

const (
	maxFallbackConfidence = 0.5
	maxConfidence         = 0.99
)

// Decision 一次路由决策
type Decision struct {
	SelectedExperts []string  `json:"selected_experts"`
	Weights         []float64 `json:"weights"`
	Scores          []float64 `json:"scores"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning"`
	EstimatedTimeMs float64   `json:"estimated_time_ms"`
	Fallback        bool      `json:"fallback"`
}

// Option 路由器选项
type Option func(*Router)

// WithKeywordTable 替换关键词表
func WithKeywordTable(t KeywordTable) Option {
	return func(r *Router) {
		if len(t) > 0 {
			r.keywords = t
		}
	}
}

// Router 混合专家路由器。Route 无副作用，可并发调用。
type Router struct {
	cfg      Config
	keywords KeywordTable
	logger   *zap.Logger
}

// New 创建路由器
func New(cfg Config, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxExperts < 1 {
		cfg.MaxExperts = def.MaxExperts
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.DefaultExpertID == "" {
		cfg.DefaultExpertID = def.DefaultExpertID
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = def.FallbackConfidence
	}
	if cfg.FallbackConfidence > maxFallbackConfidence {
		cfg.FallbackConfidence = maxFallbackConfidence
	}
	if cfg.FuzzyDistance < 0 {
		cfg.FuzzyDistance = 0
	}

	r := &Router{
		cfg:      cfg,
		keywords: DefaultKeywords,
		logger:   logger.With(zap.String("component", "expert_router")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config 返回生效的配置
func (r *Router) Config() Config {
	return r.cfg
}

// Score 计算单个专家对查询的最终得分：
// domainScore * accuracy * expertise * (1 - load) * statusFactor
func (r *Router) Score(tokens []string, e Expert) float64 {
	domain := r.keywords.DomainScore(tokens, e.Domain, r.cfg.FuzzyDistance)
	if domain == 0 {
		return 0
	}
	load := math.Max(0, math.Min(1, e.Load))
	return domain * e.Accuracy * e.expertise() * (1 - load) * e.statusFactor()
}

type scored struct {
	expert Expert
	score  float64
}

// Route 为查询选择加权的专家子集；不修改 experts。
// 无专家得分超过阈值时返回单个兜底专家，Fallback 为 true。
func (r *Router) Route(query string, experts []Expert) Decision {
	tokens := Tokenize(query)

	candidates := make([]scored, 0, len(experts))
	for _, e := range experts {
		s := r.Score(tokens, e)
		if s > r.cfg.ScoreThreshold {
			candidates = append(candidates, scored{expert: e, score: s})
		}
	}

	if len(candidates) == 0 {
		return r.fallback(experts)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].expert.ID < candidates[j].expert.ID
	})
	if len(candidates) > r.cfg.MaxExperts {
		candidates = candidates[:r.cfg.MaxExperts]
	}

	total := 0.0
	for _, c := range candidates {
		total += c.score
	}

	d := Decision{
		SelectedExperts: make([]string, len(candidates)),
		Weights:         make([]float64, len(candidates)),
		Scores:          make([]float64, len(candidates)),
	}
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		w := c.score / total
		d.SelectedExperts[i] = c.expert.ID
		d.Weights[i] = w
		d.Scores[i] = c.score
		d.EstimatedTimeMs += w * c.expert.ResponseTimeMs
		d.Confidence += w * c.score
		parts[i] = fmt.Sprintf("%s (%s, %.1f%%)", c.expert.ID, c.expert.Domain, w*100)
	}
	d.Confidence = math.Min(d.Confidence, maxConfidence)
	d.Reasoning = "Routed by domain match to " + strings.Join(parts, ", ")

	r.logger.Debug("query routed",
		zap.Strings("experts", d.SelectedExperts),
		zap.Float64("confidence", d.Confidence))
	return d
}

func (r *Router) fallback(experts []Expert) Decision {
	d := Decision{
		SelectedExperts: []string{r.cfg.DefaultExpertID},
		Weights:         []float64{1},
		Scores:          []float64{0},
		Confidence:      r.cfg.FallbackConfidence,
		Fallback:        true,
		Reasoning: fmt.Sprintf("No expert scored above %.2f; falling back to default expert %s",
			r.cfg.ScoreThreshold, r.cfg.DefaultExpertID),
	}
	for _, e := range experts {
		if e.ID == r.cfg.DefaultExpertID {
			d.EstimatedTimeMs = e.ResponseTimeMs
			break
		}
	}

	r.logger.Debug("no eligible expert, using fallback",
		zap.String("expert", r.cfg.DefaultExpertID),
		zap.Int("pool_size", len(experts)))
	return d
}
