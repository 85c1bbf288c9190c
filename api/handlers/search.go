package handlers

import (
	"net/http"

	"github.com/BaSui01/modelmesh"
	"github.com/BaSui01/modelmesh/api"
	"github.com/BaSui01/modelmesh/types"
	"go.uber.org/zap"
)

// maxGenerationsPerRequest 单次请求最多推进的代数
const maxGenerationsPerRequest = 100

// =============================================================================
// 🧬 架构搜索 Handler
// =============================================================================

// SearchHandler 演化与候选查询端点
type SearchHandler struct {
	core    *modelmesh.Core
	history HistoryReader
	logger  *zap.Logger
}

// NewSearchHandler 创建架构搜索处理器，history 可为 nil
func NewSearchHandler(core *modelmesh.Core, history HistoryReader, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		core:    core,
		history: history,
		logger:  logger.With(zap.String("component", "search_handler")),
	}
}

// HandleEvolve 推进若干代；请求体可省略
// @Summary 演化
// @Tags search
// @Accept json
// @Produce json
// @Param request body api.EvolveRequest false "代数"
// @Success 200 {object} Response{data=api.EvolveResponse}
// @Security ApiKeyAuth
// @Router /api/v1/search/evolve [post]
func (h *SearchHandler) HandleEvolve(w http.ResponseWriter, r *http.Request) {
	req := api.EvolveRequest{Generations: 1}
	if r.ContentLength != 0 {
		if !ValidateContentType(w, r, h.logger) {
			return
		}
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}
	if req.Generations == 0 {
		req.Generations = 1
	}
	if req.Generations < 0 || req.Generations > maxGenerationsPerRequest {
		WriteError(w, types.Errorf(types.ErrInvalidRequest, "generations must be in [1, %d]", maxGenerationsPerRequest), h.logger)
		return
	}

	var size int
	for i := 0; i < req.Generations; i++ {
		pop, err := h.core.Evolve(r.Context())
		if err != nil {
			HandleError(w, err, h.logger)
			return
		}
		size = len(pop)
	}

	best, _ := h.core.Best()
	WriteSuccess(w, api.EvolveResponse{
		Generation:     h.core.Engine().Generation(),
		PopulationSize: size,
		Best:           best,
	})
}

// HandleBest 当前最优候选
// @Summary 最优候选
// @Tags search
// @Produce json
// @Success 200 {object} Response{data=search.Candidate}
// @Failure 404 {object} Response "尚未演化"
// @Router /api/v1/search/best [get]
func (h *SearchHandler) HandleBest(w http.ResponseWriter, r *http.Request) {
	best, ok := h.core.Best()
	if !ok {
		WriteError(w, types.NewError(types.ErrSnapshotNotFound, "no generation has been evolved yet").
			WithHTTPStatus(http.StatusNotFound), h.logger)
		return
	}
	WriteSuccess(w, best)
}

// HandlePopulation 当前种群
// @Summary 当前种群
// @Tags search
// @Produce json
// @Success 200 {object} Response{data=api.PopulationResponse}
// @Router /api/v1/search/population [get]
func (h *SearchHandler) HandlePopulation(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, api.PopulationResponse{
		Generation: h.core.Engine().Generation(),
		Candidates: h.core.Engine().Population(),
	})
}

// HandleHistory 最近若干代的持久化记录
// @Summary 代历史
// @Tags search
// @Produce json
// @Param limit query int false "条数" default(50)
// @Success 200 {object} Response{data=api.GenerationHistory}
// @Failure 503 {object} Response "未配置数据库"
// @Security ApiKeyAuth
// @Router /api/v1/search/history [get]
func (h *SearchHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "generation history requires a database"), h.logger)
		return
	}
	limit := queryInt(r, "limit", 50)
	records, err := h.history.ListGenerations(r.Context(), limit)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.GenerationHistory{Generations: records, Limit: limit})
}
