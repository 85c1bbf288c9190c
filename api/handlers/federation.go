package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BaSui01/modelmesh"
	"github.com/BaSui01/modelmesh/api"
	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/internal/ctxkeys"
	"github.com/BaSui01/modelmesh/internal/database"
	"github.com/BaSui01/modelmesh/types"
	"go.uber.org/zap"
)

// HistoryReader 轮次与代历史的只读视图，由 database.Store 实现
type HistoryReader interface {
	ListRounds(ctx context.Context, limit, offset int) ([]database.RoundRecord, int64, error)
	ListGenerations(ctx context.Context, limit int) ([]database.GenerationRecord, error)
}

// =============================================================================
// 🤝 联邦聚合 Handler
// =============================================================================

// FederationHandler 提交、轮次与快照端点
type FederationHandler struct {
	core    *modelmesh.Core
	history HistoryReader
	logger  *zap.Logger
}

// NewFederationHandler 创建联邦聚合处理器，history 可为 nil
func NewFederationHandler(core *modelmesh.Core, history HistoryReader, logger *zap.Logger) *FederationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FederationHandler{
		core:    core,
		history: history,
		logger:  logger.With(zap.String("component", "federation_handler")),
	}
}

// HandleSubmit 登记节点提交
// @Summary 提交本地权重
// @Tags federation
// @Accept json
// @Produce json
// @Param request body api.ContributionRequest true "本地更新"
// @Success 202 {object} Response{data=api.ContributionInfo} "已登记"
// @Failure 400 {object} Response "提交不合法"
// @Failure 403 {object} Response "节点 ID 与令牌不符"
// @Security BearerAuth
// @Router /api/v1/contributions [post]
func (h *FederationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ContributionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	nodeID := req.NodeID
	if authed, ok := ctxkeys.NodeID(r.Context()); ok {
		if nodeID != "" && nodeID != authed {
			WriteErrorMessage(w, http.StatusForbidden, types.ErrForbidden, "node_id does not match token subject", h.logger)
			return
		}
		nodeID = authed
	}

	c := &federation.Contribution{
		NodeID:   nodeID,
		Weights:  req.Weights,
		DataSize: req.DataSize,
		Accuracy: req.Accuracy,
	}
	if err := h.core.SubmitContribution(r.Context(), c); err != nil {
		HandleError(w, err, h.logger)
		return
	}

	stored, ok := h.core.Registry().Get(nodeID)
	if !ok {
		// 提交后立即被并发轮次吸收
		stored = c
	}
	WriteJSON(w, http.StatusAccepted, Response{
		Success:   true,
		Data:      api.NewContributionInfo(stored, true),
		Timestamp: time.Now(),
	})
}

// HandleListContributions 列出注册表中的提交摘要
// @Summary 列出待聚合提交
// @Tags federation
// @Produce json
// @Success 200 {object} Response{data=[]api.ContributionInfo}
// @Security ApiKeyAuth
// @Router /api/v1/contributions [get]
func (h *FederationHandler) HandleListContributions(w http.ResponseWriter, r *http.Request) {
	reg := h.core.Registry()
	now := time.Now()
	all := reg.All()
	out := make([]api.ContributionInfo, 0, len(all))
	for _, c := range all {
		out = append(out, api.NewContributionInfo(c, reg.IsActive(c, now)))
	}
	WriteSuccess(w, out)
}

// HandleCloseRound 立即关闭当前轮次
// @Summary 关闭轮次
// @Tags federation
// @Produce json
// @Success 200 {object} Response{data=api.RoundSummary}
// @Failure 409 {object} Response "法定人数不足或轮次中止"
// @Security ApiKeyAuth
// @Router /api/v1/rounds [post]
func (h *FederationHandler) HandleCloseRound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, err := h.core.CloseRound(r.Context())
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	summary := api.NewRoundSummary(snap)
	summary.DurationMs = time.Since(start).Milliseconds()
	WriteSuccess(w, summary)
}

// HandleRoundHistory 分页查询持久化的轮次历史
// @Summary 轮次历史
// @Tags federation
// @Produce json
// @Param limit query int false "每页条数" default(50)
// @Param offset query int false "偏移"
// @Success 200 {object} Response{data=api.RoundHistory}
// @Failure 503 {object} Response "未配置数据库"
// @Security ApiKeyAuth
// @Router /api/v1/rounds [get]
func (h *FederationHandler) HandleRoundHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "round history requires a database"), h.logger)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, total, err := h.history.ListRounds(r.Context(), limit, offset)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.RoundHistory{
		Rounds: records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleSnapshot 返回当前全局快照（含层数据）
// @Summary 当前快照
// @Tags federation
// @Produce json
// @Success 200 {object} Response{data=federation.Snapshot}
// @Failure 404 {object} Response "尚无快照"
// @Router /api/v1/snapshot [get]
func (h *FederationHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.core.Snapshot()
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, snap)
}
