package handlers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/modelmesh"
	"github.com/BaSui01/modelmesh/api"
	"github.com/BaSui01/modelmesh/router"
	"github.com/BaSui01/modelmesh/types"
	"go.uber.org/zap"
)

// maxQueryLength 路由查询的最大长度
const maxQueryLength = 4096

// =============================================================================
// 🧭 专家路由 Handler
// =============================================================================

// RoutingHandler 路由与专家池端点
type RoutingHandler struct {
	core   *modelmesh.Core
	logger *zap.Logger
}

// NewRoutingHandler 创建路由处理器
func NewRoutingHandler(core *modelmesh.Core, logger *zap.Logger) *RoutingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingHandler{
		core:   core,
		logger: logger.With(zap.String("component", "routing_handler")),
	}
}

// HandleRoute 为查询选择专家。请求未携带专家列表时使用专家池。
// @Summary 路由查询
// @Tags routing
// @Accept json
// @Produce json
// @Param request body api.RouteRequest true "查询"
// @Success 200 {object} Response{data=router.Decision}
// @Failure 400 {object} Response "查询为空或过长"
// @Security ApiKeyAuth
// @Router /api/v1/route [post]
func (h *RoutingHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.RouteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "query is required"), h.logger)
		return
	}
	if len(req.Query) > maxQueryLength {
		WriteError(w, types.Errorf(types.ErrInvalidRequest, "query exceeds %d bytes", maxQueryLength), h.logger)
		return
	}

	var d router.Decision
	if len(req.Experts) > 0 {
		d = h.core.Route(r.Context(), req.Query, req.Experts)
	} else {
		d = h.core.RouteWithPool(r.Context(), req.Query)
	}
	WriteSuccess(w, d)
}

// HandleListExperts 列出专家池
// @Summary 专家列表
// @Tags routing
// @Produce json
// @Success 200 {object} Response{data=[]router.Expert}
// @Router /api/v1/experts [get]
func (h *RoutingHandler) HandleListExperts(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.core.Pool().Snapshot())
}

// HandleGetExpert 查询单个专家
// @Summary 专家详情
// @Tags routing
// @Produce json
// @Param id path string true "专家 ID"
// @Success 200 {object} Response{data=router.Expert}
// @Failure 404 {object} Response "专家不存在"
// @Router /api/v1/experts/{id} [get]
func (h *RoutingHandler) HandleGetExpert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := h.core.Pool().Get(id)
	if !ok {
		WriteError(w, types.Errorf(types.ErrExpertNotFound, "expert %s not found", id), h.logger)
		return
	}
	WriteSuccess(w, e)
}

// HandlePutExpert 注册或覆盖专家
// @Summary 注册专家
// @Tags routing
// @Accept json
// @Produce json
// @Param id path string true "专家 ID"
// @Param request body api.ExpertRequest true "专家属性"
// @Success 200 {object} Response{data=router.Expert}
// @Security ApiKeyAuth
// @Router /api/v1/experts/{id} [put]
func (h *RoutingHandler) HandlePutExpert(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ExpertRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	id := r.PathValue("id")
	if err := h.core.Pool().Register(req.Expert(id)); err != nil {
		HandleError(w, err, h.logger)
		return
	}
	e, _ := h.core.Pool().Get(id)
	WriteSuccess(w, e)
}

// HandleDeleteExpert 移除专家
// @Summary 移除专家
// @Tags routing
// @Param id path string true "专家 ID"
// @Success 204 "已移除"
// @Failure 404 {object} Response "专家不存在"
// @Security ApiKeyAuth
// @Router /api/v1/experts/{id} [delete]
func (h *RoutingHandler) HandleDeleteExpert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.core.Pool().Remove(id) {
		WriteError(w, types.Errorf(types.ErrExpertNotFound, "expert %s not found", id), h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransition 按状态机切换专家状态
// @Summary 切换专家状态
// @Tags routing
// @Accept json
// @Produce json
// @Param id path string true "专家 ID"
// @Param request body api.StatusRequest true "目标状态"
// @Success 200 {object} Response{data=router.Expert}
// @Failure 409 {object} Response "非法状态迁移"
// @Security ApiKeyAuth
// @Router /api/v1/experts/{id}/status [post]
func (h *RoutingHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.StatusRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if !req.Status.Valid() {
		WriteError(w, types.Errorf(types.ErrInvalidRequest, "unknown status %q", req.Status), h.logger)
		return
	}
	e, err := h.core.TransitionExpert(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, e)
}

// HandleTelemetry 应用一次遥测更新
// @Summary 专家遥测
// @Tags routing
// @Accept json
// @Produce json
// @Param id path string true "专家 ID"
// @Param request body router.Telemetry true "遥测字段"
// @Success 200 {object} Response{data=router.Expert}
// @Security ApiKeyAuth
// @Router /api/v1/experts/{id}/telemetry [post]
func (h *RoutingHandler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var t router.Telemetry
	if err := DecodeJSONBody(w, r, &t, h.logger); err != nil {
		return
	}
	e, err := h.core.Pool().UpdateTelemetry(r.PathValue("id"), t)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, e)
}
