package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/modelmesh"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultReadyTimeout 就绪检查的整体超时
const defaultReadyTimeout = 5 * time.Second

// 服务状态取值
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// MeshReporter 提供协调核心的运行概况（*modelmesh.Core 实现）
type MeshReporter interface {
	Status() modelmesh.Status
}

// HealthCheck 依赖检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler 存活、就绪与版本端点。
// 关键依赖失败时就绪探针返回 503；可选依赖失败只把状态降级为 degraded。
type HealthHandler struct {
	logger   *zap.Logger
	reporter MeshReporter
	timeout  time.Duration
	started  time.Time

	mu       sync.RWMutex
	checks   []HealthCheck
	optional map[string]bool
}

// HealthOption 配置 HealthHandler
type HealthOption func(*HealthHandler)

// WithMeshReporter 在健康响应中附带轮次、代数等运行概况
func WithMeshReporter(r MeshReporter) HealthOption {
	return func(h *HealthHandler) { h.reporter = r }
}

// WithReadyTimeout 覆盖就绪检查超时
func WithReadyTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Mesh      *modelmesh.Status      `json:"mesh,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // "pass", "fail"
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger, opts ...HealthOption) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthHandler{
		logger:   logger.With(zap.String("component", "health")),
		timeout:  defaultReadyTimeout,
		started:  time.Now(),
		optional: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterCheck 注册关键依赖检查，失败即未就绪
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.register(check, false)
}

// RegisterOptionalCheck 注册可选依赖检查（如快照发布缓存），失败只降级
func (h *HealthHandler) RegisterOptionalCheck(check HealthCheck) {
	h.register(check, true)
}

func (h *HealthHandler) register(check HealthCheck, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
	h.optional[check.Name()] = optional
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求：进程存活即 200，附带运行概况
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.baseResponse(StatusHealthy))
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// HandleReady 处理 /ready 或 /readyz 请求：并发执行全部依赖检查
// @Summary 准备情况检查
// @Tags 健康
// @Produce json
// @Success 200 {object} ServiceHealthResponse "服务已准备就绪（可能为 degraded）"
// @Failure 503 {object} ServiceHealthResponse "关键依赖不可用"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	optional := make(map[string]bool, len(h.optional))
	for k, v := range h.optional {
		optional[k] = v
	}
	h.mu.RUnlock()

	results := h.runChecks(ctx, checks, optional)

	resp := h.baseResponse(StatusHealthy)
	resp.Checks = results

	code := http.StatusOK
	for _, res := range results {
		if res.Status == "pass" {
			continue
		}
		if res.Optional {
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
			continue
		}
		resp.Status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, resp)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

func (h *HealthHandler) baseResponse(status string) ServiceHealthResponse {
	resp := ServiceHealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	}
	if h.reporter != nil {
		st := h.reporter.Status()
		resp.Mesh = &st
	}
	return resp
}

// runChecks 每个检查一个 goroutine，互不取消
func (h *HealthHandler) runChecks(ctx context.Context, checks []HealthCheck, optional map[string]bool) map[string]CheckResult {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]CheckResult, len(checks))
	)
	for _, check := range checks {
		g.Go(func() error {
			start := time.Now()
			err := check.Check(ctx)
			latency := time.Since(start)

			res := CheckResult{
				Status:   "pass",
				Optional: optional[check.Name()],
				Latency:  latency.String(),
			}
			if err != nil {
				res.Status = "fail"
				res.Message = err.Error()
				h.logger.Warn("health check failed",
					zap.String("check", check.Name()),
					zap.Bool("optional", res.Optional),
					zap.Duration("latency", latency),
					zap.Error(err))
			}

			mu.Lock()
			results[check.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 以 ping 函数实现的依赖检查（数据库、Redis）
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建 ping 健康检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }
