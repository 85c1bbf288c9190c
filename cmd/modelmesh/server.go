package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/modelmesh"
	"github.com/BaSui01/modelmesh/api/handlers"
	"github.com/BaSui01/modelmesh/config"
	"github.com/BaSui01/modelmesh/internal/cache"
	"github.com/BaSui01/modelmesh/internal/database"
	"github.com/BaSui01/modelmesh/internal/metrics"
	"github.com/BaSui01/modelmesh/internal/server"
	"github.com/BaSui01/modelmesh/internal/telemetry"
)

// =============================================================================
// 🖥️ 服务器
// =============================================================================

// Server 组装 Core、可选的 Redis 与数据库、HTTP 路由、指标端点与周期任务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	collector *metrics.Collector
	providers *telemetry.Providers
	cache     *cache.Manager
	pool      *database.PoolManager
	store     *database.Store
	core      *modelmesh.Core
	health    *handlers.HealthHandler
	scheduler *Scheduler

	httpManager    *server.Manager
	metricsManager *server.Manager

	errCh  chan error
	cancel context.CancelFunc
}

// NewServer 创建服务器，Start 之前不建立任何外部连接
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Errors 返回 API 或指标服务器的异步错误
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Start 连接外部依赖、恢复最近快照并启动所有服务（非阻塞）
func (s *Server) Start(ctx context.Context) (err error) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer func() {
		if err != nil {
			_ = s.Shutdown(context.Background())
		}
	}()

	if s.collector == nil {
		s.collector = metrics.NewCollector("modelmesh", s.logger)
	}

	s.providers, err = telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err = s.initCache(); err != nil {
		return err
	}
	if err = s.initDatabase(); err != nil {
		return err
	}

	s.initCore()
	if restored, rerr := s.core.Restore(ctx); rerr != nil {
		s.logger.Warn("Snapshot restore failed, starting from an empty mesh", zap.Error(rerr))
	} else if restored {
		s.logger.Info("Resumed from stored snapshot")
	}
	s.initHealth()

	s.httpManager = server.NewManager("api", s.buildHandler(ctx),
		server.FromServerConfig(s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)
	if err = s.httpManager.Start(); err != nil {
		return err
	}

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		s.metricsManager = server.NewManager("metrics", mux,
			server.FromServerConfig(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
		if err = s.metricsManager.Start(); err != nil {
			return err
		}
	}

	s.scheduler = NewScheduler(s.core, s.cfg, s.logger)
	s.scheduler.Start(ctx)

	go s.forwardErrors(ctx)
	return nil
}

// initCache Redis 启用时连接并作为快照发布器
func (s *Server) initCache() error {
	if !s.cfg.Redis.Enabled {
		return nil
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = s.cfg.Redis.Addr
	cacheCfg.Password = s.cfg.Redis.Password
	cacheCfg.DB = s.cfg.Redis.DB
	cacheCfg.TLS = s.cfg.Redis.TLS
	if s.cfg.Redis.PoolSize > 0 {
		cacheCfg.PoolSize = s.cfg.Redis.PoolSize
	}
	if s.cfg.Redis.MinIdleConns > 0 {
		cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns
	}
	if s.cfg.Redis.SnapshotTTL > 0 {
		cacheCfg.DefaultTTL = s.cfg.Redis.SnapshotTTL
	}

	m, err := cache.NewManager(cacheCfg, s.logger, cache.WithHitRecorder(s.collector))
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	s.cache = m
	return nil
}

// initDatabase 配置了驱动时打开连接池与历史存储
func (s *Server) initDatabase() error {
	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	if db == nil {
		s.logger.Info("No database configured, round and generation history disabled")
		return nil
	}

	s.pool, err = database.NewPoolManager(db, database.PoolConfigFrom(s.cfg.Database), s.logger,
		database.WithStatsReporter(s.cfg.Database.Driver, s.collector))
	if err != nil {
		return err
	}
	s.store, err = database.NewStore(s.pool.DB(), s.logger,
		database.WithQueryRecorder(s.cfg.Database.Driver, s.collector))
	return err
}

// initCore 构造 Core，仅注入已启用的可选依赖
func (s *Server) initCore() {
	opts := []modelmesh.Option{modelmesh.WithMetrics(s.collector)}
	if s.cache != nil {
		opts = append(opts, modelmesh.WithPublisher(s.cache))
	}
	if s.store != nil {
		opts = append(opts, modelmesh.WithStore(s.store))
	}
	s.core = modelmesh.New(*s.cfg, s.logger, opts...)
}

func (s *Server) initHealth() {
	s.health = handlers.NewHealthHandler(s.logger, handlers.WithMeshReporter(s.core))
	if s.cache != nil {
		s.health.RegisterOptionalCheck(handlers.NewPingCheck("redis", s.cache.Ping))
	}
	if s.store != nil {
		s.health.RegisterCheck(handlers.NewPingCheck("database", s.store.Ping))
	}
}

// =============================================================================
// 🛣️ 路由
// =============================================================================

// buildHandler 注册全部路由并套上中间件链
func (s *Server) buildHandler(ctx context.Context) http.Handler {
	var history handlers.HistoryReader
	if s.store != nil {
		history = s.store
	}

	federationHandler := handlers.NewFederationHandler(s.core, history, s.logger)
	searchHandler := handlers.NewSearchHandler(s.core, history, s.logger)
	routingHandler := handlers.NewRoutingHandler(s.core, s.logger)
	eventsHandler := handlers.NewEventsHandler(s.core.Events(), originHosts(s.cfg.Server.CORSAllowedOrigins), s.logger)
	nodeAuth := NodeAuth(s.cfg.JWT, s.logger)

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /healthz", s.health.HandleHealthz)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /readyz", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))

	// 联邦聚合
	mux.Handle("POST /api/v1/contributions", nodeAuth(http.HandlerFunc(federationHandler.HandleSubmit)))
	mux.HandleFunc("GET /api/v1/contributions", federationHandler.HandleListContributions)
	mux.HandleFunc("POST /api/v1/rounds", federationHandler.HandleCloseRound)
	mux.HandleFunc("GET /api/v1/rounds", federationHandler.HandleRoundHistory)
	mux.HandleFunc("GET /api/v1/snapshot", federationHandler.HandleSnapshot)

	// 架构搜索
	mux.HandleFunc("POST /api/v1/search/evolve", searchHandler.HandleEvolve)
	mux.HandleFunc("GET /api/v1/search/best", searchHandler.HandleBest)
	mux.HandleFunc("GET /api/v1/search/population", searchHandler.HandlePopulation)
	mux.HandleFunc("GET /api/v1/search/history", searchHandler.HandleHistory)

	// 专家路由
	mux.HandleFunc("POST /api/v1/route", routingHandler.HandleRoute)
	mux.HandleFunc("GET /api/v1/experts", routingHandler.HandleListExperts)
	mux.HandleFunc("GET /api/v1/experts/{id}", routingHandler.HandleGetExpert)
	mux.HandleFunc("PUT /api/v1/experts/{id}", routingHandler.HandlePutExpert)
	mux.HandleFunc("DELETE /api/v1/experts/{id}", routingHandler.HandleDeleteExpert)
	mux.HandleFunc("POST /api/v1/experts/{id}/status", routingHandler.HandleTransition)
	mux.HandleFunc("POST /api/v1/experts/{id}/telemetry", routingHandler.HandleTelemetry)

	// 事件流
	mux.HandleFunc("GET /api/v1/events", eventsHandler.HandleEvents)

	skip := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	if s.cfg.JWT.Enabled() {
		// 节点提交由 JWT 认证
		skip = append(skip, "POST /api/v1/contributions")
	}

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger))
	}
	middlewares = append(middlewares,
		APIKeyAuth(s.cfg.Server.APIKeys, skip, false, s.logger),
		MaxBody(s.cfg.Server.MaxBodyBytes),
	)

	return Chain(mux, middlewares...)
}

// originHosts 将 CORS 来源转换为 WebSocket 来源匹配模式（host[:port]）
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			hosts = append(hosts, o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// =============================================================================
// 🛑 关闭
// =============================================================================

func (s *Server) forwardErrors(ctx context.Context) {
	var metricsErrs <-chan error
	if s.metricsManager != nil {
		metricsErrs = s.metricsManager.Errors()
	}
	select {
	case err := <-s.httpManager.Errors():
		s.errCh <- fmt.Errorf("api server: %w", err)
	case err := <-metricsErrs:
		s.errCh <- fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
}

// Shutdown 停止周期任务、断开事件订阅并关闭所有服务与连接
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Wait()
	}
	if s.core != nil {
		s.core.Close()
	}

	var errs []error
	if s.httpManager != nil {
		errs = append(errs, s.httpManager.Shutdown(ctx))
	}
	if s.metricsManager != nil {
		errs = append(errs, s.metricsManager.Shutdown(ctx))
	}
	errs = append(errs, s.closeResources(ctx))
	return errors.Join(errs...)
}

func (s *Server) closeResources(ctx context.Context) error {
	var errs []error
	if s.providers != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, s.providers.Shutdown(flushCtx))
		cancel()
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
	}
	return errors.Join(errs...)
}
