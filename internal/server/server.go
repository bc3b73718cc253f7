package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"product_recommend/internal/catalog"
	"product_recommend/internal/history"
	"product_recommend/internal/logger"
	"product_recommend/internal/metrics"
	"product_recommend/internal/scorer"
	"product_recommend/internal/task"
	"product_recommend/internal/user"
	"product_recommend/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit 每个用户（未鉴权时按 IP）的令牌桶参数，RequestsPerSecond <= 0 表示不限流
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Options 构造 Server 所需的组件
type Options struct {
	Users     user.Provider
	Engine    *workflow.Engine
	History   history.Store
	Catalog   *catalog.Catalog
	Scorer    *scorer.Scorer
	Tasks     *task.Manager
	Metrics   *metrics.Collector
	RateLimit RateLimit
}

// Server 代表 HTTP API 服务器
type Server struct {
	router       *gin.Engine
	userProvider user.Provider
	engine       *workflow.Engine
	historyStore history.Store
	catalog      *catalog.Catalog
	scorer       *scorer.Scorer
	tasks        *task.Manager
	metrics      *metrics.Collector
	limiter      *rateLimiter

	httpServer *http.Server
	background sync.WaitGroup
}

// NewServer 创建新的 HTTP 服务器
func NewServer(opts Options) *Server {
	if opts.Scorer == nil {
		opts.Scorer = scorer.Default()
	}
	if opts.Tasks == nil {
		opts.Tasks = task.NewManager()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}

	s := &Server{
		router:       gin.New(),
		userProvider: opts.Users,
		engine:       opts.Engine,
		historyStore: opts.History,
		catalog:      opts.Catalog,
		scorer:       opts.Scorer,
		tasks:        opts.Tasks,
		metrics:      opts.Metrics,
		limiter:      newRateLimiter(opts.RateLimit),
	}
	s.router.Use(gin.Recovery(), s.loggingMiddleware(), s.metrics.Middleware(), s.corsMiddleware())
	s.setupRoutes()
	return s
}

// Handler 暴露路由，便于测试直接调用 ServeHTTP
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Wait()
	return err
}

// Wait 等待后台写历史、重新加载目录等任务结束
func (s *Server) Wait() {
	s.background.Wait()
	s.tasks.Wait()
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")

	// 中间件：Token 鉴权，之后按用户限流
	v1.Use(s.authMiddleware(), s.rateLimitMiddleware())

	// 推荐接口 - 使用路径参数传递 scene
	v1.POST("/recommend/:scene", s.handleRecommend)

	v1.GET("/products/trending", s.handleTrending)
	v1.GET("/products/:id/related", s.handleRelated)
	v1.GET("/products/:id/bought-together", s.handleBoughtTogether)
	v1.GET("/categories/:category/popular", s.handlePopular)

	admin := v1.Group("/admin", s.requireRole("admin"))
	admin.POST("/catalog/reload", s.handleCatalogReload)
	admin.GET("/tasks/:id", s.handleGetTask)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"products": s.catalog.Len(),
		"scenes":   s.engine.Scenes(),
	})
}

// goBackground 启动可等待的后台任务
func (s *Server) goBackground(name string, fn func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.L().Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		fn()
	}()
}
