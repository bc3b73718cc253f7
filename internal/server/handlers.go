package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"product_recommend/internal/catalog"
	"product_recommend/internal/logger"
	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
	"product_recommend/internal/task"
	"product_recommend/internal/workflow"

	"github.com/gin-gonic/gin"
)

// RecommendRequest POST /api/v1/recommend/:scene 的请求体，所有字段可选
type RecommendRequest struct {
	BaseProductID model.ID           `json:"base_product_id"`
	Category      string             `json:"category"`
	PriceRange    *scorer.PriceRange `json:"price_range"`
	MaxResults    int                `json:"max_results"`
	ExcludeIDs    []model.ID         `json:"exclude_ids"`
}

// RecommendResponse 推荐结果
type RecommendResponse struct {
	Scene string        `json:"scene"`
	Items []*model.Item `json:"items"`
}

// ProductsResponse 商品列表类接口的返回
type ProductsResponse struct {
	Items []model.Product `json:"items"`
}

// handleRecommend 处理推荐请求
// POST /api/v1/recommend/:scene
func (s *Server) handleRecommend(c *gin.Context) {
	scene := c.Param("scene")

	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.PriceRange != nil && req.PriceRange.Min > req.PriceRange.Max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price_range.min must not exceed price_range.max"})
		return
	}

	timeout, err := s.engine.Timeout(scene)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("scene '%s' not supported", scene)})
		return
	}

	opts := scorer.Options{
		Category:   req.Category,
		PriceRange: req.PriceRange,
		MaxResults: req.MaxResults,
		ExcludeIDs: req.ExcludeIDs,
	}
	if req.BaseProductID != "" {
		base, err := s.catalog.Get(req.BaseProductID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		opts.BaseProduct = &base
	}

	u := currentUser(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	wfCtx := workflow.NewContext(ctx, u, s.catalog.Snapshot(), opts)
	wfCtx.Scorer = s.scorer
	wfCtx.Config["scene"] = scene

	start := time.Now()
	err = s.engine.Run(wfCtx, scene)
	candidates := wfCtx.GetCandidates()
	s.metrics.RecordPipeline(scene, time.Since(start), len(candidates), err)

	if logger.IsDebug() {
		for _, line := range wfCtx.Logs() {
			logger.Debug("[%s] %s", scene, line)
		}
	}

	if err != nil {
		s.writeError(c, err)
		return
	}

	// 异步保存历史
	if s.historyStore != nil && u != nil && len(candidates) > 0 {
		ids := make([]model.ID, len(candidates))
		for i, item := range candidates {
			ids[i] = item.Product.ID
		}
		userID := u.ID
		s.goBackground("save_history", func() {
			if err := s.historyStore.SaveHistory(userID, scene, ids); err != nil {
				logger.Error("Failed to save history async: %v", err)
			}
		})
	}

	c.JSON(http.StatusOK, RecommendResponse{Scene: scene, Items: candidates})
}

// GET /api/v1/products/:id/related
func (s *Server) handleRelated(c *gin.Context) {
	s.withBase(c, s.scorer.RelatedProducts)
}

// GET /api/v1/products/:id/bought-together
func (s *Server) handleBoughtTogether(c *gin.Context) {
	s.withBase(c, s.scorer.FrequentlyBoughtTogether)
}

func (s *Server) withBase(c *gin.Context, fn func(base model.Product, all []model.Product) []model.Product) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	base, err := s.catalog.Get(model.ID(c.Param("id")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProductsResponse{Items: truncate(fn(base, s.catalog.Snapshot()), limit)})
}

// GET /api/v1/products/trending?limit=
func (s *Server) handleTrending(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	items := s.scorer.TrendingProducts(s.catalog.Snapshot())
	c.JSON(http.StatusOK, ProductsResponse{Items: truncate(items, limit)})
}

// GET /api/v1/categories/:category/popular?limit=
func (s *Server) handlePopular(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	items := s.scorer.PopularInCategory(s.catalog.Snapshot(), c.Param("category"))
	c.JSON(http.StatusOK, ProductsResponse{Items: truncate(items, limit)})
}

// POST /api/v1/admin/catalog/reload
func (s *Server) handleCatalogReload(c *gin.Context) {
	// 任务不跟随请求的生命周期
	t := s.tasks.Submit(context.Background(), "catalog_reload", func(ctx context.Context) (interface{}, error) {
		n, err := s.catalog.Reload(ctx)
		s.metrics.RecordCatalogReload(n, err)
		if err != nil {
			return nil, err
		}
		return gin.H{"products": n}, nil
	})
	c.JSON(http.StatusAccepted, t)
}

// GET /api/v1/admin/tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	t, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// writeError 将错误映射为 HTTP 状态码
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := fmt.Sprintf("recommendation failed: %v", err)

	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, workflow.ErrPipelineNotFound), errors.Is(err, task.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		msg = "recommendation timed out"
	default:
		logger.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

// limitParam 解析可选的 ?limit=，非法值直接返回 400
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

// truncate limit 为 0 表示不截断
func truncate(products []model.Product, limit int) []model.Product {
	if limit > 0 && len(products) > limit {
		return products[:limit]
	}
	return products
}
