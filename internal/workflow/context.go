package workflow

import (
	"context"
	"sync"

	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
)

// Context 承载推荐流程的所有状态信息
// 它是并发安全的，支持多路召回并行写入
type Context struct {
	Ctx     context.Context
	UserID  string
	User    *model.User
	Config  map[string]interface{}
	Request scorer.Options
	Scorer  *scorer.Scorer

	// 数据流转区 (需要锁保护)
	mu            sync.RWMutex
	catalog       []model.Product          // 本次请求使用的目录快照
	Candidates    []*model.Item            // 当前的主候选集
	RecallResults map[string][]*model.Item // 各路召回的原始结果 key: source_name
	TraceLog      []string                 // 执行日志
}

// NewContext 创建一个新的工作流上下文
func NewContext(ctx context.Context, user *model.User, catalog []model.Product, req scorer.Options) *Context {
	userID := ""
	if user != nil {
		userID = user.ID
	}
	return &Context{
		Ctx:           ctx,
		UserID:        userID,
		User:          user,
		Config:        make(map[string]interface{}),
		Request:       req,
		Scorer:        scorer.Default(),
		catalog:       catalog,
		RecallResults: make(map[string][]*model.Item),
		Candidates:    make([]*model.Item, 0),
		TraceLog:      make([]string, 0),
	}
}

// Catalog 返回目录快照，调用方只读
func (c *Context) Catalog() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog
}

// ReplaceCatalog 替换目录快照（例如排除部分商品后）
func (c *Context) ReplaceCatalog(products []model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = products
}

// AddCandidates 向候选集中添加项目 (线程安全)
func (c *Context) AddCandidates(items []*model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Candidates = append(c.Candidates, items...)
}

// SetRecallResult 记录特定召回源的结果 (线程安全)
// 结果不会立即进入 Candidates，由 CommitRecall 按确定的顺序合并
func (c *Context) SetRecallResult(source string, items []*model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecallResults[source] = items
}

// CommitRecall 按给定的召回源顺序把结果合并进 Candidates
func (c *Context) CommitRecall(sources ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, source := range sources {
		c.Candidates = append(c.Candidates, c.RecallResults[source]...)
	}
}

// GetCandidates 获取当前候选集的副本 (线程安全)
func (c *Context) GetCandidates() []*model.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*model.Item, len(c.Candidates))
	copy(result, c.Candidates)
	return result
}

// UpdateCandidates 更新整个候选集 (线程安全)
// 通常用于过滤或排序阶段
func (c *Context) UpdateCandidates(items []*model.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Candidates = items
}

// Products 返回当前候选集中的商品
func (c *Context) Products() []model.Product {
	items := c.GetCandidates()
	out := make([]model.Product, len(items))
	for i, it := range items {
		out[i] = it.Product
	}
	return out
}

// AddLog 添加追踪日志
func (c *Context) AddLog(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TraceLog = append(c.TraceLog, msg)
}

// Logs 返回追踪日志的副本
func (c *Context) Logs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.TraceLog))
	copy(out, c.TraceLog)
	return out
}

// Node 定义工作流中的执行节点
type Node interface {
	Name() string
	Type() string // e.g., "recall", "filter", "rank", "parallel"
	Execute(ctx *Context) error
}
