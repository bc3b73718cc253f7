package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"product_recommend/internal/logger"
	"product_recommend/internal/model"
)

// ErrNotFound 商品不在目录中
var ErrNotFound = errors.New("product not found")

// Catalog 内存中的目录快照，Reload 期间读请求继续使用旧快照
type Catalog struct {
	source Source

	mu       sync.RWMutex
	products []model.Product
	index    map[model.ID]int

	group singleflight.Group
}

// New 创建目录并立即加载一次
func New(ctx context.Context, source Source) (*Catalog, error) {
	c := &Catalog{source: source}
	if _, err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// FromProducts 直接使用给定的商品列表，不绑定数据源
func FromProducts(products []model.Product) *Catalog {
	c := &Catalog{}
	c.replace(products)
	return c
}

// Snapshot 返回当前目录的副本
func (c *Catalog) Snapshot() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get 按 id 查找商品
func (c *Catalog) Get(id model.ID) (model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.products[i], nil
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Reload 重新从数据源加载，并发调用只会触发一次加载
func (c *Catalog) Reload(ctx context.Context) (int, error) {
	if c.source == nil {
		return c.Len(), nil
	}
	v, err, shared := c.group.Do("reload", func() (interface{}, error) {
		products, err := c.source.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to load catalog: %w", err)
		}
		c.replace(products)
		return len(products), nil
	})
	if err != nil {
		return 0, err
	}
	if shared {
		logger.Debug("Catalog reload shared with a concurrent caller")
	}
	return v.(int), nil
}

func (c *Catalog) replace(products []model.Product) {
	index := make(map[model.ID]int, len(products))
	for i, p := range products {
		// 重复 id 以第一次出现为准
		if _, ok := index[p.ID]; !ok {
			index[p.ID] = i
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.index = index
}
