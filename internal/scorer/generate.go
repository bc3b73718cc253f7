package scorer

import "product_recommend/internal/model"

// PriceRange 闭区间 [Min, Max]
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *PriceRange) Contains(price float64) bool {
	if r == nil {
		return true
	}
	return price >= r.Min && price <= r.Max
}

// Options 一次推荐请求的上下文
type Options struct {
	BaseProduct *model.Product
	Category    string
	PriceRange  *PriceRange
	MaxResults  int // <= 0 时使用默认值
	ExcludeIDs  []model.ID
}

// Strategy 召回策略
type Strategy string

const (
	StrategySimilar          Strategy = "similar"
	StrategyComplementary    Strategy = "complementary"
	StrategyCategoryPopular  Strategy = "category_popular"
	StrategyCategoryTrending Strategy = "category_trending"
	StrategyTrending         Strategy = "trending"
	StrategyPopular          Strategy = "popular"
)

// Strategies 按合并顺序排列的全部策略
var Strategies = []Strategy{
	StrategySimilar,
	StrategyComplementary,
	StrategyCategoryPopular,
	StrategyCategoryTrending,
	StrategyTrending,
	StrategyPopular,
}

// Applies 判断策略是否适用于当前请求：
// 有 base 商品时走 similar/complementary；否则有分类时走分类策略；都没有时走全局策略
func (st Strategy) Applies(opts Options) bool {
	switch st {
	case StrategySimilar, StrategyComplementary:
		return opts.BaseProduct != nil
	case StrategyCategoryPopular, StrategyCategoryTrending:
		return opts.BaseProduct == nil && opts.Category != ""
	case StrategyTrending, StrategyPopular:
		return opts.BaseProduct == nil && opts.Category == ""
	}
	return false
}

// Valid 判断是否是已知策略
func (st Strategy) Valid() bool {
	for _, known := range Strategies {
		if st == known {
			return true
		}
	}
	return false
}

// Recall 执行单个策略，返回前 limit 个；策略不适用时返回空
func (s *Scorer) Recall(st Strategy, catalog []model.Product, opts Options, limit int) []Scored {
	if !st.Applies(opts) {
		return nil
	}
	var ranked []Scored
	switch st {
	case StrategySimilar:
		ranked = s.RankRelated(*opts.BaseProduct, catalog)
	case StrategyComplementary:
		ranked = s.RankBoughtTogether(*opts.BaseProduct, catalog)
	case StrategyCategoryPopular:
		ranked = s.RankPopular(catalog, opts.Category)
	case StrategyCategoryTrending:
		ranked = s.RankTrending(catalog, opts.Category)
	case StrategyTrending:
		ranked = s.RankTrending(catalog, "")
	case StrategyPopular:
		ranked = s.RankPopular(catalog, "")
	}
	return top(ranked, limit)
}

// Generate 生成最终推荐列表：
// 排除 → 按上下文召回（每路取前 N）→ 价格过滤 → 按 ID 去重（先到先得）→ 截断
func (s *Scorer) Generate(products []model.Product, opts Options) []model.Product {
	catalog := ExcludeIDs(products, opts.ExcludeIDs)

	var combined []Scored
	for _, st := range Strategies {
		combined = append(combined, s.Recall(st, catalog, opts, s.rules.PerStrategyLimit)...)
	}

	result := make([]model.Product, 0, len(combined))
	for _, c := range combined {
		if opts.PriceRange.Contains(c.Product.Price) {
			result = append(result, c.Product)
		}
	}

	return Dedupe(result, s.MaxResults(opts.MaxResults))
}

// MaxResults 把请求中的数量换算成实际上限
func (s *Scorer) MaxResults(requested int) int {
	if requested > 0 {
		return requested
	}
	if s.rules.DefaultMaxResults > 0 {
		return s.rules.DefaultMaxResults
	}
	return 8
}

// Generate 使用内置规则生成推荐
func Generate(products []model.Product, opts Options) []model.Product {
	return defaultScorer.Generate(products, opts)
}

// ExcludeIDs 返回去掉指定 ID 后的新切片
func ExcludeIDs(products []model.Product, ids []model.ID) []model.Product {
	out := make([]model.Product, 0, len(products))
	if len(ids) == 0 {
		return append(out, products...)
	}
	excluded := make(map[model.ID]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}
	for _, p := range products {
		if _, ok := excluded[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Dedupe 按 ID 去重（保留第一次出现），最多返回 limit 个；limit <= 0 表示不限
func Dedupe(products []model.Product, limit int) []model.Product {
	seen := make(map[model.ID]struct{}, len(products))
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func top(items []Scored, n int) []Scored {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
