// Package scorer 基于启发式规则的商品推荐打分。
// 所有函数都是纯函数：输入的目录快照只读，每次调用返回新的切片，不缓存任何状态。
package scorer

import (
	"math"
	"sort"
	"strings"

	"product_recommend/internal/model"
)

// Scored 带分数的商品
type Scored struct {
	Product model.Product
	Score   float64
}

// Scorer 持有一份规则，方法本身无状态，可并发使用
type Scorer struct {
	rules Rules
}

// New 使用给定规则创建 Scorer
func New(rules Rules) *Scorer {
	return &Scorer{rules: rules}
}

var defaultScorer = New(DefaultRules())

// Default 返回使用内置规则的 Scorer
func Default() *Scorer { return defaultScorer }

func (s *Scorer) Rules() Rules { return s.rules }

// RankRelated 相似商品打分：同分类、同品牌、价格接近、共享关键词、显式兼容
func (s *Scorer) RankRelated(base model.Product, all []model.Product) []Scored {
	w := s.rules.Weights
	baseKeywords := ExtractKeywords(base)

	var out []Scored
	for _, p := range all {
		if p.ID == base.ID {
			continue
		}
		score := 0.0
		if sameCategory(base, p) {
			score += w.SameCategory
		}
		if base.Brand != "" && base.Brand == p.Brand {
			score += w.SameBrand
		}
		score += s.priceSimilarity(base.Price, p.Price)
		score += float64(sharedKeywords(baseKeywords, ExtractKeywords(p))) * w.SharedKeyword
		if isCompatible(base, p) {
			score += w.Compatible
		}
		if score > s.rules.RelatedThreshold {
			out = append(out, Scored{Product: p, Score: score})
		}
	}
	sortByScore(out)
	return out
}

// priceSimilarity 价格差在 base 价格的 PriceBand 比例以内时按接近程度线性给分
func (s *Scorer) priceSimilarity(basePrice, price float64) float64 {
	w := s.rules.Weights
	if basePrice <= 0 || price < 0 || w.PriceBand <= 0 {
		return 0
	}
	diff := math.Abs(price-basePrice) / basePrice
	if diff > w.PriceBand {
		return 0
	}
	return w.PriceSimilarity * (1 - diff/w.PriceBand)
}

// RankBoughtTogether 搭配购买打分：互补分类、配件、补全项目、便宜的附加品
func (s *Scorer) RankBoughtTogether(base model.Product, all []model.Product) []Scored {
	w := s.rules.Weights
	complementary := s.rules.complementaryOf(base.Category.Normalize())

	var out []Scored
	for _, p := range all {
		if p.ID == base.ID {
			continue
		}
		score := 0.0
		if containsFold(complementary, p.Category.Normalize()) {
			score += w.ComplementaryCategory
		}
		if s.IsAccessory(p) {
			score += w.Accessory
		}
		if completesProject(base, p) {
			score += w.CompletesProject
		}
		if base.Price > 0 && p.Price < base.Price*w.CheaperAddOnRatio {
			score += w.CheaperAddOn
		}
		if score > s.rules.BoughtTogetherThreshold {
			out = append(out, Scored{Product: p, Score: score})
		}
	}
	sortByScore(out)
	return out
}

// RankPopular 按热度降序；category 非空时先按分类过滤
func (s *Scorer) RankPopular(products []model.Product, category string) []Scored {
	out := make([]Scored, 0, len(products))
	for _, p := range products {
		if category != "" && !MatchesCategory(p, category) {
			continue
		}
		out = append(out, Scored{Product: p, Score: p.Popularity()})
	}
	sortByScore(out)
	return out
}

// RankTrending 目前没有时序数据，与 RankPopular 使用同一个公式
func (s *Scorer) RankTrending(products []model.Product, category string) []Scored {
	return s.RankPopular(products, category)
}

func (s *Scorer) RelatedProducts(base model.Product, all []model.Product) []model.Product {
	return productsOf(s.RankRelated(base, all))
}

func (s *Scorer) FrequentlyBoughtTogether(base model.Product, all []model.Product) []model.Product {
	return productsOf(s.RankBoughtTogether(base, all))
}

func (s *Scorer) TrendingProducts(products []model.Product) []model.Product {
	return productsOf(s.RankTrending(products, ""))
}

func (s *Scorer) PopularInCategory(products []model.Product, category string) []model.Product {
	if category == "" {
		return []model.Product{}
	}
	return productsOf(s.RankPopular(products, category))
}

// 包级函数使用内置规则

func RelatedProducts(base model.Product, all []model.Product) []model.Product {
	return defaultScorer.RelatedProducts(base, all)
}

func FrequentlyBoughtTogether(base model.Product, all []model.Product) []model.Product {
	return defaultScorer.FrequentlyBoughtTogether(base, all)
}

func TrendingProducts(products []model.Product) []model.Product {
	return defaultScorer.TrendingProducts(products)
}

func PopularInCategory(products []model.Product, category string) []model.Product {
	return defaultScorer.PopularInCategory(products, category)
}

func IsAccessory(p model.Product) bool {
	return defaultScorer.IsAccessory(p)
}

// sortByScore 稳定排序，同分保持输入顺序
func sortByScore(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

func productsOf(items []Scored) []model.Product {
	out := make([]model.Product, len(items))
	for i, it := range items {
		out[i] = it.Product
	}
	return out
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
