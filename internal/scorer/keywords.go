package scorer

import (
	"strings"

	"product_recommend/internal/model"
)

// ExtractKeywords 提取商品关键词：名称分词、品牌、分类、描述分词，全部小写去重
func ExtractKeywords(p model.Product) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(tok string) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			set[tok] = struct{}{}
		}
	}

	for _, tok := range strings.Fields(p.Name) {
		add(tok)
	}
	add(p.Brand)
	add(p.Category.Normalize())
	for _, tok := range strings.Fields(p.Description) {
		add(tok)
	}
	return set
}

func sharedKeywords(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

// IsAccessory 名称或描述中包含配件关键词（不区分大小写）
func (s *Scorer) IsAccessory(p model.Product) bool {
	text := strings.ToLower(p.Name + " " + p.Description)
	for _, kw := range s.rules.AccessoryKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MatchesCategory 纯字符串分类直接比较，对象分类比较 slug 或 name
func MatchesCategory(p model.Product, category string) bool {
	return p.Category.Matches(category)
}

func sameCategory(a, b model.Product) bool {
	ca, cb := a.Category.Normalize(), b.Category.Normalize()
	return ca != "" && ca == cb
}

// isCompatible 任一方在 compatible_with 中显式列出另一方
func isCompatible(a, b model.Product) bool {
	for _, id := range a.CompatibleWith {
		if id == b.ID {
			return true
		}
	}
	for _, id := range b.CompatibleWith {
		if id == a.ID {
			return true
		}
	}
	return false
}

// completesProject 分类不同，且一方的名称包含另一方的分类
func completesProject(base, candidate model.Product) bool {
	baseCat := strings.ToLower(base.Category.Normalize())
	candCat := strings.ToLower(candidate.Category.Normalize())
	if baseCat == "" || candCat == "" || baseCat == candCat {
		return false
	}
	return strings.Contains(strings.ToLower(candidate.Name), baseCat) ||
		strings.Contains(strings.ToLower(base.Name), candCat)
}
