package scorer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Weights 各项启发式打分的权重
type Weights struct {
	SameCategory    float64 `yaml:"same_category"`
	SameBrand       float64 `yaml:"same_brand"`
	PriceSimilarity float64 `yaml:"price_similarity"` // 价格越接近得分越高，最多这么多
	PriceBand       float64 `yaml:"price_band"`       // 价格相似区间（相对 base 价格的比例）
	SharedKeyword   float64 `yaml:"shared_keyword"`
	Compatible      float64 `yaml:"compatible"`

	ComplementaryCategory float64 `yaml:"complementary_category"`
	Accessory             float64 `yaml:"accessory"`
	CompletesProject      float64 `yaml:"completes_project"`
	CheaperAddOn          float64 `yaml:"cheaper_add_on"`
	CheaperAddOnRatio     float64 `yaml:"cheaper_add_on_ratio"`
}

// Rules 打分用到的全部静态数据，测试可以直接替换
type Rules struct {
	ComplementaryCategories map[string][]string `yaml:"complementary_categories"`
	AccessoryKeywords       []string            `yaml:"accessory_keywords"`
	Weights                 Weights             `yaml:"weights"`

	RelatedThreshold        float64 `yaml:"related_threshold"`
	BoughtTogetherThreshold float64 `yaml:"bought_together_threshold"`
	PerStrategyLimit        int     `yaml:"per_strategy_limit"`
	DefaultMaxResults       int     `yaml:"default_max_results"`
}

// DefaultRules 返回内置规则
func DefaultRules() Rules {
	return Rules{
		ComplementaryCategories: map[string][]string{
			"electronics": {"components", "tools", "kits"},
			"components":  {"electronics", "tools"},
			"3d-printers": {"materials", "tools"},
			"materials":   {"3d-printers", "tools"},
			"tools":       {"electronics", "components", "materials"},
			"kits":        {"tools", "components"},
		},
		AccessoryKeywords: []string{
			"cable", "wire", "connector", "adapter", "case", "cover",
			"mount", "bracket", "holder", "stand", "screw", "bolt",
		},
		Weights: Weights{
			SameCategory:          30,
			SameBrand:             25,
			PriceSimilarity:       20,
			PriceBand:             0.5,
			SharedKeyword:         10,
			Compatible:            40,
			ComplementaryCategory: 50,
			Accessory:             60,
			CompletesProject:      70,
			CheaperAddOn:          15,
			CheaperAddOnRatio:     0.3,
		},
		RelatedThreshold:        10,
		BoughtTogetherThreshold: 30,
		PerStrategyLimit:        4,
		DefaultMaxResults:       8,
	}
}

// LoadRules 从 YAML 文件加载规则，未出现的字段保留默认值
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

// complementaryOf 查询互补分类，key 使用小写的分类 slug
func (r Rules) complementaryOf(category string) []string {
	if category == "" {
		return nil
	}
	return r.ComplementaryCategories[strings.ToLower(category)]
}
