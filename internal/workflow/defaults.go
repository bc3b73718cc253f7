package workflow

import "product_recommend/internal/scorer"

// StorefrontScene 内置的商城推荐场景，输出与 scorer.Generate 一致
const StorefrontScene = "storefront"

// StorefrontPipeline 返回内置的 storefront pipeline 配置，
// 召回数量跟随请求上下文里 scorer 的规则
func StorefrontPipeline() PipelineConfig {
	recalls := make([]NodeConfig, 0, len(scorer.Strategies))
	for _, st := range scorer.Strategies {
		recalls = append(recalls, NodeConfig{
			Name:   "recall_" + string(st),
			Type:   "recall",
			Config: map[string]interface{}{"strategy": string(st)},
		})
	}

	return PipelineConfig{
		Description: "similar/complementary for a product page, category or global popularity otherwise",
		TimeoutMs:   5000,
		Nodes: []NodeConfig{
			{Name: "exclude", Type: "filter_exclude"},
			{Name: "recall", Type: "parallel", Nodes: recalls},
			{Name: "price", Type: "filter_price"},
			{Name: "rank", Type: "rank", Config: map[string]interface{}{"order": "keep"}},
		},
	}
}

// DefaultConfig 只包含 storefront 场景
func DefaultConfig() GlobalConfig {
	return GlobalConfig{
		Pipelines: map[string]PipelineConfig{
			StorefrontScene: StorefrontPipeline(),
		},
	}
}
