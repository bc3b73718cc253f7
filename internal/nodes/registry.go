package nodes

import (
	"fmt"

	"product_recommend/internal/history"
	"product_recommend/internal/workflow"
	"product_recommend/pkg/llm"
)

// RegistryDeps 节点依赖的外部组件，LLM 可以为空
type RegistryDeps struct {
	History history.Store
	LLM     *llm.Config
}

// NewRegistry 注册所有可用的 Workflow 节点
func NewRegistry(deps RegistryDeps) *workflow.Registry {
	registry := workflow.NewRegistry()

	registry.Register("recall", NewRecallNode)
	registry.Register("filter_exclude", NewExcludeFilterNode)
	registry.Register("filter_price", NewPriceFilterNode)
	registry.Register("filter_favorites", NewFavoritesFilterNode)
	registry.Register("rank", NewRankNode)

	// 使用闭包注入 historyStore
	registry.Register("filter_history", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		if deps.History == nil {
			return nil, fmt.Errorf("filter_history node '%s' requires a history store", cfg.Name)
		}
		return NewHistoryFilterNode(cfg, deps.History)
	})

	registry.Register("recall_llm", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		key := cfg.String("llm_config_key", "")
		if key == "" {
			return nil, fmt.Errorf("recall_llm node '%s' missing 'llm_config_key'", cfg.Name)
		}
		client, err := deps.LLM.Client(key)
		if err != nil {
			return nil, fmt.Errorf("recall_llm node '%s': %w", cfg.Name, err)
		}
		return NewLLMRecallNode(cfg.Name, client, cfg.Int("count", 0), cfg.Int("max_catalog", 0)), nil
	})

	return registry
}
