package nodes

import (
	"fmt"

	"product_recommend/internal/history"
	"product_recommend/internal/model"
	"product_recommend/internal/workflow"
)

// HistoryFilterNode 过滤掉最近 N 天已经推荐给该用户的商品
type HistoryFilterNode struct {
	name         string
	store        history.Store
	lookbackDays int
}

// NewHistoryFilterNode 工厂函数
func NewHistoryFilterNode(cfg workflow.NodeConfig, store history.Store) (workflow.Node, error) {
	return &HistoryFilterNode{
		name:         cfg.Name,
		store:        store,
		lookbackDays: cfg.Int("lookback_days", 7),
	}, nil
}

func (n *HistoryFilterNode) Name() string { return n.name }
func (n *HistoryFilterNode) Type() string { return "filter" }

func (n *HistoryFilterNode) Execute(ctx *workflow.Context) error {
	candidates := ctx.GetCandidates()
	if len(candidates) == 0 {
		return nil
	}

	// 场景名由 server 写入 Context.Config
	scene, _ := ctx.Config["scene"].(string)

	historyItems, err := n.store.GetRecentHistory(ctx.UserID, scene, n.lookbackDays)
	if err != nil {
		// 历史获取失败不阻断流程，降级为不过滤
		ctx.AddLog(fmt.Sprintf("Failed to get history: %v", err))
		return nil
	}

	// 构建历史 Set
	historySet := make(map[model.ID]struct{}, len(historyItems))
	for _, id := range historyItems {
		historySet[id] = struct{}{}
	}

	// 过滤
	var kept []*model.Item
	filteredCount := 0
	for _, item := range candidates {
		if _, exists := historySet[item.Product.ID]; !exists {
			kept = append(kept, item)
		} else {
			filteredCount++
		}
	}

	ctx.UpdateCandidates(kept)
	ctx.AddLog(fmt.Sprintf("History filter (%s) removed %d items, kept %d", n.name, filteredCount, len(kept)))

	return nil
}
