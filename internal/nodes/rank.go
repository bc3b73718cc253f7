package nodes

import (
	"fmt"
	"sort"

	"product_recommend/internal/model"
	"product_recommend/internal/workflow"
)

// RankNode 去重、排序、截断
type RankNode struct {
	name  string
	limit int
	order string // "keep", "desc"
}

func NewRankNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	order := cfg.String("order", "keep")
	if order != "keep" && order != "desc" {
		return nil, fmt.Errorf("rank node '%s' has unknown order '%s'", cfg.Name, order)
	}

	return &RankNode{
		name:  cfg.Name,
		limit: cfg.Int("limit", 0),
		order: order,
	}, nil
}

func (n *RankNode) Name() string { return n.name }
func (n *RankNode) Type() string { return "rank" }

func (n *RankNode) Execute(ctx *workflow.Context) error {
	candidates := ctx.GetCandidates()

	// 去重：同一商品保留第一次出现
	seen := make(map[model.ID]struct{}, len(candidates))
	unique := make([]*model.Item, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := seen[item.Product.ID]; ok {
			continue
		}
		seen[item.Product.ID] = struct{}{}
		unique = append(unique, item)
	}

	if n.order == "desc" {
		sort.SliceStable(unique, func(i, j int) bool {
			return unique[i].Score > unique[j].Score
		})
	}

	// 截断：节点配置优先，其次是请求的 max_results
	limit := n.limit
	if limit <= 0 {
		limit = ctx.Scorer.MaxResults(ctx.Request.MaxResults)
	}
	if len(unique) > limit {
		unique = unique[:limit]
	}

	ctx.UpdateCandidates(unique)
	ctx.AddLog(fmt.Sprintf("Rank (%s) completed. Strategy: %s, Result count: %d", n.name, n.order, len(unique)))

	return nil
}
