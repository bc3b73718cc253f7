package nodes

import (
	"fmt"

	"product_recommend/internal/model"
	"product_recommend/internal/workflow"
)

// FavoritesFilterNode 过滤掉用户已经收藏的商品
type FavoritesFilterNode struct {
	name string
}

func NewFavoritesFilterNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	return &FavoritesFilterNode{
		name: cfg.Name,
	}, nil
}

func (n *FavoritesFilterNode) Name() string { return n.name }
func (n *FavoritesFilterNode) Type() string { return "filter" }

func (n *FavoritesFilterNode) Execute(ctx *workflow.Context) error {
	candidates := ctx.GetCandidates()
	if len(candidates) == 0 || ctx.User == nil {
		return nil
	}

	favSet := make(map[model.ID]struct{}, len(ctx.User.Favorites))
	for _, id := range ctx.User.Favorites {
		favSet[id] = struct{}{}
	}

	var kept []*model.Item
	filteredCount := 0

	for _, item := range candidates {
		if _, exists := favSet[item.Product.ID]; !exists {
			kept = append(kept, item)
		} else {
			filteredCount++
		}
	}

	ctx.UpdateCandidates(kept)
	ctx.AddLog(fmt.Sprintf("Favorites filter (%s) removed %d items, kept %d", n.name, filteredCount, len(kept)))
	return nil
}
