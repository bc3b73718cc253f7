package nodes

import (
	"fmt"

	"product_recommend/internal/model"
	"product_recommend/internal/workflow"
)

type PriceFilterNode struct {
	name string
}

func NewPriceFilterNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	return &PriceFilterNode{name: cfg.Name}, nil
}

func (n *PriceFilterNode) Name() string { return n.name }
func (n *PriceFilterNode) Type() string { return "filter" }

func (n *PriceFilterNode) Execute(ctx *workflow.Context) error {
	priceRange := ctx.Request.PriceRange
	if priceRange == nil {
		return nil
	}

	candidates := ctx.GetCandidates()
	kept := make([]*model.Item, 0, len(candidates))
	for _, item := range candidates {
		if priceRange.Contains(item.Product.Price) {
			kept = append(kept, item)
		}
	}

	ctx.UpdateCandidates(kept)
	ctx.AddLog(fmt.Sprintf("Price filter (%s) [%.2f, %.2f] removed %d items, kept %d",
		n.name, priceRange.Min, priceRange.Max, len(candidates)-len(kept), len(kept)))
	return nil
}
