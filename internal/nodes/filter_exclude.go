package nodes

import (
	"fmt"

	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
	"product_recommend/internal/workflow"
)

// ExcludeFilterNode 从目录快照和候选集中去掉请求里排除的商品
// 应当放在召回之前
type ExcludeFilterNode struct {
	name string
}

func NewExcludeFilterNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	return &ExcludeFilterNode{name: cfg.Name}, nil
}

func (n *ExcludeFilterNode) Name() string { return n.name }
func (n *ExcludeFilterNode) Type() string { return "filter" }

func (n *ExcludeFilterNode) Execute(ctx *workflow.Context) error {
	excluded := ctx.Request.ExcludeIDs
	if len(excluded) == 0 {
		return nil
	}

	before := len(ctx.Catalog())
	ctx.ReplaceCatalog(scorer.ExcludeIDs(ctx.Catalog(), excluded))

	set := make(map[model.ID]struct{}, len(excluded))
	for _, id := range excluded {
		set[id] = struct{}{}
	}
	var kept []*model.Item
	for _, item := range ctx.GetCandidates() {
		if _, ok := set[item.Product.ID]; !ok {
			kept = append(kept, item)
		}
	}
	ctx.UpdateCandidates(kept)

	ctx.AddLog(fmt.Sprintf("Exclude filter (%s) removed %d catalog items", n.name, before-len(ctx.Catalog())))
	return nil
}
