package nodes

import (
	"fmt"

	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
	"product_recommend/internal/workflow"
)

// RecallNode 使用 scorer 的某个策略召回候选
type RecallNode struct {
	name     string
	strategy scorer.Strategy
	limit    int // <= 0 时使用 scorer 规则里的 PerStrategyLimit
}

// NewRecallNode 工厂函数，config: strategy (必填), limit (可选)
func NewRecallNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	st := scorer.Strategy(cfg.String("strategy", ""))
	if !st.Valid() {
		return nil, fmt.Errorf("recall node '%s' has unknown strategy '%s'", cfg.Name, st)
	}
	return &RecallNode{
		name:     cfg.Name,
		strategy: st,
		limit:    cfg.Int("limit", 0),
	}, nil
}

func (n *RecallNode) Name() string { return n.name }
func (n *RecallNode) Type() string { return "recall" }

func (n *RecallNode) Execute(ctx *workflow.Context) error {
	if !n.strategy.Applies(ctx.Request) {
		ctx.SetRecallResult(n.name, nil)
		ctx.AddLog(fmt.Sprintf("Recall (%s) skipped: strategy %s does not apply", n.name, n.strategy))
		return nil
	}

	limit := n.limit
	if limit <= 0 {
		limit = ctx.Scorer.Rules().PerStrategyLimit
	}
	ranked := ctx.Scorer.Recall(n.strategy, ctx.Catalog(), ctx.Request, limit)
	items := make([]*model.Item, 0, len(ranked))
	for _, r := range ranked {
		items = append(items, &model.Item{
			Product: r.Product,
			Score:   r.Score,
			Source:  string(n.strategy),
		})
	}

	ctx.SetRecallResult(n.name, items)
	ctx.AddLog(fmt.Sprintf("Recall (%s) returned %d items", n.name, len(items)))
	return nil
}
