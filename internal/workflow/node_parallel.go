package workflow

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// ParallelNode 是一个组合节点，用于并发执行多个子节点
type ParallelNode struct {
	nodeName string
	children []Node
}

// NewParallelNode 创建一个新的并行节点
func NewParallelNode(name string, children []Node) *ParallelNode {
	return &ParallelNode{
		nodeName: name,
		children: children,
	}
}

func (n *ParallelNode) Name() string {
	return n.nodeName
}

func (n *ParallelNode) Type() string {
	return "parallel"
}

// Execute 并发执行所有子节点
// 采用 "Best Effort" 策略：只要有一个子节点成功，就不视为整个节点失败。
// 只有当所有子节点都失败时，才返回错误。
// 子节点的召回结果按声明顺序合并，保证输出稳定。
func (n *ParallelNode) Execute(ctx *Context) error {
	ctx.AddLog(fmt.Sprintf("Start ParallelNode: %s", n.nodeName))

	var wg sync.WaitGroup
	errs := make([]error, len(n.children))

	for i, child := range n.children {
		wg.Add(1)
		go func(i int, node Node) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("node %s panic: %v", node.Name(), r)
				}
			}()

			ctx.AddLog(fmt.Sprintf("  -> Start child node: %s", node.Name()))
			if err := node.Execute(ctx); err != nil {
				ctx.AddLog(fmt.Sprintf("  -> Node %s failed: %v", node.Name(), err))
				errs[i] = fmt.Errorf("node %s: %w", node.Name(), err)
				return
			}
			ctx.AddLog(fmt.Sprintf("  -> Node %s completed", node.Name()))
		}(i, child)
	}

	wg.Wait()

	var combined error
	sources := make([]string, 0, len(n.children))
	for i, child := range n.children {
		if errs[i] != nil {
			combined = multierr.Append(combined, errs[i])
			continue
		}
		sources = append(sources, child.Name())
	}
	ctx.CommitRecall(sources...)

	// 决策逻辑：
	// 1. 如果有至少一个成功，则认为整体成功（Partial Success）
	// 2. 如果所有都失败，则返回聚合错误
	if len(sources) == 0 && combined != nil {
		return fmt.Errorf("all parallel nodes failed: %w", combined)
	}

	if combined != nil {
		ctx.AddLog(fmt.Sprintf("ParallelNode completed with %d errors (ignored due to partial success): %v",
			len(multierr.Errors(combined)), combined))
	} else {
		ctx.AddLog(fmt.Sprintf("End ParallelNode: %s (All success)", n.nodeName))
	}

	return nil
}
