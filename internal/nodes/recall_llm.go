package nodes

import (
	"encoding/json"
	"fmt"
	"strings"

	"product_recommend/internal/model"
	"product_recommend/internal/workflow"
	"product_recommend/pkg/llm"
)

type LLMRecallNode struct {
	name       string
	llmClient  llm.Client
	count      int
	maxCatalog int
}

// NewLLMRecallNode 创建一个新的 LLMRecallNode
// 注意：client 由外部注入，不负责从 config 创建
func NewLLMRecallNode(name string, client llm.Client, count, maxCatalog int) *LLMRecallNode {
	if count <= 0 {
		count = 4
	}
	if maxCatalog <= 0 {
		maxCatalog = 100
	}
	return &LLMRecallNode{
		name:       name,
		llmClient:  client,
		count:      count,
		maxCatalog: maxCatalog,
	}
}

func (n *LLMRecallNode) Name() string { return n.name }
func (n *LLMRecallNode) Type() string { return "recall" }

func (n *LLMRecallNode) Execute(ctx *workflow.Context) error {
	req := ctx.Request
	if req.BaseProduct == nil && req.Category == "" {
		ctx.AddLog("No base product or category, skipping LLM recall")
		return nil
	}

	catalog := ctx.Catalog()
	byID := make(map[model.ID]model.Product, len(catalog))
	var lines []string
	for _, p := range catalog {
		if req.BaseProduct != nil && p.ID == req.BaseProduct.ID {
			continue
		}
		byID[p.ID] = p
		if len(lines) < n.maxCatalog {
			lines = append(lines, fmt.Sprintf("%s | %s | %s", p.ID, p.Name, p.Category.Normalize()))
		}
	}
	if len(lines) == 0 {
		return nil
	}

	focus := fmt.Sprintf("category \"%s\"", req.Category)
	if req.BaseProduct != nil {
		focus = fmt.Sprintf("product \"%s\" (category %s, brand %s)",
			req.BaseProduct.Name, req.BaseProduct.Category.Normalize(), req.BaseProduct.Brand)
	}

	prompt := fmt.Sprintf(`
A maker shop customer is looking at %s.
From the catalog below (format: id | name | category), pick up to %d products they are most likely to need next.
Only use ids that appear in the catalog.
Reply with a JSON array of id strings only, e.g. ["12", "40"]. No explanation, no markdown.

%s
`, focus, n.count, strings.Join(lines, "\n"))

	messages := []llm.Message{
		{Role: "system", Content: "You are a product recommendation engine for a makerspace store."},
		{Role: "user", Content: prompt},
	}

	respContent, err := n.llmClient.Chat(ctx.Ctx, messages)
	if err != nil {
		return fmt.Errorf("llm chat failed: %w", err)
	}

	cleanedResp := cleanJSON(respContent)

	var ids []model.ID
	if err := json.Unmarshal([]byte(cleanedResp), &ids); err != nil {
		ctx.AddLog(fmt.Sprintf("Failed to parse LLM response: %s. Raw content: [%s]", err, respContent))
		return fmt.Errorf("failed to parse llm response: %w", err)
	}

	// 只保留目录中真实存在的商品，忽略模型编造的 id
	var items []*model.Item
	seen := make(map[model.ID]struct{})
	for _, raw := range ids {
		id := model.ID(strings.TrimSpace(string(raw)))
		p, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, &model.Item{
			Product: p,
			Score:   float64(n.count - len(items)),
			Source:  n.name,
		})
		if len(items) >= n.count {
			break
		}
	}

	ctx.SetRecallResult(n.name, items)
	ctx.AddLog(fmt.Sprintf("LLM Recall (%s) returned %d items", n.name, len(items)))

	return nil
}

// cleanJSON 尝试从文本中提取并清理 JSON 数组
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)

	// 1. 移除 Markdown 代码块标记
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 2. 如果包含 '[' 和 ']'，尝试提取中间的部分
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start != -1 && end != -1 && end > start {
		content = content[start : end+1]
	}

	return content
}
