package model

// Item 代表推荐链路中的一个候选商品
type Item struct {
	Product  Product                `json:"product"`
	Score    float64                `json:"score"`               // 排序分数
	Source   string                 `json:"source"`              // 召回源标记 (e.g., "similar", "trending")
	MetaData map[string]interface{} `json:"meta_data,omitempty"` // 额外的元数据
}
