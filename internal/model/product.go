package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ID 商品 ID，目录里既可能是整数也可能是字符串，统一按字符串处理
type ID string

// UnmarshalJSON 接受 JSON 数字或字符串
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := scalarFromJSON(data)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(s)
	return nil
}

// UnmarshalYAML 接受任意 YAML 标量
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid id at line %d: expected scalar", value.Line)
	}
	*id = ID(value.Value)
	return nil
}

// CategoryObject 结构化的分类引用
type CategoryObject struct {
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	ID   ID     `json:"id,omitempty" yaml:"id,omitempty"`
}

// CategoryRef 分类字段的两种形态：纯字符串，或者 {slug, name, id} 对象。
// 任何比较都必须先经过 Normalize，不能直接比较原始值。
type CategoryRef struct {
	Plain  string
	Object *CategoryObject
}

// CategoryName 构造纯字符串形态的分类
func CategoryName(s string) CategoryRef { return CategoryRef{Plain: s} }

// CategorySlug 构造对象形态的分类（只有 slug）
func CategorySlug(slug string) CategoryRef {
	return CategoryRef{Object: &CategoryObject{Slug: slug}}
}

// Normalize 返回可比较的分类字符串：slug > name > id
func (c CategoryRef) Normalize() string {
	if c.Object == nil {
		return c.Plain
	}
	switch {
	case c.Object.Slug != "":
		return c.Object.Slug
	case c.Object.Name != "":
		return c.Object.Name
	default:
		return string(c.Object.ID)
	}
}

// Matches 判断分类是否与 c 匹配：纯字符串直接相等，对象形态比较 slug 或 name
func (c CategoryRef) Matches(category string) bool {
	if category == "" {
		return false
	}
	if c.Object == nil {
		return c.Plain == category
	}
	return c.Object.Slug == category || c.Object.Name == category
}

// IsZero 没有任何可比较的分类值
func (c CategoryRef) IsZero() bool { return c.Normalize() == "" }

// MarshalJSON 按原来的形态输出
func (c CategoryRef) MarshalJSON() ([]byte, error) {
	if c.Object != nil {
		return json.Marshal(c.Object)
	}
	return json.Marshal(c.Plain)
}

// UnmarshalJSON 接受字符串、数字或分类对象，null 为空分类
func (c *CategoryRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*c = CategoryRef{}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj CategoryObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("invalid category object: %w", err)
		}
		*c = CategoryRef{Object: &obj}
		return nil
	}
	s, err := scalarFromJSON(data)
	if err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}
	*c = CategoryRef{Plain: s}
	return nil
}

// MarshalYAML 按原来的形态输出
func (c CategoryRef) MarshalYAML() (interface{}, error) {
	if c.Object != nil {
		return c.Object, nil
	}
	return c.Plain, nil
}

// UnmarshalYAML 接受标量或映射
func (c *CategoryRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var obj CategoryObject
		if err := value.Decode(&obj); err != nil {
			return fmt.Errorf("invalid category object: %w", err)
		}
		*c = CategoryRef{Object: &obj}
	case yaml.ScalarNode:
		*c = CategoryRef{Plain: value.Value}
	default:
		return fmt.Errorf("invalid category at line %d", value.Line)
	}
	return nil
}

// Rating 评分，目录里是数字或者 {average: x}
type Rating struct {
	Average float64
}

// MarshalJSON 总是输出数字
func (r Rating) MarshalJSON() ([]byte, error) { return json.Marshal(r.Average) }

// UnmarshalJSON 接受数字、数字字符串或 {average}，无法解析时为 0
func (r *Rating) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Average float64 `json:"average"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("invalid rating object: %w", err)
		}
		r.Average = obj.Average
		return nil
	}
	if trimmed == "null" {
		r.Average = 0
		return nil
	}
	s, err := scalarFromJSON(data)
	if err != nil {
		return fmt.Errorf("invalid rating: %w", err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// 损坏的评分按 0 处理
		v = 0
	}
	r.Average = v
	return nil
}

// UnmarshalYAML 同 UnmarshalJSON
func (r *Rating) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		var obj struct {
			Average float64 `yaml:"average"`
		}
		if err := value.Decode(&obj); err != nil {
			return fmt.Errorf("invalid rating object: %w", err)
		}
		r.Average = obj.Average
		return nil
	}
	v, err := strconv.ParseFloat(value.Value, 64)
	if err != nil {
		v = 0
	}
	r.Average = v
	return nil
}

// Product 代表目录中的一个商品
type Product struct {
	ID             ID          `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description,omitempty" yaml:"description,omitempty"`
	Category       CategoryRef `json:"category" yaml:"category"`
	Brand          string      `json:"brand,omitempty" yaml:"brand,omitempty"`
	Price          float64     `json:"price" yaml:"price"`
	Rating         Rating      `json:"rating" yaml:"rating"`
	ReviewCount    int         `json:"review_count" yaml:"review_count"`
	CompatibleWith []ID        `json:"compatible_with,omitempty" yaml:"compatible_with,omitempty"`
}

// productWire 兼容 review_count / reviewCount 两种写法
type productWire struct {
	ID             ID          `json:"id" yaml:"id"`
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description" yaml:"description"`
	Category       CategoryRef `json:"category" yaml:"category"`
	Brand          string      `json:"brand" yaml:"brand"`
	Price          float64     `json:"price" yaml:"price"`
	Rating         Rating      `json:"rating" yaml:"rating"`
	ReviewCount    *int        `json:"review_count" yaml:"review_count"`
	ReviewCountAlt *int        `json:"reviewCount" yaml:"reviewCount"`
	CompatibleWith []ID        `json:"compatible_with" yaml:"compatible_with"`
}

func (w productWire) product() Product {
	p := Product{
		ID:             w.ID,
		Name:           w.Name,
		Description:    w.Description,
		Category:       w.Category,
		Brand:          w.Brand,
		Price:          w.Price,
		Rating:         w.Rating,
		CompatibleWith: w.CompatibleWith,
	}
	switch {
	case w.ReviewCount != nil:
		p.ReviewCount = *w.ReviewCount
	case w.ReviewCountAlt != nil:
		p.ReviewCount = *w.ReviewCountAlt
	}
	return p
}

// UnmarshalJSON 兼容 review_count / reviewCount
func (p *Product) UnmarshalJSON(data []byte) error {
	var w productWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = w.product()
	return nil
}

// UnmarshalYAML 兼容 review_count / reviewCount
func (p *Product) UnmarshalYAML(value *yaml.Node) error {
	var w productWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	*p = w.product()
	return nil
}

// Popularity 热度 = rating × review_count，任一缺失即为 0
func (p Product) Popularity() float64 {
	if p.Rating.Average <= 0 || p.ReviewCount <= 0 {
		return 0
	}
	return p.Rating.Average * float64(p.ReviewCount)
}

// scalarFromJSON 把 JSON 数字或字符串统一转为字符串，数字保留原文，不经过 float64
func scalarFromJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unexpected value %s", string(data))
	}
}
