package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"product_recommend/internal/model"
)

// Source 商品目录的数据来源
type Source interface {
	Load(ctx context.Context) ([]model.Product, error)
}

// FileSource 从 yaml 或 json 文件读取目录
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type fileCatalog struct {
	Products []model.Product `json:"products" yaml:"products"`
}

// Load 根据扩展名选择解析方式，json 文件可以是数组或 {"products": [...]}
func (s *FileSource) Load(ctx context.Context) ([]model.Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "[") {
			var products []model.Product
			if err := json.Unmarshal(data, &products); err != nil {
				return nil, fmt.Errorf("failed to parse catalog: %w", err)
			}
			return products, nil
		}
		var fc fileCatalog
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return fc.Products, nil
	case ".yaml", ".yml":
		var fc fileCatalog
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return fc.Products, nil
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", s.path)
	}
}

const listProductsQuery = `
	SELECT id::text, name, description, category_slug, category_name, brand, price, rating, review_count, compatible_with
	FROM products
	ORDER BY id
`

// PostgresSource 从 products 表读取目录
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres 使用 lib/pq 驱动打开连接
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s *PostgresSource) Load(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	out := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

func scanProduct(rows *sql.Rows) (model.Product, error) {
	var (
		id, name                   string
		description, slug, catName sql.NullString
		brand                      sql.NullString
		price, rating              sql.NullFloat64
		reviews                    sql.NullInt64
		compatible                 []string
	)
	if err := rows.Scan(&id, &name, &description, &slug, &catName, &brand, &price, &rating, &reviews, pq.Array(&compatible)); err != nil {
		return model.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}

	p := model.Product{
		ID:          model.ID(id),
		Name:        name,
		Description: description.String,
		Brand:       brand.String,
		Price:       price.Float64,
		Rating:      model.Rating{Average: rating.Float64},
		ReviewCount: int(reviews.Int64),
	}
	// 有 slug 时使用对象形态，和 storefront API 返回的一致
	if slug.Valid && slug.String != "" {
		p.Category = model.CategoryRef{Object: &model.CategoryObject{Slug: slug.String, Name: catName.String}}
	} else {
		p.Category = model.CategoryName(catName.String)
	}
	for _, c := range compatible {
		p.CompatibleWith = append(p.CompatibleWith, model.ID(c))
	}
	return p, nil
}
