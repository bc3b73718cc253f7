package nodes

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product_recommend/internal/history"
	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
	"product_recommend/internal/workflow"
	"product_recommend/pkg/llm"
)

func catalogFixture() []model.Product {
	p := func(id, name, category, brand string, price, rating float64, reviews int) model.Product {
		return model.Product{
			ID:          model.ID(id),
			Name:        name,
			Category:    model.CategoryName(category),
			Brand:       brand,
			Price:       price,
			Rating:      model.Rating{Average: rating},
			ReviewCount: reviews,
		}
	}
	bench := p("8", "Bench Power Supply", "", "", 89, 4.4, 35)
	bench.Category = model.CategorySlug("tools")
	return []model.Product{
		p("1", "Prusa MK4", "3d-printers", "Prusa", 999, 4.8, 120),
		p("2", "Prusa Mini", "3d-printers", "Prusa", 459, 4.6, 80),
		p("3", "PLA Filament 1kg", "materials", "", 25, 4.7, 300),
		p("4", "Spool Holder Mount", "tools", "", 12, 4.1, 40),
		p("5", "Arduino Uno", "electronics", "Arduino", 27, 4.9, 500),
		p("6", "USB Cable 2m", "components", "", 5, 4.0, 90),
		p("7", "Starter Kit", "kits", "Arduino", 60, 0, 0),
		bench,
	}
}

// fakeStore 固定返回的历史
type fakeStore struct {
	ids []model.ID
	err error
}

func (f *fakeStore) GetRecentHistory(string, string, int) ([]model.ID, error) { return f.ids, f.err }
func (f *fakeStore) SaveHistory(string, string, []model.ID) error              { return nil }
func (f *fakeStore) Cleanup(int) error                                         { return nil }

// fakeLLM 返回固定内容
type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.reply, f.err
}

func newEngine(t *testing.T, store history.Store) *workflow.Engine {
	t.Helper()
	engine, err := workflow.NewEngineFromConfig(workflow.DefaultConfig(), NewRegistry(RegistryDeps{History: store}))
	require.NoError(t, err)
	return engine
}

func idsOf(products []model.Product) []model.ID {
	out := make([]model.ID, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestStorefrontPipelineMatchesGenerate(t *testing.T) {
	catalog := catalogFixture()
	base := catalog[0]
	engine := newEngine(t, &fakeStore{})

	cases := map[string]scorer.Options{
		"global":         {},
		"global capped":  {MaxResults: 2},
		"category":       {Category: "tools"},
		"base":           {BaseProduct: &base},
		"base excluded":  {BaseProduct: &base, ExcludeIDs: []model.ID{"4", "2"}},
		"price":          {PriceRange: &scorer.PriceRange{Min: 10, Max: 100}},
		"category price": {Category: "3d-printers", PriceRange: &scorer.PriceRange{Min: 500, Max: 1000}},
	}

	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := workflow.NewContext(context.Background(), &model.User{ID: "u1"}, catalog, opts)
			require.NoError(t, engine.Run(ctx, workflow.StorefrontScene))

			want := scorer.Generate(catalog, opts)
			assert.Equal(t, idsOf(want), idsOf(ctx.Products()))
		})
	}
}

func TestStorefrontPipelineFollowsCustomRules(t *testing.T) {
	catalog := catalogFixture()
	engine := newEngine(t, &fakeStore{})

	rules := scorer.DefaultRules()
	rules.PerStrategyLimit = 2
	custom := scorer.New(rules)

	for name, opts := range map[string]scorer.Options{
		"global":   {},
		"category": {Category: "3d-printers"},
		"base":     {BaseProduct: &catalog[0]},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := workflow.NewContext(context.Background(), nil, catalog, opts)
			ctx.Scorer = custom
			require.NoError(t, engine.Run(ctx, workflow.StorefrontScene))

			assert.Equal(t, idsOf(custom.Generate(catalog, opts)), idsOf(ctx.Products()))
		})
	}
}

func TestRecallNode_ExplicitLimitWins(t *testing.T) {
	node, err := NewRecallNode(workflow.NodeConfig{Name: "trending", Config: map[string]interface{}{"strategy": "trending", "limit": float64(1)}})
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), nil, catalogFixture(), scorer.Options{})
	require.NoError(t, node.Execute(ctx))
	ctx.CommitRecall(node.Name())
	assert.Equal(t, []model.ID{"5"}, idsOf(ctx.Products()))
}

func TestRecallNode_UnknownStrategy(t *testing.T) {
	_, err := NewRecallNode(workflow.NodeConfig{Name: "r", Config: map[string]interface{}{"strategy": "random"}})
	require.Error(t, err)
}

func TestRecallNode_SkipsWhenNotApplicable(t *testing.T) {
	node, err := NewRecallNode(workflow.NodeConfig{Name: "similar", Config: map[string]interface{}{"strategy": "similar"}})
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), nil, catalogFixture(), scorer.Options{})
	require.NoError(t, node.Execute(ctx))
	ctx.CommitRecall(node.Name())
	assert.Empty(t, ctx.GetCandidates())
}

func TestRankNode_DescAndLimit(t *testing.T) {
	node, err := NewRankNode(workflow.NodeConfig{Name: "rank", Config: map[string]interface{}{"order": "desc", "limit": float64(2)}})
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), nil, nil, scorer.Options{})
	ctx.AddCandidates([]*model.Item{
		{Product: model.Product{ID: "a"}, Score: 1},
		{Product: model.Product{ID: "b"}, Score: 5},
		{Product: model.Product{ID: "a"}, Score: 9},
		{Product: model.Product{ID: "c"}, Score: 5},
	})
	require.NoError(t, node.Execute(ctx))
	assert.Equal(t, []model.ID{"b", "c"}, idsOf(ctx.Products()))

	_, err = NewRankNode(workflow.NodeConfig{Name: "rank", Config: map[string]interface{}{"order": "shuffle"}})
	assert.Error(t, err)
}

func TestHistoryFilterNode(t *testing.T) {
	store, err := history.NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	require.NoError(t, store.SaveHistory("u1", "home", []model.ID{"b"}))

	node, err := NewHistoryFilterNode(workflow.NodeConfig{Name: "history"}, store)
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), &model.User{ID: "u1"}, nil, scorer.Options{})
	ctx.Config["scene"] = "home"
	ctx.AddCandidates([]*model.Item{{Product: model.Product{ID: "a"}}, {Product: model.Product{ID: "b"}}})
	require.NoError(t, node.Execute(ctx))
	assert.Equal(t, []model.ID{"a"}, idsOf(ctx.Products()))
}

func TestHistoryFilterNode_DegradesOnError(t *testing.T) {
	node, err := NewHistoryFilterNode(workflow.NodeConfig{Name: "history"}, &fakeStore{err: errors.New("disk")})
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), &model.User{ID: "u1"}, nil, scorer.Options{})
	ctx.AddCandidates([]*model.Item{{Product: model.Product{ID: "a"}}})
	require.NoError(t, node.Execute(ctx))
	assert.Len(t, ctx.GetCandidates(), 1)
}

func TestFavoritesFilterNode(t *testing.T) {
	node, err := NewFavoritesFilterNode(workflow.NodeConfig{Name: "favorites"})
	require.NoError(t, err)

	ctx := workflow.NewContext(context.Background(), &model.User{ID: "u1", Favorites: []model.ID{"a"}}, nil, scorer.Options{})
	ctx.AddCandidates([]*model.Item{{Product: model.Product{ID: "a"}}, {Product: model.Product{ID: "b"}}})
	require.NoError(t, node.Execute(ctx))
	assert.Equal(t, []model.ID{"b"}, idsOf(ctx.Products()))
}

func TestLLMRecallNode(t *testing.T) {
	catalog := catalogFixture()
	base := catalog[0]
	client := &fakeLLM{reply: "```json\n[\"3\", 4, \"1\", \"999\", \"3\"]\n```"}
	node := NewLLMRecallNode("recall_llm", client, 5, 0)

	ctx := workflow.NewContext(context.Background(), nil, catalog, scorer.Options{BaseProduct: &base})
	require.NoError(t, node.Execute(ctx))
	ctx.CommitRecall(node.Name())

	// 编造的 999、重复的 3 和 base 商品本身都被丢弃
	assert.Equal(t, []model.ID{"3", "4"}, idsOf(ctx.Products()))
}

func TestLLMRecallNode_BadResponse(t *testing.T) {
	catalog := catalogFixture()
	node := NewLLMRecallNode("recall_llm", &fakeLLM{reply: "I cannot help"}, 3, 0)

	ctx := workflow.NewContext(context.Background(), nil, catalog, scorer.Options{Category: "tools"})
	assert.Error(t, node.Execute(ctx))
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `["a"]`, cleanJSON("```json\n[\"a\"]\n```"))
	assert.Equal(t, `["a","b"]`, cleanJSON(`Sure! ["a","b"] enjoy`))
}
