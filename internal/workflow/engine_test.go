package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"product_recommend/internal/model"
	"product_recommend/internal/scorer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRecall 延迟 delay 后写入一条召回结果
type fakeRecall struct {
	name  string
	delay time.Duration
	err   error
	panic bool
}

func (f *fakeRecall) Name() string { return f.name }
func (f *fakeRecall) Type() string { return "recall" }

func (f *fakeRecall) Execute(ctx *Context) error {
	time.Sleep(f.delay)
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return f.err
	}
	ctx.SetRecallResult(f.name, []*model.Item{{Product: model.Product{ID: model.ID(f.name)}, Source: f.name}})
	return nil
}

func newTestContext() *Context {
	return NewContext(context.Background(), &model.User{ID: "u1"}, nil, scorer.Options{})
}

func candidateIDs(ctx *Context) []model.ID {
	var out []model.ID
	for _, p := range ctx.Products() {
		out = append(out, p.ID)
	}
	return out
}

func TestParallelNode_MergesInDeclarationOrder(t *testing.T) {
	// 后声明的节点先完成，合并顺序仍然按声明顺序
	node := NewParallelNode("recall", []Node{
		&fakeRecall{name: "a", delay: 30 * time.Millisecond},
		&fakeRecall{name: "b", delay: 10 * time.Millisecond},
		&fakeRecall{name: "c"},
	})

	ctx := newTestContext()
	require.NoError(t, node.Execute(ctx))
	assert.Equal(t, []model.ID{"a", "b", "c"}, candidateIDs(ctx))
}

func TestParallelNode_PartialSuccess(t *testing.T) {
	node := NewParallelNode("recall", []Node{
		&fakeRecall{name: "a", err: errors.New("down")},
		&fakeRecall{name: "b", panic: true},
		&fakeRecall{name: "c"},
	})

	ctx := newTestContext()
	require.NoError(t, node.Execute(ctx))
	assert.Equal(t, []model.ID{"c"}, candidateIDs(ctx))
}

func TestParallelNode_AllFail(t *testing.T) {
	node := NewParallelNode("recall", []Node{
		&fakeRecall{name: "a", err: errors.New("down")},
		&fakeRecall{name: "b", err: errors.New("timeout")},
	})

	err := node.Execute(newTestContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all parallel nodes failed")
	assert.Contains(t, err.Error(), "node a: down")
	assert.Contains(t, err.Error(), "node b: timeout")
}

func TestEngine_RunUnknownScene(t *testing.T) {
	engine, err := NewEngineFromConfig(GlobalConfig{}, NewRegistry())
	require.NoError(t, err)

	err = engine.Run(newTestContext(), "missing")
	assert.True(t, errors.Is(err, ErrPipelineNotFound))

	_, err = engine.Timeout("missing")
	assert.True(t, errors.Is(err, ErrPipelineNotFound))
}

func TestEngine_UnknownNodeType(t *testing.T) {
	cfg := GlobalConfig{Pipelines: map[string]PipelineConfig{
		"s": {Nodes: []NodeConfig{{Name: "x", Type: "nope"}}},
	}}
	_, err := NewEngineFromConfig(cfg, NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node type: nope")
}

func TestEngine_TopLevelRecallIsCommitted(t *testing.T) {
	registry := NewRegistry()
	registry.Register("fake", func(cfg NodeConfig) (Node, error) {
		return &fakeRecall{name: cfg.Name}, nil
	})

	path := filepath.Join(t.TempDir(), "pipelines.json")
	content := `{"pipelines": {"home": {"timeout_ms": 1500, "nodes": [
		{"name": "first", "type": "fake"},
		{"name": "both", "type": "parallel", "nodes": [{"name": "second", "type": "fake"}, {"name": "third", "type": "fake"}]}
	]}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	engine, err := NewEngine(path, registry)
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, engine.Scenes())

	timeout, err := engine.Timeout("home")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, timeout)

	ctx := newTestContext()
	require.NoError(t, engine.Run(ctx, "home"))
	assert.Equal(t, []model.ID{"first", "second", "third"}, candidateIDs(ctx))
	assert.NotEmpty(t, ctx.Logs())
}

func TestEngine_RunStopsOnCancelledContext(t *testing.T) {
	registry := NewRegistry()
	registry.Register("fake", func(cfg NodeConfig) (Node, error) {
		return &fakeRecall{name: cfg.Name}, nil
	})
	cfg := GlobalConfig{Pipelines: map[string]PipelineConfig{
		"s": {Nodes: []NodeConfig{{Name: "a", Type: "fake"}}},
	}}
	engine, err := NewEngineFromConfig(cfg, registry)
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := NewContext(cctx, nil, nil, scorer.Options{})
	err = engine.Run(ctx, "s")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNodeConfigAccessors(t *testing.T) {
	cfg := NodeConfig{Config: map[string]interface{}{"limit": float64(3), "order": "desc"}}
	assert.Equal(t, 3, cfg.Int("limit", 0))
	assert.Equal(t, 7, cfg.Int("missing", 7))
	assert.Equal(t, "desc", cfg.String("order", "keep"))
	assert.Equal(t, "keep", cfg.String("missing", "keep"))
}
