package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// ErrPipelineNotFound 场景没有对应的 pipeline
var ErrPipelineNotFound = errors.New("pipeline not found")

// DefaultTimeout pipeline 未配置 timeout_ms 时使用
const DefaultTimeout = 300 * time.Second

// PipelineConfig 单个 Pipeline 的配置
type PipelineConfig struct {
	Description string       `json:"description"`
	TimeoutMs   int          `json:"timeout_ms"`
	Nodes       []NodeConfig `json:"nodes"`
}

// NodeConfig 节点的配置片段
type NodeConfig struct {
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
	Nodes  []NodeConfig           `json:"nodes,omitempty"` // 用于组合节点 (如 parallel)
}

// Int 读取整数配置，JSON 数字解析出来是 float64
func (c NodeConfig) Int(key string, def int) int {
	switch v := c.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// String 读取字符串配置
func (c NodeConfig) String(key, def string) string {
	if v, ok := c.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// GlobalConfig 整个配置文件的结构
type GlobalConfig struct {
	Pipelines map[string]PipelineConfig `json:"pipelines"`
}

// LoadConfig 读取 pipelines.json
func LoadConfig(path string) (GlobalConfig, error) {
	var globalCfg GlobalConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return globalCfg, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := json.Unmarshal(data, &globalCfg); err != nil {
		return globalCfg, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return globalCfg, nil
}

// NodeFactory 创建 Node 的函数签名
type NodeFactory func(config NodeConfig) (Node, error)

// Registry 节点注册表
type Registry struct {
	factories map[string]NodeFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]NodeFactory),
	}
}

// Register 注册一个新的节点类型
func (r *Registry) Register(nodeType string, factory NodeFactory) {
	r.factories[nodeType] = factory
}

// CreateNode 根据配置创建节点实例
func (r *Registry) CreateNode(cfg NodeConfig) (Node, error) {
	// 特殊处理 parallel 节点，因为它属于框架层面的能力
	if cfg.Type == "parallel" {
		var children []Node
		for _, childCfg := range cfg.Nodes {
			childNode, err := r.CreateNode(childCfg)
			if err != nil {
				return nil, err
			}
			children = append(children, childNode)
		}
		return NewParallelNode(cfg.Name, children), nil
	}

	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", cfg.Type)
	}
	return factory(cfg)
}

type pipeline struct {
	timeout time.Duration
	nodes   []Node
}

// Engine 流程引擎
type Engine struct {
	pipelines map[string]pipeline // scene -> nodes
	registry  *Registry
}

// NewEngine 创建引擎并加载配置
func NewEngine(configPath string, registry *Registry) (*Engine, error) {
	globalCfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewEngineFromConfig(globalCfg, registry)
}

// NewEngineFromConfig 使用已解析的配置创建引擎
func NewEngineFromConfig(globalCfg GlobalConfig, registry *Registry) (*Engine, error) {
	engine := &Engine{
		pipelines: make(map[string]pipeline),
		registry:  registry,
	}

	for scene, pipeCfg := range globalCfg.Pipelines {
		var nodes []Node
		for _, nodeCfg := range pipeCfg.Nodes {
			node, err := registry.CreateNode(nodeCfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create node '%s' in pipeline '%s': %w", nodeCfg.Name, scene, err)
			}
			nodes = append(nodes, node)
		}
		timeout := DefaultTimeout
		if pipeCfg.TimeoutMs > 0 {
			timeout = time.Duration(pipeCfg.TimeoutMs) * time.Millisecond
		}
		engine.pipelines[scene] = pipeline{timeout: timeout, nodes: nodes}
	}

	return engine, nil
}

// Scenes 返回已加载的场景名
func (e *Engine) Scenes() []string {
	scenes := make([]string, 0, len(e.pipelines))
	for scene := range e.pipelines {
		scenes = append(scenes, scene)
	}
	sort.Strings(scenes)
	return scenes
}

// Timeout 返回场景的超时时间
func (e *Engine) Timeout(scene string) (time.Duration, error) {
	p, ok := e.pipelines[scene]
	if !ok {
		return 0, fmt.Errorf("%w for scene: %s", ErrPipelineNotFound, scene)
	}
	return p.timeout, nil
}

// Run 执行指定场景的推荐流程
func (e *Engine) Run(ctx *Context, scene string) error {
	p, ok := e.pipelines[scene]
	if !ok {
		return fmt.Errorf("%w for scene: %s", ErrPipelineNotFound, scene)
	}

	ctx.AddLog(fmt.Sprintf("Starting pipeline execution for scene: %s", scene))

	for _, node := range p.nodes {
		if err := ctx.Ctx.Err(); err != nil {
			return fmt.Errorf("pipeline '%s' aborted: %w", scene, err)
		}
		ctx.AddLog(fmt.Sprintf("Executing node: %s (%s)", node.Name(), node.Type()))
		if err := node.Execute(ctx); err != nil {
			ctx.AddLog(fmt.Sprintf("Node execution failed: %v", err))
			return err
		}
		// 单独的召回节点：结果立即并入候选集
		if node.Type() == "recall" {
			ctx.CommitRecall(node.Name())
		}
	}

	ctx.AddLog("Pipeline execution completed")
	return nil
}
