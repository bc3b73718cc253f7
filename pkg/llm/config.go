package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credential 单个模型的访问凭证
type Credential struct {
	ChatEndpoint string `yaml:"chat_endpoint"` // 完整的 API 地址
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
}

// Config 对应 configs/llm.yaml
type Config struct {
	LLMs map[string]Credential `yaml:"llms"`
}

// LoadConfig 读取 llm 配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read llm config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse llm config: %w", err)
	}
	return &cfg, nil
}

// Client 根据 key 构造客户端
func (c *Config) Client(key string) (Client, error) {
	if c == nil {
		return nil, fmt.Errorf("llm config not loaded")
	}
	cred, ok := c.LLMs[key]
	if !ok {
		return nil, fmt.Errorf("llm config key '%s' not found", key)
	}
	return NewOpenAIClient(cred.ChatEndpoint, cred.APIKey, cred.Model), nil
}
