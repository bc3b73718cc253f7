package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// envPrefix 环境变量前缀，例如 RECOMMEND_SERVER_PORT
const envPrefix = "RECOMMEND"

// ServerConfig 对应 configs/server.yaml
type ServerConfig struct {
	Server struct {
		Port      string `yaml:"port"`
		Debug     bool   `yaml:"debug"`
		RateLimit struct {
			RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit" split_words:"true"`
	} `yaml:"server"`
	Paths struct {
		Users     string `yaml:"users"`
		Pipelines string `yaml:"pipelines"`
		LLM       string `yaml:"llm"`
		History   string `yaml:"history"`
		Catalog   string `yaml:"catalog"`
		Rules     string `yaml:"rules"`
	} `yaml:"paths"`
	Catalog struct {
		Source      string `yaml:"source"` // file | postgres
		DatabaseURL string `yaml:"database_url" split_words:"true"`
	} `yaml:"catalog"`
	Auth struct {
		Mode      string `yaml:"mode"` // static | jwt
		JWTSecret string `yaml:"jwt_secret" split_words:"true"`
	} `yaml:"auth"`
	History struct {
		RetentionDays int `yaml:"retention_days" split_words:"true"`
	} `yaml:"history"`
}

func defaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.Server.Port = "8080"
	cfg.Paths.Users = "configs/users.yaml"
	cfg.Paths.Pipelines = "configs/pipelines.json"
	cfg.Paths.LLM = "configs/llm.yaml"
	cfg.Paths.History = "data/history.jsonl"
	cfg.Paths.Catalog = "configs/catalog.yaml"
	cfg.Paths.Rules = "configs/rules.yaml"
	cfg.Catalog.Source = "file"
	cfg.Auth.Mode = "static"
	cfg.History.RetentionDays = 30
	return cfg
}

// loadServerConfig 在 cfg 上叠加 yaml 文件中的值，文件里没有的字段保持不变
func loadServerConfig(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse server config: %w", err)
	}
	return nil
}

// InitServerConfig 初始化服务器配置，优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func InitServerConfig(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	cfg := defaultServerConfig()

	if err := loadServerConfig(configPath, cfg); err != nil {
		// 默认配置文件不存在时直接使用默认值；显式指定的文件必须可读
		if !os.IsNotExist(err) || flags.Changed("config") {
			return nil, fmt.Errorf("failed to load config file '%s': %w", configPath, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyFlags(cfg, flags)

	switch cfg.Catalog.Source {
	case "file", "postgres":
	default:
		return nil, fmt.Errorf("unknown catalog source '%s'", cfg.Catalog.Source)
	}
	switch cfg.Auth.Mode {
	case "static", "jwt":
	default:
		return nil, fmt.Errorf("unknown auth mode '%s'", cfg.Auth.Mode)
	}
	return cfg, nil
}

// applyFlags 只覆盖显式传入的参数
func applyFlags(cfg *ServerConfig, flags *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("port", &cfg.Server.Port)
	str("users", &cfg.Paths.Users)
	str("pipelines", &cfg.Paths.Pipelines)
	str("llm", &cfg.Paths.LLM)
	str("history", &cfg.Paths.History)
	str("catalog", &cfg.Paths.Catalog)
	str("rules", &cfg.Paths.Rules)
	str("catalog-source", &cfg.Catalog.Source)
	str("database-url", &cfg.Catalog.DatabaseURL)
	str("auth-mode", &cfg.Auth.Mode)
	if flags.Changed("debug") {
		cfg.Server.Debug, _ = flags.GetBool("debug")
	}
}
