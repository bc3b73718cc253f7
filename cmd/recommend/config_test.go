package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product_recommend/internal/nodes"
	"product_recommend/internal/workflow"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("port", "", "")
	fs.Bool("debug", false, "")
	for _, name := range []string{"users", "pipelines", "llm", "history", "catalog", "rules", "catalog-source", "database-url", "auth-mode"} {
		fs.String(name, "", "")
	}
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestInitServerConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  rate_limit:
    requests_per_second: 5
paths:
  catalog: data/catalog.json
auth:
  mode: jwt
  jwt_secret: from-file
`), 0644))

	t.Setenv("RECOMMEND_AUTH_JWT_SECRET", "from-env")
	t.Setenv("RECOMMEND_SERVER_PORT", "9100")

	cfg, err := InitServerConfig(path, newFlags(t, "--port", "9200"))
	require.NoError(t, err)

	assert.Equal(t, "9200", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, "data/catalog.json", cfg.Paths.Catalog)
	assert.Equal(t, 5.0, cfg.Server.RateLimit.RequestsPerSecond)
	// 未配置的字段保留默认值
	assert.Equal(t, "configs/users.yaml", cfg.Paths.Users)
	assert.Equal(t, 30, cfg.History.RetentionDays)
}

func TestInitServerConfig_MissingDefaultFile(t *testing.T) {
	cfg, err := InitServerConfig(filepath.Join(t.TempDir(), "none.yaml"), newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)

	_, err = InitServerConfig(filepath.Join(t.TempDir(), "none.yaml"), newFlags(t, "--config", "x"))
	assert.Error(t, err)
}

func TestInitServerConfig_InvalidSource(t *testing.T) {
	_, err := InitServerConfig(filepath.Join(t.TempDir(), "none.yaml"), newFlags(t, "--catalog-source", "mongo"))
	assert.Error(t, err)
}

func TestNewEngine_FallsBackToStorefront(t *testing.T) {
	registry := nodes.NewRegistry(nodes.RegistryDeps{})

	engine, err := newEngine(filepath.Join(t.TempDir(), "missing.json"), registry)
	require.NoError(t, err)
	assert.Equal(t, []string{workflow.StorefrontScene}, engine.Scenes())

	// 配置文件里没有 storefront 时补上内置的
	path := filepath.Join(t.TempDir(), "pipelines.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pipelines": {"deals": {"nodes": [
		{"name": "trending", "type": "recall", "config": {"strategy": "trending"}}
	]}}}`), 0644))
	engine, err = newEngine(path, registry)
	require.NoError(t, err)
	assert.Equal(t, []string{"deals", workflow.StorefrontScene}, engine.Scenes())
}
