package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"product_recommend/internal/catalog"
	"product_recommend/internal/history"
	"product_recommend/internal/logger"
	"product_recommend/internal/metrics"
	"product_recommend/internal/nodes"
	"product_recommend/internal/scorer"
	"product_recommend/internal/server"
	"product_recommend/internal/task"
	"product_recommend/internal/user"
	"product_recommend/internal/workflow"
	"product_recommend/pkg/llm"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "recommend",
	Short:         "Product recommendation service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var historyCleanupCmd = &cobra.Command{
	Use:   "cleanup-history",
	Short: "Drop recommendation history older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitServerConfig(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.History.RetentionDays
		}
		store, err := history.NewFileStore(cfg.Paths.History)
		if err != nil {
			return err
		}
		if err := store.Cleanup(days); err != nil {
			return err
		}
		logger.Info("History older than %d days removed from %s", days, cfg.Paths.History)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "configs/server.yaml", "Path to server config file")
	pf.String("port", "", "Server port")
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("users", "", "Path to users.yaml")
	pf.String("pipelines", "", "Path to pipelines.json")
	pf.String("llm", "", "Path to llm.yaml")
	pf.String("history", "", "Path to history.jsonl")
	pf.String("catalog", "", "Path to the catalog file (yaml or json)")
	pf.String("rules", "", "Path to scoring rules yaml")
	pf.String("catalog-source", "", "Catalog source: file or postgres")
	pf.String("database-url", "", "Postgres DSN when catalog-source is postgres")
	pf.String("auth-mode", "", "Token validation: static or jwt")

	historyCleanupCmd.Flags().Int("days", 0, "Retention in days (defaults to history.retention_days)")
	rootCmd.AddCommand(historyCleanupCmd)
}

func main() {
	// .env 只是本地开发的便利，不存在时忽略
	_ = godotenv.Load()
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := InitServerConfig(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	logger.SetDebug(cfg.Server.Debug)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 初始化 User Provider
	userProvider, err := newUserProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to init user provider: %w", err)
	}

	// 2. 初始化 History Store
	historyStore, err := history.NewFileStore(cfg.Paths.History)
	if err != nil {
		return fmt.Errorf("failed to init history store: %w", err)
	}
	if cfg.History.RetentionDays > 0 {
		if err := historyStore.Cleanup(cfg.History.RetentionDays); err != nil {
			logger.Error("History cleanup failed: %v", err)
		}
	}

	// 3. 加载目录和打分规则
	source, closeSource, err := newCatalogSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	collector := metrics.NewCollector()
	products, err := catalog.New(ctx, source)
	collector.RecordCatalogReload(lenOf(products), err)
	if err != nil {
		return err
	}
	logger.Info("Catalog loaded: %d products", products.Len())

	rules, err := loadRules(cfg.Paths.Rules)
	if err != nil {
		return err
	}

	// 4. 加载 LLM 配置（可选），注册节点
	var llmCfg *llm.Config
	if _, statErr := os.Stat(cfg.Paths.LLM); statErr == nil {
		if llmCfg, err = llm.LoadConfig(cfg.Paths.LLM); err != nil {
			return err
		}
	}
	registry := nodes.NewRegistry(nodes.RegistryDeps{History: historyStore, LLM: llmCfg})

	// 5. 初始化 Pipeline Engine
	engine, err := newEngine(cfg.Paths.Pipelines, registry)
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}
	logger.Info("Pipelines loaded: %v", engine.Scenes())

	// 6. 启动 HTTP Server
	srv := server.NewServer(server.Options{
		Users:   userProvider,
		Engine:  engine,
		History: historyStore,
		Catalog: products,
		Scorer:  scorer.New(rules),
		Tasks:   task.NewManager(),
		Metrics: collector,
		RateLimit: server.RateLimit{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
	})
	return srv.Run(ctx, ":"+cfg.Server.Port)
}

func newUserProvider(cfg *ServerConfig) (user.Provider, error) {
	if cfg.Auth.Mode == "jwt" {
		return user.NewJWTProvider(cfg.Auth.JWTSecret)
	}
	return user.NewStaticProvider(cfg.Paths.Users)
}

func newCatalogSource(ctx context.Context, cfg *ServerConfig) (catalog.Source, func(), error) {
	if cfg.Catalog.Source == "postgres" {
		db, err := catalog.OpenPostgres(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewPostgresSource(db), func() { db.Close() }, nil
	}
	return catalog.NewFileSource(cfg.Paths.Catalog), func() {}, nil
}

// loadRules 规则文件不存在时使用内置规则
func loadRules(path string) (scorer.Rules, error) {
	rules, err := scorer.LoadRules(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("Rules file '%s' not found, using built-in rules", path)
		return scorer.DefaultRules(), nil
	}
	return rules, err
}

// newEngine pipelines 文件不存在时只提供内置的 storefront 场景
func newEngine(path string, registry *workflow.Registry) (*workflow.Engine, error) {
	cfg, err := workflow.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("Pipeline config '%s' not found, using built-in storefront pipeline", path)
		cfg = workflow.DefaultConfig()
	} else if err != nil {
		return nil, err
	}
	if cfg.Pipelines == nil {
		cfg.Pipelines = make(map[string]workflow.PipelineConfig)
	}
	if _, ok := cfg.Pipelines[workflow.StorefrontScene]; !ok {
		cfg.Pipelines[workflow.StorefrontScene] = workflow.DefaultConfig().Pipelines[workflow.StorefrontScene]
	}
	return workflow.NewEngineFromConfig(cfg, registry)
}

func lenOf(c *catalog.Catalog) int {
	if c == nil {
		return 0
	}
	return c.Len()
}
