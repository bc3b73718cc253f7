package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"product_recommend/internal/logger"
	"product_recommend/pkg/auth"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var opts struct {
	server       string
	token        string
	tokenURL     string
	clientID     string
	clientSecret string
	username     string
	password     string
	timeout      time.Duration
}

var rootCmd = &cobra.Command{
	Use:           "recommendctl",
	Short:         "Command line client for the recommendation service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <scene>",
	Short: "Run a recommendation pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := recommendBody(cmd)
		if err != nil {
			return err
		}
		return call(cmd.Context(), http.MethodPost, "/api/v1/recommend/"+url.PathEscape(args[0]), body, cmd.OutOrStdout())
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <product-id>",
	Short: "List products related to a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd.Context(), http.MethodGet, "/api/v1/products/"+url.PathEscape(args[0])+"/related", nil, cmd.OutOrStdout())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", envOr("RECOMMEND_SERVER", "http://localhost:8080"), "Recommendation service base URL")
	pf.StringVar(&opts.token, "token", os.Getenv("RECOMMEND_TOKEN"), "Static bearer token")
	pf.StringVar(&opts.tokenURL, "token-url", os.Getenv("RECOMMEND_TOKEN_URL"), "OpenID Connect token endpoint; enables password login")
	pf.StringVar(&opts.clientID, "client-id", envOr("RECOMMEND_CLIENT_ID", "recommendctl"), "OAuth client id")
	pf.StringVar(&opts.clientSecret, "client-secret", os.Getenv("RECOMMEND_CLIENT_SECRET"), "OAuth client secret")
	pf.StringVar(&opts.username, "username", os.Getenv("RECOMMEND_USERNAME"), "Login username")
	pf.StringVar(&opts.password, "password", os.Getenv("RECOMMEND_PASSWORD"), "Login password")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	f := recommendCmd.Flags()
	f.String("base", "", "Base product id")
	f.String("category", "", "Category slug or name")
	f.Float64("min", 0, "Minimum price (inclusive)")
	f.Float64("max", 0, "Maximum price (inclusive)")
	f.Int("max-results", 0, "Maximum number of results (default 8)")
	f.StringSlice("exclude", nil, "Product ids to exclude")

	rootCmd.AddCommand(recommendCmd, relatedCmd)
}

func main() {
	_ = godotenv.Load()
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func recommendBody(cmd *cobra.Command) (map[string]interface{}, error) {
	f := cmd.Flags()
	body := map[string]interface{}{}

	if v, _ := f.GetString("base"); v != "" {
		body["base_product_id"] = v
	}
	if v, _ := f.GetString("category"); v != "" {
		body["category"] = v
	}
	if f.Changed("min") || f.Changed("max") {
		lo, _ := f.GetFloat64("min")
		hi, _ := f.GetFloat64("max")
		if !f.Changed("max") {
			return nil, fmt.Errorf("--max is required together with --min")
		}
		body["price_range"] = map[string]float64{"min": lo, "max": hi}
	}
	if v, _ := f.GetInt("max-results"); v > 0 {
		body["max_results"] = v
	}
	if v, _ := f.GetStringSlice("exclude"); len(v) > 0 {
		body["exclude_ids"] = v
	}
	return body, nil
}

// newClient 配置了 --token-url 时走密码登录，否则使用静态 token
func newClient(ctx context.Context) (*http.Client, func(), error) {
	if opts.tokenURL == "" {
		if opts.token == "" {
			return nil, nil, fmt.Errorf("either --token or --token-url is required")
		}
		client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.token}))
		client.Timeout = opts.timeout
		return client, func() {}, nil
	}

	cfg := auth.Config{
		TokenURL:     opts.tokenURL,
		LogoutURL:    strings.TrimSuffix(opts.tokenURL, "/token") + "/logout",
		ClientID:     opts.clientID,
		ClientSecret: opts.clientSecret,
	}
	session := auth.NewSession(cfg)
	if err := session.Login(ctx, opts.username, opts.password); err != nil {
		return nil, nil, err
	}
	logout := func() {
		if err := session.Logout(context.Background()); err != nil {
			logger.Debug("logout failed: %v", err)
		}
	}
	client := session.Client(ctx)
	client.Timeout = opts.timeout
	return client, logout, nil
}

func call(ctx context.Context, method, path string, body interface{}, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, done, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer done()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(opts.server, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, err = out.Write(data)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
