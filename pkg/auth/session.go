// Package auth 是 Keycloak 风格 OpenID Connect 令牌端点的客户端会话封装。
// 它只负责获取、刷新令牌和把 bearer 头注入请求，推荐逻辑不依赖它。
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated 当前会话没有有效令牌
var ErrNotAuthenticated = errors.New("not authenticated")

// DefaultMinValidity 令牌剩余有效期低于该值时先刷新
const DefaultMinValidity = 30 * time.Second

// Config 会话配置
type Config struct {
	TokenURL     string
	LogoutURL    string
	ClientID     string
	ClientSecret string
	MinValidity  time.Duration
	// HTTPClient 用于访问令牌和登出端点
	HTTPClient *http.Client
}

// KeycloakConfig 根据 realm 地址拼出令牌和登出端点，
// 例如 https://sso.example.com/realms/shop
func KeycloakConfig(issuer, clientID string) Config {
	base := strings.TrimRight(issuer, "/") + "/protocol/openid-connect"
	return Config{
		TokenURL:  base + "/token",
		LogoutURL: base + "/logout",
		ClientID:  clientID,
	}
}

// User 从访问令牌中解析出的用户信息
type User struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// Claims Keycloak 访问令牌中用到的字段
type Claims struct {
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// User 把 claims 映射为用户，name 缺失时退回 preferred_username
func (c *Claims) User() User {
	name := c.Name
	if name == "" {
		name = c.PreferredUsername
	}
	return User{
		ID:     c.Subject,
		Email:  c.Email,
		Name:   name,
		Avatar: c.Picture,
		Roles:  append([]string(nil), c.RealmAccess.Roles...),
	}
}

// Session 并发安全的登录会话
type Session struct {
	cfg   Config
	oauth oauth2.Config

	mu     sync.Mutex
	token  *oauth2.Token
	source oauth2.TokenSource
	user   *User
}

func NewSession(cfg Config) *Session {
	if cfg.MinValidity <= 0 {
		cfg.MinValidity = DefaultMinValidity
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Session{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Login 使用 password grant 登录
func (s *Session) Login(ctx context.Context, username, password string) error {
	tok, err := s.oauth.PasswordCredentialsToken(s.clientContext(ctx), username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", endpointError(err))
	}
	claims, err := withClaims(tok)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// 刷新发生在之后的请求里，不能跟随登录请求的取消
	refresh := &refresher{
		oauth:        &s.oauth,
		ctx:          s.clientContext(context.WithoutCancel(ctx)),
		refreshToken: tok.RefreshToken,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = oauth2.ReuseTokenSourceWithExpiry(tok, refresh, s.cfg.MinValidity)
	s.set(tok, claims)
	return nil
}

// Logout 通知服务端注销 refresh token，无论结果如何都清空本地状态
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	var refresh string
	if s.token != nil {
		refresh = s.token.RefreshToken
	}
	s.clear()
	s.mu.Unlock()

	if refresh == "" || s.cfg.LogoutURL == "" {
		return nil
	}

	form := url.Values{"refresh_token": {refresh}}
	if s.cfg.ClientID != "" {
		form.Set("client_id", s.cfg.ClientID)
	}
	if s.cfg.ClientSecret != "" {
		form.Set("client_secret", s.cfg.ClientSecret)
	}
	if err := s.postLogout(ctx, form); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// IsAuthenticated 是否持有访问令牌（不检查是否即将过期）
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// User 返回当前用户，未登录时为 nil
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) HasRole(role string) bool {
	u := s.User()
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Token 返回可用的访问令牌，剩余有效期不足 MinValidity 时先刷新。
// 刷新失败会清空会话。
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return nil, ErrNotAuthenticated
	}
	tok, err := s.source.Token()
	if err != nil {
		s.clear()
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrNotAuthenticated, err)
	}
	if tok.AccessToken != s.token.AccessToken {
		claims, err := withClaims(tok)
		if err != nil {
			s.clear()
			return nil, fmt.Errorf("%w: refresh failed: %v", ErrNotAuthenticated, err)
		}
		s.set(tok, claims)
	}
	return tok, nil
}

// AuthorizeRequest 给请求加上 Authorization: Bearer 头
func (s *Session) AuthorizeRequest(ctx context.Context, req *http.Request) error {
	tok, err := s.Token(ctx)
	if err != nil {
		return err
	}
	tok.SetAuthHeader(req)
	return nil
}

// TokenSource 把会话适配为 oauth2.TokenSource
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return sessionSource{session: s, ctx: ctx}
}

// Transport 返回自动注入令牌的 RoundTripper，base 为 nil 时使用 http.DefaultTransport
func (s *Session) Transport(base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{Source: s.TokenSource(context.Background()), Base: base}
}

// Client 返回携带会话令牌的 HTTP 客户端
func (s *Session) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s.TokenSource(ctx))
}

type sessionSource struct {
	session *Session
	ctx     context.Context
}

func (ss sessionSource) Token() (*oauth2.Token, error) {
	return ss.session.Token(ss.ctx)
}

// refresher 每次调用都用 refresh token 换一次新令牌，
// 是否需要刷新由外层的 ReuseTokenSourceWithExpiry 判断
type refresher struct {
	oauth        *oauth2.Config
	ctx          context.Context
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	if r.refreshToken == "" {
		return nil, errors.New("token expired and no refresh token")
	}
	tok, err := r.oauth.TokenSource(r.ctx, &oauth2.Token{RefreshToken: r.refreshToken}).Token()
	if err != nil {
		return nil, endpointError(err)
	}
	if _, err := withClaims(tok); err != nil {
		return nil, err
	}
	r.refreshToken = tok.RefreshToken
	return tok, nil
}

// withClaims 解析访问令牌，令牌自带 exp 时以它为准
func withClaims(tok *oauth2.Token) (*Claims, error) {
	if tok.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return &claims, nil
}

// set 调用方需持有锁
func (s *Session) set(tok *oauth2.Token, claims *Claims) {
	u := claims.User()
	s.token = tok
	s.user = &u
}

func (s *Session) clear() {
	s.token = nil
	s.source = nil
	s.user = nil
}

func (s *Session) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.cfg.HTTPClient)
}

func endpointError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		return fmt.Errorf("token endpoint error (status %d): %w", rErr.Response.StatusCode, err)
	}
	return err
}

// postLogout Keycloak 的登出端点不属于 OAuth2，直接 POST 表单
func (s *Session) postLogout(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.LogoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", s.cfg.LogoutURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logout endpoint error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
