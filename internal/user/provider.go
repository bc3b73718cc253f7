package user

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"product_recommend/internal/model"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidToken token 无法识别或已失效
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
)

// Provider 定义了用户数据获取的接口
type Provider interface {
	GetUser(userID string) (*model.User, error)
	GetUserByToken(token string) (*model.User, error)
}

// StaticProvider 基于静态配置文件实现的用户提供者
type StaticProvider struct {
	users      map[string]*model.User
	tokenIndex map[string]*model.User
	mu         sync.RWMutex
}

type staticConfig struct {
	Users []model.User `yaml:"users"`
}

// NewStaticProvider 创建一个新的 StaticProvider 实例
// configPath 是用户配置文件的路径 (yaml格式)
func NewStaticProvider(configPath string) (*StaticProvider, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var config staticConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	return NewStaticProviderFromUsers(config.Users)
}

// NewStaticProviderFromUsers 直接使用给定的用户列表
func NewStaticProviderFromUsers(users []model.User) (*StaticProvider, error) {
	p := &StaticProvider{
		users:      make(map[string]*model.User, len(users)),
		tokenIndex: make(map[string]*model.User, len(users)),
	}
	for i := range users {
		u := &users[i]
		if u.ID == "" {
			return nil, fmt.Errorf("user at index %d has no id", i)
		}
		if _, dup := p.users[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id: %s", u.ID)
		}
		p.users[u.ID] = u
		if u.Token != "" {
			p.tokenIndex[u.Token] = u
		}
	}
	return p, nil
}

// GetUser 根据 UserID 获取用户信息
func (p *StaticProvider) GetUser(userID string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, nil
}

// GetUserByToken 根据 Token 获取用户信息
func (p *StaticProvider) GetUserByToken(token string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.tokenIndex[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	return u, nil
}
