package user

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"product_recommend/internal/model"
	"product_recommend/pkg/auth"
)

// JWTProvider 校验 HS256 签名的 bearer token，用户信息全部来自 claims
type JWTProvider struct {
	secret []byte
	parser *jwt.Parser

	// 见过的用户，供 GetUser 查询
	mu   sync.RWMutex
	seen map[string]*model.User
}

func NewJWTProvider(secret string) (*JWTProvider, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTProvider{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
		seen:   make(map[string]*model.User),
	}, nil
}

func (p *JWTProvider) GetUserByToken(token string) (*model.User, error) {
	var claims auth.Claims
	_, err := p.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	info := claims.User()
	u := &model.User{
		ID:     info.ID,
		Token:  token,
		Name:   info.Name,
		Email:  info.Email,
		Avatar: info.Avatar,
		Roles:  info.Roles,
	}

	p.mu.Lock()
	p.seen[u.ID] = u
	p.mu.Unlock()
	return u, nil
}

func (p *JWTProvider) GetUser(userID string) (*model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.seen[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return u, nil
}
