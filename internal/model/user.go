package model

// User 代表系统中的用户信息
type User struct {
	ID        string   `json:"id" yaml:"id"`
	Token     string   `json:"-" yaml:"token"` // Token 用于鉴权，不序列化到 JSON
	Name      string   `json:"name" yaml:"name"`
	Email     string   `json:"email,omitempty" yaml:"email"`
	Avatar    string   `json:"avatar,omitempty" yaml:"avatar"`
	Roles     []string `json:"roles,omitempty" yaml:"roles"`
	Favorites []ID     `json:"favorites" yaml:"favorites"` // 用户收藏的商品
}

// HasRole 判断用户是否拥有某个角色
func (u *User) HasRole(role string) bool {
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
