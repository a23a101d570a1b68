// 包 auth：本地假认证与受保护视图的访问闸门
package auth

import (
	"context"
	"log/slog"
	"sync"

	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

// User：登录用户资料
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Avatar   string `json:"avatar"`
}

// FakeUser：内置的唯一账户
var FakeUser = User{
	Name:     "Jack",
	Email:    "jack@example.com",
	Password: "qwerty",
	Avatar:   "https://i.pravatar.cc/100?u=zz",
}

type Option func(*Provider)

// WithUser：替换内置账户
func WithUser(u User) Option { return func(p *Provider) { p.account = u } }

func WithLogger(l *slog.Logger) Option { return func(p *Provider) { p.log = l } }

// 文档注释：认证 Provider
// 背景：没有真实后端，凭据只与内置账户比对；状态只存在于本实例。
type Provider struct {
	account User
	log     *slog.Logger

	mu     sync.RWMutex
	user   *User
	authed bool
}

func NewProvider(opts ...Option) *Provider {
	p := &Provider{account: FakeUser}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = logger.L()
	}
	return p
}

// Login：邮箱与密码都匹配时登录成功；失败不改变当前状态
func (p *Provider) Login(email, password string) bool {
	if email != p.account.Email || password != p.account.Password {
		p.log.Info("auth_login_rejected", "email", email)
		return false
	}
	u := p.account
	p.mu.Lock()
	p.user, p.authed = &u, true
	p.mu.Unlock()
	p.log.Debug("auth_login_ok", "email", email)
	return true
}

func (p *Provider) Logout() {
	p.mu.Lock()
	p.user, p.authed = nil, false
	p.mu.Unlock()
}

func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authed
}

// User：未登录时 ok 为 false
func (p *Provider) User() (User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return User{}, false
	}
	return *p.user, true
}

type ctxKey struct{}

func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext：未挂载 Provider 时 panic（KindUsage）
func FromContext(ctx context.Context) *Provider {
	p, ok := ctx.Value(ctxKey{}).(*Provider)
	if !ok || p == nil {
		panic(errs.Usage("auth.FromContext", "Auth context was used outside of its provider"))
	}
	return p
}
