package auth

// HomePath：未登录访问受保护视图时跳转的位置
const HomePath = "/"

// Authenticator：由 *Provider 实现
type Authenticator interface {
	IsAuthenticated() bool
}

type Navigator interface {
	Navigate(path string)
}

// 文档注释：受保护视图闸门
// 约束：未登录时不渲染任何内容，在（空）渲染之后跳转 HomePath；已登录时原样渲染
type Gate struct {
	Auth      Authenticator
	Navigator Navigator
}

func (g Gate) Render(view func() error) error {
	if !g.Auth.IsAuthenticated() {
		g.Navigator.Navigate(HomePath)
		return nil
	}
	return view()
}
