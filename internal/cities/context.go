package cities

import (
	"context"

	"worldwise/internal/errs"
)

type ctxKey struct{}

// WithStore：把 Provider 挂到 ctx 上，供下游视图读取
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext：取出 Provider；未挂载时 panic（KindUsage），属于调用方编程错误
func FromContext(ctx context.Context) *Store {
	s, ok := ctx.Value(ctxKey{}).(*Store)
	if !ok || s == nil {
		panic(errs.Usage("cities.FromContext", "Cities store was used outside of its provider"))
	}
	return s
}
