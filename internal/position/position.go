// 包 position：提供“使用当前位置”所需的坐标来源
package position

import (
	"context"

	"worldwise/internal/form"
)

// Source：返回可直接交给表单的选点
type Source interface {
	Current(ctx context.Context) (form.Position, error)
}

// Static：固定坐标，通常来自命令行参数
type Static struct {
	Lat float64
	Lng float64
}

func (s Static) Current(context.Context) (form.Position, error) {
	return form.At(s.Lat, s.Lng), nil
}

// SourceFunc 把函数适配为 Source
type SourceFunc func(ctx context.Context) (form.Position, error)

func (f SourceFunc) Current(ctx context.Context) (form.Position, error) { return f(ctx) }
