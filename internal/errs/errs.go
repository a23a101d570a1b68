// 包 errs：统一错误分类，区分传输失败、语义拒绝与使用错误，供上层按类别降级或中止
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindTransport：请求发送、非 2xx 或响应解码失败
	KindTransport Kind = "transport"
	// KindSemantic：响应可解析但内容不可用（如坐标不在任何国家内）
	KindSemantic Kind = "semantic"
	// KindUsage：在 Provider 生命周期之外访问状态，属于编程错误，不应被恢复
	KindUsage   Kind = "usage"
	KindConfig  Kind = "config"
	KindStorage Kind = "storage"
	KindUnknown Kind = "unknown"
)

// 文档注释：带分类的错误
// 背景：Message 面向用户展示，Cause 保留底层原因用于日志与 errors.Is 判定。
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap：包装底层错误；err 为 nil 时返回 nil
// 约束：已是 *Error 的错误原样返回，避免多层包装导致分类被覆盖
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// IsKind 判断错误链上第一个 *Error 是否属于给定分类
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// Message：取可展示给用户的文本；非 *Error 时退回 err.Error()
func Message(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	return err.Error()
}

// Usage：构造使用错误，调用方直接 panic
func Usage(op, message string) *Error {
	return New(KindUsage, op, message)
}
