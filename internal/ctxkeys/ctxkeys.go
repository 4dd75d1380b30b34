// Package ctxkeys carries run metadata through the contexts handed to
// migration units.
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	runIDKey     contextKey = "run_id"
	namespaceKey contextKey = "namespace"
	groupKey     contextKey = "group"
)

// WithRunID 设置迁移运行 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取迁移运行 ID，迁移单元可用其标记审计记录
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithNamespace 设置当前运行的命名空间
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, namespaceKey, namespace)
}

// Namespace 获取当前运行的命名空间
func Namespace(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(namespaceKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithGroup 设置当前运行的数据库组
func WithGroup(ctx context.Context, group string) context.Context {
	return context.WithValue(ctx, groupKey, group)
}

// Group 获取当前运行的数据库组
func Group(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(groupKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
