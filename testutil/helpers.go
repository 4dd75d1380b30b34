// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"
)

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
