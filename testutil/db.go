// =============================================================================
// 🗄️ 数据库测试辅助
// =============================================================================
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite 打开内存 SQLite 并注册清理
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	return openSQLite(t, ":memory:")
}

// OpenSQLiteFile 打开文件型 SQLite 并注册清理
func OpenSQLiteFile(t *testing.T, path string) *gorm.DB {
	t.Helper()
	return openSQLite(t, path)
}

func openSQLite(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite %q: %v", dsn, err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		_ = sqlDB.Close()
	})

	return db
}
